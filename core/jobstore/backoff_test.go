package jobstore_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/seesaw/core/jobstore"
)

func TestRetryDelay(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 1, want: 2 * time.Second},
		{attempt: 2, want: 4 * time.Second},
		{attempt: 3, want: 8 * time.Second},
		{attempt: 10, want: 1024 * time.Second},
		{attempt: 20, want: time.Hour}, // 2^20s far exceeds the 1h ceiling
		{attempt: 0, want: 2 * time.Second},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, jobstore.RetryDelay(tc.attempt))
	}
}
