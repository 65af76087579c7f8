package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/seesaw/core/logger"
)

func TestNew_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(
		logger.WithJSONFormatter(),
		logger.WithOutput(&buf),
		logger.WithAttr(slog.String("service", "seesaw")),
	)

	log.Info("engine started", logger.Component("engine"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "engine started", entry["msg"])
	assert.Equal(t, "seesaw", entry["service"])
	assert.Equal(t, "engine", entry["component"])
}

func TestNew_ProductionDefaults(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.WithProduction("seesaw"), logger.WithOutput(&buf))

	log.Debug("should be filtered by info level")
	assert.Empty(t, buf.String())

	log.Info("should appear")
	assert.Contains(t, buf.String(), "should appear")
}

func TestWithContextValue_InjectsAttribute(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(
		logger.WithJSONFormatter(),
		logger.WithOutput(&buf),
		logger.WithContextValue("correlation_id", "correlation_id"),
	)

	ctx := context.WithValue(context.Background(), "correlation_id", "corr-123")
	log.InfoContext(ctx, "job dispatched")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "corr-123", entry["correlation_id"])
}

func TestError_NilIsSafe(t *testing.T) {
	attr := logger.Error(nil)
	assert.Equal(t, slog.Attr{}, attr)
}

func TestErrors_FiltersNil(t *testing.T) {
	attr := logger.Errors(nil, assertError{}, nil)
	assert.Equal(t, "errors", attr.Key)
	assert.Len(t, attr.Value.Group(), 1)
}

type assertError struct{}

func (assertError) Error() string { return "boom" }
