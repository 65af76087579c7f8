package health

import (
	"context"
	"errors"
)

// Check is a single dependency probe: a database ping, a queue
// connectivity check, anything that can fail fast under a context
// deadline.
type Check func(ctx context.Context) error

// Run executes every check and joins their failures into one error via
// errors.Join, nil if every check (or there are none) passed. Checks run
// sequentially in the order given; a slow check does not block the
// others from running, it simply extends the overall call.
func Run(ctx context.Context, checks ...Check) error {
	var errs []error
	for _, check := range checks {
		if err := check(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
