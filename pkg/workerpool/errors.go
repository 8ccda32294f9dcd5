package workerpool

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Sentinel errors. Callers compare with errors.Is; wrapped forms add the
// offending value via fmt.Errorf("%w: ...", ...).
var (
	// ErrInvalidArgument is returned for nonsensical construction or
	// configuration parameters (e.g. a steal budget >= worker count).
	ErrInvalidArgument = errors.New("workerpool: invalid argument")

	// ErrOverflow is returned when task admission fails and no
	// refuse-callback is installed to recover the rejected task.
	ErrOverflow = errors.New("workerpool: task rejected, pool at capacity")

	// ErrClosed is returned by operations attempted after Close.
	ErrClosed = errors.New("workerpool: pool is closed")

	// ErrEmptyTask is returned by Task.Invoke on a task that holds no
	// callable.
	ErrEmptyTask = errors.New("workerpool: invoke of empty task")

	// ErrEmptyFuture is returned by Future.Get when the future was never
	// attached to a scheduled task (the task it belongs to overflowed,
	// whether or not a refuse-callback rehomed it).
	ErrEmptyFuture = errors.New("workerpool: future has no result")
)

// invalidArgument wraps one invalid-argument violation for multi-error
// aggregation at construction time.
func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// collectValidation aggregates zero or more validation errors into a
// single error, or nil if there were none, so a constructor reports
// every violated argument rather than just the first.
func collectValidation(errs ...error) error {
	var merr *multierror.Error
	for _, e := range errs {
		if e != nil {
			merr = multierror.Append(merr, e)
		}
	}
	if merr == nil {
		return nil
	}
	return merr.ErrorOrNil()
}
