package vga

import "github.com/pkg/errors"

// errorf wraps one of the sentinel taxonomy errors with a formatted,
// situation-specific message while keeping errors.Is(err, sentinel) true.
func errorf(sentinel error, format string, args ...interface{}) error {
	return errors.Wrapf(sentinel, format, args...)
}

// errors2wrap adds context to err while preserving its cause chain.
func errors2wrap(err error, context string) error {
	return errors.Wrap(err, context)
}
