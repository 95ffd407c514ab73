package service

import (
	"errors"
	"fmt"
)

// Failure kinds returned by the queue and session operations. They are ordinary outcomes
// of concurrent demand and are matched with errors.Is.
var (
	ErrResourceUnavailable = errors.New("station unavailable")
	ErrQueueFull           = errors.New("queue full")
	ErrNotEligible         = errors.New("not eligible")
	ErrNotFound            = errors.New("not found")
	ErrPersistence         = errors.New("persistence failure")
)

func persistenceError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}

func notEligible(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotEligible, fmt.Sprintf(format, args...))
}
