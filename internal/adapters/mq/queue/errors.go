package queue

import "errors"

// Sentinel kinds for queue errors.
var (
	ErrStopped = errors.New("worker stopped")
	ErrFull    = errors.New("queue full")
	ErrClosed  = errors.New("queue closed")
)
