package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotStarted    = errors.New("service not started")
	ErrBatchTooLarge = errors.New("batch exceeds row limit")
	ErrNotFound      = errors.New("applicant not found")
)
