package uploader

import "errors"

// Sentinel kinds for uploader errors.
var (
	ErrNoHeader   = errors.New("csv has no header row")
	ErrRejected   = errors.New("batch rejected")
	ErrRetryLimit = errors.New("retries exhausted")
)
