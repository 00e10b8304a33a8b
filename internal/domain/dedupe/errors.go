package dedupe

import "errors"

// Structural errors returned before any row is processed.
var (
	ErrNilPool      = errors.New("nil pool")
	ErrEmptyBatchID = errors.New("empty batch id")
)
