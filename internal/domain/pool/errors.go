package pool

import "errors"

// Sentinel kinds for pool invariant violations.
var (
	ErrEmptyPoolID   = errors.New("empty pool id")
	ErrDuplicateID   = errors.New("duplicate pool id")
	ErrDuplicateKey  = errors.New("identity key already owned by another record")
	ErrNotFound      = errors.New("applicant not found")
	ErrNoBatches     = errors.New("record has no source batches")
	ErrBatchesShrunk = errors.New("source batches cannot shrink")
)
