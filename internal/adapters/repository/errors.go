package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrLoad           = errors.New("load pool")
	ErrSave           = errors.New("save pool")
	ErrUnknownDialect = errors.New("unknown sql dialect")
	ErrClosed         = errors.New("store closed")
)
