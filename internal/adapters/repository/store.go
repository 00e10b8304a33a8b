// Package repository persists the applicant pool.
package repository

import (
	"context"

	"github.com/okian/applicantpool/internal/domain/model"
)

// Store loads and saves the whole pool. Implementations must return records
// in the order they were saved so pool insertion order survives restarts.
type Store interface {
	// Load returns every persisted record. An empty store returns no records
	// and no error.
	Load(ctx context.Context) ([]model.ApplicantRecord, error)

	// Save replaces the persisted pool with recs atomically: either all of
	// recs become visible to the next Load or none do.
	Save(ctx context.Context, recs []model.ApplicantRecord) error

	// Close releases underlying resources.
	Close() error
}
