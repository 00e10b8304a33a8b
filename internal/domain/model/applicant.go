// Package model contains domain models passed between layers.
package model

import (
	"maps"
	"slices"
	"time"
)

// Field names used in ChangedFields and as canonical row columns.
const (
	FieldPhone           = "phone"
	FieldLaborID         = "labor_id"
	FieldFullName        = "full_name"
	FieldPosition        = "position"
	FieldApplicationDate = "application_date"

	// ExtraFieldPrefix prefixes free-form columns in ChangedFields.
	ExtraFieldPrefix = "extra."
)

// ApplicantRecord is one applicant's current known state in the pool.
type ApplicantRecord struct {
	PoolID          string            `json:"pool_id"`
	Phone           string            `json:"phone"`
	LaborID         string            `json:"labor_id"`
	FullName        string            `json:"full_name"`
	NameKey         string            `json:"name_key"`
	Position        string            `json:"position"`
	ApplicationDate string            `json:"application_date"`
	Extra           map[string]string `json:"extra,omitempty"`
	FirstSeenAt     time.Time         `json:"first_seen_at"`
	LastUpdatedAt   time.Time         `json:"last_updated_at"`
	SourceBatches   []string          `json:"source_batches"`
}

// Clone returns a deep copy so callers can mutate without touching the pool.
func (r ApplicantRecord) Clone() ApplicantRecord { //nolint:gocritic // hugeParam: value receiver keeps copies explicit
	out := r
	out.Extra = maps.Clone(r.Extra)
	out.SourceBatches = slices.Clone(r.SourceBatches)
	return out
}

// HasStrongKey reports whether the record carries a phone or labor ID.
func (r *ApplicantRecord) HasStrongKey() bool {
	return r.Phone != "" || r.LaborID != ""
}

// LastBatch returns the most recent contributing batch, or "".
func (r *ApplicantRecord) LastBatch() string {
	if len(r.SourceBatches) == 0 {
		return ""
	}
	return r.SourceBatches[len(r.SourceBatches)-1]
}
