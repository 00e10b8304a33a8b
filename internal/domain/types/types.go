// Package types contains common types used across the application
package types

import "github.com/okian/applicantpool/internal/domain/model"

// PositionCount is the number of pooled applicants for one position.
type PositionCount struct {
	Position string `json:"position"`
	Count    int    `json:"count"`
}

// PoolStats summarizes the identity coverage of a pool.
type PoolStats struct {
	Total       int `json:"total"`
	WithPhone   int `json:"with_phone"`
	WithLaborID int `json:"with_labor_id"`
	// NameOnly counts records that can only be matched by name.
	NameOnly  int             `json:"name_only"`
	Positions []PositionCount `json:"positions"`
}

// ServiceStats is the monitoring view of the ingest service.
type ServiceStats struct {
	Started       bool      `json:"started"`
	QueueLength   int       `json:"queue_length"`
	QueueCapacity int       `json:"queue_capacity"`
	MaxBatchRows  int       `json:"max_batch_rows"`
	BatchesMerged int64     `json:"batches_merged"`
	Pool          PoolStats `json:"pool"`
	// RecentlyUpdated is most recently updated first.
	RecentlyUpdated []model.ApplicantRecord `json:"recently_updated"`
}
