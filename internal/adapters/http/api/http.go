// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/applicantpool/internal/domain/model"
	"github.com/okian/applicantpool/internal/domain/pool"
	"github.com/okian/applicantpool/internal/domain/types"
)

// Default limits.
const (
	defaultMaxLimit     = 1000
	defaultMaxBodyBytes = 32 << 20
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	BatchDependencies
	ApplicantDependencies
}

// StatsProvider defines the interface for getting service statistics.
type StatsProvider interface {
	GetStats() types.ServiceStats
}

// Record mirrors the read shape returned by applicant queries.
type Record = model.ApplicantRecord

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	batchesHandler    *BatchesHandler
	applicantsHandler *ApplicantsHandler

	maxLimit     int
	maxBodyBytes int64
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		maxLimit:     defaultMaxLimit,
		maxBodyBytes: defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(statsProvider)
	s.batchesHandler = NewBatchesHandler(deps, s.maxBodyBytes)
	s.applicantsHandler = NewApplicantsHandler(deps, s.maxLimit)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/metrics", s.healthHandler.HandleHealth)
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/batches", MetricsMiddleware(s.batchesHandler.HandlePostBatch, "batches"))
	mux.HandleFunc("/applicants", MetricsMiddleware(s.applicantsHandler.HandleListApplicants, "applicants"))
	mux.HandleFunc("/applicants/", MetricsMiddleware(s.applicantsHandler.HandleGetApplicant, "applicant"))
	mux.HandleFunc("/positions", MetricsMiddleware(s.applicantsHandler.HandleGetPositions, "positions"))
}

// Query aliases the pool query so dependencies need not import pool.
type Query = pool.Query

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
