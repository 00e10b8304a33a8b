package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	service "github.com/okian/applicantpool/internal/app"
)

// ApplicantDependencies defines the interface for pool reads.
type ApplicantDependencies interface {
	Applicants(ctx context.Context, q Query) []Record
	Applicant(ctx context.Context, poolID string) (Record, error)
	Positions(ctx context.Context) []string
}

// ApplicantsHandler handles pool read requests.
type ApplicantsHandler struct {
	deps     ApplicantDependencies
	maxLimit int
}

// NewApplicantsHandler creates a new applicants handler.
func NewApplicantsHandler(deps ApplicantDependencies, maxLimit int) *ApplicantsHandler {
	return &ApplicantsHandler{deps: deps, maxLimit: maxLimit}
}

type listResponse struct {
	Count      int      `json:"count"`
	Applicants []Record `json:"applicants"`
}

type positionsResponse struct {
	Positions []string `json:"positions"`
}

// HandleListApplicants handles GET /applicants?position=&from=&to=&limit=.
func (h *ApplicantsHandler) HandleListApplicants(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_applicants"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	q, err := h.parseQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	recs := h.deps.Applicants(r.Context(), q)
	if recs == nil {
		recs = []Record{}
	}
	writeJSON(w, http.StatusOK, listResponse{Count: len(recs), Applicants: recs})
}

func (h *ApplicantsHandler) parseQuery(r *http.Request) (Query, error) {
	v := r.URL.Query()
	q := Query{
		Position: strings.TrimSpace(v.Get("position")),
		From:     strings.TrimSpace(v.Get("from")),
		To:       strings.TrimSpace(v.Get("to")),
		Limit:    h.maxLimit,
	}
	for name, d := range map[string]string{"from": q.From, "to": q.To} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(time.DateOnly, d); err != nil {
			return Query{}, fmt.Errorf("invalid %s; must be YYYY-MM-DD", name)
		}
	}
	if q.From != "" && q.To != "" && q.From > q.To {
		return Query{}, errors.New("from is after to")
	}
	if s := v.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return Query{}, errors.New("invalid limit")
		}
		if n > h.maxLimit {
			return Query{}, fmt.Errorf("limit exceeds %d", h.maxLimit)
		}
		q.Limit = n
	}
	return q, nil
}

// HandleGetApplicant handles GET /applicants/{pool_id} requests.
func (h *ApplicantsHandler) HandleGetApplicant(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_applicant"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	// Extract path parameter after /applicants/
	id := strings.TrimPrefix(r.URL.Path, "/applicants/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	rec, err := h.deps.Applicant(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// HandleGetPositions handles GET /positions requests.
func (h *ApplicantsHandler) HandleGetPositions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	positions := h.deps.Positions(r.Context())
	if positions == nil {
		positions = []string{}
	}
	writeJSON(w, http.StatusOK, positionsResponse{Positions: positions})
}
