package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/okian/applicantpool/internal/adapters/lock"
	"github.com/okian/applicantpool/internal/adapters/mq/queue"
	service "github.com/okian/applicantpool/internal/app"
	"github.com/okian/applicantpool/internal/domain/model"
)

// refKey is the optional row member carrying the caller's row reference.
const refKey = "_ref"

// BatchDependencies defines the interface for batch ingestion.
type BatchDependencies interface {
	Submit(ctx context.Context, b model.Batch) (model.BatchResult, error)
}

// BatchesHandler handles batch uploads.
type BatchesHandler struct {
	deps         BatchDependencies
	maxBodyBytes int64
}

// NewBatchesHandler creates a new batches handler.
func NewBatchesHandler(deps BatchDependencies, maxBodyBytes int64) *BatchesHandler {
	return &BatchesHandler{deps: deps, maxBodyBytes: maxBodyBytes}
}

// batchRequest mirrors the body of POST /batches. Row values may be JSON
// strings, numbers or booleans; spreadsheets export phones as numbers.
type batchRequest struct {
	BatchID    string           `json:"batch_id"`
	SourceFile string           `json:"source_file"`
	Rows       []map[string]any `json:"rows"`
}

func (b *batchRequest) toBatch() (model.Batch, error) {
	if b.Rows == nil {
		return model.Batch{}, errors.New("missing rows")
	}
	out := model.Batch{ID: b.BatchID, SourceFile: b.SourceFile, Rows: make([]model.Row, 0, len(b.Rows))}
	for i, raw := range b.Rows {
		row := model.Row{Fields: make(map[string]string, len(raw))}
		for col, v := range raw {
			s, err := cellString(v)
			if err != nil {
				return model.Batch{}, fmt.Errorf("row %d column %q: %w", i, col, err)
			}
			if col == refKey {
				row.Ref = s
				continue
			}
			row.Fields[col] = s
		}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

func cellString(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	case bool:
		return strconv.FormatBool(t), nil
	default:
		return "", fmt.Errorf("unsupported value of type %T", v)
	}
}

// HandlePostBatch handles POST /batches requests. The response carries the
// merge outcome of every row in input order.
func (h *BatchesHandler) HandlePostBatch(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_batch"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	dec.UseNumber()
	var req batchRequest
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "too_large", WrapKind(op, ErrTooLarge, err))
			return
		}
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	batch, err := req.toBatch()
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	res, err := h.deps.Submit(r.Context(), batch)
	if err != nil {
		status, code, kind := classify(err)
		writeError(w, status, code, WrapKind(op, kind, err))
		return
	}
	if res.Outcomes == nil {
		res.Outcomes = []model.MergeOutcome{}
	}
	writeJSON(w, http.StatusOK, res)
}

// classify maps submit errors to a status, an error code and an API kind.
func classify(err error) (int, string, error) {
	switch {
	case errors.Is(err, service.ErrBatchTooLarge):
		return http.StatusRequestEntityTooLarge, "too_large", ErrTooLarge
	case errors.Is(err, queue.ErrFull):
		return http.StatusTooManyRequests, "backpressure", ErrBackpressure
	case errors.Is(err, service.ErrNotStarted),
		errors.Is(err, queue.ErrClosed),
		errors.Is(err, queue.ErrStopped),
		errors.Is(err, lock.ErrNotAcquired),
		errors.Is(err, lock.ErrLeaseLost):
		return http.StatusServiceUnavailable, "unavailable", ErrUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "timeout", ErrUnavailable
	default:
		return http.StatusInternalServerError, "internal_error", nil
	}
}
