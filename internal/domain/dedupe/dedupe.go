// Package dedupe merges batches of applicant rows into a pool.
//
// Identity is resolved by a cascade of exact lookups after normalization:
// phone first, then labor ID, then (only for rows and records without any
// strong key) the normalized name. Contradicting strong keys are reported as
// CONFLICT outcomes and never abort a batch.
package dedupe

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/applicantpool/internal/domain/model"
	"github.com/okian/applicantpool/internal/domain/normalize"
	"github.com/okian/applicantpool/internal/domain/pool"
	"github.com/okian/applicantpool/pkg/logger"
)

// Engine applies batches of rows to a pool.
type Engine struct {
	normalizer *normalize.Normalizer
	now        func() time.Time
	newID      func() string
	log        logger.Logger
}

// NewEngine creates an Engine. Defaults: month-first date parsing, UTC wall
// clock and random UUID pool IDs.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		normalizer: normalize.New(),
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
		log:        logger.Get().Named("dedupe"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// IngestBatch merges rows into a copy of p and returns the copy together
// with one outcome per row, in row order. p itself is never modified.
//
// Malformed row data never produces an error. An error means the call was
// structurally invalid or the pool rejected a mutation; in that case no
// pool is returned.
func (e *Engine) IngestBatch(ctx context.Context, p *pool.Pool, rows []model.Row, batchID string) (*pool.Pool, []model.MergeOutcome, error) {
	if p == nil {
		return nil, nil, ErrNilPool
	}
	batchID = strings.TrimSpace(batchID)
	if batchID == "" {
		return nil, nil, ErrEmptyBatchID
	}

	next := p.Clone()
	now := e.now()
	outcomes := make([]model.MergeOutcome, 0, len(rows))
	for i := range rows {
		out, err := e.ingestRow(next, i, &rows[i], batchID, now)
		if err != nil {
			return nil, nil, fmt.Errorf("batch %s row %d: %w", batchID, i, err)
		}
		if out.Action == model.ActionConflict {
			e.log.Warn(ctx, "identity conflict",
				logger.String("batch_id", batchID),
				logger.Int("row", i),
				logger.String("pool_id", out.PoolID),
				logger.String("field", out.ConflictField),
				logger.String("conflict_with", out.ConflictWith))
		}
		outcomes = append(outcomes, out)
	}

	s := model.Summarize(outcomes)
	e.log.Info(ctx, "batch merged",
		logger.String("batch_id", batchID),
		logger.Int("rows", s.Rows),
		logger.Int("created", s.Created),
		logger.Int("updated", s.Updated),
		logger.Int("conflicts", s.Conflicts),
		logger.Int("skipped", s.Skipped),
		logger.Int("pool_size", next.Len()))
	return next, outcomes, nil
}

func (e *Engine) ingestRow(p *pool.Pool, i int, row *model.Row, batchID string, now time.Time) (model.MergeOutcome, error) {
	n := e.normalizer.Row(row.Fields)
	out := model.MergeOutcome{
		Row:           i,
		Ref:           row.Ref,
		MatchedBy:     model.MatchNone,
		ChangedFields: []string{},
		Issues:        n.Issues,
	}

	if !n.HasStrongKey() && n.NameKey == "" {
		out.Action = model.ActionSkipped
		return out, nil
	}

	id, by := match(p, &n)
	if id == "" {
		rec := model.ApplicantRecord{
			PoolID:        e.newID(),
			FirstSeenAt:   now,
			LastUpdatedAt: now,
			SourceBatches: []string{batchID},
		}
		out.ChangedFields = append(acquireIdentity(&rec, &n), mergeAttributes(&rec, &n)...)
		if err := p.Insert(rec); err != nil {
			return out, err
		}
		out.PoolID = rec.PoolID
		out.Action = model.ActionCreated
		return out, nil
	}

	rec, ok := p.Get(id)
	if !ok {
		return out, fmt.Errorf("%w: %s", pool.ErrNotFound, id)
	}
	out.PoolID = id
	out.MatchedBy = by

	var changed []string
	if field, owner := conflict(p, &rec, &n); field != "" {
		out.Action = model.ActionConflict
		out.ConflictField = field
		out.ConflictWith = owner
		changed = mergeAttributes(&rec, &n)
	} else {
		out.Action = model.ActionUpdated
		changed = append(acquireIdentity(&rec, &n), mergeAttributes(&rec, &n)...)
	}

	appended := appendBatch(&rec, batchID)
	if len(changed) > 0 || appended {
		rec.LastUpdatedAt = now
	}
	if err := p.Replace(rec); err != nil {
		return out, err
	}
	out.ChangedFields = changed
	return out, nil
}

// acquireIdentity fills identity fields rec does not have yet. Existing
// identity values are never overwritten.
func acquireIdentity(rec *model.ApplicantRecord, n *normalize.Normalized) []string {
	changed := []string{}
	if rec.Phone == "" && n.Phone != "" {
		rec.Phone = n.Phone
		changed = append(changed, model.FieldPhone)
	}
	if rec.LaborID == "" && n.LaborID != "" {
		rec.LaborID = n.LaborID
		changed = append(changed, model.FieldLaborID)
	}
	if rec.FullName == "" && n.FullName != "" {
		rec.FullName = n.FullName
		rec.NameKey = n.NameKey
		changed = append(changed, model.FieldFullName)
	}
	return changed
}

// mergeAttributes applies last-write-wins to the non-identity fields.
// Blank incoming values leave existing values alone.
func mergeAttributes(rec *model.ApplicantRecord, n *normalize.Normalized) []string {
	changed := []string{}
	if n.Position != "" && n.Position != rec.Position {
		rec.Position = n.Position
		changed = append(changed, model.FieldPosition)
	}
	if n.ApplicationDate != "" && n.ApplicationDate != rec.ApplicationDate {
		rec.ApplicationDate = n.ApplicationDate
		changed = append(changed, model.FieldApplicationDate)
	}

	cols := make([]string, 0, len(n.Extra))
	for col := range n.Extra {
		cols = append(cols, col)
	}
	slices.Sort(cols)
	for _, col := range cols {
		v := n.Extra[col]
		if v == "" || rec.Extra[col] == v {
			continue
		}
		if rec.Extra == nil {
			rec.Extra = make(map[string]string)
		}
		rec.Extra[col] = v
		changed = append(changed, model.ExtraFieldPrefix+col)
	}
	return changed
}

// appendBatch records batchID unless it is already the latest entry.
func appendBatch(rec *model.ApplicantRecord, batchID string) bool {
	if rec.LastBatch() == batchID {
		return false
	}
	rec.SourceBatches = append(rec.SourceBatches, batchID)
	return true
}
