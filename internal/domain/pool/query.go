package pool

import (
	"cmp"
	"slices"
	"strings"

	"github.com/okian/applicantpool/internal/domain/model"
	"github.com/okian/applicantpool/internal/domain/types"
)

// Query filters pooled records. Zero fields do not filter.
type Query struct {
	// Position matches case-insensitively as a substring.
	Position string
	// From and To bound ApplicationDate (YYYY-MM-DD), both inclusive.
	// Records without a date never match a bounded query.
	From string
	To   string
	// Limit caps the result; 0 or negative means no cap.
	Limit int
}

// Match reports whether rec satisfies the query filters (Limit ignored).
func (q *Query) Match(rec *model.ApplicantRecord) bool {
	if q.Position != "" &&
		!strings.Contains(strings.ToLower(rec.Position), strings.ToLower(strings.TrimSpace(q.Position))) {
		return false
	}
	if q.From != "" || q.To != "" {
		if rec.ApplicationDate == "" {
			return false
		}
		// ISO dates order lexically.
		if q.From != "" && rec.ApplicationDate < q.From {
			return false
		}
		if q.To != "" && rec.ApplicationDate > q.To {
			return false
		}
	}
	return true
}

// Records returns copies of all records in insertion order.
func (p *Pool) Records() []model.ApplicantRecord {
	out := make([]model.ApplicantRecord, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.records[id].Clone())
	}
	return out
}

// Filter returns copies of the records matching q, in insertion order.
func (p *Pool) Filter(q Query) []model.ApplicantRecord {
	var out []model.ApplicantRecord
	for _, id := range p.order {
		rec := p.records[id]
		if !q.Match(rec) {
			continue
		}
		out = append(out, rec.Clone())
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out
}

// Positions returns the distinct non-empty positions, sorted. Positions
// differing only in case are one position, shown as first ingested.
func (p *Pool) Positions() []string {
	counts, display := p.positionCounts()
	out := make([]string, 0, len(counts))
	for key := range counts {
		out = append(out, display[key])
	}
	slices.Sort(out)
	return out
}

// positionCounts counts records per case-folded position and remembers the
// display form of the oldest record carrying each one.
func (p *Pool) positionCounts() (counts map[string]int, display map[string]string) {
	counts = make(map[string]int)
	display = make(map[string]string)
	for _, id := range p.order {
		pos := p.records[id].Position
		if pos == "" {
			continue
		}
		key := strings.ToLower(pos)
		if _, ok := display[key]; !ok {
			display[key] = pos
		}
		counts[key]++
	}
	return counts, display
}

// Stats summarizes identity coverage and per-position counts. Positions are
// ordered by count desc, then name asc.
func (p *Pool) Stats() types.PoolStats {
	s := types.PoolStats{Total: len(p.records), Positions: []types.PositionCount{}}
	for _, rec := range p.records {
		if rec.Phone != "" {
			s.WithPhone++
		}
		if rec.LaborID != "" {
			s.WithLaborID++
		}
		if !rec.HasStrongKey() {
			s.NameOnly++
		}
	}
	counts, display := p.positionCounts()
	for key, n := range counts {
		s.Positions = append(s.Positions, types.PositionCount{Position: display[key], Count: n})
	}
	slices.SortFunc(s.Positions, func(a, b types.PositionCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Position, b.Position)
	})
	return s
}

// RecentlyUpdated returns up to n records, most recently updated first.
// Ties keep insertion order.
func (p *Pool) RecentlyUpdated(n int) []model.ApplicantRecord {
	recs := make([]*model.ApplicantRecord, 0, len(p.order))
	for _, id := range p.order {
		recs = append(recs, p.records[id])
	}
	slices.SortStableFunc(recs, func(a, b *model.ApplicantRecord) int {
		return b.LastUpdatedAt.Compare(a.LastUpdatedAt)
	})
	if n >= 0 && n < len(recs) {
		recs = recs[:n]
	}
	out := make([]model.ApplicantRecord, len(recs))
	for i, rec := range recs {
		out[i] = rec.Clone()
	}
	return out
}
