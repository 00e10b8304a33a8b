package dedupe

import (
	"github.com/okian/applicantpool/internal/domain/model"
	"github.com/okian/applicantpool/internal/domain/normalize"
	"github.com/okian/applicantpool/internal/domain/pool"
)

// matcher is one step of the identity cascade: a key taken from the
// normalized row and the pool index it is looked up in.
type matcher struct {
	by     model.MatchKey
	field  string
	row    func(*normalize.Normalized) string
	record func(*model.ApplicantRecord) string
	lookup func(*pool.Pool, string) (string, bool)
	// weak matchers only run for rows that carry no strong key.
	weak bool
}

// cascade lists matchers in priority order; the first hit wins.
var cascade = []matcher{
	{
		by:     model.MatchPhone,
		field:  model.FieldPhone,
		row:    func(n *normalize.Normalized) string { return n.Phone },
		record: func(r *model.ApplicantRecord) string { return r.Phone },
		lookup: (*pool.Pool).LookupPhone,
	},
	{
		by:     model.MatchLaborID,
		field:  model.FieldLaborID,
		row:    func(n *normalize.Normalized) string { return n.LaborID },
		record: func(r *model.ApplicantRecord) string { return r.LaborID },
		lookup: (*pool.Pool).LookupLaborID,
	},
	{
		by:     model.MatchName,
		field:  model.FieldFullName,
		row:    func(n *normalize.Normalized) string { return n.NameKey },
		record: func(r *model.ApplicantRecord) string { return r.NameKey },
		lookup: (*pool.Pool).LookupName,
		weak:   true,
	},
}

// match runs the cascade and returns the matched pool ID and key.
func match(p *pool.Pool, n *normalize.Normalized) (string, model.MatchKey) {
	strong := n.HasStrongKey()
	for i := range cascade {
		m := &cascade[i]
		if m.weak && strong {
			continue
		}
		v := m.row(n)
		if v == "" {
			continue
		}
		if id, ok := m.lookup(p, v); ok {
			return id, m.by
		}
	}
	return "", model.MatchNone
}

// conflict reports the first strong key on which the row contradicts rec.
// A key contradicts when both sides are set and differ, or when rec lacks
// it but the row's value already belongs to another record. owner is the
// other record holding the row's value, if any.
func conflict(p *pool.Pool, rec *model.ApplicantRecord, n *normalize.Normalized) (field, owner string) {
	for i := range cascade {
		m := &cascade[i]
		if m.weak {
			continue
		}
		in := m.row(n)
		if in == "" {
			continue
		}
		have := m.record(rec)
		if have == in {
			continue
		}
		holder, held := m.lookup(p, in)
		if held && holder == rec.PoolID {
			continue
		}
		if have != "" || held {
			if held {
				owner = holder
			}
			return m.field, owner
		}
	}
	return "", ""
}
