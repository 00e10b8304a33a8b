// Package pool holds the deduplicated applicant set together with its
// secondary indices.
//
// Every mutation goes through Insert or Replace, which validate the new
// state before touching any map, so the primary set and the phone, labor ID
// and name indices never disagree. A Pool is not safe for concurrent
// mutation; writers work on a Clone and publish it when done.
package pool

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/okian/applicantpool/internal/domain/model"
)

// Pool is an indexed set of applicant records keyed by pool ID.
type Pool struct {
	records map[string]*model.ApplicantRecord
	order   []string       // insertion order of pool IDs
	seq     map[string]int // pool ID to its index in order

	byPhone map[string]string
	byLabor map[string]string
	// byName holds only records without any strong key, oldest first.
	byName map[string][]string
}

// New returns an empty pool.
func New() *Pool {
	return &Pool{
		records: make(map[string]*model.ApplicantRecord),
		seq:     make(map[string]int),
		byPhone: make(map[string]string),
		byLabor: make(map[string]string),
		byName:  make(map[string][]string),
	}
}

// FromRecords rebuilds a pool from persisted records, in the given order.
// It fails with ErrDuplicateKey or ErrDuplicateID when the records violate
// the pool's uniqueness invariants.
func FromRecords(recs []model.ApplicantRecord) (*Pool, error) {
	p := New()
	for i := range recs {
		if err := p.Insert(recs[i]); err != nil {
			return nil, fmt.Errorf("record %d (%s): %w", i, recs[i].PoolID, err)
		}
	}
	return p, nil
}

// Clone returns a deep copy. Mutating the copy never affects p.
func (p *Pool) Clone() *Pool {
	c := &Pool{
		records: make(map[string]*model.ApplicantRecord, len(p.records)),
		order:   slices.Clone(p.order),
		seq:     make(map[string]int, len(p.seq)),
		byPhone: make(map[string]string, len(p.byPhone)),
		byLabor: make(map[string]string, len(p.byLabor)),
		byName:  make(map[string][]string, len(p.byName)),
	}
	for id, rec := range p.records {
		r := rec.Clone()
		c.records[id] = &r
	}
	for k, v := range p.seq {
		c.seq[k] = v
	}
	for k, v := range p.byPhone {
		c.byPhone[k] = v
	}
	for k, v := range p.byLabor {
		c.byLabor[k] = v
	}
	for k, v := range p.byName {
		c.byName[k] = slices.Clone(v)
	}
	return c
}

// Len returns the number of records.
func (p *Pool) Len() int {
	return len(p.records)
}

// Get returns a copy of the record with the given pool ID.
func (p *Pool) Get(poolID string) (model.ApplicantRecord, bool) {
	rec, ok := p.records[poolID]
	if !ok {
		return model.ApplicantRecord{}, false
	}
	return rec.Clone(), true
}

// LookupPhone returns the pool ID owning a normalized phone.
func (p *Pool) LookupPhone(phone string) (string, bool) {
	if phone == "" {
		return "", false
	}
	id, ok := p.byPhone[phone]
	return id, ok
}

// LookupLaborID returns the pool ID owning a normalized labor ID.
func (p *Pool) LookupLaborID(laborID string) (string, bool) {
	if laborID == "" {
		return "", false
	}
	id, ok := p.byLabor[laborID]
	return id, ok
}

// LookupName returns the oldest record with the given name key among
// records that carry neither a phone nor a labor ID.
func (p *Pool) LookupName(nameKey string) (string, bool) {
	if nameKey == "" {
		return "", false
	}
	ids := p.byName[nameKey]
	if len(ids) == 0 {
		return "", false
	}
	return ids[0], true
}

// Insert adds a new record and indexes it.
func (p *Pool) Insert(rec model.ApplicantRecord) error { //nolint:gocritic // hugeParam: records are stored by copy
	if rec.PoolID == "" {
		return ErrEmptyPoolID
	}
	if _, exists := p.records[rec.PoolID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, rec.PoolID)
	}
	if len(rec.SourceBatches) == 0 {
		return ErrNoBatches
	}
	if err := p.checkKeys(&rec); err != nil {
		return err
	}

	r := rec.Clone()
	p.records[r.PoolID] = &r
	p.seq[r.PoolID] = len(p.order)
	p.order = append(p.order, r.PoolID)
	p.index(&r)
	return nil
}

// Replace swaps in a new version of an existing record and re-indexes it.
func (p *Pool) Replace(rec model.ApplicantRecord) error { //nolint:gocritic // hugeParam: records are stored by copy
	old, ok := p.records[rec.PoolID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, rec.PoolID)
	}
	if len(rec.SourceBatches) == 0 {
		return ErrNoBatches
	}
	if len(rec.SourceBatches) < len(old.SourceBatches) {
		return ErrBatchesShrunk
	}
	if err := p.checkKeys(&rec); err != nil {
		return err
	}

	r := rec.Clone()
	// A record stays in its name bucket while its name key and name-only
	// status are unchanged.
	rebucket := old.NameKey != r.NameKey || old.HasStrongKey() != r.HasStrongKey()
	p.unindexKeys(old, rebucket)
	p.records[r.PoolID] = &r
	p.indexKeys(&r, rebucket)
	return nil
}

// checkKeys fails when rec's strong keys belong to a different record.
func (p *Pool) checkKeys(rec *model.ApplicantRecord) error {
	if owner, ok := p.LookupPhone(rec.Phone); ok && owner != rec.PoolID {
		return fmt.Errorf("%w: phone %s held by %s", ErrDuplicateKey, rec.Phone, owner)
	}
	if owner, ok := p.LookupLaborID(rec.LaborID); ok && owner != rec.PoolID {
		return fmt.Errorf("%w: labor_id %s held by %s", ErrDuplicateKey, rec.LaborID, owner)
	}
	return nil
}

func (p *Pool) index(rec *model.ApplicantRecord) {
	p.indexKeys(rec, true)
}

func (p *Pool) indexKeys(rec *model.ApplicantRecord, withName bool) {
	if rec.Phone != "" {
		p.byPhone[rec.Phone] = rec.PoolID
	}
	if rec.LaborID != "" {
		p.byLabor[rec.LaborID] = rec.PoolID
	}
	if withName && !rec.HasStrongKey() && rec.NameKey != "" {
		p.byName[rec.NameKey] = p.insertByAge(p.byName[rec.NameKey], rec.PoolID)
	}
}

func (p *Pool) unindexKeys(rec *model.ApplicantRecord, withName bool) {
	if rec.Phone != "" {
		delete(p.byPhone, rec.Phone)
	}
	if rec.LaborID != "" {
		delete(p.byLabor, rec.LaborID)
	}
	if !withName {
		return
	}
	if ids, ok := p.byName[rec.NameKey]; ok {
		ids = slices.DeleteFunc(ids, func(id string) bool { return id == rec.PoolID })
		if len(ids) == 0 {
			delete(p.byName, rec.NameKey)
		} else {
			p.byName[rec.NameKey] = ids
		}
	}
}

// insertByAge keeps a name bucket in pool insertion order so LookupName
// always returns the oldest candidate.
func (p *Pool) insertByAge(ids []string, id string) []string {
	pos := p.seq[id]
	if len(ids) == 0 || p.seq[ids[len(ids)-1]] < pos {
		return append(ids, id)
	}
	i, _ := slices.BinarySearchFunc(ids, pos, func(other string, target int) int {
		return cmp.Compare(p.seq[other], target)
	})
	return slices.Insert(ids, i, id)
}
