package model

// Batch is one upload's worth of parsed rows.
type Batch struct {
	ID string
	// SourceFile is the uploaded file name, recorded on every row as the
	// extra column source_file.
	SourceFile string
	Rows       []Row
}

// BatchResult is what a merged batch reports back to its submitter.
type BatchResult struct {
	BatchID  string         `json:"batch_id"`
	Summary  Summary        `json:"summary"`
	Outcomes []MergeOutcome `json:"outcomes"`
	PoolSize int            `json:"pool_size"`
	// Err is set when the batch was not applied at all.
	Err error `json:"-"`
}

// WithSourceFile returns the batch rows with source_file filled in where
// the row does not carry its own value. The input rows are not modified.
func (b *Batch) WithSourceFile() []Row {
	if b.SourceFile == "" {
		return b.Rows
	}
	out := make([]Row, len(b.Rows))
	for i, r := range b.Rows {
		fields := make(map[string]string, len(r.Fields)+1)
		hasOwn := false
		for k, v := range r.Fields {
			fields[k] = v
			if CanonicalColumn(k) == ColumnSourceFile && v != "" {
				hasOwn = true
			}
		}
		if !hasOwn {
			fields[ColumnSourceFile] = b.SourceFile
		}
		out[i] = Row{Ref: r.Ref, Fields: fields}
	}
	return out
}
