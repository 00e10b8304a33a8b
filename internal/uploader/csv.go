package uploader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/okian/applicantpool/internal/domain/model"
)

const utf8BOM = "\ufeff"

// ParseSeparator maps a flag value to a CSV separator. Empty means comma.
func ParseSeparator(s string) (rune, error) {
	if s == "\t" {
		return '\t', nil
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", ",", "comma":
		return ',', nil
	case ";", "semicolon":
		return ';', nil
	case "\\t", "tab":
		return '\t', nil
	default:
		return 0, fmt.Errorf("unsupported separator %q", s)
	}
}

// ReadRows reads a CSV export with a header row. Each data line becomes a
// row whose Ref is name:line. Lines with only blank cells are dropped.
func ReadRows(r io.Reader, sep rune, name string) ([]model.Row, error) {
	reader := csv.NewReader(r)
	reader.Comma = sep
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("%s: header: %w", name, err)
	}
	if len(headers) > 0 {
		headers[0] = strings.TrimPrefix(headers[0], utf8BOM)
	}

	var rows []model.Row
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		line, _ := reader.FieldPos(0)

		fields := make(map[string]string, len(headers))
		blank := true
		for i, h := range headers {
			h = strings.TrimSpace(h)
			if h == "" || i >= len(record) {
				continue
			}
			fields[h] = record[i]
			if strings.TrimSpace(record[i]) != "" {
				blank = false
			}
		}
		if blank {
			continue
		}
		rows = append(rows, model.Row{Ref: fmt.Sprintf("%s:%d", name, line), Fields: fields})
	}
	return rows, nil
}

// chunk splits rows into batches of at most n rows. n <= 0 keeps one batch.
func chunk(rows []model.Row, n int) [][]model.Row {
	if n <= 0 || len(rows) <= n {
		return [][]model.Row{rows}
	}
	var out [][]model.Row
	for len(rows) > 0 {
		end := min(n, len(rows))
		out = append(out, rows[:end])
		rows = rows[end:]
	}
	return out
}
