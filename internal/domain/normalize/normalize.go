// Package normalize canonicalizes applicant row fields so identity
// comparisons are stable across Amharic/Latin spreadsheet input.
//
// Every function here is pure and never fails: malformed or missing input
// normalizes to the empty string and is reported as an issue instead.
package normalize

import (
	"sort"
	"strings"

	"github.com/okian/applicantpool/internal/domain/model"
)

// Normalized is a row after canonicalization.
type Normalized struct {
	Phone           string
	LaborID         string
	FullName        string
	NameKey         string
	Position        string
	ApplicationDate string
	Extra           map[string]string
	Issues          []string
}

// HasStrongKey reports whether phone or labor ID survived normalization.
func (n *Normalized) HasStrongKey() bool {
	return n.Phone != "" || n.LaborID != ""
}

// Normalizer turns raw row fields into Normalized values.
type Normalizer struct {
	dayFirst bool
}

// New creates a Normalizer. The zero configuration reads ambiguous
// slash dates month first.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Row normalizes one parsed row. Headers are resolved through
// model.CanonicalColumn; unknown headers become Extra entries.
func (n *Normalizer) Row(fields map[string]string) Normalized {
	var out Normalized

	// Sorted iteration keeps the result deterministic when two headers
	// alias the same canonical field.
	headers := make([]string, 0, len(fields))
	for h := range fields {
		headers = append(headers, h)
	}
	sort.Strings(headers)

	raw := make(map[string]string, len(fields))
	for _, h := range headers {
		v := strings.TrimSpace(fields[h])
		if v == "" {
			continue
		}
		col := model.CanonicalColumn(h)
		if col == "" {
			continue
		}
		if _, taken := raw[col]; taken {
			continue
		}
		raw[col] = v
	}

	var malformed bool
	out.Phone, malformed = phone(raw[model.FieldPhone])
	if malformed {
		out.Issues = append(out.Issues, model.IssuePhoneMalformed)
	}
	out.LaborID = LaborID(raw[model.FieldLaborID])
	out.FullName = FullName(raw[model.FieldFullName])
	out.NameKey = NameKey(raw[model.FieldFullName])
	out.Position = Position(raw[model.FieldPosition])

	if d := raw[model.FieldApplicationDate]; d != "" {
		iso, ok := n.Date(d)
		if !ok {
			out.Issues = append(out.Issues, model.IssueDateUnparseable)
		}
		out.ApplicationDate = iso
	}

	for col, v := range raw {
		switch col {
		case model.FieldPhone, model.FieldLaborID, model.FieldFullName,
			model.FieldPosition, model.FieldApplicationDate:
			continue
		}
		if out.Extra == nil {
			out.Extra = make(map[string]string)
		}
		out.Extra[col] = collapse(v)
	}

	if !out.HasStrongKey() {
		out.Issues = append(out.Issues, model.IssueNoStrongKey)
		if out.NameKey == "" {
			out.Issues = append(out.Issues, model.IssueNoIdentity)
		}
	}
	return out
}

// Position trims and collapses whitespace; case is preserved for display.
func Position(raw string) string {
	return collapse(raw)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
