package model

import "strings"

// Row is one parsed spreadsheet row: column name -> cell text.
type Row struct {
	// Ref is an optional caller label (e.g. "sheet1!A7"); outcomes fall back
	// to the row index when it is empty.
	Ref    string
	Fields map[string]string
}

// Column headers used by the Amharic spreadsheet exports.
const (
	ColumnPhoneAm           = "ስልክ/ሞባይል"
	ColumnLaborIDAm         = "የሰራተኛ መለያ ቁጥር"
	ColumnFullNameAm        = "ሙሉ ስም"
	ColumnPositionAm        = "የስራ መደብ"
	ColumnApplicationDateAm = "የመመዝገቢያ ቀን"
	ColumnSourceFileAm      = "የተመዘገበበት ፋይል"
)

// ColumnSourceFile is the extra column that carries the uploaded file name.
const ColumnSourceFile = "source_file"

// columnAliases maps header spellings (lower-cased, "_"/"-" read as spaces)
// to canonical field names.
var columnAliases = map[string]string{
	"phone":        FieldPhone,
	"mobile":       FieldPhone,
	"phone number": FieldPhone,
	"telephone":    FieldPhone,
	ColumnPhoneAm:  FieldPhone,

	"labor id":      FieldLaborID,
	"labour id":     FieldLaborID,
	"worker id":     FieldLaborID,
	ColumnLaborIDAm: FieldLaborID,

	"full name":      FieldFullName,
	"name":           FieldFullName,
	ColumnFullNameAm: FieldFullName,

	"position":       FieldPosition,
	"job":            FieldPosition,
	"job title":      FieldPosition,
	ColumnPositionAm: FieldPosition,

	"application date":      FieldApplicationDate,
	"date":                  FieldApplicationDate,
	"registration date":     FieldApplicationDate,
	ColumnApplicationDateAm: FieldApplicationDate,

	"source file":      ColumnSourceFile,
	ColumnSourceFileAm: ColumnSourceFile,
}

var aliasReplacer = strings.NewReplacer("_", " ", "-", " ")

// CanonicalColumn resolves a header to its canonical field name. Unknown
// headers are returned trimmed and unchanged so they land in Extra.
func CanonicalColumn(header string) string {
	h := strings.Join(strings.Fields(header), " ")
	key := strings.Join(strings.Fields(aliasReplacer.Replace(strings.ToLower(h))), " ")
	if c, ok := columnAliases[key]; ok {
		return c
	}
	return h
}
