package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Phone length bounds after canonicalization (E.164 allows at most 15 digits).
const (
	minPhoneDigits = 7
	maxPhoneDigits = 15
)

// ethiopicWordspace is the traditional word separator (፡).
const ethiopicWordspace = '፡'

// Phone returns the canonical phone number, or "" when the input is blank
// or malformed.
//
// Ethiopian numbers are reduced to their 9-digit national significant
// number so that 0911223344, +251 911 223 344 and 911223344 compare equal.
func Phone(raw string) string {
	p, _ := phone(raw)
	return p
}

// phone also reports whether non-blank input had to be discarded.
func phone(raw string) (string, bool) {
	s := strings.TrimSpace(norm.NFKC.String(raw))
	if s == "" {
		return "", false
	}
	s = trimFloatSuffix(s)

	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	d := b.String()

	switch {
	case len(d) == 14 && strings.HasPrefix(d, "00251"):
		d = d[5:]
	case len(d) == 13 && strings.HasPrefix(d, "2510"):
		d = d[4:]
	case len(d) == 12 && strings.HasPrefix(d, "251"):
		d = d[3:]
	case len(d) == 10 && strings.HasPrefix(d, "0"):
		d = d[1:]
	}

	if len(d) < minPhoneDigits || len(d) > maxPhoneDigits {
		return "", true
	}
	return d, false
}

// trimFloatSuffix drops the ".0" that numeric spreadsheet cells gain when
// exported through a float column (911223344.0).
func trimFloatSuffix(s string) string {
	i := strings.LastIndexByte(s, '.')
	if i <= 0 || i == len(s)-1 {
		return s
	}
	if strings.Trim(s[i+1:], "0") != "" {
		return s
	}
	for _, r := range s[:i] {
		if (r < '0' || r > '9') && r != '+' && r != ' ' {
			return s
		}
	}
	return s[:i]
}

// LaborID trims, uppercases and collapses internal whitespace.
func LaborID(raw string) string {
	return strings.ToUpper(collapse(norm.NFKC.String(raw)))
}

// FullName returns the display form of a name: compatibility-normalized,
// trimmed, with runs of whitespace (including the Ethiopic word space)
// collapsed to one space.
func FullName(raw string) string {
	s := norm.NFKC.String(raw)
	s = strings.Map(func(r rune) rune {
		if r == ethiopicWordspace {
			return ' '
		}
		return r
	}, s)
	return collapse(s)
}

// NameKey returns the comparison key for a name. Two names that a reader
// would consider the same spelling produce the same key.
func NameKey(raw string) string {
	s := FullName(raw)
	if s == "" {
		return ""
	}
	s = stripMarks(s)
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\'', '’', '‘', '`':
			return -1
		case '.', ',', '-':
			return ' '
		}
		return unifyEthiopic(r)
	}, s)
	return collapse(cases.Fold().String(s))
}

// stripMarks removes combining marks (Latin diacritics, Ethiopic
// gemination marks) and recomposes the rest.
func stripMarks(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// ethiopicFamily maps one syllable series onto an interchangeable one.
// Each series is seven consecutive code points in vowel order.
type ethiopicFamily struct {
	from rune
	to   rune
}

// Homophone series that Amharic writers use interchangeably.
var ethiopicFamilies = []ethiopicFamily{
	{from: 0x1210, to: 0x1200}, // ሐ -> ሀ
	{from: 0x1280, to: 0x1200}, // ኀ -> ሀ
	{from: 0x1220, to: 0x1230}, // ሠ -> ሰ
	{from: 0x12D0, to: 0x12A0}, // ዐ -> አ
	{from: 0x1340, to: 0x1338}, // ፀ -> ጸ
}

const ethiopicOrders = 7

func unifyEthiopic(r rune) rune {
	if r < 0x1200 || r > 0x137F {
		return r
	}
	for _, f := range ethiopicFamilies {
		if r >= f.from && r < f.from+ethiopicOrders {
			return f.to + (r - f.from)
		}
	}
	return r
}
