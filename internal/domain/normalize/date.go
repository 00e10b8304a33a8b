package normalize

import (
	"strconv"
	"strings"
	"time"
)

const isoDate = "2006-01-02"

// Excel serial day numbers accepted as dates (1954-10-03 .. 2119-01-08).
// Smaller integers are far more likely to be years or codes than dates.
const (
	minExcelSerial = 20000
	maxExcelSerial = 80000
)

// excelEpoch is day zero of the 1900 date system as spreadsheets count it.
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

var unambiguousLayouts = []string{
	isoDate,
	"2006-1-2",
	"2006/01/02",
	"2006/1/2",
	"2006.01.02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

var monthFirstLayouts = []string{"01/02/2006", "1/2/2006", "01-02-2006", "1-2-2006"}

var dayFirstLayouts = []string{"02/01/2006", "2/1/2006", "02-01-2006", "2-1-2006", "02.01.2006", "2.1.2006"}

// Date parses an application date into YYYY-MM-DD. It returns ("", false)
// for non-blank input it cannot read and ("", true) for blank input.
func (n *Normalizer) Date(raw string) (string, bool) {
	s := collapse(raw)
	if s == "" {
		return "", true
	}

	if t, ok := parseExcelSerial(s); ok {
		return t.Format(isoDate), true
	}

	layouts := unambiguousLayouts
	if n.dayFirst {
		layouts = append(append([]string{}, layouts...), dayFirstLayouts...)
	} else {
		layouts = append(append([]string{}, layouts...), monthFirstLayouts...)
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(isoDate), true
		}
	}
	return "", false
}

func parseExcelSerial(s string) (time.Time, bool) {
	s = strings.TrimSuffix(s, ".0")
	days, err := strconv.Atoi(s)
	if err != nil || days < minExcelSerial || days > maxExcelSerial {
		return time.Time{}, false
	}
	return excelEpoch.AddDate(0, 0, days), true
}
