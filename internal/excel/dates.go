package excel

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

const dateLayout = "2006-01-02"

var dateLayouts = []string{
	dateLayout,
	"2006/01/02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

var slashDate = regexp.MustCompile(`^(\d{1,2})[/.-](\d{1,2})[/.-](\d{4})$`)

// NormalizeDate turns a raw cell value into YYYY-MM-DD. Numbers are read as
// 1900-system serial dates. Day/month orders are only accepted when one part
// is greater than 12.
func NormalizeDate(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}

	if serial, err := strconv.ParseFloat(raw, 64); err == nil {
		if math.IsNaN(serial) || serial < 1 || serial > 2958465 {
			return "", fmt.Errorf("serial date out of range")
		}
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return "", fmt.Errorf("invalid serial date: %w", err)
		}
		return t.Format(dateLayout), nil
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format(dateLayout), nil
		}
	}

	if m := slashDate.FindStringSubmatch(raw); m != nil {
		a, _ := strconv.Atoi(m[1])
		b, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])

		var day, month int
		switch {
		case a == b:
			day, month = a, b
		case a > 12 && b <= 12:
			day, month = a, b
		case b > 12 && a <= 12:
			day, month = b, a
		default:
			return "", fmt.Errorf("ambiguous date, use YYYY-MM-DD")
		}

		t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		if t.Day() != day || int(t.Month()) != month {
			return "", fmt.Errorf("not a calendar date")
		}
		return t.Format(dateLayout), nil
	}

	return "", fmt.Errorf("unrecognized date")
}

// DayIDFromDate derives the compact day key used when a row has no DayID.
func DayIDFromDate(date string) string {
	return strings.ReplaceAll(date, "-", "")
}
