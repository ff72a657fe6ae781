package usage

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-1-2 15:04:05",
	"2006-1-2 15:04",
	"2006/1/2 15:04:05",
	"2006/1/2 15:04",
	"2006.1.2 15:04",
	"2006年1月2日 15:04",
	"2006-1-2",
	"2006/1/2",
	"2006.1.2",
	"2006年1月2日",
	"20060102",
}

// Excel serials below this are small integers rather than dates (1900-03-01).
const minExcelSerial = 61

// ParseTimestamp reads a date or date-time cell. Excel serial day numbers are accepted.
// Results are wall-clock times in UTC.
func ParseTimestamp(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), true
		}
	}
	if serial, err := strconv.ParseFloat(value, 64); err == nil && serial >= minExcelSerial {
		ts, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, false
		}
		// excelize rounds to the nanosecond; snap to the minute so 0:30 stays 0:30.
		return ts.UTC().Round(time.Minute), true
	}
	return time.Time{}, false
}

// ParseClock reads a time-of-day cell ("0:30", "00:30:00", "24:00" or an Excel fraction)
// and returns minutes past midnight.
func ParseClock(value string) (int, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if ts, ok := ParseTimestamp(value); ok {
		return ts.Hour()*60 + ts.Minute(), true
	}
	minutes, _, ok := parseTimeLabel(value)
	return minutes, ok
}

// ParseValue reads a usage cell. Blank and non-numeric cells report false; they are never zero.
func ParseValue(value string) (decimal.Decimal, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Decimal{}, false
	}
	value = strings.ReplaceAll(value, ",", "")
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}
