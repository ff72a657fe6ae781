package usage

import (
	"fmt"
	"time"
)

// FiscalMonth indexes the operating year: April is 4, December 12, January 13 and March 15.
type FiscalMonth int

const (
	FirstFiscalMonth FiscalMonth = 4
	LastFiscalMonth  FiscalMonth = 15
	FiscalMonthCount             = int(LastFiscalMonth-FirstFiscalMonth) + 1
)

// FiscalMonthOf maps a calendar month to its fiscal index. The year plays no part.
func FiscalMonthOf(month time.Month) FiscalMonth {
	if month >= time.April {
		return FiscalMonth(month)
	}
	return FiscalMonth(month + 12)
}

// FiscalMonths lists all indices in fiscal order.
func FiscalMonths() []FiscalMonth {
	out := make([]FiscalMonth, 0, FiscalMonthCount)
	for m := FirstFiscalMonth; m <= LastFiscalMonth; m++ {
		out = append(out, m)
	}
	return out
}

// IsValid reports whether the index is within [4, 15].
func (m FiscalMonth) IsValid() bool {
	return m >= FirstFiscalMonth && m <= LastFiscalMonth
}

// CalendarMonth returns the calendar month the index stands for.
func (m FiscalMonth) CalendarMonth() time.Month {
	if m > 12 {
		return time.Month(m - 12)
	}
	return time.Month(m)
}

func (m FiscalMonth) offset() int { return int(m - FirstFiscalMonth) }

func (m FiscalMonth) String() string {
	if !m.IsValid() {
		return fmt.Sprintf("FiscalMonth(%d)", int(m))
	}
	return m.CalendarMonth().String()
}

// DayType splits days into weekday and holiday buckets.
type DayType int

const (
	Weekday DayType = iota
	Holiday
)

// DayTypes lists both buckets, weekday first.
func DayTypes() []DayType { return []DayType{Weekday, Holiday} }

// IsValid reports whether the day type is known.
func (d DayType) IsValid() bool { return d == Weekday || d == Holiday }

func (d DayType) String() string {
	switch d {
	case Weekday:
		return "weekday"
	case Holiday:
		return "holiday"
	default:
		return fmt.Sprintf("DayType(%d)", int(d))
	}
}

// HolidayCalendar reports designated public holidays. Implementations are looked up by calendar date.
type HolidayCalendar interface {
	IsHoliday(date time.Time) bool
}

// Classifier maps timestamps to a fiscal month and day type.
type Classifier struct {
	holidays HolidayCalendar
}

// NewClassifier constructs a Classifier. A nil calendar treats only weekends as holidays.
func NewClassifier(holidays HolidayCalendar) *Classifier {
	return &Classifier{holidays: holidays}
}

// Classify returns the fiscal month and day type of ts. Time of day is ignored.
func (c *Classifier) Classify(ts time.Time) (FiscalMonth, DayType, error) {
	if ts.IsZero() {
		return 0, Weekday, ErrUnclassifiable
	}
	day := DateOf(ts)
	return FiscalMonthOf(day.Month()), c.DayTypeOf(day), nil
}

// DayTypeOf classifies a date. Weekends are holidays regardless of the calendar.
func (c *Classifier) DayTypeOf(ts time.Time) DayType {
	day := DateOf(ts)
	switch day.Weekday() {
	case time.Saturday, time.Sunday:
		return Holiday
	}
	if c != nil && c.holidays != nil && c.holidays.IsHoliday(day) {
		return Holiday
	}
	return Weekday
}

// DateOf truncates ts to midnight in its own location.
func DateOf(ts time.Time) time.Time {
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, ts.Location())
}

// DateKey renders the calendar date of ts, used for day-count deduplication.
func DateKey(ts time.Time) string {
	return ts.Format("20060102")
}
