package holiday

import (
	"sync"

	usage "loadprofile/internal/usage/domain"
)

// Dynamic holds the calendar that the next summary run will use. It is not a calendar itself:
// runs take a Snapshot so a swap never lands halfway through one.
type Dynamic struct {
	mu  sync.RWMutex
	cal *Calendar
}

// NewDynamic wraps an initial calendar, which may be nil.
func NewDynamic(cal *Calendar) *Dynamic {
	return &Dynamic{cal: cal}
}

// Set swaps the calendar.
func (d *Dynamic) Set(cal *Calendar) {
	d.mu.Lock()
	d.cal = cal
	d.mu.Unlock()
}

// Current returns the calendar in use.
func (d *Dynamic) Current() *Calendar {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cal
}

// Snapshot returns the current calendar as a fixed holiday lookup.
func (d *Dynamic) Snapshot() usage.HolidayCalendar {
	return d.Current()
}
