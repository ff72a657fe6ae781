package holiday

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

const dateLayout = "2006-01-02"

// Entry is one designated public holiday.
type Entry struct {
	Date time.Time
	Name string
}

// Calendar is a fixed set of public holidays keyed by calendar date.
type Calendar struct {
	days map[string]string
}

// NewCalendar builds a calendar from entries. Later entries for the same date win.
func NewCalendar(entries ...Entry) *Calendar {
	c := &Calendar{days: make(map[string]string, len(entries))}
	for _, e := range entries {
		if e.Date.IsZero() {
			continue
		}
		c.days[e.Date.Format(dateLayout)] = e.Name
	}
	return c
}

// IsHoliday reports whether date is a designated holiday.
func (c *Calendar) IsHoliday(date time.Time) bool {
	if c == nil {
		return false
	}
	_, ok := c.days[date.Format(dateLayout)]
	return ok
}

// Name returns the holiday name for date, if any.
func (c *Calendar) Name(date time.Time) (string, bool) {
	if c == nil {
		return "", false
	}
	name, ok := c.days[date.Format(dateLayout)]
	return name, ok
}

// Len returns the number of holidays.
func (c *Calendar) Len() int {
	if c == nil {
		return 0
	}
	return len(c.days)
}

// Entries returns the holidays sorted by date.
func (c *Calendar) Entries() []Entry {
	if c == nil {
		return nil
	}
	out := make([]Entry, 0, len(c.days))
	for key, name := range c.days {
		date, _ := time.Parse(dateLayout, key)
		out = append(out, Entry{Date: date, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

type fileFormat struct {
	Holidays []struct {
		Date string `yaml:"date"`
		Name string `yaml:"name"`
	} `yaml:"holidays"`
}

// Decode reads a YAML document of the form
//
//	holidays:
//	  - date: 2024-07-15
//	    name: Marine Day
func Decode(r io.Reader) (*Calendar, error) {
	if r == nil {
		return nil, errors.New("holiday: nil reader")
	}
	var doc fileFormat
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("holiday: decode: %w", err)
	}
	entries := make([]Entry, 0, len(doc.Holidays))
	for i, h := range doc.Holidays {
		date, err := time.Parse(dateLayout, h.Date)
		if err != nil {
			return nil, fmt.Errorf("holiday: entry %d: invalid date %q", i+1, h.Date)
		}
		entries = append(entries, Entry{Date: date, Name: h.Name})
	}
	return NewCalendar(entries...), nil
}

// LoadFile reads a YAML holiday file. An empty path yields an empty calendar.
func LoadFile(path string) (*Calendar, error) {
	if path == "" {
		return NewCalendar(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("holiday: open %s: %w", path, err)
	}
	defer f.Close()
	return Decode(f)
}
