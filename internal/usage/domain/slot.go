package usage

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Slot is one 30-minute interval of a day; slot 0 covers 00:00-00:30.
type Slot int

const (
	SlotCount   = 48
	slotMinutes = 30
	dayMinutes  = 24 * 60
)

// IsValid reports whether the slot is within [0, 47].
func (s Slot) IsValid() bool { return s >= 0 && s < SlotCount }

// Start returns the offset of the slot from midnight.
func (s Slot) Start() time.Duration { return time.Duration(int(s)*slotMinutes) * time.Minute }

// Label renders the slot start as "15:04".
func (s Slot) Label() string {
	minutes := int(s) * slotMinutes
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// SlotOf returns the slot containing the time of day of ts.
func SlotOf(ts time.Time) Slot {
	return Slot((ts.Hour()*60 + ts.Minute()) / slotMinutes)
}

// LabelConvention tells whether a time label names the start or the end of its interval.
type LabelConvention int

const (
	// LabelStart reads "0:00" as slot 0.
	LabelStart LabelConvention = iota
	// LabelEnd reads "0:30" as slot 0 and "24:00" as slot 47.
	LabelEnd
)

// ParseLabelConvention parses "start" or "end".
func ParseLabelConvention(value string) (LabelConvention, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "start":
		return LabelStart, nil
	case "end":
		return LabelEnd, nil
	default:
		return LabelStart, fmt.Errorf("usage: unknown label convention %q", value)
	}
}

func (c LabelConvention) String() string {
	if c == LabelEnd {
		return "end"
	}
	return "start"
}

// slotFor converts minutes past midnight to a slot. dayShift is -1 when an end label of 0:00
// closes the last slot of the previous day.
func (c LabelConvention) slotFor(minutes int) (slot Slot, dayShift int, ok bool) {
	if c == LabelEnd {
		switch {
		case minutes == 0:
			return SlotCount - 1, -1, true
		case minutes > 0 && minutes <= dayMinutes:
			return Slot((minutes+slotMinutes-1)/slotMinutes - 1), 0, true
		}
		return 0, 0, false
	}
	if minutes < 0 || minutes >= dayMinutes {
		return 0, 0, false
	}
	return Slot(minutes / slotMinutes), 0, true
}

var clockToken = regexp.MustCompile(`(\d{1,2})\s*[:：時]\s*(\d{1,2})`)

// parseTimeLabel reads a column header such as "0:30", "00:00～00:30", "1時30分" or an Excel day
// fraction. ranged is true when the label spells out both ends of the interval.
func parseTimeLabel(label string) (minutes int, ranged bool, ok bool) {
	label = strings.TrimSpace(label)
	if label == "" {
		return 0, false, false
	}
	if tokens := clockToken.FindAllStringSubmatch(label, 2); len(tokens) > 0 {
		h, _ := strconv.Atoi(tokens[0][1])
		m, _ := strconv.Atoi(tokens[0][2])
		if m >= 60 || h*60+m > dayMinutes {
			return 0, false, false
		}
		return h*60 + m, len(tokens) > 1, true
	}
	if minutes, ok := parseDayFraction(label); ok {
		return minutes, false, true
	}
	return 0, false, false
}

// parseDayFraction reads Excel time values such as "0.0208333333333333".
func parseDayFraction(value string) (int, bool) {
	if !strings.Contains(value, ".") && value != "0" && value != "1" {
		return 0, false
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || f < 0 || f > 1 {
		return 0, false
	}
	seconds := int(f*float64(dayMinutes*60) + 0.5)
	return seconds / 60, true
}

// IsTimeLabel reports whether a header looks like a time-of-day label.
func IsTimeLabel(label string) bool {
	_, _, ok := parseTimeLabel(label)
	return ok
}
