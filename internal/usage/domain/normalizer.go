package usage

import (
	"fmt"
	"strings"
)

// Layout is the shape of a batch, decided once per batch from its headers.
type Layout int

const (
	LayoutUnknown Layout = iota
	// LayoutVertical has one row per half-hour: date, optional time and a usage column.
	LayoutVertical
	// LayoutHorizontal has one row per day: a date column and 48 time-labeled columns.
	LayoutHorizontal
)

func (l Layout) String() string {
	switch l {
	case LayoutVertical:
		return "vertical"
	case LayoutHorizontal:
		return "horizontal"
	default:
		return "unknown"
	}
}

var (
	dateKeywords  = []string{"日付", "年月日", "日時", "datetime", "timestamp", "date", "day"}
	timeKeywords  = []string{"時間", "時刻", "time"}
	usageKeywords = []string{"使用量", "電力量", "usage", "consumption", "kwh", "value"}
)

type slotColumn struct {
	index int
	slot  Slot
	shift int
}

// columnPlan is the layout decision for a batch plus the column positions it needs.
type columnPlan struct {
	layout   Layout
	dateCol  int
	timeCol  int
	usageCol int
	slots    []slotColumn
}

// NormalizerOption configures a Normalizer.
type NormalizerOption func(*Normalizer)

// WithLabelConvention sets how time labels and time cells map to slots.
func WithLabelConvention(c LabelConvention) NormalizerOption {
	return func(n *Normalizer) {
		n.convention = c
	}
}

// Normalizer turns raw batches into slot contributions.
type Normalizer struct {
	convention LabelConvention
}

// NewNormalizer constructs a Normalizer.
func NewNormalizer(opts ...NormalizerOption) *Normalizer {
	n := &Normalizer{convention: LabelStart}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// DetectLayout decides the layout of a header row.
func (n *Normalizer) DetectLayout(headers []string) (Layout, error) {
	plan, err := n.plan(headers)
	if err != nil {
		return LayoutUnknown, err
	}
	return plan.layout, nil
}

// Normalize converts a batch. Rows with an unparseable date are dropped; unparseable slot
// values are skipped. A batch whose required columns cannot be located yields a *BatchError.
func (n *Normalizer) Normalize(batch Batch) (NormalizedBatch, error) {
	out := NormalizedBatch{Batch: batch}
	plan, err := n.plan(batch.Headers)
	if err != nil {
		return out, &BatchError{BatchID: batch.ID(), Err: err}
	}
	out.Layout = plan.layout

	for _, raw := range batch.Rows {
		var (
			row     NormalizedRow
			skipped int
			ok      bool
		)
		if plan.layout == LayoutHorizontal {
			row, skipped, ok = n.horizontalRow(plan, raw)
		} else {
			row, skipped, ok = n.verticalRow(plan, raw)
		}
		if !ok {
			out.DroppedRows++
			continue
		}
		out.SkippedCells += skipped
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

func (n *Normalizer) plan(headers []string) (columnPlan, error) {
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = normalizeHeader(h)
	}

	var labeled []int
	for i, h := range headers {
		if IsTimeLabel(h) {
			labeled = append(labeled, i)
		}
	}
	if len(labeled) >= SlotCount {
		return n.horizontalPlan(headers, normalized, labeled)
	}

	plan := columnPlan{layout: LayoutVertical, dateCol: -1, timeCol: -1, usageCol: -1}
	plan.dateCol = findColumn(normalized, dateKeywords, nil)
	if plan.dateCol < 0 {
		return columnPlan{}, fmt.Errorf("%w: no date column", ErrMissingColumns)
	}
	taken := map[int]bool{plan.dateCol: true}
	plan.timeCol = findColumn(normalized, timeKeywords, taken)
	if plan.timeCol >= 0 {
		taken[plan.timeCol] = true
	}
	plan.usageCol = findColumn(normalized, usageKeywords, taken)
	if plan.usageCol < 0 {
		return columnPlan{}, fmt.Errorf("%w: no usage column", ErrMissingColumns)
	}
	return plan, nil
}

func (n *Normalizer) horizontalPlan(headers, normalized []string, labeled []int) (columnPlan, error) {
	isLabel := make(map[int]bool, len(labeled))
	for _, idx := range labeled {
		isLabel[idx] = true
	}
	dateCol := findColumn(normalized, dateKeywords, isLabel)
	if dateCol < 0 {
		for i := range headers {
			if !isLabel[i] {
				dateCol = i
				break
			}
		}
	}
	if dateCol < 0 {
		return columnPlan{}, fmt.Errorf("%w: no date column", ErrMissingColumns)
	}

	plan := columnPlan{layout: LayoutHorizontal, dateCol: dateCol, timeCol: -1, usageCol: -1}

	bySlot := make(map[Slot]slotColumn, SlotCount)
	var ordered []slotColumn
	for _, idx := range labeled {
		minutes, ranged, _ := parseTimeLabel(headers[idx])
		convention := n.convention
		if ranged {
			convention = LabelStart
		}
		slot, shift, ok := convention.slotFor(minutes)
		if !ok {
			continue
		}
		col := slotColumn{index: idx, slot: slot, shift: shift}
		if _, seen := bySlot[slot]; !seen {
			bySlot[slot] = col
			ordered = append(ordered, col)
		}
	}
	if len(bySlot) == SlotCount {
		plan.slots = ordered
		return plan, nil
	}

	// Labels do not spell out 48 distinct slots; fall back to column position.
	for i, idx := range labeled[:SlotCount] {
		plan.slots = append(plan.slots, slotColumn{index: idx, slot: Slot(i)})
	}
	return plan, nil
}

func (n *Normalizer) horizontalRow(plan columnPlan, raw RawRow) (NormalizedRow, int, bool) {
	ts, ok := ParseTimestamp(raw.Cell(plan.dateCol))
	if !ok {
		return NormalizedRow{}, 0, false
	}
	date := DateOf(ts)
	row := NormalizedRow{RowNumber: raw.Number, Date: date, Timestamp: date}
	skipped := 0
	for _, col := range plan.slots {
		value, ok := ParseValue(raw.Cell(col.index))
		if !ok {
			skipped++
			continue
		}
		slotDate := date.AddDate(0, 0, col.shift)
		row.Records = append(row.Records, NormalizedRecord{
			Timestamp: slotDate.Add(col.slot.Start()),
			Slot:      col.slot,
			Value:     value,
		})
	}
	return row, skipped, true
}

func (n *Normalizer) verticalRow(plan columnPlan, raw RawRow) (NormalizedRow, int, bool) {
	ts, ok := ParseTimestamp(raw.Cell(plan.dateCol))
	if !ok {
		return NormalizedRow{}, 0, false
	}
	date := DateOf(ts)
	minutes := ts.Hour()*60 + ts.Minute()
	if plan.timeCol >= 0 {
		clock, ok := ParseClock(raw.Cell(plan.timeCol))
		if !ok {
			return NormalizedRow{}, 0, false
		}
		minutes = clock
	}
	slot, shift, ok := n.convention.slotFor(minutes)
	if !ok {
		return NormalizedRow{}, 0, false
	}
	// An end label of 0:00 closes the previous day.
	date = date.AddDate(0, 0, shift)
	stamp := date.Add(slot.Start())

	row := NormalizedRow{RowNumber: raw.Number, Date: date, Timestamp: stamp}
	value, ok := ParseValue(raw.Cell(plan.usageCol))
	if !ok {
		return row, 1, true
	}
	row.Records = []NormalizedRecord{{Timestamp: stamp, Slot: slot, Value: value}}
	return row, 0, true
}

func findColumn(normalized []string, keywords []string, skip map[int]bool) int {
	for _, kw := range keywords {
		for i, h := range normalized {
			if skip[i] || h == "" {
				continue
			}
			if strings.Contains(h, kw) {
				return i
			}
		}
	}
	return -1
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '　', '\t', '\n', '\r':
			return -1
		}
		return r
	}, h)
}
