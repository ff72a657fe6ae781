package usage_test

import (
	"fmt"
	"time"

	usage "loadprofile/internal/usage/domain"
)

type fixedHolidays map[string]bool

func (f fixedHolidays) IsHoliday(date time.Time) bool {
	return f[date.Format("2006-01-02")]
}

func horizontalHeaders() []string {
	headers := []string{"日付"}
	for s := usage.Slot(0); s < usage.SlotCount; s++ {
		headers = append(headers, s.Label())
	}
	return headers
}

func horizontalRow(number int, date string, value string) usage.RawRow {
	cells := []string{date}
	for i := 0; i < usage.SlotCount; i++ {
		cells = append(cells, value)
	}
	return usage.RawRow{Number: number, Cells: cells}
}

func horizontalBatch(source string, seq int, rows ...usage.RawRow) usage.Batch {
	return usage.Batch{Source: source, Sheet: "Sheet1", Sequence: seq, Headers: horizontalHeaders(), Rows: rows}
}

func verticalBatch(source string, seq int, date string, value string) usage.Batch {
	b := usage.Batch{Source: source, Sequence: seq, Headers: []string{"日付", "時間", "使用量"}}
	for s := usage.Slot(0); s < usage.SlotCount; s++ {
		b.Rows = append(b.Rows, usage.RawRow{Number: int(s) + 2, Cells: []string{date, s.Label(), value}})
	}
	return b
}

func mustNormalize(n *usage.Normalizer, b usage.Batch) usage.NormalizedBatch {
	nb, err := n.Normalize(b)
	if err != nil {
		panic(fmt.Sprintf("normalize %s: %v", b.ID(), err))
	}
	return nb
}
