package usage

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RawRow is one data row as produced by a reader: ordered string cells.
type RawRow struct {
	// Number is the 1-based row number in the source, used in diagnostics.
	Number int
	Cells  []string
}

// Cell returns the cell at idx, or "" when the row is short.
func (r RawRow) Cell(idx int) string {
	if idx < 0 || idx >= len(r.Cells) {
		return ""
	}
	return r.Cells[idx]
}

// Batch is one uploaded source-and-sheet pair. Sequence orders submissions; later wins ties.
type Batch struct {
	Source   string
	Sheet    string
	Sequence int
	Headers  []string
	Rows     []RawRow
}

// ID identifies the batch in warnings and decisions.
func (b Batch) ID() string {
	if b.Sheet == "" {
		return b.Source
	}
	return fmt.Sprintf("%s#%s", b.Source, b.Sheet)
}

// NormalizedRecord is one slot contribution.
type NormalizedRecord struct {
	Timestamp time.Time
	Slot      Slot
	Value     decimal.Decimal
}

// NormalizedRow carries the contributions of one raw row. Date is set even when
// every slot value was skipped, so the day still counts.
type NormalizedRow struct {
	RowNumber int
	Date      time.Time
	Timestamp time.Time
	Records   []NormalizedRecord
}

// NormalizedBatch is a batch after layout detection and normalization. Rows keep source order
// and exclude rows whose date could not be parsed.
type NormalizedBatch struct {
	Batch        Batch
	Layout       Layout
	Rows         []NormalizedRow
	DroppedRows  int
	SkippedCells int
}

// ID identifies the underlying batch.
func (b NormalizedBatch) ID() string { return b.Batch.ID() }

// RepresentativeDate is the first parsed timestamp in row order.
func (b NormalizedBatch) RepresentativeDate() (time.Time, bool) {
	for _, row := range b.Rows {
		if !row.Timestamp.IsZero() {
			return row.Timestamp, true
		}
	}
	return time.Time{}, false
}

// Records flattens all slot contributions in row order.
func (b NormalizedBatch) Records() []NormalizedRecord {
	var out []NormalizedRecord
	for _, row := range b.Rows {
		out = append(out, row.Records...)
	}
	return out
}
