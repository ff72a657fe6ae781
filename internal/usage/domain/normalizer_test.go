package usage_test

import (
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	usage "loadprofile/internal/usage/domain"
)

func TestDetectLayout(t *testing.T) {
	n := usage.NewNormalizer()

	layout, err := n.DetectLayout(horizontalHeaders())
	require.NoError(t, err)
	assert.Equal(t, usage.LayoutHorizontal, layout)

	layout, err = n.DetectLayout([]string{"日付", "時間", "使用量"})
	require.NoError(t, err)
	assert.Equal(t, usage.LayoutVertical, layout)

	layout, err = n.DetectLayout([]string{"Date Time", "Usage (kWh)"})
	require.NoError(t, err)
	assert.Equal(t, usage.LayoutVertical, layout)

	_, err = n.DetectLayout([]string{"日付", "備考"})
	assert.ErrorIs(t, err, usage.ErrMissingColumns)

	_, err = n.DetectLayout([]string{"使用量"})
	assert.ErrorIs(t, err, usage.ErrMissingColumns)
}

func TestNormalizeHorizontal(t *testing.T) {
	n := usage.NewNormalizer()
	batch := horizontalBatch("a.xlsx", 1,
		horizontalRow(2, "2024-06-03", "1.5"),
		horizontalRow(3, "not a date", "9"),
	)
	batch.Rows[0].Cells[11] = "n/a" // slot 10
	batch.Rows[0].Cells[12] = ""    // slot 11

	nb, err := n.Normalize(batch)
	require.NoError(t, err)
	assert.Equal(t, usage.LayoutHorizontal, nb.Layout)
	assert.Equal(t, 1, nb.DroppedRows)
	assert.Equal(t, 2, nb.SkippedCells)
	require.Len(t, nb.Rows, 1)

	row := nb.Rows[0]
	assert.Equal(t, time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), row.Date)
	require.Len(t, row.Records, usage.SlotCount-2)
	for _, rec := range row.Records {
		assert.NotEqual(t, usage.Slot(10), rec.Slot)
		assert.NotEqual(t, usage.Slot(11), rec.Slot)
		assert.True(t, rec.Value.Equal(decimal.RequireFromString("1.5")))
	}
	last := row.Records[len(row.Records)-1]
	assert.Equal(t, usage.Slot(47), last.Slot)
	assert.Equal(t, time.Date(2024, 6, 3, 23, 30, 0, 0, time.UTC), last.Timestamp)
}

func TestNormalizeHorizontalPositionalFallback(t *testing.T) {
	// Labels that repeat cannot name 48 distinct slots, so columns map by position.
	headers := []string{"date"}
	for i := 0; i < usage.SlotCount; i++ {
		headers = append(headers, "0:00")
	}
	row := []string{"2024/6/3"}
	for i := 0; i < usage.SlotCount; i++ {
		row = append(row, strconv.Itoa(i))
	}
	nb, err := usage.NewNormalizer().Normalize(usage.Batch{Source: "p.csv", Headers: headers, Rows: []usage.RawRow{{Number: 2, Cells: row}}})
	require.NoError(t, err)
	require.Len(t, nb.Rows, 1)
	require.Len(t, nb.Rows[0].Records, usage.SlotCount)
	for i, rec := range nb.Rows[0].Records {
		assert.Equal(t, usage.Slot(i), rec.Slot)
		assert.True(t, rec.Value.Equal(decimal.NewFromInt(int64(i))))
	}
}

func TestNormalizeHorizontalEndLabels(t *testing.T) {
	headers := []string{"日付"}
	for s := usage.Slot(1); s <= usage.SlotCount; s++ {
		minutes := int(s) * 30
		headers = append(headers, strconv.Itoa(minutes/60)+":"+twoDigits(minutes%60))
	}
	row := horizontalRow(2, "2024-06-03", "1")
	n := usage.NewNormalizer(usage.WithLabelConvention(usage.LabelEnd))
	nb, err := n.Normalize(usage.Batch{Source: "end.csv", Headers: headers, Rows: []usage.RawRow{row}})
	require.NoError(t, err)
	require.Len(t, nb.Rows[0].Records, usage.SlotCount)
	assert.Equal(t, usage.Slot(0), nb.Rows[0].Records[0].Slot)
	assert.Equal(t, usage.Slot(47), nb.Rows[0].Records[47].Slot)
}

func TestNormalizeVertical(t *testing.T) {
	batch := usage.Batch{
		Source:  "v.xlsx",
		Sheet:   "6月",
		Headers: []string{"日付", "時間", "使用量"},
		Rows: []usage.RawRow{
			{Number: 6, Cells: []string{"2024/6/3", "0:00", "10"}},
			{Number: 7, Cells: []string{"2024/6/3", "0:30", "-"}},
			{Number: 8, Cells: []string{"2024/6/3", "23:30", "2,000.25"}},
			{Number: 9, Cells: []string{"", "1:00", "5"}},
			{Number: 10, Cells: []string{"2024/6/3", "later", "5"}},
		},
	}
	nb, err := usage.NewNormalizer().Normalize(batch)
	require.NoError(t, err)
	assert.Equal(t, usage.LayoutVertical, nb.Layout)
	assert.Equal(t, 2, nb.DroppedRows)
	assert.Equal(t, 1, nb.SkippedCells)
	require.Len(t, nb.Rows, 3)

	assert.Len(t, nb.Rows[1].Records, 0, "non-numeric usage yields no record")
	assert.Equal(t, time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), nb.Rows[1].Date)

	recs := nb.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, usage.Slot(0), recs[0].Slot)
	assert.Equal(t, usage.Slot(47), recs[1].Slot)
	assert.True(t, recs[1].Value.Equal(decimal.RequireFromString("2000.25")))
	assert.Equal(t, time.Date(2024, 6, 3, 23, 30, 0, 0, time.UTC), recs[1].Timestamp)
}

func TestNormalizeVerticalCombinedTimestamp(t *testing.T) {
	batch := usage.Batch{
		Source:  "combined.csv",
		Headers: []string{"datetime", "kWh"},
		Rows: []usage.RawRow{
			{Number: 2, Cells: []string{"2024-06-03 13:30", "4"}},
			{Number: 3, Cells: []string{"45446.5625", "6"}}, // 2024-06-03 13:30 as an Excel serial
		},
	}
	nb, err := usage.NewNormalizer().Normalize(batch)
	require.NoError(t, err)
	recs := nb.Records()
	require.Len(t, recs, 2)
	for _, rec := range recs {
		assert.Equal(t, usage.Slot(27), rec.Slot)
		assert.Equal(t, time.Date(2024, 6, 3, 13, 30, 0, 0, time.UTC), rec.Timestamp)
	}
}

func TestNormalizeVerticalEndLabelMidnight(t *testing.T) {
	batch := usage.Batch{
		Source:  "end.csv",
		Headers: []string{"日付", "時刻", "使用量"},
		Rows: []usage.RawRow{
			{Number: 2, Cells: []string{"2024/6/3", "0:30", "1"}},
			{Number: 3, Cells: []string{"2024/6/3", "24:00", "2"}},
			{Number: 4, Cells: []string{"2024/6/4", "0:00", "3"}},
		},
	}
	n := usage.NewNormalizer(usage.WithLabelConvention(usage.LabelEnd))
	nb, err := n.Normalize(batch)
	require.NoError(t, err)
	require.Len(t, nb.Rows, 3)
	assert.Equal(t, usage.Slot(0), nb.Rows[0].Records[0].Slot)
	assert.Equal(t, usage.Slot(47), nb.Rows[1].Records[0].Slot)
	assert.Equal(t, usage.Slot(47), nb.Rows[2].Records[0].Slot)
	assert.Equal(t, time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), nb.Rows[2].Date)
}

func TestEndLabelMidnightLandsOnPreviousDayInBothLayouts(t *testing.T) {
	n := usage.NewNormalizer(usage.WithLabelConvention(usage.LabelEnd))
	engine, err := usage.NewEngine(usage.NewClassifier(nil))
	require.NoError(t, err)

	// 2024-07-01 is a Monday; its 0:00 reading closes Sunday 2024-06-30.
	horizontal := mustNormalize(n, horizontalBatch("h.csv", 1, horizontalRow(2, "2024-07-01", "1")))
	require.Len(t, horizontal.Rows[0].Records, usage.SlotCount)
	assert.Equal(t, time.Date(2024, 6, 30, 23, 30, 0, 0, time.UTC), horizontal.Rows[0].Records[0].Timestamp)

	one := decimal.NewFromInt(1)
	m := engine.Aggregate([]usage.NormalizedBatch{horizontal})
	june := m.Cell(6, usage.Holiday)
	july := m.Cell(7, usage.Weekday)
	assert.True(t, june.Slots[47].Equal(one), "june slot47=%s", june.Slots[47])
	assert.Equal(t, 1, june.Days)
	assert.True(t, july.Slots[47].IsZero(), "july slot47=%s", july.Slots[47])
	assert.True(t, july.Slots[0].Equal(one))
	assert.True(t, july.Slots[46].Equal(one))
	assert.Equal(t, 1, july.Days)
	assert.Equal(t, 0, m.Cell(6, usage.Weekday).Days)

	vertical := mustNormalize(n, verticalBatch("v.csv", 1, "2024-07-01", "1"))
	assert.True(t, m.Equal(engine.Aggregate([]usage.NormalizedBatch{vertical})))
}

func TestNormalizeVerticalTimestampHeader(t *testing.T) {
	batch := usage.Batch{
		Source:  "meter.csv",
		Headers: []string{"timestamp", "usage"},
		Rows: []usage.RawRow{
			{Number: 2, Cells: []string{"2024-06-03 00:30", "1.5"}},
			{Number: 3, Cells: []string{"2024-06-03 23:30", "2"}},
		},
	}
	nb, err := usage.NewNormalizer().Normalize(batch)
	require.NoError(t, err)
	assert.Equal(t, usage.LayoutVertical, nb.Layout)
	require.Len(t, nb.Rows, 2)
	assert.Equal(t, usage.Slot(1), nb.Rows[0].Records[0].Slot)
	assert.Equal(t, usage.Slot(47), nb.Rows[1].Records[0].Slot)
}

func TestNormalizeMissingColumns(t *testing.T) {
	batch := usage.Batch{Source: "bad.xlsx", Sheet: "memo", Headers: []string{"note"}}
	_, err := usage.NewNormalizer().Normalize(batch)
	require.Error(t, err)
	assert.ErrorIs(t, err, usage.ErrMissingColumns)

	var batchErr *usage.BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, "bad.xlsx#memo", batchErr.BatchID)
}

func TestRepresentativeDate(t *testing.T) {
	batch := usage.Batch{
		Source:  "rep.csv",
		Headers: []string{"日付", "時間", "使用量"},
		Rows: []usage.RawRow{
			{Number: 2, Cells: []string{"??", "0:00", "1"}},
			{Number: 3, Cells: []string{"2024/7/15", "8:30", "1"}},
			{Number: 4, Cells: []string{"2024/7/1", "0:00", "1"}},
		},
	}
	nb := mustNormalize(usage.NewNormalizer(), batch)
	rep, ok := nb.RepresentativeDate()
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 7, 15, 8, 30, 0, 0, time.UTC), rep)

	empty := mustNormalize(usage.NewNormalizer(), usage.Batch{Source: "empty.csv", Headers: []string{"日付", "使用量"}})
	_, ok = empty.RepresentativeDate()
	assert.False(t, ok)
}

func twoDigits(v int) string {
	if v < 10 {
		return "0" + strconv.Itoa(v)
	}
	return strconv.Itoa(v)
}
