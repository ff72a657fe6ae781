package application

import (
	"bytes"
	"context"
	"errors"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	usage "loadprofile/internal/usage/domain"
	"loadprofile/internal/usage/infrastructure/holiday"
)

type memoryRepo struct {
	runs    map[string]Result
	saveErr error
}

func (m *memoryRepo) SaveRun(_ context.Context, run Result) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	if m.runs == nil {
		m.runs = make(map[string]Result)
	}
	m.runs[run.RunID] = run
	return nil
}

func (m *memoryRepo) FindRun(_ context.Context, id string) (*Result, error) {
	run, ok := m.runs[id]
	if !ok {
		return nil, nil
	}
	return &run, nil
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func dayBatch(source string, seq int, date, value string) usage.Batch {
	headers := []string{"日付"}
	cells := []string{date}
	for s := usage.Slot(0); s < usage.SlotCount; s++ {
		headers = append(headers, s.Label())
		cells = append(cells, value)
	}
	return usage.Batch{
		Source:   source,
		Sheet:    "Sheet1",
		Sequence: seq,
		Headers:  headers,
		Rows:     []usage.RawRow{{Number: 6, Cells: cells}},
	}
}

func newService(t *testing.T, opts ...Option) *SummaryService {
	t.Helper()
	engine, err := usage.NewEngine(usage.NewClassifier(nil))
	require.NoError(t, err)
	opts = append([]Option{WithIDGenerator(func() string { return "run-1" })}, opts...)
	svc, err := NewSummaryService(usage.NewNormalizer(), engine, opts...)
	require.NoError(t, err)
	return svc
}

func TestNewSummaryServiceValidatesDependencies(t *testing.T) {
	engine, err := usage.NewEngine(usage.NewClassifier(nil))
	require.NoError(t, err)

	_, err = NewSummaryService(nil, engine)
	assert.Error(t, err)
	_, err = NewSummaryService(usage.NewNormalizer(), nil)
	assert.Error(t, err)
}

func TestRunRequiresBatches(t *testing.T) {
	_, err := newService(t).Run(context.Background(), nil)
	assert.ErrorIs(t, err, usage.ErrNoBatches)
}

func TestRunCollectsRejectedBatchesAsWarnings(t *testing.T) {
	var buf bytes.Buffer
	svc := newService(t, WithLogger(log.New(&buf, "", 0)))

	broken := usage.Batch{Source: "notes.csv", Sequence: 1, Headers: []string{"memo"}, Rows: []usage.RawRow{{Number: 2, Cells: []string{"x"}}}}
	june := dayBatch("june.xlsx", 2, "2024-06-03", "2")

	res, err := svc.Run(context.Background(), []usage.Batch{june, broken})
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)

	var batchErr *usage.BatchError
	require.True(t, errors.As(res.Warnings[0], &batchErr))
	assert.Equal(t, "notes.csv", batchErr.BatchID)
	assert.ErrorIs(t, res.Warnings[0], usage.ErrMissingColumns)

	require.Len(t, res.Decisions, 2)
	assert.Equal(t, usage.OutcomeRejected, res.Decisions[0].Outcome)
	assert.Equal(t, usage.OutcomeSelected, res.Decisions[1].Outcome)
	assert.Equal(t, Stats{Batches: 2, Selected: 1, Rejected: 1}, res.Stats)

	cell := res.Matrix.Cell(6, usage.Weekday)
	assert.Equal(t, 1, cell.Days)
	assert.True(t, cell.Slots[0].Equal(decimal.NewFromInt(2)))
	assert.Contains(t, buf.String(), "summary batch rejected: run=run-1 batch=notes.csv")
	assert.Contains(t, buf.String(), "summary run: id=run-1 batches=2")
}

func TestRunOrdersBySequenceForTies(t *testing.T) {
	svc := newService(t)
	first := dayBatch("first.xlsx", 1, "2024-08-01", "1")
	second := dayBatch("second.xlsx", 2, "2024-08-01", "5")

	res, err := svc.Run(context.Background(), []usage.Batch{second, first})
	require.NoError(t, err)
	require.Len(t, res.Selected, 1)
	assert.Equal(t, "second.xlsx#Sheet1", res.Selected[0].ID())
	assert.Equal(t, "first.xlsx#Sheet1", res.Decisions[0].BatchID)
	assert.Equal(t, usage.OutcomeSuperseded, res.Decisions[0].Outcome)
	assert.Equal(t, 1, res.Stats.Superseded)
	assert.True(t, res.Matrix.Cell(8, usage.Weekday).Slots[5].Equal(decimal.NewFromInt(5)))
}

func TestRunCountsDroppedRowsAndSkippedCells(t *testing.T) {
	svc := newService(t)
	batch := dayBatch("june.xlsx", 1, "2024-06-03", "1")
	batch.Rows[0].Cells[3] = "-"
	batch.Rows = append(batch.Rows, usage.RawRow{Number: 7, Cells: []string{"合計"}})

	res, err := svc.Run(context.Background(), []usage.Batch{batch})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stats.DroppedRows)
	assert.Equal(t, 1, res.Stats.SkippedCells)
	assert.Empty(t, res.Warnings)
}

func TestRunPersistsAndGetLoads(t *testing.T) {
	repo := &memoryRepo{}
	now := time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC)
	svc := newService(t, WithRepository(repo), WithClock(fixedClock{now: now}))
	assert.True(t, svc.HistoryEnabled())

	res, err := svc.Run(context.Background(), []usage.Batch{dayBatch("june.xlsx", 1, "2024-06-03", "1")})
	require.NoError(t, err)
	assert.Equal(t, now, res.CreatedAt)

	loaded, err := svc.Get(context.Background(), "run-1")
	require.NoError(t, err)
	assert.True(t, loaded.Matrix.Equal(res.Matrix))

	_, err = svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestRunReturnsSaveError(t *testing.T) {
	svc := newService(t, WithRepository(&memoryRepo{saveErr: errors.New("db down")}))
	res, err := svc.Run(context.Background(), []usage.Batch{dayBatch("june.xlsx", 1, "2024-06-03", "1")})
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "run-1", res.RunID)
}

func TestGetWithoutHistory(t *testing.T) {
	svc := newService(t)
	assert.False(t, svc.HistoryEnabled())
	_, err := svc.Get(context.Background(), "run-1")
	assert.ErrorIs(t, err, ErrHistoryDisabled)
}

func TestRunHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newService(t).Run(ctx, []usage.Batch{dayBatch("june.xlsx", 1, "2024-06-03", "1")})
	assert.ErrorIs(t, err, context.Canceled)
}

// replaceOnFirstLookup installs a new live calendar the first time the run
// classifies a date, then answers from the calendar it was built over.
type replaceOnFirstLookup struct {
	calendar usage.HolidayCalendar
	replace  func()
	once     sync.Once
}

func (c *replaceOnFirstLookup) IsHoliday(date time.Time) bool {
	c.once.Do(c.replace)
	return c.calendar.IsHoliday(date)
}

type replacingSource struct {
	live *holiday.Dynamic
	next *holiday.Calendar
}

func (s *replacingSource) Snapshot() usage.HolidayCalendar {
	return &replaceOnFirstLookup{calendar: s.live.Snapshot(), replace: func() { s.live.Set(s.next) }}
}

func TestRunClassifiesAgainstOneCalendar(t *testing.T) {
	live := holiday.NewDynamic(nil)
	next := holiday.NewCalendar(
		holiday.Entry{Date: time.Date(2024, 7, 16, 0, 0, 0, 0, time.UTC), Name: "a"},
		holiday.Entry{Date: time.Date(2024, 7, 17, 0, 0, 0, 0, time.UTC), Name: "b"},
	)
	svc := newService(t, WithHolidaySource(&replacingSource{live: live, next: next}))

	// Tuesday and Wednesday in one batch so both rows are selected together.
	july := dayBatch("july.xlsx", 1, "2024-07-16", "1")
	july.Rows = append(july.Rows, dayBatch("july.xlsx", 1, "2024-07-17", "1").Rows[0])
	july.Rows[1].Number = 7

	res, err := svc.Run(context.Background(), []usage.Batch{july})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Matrix.Cell(7, usage.Weekday).Days)
	assert.Equal(t, 0, res.Matrix.Cell(7, usage.Holiday).Days)
	assert.Same(t, next, live.Current())

	res, err = svc.Run(context.Background(), []usage.Batch{july})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Matrix.Cell(7, usage.Weekday).Days)
	assert.Equal(t, 2, res.Matrix.Cell(7, usage.Holiday).Days)
}
