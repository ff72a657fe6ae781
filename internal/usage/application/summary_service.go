package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"loadprofile/internal/observability/metrics"
	usage "loadprofile/internal/usage/domain"
)

var (
	// ErrRunNotFound is returned when a stored run does not exist.
	ErrRunNotFound = errors.New("summary service: run not found")
	// ErrHistoryDisabled is returned by Get when no repository is configured.
	ErrHistoryDisabled = errors.New("summary service: run history disabled")
)

// Stats counts what happened during a run.
type Stats struct {
	Batches      int `json:"batches"`
	Selected     int `json:"selected"`
	Superseded   int `json:"superseded"`
	NoData       int `json:"no_data"`
	Rejected     int `json:"rejected"`
	DroppedRows  int `json:"dropped_rows"`
	SkippedCells int `json:"skipped_cells"`
}

// Result is the outcome of one summary run. Selected is only populated for fresh runs.
type Result struct {
	RunID     string
	CreatedAt time.Time
	Matrix    usage.SummaryMatrix
	Decisions []usage.Decision
	Warnings  []error
	Stats     Stats
	Selected  []usage.NormalizedBatch
}

// RunRepository persists run history. FindRun returns nil when the id is unknown.
type RunRepository interface {
	SaveRun(ctx context.Context, run Result) error
	FindRun(ctx context.Context, id string) (*Result, error)
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Option configures the summary service.
type Option func(*SummaryService)

// WithRepository enables run history.
func WithRepository(repo RunRepository) Option {
	return func(s *SummaryService) { s.repo = repo }
}

// WithLogger sets the service logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *SummaryService) { s.logger = logger }
}

// HolidaySource yields the holiday calendar a run classifies against.
type HolidaySource interface {
	Snapshot() usage.HolidayCalendar
}

// WithHolidaySource makes every run classify against a snapshot taken when the run starts,
// instead of the calendar the engine was built with.
func WithHolidaySource(source HolidaySource) Option {
	return func(s *SummaryService) { s.holidays = source }
}

// WithClock overrides the clock.
func WithClock(clock Clock) Option {
	return func(s *SummaryService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithIDGenerator overrides run id generation.
func WithIDGenerator(next func() string) Option {
	return func(s *SummaryService) {
		if next != nil {
			s.newID = next
		}
	}
}

// SummaryService runs the normalize, resolve and aggregate pipeline over uploaded batches.
type SummaryService struct {
	normalizer *usage.Normalizer
	engine     *usage.Engine
	holidays   HolidaySource
	repo       RunRepository
	logger     *log.Logger
	clock      Clock
	newID      func() string
}

// NewSummaryService constructs the service.
func NewSummaryService(normalizer *usage.Normalizer, engine *usage.Engine, opts ...Option) (*SummaryService, error) {
	if normalizer == nil {
		return nil, errors.New("summary service: nil normalizer")
	}
	if engine == nil {
		return nil, errors.New("summary service: nil engine")
	}
	s := &SummaryService{
		normalizer: normalizer,
		engine:     engine,
		clock:      SystemClock{},
		newID:      func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run summarizes batches. Batches are ordered by Sequence before resolution so that
// the later submission wins ties. Batch-level faults end up in Result.Warnings.
func (s *SummaryService) Run(ctx context.Context, batches []usage.Batch) (*Result, error) {
	start := time.Now()
	result, err := s.run(ctx, batches)
	outcome := metrics.ResultSuccess
	if err != nil {
		outcome = metrics.ResultError
	}
	metrics.ObserveSummaryRun(outcome, time.Since(start))
	return result, err
}

func (s *SummaryService) run(ctx context.Context, batches []usage.Batch) (*Result, error) {
	if len(batches) == 0 {
		return nil, usage.ErrNoBatches
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	engine := s.engine
	if s.holidays != nil {
		snapshot, err := usage.NewEngine(usage.NewClassifier(s.holidays.Snapshot()))
		if err != nil {
			return nil, err
		}
		engine = snapshot
	}

	ordered := append([]usage.Batch(nil), batches...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Sequence < ordered[j].Sequence })

	result := &Result{
		RunID:     s.newID(),
		CreatedAt: s.clock.Now(),
		Stats:     Stats{Batches: len(ordered)},
	}

	// decisions keeps one slot per input batch; rejected batches fill theirs here.
	decisions := make([]usage.Decision, len(ordered))
	accepted := make([]usage.NormalizedBatch, 0, len(ordered))
	positions := make([]int, 0, len(ordered))
	for i, batch := range ordered {
		normalized, err := s.normalizer.Normalize(batch)
		if err != nil {
			var batchErr *usage.BatchError
			if !errors.As(err, &batchErr) {
				batchErr = &usage.BatchError{BatchID: batch.ID(), Err: err}
			}
			result.Warnings = append(result.Warnings, batchErr)
			decisions[i] = usage.Decision{
				BatchID:  batch.ID(),
				Sequence: batch.Sequence,
				Outcome:  usage.OutcomeRejected,
				Reason:   batchErr.Err.Error(),
			}
			s.logf("summary batch rejected: run=%s batch=%s err=%v", result.RunID, batch.ID(), batchErr.Err)
			continue
		}
		result.Stats.DroppedRows += normalized.DroppedRows
		result.Stats.SkippedCells += normalized.SkippedCells
		accepted = append(accepted, normalized)
		positions = append(positions, i)
	}

	resolution := usage.Resolve(accepted)
	for k, d := range resolution.Decisions {
		decisions[positions[k]] = d
	}
	result.Decisions = decisions
	result.Selected = resolution.SelectedBatches()
	result.Matrix = engine.Aggregate(result.Selected)

	for _, d := range decisions {
		switch d.Outcome {
		case usage.OutcomeSelected:
			result.Stats.Selected++
		case usage.OutcomeSuperseded:
			result.Stats.Superseded++
		case usage.OutcomeNoData:
			result.Stats.NoData++
		case usage.OutcomeRejected:
			result.Stats.Rejected++
		}
		metrics.IncBatchDecision(string(d.Outcome))
	}
	metrics.AddDroppedRows(result.Stats.DroppedRows)
	metrics.AddSkippedCells(result.Stats.SkippedCells)

	s.logf("summary run: id=%s batches=%d selected=%d superseded=%d rejected=%d dropped_rows=%d skipped_cells=%d",
		result.RunID, result.Stats.Batches, result.Stats.Selected, result.Stats.Superseded,
		result.Stats.Rejected, result.Stats.DroppedRows, result.Stats.SkippedCells)

	if s.repo != nil {
		if err := s.repo.SaveRun(ctx, *result); err != nil {
			return result, fmt.Errorf("summary service: save run %s: %w", result.RunID, err)
		}
	}
	return result, nil
}

// Get loads a stored run.
func (s *SummaryService) Get(ctx context.Context, id string) (*Result, error) {
	if s.repo == nil {
		return nil, ErrHistoryDisabled
	}
	if id == "" {
		return nil, ErrRunNotFound
	}
	run, err := s.repo.FindRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, ErrRunNotFound
	}
	return run, nil
}

// HistoryEnabled reports whether runs are persisted.
func (s *SummaryService) HistoryEnabled() bool {
	return s != nil && s.repo != nil
}

func (s *SummaryService) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}
