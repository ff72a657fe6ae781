package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"loadprofile/internal/usage/application"
	usage "loadprofile/internal/usage/domain"
)

// SummaryRepository persists summary runs: matrix cells, decisions and warnings.
type SummaryRepository struct {
	db *sql.DB
}

// NewSummaryRepository constructs a repository.
func NewSummaryRepository(db *sql.DB) *SummaryRepository {
	return &SummaryRepository{db: db}
}

// SaveRun writes a run and its matrix in one transaction.
func (r *SummaryRepository) SaveRun(ctx context.Context, run application.Result) error {
	if r == nil || r.db == nil {
		return errors.New("summary repo: nil db")
	}
	if run.RunID == "" {
		return errors.New("summary repo: empty run id")
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := saveRun(ctx, tx, run); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func saveRun(ctx context.Context, tx *sql.Tx, run application.Result) error {
	s := run.Stats
	_, err := tx.ExecContext(ctx, `
INSERT INTO summary_runs (
	id, created_at, batches, selected, superseded, no_data, rejected, dropped_rows, skipped_cells
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		run.RunID, run.CreatedAt, s.Batches, s.Selected, s.Superseded, s.NoData, s.Rejected, s.DroppedRows, s.SkippedCells)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, month := range usage.FiscalMonths() {
		for _, dayType := range usage.DayTypes() {
			cell := run.Matrix.Cell(month, dayType)
			if _, err := tx.ExecContext(ctx, `
INSERT INTO summary_cells (run_id, fiscal_month, day_type, days) VALUES ($1,$2,$3,$4)`,
				run.RunID, int(month), int(dayType), cell.Days); err != nil {
				return fmt.Errorf("insert cell %s/%s: %w", month, dayType, err)
			}
			query, args := slotInsert(run.RunID, month, dayType, cell)
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("insert slots %s/%s: %w", month, dayType, err)
			}
		}
	}

	for i, d := range run.Decisions {
		var month sql.NullInt16
		var rep sql.NullTime
		if d.FiscalMonth.IsValid() {
			month = sql.NullInt16{Int16: int16(d.FiscalMonth), Valid: true}
		}
		if !d.RepresentativeDate.IsZero() {
			rep = sql.NullTime{Time: d.RepresentativeDate, Valid: true}
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO summary_decisions (
	run_id, position, batch_id, sequence, outcome, fiscal_month, representative_date, superseded_by, reason
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			run.RunID, i, d.BatchID, d.Sequence, string(d.Outcome), month, rep, d.SupersededBy, d.Reason); err != nil {
			return fmt.Errorf("insert decision %d: %w", i, err)
		}
	}

	for i, w := range run.Warnings {
		batchID, message := "", w.Error()
		var batchErr *usage.BatchError
		if errors.As(w, &batchErr) {
			batchID, message = batchErr.BatchID, batchErr.Err.Error()
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO summary_warnings (run_id, position, batch_id, message) VALUES ($1,$2,$3,$4)`,
			run.RunID, i, batchID, message); err != nil {
			return fmt.Errorf("insert warning %d: %w", i, err)
		}
	}
	return nil
}

func slotInsert(runID string, month usage.FiscalMonth, dayType usage.DayType, cell usage.Cell) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO summary_cell_slots (run_id, fiscal_month, day_type, slot, value) VALUES ")
	args := []any{runID, int(month), int(dayType)}
	for i, v := range cell.Slots {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, "($1,$2,$3,%d,$%d)", i, len(args)+1)
		args = append(args, v.String())
	}
	return b.String(), args
}

// FindRun loads a run. It returns nil when the id is unknown.
func (r *SummaryRepository) FindRun(ctx context.Context, id string) (*application.Result, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("summary repo: nil db")
	}
	run := application.Result{RunID: id}
	var createdAt time.Time
	err := r.db.QueryRowContext(ctx, `
SELECT created_at, batches, selected, superseded, no_data, rejected, dropped_rows, skipped_cells
FROM summary_runs
WHERE id = $1`, id).Scan(&createdAt, &run.Stats.Batches, &run.Stats.Selected, &run.Stats.Superseded,
		&run.Stats.NoData, &run.Stats.Rejected, &run.Stats.DroppedRows, &run.Stats.SkippedCells)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	run.CreatedAt = createdAt.UTC()

	matrix, err := r.loadMatrix(ctx, id)
	if err != nil {
		return nil, err
	}
	run.Matrix = matrix

	if run.Decisions, err = r.loadDecisions(ctx, id); err != nil {
		return nil, err
	}
	if run.Warnings, err = r.loadWarnings(ctx, id); err != nil {
		return nil, err
	}
	return &run, nil
}

type cellKey struct {
	month   usage.FiscalMonth
	dayType usage.DayType
}

func (r *SummaryRepository) loadMatrix(ctx context.Context, id string) (usage.SummaryMatrix, error) {
	matrix := usage.NewSummaryMatrix()
	cells := make(map[cellKey]*usage.Cell)

	rows, err := r.db.QueryContext(ctx, `
SELECT fiscal_month, day_type, days
FROM summary_cells
WHERE run_id = $1`, id)
	if err != nil {
		return matrix, err
	}
	for rows.Next() {
		var month, dayType, days int
		if err := rows.Scan(&month, &dayType, &days); err != nil {
			rows.Close()
			return matrix, err
		}
		cells[cellKey{usage.FiscalMonth(month), usage.DayType(dayType)}] = &usage.Cell{Days: days}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return matrix, err
	}

	slotRows, err := r.db.QueryContext(ctx, `
SELECT fiscal_month, day_type, slot, value::text
FROM summary_cell_slots
WHERE run_id = $1`, id)
	if err != nil {
		return matrix, err
	}
	defer slotRows.Close()
	for slotRows.Next() {
		var month, dayType, slot int
		var raw string
		if err := slotRows.Scan(&month, &dayType, &slot, &raw); err != nil {
			return matrix, err
		}
		cell, ok := cells[cellKey{usage.FiscalMonth(month), usage.DayType(dayType)}]
		if !ok || !usage.Slot(slot).IsValid() {
			return matrix, fmt.Errorf("summary repo: orphan slot %d/%d/%d", month, dayType, slot)
		}
		value, err := decimal.NewFromString(raw)
		if err != nil {
			return matrix, fmt.Errorf("summary repo: slot value %q: %w", raw, err)
		}
		cell.Slots[slot] = value
	}
	if err := slotRows.Err(); err != nil {
		return matrix, err
	}

	for key, cell := range cells {
		if err := matrix.RestoreCell(key.month, key.dayType, *cell); err != nil {
			return matrix, err
		}
	}
	return matrix, nil
}

func (r *SummaryRepository) loadDecisions(ctx context.Context, id string) ([]usage.Decision, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT batch_id, sequence, outcome, fiscal_month, representative_date, superseded_by, reason
FROM summary_decisions
WHERE run_id = $1
ORDER BY position ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []usage.Decision
	for rows.Next() {
		var (
			d       usage.Decision
			outcome string
			month   sql.NullInt16
			rep     sql.NullTime
		)
		if err := rows.Scan(&d.BatchID, &d.Sequence, &outcome, &month, &rep, &d.SupersededBy, &d.Reason); err != nil {
			return nil, err
		}
		d.Outcome = usage.Outcome(outcome)
		if month.Valid {
			d.FiscalMonth = usage.FiscalMonth(month.Int16)
		}
		if rep.Valid {
			d.RepresentativeDate = rep.Time.UTC()
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *SummaryRepository) loadWarnings(ctx context.Context, id string) ([]error, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT batch_id, message
FROM summary_warnings
WHERE run_id = $1
ORDER BY position ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []error
	for rows.Next() {
		var batchID, message string
		if err := rows.Scan(&batchID, &message); err != nil {
			return nil, err
		}
		if batchID == "" {
			out = append(out, errors.New(message))
			continue
		}
		out = append(out, &usage.BatchError{BatchID: batchID, Err: errors.New(message)})
	}
	return out, rows.Err()
}
