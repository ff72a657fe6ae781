package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"loadprofile/internal/usage/infrastructure/holiday"
)

// HolidayRepository reads and maintains the public_holidays table.
type HolidayRepository struct {
	db *sql.DB
}

// NewHolidayRepository constructs a repository.
func NewHolidayRepository(db *sql.DB) *HolidayRepository {
	return &HolidayRepository{db: db}
}

// LoadCalendar reads every stored holiday into a static calendar.
func (r *HolidayRepository) LoadCalendar(ctx context.Context) (*holiday.Calendar, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("holiday repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT holiday_date, name
FROM public_holidays
ORDER BY holiday_date ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []holiday.Entry
	for rows.Next() {
		var date time.Time
		var name string
		if err := rows.Scan(&date, &name); err != nil {
			return nil, err
		}
		entries = append(entries, holiday.Entry{
			Date: time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC),
			Name: name,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return holiday.NewCalendar(entries...), nil
}

// Upsert stores holidays, replacing names of existing dates.
func (r *HolidayRepository) Upsert(ctx context.Context, entries []holiday.Entry) error {
	if r == nil || r.db == nil {
		return errors.New("holiday repo: nil db")
	}
	if len(entries) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Date.IsZero() {
			continue
		}
		_, err := tx.ExecContext(ctx, `
INSERT INTO public_holidays (holiday_date, name) VALUES ($1,$2)
ON CONFLICT (holiday_date)
DO UPDATE SET name = EXCLUDED.name`, e.Date.Format("2006-01-02"), e.Name)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
