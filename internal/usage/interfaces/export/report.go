package export

import (
	"errors"
	"time"

	"loadprofile/internal/usage/application"
	usage "loadprofile/internal/usage/domain"
)

// Report is the serializable view of a summary run.
type Report struct {
	RunID     string            `json:"run_id"`
	CreatedAt time.Time         `json:"created_at"`
	Stats     application.Stats `json:"stats"`
	Cells     []ReportCell      `json:"cells"`
	Decisions []ReportDecision  `json:"decisions"`
	Warnings  []ReportWarning   `json:"warnings"`
}

// ReportCell is one fiscal month and day type.
type ReportCell struct {
	FiscalMonth   int      `json:"fiscal_month"`
	CalendarMonth int      `json:"calendar_month"`
	DayType       string   `json:"day_type"`
	Days          int      `json:"days"`
	Total         string   `json:"total"`
	Slots         []string `json:"slots"`
}

// ReportDecision mirrors a revision decision.
type ReportDecision struct {
	BatchID            string     `json:"batch_id"`
	Sequence           int        `json:"sequence"`
	Outcome            string     `json:"outcome"`
	FiscalMonth        int        `json:"fiscal_month,omitempty"`
	RepresentativeDate *time.Time `json:"representative_date,omitempty"`
	SupersededBy       string     `json:"superseded_by,omitempty"`
	Reason             string     `json:"reason,omitempty"`
}

// ReportWarning is a batch-level fault.
type ReportWarning struct {
	BatchID string `json:"batch_id,omitempty"`
	Message string `json:"message"`
}

// NewReport flattens a result. Slot values keep their exact decimal text.
func NewReport(res *application.Result) Report {
	if res == nil {
		return Report{}
	}
	report := Report{
		RunID:     res.RunID,
		CreatedAt: res.CreatedAt,
		Stats:     res.Stats,
		Cells:     make([]ReportCell, 0, usage.FiscalMonthCount*2),
		Decisions: make([]ReportDecision, 0, len(res.Decisions)),
		Warnings:  make([]ReportWarning, 0, len(res.Warnings)),
	}
	for _, month := range usage.FiscalMonths() {
		for _, dayType := range usage.DayTypes() {
			cell := res.Matrix.Cell(month, dayType)
			slots := make([]string, len(cell.Slots))
			for i, v := range cell.Slots {
				slots[i] = v.String()
			}
			report.Cells = append(report.Cells, ReportCell{
				FiscalMonth:   int(month),
				CalendarMonth: int(month.CalendarMonth()),
				DayType:       dayType.String(),
				Days:          cell.Days,
				Total:         cell.Total().String(),
				Slots:         slots,
			})
		}
	}
	for _, d := range res.Decisions {
		rd := ReportDecision{
			BatchID:      d.BatchID,
			Sequence:     d.Sequence,
			Outcome:      string(d.Outcome),
			SupersededBy: d.SupersededBy,
			Reason:       d.Reason,
		}
		if d.FiscalMonth.IsValid() {
			rd.FiscalMonth = int(d.FiscalMonth)
		}
		if !d.RepresentativeDate.IsZero() {
			rep := d.RepresentativeDate
			rd.RepresentativeDate = &rep
		}
		report.Decisions = append(report.Decisions, rd)
	}
	for _, w := range res.Warnings {
		var batchErr *usage.BatchError
		if errors.As(w, &batchErr) {
			report.Warnings = append(report.Warnings, ReportWarning{BatchID: batchErr.BatchID, Message: batchErr.Err.Error()})
			continue
		}
		report.Warnings = append(report.Warnings, ReportWarning{Message: w.Error()})
	}
	return report
}
