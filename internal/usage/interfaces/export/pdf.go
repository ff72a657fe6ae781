package export

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"loadprofile/internal/observability/metrics"
	"loadprofile/internal/usage/application"
	usage "loadprofile/internal/usage/domain"
)

// BuildSummaryPDF renders per fiscal month totals and day counts. Core fonts only cover
// cp1252; other characters in batch ids are replaced.
func BuildSummaryPDF(res *application.Result) (out []byte, err error) {
	start := time.Now()
	defer func() {
		result := metrics.ResultSuccess
		if err != nil {
			result = metrics.ResultError
		}
		metrics.ObserveExport("pdf", result, time.Since(start))
	}()
	if res == nil {
		return nil, errors.New("summary pdf: nil result")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Load Profile Summary")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Run: %s", res.RunID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", res.CreatedAt.Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Batches: %d  Selected: %d  Superseded: %d  Rejected: %d",
		res.Stats.Batches, res.Stats.Selected, res.Stats.Superseded, res.Stats.Rejected))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Total (kWh): %s", res.Matrix.Total().StringFixed(3)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(25, 6, "Month", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Weekday days", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Weekday kWh", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Holiday days", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Holiday kWh", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, month := range usage.FiscalMonths() {
		weekday := res.Matrix.Cell(month, usage.Weekday)
		holiday := res.Matrix.Cell(month, usage.Holiday)
		pdf.CellFormat(25, 6, month.CalendarMonth().String()[:3], "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%d", weekday.Days), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 6, weekday.Total().StringFixed(3), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%d", holiday.Days), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 6, holiday.Total().StringFixed(3), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	if len(res.Decisions) > 0 {
		pdf.Ln(6)
		pdf.SetFont("Arial", "B", 10)
		pdf.Cell(0, 6, "Batches")
		pdf.Ln(6)
		pdf.SetFont("Arial", "", 9)
		for _, d := range res.Decisions {
			line := fmt.Sprintf("#%d %s: %s", d.Sequence, d.BatchID, d.Outcome)
			if d.SupersededBy != "" {
				line += " by " + d.SupersededBy
			}
			if d.Reason != "" {
				line += " (" + d.Reason + ")"
			}
			pdf.MultiCell(0, 5, tr(line), "", "L", false)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
