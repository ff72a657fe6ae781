package export

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"loadprofile/internal/observability/metrics"
	"loadprofile/internal/usage/application"
	usage "loadprofile/internal/usage/domain"
)

var (
	// ErrNoOutputTarget is returned when a write is requested without a destination.
	ErrNoOutputTarget = errors.New("export: no output target")
	// ErrTemplateSheet is returned when the template lacks the mapped sheet.
	ErrTemplateSheet = errors.New("export: template sheet not found")
)

const (
	rawSheetLayout = "200601"
	rawSheetSuffix = " raw"
)

// TemplateWriter fills a workbook template with a summary matrix.
type TemplateWriter struct {
	templatePath string
	mapper       CellMapper
	rawSheets    bool
}

// WriterOption configures a TemplateWriter.
type WriterOption func(*TemplateWriter)

// WithTemplate opens path instead of starting from a blank workbook.
func WithTemplate(path string) WriterOption {
	return func(w *TemplateWriter) { w.templatePath = path }
}

// WithRawSheets toggles the per-batch YYYYMM copies.
func WithRawSheets(enabled bool) WriterOption {
	return func(w *TemplateWriter) { w.rawSheets = enabled }
}

// NewTemplateWriter constructs a writer.
func NewTemplateWriter(mapper CellMapper, opts ...WriterOption) (*TemplateWriter, error) {
	if mapper == nil {
		return nil, errors.New("template writer: nil mapper")
	}
	if layout, ok := mapper.(GridLayout); ok {
		if err := layout.Validate(); err != nil {
			return nil, err
		}
	}
	w := &TemplateWriter{mapper: mapper, rawSheets: true}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Write renders res into out.
func (w *TemplateWriter) Write(res *application.Result, out io.Writer) (err error) {
	start := time.Now()
	defer func() {
		result := metrics.ResultSuccess
		if err != nil {
			result = metrics.ResultError
		}
		metrics.ObserveExport("xlsx", result, time.Since(start))
	}()

	if out == nil {
		return ErrNoOutputTarget
	}
	if res == nil {
		return errors.New("template writer: nil result")
	}
	f, err := w.open()
	if err != nil {
		return err
	}
	defer f.Close()

	grid, err := w.fill(f, res)
	if err != nil {
		return err
	}
	if w.rawSheets {
		if err := writeRawSheets(f, res.Selected, grid); err != nil {
			return err
		}
	}
	return f.Write(out)
}

// WriteFile renders res to path.
func (w *TemplateWriter) WriteFile(res *application.Result, path string) error {
	if path == "" {
		return ErrNoOutputTarget
	}
	var buf bytes.Buffer
	if err := w.Write(res, &buf); err != nil {
		return err
	}
	return writeFileAtomic(path, buf.Bytes())
}

func (w *TemplateWriter) open() (*excelize.File, error) {
	if w.templatePath != "" {
		f, err := excelize.OpenFile(w.templatePath)
		if err != nil {
			return nil, fmt.Errorf("template writer: open template: %w", err)
		}
		return f, nil
	}
	f := excelize.NewFile()
	if layout, ok := w.mapper.(GridLayout); ok {
		if err := prepareBlankGrid(f, layout); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

// fill writes the matrix through the mapper and returns the sheets it touched.
func (w *TemplateWriter) fill(f *excelize.File, res *application.Result) (map[string]struct{}, error) {
	touched := make(map[string]struct{})
	for _, month := range usage.FiscalMonths() {
		for _, dayType := range usage.DayTypes() {
			cell := res.Matrix.Cell(month, dayType)
			for s, value := range cell.SlotFloats() {
				coord, err := w.mapper.SlotCell(month, dayType, usage.Slot(s))
				if err != nil {
					return nil, err
				}
				if err := setValue(f, coord, value); err != nil {
					return nil, err
				}
				touched[coord.Sheet] = struct{}{}
			}
			coord, err := w.mapper.DayCountCell(month, dayType)
			if err != nil {
				return nil, err
			}
			if err := setValue(f, coord, cell.Days); err != nil {
				return nil, err
			}
			touched[coord.Sheet] = struct{}{}
		}
	}
	return touched, nil
}

func setValue(f *excelize.File, coord Coordinate, value any) error {
	if idx, err := f.GetSheetIndex(coord.Sheet); err != nil || idx < 0 {
		return fmt.Errorf("%w: %s", ErrTemplateSheet, coord.Sheet)
	}
	name, err := coord.Cell()
	if err != nil {
		return err
	}
	return f.SetCellValue(coord.Sheet, name, value)
}

// prepareBlankGrid names the grid sheet and labels its months and slots.
func prepareBlankGrid(f *excelize.File, layout GridLayout) error {
	if err := f.SetSheetName("Sheet1", layout.Sheet); err != nil {
		return err
	}
	labelRow := layout.FirstSlotRow - 1
	for _, month := range usage.FiscalMonths() {
		for _, dayType := range usage.DayTypes() {
			col, err := layout.column(month, dayType)
			if err != nil {
				return err
			}
			if labelRow >= 1 {
				name, _ := excelize.CoordinatesToCellName(col, labelRow)
				label := fmt.Sprintf("%d月 %s", int(month.CalendarMonth()), dayTypeLabel(dayType))
				if err := f.SetCellValue(layout.Sheet, name, label); err != nil {
					return err
				}
			}
		}
	}
	labelCol := min(layout.WeekdayStartCol, layout.HolidayStartCol) - 1
	if labelCol < 1 {
		return nil
	}
	for s := usage.Slot(0); s < usage.SlotCount; s++ {
		name, _ := excelize.CoordinatesToCellName(labelCol, layout.FirstSlotRow+int(s))
		if err := f.SetCellValue(layout.Sheet, name, s.Label()); err != nil {
			return err
		}
	}
	name, _ := excelize.CoordinatesToCellName(labelCol, layout.DayCountRow)
	return f.SetCellValue(layout.Sheet, name, "日数")
}

func dayTypeLabel(d usage.DayType) string {
	if d == usage.Holiday {
		return "休日"
	}
	return "平日"
}

// writeRawSheets copies every selected batch into a sheet titled by its representative month.
// A sheet of the same title left in the template is replaced, unless the grid was
// written there; the copy then goes to "<YYYYMM> raw" so the summary survives.
func writeRawSheets(f *excelize.File, selected []usage.NormalizedBatch, grid map[string]struct{}) error {
	for _, batch := range selected {
		rep, ok := batch.RepresentativeDate()
		if !ok {
			continue
		}
		title := rep.Format(rawSheetLayout)
		if _, taken := grid[title]; taken {
			title += rawSheetSuffix
		}
		if idx, err := f.GetSheetIndex(title); err == nil && idx >= 0 {
			if err := f.DeleteSheet(title); err != nil {
				return err
			}
		}
		if _, err := f.NewSheet(title); err != nil {
			return err
		}
		if len(batch.Batch.Headers) > 0 {
			if err := writeRow(f, title, 1, batch.Batch.Headers); err != nil {
				return err
			}
		}
		for i, row := range batch.Batch.Rows {
			if err := writeRow(f, title, i+2, row.Cells); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, cells []string) error {
	values := make([]interface{}, len(cells))
	for i, c := range cells {
		trimmed := strings.TrimSpace(c)
		if n, err := strconv.ParseFloat(trimmed, 64); err == nil && !math.IsNaN(n) && !math.IsInf(n, 0) {
			values[i] = n
			continue
		}
		values[i] = c
	}
	start, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, start, &values)
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".summary-*.xlsx")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
