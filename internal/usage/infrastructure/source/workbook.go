package source

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	usage "loadprofile/internal/usage/domain"
)

// DefaultHeaderRow is where the legacy meter exports carry their column titles.
const DefaultHeaderRow = 5

// ReadWorkbook turns every non-empty sheet of an xlsx stream into one batch.
// Headers are read formatted; data cells are read raw so dates arrive as serials.
func ReadWorkbook(r io.Reader, name string, headerRow int) ([]usage.Batch, error) {
	if headerRow < 1 {
		headerRow = DefaultHeaderRow
	}
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("source: open workbook %s: %w", name, err)
	}
	defer f.Close()

	var batches []usage.Batch
	for _, sheet := range f.GetSheetList() {
		formatted, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("source: read sheet %s/%s: %w", name, sheet, err)
		}
		if len(formatted) == 0 {
			continue
		}
		raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("source: read sheet %s/%s: %w", name, sheet, err)
		}

		batch := usage.Batch{Source: name, Sheet: sheet}
		if len(formatted) >= headerRow {
			batch.Headers = trimCells(formatted[headerRow-1])
		}
		for i := headerRow; i < len(raw); i++ {
			if blank(raw[i]) {
				continue
			}
			batch.Rows = append(batch.Rows, usage.RawRow{Number: i + 1, Cells: raw[i]})
		}
		batches = append(batches, batch)
	}
	return batches, nil
}

func trimCells(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.TrimSpace(c)
	}
	return out
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
