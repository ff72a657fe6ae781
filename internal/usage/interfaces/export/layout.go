package export

import (
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"

	usage "loadprofile/internal/usage/domain"
)

// ErrInvalidLayout is returned when a grid layout's regions overlap or fall off the sheet.
var ErrInvalidLayout = errors.New("export: invalid grid layout")

// Coordinate is a 1-based sheet position.
type Coordinate struct {
	Sheet string
	Col   int
	Row   int
}

// Cell returns the A1 style name of the coordinate.
func (c Coordinate) Cell() (string, error) {
	return excelize.CoordinatesToCellName(c.Col, c.Row)
}

// CellMapper places matrix values in the destination workbook.
type CellMapper interface {
	SlotCell(month usage.FiscalMonth, dayType usage.DayType, slot usage.Slot) (Coordinate, error)
	DayCountCell(month usage.FiscalMonth, dayType usage.DayType) (Coordinate, error)
}

// GridLayout puts each fiscal month in its own column. Weekday and holiday data sit in two
// disjoint column blocks; the 48 slots run down from FirstSlotRow and the day count sits
// in DayCountRow.
type GridLayout struct {
	Sheet           string
	WeekdayStartCol int
	HolidayStartCol int
	FirstSlotRow    int
	DayCountRow     int
}

// DefaultGridLayout matches the legacy load-curve template: weekday months in C..N,
// holiday months in Q..AB, slots on rows 4..51 and day counts on row 52.
func DefaultGridLayout() GridLayout {
	return GridLayout{
		Sheet:           "Sheet1",
		WeekdayStartCol: 3,
		HolidayStartCol: 17,
		FirstSlotRow:    4,
		DayCountRow:     52,
	}
}

// Validate checks that the two regions and the day count row do not overlap.
func (g GridLayout) Validate() error {
	if g.Sheet == "" {
		return fmt.Errorf("%w: empty sheet name", ErrInvalidLayout)
	}
	if g.WeekdayStartCol < 1 || g.HolidayStartCol < 1 || g.FirstSlotRow < 1 || g.DayCountRow < 1 {
		return fmt.Errorf("%w: coordinates must be positive", ErrInvalidLayout)
	}
	if overlaps(g.WeekdayStartCol, g.HolidayStartCol, usage.FiscalMonthCount) {
		return fmt.Errorf("%w: weekday and holiday columns overlap", ErrInvalidLayout)
	}
	lastSlotRow := g.FirstSlotRow + usage.SlotCount - 1
	if g.DayCountRow >= g.FirstSlotRow && g.DayCountRow <= lastSlotRow {
		return fmt.Errorf("%w: day count row %d inside slot rows %d..%d", ErrInvalidLayout, g.DayCountRow, g.FirstSlotRow, lastSlotRow)
	}
	return nil
}

func overlaps(a, b, width int) bool {
	return a < b+width && b < a+width
}

func (g GridLayout) column(month usage.FiscalMonth, dayType usage.DayType) (int, error) {
	if !month.IsValid() {
		return 0, fmt.Errorf("%w: %d", usage.ErrInvalidFiscalMonth, int(month))
	}
	offset := int(month - usage.FirstFiscalMonth)
	switch dayType {
	case usage.Weekday:
		return g.WeekdayStartCol + offset, nil
	case usage.Holiday:
		return g.HolidayStartCol + offset, nil
	default:
		return 0, fmt.Errorf("%w: %d", usage.ErrInvalidDayType, int(dayType))
	}
}

// SlotCell implements CellMapper.
func (g GridLayout) SlotCell(month usage.FiscalMonth, dayType usage.DayType, slot usage.Slot) (Coordinate, error) {
	if !slot.IsValid() {
		return Coordinate{}, fmt.Errorf("%w: %d", usage.ErrInvalidSlot, int(slot))
	}
	col, err := g.column(month, dayType)
	if err != nil {
		return Coordinate{}, err
	}
	return Coordinate{Sheet: g.Sheet, Col: col, Row: g.FirstSlotRow + int(slot)}, nil
}

// DayCountCell implements CellMapper.
func (g GridLayout) DayCountCell(month usage.FiscalMonth, dayType usage.DayType) (Coordinate, error) {
	col, err := g.column(month, dayType)
	if err != nil {
		return Coordinate{}, err
	}
	return Coordinate{Sheet: g.Sheet, Col: col, Row: g.DayCountRow}, nil
}
