package usage

import "github.com/shopspring/decimal"

// Cell holds the 48 slot sums and the distinct day count of one fiscal month and day type.
type Cell struct {
	Slots [SlotCount]decimal.Decimal
	Days  int
}

// Total sums the 48 slots.
func (c Cell) Total() decimal.Decimal {
	total := decimal.Zero
	for _, v := range c.Slots {
		total = total.Add(v)
	}
	return total
}

// SlotFloats returns the slot sums as float64, in slot order.
func (c Cell) SlotFloats() []float64 {
	out := make([]float64, SlotCount)
	for i, v := range c.Slots {
		out[i] = v.InexactFloat64()
	}
	return out
}

// Equal reports whether both cells hold the same sums and day count.
func (c Cell) Equal(other Cell) bool {
	if c.Days != other.Days {
		return false
	}
	for i := range c.Slots {
		if !c.Slots[i].Equal(other.Slots[i]) {
			return false
		}
	}
	return true
}

// SummaryMatrix is the fiscal-year summary: one Cell per fiscal month and day type.
// Every cell exists from construction. It is a value; copies do not share state.
type SummaryMatrix struct {
	cells [FiscalMonthCount][2]Cell
}

// NewSummaryMatrix returns a zeroed matrix.
func NewSummaryMatrix() SummaryMatrix {
	var m SummaryMatrix
	for i := range m.cells {
		for j := range m.cells[i] {
			for s := range m.cells[i][j].Slots {
				m.cells[i][j].Slots[s] = decimal.Zero
			}
		}
	}
	return m
}

// Cell returns a copy of the cell for month and day type. Invalid keys yield a zero cell.
func (m SummaryMatrix) Cell(month FiscalMonth, dayType DayType) Cell {
	if !month.IsValid() || !dayType.IsValid() {
		return NewSummaryMatrix().cells[0][0]
	}
	return m.cells[month.offset()][dayType]
}

// Total sums every slot of every cell.
func (m SummaryMatrix) Total() decimal.Decimal {
	total := decimal.Zero
	for i := range m.cells {
		for j := range m.cells[i] {
			total = total.Add(m.cells[i][j].Total())
		}
	}
	return total
}

// Equal compares two matrices cell by cell.
func (m SummaryMatrix) Equal(other SummaryMatrix) bool {
	for i := range m.cells {
		for j := range m.cells[i] {
			if !m.cells[i][j].Equal(other.cells[i][j]) {
				return false
			}
		}
	}
	return true
}

func (m *SummaryMatrix) add(month FiscalMonth, dayType DayType, slot Slot, value decimal.Decimal) {
	cell := &m.cells[month.offset()][dayType]
	cell.Slots[slot] = cell.Slots[slot].Add(value)
}

func (m *SummaryMatrix) countDay(month FiscalMonth, dayType DayType) {
	m.cells[month.offset()][dayType].Days++
}

// RestoreCell sets a cell from persisted values. It is meant for repositories rebuilding a
// stored run, not for aggregation.
func (m *SummaryMatrix) RestoreCell(month FiscalMonth, dayType DayType, cell Cell) error {
	if !month.IsValid() {
		return ErrInvalidFiscalMonth
	}
	if !dayType.IsValid() {
		return ErrInvalidDayType
	}
	m.cells[month.offset()][dayType] = cell
	return nil
}
