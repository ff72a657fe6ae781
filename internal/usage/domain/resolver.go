package usage

import (
	"sort"
	"time"
)

// Outcome is the fate of a batch in revision resolution.
type Outcome string

const (
	OutcomeSelected   Outcome = "selected"
	OutcomeSuperseded Outcome = "superseded"
	OutcomeNoData     Outcome = "no-data"
	OutcomeRejected   Outcome = "rejected"
)

// Decision records what happened to one batch.
type Decision struct {
	BatchID            string
	Sequence           int
	Outcome            Outcome
	FiscalMonth        FiscalMonth
	RepresentativeDate time.Time
	SupersededBy       string
	Reason             string
}

// Resolution is the authoritative batch per fiscal month plus a decision for every input batch.
type Resolution struct {
	Selected  map[FiscalMonth]NormalizedBatch
	Decisions []Decision
}

// SelectedBatches returns the selected batches in fiscal month order.
func (r Resolution) SelectedBatches() []NormalizedBatch {
	months := make([]int, 0, len(r.Selected))
	for m := range r.Selected {
		months = append(months, int(m))
	}
	sort.Ints(months)
	out := make([]NormalizedBatch, 0, len(months))
	for _, m := range months {
		out = append(out, r.Selected[FiscalMonth(m)])
	}
	return out
}

// Resolve picks one batch per fiscal month: the one with the latest representative date.
// Batches are expected in submission order; on equal dates the later one wins. Batches with
// no parseable timestamp are excluded. Every input batch receives exactly one decision.
func Resolve(batches []NormalizedBatch) Resolution {
	type candidate struct {
		pos  int
		date time.Time
	}

	decisions := make([]Decision, len(batches))
	winners := make(map[FiscalMonth]candidate)
	for i, b := range batches {
		decisions[i] = Decision{BatchID: b.ID(), Sequence: b.Batch.Sequence}
		rep, ok := b.RepresentativeDate()
		if !ok {
			decisions[i].Outcome = OutcomeNoData
			decisions[i].Reason = "no parseable timestamp"
			continue
		}
		month := FiscalMonthOf(rep.Month())
		decisions[i].FiscalMonth = month
		decisions[i].RepresentativeDate = rep

		current, seen := winners[month]
		if !seen || !rep.Before(current.date) {
			winners[month] = candidate{pos: i, date: rep}
		}
	}

	res := Resolution{Selected: make(map[FiscalMonth]NormalizedBatch, len(winners))}
	for month, w := range winners {
		res.Selected[month] = batches[w.pos]
	}
	for i := range decisions {
		if decisions[i].Outcome == OutcomeNoData {
			continue
		}
		w := winners[decisions[i].FiscalMonth]
		if w.pos == i {
			decisions[i].Outcome = OutcomeSelected
			continue
		}
		decisions[i].Outcome = OutcomeSuperseded
		decisions[i].SupersededBy = batches[w.pos].ID()
		decisions[i].Reason = "newer batch for the same fiscal month"
	}
	res.Decisions = decisions
	return res
}
