package usage

import (
	"errors"
	"time"
)

// Engine folds selected batches into a SummaryMatrix.
type Engine struct {
	classifier *Classifier
}

// NewEngine constructs an Engine.
func NewEngine(classifier *Classifier) (*Engine, error) {
	if classifier == nil {
		return nil, errors.New("usage: nil classifier")
	}
	return &Engine{classifier: classifier}, nil
}

type bucketKey struct {
	month   FiscalMonth
	dayType DayType
}

// Aggregate builds the matrix from the selected batches. A row's date counts once per bucket
// however many rows carry it. Each record is classified by the date of its own timestamp, so an
// end-labeled 0:00 reading lands on the previous day even in a horizontal row. The result does
// not depend on batch or row order.
func (e *Engine) Aggregate(selected []NormalizedBatch) SummaryMatrix {
	a := aggregation{
		classifier: e.classifier,
		matrix:     NewSummaryMatrix(),
		seen:       make(map[bucketKey]map[string]struct{}),
	}
	for _, batch := range selected {
		for _, row := range batch.Rows {
			key, ok := a.countDay(row.Date)
			if !ok {
				continue
			}
			for _, rec := range row.Records {
				if !rec.Slot.IsValid() {
					continue
				}
				recKey := key
				if !rec.Timestamp.IsZero() && DateKey(rec.Timestamp) != DateKey(row.Date) {
					if recKey, ok = a.countDay(DateOf(rec.Timestamp)); !ok {
						continue
					}
				}
				a.matrix.add(recKey.month, recKey.dayType, rec.Slot, rec.Value)
			}
		}
	}
	return a.matrix
}

type aggregation struct {
	classifier *Classifier
	matrix     SummaryMatrix
	seen       map[bucketKey]map[string]struct{}
}

// countDay classifies date and counts it once in its bucket.
func (a *aggregation) countDay(date time.Time) (bucketKey, bool) {
	month, dayType, err := a.classifier.Classify(date)
	if err != nil {
		return bucketKey{}, false
	}
	key := bucketKey{month: month, dayType: dayType}
	days, ok := a.seen[key]
	if !ok {
		days = make(map[string]struct{})
		a.seen[key] = days
	}
	dateKey := DateKey(date)
	if _, counted := days[dateKey]; !counted {
		days[dateKey] = struct{}{}
		a.matrix.countDay(month, dayType)
	}
	return key, true
}
