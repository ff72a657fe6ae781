package usage

import (
	"errors"
	"fmt"
)

var (
	// ErrUnclassifiable is returned when a timestamp is zero or cannot be parsed.
	ErrUnclassifiable = errors.New("usage: unclassifiable timestamp")
	// ErrInvalidFiscalMonth is returned for indices outside [4, 15].
	ErrInvalidFiscalMonth = errors.New("usage: invalid fiscal month")
	// ErrInvalidSlot is returned for slots outside [0, 47].
	ErrInvalidSlot = errors.New("usage: invalid slot")
	// ErrInvalidDayType is returned for unknown day types.
	ErrInvalidDayType = errors.New("usage: invalid day type")
	// ErrMissingColumns is returned when neither layout's required columns can be located.
	ErrMissingColumns = errors.New("usage: missing required columns")
	// ErrNoBatches is returned when a run is started without any batch.
	ErrNoBatches = errors.New("usage: no batches supplied")
)

// BatchError reports a batch-level fault. It never aborts a run.
type BatchError struct {
	BatchID string
	Err     error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %s: %v", e.BatchID, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }
