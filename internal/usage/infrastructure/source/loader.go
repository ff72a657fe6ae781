package source

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	usage "loadprofile/internal/usage/domain"
)

// ErrUnsupportedFormat is returned for files that are neither xlsx nor csv.
var ErrUnsupportedFormat = errors.New("source: unsupported file format")

// Options controls how uploaded files are read.
type Options struct {
	// WorkbookHeaderRow is the 1-based header row of every xlsx sheet.
	WorkbookHeaderRow int
	// CSVHeaderRow is the 1-based header record of csv files.
	CSVHeaderRow int
	Encoding     Encoding
}

// Loader reads files in submission order and stamps every batch with an increasing sequence.
type Loader struct {
	opts Options
	next int
}

// NewLoader constructs a loader.
func NewLoader(opts Options) *Loader {
	if opts.WorkbookHeaderRow < 1 {
		opts.WorkbookHeaderRow = DefaultHeaderRow
	}
	if opts.CSVHeaderRow < 1 {
		opts.CSVHeaderRow = 1
	}
	if opts.Encoding == "" {
		opts.Encoding = EncodingAuto
	}
	return &Loader{opts: opts}
}

// Load reads one file, choosing the reader by extension.
func (l *Loader) Load(name string, r io.Reader) ([]usage.Batch, error) {
	var batches []usage.Batch
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		read, err := ReadWorkbook(r, name, l.opts.WorkbookHeaderRow)
		if err != nil {
			return nil, err
		}
		batches = read
	case ".csv":
		batch, err := ReadCSV(r, name, l.opts.CSVHeaderRow, l.opts.Encoding)
		if err != nil {
			return nil, err
		}
		batches = []usage.Batch{batch}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
	for i := range batches {
		l.next++
		batches[i].Sequence = l.next
	}
	return batches, nil
}
