package source

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	usage "loadprofile/internal/usage/domain"
)

// Encoding selects how CSV bytes are decoded.
type Encoding string

const (
	EncodingAuto     Encoding = "auto"
	EncodingUTF8     Encoding = "utf-8"
	EncodingShiftJIS Encoding = "shift_jis"
)

// ErrUnknownEncoding is returned for encodings other than auto, utf-8 and shift_jis.
var ErrUnknownEncoding = errors.New("source: unknown csv encoding")

// ParseEncoding accepts the common spellings of the supported encodings.
func ParseEncoding(value string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "auto":
		return EncodingAuto, nil
	case "utf-8", "utf8":
		return EncodingUTF8, nil
	case "shift_jis", "shift-jis", "sjis", "cp932":
		return EncodingShiftJIS, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownEncoding, value)
	}
}

// ReadCSV reads one CSV file as a single batch. Auto picks UTF-8 when the bytes are
// valid UTF-8 and Shift_JIS otherwise. A UTF-8 byte order mark is dropped.
func ReadCSV(r io.Reader, name string, headerRow int, enc Encoding) (usage.Batch, error) {
	if headerRow < 1 {
		headerRow = 1
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return usage.Batch{}, fmt.Errorf("source: read csv %s: %w", name, err)
	}

	var decoder transform.Transformer
	switch enc {
	case EncodingAuto, "":
		if utf8.Valid(data) {
			decoder = unicode.BOMOverride(unicode.UTF8.NewDecoder())
		} else {
			decoder = japanese.ShiftJIS.NewDecoder()
		}
	case EncodingUTF8:
		decoder = unicode.BOMOverride(unicode.UTF8.NewDecoder())
	case EncodingShiftJIS:
		decoder = japanese.ShiftJIS.NewDecoder()
	default:
		return usage.Batch{}, fmt.Errorf("%w: %q", ErrUnknownEncoding, enc)
	}

	reader := csv.NewReader(transform.NewReader(bytes.NewReader(data), decoder))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	batch := usage.Batch{Source: name}
	line := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return usage.Batch{}, fmt.Errorf("source: parse csv %s: %w", name, err)
		}
		line++
		switch {
		case line < headerRow:
			continue
		case line == headerRow:
			batch.Headers = trimCells(record)
		case !blank(record):
			batch.Rows = append(batch.Rows, usage.RawRow{Number: line, Cells: record})
		}
	}
	return batch, nil
}
