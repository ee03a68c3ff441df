/*
Package tabular loads spreadsheet-shaped input files into variance.Table.

PURPOSE:
  The engine never touches files. This package reads CSV and XLSX sources
  into untyped header + row tables and classifies I/O failures so the
  pipeline can decide between the fallback report and a hard failure.

FORMATS:
  - csv:  encoding/csv, ragged rows allowed, UTF-8 BOM stripped
  - xlsx: excelize, first sheet unless Source.Sheet names one

  The format is configuration. File contents are never sniffed.

SEE ALSO:
  - variance/schema.go: Header resolution happens after loading
  - report/report.go: The writing side
*/
package tabular

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/warp/shift-variance/variance"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts "csv" and "xlsx" in any case. Empty means csv.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv":
		return FormatCSV, nil
	case "xlsx":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("%w: %q", variance.ErrUnsupportedFormat, s)
}

// FormatFromPath picks a format from the file extension. Unknown
// extensions read as csv.
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return FormatXLSX
	}
	return FormatCSV
}

// Source names one input file.
type Source struct {
	Name   string
	Path   string
	Format Format
	Sheet  string
}

// Empty reports whether the source is unset. Optional inputs (leave,
// roster) may be empty; they load as tables without columns.
func (s Source) Empty() bool { return strings.TrimSpace(s.Path) == "" }

// Load reads src. A missing file yields a RunError of kind missing_file
// that still wraps fs.ErrNotExist.
func Load(ctx context.Context, src Source) (variance.Table, error) {
	if err := ctx.Err(); err != nil {
		return variance.Table{}, err
	}
	if src.Empty() {
		return variance.Table{Name: src.Name}, nil
	}
	if _, err := os.Stat(src.Path); err != nil {
		kind := variance.KindUnhandled
		if errors.Is(err, fs.ErrNotExist) {
			kind = variance.KindMissingFile
		}
		return variance.Table{}, &variance.RunError{Kind: kind, Op: "load " + src.Name, Err: err}
	}

	var (
		t   variance.Table
		err error
	)
	switch src.Format {
	case FormatCSV, "":
		t, err = readCSVFile(src)
	case FormatXLSX:
		t, err = readXLSXFile(src)
	default:
		err = fmt.Errorf("%w: %q", variance.ErrUnsupportedFormat, src.Format)
	}
	if err != nil {
		return variance.Table{}, &variance.RunError{Kind: variance.KindUnhandled, Op: "load " + src.Name, Err: err}
	}
	return t, nil
}

// =============================================================================
// CSV
// =============================================================================

func readCSVFile(src Source) (variance.Table, error) {
	f, err := os.Open(src.Path)
	if err != nil {
		return variance.Table{}, err
	}
	defer f.Close()
	return ReadCSV(f, src.Name)
}

// ReadCSV reads a header row followed by data rows. An empty input is an
// empty table, not an error.
func ReadCSV(r io.Reader, name string) (variance.Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return variance.Table{}, fmt.Errorf("read csv: %w", err)
	}
	return toTable(name, records), nil
}

// =============================================================================
// XLSX
// =============================================================================

func readXLSXFile(src Source) (variance.Table, error) {
	f, err := excelize.OpenFile(src.Path)
	if err != nil {
		return variance.Table{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := src.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return variance.Table{Name: src.Name}, nil
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return variance.Table{}, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return toTable(src.Name, rows), nil
}

func toTable(name string, records [][]string) variance.Table {
	t := variance.Table{Name: name}
	if len(records) == 0 {
		return t
	}
	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		header[i] = strings.TrimSpace(h)
	}
	t.Header = header
	t.Rows = records[1:]
	return t
}

// IsMissing reports whether err came from a missing input file.
func IsMissing(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
