package sheet

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
)

// DefaultSheetName is the worksheet used when none is configured.
const DefaultSheetName = "analysis"

// XLSXSink appends rows to a local workbook. Each append writes a new copy
// next to the workbook and renames it into place, so a failed append leaves
// the previous rows intact. Appends are serialized.
type XLSXSink struct {
	mu        sync.Mutex
	path      string
	sheetName string
	write     func(f *xlsx.File, w io.Writer) error
}

// NewXLSXSink creates a sink writing to path.
func NewXLSXSink(path, sheetName string) *XLSXSink {
	if sheetName == "" {
		sheetName = DefaultSheetName
	}
	return &XLSXSink{
		path:      path,
		sheetName: sheetName,
		write:     func(f *xlsx.File, w io.Writer) error { return f.Write(w) },
	}
}

// Path returns the workbook location.
func (s *XLSXSink) Path() string { return s.path }

// EnsureHeader creates the workbook and worksheet if needed and writes the
// header row once.
func (s *XLSXSink) EnsureHeader(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "xlsx: ensure header")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f, _, created, err := s.open()
	if err != nil {
		return err
	}
	if !created {
		return nil
	}
	return s.save(f)
}

// Append writes row after the last row and returns its 1-based row number.
func (s *XLSXSink) Append(ctx context.Context, row Row) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", eris.Wrap(err, "xlsx: append")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f, sheet, _, err := s.open()
	if err != nil {
		return "", err
	}
	writeRow(sheet, row.Values())
	if err := s.save(f); err != nil {
		return "", err
	}

	n := len(sheet.Rows)
	zap.L().Debug("xlsx: row appended", zap.String("path", s.path), zap.Int("row", n))
	return strconv.Itoa(n), nil
}

// LastRow returns the most recently appended row.
func (s *XLSXSink) LastRow(ctx context.Context) (Row, error) {
	rows, err := s.Rows(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	return rows[len(rows)-1], nil
}

// Rows returns every data row, oldest first. A missing workbook has no rows.
func (s *XLSXSink) Rows(ctx context.Context) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "xlsx: rows")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return nil, nil
	}
	f, err := xlsx.OpenFile(s.path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}
	sheet, ok := f.Sheet[s.sheetName]
	if !ok {
		return nil, nil
	}

	var rows []Row
	for i, r := range sheet.Rows {
		if i == 0 {
			continue // header
		}
		cells := rowToStrings(r)
		if isBlank(cells) {
			continue
		}
		rows = append(rows, RowFromValues(cells))
	}
	return rows, nil
}

// open loads the workbook, creating the file or worksheet with a header row
// when missing. created reports whether anything had to be created.
func (s *XLSXSink) open() (f *xlsx.File, sheet *xlsx.Sheet, created bool, err error) {
	if _, statErr := os.Stat(s.path); os.IsNotExist(statErr) {
		f = xlsx.NewFile()
	} else {
		f, err = xlsx.OpenFile(s.path)
		if err != nil {
			return nil, nil, false, eris.Wrap(err, "xlsx: open file")
		}
	}

	sheet, ok := f.Sheet[s.sheetName]
	if !ok {
		sheet, err = f.AddSheet(s.sheetName)
		if err != nil {
			return nil, nil, false, eris.Wrapf(err, "xlsx: add sheet %q", s.sheetName)
		}
		created = true
	}
	if len(sheet.Rows) == 0 {
		writeRow(sheet, Headers)
		created = true
	}
	return f, sheet, created, nil
}

func (s *XLSXSink) save(f *xlsx.File) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return eris.Wrap(err, "xlsx: create temp file")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if err := s.write(f, tmp); err != nil {
		_ = tmp.Close()
		return eris.Wrap(err, "xlsx: write file")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "xlsx: close temp file")
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return eris.Wrap(err, "xlsx: replace workbook")
	}
	return nil
}

func writeRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}
