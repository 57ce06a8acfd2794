// Package sheet turns the first worksheet of an .xlsx workbook into records.
//
// The first row is the header. Every following row with at least one
// non-empty cell becomes one record keyed by header name. Cells are coerced
// to int64, float64, bool, nil (empty or a null token such as "NaN") or are
// kept as strings.
package sheet

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/unkn0wn-root/reccache/record"
)

var (
	ErrNoSheet  = errors.New("sheet: workbook has no worksheets")
	ErrNoHeader = errors.New("sheet: header row is empty")
)

// Tokens read as null, as spreadsheet exports commonly write them.
var nullTokens = map[string]struct{}{
	"":     {},
	"NaN":  {},
	"nan":  {},
	"NA":   {},
	"N/A":  {},
	"#N/A": {},
	"NULL": {},
	"null": {},
	"None": {},
}

// Parse reads an .xlsx workbook from r.
func Parse(r io.Reader) ([]record.Record, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("sheet: open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoSheet
	}
	// Raw values keep number formats from rounding or grouping the numbers.
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("sheet: read %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, ErrNoHeader
	}

	header := headerNames(rows[0])
	if len(header) == 0 {
		return nil, ErrNoHeader
	}

	out := make([]record.Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if blank(row) {
			continue
		}
		rec := make(record.Record, len(header))
		for col, name := range header {
			var cell string
			if col < len(row) {
				cell = row[col]
			}
			if b, ok := boolCell(f, sheets[0], col+1, i+2, cell); ok {
				rec[name] = b
				continue
			}
			rec[name] = Coerce(cell)
		}
		out = append(out, rec)
	}
	return out, nil
}

// boolCell reports boolean cells, which raw reads return as "1" or "0".
func boolCell(f *excelize.File, sheet string, col, row int, raw string) (bool, bool) {
	if raw != "1" && raw != "0" {
		return false, false
	}
	ref, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return false, false
	}
	typ, err := f.GetCellType(sheet, ref)
	if err != nil || typ != excelize.CellTypeBool {
		return false, false
	}
	return raw == "1", true
}

// headerNames maps column index to field name. Blank headers are skipped and
// repeated names get a ".N" suffix.
func headerNames(row []string) map[int]string {
	names := make(map[int]string, len(row))
	seen := make(map[string]int, len(row))
	for i, h := range row {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if n := seen[h]; n > 0 {
			seen[h] = n + 1
			h = h + "." + strconv.Itoa(n)
		} else {
			seen[h] = 1
		}
		names[i] = h
	}
	return names
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Coerce converts one cell's text to a record value.
func Coerce(cell string) any {
	s := strings.TrimSpace(cell)
	if _, ok := nullTokens[s]; ok {
		return nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f
	}
	switch s {
	case "TRUE", "True", "true":
		return true
	case "FALSE", "False", "false":
		return false
	}
	return cell
}
