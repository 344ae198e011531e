// Package sheet reads spreadsheet files into rows keyed by header name.
package sheet

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/unicode/norm"

	"github.com/tabsync/tabsync/internal/config"
	"github.com/tabsync/tabsync/internal/mapping"
)

// Options selects what part of a workbook is read.
type Options struct {
	// Sheet is the worksheet name. Empty selects the first sheet.
	Sheet string
}

// ReadFile reads the rows of one worksheet of an .xlsx workbook.
//
// The first row is the header. Header names are NFC-normalized, repeated
// names get a ".N" suffix and columns with an empty header are dropped.
// Numeric cells are returned as float64, or as time.Time when the cell
// carries a date number format. All others are strings; empty cells are left
// out of the row.
func ReadFile(path string, opts Options) ([]mapping.Row, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".xlsx" {
		return nil, fmt.Errorf("%w for input file: %q", config.ErrUnsupportedFormat, ext)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheetName := opts.Sheet
	if sheetName == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook %s has no sheets", path)
		}
		sheetName = sheets[0]
	} else if idx, err := f.GetSheetIndex(sheetName); err != nil || idx < 0 {
		return nil, fmt.Errorf("sheet %q not found in %s", sheetName, path)
	}

	cells, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheetName, err)
	}
	if len(cells) == 0 {
		return []mapping.Row{}, nil
	}

	var date1904 bool
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}

	headers := headerNames(cells[0])
	rows := make([]mapping.Row, 0, len(cells)-1)
	for r, raw := range cells[1:] {
		row := mapping.Row{}
		for c, text := range raw {
			if c >= len(headers) || headers[c] == "" || text == "" {
				continue
			}
			value, err := cellValue(f, sheetName, c+1, r+2, text, date1904)
			if err != nil {
				return nil, err
			}
			row = append(row, mapping.Cell{Column: headers[c], Value: value})
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// headerNames normalizes the header row. Empty names stay empty so their
// columns can be skipped.
func headerNames(raw []string) []string {
	names := make([]string, len(raw))
	seen := make(map[string]int)
	for i, h := range raw {
		h = norm.NFC.String(h)
		if strings.TrimSpace(h) == "" {
			continue
		}
		if n, dup := seen[h]; dup {
			seen[h] = n + 1
			h = fmt.Sprintf("%s.%d", h, n+1)
		} else {
			seen[h] = 0
		}
		names[i] = h
	}
	return names
}

func cellValue(f *excelize.File, sheetName string, col, row int, text string, date1904 bool) (any, error) {
	ref, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cell (%d,%d): %w", col, row, err)
	}
	ct, err := f.GetCellType(sheetName, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to read type of %s: %w", ref, err)
	}

	switch ct {
	case excelize.CellTypeDate:
		if t, err := time.Parse(time.RFC3339Nano, text); err == nil {
			return t, nil
		}
		if n, err := strconv.ParseFloat(text, 64); err == nil {
			return toTime(n, date1904, ref)
		}
	case excelize.CellTypeNumber, excelize.CellTypeUnset:
		n, err := strconv.ParseFloat(text, 64)
		if err != nil {
			break
		}
		isDate, err := hasDateFormat(f, sheetName, ref)
		if err != nil {
			return nil, err
		}
		if isDate {
			return toTime(n, date1904, ref)
		}
		return n, nil
	}
	return text, nil
}

func toTime(serial float64, date1904 bool, ref string) (any, error) {
	t, err := excelize.ExcelDateToTime(serial, date1904)
	if err != nil {
		return nil, fmt.Errorf("failed to convert date in %s: %w", ref, err)
	}
	return t, nil
}

// hasDateFormat reports whether the style of a cell formats its number as a
// date or time.
func hasDateFormat(f *excelize.File, sheetName, ref string) (bool, error) {
	idx, err := f.GetCellStyle(sheetName, ref)
	if err != nil {
		return false, fmt.Errorf("failed to read style of %s: %w", ref, err)
	}
	style, err := f.GetStyle(idx)
	if err != nil {
		return false, fmt.Errorf("failed to read style of %s: %w", ref, err)
	}
	if style.CustomNumFmt != nil {
		return isDateLayout(*style.CustomNumFmt), nil
	}
	return isBuiltinDateFormat(style.NumFmt), nil
}

// isBuiltinDateFormat reports whether id is one of the predefined date and
// time number formats, including the East Asian ones.
func isBuiltinDateFormat(id int) bool {
	switch {
	case id >= 14 && id <= 22,
		id >= 27 && id <= 36,
		id >= 45 && id <= 47,
		id >= 50 && id <= 58:
		return true
	}
	return false
}

// isDateLayout reports whether a custom number format has date or time
// tokens outside of quoted literals, escapes and bracketed sections such as
// colors and locales. Elapsed time sections like [h] count as time.
func isDateLayout(layout string) bool {
	// Only the first section applies to positive numbers.
	inQuote := false
	for i := 0; i < len(layout); i++ {
		c := layout[i]
		switch {
		case inQuote:
			if c == '"' {
				inQuote = false
			}
		case c == '"':
			inQuote = true
		case c == '\\' || c == '_' || c == '*':
			i++
		case c == '[':
			end := strings.IndexByte(layout[i:], ']')
			if end < 0 {
				return false
			}
			switch strings.ToLower(layout[i+1 : i+end]) {
			case "h", "hh", "m", "mm", "s", "ss":
				return true
			}
			i += end
		case c == ';':
			return false
		default:
			switch c | 0x20 {
			case 'y', 'd', 'h', 's', 'm':
				return true
			}
		}
	}
	return false
}
