package core

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/extrame/xls"
)

// oleSignature opens every OLE2 compound file, which is how Excel 97-2003
// (.xls) workbooks are stored.
var oleSignature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// isLegacyWorkbook reports whether the file at path starts with the OLE2
// signature. Errors read as false and surface later when the file is opened.
func isLegacyWorkbook(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	head := make([]byte, len(oleSignature))
	if _, err := io.ReadFull(f, head); err != nil {
		return false
	}
	return bytes.Equal(head, oleSignature)
}

// openLegacyWorkbook opens a BIFF workbook. The decoder panics on some
// truncated files, so panics come back as errors.
func openLegacyWorkbook(path string) (wb *xls.WorkBook, closer io.Closer, err error) {
	defer func() {
		if r := recover(); r != nil {
			wb, closer, err = nil, nil, fmt.Errorf("corrupt xls workbook: %v", r)
		}
	}()
	return xls.OpenWithCloser(path, "utf-8")
}

// legacySheetNames lists the worksheets of a BIFF workbook.
func legacySheetNames(path string) ([]string, error) {
	wb, closer, err := openLegacyWorkbook(path)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	names := make([]string, 0, wb.NumSheets())
	for i := 0; i < wb.NumSheets(); i++ {
		if s := wb.GetSheet(i); s != nil {
			names = append(names, s.Name)
		}
	}
	if len(names) == 0 {
		return nil, ErrNoSheets
	}
	return names, nil
}

// readLegacySheet returns the rows of the named sheet of a BIFF workbook, or
// of the first sheet when sheet is empty, in the same shape excelize's GetRows
// produces. Missing rows come back empty so line numbers stay aligned.
func readLegacySheet(path, sheet string) (rows [][]string, name string, err error) {
	wb, closer, err := openLegacyWorkbook(path)
	if err != nil {
		return nil, "", err
	}
	defer closer.Close()

	defer func() {
		if r := recover(); r != nil {
			rows, name, err = nil, "", fmt.Errorf("corrupt xls workbook: %v", r)
		}
	}()

	var ws *xls.WorkSheet
	for i := 0; i < wb.NumSheets(); i++ {
		s := wb.GetSheet(i)
		if s == nil {
			continue
		}
		if sheet == "" || s.Name == sheet {
			ws = s
			break
		}
	}
	if ws == nil {
		if sheet == "" {
			return nil, "", ErrNoSheets
		}
		return nil, "", fmt.Errorf("sheet %s does not exist", sheet)
	}

	rows = make([][]string, 0, int(ws.MaxRow)+1)
	for i := 0; i <= int(ws.MaxRow); i++ {
		row := ws.Row(i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cells := make([]string, row.LastCol())
		for c := range cells {
			cells[c] = row.Col(c)
		}
		rows = append(rows, cells)
	}
	return trimTrailingEmptyRows(rows), ws.Name, nil
}

func trimTrailingEmptyRows(rows [][]string) [][]string {
	for len(rows) > 0 {
		last := rows[len(rows)-1]
		empty := true
		for _, c := range last {
			if c != "" {
				empty = false
				break
			}
		}
		if !empty {
			break
		}
		rows = rows[:len(rows)-1]
	}
	return rows
}
