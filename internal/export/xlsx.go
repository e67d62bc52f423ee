package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/user/estatebot/internal/session"
)

const sheetName = "Sheet1"

// decimal matches plain decimal numbers. Codes with leading zeros,
// exponents and NaN/Inf spellings stay text.
var decimal = regexp.MustCompile(`^-?(0|[1-9][0-9]*)(\.[0-9]+)?$`)

// XLSXSink converts CSV exports to an Excel workbook before passing them on.
type XLSXSink struct {
	Next session.ExportSink
}

// Save converts data to a workbook and saves it under filename with its
// extension replaced by .xlsx.
func (s *XLSXSink) Save(ctx context.Context, filename string, data []byte) error {
	book, err := CSVToXLSX(data)
	if err != nil {
		return err
	}
	name := strings.TrimSuffix(filename, filepath.Ext(filename)) + ".xlsx"
	return s.Next.Save(ctx, name, book)
}

// CSVToXLSX builds a single-sheet workbook from CSV. Plain decimal cells are
// stored as numbers; everything else, and the header row, is kept as text.
func CSVToXLSX(data []byte) ([]byte, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	for i, row := range rows {
		cells := make([]any, len(row))
		for j, v := range row {
			cells[j] = v
			if i == 0 {
				continue
			}
			if n, ok := number(v); ok {
				cells[j] = n
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, fmt.Errorf("cell name: %w", err)
		}
		if err := f.SetSheetRow(sheetName, cell, &cells); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func number(v string) (float64, bool) {
	v = strings.TrimSpace(v)
	if !decimal.MatchString(v) {
		return 0, false
	}
	n, err := strconv.ParseFloat(v, 64)
	return n, err == nil
}
