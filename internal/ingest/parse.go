package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"sms-screening-service/internal/models"

	"github.com/xuri/excelize/v2"
)

const utf8BOM = "\ufeff"

// Parse reads an uploaded file into raw records, picking the reader by extension
func Parse(r io.Reader, filename string) ([]models.RawRecord, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return ParseCSV(r)
	case ".xlsx":
		return ParseXLSX(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filename)
	}
}

// ParseCSV reads a header row followed by data rows. Column names are normalized;
// if two columns share a name the rightmost one wins.
// Cells beyond a short row's end are left out of that row's record.
func ParseCSV(r io.Reader) ([]models.RawRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, &ParseError{Format: "CSV", Err: err}
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}
	header = normalizeHeader(header)

	var records []models.RawRecord
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &ParseError{Format: "CSV", Err: err}
		}

		rec := make(models.RawRecord, len(header))
		for i, col := range header {
			if i < len(row) {
				rec[col] = row[i]
			}
		}
		records = append(records, rec)
	}

	return records, nil
}

// ParseXLSX reads the first sheet of a workbook; its first row holds the headers,
// normalized like ParseCSV's. Blank cells are omitted and fully blank rows are skipped.
func ParseXLSX(r io.Reader) ([]models.RawRecord, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &ParseError{Format: "Excel", Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &ParseError{Format: "Excel", Err: errors.New("workbook has no sheets")}
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, &ParseError{Format: "Excel", Err: err}
	}
	if len(rows) == 0 {
		return nil, nil
	}

	header := normalizeHeader(rows[0])
	var records []models.RawRecord
	for _, row := range rows[1:] {
		rec := make(models.RawRecord, len(header))
		for i, col := range header {
			if col == "" || i >= len(row) || row[i] == "" {
				continue
			}
			rec[col] = row[i]
		}
		if len(rec) == 0 {
			continue
		}
		records = append(records, rec)
	}

	return records, nil
}

func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	for i, col := range header {
		out[i] = NormalizeKey(col)
	}
	return out
}
