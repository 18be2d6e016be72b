// Package export serializes screening results to CSV or XLSX.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"sms-screening-service/internal/models"

	"github.com/xuri/excelize/v2"
)

// Format is an export file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// SheetName of the single worksheet in XLSX exports
const SheetName = "Screening Results"

// Header is the fixed column order of every export
var Header = []string{"sender", "text", "case", "category", "note"}

// ErrUnknownFormat is returned by ParseFormat
var ErrUnknownFormat = errors.New("unknown export format, use csv or xlsx")

// ParseFormat accepts "csv" or "xlsx" (case-insensitive, optional leading dot)
func ParseFormat(s string) (Format, error) {
	switch Format(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".")) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// ContentType of the format
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Filename is the download name for the format
func (f Format) Filename() string {
	return "sms_screening_results." + string(f)
}

// Write serializes results in format f
func Write(w io.Writer, f Format, results []models.ResultRecord) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, results)
	case FormatXLSX:
		return WriteXLSX(w, results)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, string(f))
}

func row(r models.ResultRecord) []string {
	return []string{r.Sender, r.Text, string(r.Case), r.Category, r.Note}
}

// WriteCSV writes a header and one quoted row per result
func WriteCSV(w io.Writer, results []models.ResultRecord) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(Header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for i, r := range results {
		if err := writer.Write(row(r)); err != nil {
			return fmt.Errorf("failed to write csv row %d: %w", i+1, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// ReadCSV parses a CSV export back into results
func ReadCSV(r io.Reader) ([]models.ResultRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(Header)

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv export: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	results := make([]models.ResultRecord, 0, len(rows)-1)
	for _, rec := range rows[1:] {
		results = append(results, models.ResultRecord{
			Sender:   rec[0],
			Text:     rec[1],
			Case:     models.Case(rec[2]),
			Category: rec[3],
			Note:     rec[4],
		})
	}
	return results, nil
}

// WriteXLSX writes a single-sheet workbook
func WriteXLSX(w io.Writer, results []models.ResultRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	if err := setRow(f, 1, Header); err != nil {
		return err
	}
	for i, r := range results {
		if err := setRow(f, i+2, row(r)); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write xlsx: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, n int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return err
	}

	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	if err := f.SetSheetRow(SheetName, cell, &cells); err != nil {
		return fmt.Errorf("failed to write xlsx row %d: %w", n, err)
	}
	return nil
}
