package ingest

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedFormat is returned for files that are neither .csv nor .xlsx
var ErrUnsupportedFormat = errors.New("unsupported file type, please upload CSV or XLSX")

// ParseError wraps a failure of the underlying CSV/XLSX reader
type ParseError struct {
	Format string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s parsing error: %v", e.Format, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// MissingColumnsError rejects a batch in which some row lacks a required column
type MissingColumnsError struct {
	Required []string
	Found    []string // columns of the first record
	Row      int      // 1-based data row that failed the check
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("file must contain %s columns (row %d is missing a value). Found columns: %s",
		quoteJoin(e.Required), e.Row, strings.Join(e.Found, ","))
}

func quoteJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = "'" + c + "'"
	}
	return strings.Join(quoted, " and ")
}
