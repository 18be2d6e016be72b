package ingest

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"sms-screening-service/internal/models"
)

// RequiredColumns must be present in every row of a batch
var RequiredColumns = []string{"sender", "text"}

// NormalizeKey lower-cases and trims a column name
func NormalizeKey(k string) string {
	return strings.ToLower(strings.TrimSpace(k))
}

// NormalizeKeys returns a copy of rec with lower-cased, trimmed column names.
// When several names collapse to the same key, the one sorting last wins.
func NormalizeKeys(rec models.RawRecord) models.RawRecord {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(models.RawRecord, len(rec))
	for _, k := range keys {
		out[NormalizeKey(k)] = rec[k]
	}
	return out
}

// Normalize validates the whole batch and converts it to input records.
// A single row without a sender or text rejects the batch; no rows is an empty batch.
func Normalize(raw []models.RawRecord) ([]models.InputRecord, error) {
	if len(raw) == 0 {
		return []models.InputRecord{}, nil
	}

	normalized := make([]models.RawRecord, len(raw))
	for i, rec := range raw {
		normalized[i] = NormalizeKeys(rec)
	}

	records := make([]models.InputRecord, len(normalized))
	for i, rec := range normalized {
		sender, okSender := Stringify(rec["sender"])
		text, okText := Stringify(rec["text"])
		if !okSender || !okText {
			return nil, &MissingColumnsError{
				Required: RequiredColumns,
				Found:    columns(normalized[0]),
				Row:      i + 1,
			}
		}
		records[i] = models.InputRecord{Sender: sender, Text: text}
	}

	return records, nil
}

// Stringify coerces a cell value to text. It reports false for absent or blank values.
func Stringify(v any) (string, bool) {
	var s string
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		s = val
	case bool:
		s = strconv.FormatBool(val)
	case float64:
		s = strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		s = strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		s = strconv.Itoa(val)
	case int64:
		s = strconv.FormatInt(val, 10)
	case fmt.Stringer:
		s = val.String()
	default:
		s = fmt.Sprint(val)
	}

	if strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}

func columns(rec models.RawRecord) []string {
	cols := make([]string, 0, len(rec))
	for k := range rec {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}
