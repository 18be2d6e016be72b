// Package prefilter rejects messages containing explicitly banned terms
// without consulting the remote classifier.
package prefilter

import (
	"strings"

	"sms-screening-service/internal/models"
)

// DefaultTerms are gambling and instant-loan terms (Thai)
var DefaultTerms = []string{
	"พนัน",     // gambling
	"บาคาร่า",  // baccarat
	"เงินด่วน", // instant cash loan
}

// DefaultNote explains a denylist rejection
const DefaultNote = "มีคำต้องห้ามชัดเจน: พนัน/เงินด่วน"

// Filter is a case-insensitive substring denylist
type Filter struct {
	terms   []string
	verdict models.Verdict
}

// New creates a filter over terms. An empty list falls back to DefaultTerms.
func New(terms ...string) *Filter {
	if len(terms) == 0 {
		terms = DefaultTerms
	}

	lowered := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			lowered = append(lowered, t)
		}
	}

	return &Filter{
		terms: lowered,
		verdict: models.Verdict{
			Case:     models.CaseNotPass,
			Category: models.CategoryGamblingLoan,
			Note:     DefaultNote,
		},
	}
}

// Check returns the rejection verdict if text contains any denylisted term
func (f *Filter) Check(text string) (models.Verdict, bool) {
	lower := strings.ToLower(text)
	for _, term := range f.terms {
		if strings.Contains(lower, term) {
			return f.verdict, true
		}
	}
	return models.Verdict{}, false
}

// Terms returns the active denylist
func (f *Filter) Terms() []string {
	return append([]string(nil), f.terms...)
}
