package models

import (
	"strings"
	"time"
)

// Case is the pass/not-pass outcome of a screening
type Case string

const (
	CasePass    Case = "pass"
	CaseNotPass Case = "not pass"
	CaseError   Case = "error"
)

// ParseCase canonicalizes a case label returned by a classifier.
// "not_pass", "NOT PASS" and "not-pass" all map to CaseNotPass.
func ParseCase(s string) (Case, bool) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("_", " ", "-", " ").Replace(norm)
	switch norm {
	case "pass":
		return CasePass, true
	case "not pass", "notpass":
		return CaseNotPass, true
	case "error":
		return CaseError, true
	}
	return "", false
}

// Category labels. The first six are the ones the remote classifier may return,
// the rest are assigned locally.
const (
	CategoryOTP           = "OTP/Transactional"
	CategoryMarketing     = "Marketing/Promo"
	CategoryFinancialScam = "Financial Scam"
	CategoryGambling      = "Gambling/Illegal"
	CategoryPhishing      = "Phishing"
	CategoryOthers        = "Others"

	CategoryGamblingLoan = "Gambling/Loan Scam" // pre-filter only
	CategoryUnknown      = "Unknown"            // malformed classifier response
	CategoryAPIFailure   = "API Failure"        // remote call failed
)

// ClassifierCategories lists the labels offered to the remote classifier
var ClassifierCategories = []string{
	CategoryOTP,
	CategoryMarketing,
	CategoryFinancialScam,
	CategoryGambling,
	CategoryPhishing,
	CategoryOthers,
}

// AllCategories lists every label a verdict can carry
var AllCategories = append(append([]string{}, ClassifierCategories...),
	CategoryGamblingLoan,
	CategoryUnknown,
	CategoryAPIFailure,
)

// ParseCategory matches a classifier label case-insensitively against ClassifierCategories
func ParseCategory(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, c := range ClassifierCategories {
		if strings.EqualFold(c, s) {
			return c, true
		}
	}
	return "", false
}

// Defaults substituted for fields missing from a classifier response
const (
	DefaultCase     = CaseError
	DefaultCategory = CategoryUnknown
	DefaultNote     = "JSON Missing Field"
)

// RawRecord is one ingested row keyed by column name
type RawRecord map[string]any

// InputRecord is a normalized message ready for classification
type InputRecord struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// Verdict is the classification outcome for one message
type Verdict struct {
	Case     Case   `json:"case"`
	Category string `json:"category"`
	Note     string `json:"note"`
}

// ResultRecord is an InputRecord combined with its Verdict
type ResultRecord struct {
	Sender   string `json:"sender"`
	Text     string `json:"text"`
	Case     Case   `json:"case"`
	Category string `json:"category"`
	Note     string `json:"note"`
}

// NewResultRecord combines a record with its verdict
func NewResultRecord(in InputRecord, v Verdict) ResultRecord {
	return ResultRecord{
		Sender:   in.Sender,
		Text:     in.Text,
		Case:     v.Case,
		Category: v.Category,
		Note:     v.Note,
	}
}

// Job status values
const (
	JobPending   = "pending"
	JobRunning   = "processing"
	JobCompleted = "completed"
	JobCancelled = "cancelled"
	JobFailed    = "failed"
)

// Job represents an async screening batch
type Job struct {
	ID             string     `json:"id" db:"id"`
	Filename       string     `json:"filename" db:"filename"`
	Status         string     `json:"status" db:"status"`
	TotalCount     int        `json:"total_count" db:"total_count"`
	ProcessedCount int        `json:"processed_count" db:"processed_count"`
	FailedCount    int        `json:"failed_count" db:"failed_count"` // rows with case=error
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	ErrorMessage   string     `json:"error_message,omitempty" db:"error_message"`
}
