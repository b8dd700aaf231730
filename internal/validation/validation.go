// Package validation provides the severity-collecting result used by draft
// flags, publish responses and the ACGME validator boundary.
package validation

import (
	"encoding/json"
	"fmt"
)

// Severity levels for validation messages
type Severity string

const (
	SeverityError   Severity = "ERROR"   // blocks the operation unless overridden
	SeverityWarning Severity = "WARNING" // surfaced for review, never blocks
	SeverityInfo    Severity = "INFO"    // informational
)

// Result collects all messages rather than failing fast.
type Result struct {
	Messages []Message `json:"messages"`
}

// Message is a single validation message.
type Message struct {
	Severity Severity               `json:"severity"`
	Code     string                 `json:"code"`
	Text     string                 `json:"text"`
	Context  map[string]interface{} `json:"context,omitempty"`
}

// NewResult creates a new empty validation result.
func NewResult() *Result {
	return &Result{Messages: []Message{}}
}

// Add appends a message with the given severity.
func (r *Result) Add(severity Severity, code, text string, context map[string]interface{}) *Result {
	r.Messages = append(r.Messages, Message{
		Severity: severity,
		Code:     code,
		Text:     text,
		Context:  context,
	})
	return r
}

// AddError appends an error message.
func (r *Result) AddError(code, text string) *Result {
	return r.Add(SeverityError, code, text, nil)
}

// AddWarning appends a warning message.
func (r *Result) AddWarning(code, text string) *Result {
	return r.Add(SeverityWarning, code, text, nil)
}

// AddInfo appends an informational message.
func (r *Result) AddInfo(code, text string) *Result {
	return r.Add(SeverityInfo, code, text, nil)
}

// Merge appends all messages from another result.
func (r *Result) Merge(other *Result) *Result {
	if other != nil {
		r.Messages = append(r.Messages, other.Messages...)
	}
	return r
}

// IsValid returns true if no ERROR messages are present.
func (r *Result) IsValid() bool {
	return r.countBySeverity(SeverityError) == 0
}

// ErrorCount returns the number of error messages.
func (r *Result) ErrorCount() int { return r.countBySeverity(SeverityError) }

// WarningCount returns the number of warning messages.
func (r *Result) WarningCount() int { return r.countBySeverity(SeverityWarning) }

// HasWarnings returns true if any warnings exist.
func (r *Result) HasWarnings() bool { return r.WarningCount() > 0 }

func (r *Result) countBySeverity(s Severity) int {
	count := 0
	for _, msg := range r.Messages {
		if msg.Severity == s {
			count++
		}
	}
	return count
}

// MessagesBySeverity returns all messages at the given severity.
func (r *Result) MessagesBySeverity(severity Severity) []Message {
	var out []Message
	for _, msg := range r.Messages {
		if msg.Severity == severity {
			out = append(out, msg)
		}
	}
	return out
}

// WarningTexts returns the text of every warning, for publish responses.
func (r *Result) WarningTexts() []string {
	var out []string
	for _, msg := range r.MessagesBySeverity(SeverityWarning) {
		out = append(out, msg.Text)
	}
	return out
}

// ToJSON marshals the result to JSON.
func (r *Result) ToJSON() (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Summary returns a human-readable one-line summary.
func (r *Result) Summary() string {
	if len(r.Messages) == 0 {
		return "validation passed: no messages"
	}
	return fmt.Sprintf("validation result: %d errors, %d warnings, %d info messages",
		r.ErrorCount(), r.WarningCount(), len(r.Messages)-r.ErrorCount()-r.WarningCount())
}

// Codes for common validation issues
const (
	CodeACGMEHours          = "ACGME_HOURS_EXCEEDED"
	CodeACGMERestViolation  = "ACGME_REST_VIOLATION"
	CodeCoverageGap         = "COVERAGE_GAP"
	CodeDuplicateAssignment = "DUPLICATE_ASSIGNMENT"
	CodeInvalidDateRange    = "INVALID_DATE_RANGE"
	CodeUnknownActivity     = "UNKNOWN_ACTIVITY"
	CodeUnknownRotation     = "UNKNOWN_ROTATION"
)
