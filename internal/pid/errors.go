package pid

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType classifies failures raised by the tagging engine
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeConfiguration is an unusable category pattern. Recovered locally.
	ErrorTypeConfiguration
	// ErrorTypeValidation is a rejected mutation or malformed input. The graph is unchanged.
	ErrorTypeValidation
	// ErrorTypeExternalIO is a failure of the text-layer provider. Fatal to one extraction run.
	ErrorTypeExternalIO
	// ErrorTypeConsistency is a relationship pointing at a missing entity.
	ErrorTypeConsistency
)

// String returns a string representation of the ErrorType
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeConfiguration:
		return "CONFIGURATION"
	case ErrorTypeValidation:
		return "VALIDATION"
	case ErrorTypeExternalIO:
		return "EXTERNAL_IO"
	case ErrorTypeConsistency:
		return "CONSISTENCY"
	default:
		return "UNKNOWN"
	}
}

// IsRecoverable reports whether processing may continue after an error of this type
func (et ErrorType) IsRecoverable() bool {
	switch et {
	case ErrorTypeConfiguration, ErrorTypeValidation:
		return true
	default:
		return false
	}
}

// Error is the single error type returned by the pid package
type Error struct {
	Type     ErrorType `json:"type"`
	Message  string    `json:"message"`
	Context  string    `json:"context,omitempty"`
	Category Category  `json:"category,omitempty"`
	Page     int       `json:"page,omitempty"`
	Err      error     `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Type, e.Message)
	if e.Context != "" {
		msg += ": " + e.Context
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithPage adds page number information to an existing Error
func (e *Error) WithPage(page int) *Error {
	e.Page = page
	return e
}

// WithContext adds context to an existing Error
func (e *Error) WithContext(context string) *Error {
	e.Context = context
	return e
}

// ConfigurationError reports a category pattern that cannot be compiled.
func ConfigurationError(category Category, expr string, err error) *Error {
	return &Error{
		Type:     ErrorTypeConfiguration,
		Message:  fmt.Sprintf("pattern for %s is not a valid regular expression", category),
		Context:  expr,
		Category: category,
		Err:      err,
	}
}

// ValidationError reports a rejected request. format is passed to fmt.Sprintf.
func ValidationError(format string, args ...any) *Error {
	return &Error{
		Type:    ErrorTypeValidation,
		Message: fmt.Sprintf(format, args...),
	}
}

// ExternalIOError wraps a failure of the text-layer provider for one page.
func ExternalIOError(page int, err error) *Error {
	return &Error{
		Type:    ErrorTypeExternalIO,
		Message: fmt.Sprintf("text layer unavailable for page %d", page),
		Page:    page,
		Err:     err,
	}
}

// ConsistencyError lists relationships whose endpoints do not resolve.
func ConsistencyError(dangling []string) *Error {
	return &Error{
		Type:    ErrorTypeConsistency,
		Message: fmt.Sprintf("%d relationship(s) reference missing entities", len(dangling)),
		Context: strings.Join(dangling, ", "),
	}
}

func isType(err error, t ErrorType) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Type == t
	}
	return false
}

// IsConfiguration reports whether err is a configuration error
func IsConfiguration(err error) bool { return isType(err, ErrorTypeConfiguration) }

// IsValidation reports whether err is a validation error
func IsValidation(err error) bool { return isType(err, ErrorTypeValidation) }

// IsExternalIO reports whether err is an external I/O error
func IsExternalIO(err error) bool { return isType(err, ErrorTypeExternalIO) }

// IsConsistency reports whether err is a consistency error
func IsConsistency(err error) bool { return isType(err, ErrorTypeConsistency) }

// WarningCollection gathers recoverable errors that must be surfaced, not dropped
type WarningCollection struct {
	Warnings []*Error `json:"warnings"`
}

// Add appends a warning, ignoring duplicates of the same category and message
func (wc *WarningCollection) Add(w *Error) {
	if w == nil {
		return
	}
	for _, existing := range wc.Warnings {
		if existing.Type == w.Type && existing.Category == w.Category && existing.Message == w.Message {
			return
		}
	}
	wc.Warnings = append(wc.Warnings, w)
}

// Merge appends all warnings from another slice
func (wc *WarningCollection) Merge(ws []*Error) {
	for _, w := range ws {
		wc.Add(w)
	}
}

// Count returns the number of collected warnings
func (wc *WarningCollection) Count() int {
	return len(wc.Warnings)
}

// Summary returns a text summary of all warnings
func (wc *WarningCollection) Summary() string {
	if len(wc.Warnings) == 0 {
		return "No warnings"
	}
	lines := make([]string, 0, len(wc.Warnings))
	for _, w := range wc.Warnings {
		lines = append(lines, w.Error())
	}
	return fmt.Sprintf("Found %d warning(s):\n%s", len(wc.Warnings), strings.Join(lines, "\n"))
}
