package ingest

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType is the classification attached to dead-letter records. It is
// advisory metadata only and never drives control flow.
type ErrorType string

const (
	ErrorTypeTransform  ErrorType = "transform"
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeDatabase   ErrorType = "database"
	ErrorTypeTimeout    ErrorType = "timeout"
	ErrorTypeUnknown    ErrorType = "unknown"
)

// TransformError reports a raw payload that could not be turned into a draft,
// naming the field that was missing or malformed.
type TransformError struct {
	Field   string
	Message string
}

func (e *TransformError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("transform failed: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("transform failed: missing required field %s", e.Field)
}

// RuleFailure is one failed validation rule.
type RuleFailure struct {
	Field   string
	Value   any
	Message string
}

// ValidationError carries the first failing field for fail-fast control flow
// plus every failing rule and the raw payload for diagnostics.
type ValidationError struct {
	Field    string
	Value    any
	Failures []RuleFailure
	Raw      any
}

func (e *ValidationError) Error() string {
	msg := ""
	if len(e.Failures) > 0 {
		msg = e.Failures[0].Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, msg)
}

var (
	databaseKeywords = []string{"database", "sql", "postgres", "constraint", "unique", "foreign key"}
	timeoutKeywords  = []string{"timeout", "timed out", "deadline exceeded"}
	validityKeywords = []string{"validation", "invalid", "required field", "missing"}
)

// Classify maps an error into the dead-letter taxonomy. Typed transform and
// validation failures classify by type; everything else falls back to
// case-insensitive substring matching on the message, database and timeout
// keywords taking priority over validation ones.
func Classify(err error) ErrorType {
	if err == nil {
		return ErrorTypeUnknown
	}

	var te *TransformError
	if errors.As(err, &te) {
		return ErrorTypeTransform
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ErrorTypeValidation
	}

	msg := strings.ToLower(err.Error())
	for _, kw := range databaseKeywords {
		if strings.Contains(msg, kw) {
			return ErrorTypeDatabase
		}
	}
	for _, kw := range timeoutKeywords {
		if strings.Contains(msg, kw) {
			return ErrorTypeTimeout
		}
	}
	for _, kw := range validityKeywords {
		if strings.Contains(msg, kw) {
			return ErrorTypeValidation
		}
	}
	return ErrorTypeUnknown
}
