// Package errors provides severity-aware error types.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Severity indicates error impact level.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// ClaimError is a structured error with context.
type ClaimError struct {
	Code        string   `json:"code"`
	Message     string   `json:"message"`
	Severity    Severity `json:"severity"`
	Field       string   `json:"field,omitempty"`
	Recoverable bool     `json:"recoverable"`
	Err         error    `json:"-"`
}

func (e *ClaimError) Error() string {
	msg := fmt.Sprintf("[%s] %s: %s", e.Severity, e.Code, e.Message)
	if e.Field != "" {
		msg += fmt.Sprintf(" (field: %s)", e.Field)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ClaimError) Unwrap() error { return e.Err }

// Error codes
const (
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeCatalogUnavailable = "CATALOG_UNAVAILABLE"
	ErrCodeSettlementFailed   = "SETTLEMENT_FAILED"
	ErrCodePricingFailed      = "PRICING_FAILED"
	ErrCodeItemNotInCatalog   = "ITEM_NOT_IN_CATALOG"
)

// NewValidationError creates an error for a rejected request field.
func NewValidationError(field, message string) *ClaimError {
	return &ClaimError{
		Code:        ErrCodeInvalidRequest,
		Message:     message,
		Severity:    SeverityError,
		Field:       field,
		Recoverable: true,
	}
}

// NewCatalogUnavailableError wraps a failed catalog or rate retrieval.
func NewCatalogUnavailableError(err error) *ClaimError {
	return &ClaimError{
		Code:     ErrCodeCatalogUnavailable,
		Message:  "catalog lookup failed",
		Severity: SeverityFatal,
		Err:      err,
	}
}

// NewSettlementError wraps a failed settlement calculation.
func NewSettlementError(err error) *ClaimError {
	return &ClaimError{
		Code:     ErrCodeSettlementFailed,
		Message:  "settlement calculation failed",
		Severity: SeverityError,
		Err:      err,
	}
}

// NewPricingError wraps a failed line item calculation.
func NewPricingError(err error) *ClaimError {
	return &ClaimError{
		Code:     ErrCodePricingFailed,
		Message:  "line item pricing failed",
		Severity: SeverityError,
		Err:      err,
	}
}

// CodeOf returns the code of the first ClaimError in err's chain, or "".
func CodeOf(err error) string {
	var ce *ClaimError
	if stderrors.As(err, &ce) {
		return ce.Code
	}
	return ""
}
