package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// BackendTimeout indicates a backend did not respond within its deadline
	BackendTimeout ErrorCode = "BACKEND_TIMEOUT"
	// BackendUnavailable indicates a backend is not reachable or rejected the connection
	BackendUnavailable ErrorCode = "BACKEND_UNAVAILABLE"
	// BackendMalformedResponse indicates a backend response could not be translated
	BackendMalformedResponse ErrorCode = "BACKEND_MALFORMED_RESPONSE"
	// AllBackendsFailed indicates every attempted backend failed; fatal for the request
	AllBackendsFailed ErrorCode = "ALL_BACKENDS_FAILED"
	// InvalidQueryPlan indicates the caller-supplied query or filters are self-contradictory
	InvalidQueryPlan ErrorCode = "INVALID_QUERY_PLAN"
	// InternalError indicates an unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Command     string `json:"command,omitempty"`
	Description string `json:"description,omitempty"`
}

// SearchError is a coded error carrying details and suggested fixes
type SearchError struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	cause          error
}

// New creates a new SearchError
func New(code ErrorCode, message string, cause error) *SearchError {
	return &SearchError{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: suggestedFixes[code],
	}
}

// Error implements the error interface
func (e *SearchError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *SearchError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *SearchError) WithDetails(details interface{}) *SearchError {
	e.Details = details
	return e
}

// suggestedFixes maps error codes to suggested fix actions
var suggestedFixes = map[ErrorCode][]FixAction{
	BackendUnavailable: {
		{
			Command:     "lakefind status",
			Description: "Check backend health and configuration",
		},
	},
	AllBackendsFailed: {
		{
			Command:     "lakefind status",
			Description: "Check which backends are configured and reachable",
		},
		{
			Command:     "lakefind index <dir>",
			Description: "Build the local indexes if they do not exist yet",
		},
	},
	InvalidQueryPlan: {
		{
			Command:     "lakefind explain \"<query>\"",
			Description: "Inspect how the query was parsed",
		},
	},
}

// CodeOf extracts the error code from an error chain.
// Returns InternalError for non-coded errors.
func CodeOf(err error) ErrorCode {
	var se *SearchError
	if errors.As(err, &se) {
		return se.Code
	}
	return InternalError
}

// IsCode reports whether err carries the given code anywhere in its chain
func IsCode(err error, code ErrorCode) bool {
	var se *SearchError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// IsTimeout reports whether err is timeout-class (backend deadline or cancellation)
func IsTimeout(err error) bool {
	return IsCode(err, BackendTimeout)
}

// IsFatal reports whether err must propagate to the caller instead of being
// recorded as a per-backend outcome
func IsFatal(err error) bool {
	code := CodeOf(err)
	return code == AllBackendsFailed || code == InvalidQueryPlan
}
