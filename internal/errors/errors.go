package errors

import (
	"errors"
	"fmt"
)

// Error is the structured error type for smarthr.
// It carries enough context for logging, CLI output and MCP error mapping.
type Error struct {
	// Code is the unique error code (e.g., "ERR_207_MISSING_ARTIFACT").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Network, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error by code, so errors.Is(err, MissingArtifact(""))
// works regardless of message or path.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *Error) WithSuggestion(suggestion string) *Error {
	e.Suggestion = suggestion
	return e
}

// New creates a new Error with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates an Error from an existing error.
func Wrap(code string, err error) *Error {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *Error {
	return New(ErrCodeConfigInvalid, message, cause)
}

// MissingArtifact reports an absent index or corpus file. The message names
// the path and the suggestion tells the caller which offline step to run.
func MissingArtifact(path, remedy string) *Error {
	e := New(ErrCodeMissingArtifact, fmt.Sprintf("missing artifact %s", path), nil).
		WithDetail("path", path)
	if remedy != "" {
		e.Message = fmt.Sprintf("missing artifact %s; run '%s' first", path, remedy)
		e.Suggestion = fmt.Sprintf("Run '%s' to produce it", remedy)
	}
	return e
}

// IndexNotReady reports a query that arrived before the index could be loaded.
func IndexNotReady(cause error) *Error {
	return New(ErrCodeIndexNotReady, "index is not ready", cause).
		WithSuggestion("Run 'smarthr ingest' and 'smarthr index build' before querying")
}

// CorruptIndex reports artifacts that exist but cannot be used together.
func CorruptIndex(message string, cause error) *Error {
	return New(ErrCodeCorruptIndex, message, cause).
		WithSuggestion("Rebuild the index with 'smarthr index build'")
}

// ProviderFailure reports an embedding backend failure. It is recovered
// locally by the embedder chain and only ever logged.
func ProviderFailure(provider string, cause error) *Error {
	return New(ErrCodeProviderFailure, fmt.Sprintf("embedding provider %s failed", provider), cause).
		WithDetail("provider", provider)
}

// DegenerateSignal reports a retrieval signal that was disabled for a query.
func DegenerateSignal(reason string) *Error {
	return New(ErrCodeDegenerateSignal, reason, nil)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *Error {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *Error {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity anywhere in its chain.
func IsFatal(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the outermost error code, or "" for plain errors.
func GetCode(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// HasCode reports whether any *Error in the chain carries code.
func HasCode(err error, code string) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Code == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// GetCategory extracts the category from an Error.
func GetCategory(err error) Category {
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	return ""
}
