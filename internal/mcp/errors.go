// Package mcp implements the Model Context Protocol (MCP) server for smarthr.
package mcp

import (
	"context"
	"errors"
	"fmt"

	hrerrors "github.com/Aman-CERP/smarthr/internal/errors"
)

// Custom MCP error codes for smarthr.
const (
	// ErrCodeIndexNotReady indicates the index artifacts are missing.
	ErrCodeIndexNotReady = -32001

	// ErrCodeProviderFailed indicates an external provider failed.
	ErrCodeProviderFailed = -32002

	// ErrCodeTimeout indicates the request timed out or was canceled.
	ErrCodeTimeout = -32003

	// ErrCodeCorruptIndex indicates the artifacts exist but are inconsistent.
	ErrCodeCorruptIndex = -32004

	// Standard JSON-RPC error codes.
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// ErrToolNotFound indicates the requested tool does not exist.
var ErrToolNotFound = errors.New("tool not found")

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors. Structured errors keep
// their message and suggestion so clients can show the remedy.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	case errors.Is(err, ErrToolNotFound):
		return &MCPError{Code: ErrCodeMethodNotFound, Message: "Tool not found."}
	}

	var hrErr *hrerrors.Error
	if errors.As(err, &hrErr) {
		return mapStructuredError(hrErr)
	}

	return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
}

// NewInvalidParamsError creates an error for invalid parameters with a custom message.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{
		Code:    ErrCodeInvalidParams,
		Message: msg,
	}
}

// NewMethodNotFoundError creates an error for unknown tools.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{
		Code:    ErrCodeMethodNotFound,
		Message: fmt.Sprintf("Tool '%s' not found.", name),
	}
}

// NewResourceNotFoundError creates an error for unknown resources.
func NewResourceNotFoundError(uri string) *MCPError {
	return &MCPError{
		Code:    ErrCodeMethodNotFound,
		Message: fmt.Sprintf("Resource '%s' not found.", uri),
	}
}

func mapStructuredError(e *hrerrors.Error) *MCPError {
	message := e.Message
	// IndexNotReady wraps the missing artifact, which names the path.
	var inner *hrerrors.Error
	if errors.As(e.Cause, &inner) {
		message = fmt.Sprintf("%s: %s", message, inner.Message)
	}
	if e.Suggestion != "" {
		message = fmt.Sprintf("%s. %s", message, e.Suggestion)
	}

	switch e.Code {
	case hrerrors.ErrCodeIndexNotReady, hrerrors.ErrCodeMissingArtifact:
		return &MCPError{Code: ErrCodeIndexNotReady, Message: message}
	case hrerrors.ErrCodeCorruptIndex:
		return &MCPError{Code: ErrCodeCorruptIndex, Message: message}
	case hrerrors.ErrCodeProviderFailure:
		return &MCPError{Code: ErrCodeProviderFailed, Message: message}
	}

	switch e.Category {
	case hrerrors.CategoryNetwork:
		return &MCPError{Code: ErrCodeTimeout, Message: message}
	case hrerrors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
