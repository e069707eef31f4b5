// Package mcp exposes the report query pipeline as Model Context Protocol tools.
package mcp

import (
	"context"
	"errors"
	"fmt"

	ragerrors "github.com/Aman-CERP/reportrag/internal/errors"
)

// Server-defined JSON-RPC error codes.
const (
	ErrCodeIndexNotBuilt    = -32001
	ErrCodeCompletionFailed = -32002
	ErrCodeTimeout          = -32003
	ErrCodeResourceNotFound = -32004
	ErrCodeResourceTooLarge = -32005
	ErrCodeNoResult         = -32006

	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// MCPError is a protocol error with a JSON-RPC code.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts a pipeline error to an MCPError. The suggestion of a
// structured error is appended to its message.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}
	var me *MCPError
	if errors.As(err, &me) {
		return me
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	}

	var re *ragerrors.RAGError
	if !errors.As(err, &re) {
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}

	msg := re.Message
	if re.Suggestion != "" {
		msg += ". " + re.Suggestion
	}
	switch {
	case re.Code == ragerrors.ErrCodeIndexNotBuilt || re.Code == ragerrors.ErrCodeCorruptIndex:
		return &MCPError{Code: ErrCodeIndexNotBuilt, Message: msg}
	case re.Code == ragerrors.ErrCodeAggregationEmpty:
		return &MCPError{Code: ErrCodeNoResult, Message: msg}
	case re.Category == ragerrors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
	case re.Code == ragerrors.ErrCodeNetworkTimeout:
		return &MCPError{Code: ErrCodeTimeout, Message: msg}
	case re.Category == ragerrors.CategoryNetwork:
		return &MCPError{Code: ErrCodeCompletionFailed, Message: msg}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: msg}
	}
}

// NewInvalidParamsError reports a bad tool argument.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// NewMethodNotFoundError reports an unknown tool.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{Code: ErrCodeMethodNotFound, Message: fmt.Sprintf("Tool '%s' not found.", name)}
}

// NewResourceNotFoundError reports an unknown resource URI.
func NewResourceNotFoundError(uri string) *MCPError {
	return &MCPError{Code: ErrCodeResourceNotFound, Message: fmt.Sprintf("Resource '%s' not found.", uri)}
}
