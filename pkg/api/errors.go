package api

import (
	"fmt"
	"net/http"
)

// ErrorResponse is the body rendered for gateway-side failures.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Error defines a standard error shape for the API
type Error struct {
	// HTTP Status Code (e.g., 400, 401, 502)
	Status int
	// Safe message for the client
	Message string
	// Per-field validation messages, if any
	Fields map[string]string
	// Original error for internal logging
	Log error
}

// Error implements standard error interface
func (e *Error) Error() string {
	if e.Log != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Status, e.Message, e.Log)
	}
	return fmt.Sprintf("[%d] %s", e.Status, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Log
}

// Response is what the caller sees.
func (e *Error) Response() ErrorResponse {
	return ErrorResponse{Error: e.Message, Fields: e.Fields}
}

// ValidationError creates a rich validation error
func ValidationError(fields map[string]string) *Error {
	return &Error{
		Status:  http.StatusBadRequest,
		Message: "invalid request body",
		Fields:  fields,
	}
}

// BadRequestError creates a standard error for a bad request
func BadRequestError(msg string, err error) *Error {
	return &Error{Status: http.StatusBadRequest, Message: msg, Log: err}
}

// UnauthorizedError creates a 401 unauthed error
func UnauthorizedError(msg string) *Error {
	return &Error{Status: http.StatusUnauthorized, Message: msg}
}

// NotFoundError creates a standard 404 error
func NotFoundError(msg string) *Error {
	return &Error{Status: http.StatusNotFound, Message: msg}
}

// UpstreamError creates 502 gateway error for backend transport failures.
func UpstreamError(msg string, err error) *Error {
	return &Error{Status: http.StatusBadGateway, Message: msg, Log: err}
}

// InternalError creates a standard error for any internal server error
func InternalError(msg string, err error) *Error {
	return &Error{Status: http.StatusInternalServerError, Message: msg, Log: err}
}
