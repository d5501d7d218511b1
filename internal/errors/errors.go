// Package errors defines the structured error type returned by the client
// and its helpers for classifying API failures.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

// ErrorCode is a stable, machine-readable error category.
type ErrorCode string

const (
	CodeUnauthorized ErrorCode = "unauthorized"
	CodeForbidden    ErrorCode = "forbidden"
	CodeInvalidToken ErrorCode = "invalid_token"
	CodeNotFound     ErrorCode = "not_found"
	CodeValidation   ErrorCode = "validation_failed"
	CodeInvalidState ErrorCode = "invalid_state"
	CodeRateLimited  ErrorCode = "rate_limit_exceeded"
	CodeInternal     ErrorCode = "internal_error"
	CodeUpstream     ErrorCode = "upstream_error"

	// Codes the escrow API emits verbatim in its {"error": "..."} body.
	CodeUser     ErrorCode = "user_error"
	CodeCustomer ErrorCode = "customer_error"
	CodeProduct  ErrorCode = "product_error"
	CodeAddress  ErrorCode = "address_error"
	CodePayment  ErrorCode = "payment_error"
	CodeEmail    ErrorCode = "email_error"
	CodeUsername ErrorCode = "username_error"
	CodePassword ErrorCode = "invalid_password"
)

var codeLike = regexp.MustCompile(`^[a-z]+(_[a-z]+)+$`)

// ServiceError carries a code, a human message, the HTTP status it maps to
// and optional details.
type ServiceError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	HTTPStatus int                    `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Err        error                  `json:"-"`
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// WithDetails attaches a detail entry and returns the same error.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Fields returns per-field validation messages, if any.
func (e *ServiceError) Fields() map[string]string {
	out := make(map[string]string)
	raw, ok := e.Details["fields"]
	if !ok {
		return out
	}
	if m, ok := raw.(map[string]string); ok {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

func New(code ErrorCode, status int, message string) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: status}
}

func Unauthorized(message string) *ServiceError {
	if message == "" {
		message = "unauthorized"
	}
	return New(CodeUnauthorized, http.StatusUnauthorized, message)
}

func Forbidden(message string) *ServiceError {
	if message == "" {
		message = "forbidden"
	}
	return New(CodeForbidden, http.StatusForbidden, message)
}

func InvalidToken(err error) *ServiceError {
	e := New(CodeInvalidToken, http.StatusUnauthorized, "invalid or expired token")
	e.Err = err
	return e
}

func NotFound(resource, id string) *ServiceError {
	return New(CodeNotFound, http.StatusNotFound, fmt.Sprintf("%s %s not found", resource, id)).
		WithDetails("resource", resource).
		WithDetails("id", id)
}

// Validation reports form errors keyed by field name.
func Validation(fields map[string]string) *ServiceError {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	msg := "invalid input"
	if len(keys) == 1 {
		msg = fields[keys[0]]
	}
	return New(CodeValidation, http.StatusBadRequest, msg).WithDetails("fields", fields)
}

// InvalidState reports an action that the transaction's current step does not offer.
func InvalidState(action string, step int) *ServiceError {
	return New(CodeInvalidState, http.StatusConflict,
		fmt.Sprintf("action %q is not available at step %d", action, step)).
		WithDetails("action", action).
		WithDetails("step", step)
}

func RateLimitExceeded(limit int, window string) *ServiceError {
	return New(CodeRateLimited, http.StatusTooManyRequests, "rate limit exceeded").
		WithDetails("limit", limit).
		WithDetails("window", window)
}

func Internal(message string, err error) *ServiceError {
	e := New(CodeInternal, http.StatusInternalServerError, message)
	e.Err = err
	return e
}

// FromResponse converts a failed API response into a ServiceError. The API
// answers with {"error": "..."}; well-known code strings become the Code and
// free-form text becomes the Message.
func FromResponse(status int, body []byte) *ServiceError {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	text := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error != "" {
			text = payload.Error
		} else if payload.Message != "" {
			text = payload.Message
		}
	}

	if codeLike.MatchString(text) {
		return New(ErrorCode(text), status, strings.ReplaceAll(text, "_", " "))
	}

	code := CodeUpstream
	switch status {
	case http.StatusUnauthorized:
		code = CodeUnauthorized
	case http.StatusForbidden:
		code = CodeForbidden
	case http.StatusNotFound:
		code = CodeNotFound
	case http.StatusTooManyRequests:
		code = CodeRateLimited
	case http.StatusBadRequest:
		code = CodeValidation
	}
	if text == "" {
		text = http.StatusText(status)
	}
	return New(code, status, text)
}

// GetServiceError extracts a ServiceError from an error chain.
func GetServiceError(err error) *ServiceError {
	var se *ServiceError
	if stderrors.As(err, &se) {
		return se
	}
	return nil
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	se := GetServiceError(err)
	return se != nil && se.Code == code
}

// IsNotFound is shorthand for Is(err, CodeNotFound).
func IsNotFound(err error) bool { return Is(err, CodeNotFound) }
