package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so callers can branch without string matching
type ErrorKind string

const (
	KindNotFound           ErrorKind = "not_found"
	KindQuotaExceeded      ErrorKind = "quota_exceeded"
	KindRenderFailure      ErrorKind = "render_failure"
	KindPersistenceFailure ErrorKind = "persistence_failure"
	KindInvalid            ErrorKind = "invalid"
	KindRateLimited        ErrorKind = "rate_limited"
	KindUnknown            ErrorKind = "unknown"
)

// Error codes carried alongside a kind when the caller needs more detail
const (
	CodeTemplateUnavailable = "TEMPLATE_UNAVAILABLE"
	CodeRecipientNotFound   = "RECIPIENT_NOT_FOUND"
	CodeTemplateNotFound    = "TEMPLATE_NOT_FOUND"
	CodeRecipientCap        = "RECIPIENT_CAP_REACHED"
	CodeBulkImportDisabled  = "BULK_IMPORT_DISABLED"
	CodeDownloadLimit       = "DOWNLOAD_LIMIT_REACHED"
	CodeTooManyAttempts     = "TOO_MANY_ATTEMPTS"
	CodeInvalidState        = "INVALID_STATE"
)

// AppError is the tagged result every core operation returns on failure
type AppError struct {
	Kind    ErrorKind
	Code    string
	Op      string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Retryable reports whether repeating the same request may succeed
func (e *AppError) Retryable() bool {
	return e.Kind == KindRenderFailure || e.Kind == KindPersistenceFailure
}

// NotFound builds a NotFound error
func NotFound(op, code, message string) *AppError {
	return &AppError{Kind: KindNotFound, Op: op, Code: code, Message: message}
}

// QuotaExceeded builds a QuotaExceeded error
func QuotaExceeded(op, code, message string) *AppError {
	return &AppError{Kind: KindQuotaExceeded, Op: op, Code: code, Message: message}
}

// RenderFailure builds a RenderFailure error wrapping the cause
func RenderFailure(op, code string, err error) *AppError {
	return &AppError{Kind: KindRenderFailure, Op: op, Code: code, Message: "render failed", Err: err}
}

// PersistenceFailure builds a PersistenceFailure error wrapping the cause
func PersistenceFailure(op string, err error) *AppError {
	return &AppError{Kind: KindPersistenceFailure, Op: op, Message: "store rejected the write", Err: err}
}

// Invalid builds an input validation error
func Invalid(op, message string) *AppError {
	return &AppError{Kind: KindInvalid, Op: op, Message: message}
}

// RateLimited builds an error for callers that exceeded an attempt budget
func RateLimited(op, message string) *AppError {
	return &AppError{Kind: KindRateLimited, Op: op, Code: CodeTooManyAttempts, Message: message}
}

// KindOf returns the kind of the first AppError in the chain
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

// CodeOf returns the code of the first AppError in the chain
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsRetryable reports whether err is a retryable AppError
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable()
	}
	return false
}
