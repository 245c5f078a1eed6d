package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeNotFound     Code = "NOT_FOUND"
	CodeConflict     Code = "CONFLICT"
	CodeIdempotency  Code = "IDEMPOTENCY_KEY_REUSED"
	CodeInternal     Code = "INTERNAL_ERROR"
	CodeDependency   Code = "DEPENDENCY_ERROR"

	CodeTenantNotResolved      Code = "TENANT_NOT_RESOLVED"
	CodeInsufficientStock      Code = "INSUFFICIENT_STOCK"
	CodeOverFulfillment        Code = "OVER_FULFILLMENT"
	CodeInvalidTransition      Code = "INVALID_STATE_TRANSITION"
	CodeDuplicateOrderNumber   Code = "DUPLICATE_ORDER_NUMBER"
	CodeReconciliationMismatch Code = "RECONCILIATION_MISMATCH"
)

// Metadata drives how a code is rendered on the wire. ExposeMessage lets
// the caller's message replace PublicMessage.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
	ExposeMessage  bool
}

type metaFlag uint8

const (
	retryable metaFlag = 1 << iota
	withDetails
	exposed
)

func meta(status int, public string, flags metaFlag) Metadata {
	return Metadata{
		HTTPStatus:     status,
		PublicMessage:  public,
		Retryable:      flags&retryable != 0,
		DetailsAllowed: flags&withDetails != 0,
		ExposeMessage:  flags&exposed != 0,
	}
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:   meta(http.StatusBadRequest, "validation failed", withDetails|exposed),
	CodeUnauthorized: meta(http.StatusUnauthorized, "authentication required", exposed),
	CodeForbidden:    meta(http.StatusForbidden, "access denied", exposed),
	CodeNotFound:     meta(http.StatusNotFound, "resource not found", exposed),
	CodeConflict:     meta(http.StatusConflict, "conflict detected", exposed),
	CodeIdempotency:  meta(http.StatusConflict, "idempotency key reused", withDetails|exposed),
	CodeInternal:     meta(http.StatusInternalServerError, "internal server error", retryable),
	CodeDependency:   meta(http.StatusServiceUnavailable, "dependency unavailable", retryable|withDetails),

	CodeTenantNotResolved:      meta(http.StatusForbidden, "tenant could not be resolved", exposed),
	CodeInsufficientStock:      meta(http.StatusConflict, "insufficient stock", withDetails|exposed),
	CodeOverFulfillment:        meta(http.StatusUnprocessableEntity, "fulfillment exceeds remaining quantity", withDetails|exposed),
	CodeInvalidTransition:      meta(http.StatusUnprocessableEntity, "state transition disallowed", withDetails|exposed),
	CodeDuplicateOrderNumber:   meta(http.StatusConflict, "order number already allocated", retryable|exposed),
	CodeReconciliationMismatch: meta(http.StatusInternalServerError, "stock ledger out of balance", withDetails),
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// PublicMessage returns the text safe to show a client for err.
func PublicMessage(err error) string {
	typed := As(err)
	if typed == nil {
		return MetadataFor(CodeInternal).PublicMessage
	}
	m := MetadataFor(typed.code)
	if m.ExposeMessage && typed.message != "" {
		return typed.message
	}
	return m.PublicMessage
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is reports whether any error in err's chain carries code.
func Is(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}

func IsRetryable(err error) bool {
	typed := As(err)
	if typed == nil {
		return false
	}
	return MetadataFor(typed.code).Retryable
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}
