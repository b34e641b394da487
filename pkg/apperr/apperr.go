// Package apperr defines the inventory core's business-error sum type.
//
// Business errors (bad input, conflicting state) are returned as *Error
// values and bubble up to the HTTP boundary where they map 1:1 to status
// codes. Database constraint violations are not converted to *Error and
// do not panic: they are returned as plain errors and reach the HTTP
// boundary as INTERNAL_ERROR (500).
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes, per the inventory consistency engine's error taxonomy.
const (
	CodeInvalidQuantity      = "INVALID_QUANTITY"
	CodeBatchNotFound        = "BATCH_NOT_FOUND"
	CodeOrderNotFound        = "ORDER_NOT_FOUND"
	CodeInsufficientInventory = "INSUFFICIENT_INVENTORY"
	CodeOrderAlreadyReserved = "ORDER_ALREADY_RESERVED"
	CodeWmsAPIError          = "WMS_API_ERROR"
	CodeInternal             = "INTERNAL_ERROR"
	CodeBadRequest           = "BAD_REQUEST"
	CodeNotFound             = "NOT_FOUND"
)

// Error is an application-level error carrying a stable code, an HTTP
// status, and optional structured context for callers that need it
// (batchId, requested/available quantities, etc).
type Error struct {
	Err        error
	Message    string
	Code       string
	StatusCode int
	Context    map[string]interface{}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithContext attaches structured context fields to the error.
func (e *Error) WithContext(kv map[string]interface{}) *Error {
	e.Context = kv
	return e
}

func New(code, message string, status int) *Error {
	return &Error{Code: code, Message: message, StatusCode: status}
}

func Wrap(err error, code, message string, status int) *Error {
	return &Error{Err: err, Code: code, Message: message, StatusCode: status}
}

// InvalidQuantity reports a non-empty-lines or positive-quantity violation.
func InvalidQuantity(message string) *Error {
	return New(CodeInvalidQuantity, message, http.StatusBadRequest)
}

// BatchNotFound reports a reference to a batch that does not exist.
func BatchNotFound(batchID interface{}) *Error {
	return New(CodeBatchNotFound, fmt.Sprintf("batch %v not found", batchID), http.StatusNotFound).
		WithContext(map[string]interface{}{"batchId": batchID})
}

// OrderNotFound reports that no reservation exists for an orderId.
func OrderNotFound(orderID string) *Error {
	return New(CodeOrderNotFound, fmt.Sprintf("no reservation found for order %s", orderID), http.StatusNotFound).
		WithContext(map[string]interface{}{"orderId": orderID})
}

// InsufficientInventory reports that requested quantity exceeds available.
func InsufficientInventory(batchID interface{}, requested, available int) *Error {
	return New(CodeInsufficientInventory,
		fmt.Sprintf("requested %d exceeds available %d for batch %v", requested, available, batchID),
		http.StatusConflict,
	).WithContext(map[string]interface{}{
		"batchId":   batchID,
		"requested": requested,
		"available": available,
	})
}

// OrderAlreadyReserved reports an idempotency conflict on Reserve.
func OrderAlreadyReserved(orderID string) *Error {
	return New(CodeOrderAlreadyReserved,
		fmt.Sprintf("order %s already has a conflicting reservation", orderID),
		http.StatusConflict,
	).WithContext(map[string]interface{}{"orderId": orderID})
}

// WmsAPIError reports a failed WMS call. It carries no HTTP status; the
// caller decides whether the failure is retriable by wrapping it (or not)
// in messaging.NonRetriable.
func WmsAPIError(message string) *Error {
	return New(CodeWmsAPIError, message, 0)
}

// NotFound reports a lookup miss that has no more specific domain code
// (e.g. an unknown sync request id).
func NotFound(message string) *Error {
	return New(CodeNotFound, message, http.StatusNotFound)
}

// BadRequest reports a malformed request (unparsable JSON, wrong shape).
func BadRequest(message string) *Error {
	return New(CodeBadRequest, message, http.StatusBadRequest)
}

// Internal reports an unexpected failure.
func Internal(message string) *Error {
	return New(CodeInternal, message, http.StatusInternalServerError)
}

// Is reports whether err wraps target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As attempts to convert err into target's type.
func As(err error, target interface{}) bool { return errors.As(err, target) }
