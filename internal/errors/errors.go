package errors

import (
	"errors"
	"fmt"
)

type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationError struct {
	Message string
	Details []ValidationDetail
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidationError(message string, details ...ValidationDetail) *ValidationError {
	return &ValidationError{
		Message: message,
		Details: details,
	}
}

func IsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}

func NewNotFoundError(message string) *NotFoundError {
	return &NotFoundError{Message: message}
}

func IsNotFoundError(err error) (*NotFoundError, bool) {
	var nfe *NotFoundError
	if errors.As(err, &nfe) {
		return nfe, true
	}
	return nil, false
}

type ForbiddenError struct {
	Message string
}

func (e *ForbiddenError) Error() string {
	return e.Message
}

func NewForbiddenError(message string) *ForbiddenError {
	return &ForbiddenError{Message: message}
}

func IsForbiddenError(err error) (*ForbiddenError, bool) {
	var fe *ForbiddenError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// ConflictError reports a write that lost against the persisted state,
// e.g. a status compare-and-set whose expected status no longer matches.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

func NewConflictError(message string) *ConflictError {
	return &ConflictError{Message: message}
}

func IsConflictError(err error) (*ConflictError, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

type DeadlockError struct {
	Message string
}

func (e *DeadlockError) Error() string {
	return e.Message
}

func NewDeadlockError(message string) *DeadlockError {
	return &DeadlockError{Message: message}
}

func IsDeadlockError(err error) (*DeadlockError, bool) {
	var de *DeadlockError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// StockAdjustment mirrors dto.Adjustment so that the error package stays
// free of imports from the rest of the module.
type StockAdjustment struct {
	ProductID string
	Requested int
	Available int
}

// OutOfStockError means none of the requested items could be reserved.
type OutOfStockError struct {
	Message     string
	Adjustments []StockAdjustment
}

func (e *OutOfStockError) Error() string {
	return e.Message
}

func NewOutOfStockError(message string, adjustments ...StockAdjustment) *OutOfStockError {
	return &OutOfStockError{
		Message:     message,
		Adjustments: adjustments,
	}
}

func IsOutOfStockError(err error) (*OutOfStockError, bool) {
	var oe *OutOfStockError
	if errors.As(err, &oe) {
		return oe, true
	}
	return nil, false
}

// ConcurrentStockConflictError means a conditional decrement kept losing
// races after all retry attempts. The create-order call is safe to retry.
type ConcurrentStockConflictError struct {
	Message   string
	ProductID string
}

func (e *ConcurrentStockConflictError) Error() string {
	if e.ProductID != "" {
		return fmt.Sprintf("%s (product %s)", e.Message, e.ProductID)
	}
	return e.Message
}

func NewConcurrentStockConflictError(message string, productID string) *ConcurrentStockConflictError {
	return &ConcurrentStockConflictError{
		Message:   message,
		ProductID: productID,
	}
}

func IsConcurrentStockConflictError(err error) (*ConcurrentStockConflictError, bool) {
	var ce *ConcurrentStockConflictError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %q to %q", e.From, e.To)
}

func NewInvalidTransitionError(from, to string) *InvalidTransitionError {
	return &InvalidTransitionError{From: from, To: to}
}

func IsInvalidTransitionError(err error) (*InvalidTransitionError, bool) {
	var ite *InvalidTransitionError
	if errors.As(err, &ite) {
		return ite, true
	}
	return nil, false
}

type InternalError struct {
	Message string
	Cause   error
}

func (e *InternalError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *InternalError) Unwrap() error {
	return e.Cause
}

func NewInternalError(message string, cause error) *InternalError {
	return &InternalError{
		Message: message,
		Cause:   cause,
	}
}
