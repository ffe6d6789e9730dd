package types

import (
	"errors"
	"fmt"
)

type InvalidAmountError struct {
	AmountVND int64
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("payment amount must be positive, got %d", e.AmountVND)
}

func IsInvalidAmount(err error) bool {
	_, ok := errors.AsType[*InvalidAmountError](err)
	return ok
}

type NotFoundError struct {
	PaymentID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("payment %s not found", e.PaymentID)
}

func IsNotFound(err error) bool {
	_, ok := errors.AsType[*NotFoundError](err)
	return ok
}

type InvalidStateTransitionError struct {
	PaymentID string
	From      Status
	To        Status
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("payment %s cannot move from %s to %s", e.PaymentID, e.From, e.To)
}

func IsInvalidStateTransition(err error) bool {
	_, ok := errors.AsType[*InvalidStateTransitionError](err)
	return ok
}

// ExternalServiceError wraps a failure of a best-effort collaborator (QR
// generation). It is only surfaced after every fallback was exhausted.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("external service %s: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

func IsExternalService(err error) bool {
	_, ok := errors.AsType[*ExternalServiceError](err)
	return ok
}
