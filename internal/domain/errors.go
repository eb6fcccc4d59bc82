package domain

import "errors"

// Error categories. Every specific error below unwraps to exactly one of them,
// so transports can map on the category with errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrConflict           = errors.New("conflict")
	ErrBadRequest         = errors.New("bad request")
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

func newKind(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

var (
	ErrOrderNotFound   = newKind(ErrNotFound, "order not found")
	ErrProductNotFound = newKind(ErrNotFound, "product not found")
	ErrDriverNotFound  = newKind(ErrNotFound, "driver not found")
	ErrRouteNotFound   = newKind(ErrNotFound, "route not found")
	ErrSettingNotFound = newKind(ErrNotFound, "setting not found")

	ErrInsufficientStock        = newKind(ErrPreconditionFailed, "insufficient stock")
	ErrIllegalCancellation      = newKind(ErrPreconditionFailed, "order cannot be cancelled")
	ErrInvalidTransition        = newKind(ErrPreconditionFailed, "invalid status transition")
	ErrMissingDriverAssignment  = newKind(ErrPreconditionFailed, "order has no assigned driver")
	ErrSettlementExceedsBalance = newKind(ErrPreconditionFailed, "settlement amount exceeds wallet balance")
	ErrDriverUnavailable        = newKind(ErrPreconditionFailed, "driver is not on duty")
	ErrIllegalAssignment        = newKind(ErrPreconditionFailed, "order cannot be assigned")
	ErrOrderSetMismatch         = newKind(ErrPreconditionFailed, "order set mismatch")
	ErrPaymentNotPending        = newKind(ErrPreconditionFailed, "payment is not pending verification")
	ErrRouteNotDraft            = newKind(ErrPreconditionFailed, "route is not in DRAFT status")

	ErrAlreadyAssigned = newKind(ErrConflict, "order already assigned to another driver")
	ErrDuplicate       = newKind(ErrConflict, "already exists")
)
