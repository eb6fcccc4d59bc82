// README: Order commands and query filters.
package order

import (
	"fleetdesk/internal/domain"
	"fleetdesk/internal/types"
)

type ItemCommand struct {
	ProductID types.ID `json:"product_id" validate:"required"`
	Quantity  int      `json:"quantity" validate:"gt=0,lte=2147483647"`
}

type CreateCommand struct {
	// OrderID is optional; a UUID is generated when empty.
	OrderID         types.ID             `json:"order_id"`
	CustomerID      types.ID             `json:"customer_id"`
	CustomerName    string               `json:"customer_name" validate:"required"`
	CustomerPhone   string               `json:"customer_phone"`
	PaymentMethod   domain.PaymentMethod `json:"payment_method" validate:"required,oneof=COD BANK_TRANSFER"`
	Items           []ItemCommand        `json:"items" validate:"required,min=1,dive"`
	DeliveryAddress domain.Address       `json:"delivery_address"`
	DeliveryNotes   string               `json:"delivery_notes"`
	Actor           string               `json:"-"`
}

type UpdateStatusCommand struct {
	OrderID types.ID      `json:"order_id" validate:"required"`
	Status  domain.Status `json:"status" validate:"required"`
	// ProofOfDelivery is stored when moving to DELIVERED.
	ProofOfDelivery string `json:"proof_of_delivery"`
	Actor           string `json:"-"`
}

type CancelCommand struct {
	OrderID types.ID `json:"order_id" validate:"required"`
	Reason  string   `json:"reason"`
	Actor   string   `json:"-"`
}

// ReasonCommand drives MarkFailed and MarkReturned.
type ReasonCommand struct {
	OrderID types.ID `json:"order_id" validate:"required"`
	Reason  string   `json:"reason" validate:"required"`
	Actor   string   `json:"-"`
}

type ApprovePaymentCommand struct {
	OrderID types.ID `json:"order_id" validate:"required"`
	Actor   string   `json:"-"`
}

type RejectPaymentCommand struct {
	OrderID types.ID `json:"order_id" validate:"required"`
	Reason  string   `json:"reason"`
	Actor   string   `json:"-"`
}

type ListFilter struct {
	Status        domain.Status
	PaymentStatus domain.PaymentStatus
	DriverID      types.ID
	CustomerID    types.ID
	Limit         int
}

// cancellable lists the statuses Cancel accepts.
var cancellable = map[domain.Status]bool{
	domain.StatusPendingDispatch:     true,
	domain.StatusPendingVerification: true,
	domain.StatusProcessing:          true,
}

const defaultVerificationHistoryLimit = 50
