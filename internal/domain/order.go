// README: Order aggregate, payment enums and the status transition table.
package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"fleetdesk/internal/types"
)

type Status string

const (
	StatusPendingVerification Status = "PENDING_VERIFICATION"
	StatusPendingDispatch     Status = "PENDING_DISPATCH"
	StatusProcessing          Status = "PROCESSING"
	StatusAssigned            Status = "ASSIGNED"
	StatusEnRoute             Status = "EN_ROUTE"
	StatusDelivered           Status = "DELIVERED"
	StatusFailed              Status = "FAILED"
	StatusReturned            Status = "RETURNED"
	StatusCancelled           Status = "CANCELLED"
)

var AllStatuses = []Status{
	StatusPendingVerification,
	StatusPendingDispatch,
	StatusProcessing,
	StatusAssigned,
	StatusEnRoute,
	StatusDelivered,
	StatusFailed,
	StatusReturned,
	StatusCancelled,
}

func (s Status) Valid() bool {
	for _, v := range AllStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Terminal statuses have no outgoing transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusDelivered, StatusFailed, StatusReturned, StatusCancelled:
		return true
	}
	return false
}

// RestoresStock reports whether entering s gives the ordered items back to inventory.
func (s Status) RestoresStock() bool {
	return s == StatusFailed || s == StatusReturned || s == StatusCancelled
}

type PaymentMethod string

const (
	PaymentCOD          PaymentMethod = "COD"
	PaymentBankTransfer PaymentMethod = "BANK_TRANSFER"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentVerified PaymentStatus = "VERIFIED"
	PaymentRejected PaymentStatus = "REJECTED"
)

type LineItem struct {
	ProductID   types.ID        `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type Address struct {
	Label        string      `json:"label,omitempty"`
	Street       string      `json:"street"`
	City         string      `json:"city"`
	State        string      `json:"state"`
	ZipCode      string      `json:"zip_code"`
	Coordinates  types.Point `json:"coordinates"`
	Instructions string      `json:"instructions,omitempty"`
}

type Order struct {
	ID                 types.ID        `json:"id"`
	CustomerID         types.ID        `json:"customer_id"`
	CustomerName       string          `json:"customer_name"`
	CustomerPhone      string          `json:"customer_phone"`
	PaymentMethod      PaymentMethod   `json:"payment_method"`
	PaymentStatus      PaymentStatus   `json:"payment_status"`
	Status             Status          `json:"status"`
	TotalAmount        decimal.Decimal `json:"total_amount"`
	Items              []LineItem      `json:"items"`
	DeliveryAddress    Address         `json:"delivery_address"`
	DeliveryNotes      string          `json:"delivery_notes,omitempty"`
	AssignedDriverID   *types.ID       `json:"assigned_driver_id,omitempty"`
	RoutePosition      *int            `json:"route_position,omitempty"`
	FailedReason       *string         `json:"failed_reason,omitempty"`
	ReturnReason       *string         `json:"return_reason,omitempty"`
	CancellationReason *string         `json:"cancellation_reason,omitempty"`
	CancelledBy        *string         `json:"cancelled_by,omitempty"`
	ProofOfDelivery    *string         `json:"proof_of_delivery,omitempty"`
	VerifiedBy         *string         `json:"verified_by,omitempty"`
	StockRestored      bool            `json:"stock_restored"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
	VerifiedAt         *time.Time      `json:"verified_at,omitempty"`
	CancelledAt        *time.Time      `json:"cancelled_at,omitempty"`
}

// AssignedToOther reports whether the order is assigned to a driver other than driverID.
func (o *Order) AssignedToOther(driverID types.ID) bool {
	return o.AssignedDriverID != nil && *o.AssignedDriverID != driverID
}

// Clone returns a deep copy so stores never share mutable state with callers.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	cp := *o
	cp.Items = append([]LineItem(nil), o.Items...)
	cp.AssignedDriverID = clonePtr(o.AssignedDriverID)
	cp.RoutePosition = clonePtr(o.RoutePosition)
	cp.FailedReason = clonePtr(o.FailedReason)
	cp.ReturnReason = clonePtr(o.ReturnReason)
	cp.CancellationReason = clonePtr(o.CancellationReason)
	cp.CancelledBy = clonePtr(o.CancelledBy)
	cp.ProofOfDelivery = clonePtr(o.ProofOfDelivery)
	cp.VerifiedBy = clonePtr(o.VerifiedBy)
	cp.VerifiedAt = clonePtr(o.VerifiedAt)
	cp.CancelledAt = clonePtr(o.CancelledAt)
	return &cp
}

// InitialStatus returns the status and payment status a new order starts in.
func InitialStatus(m PaymentMethod) (Status, PaymentStatus) {
	if m == PaymentCOD {
		return StatusPendingDispatch, PaymentVerified
	}
	return StatusPendingVerification, PaymentPending
}

// AllowedTransitions represents the order state flow as code. Terminal
// statuses have no entry.
var AllowedTransitions = map[Status][]Status{
	StatusPendingVerification: {StatusProcessing, StatusAssigned, StatusCancelled},
	StatusPendingDispatch:     {StatusProcessing, StatusAssigned, StatusCancelled},
	StatusProcessing:          {StatusAssigned, StatusCancelled},
	StatusAssigned:            {StatusEnRoute, StatusDelivered, StatusFailed, StatusReturned},
	StatusEnRoute:             {StatusDelivered, StatusFailed, StatusReturned},
}

func CanTransition(from, to Status) bool {
	for _, s := range AllowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// NextStatuses returns a copy of the statuses reachable from s.
func NextStatuses(s Status) []Status {
	return append([]Status(nil), AllowedTransitions[s]...)
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
