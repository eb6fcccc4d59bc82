package domain

import (
	"time"

	"fleetdesk/internal/types"
)

type AuditAction string

const (
	ActionOrderCreated       AuditAction = "ORDER_CREATED"
	ActionOrderStatusChanged AuditAction = "ORDER_STATUS_CHANGED"
	ActionOrderCancelled     AuditAction = "ORDER_CANCELLED"
	ActionOrderAssigned      AuditAction = "ORDER_ASSIGNED"
	ActionPaymentApproved    AuditAction = "PAYMENT_APPROVED"
	ActionPaymentRejected    AuditAction = "PAYMENT_REJECTED"
	ActionStockRestocked     AuditAction = "STOCK_RESTOCKED"
	ActionStockRestored      AuditAction = "STOCK_RESTORED"
	ActionProductCreated     AuditAction = "PRODUCT_CREATED"
	ActionDriverCreated      AuditAction = "DRIVER_CREATED"
	ActionDriverDutyChanged  AuditAction = "DRIVER_DUTY_CHANGED"
	ActionDriverSettled      AuditAction = "DRIVER_SETTLED"
	ActionRouteCreated       AuditAction = "ROUTE_CREATED"
	ActionRouteOptimized     AuditAction = "ROUTE_OPTIMIZED"
	ActionRouteActivated     AuditAction = "ROUTE_ACTIVATED"
	ActionRouteCompleted     AuditAction = "ROUTE_COMPLETED"
	ActionSettingUpdated     AuditAction = "SETTING_UPDATED"
)

// SystemActor is recorded when no human triggered the change.
const SystemActor = "system"

// AuditEntry is append-only; stores expose no update or delete for it.
type AuditEntry struct {
	ID        types.ID       `json:"id"`
	Action    AuditAction    `json:"action"`
	ActorID   string         `json:"actor_id"`
	TargetID  types.ID       `json:"target_id"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
