// README: Driver-app handlers. The caller is resolved from the verified uid and may only touch its own orders and routes.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fleetdesk/internal/domain"
	"fleetdesk/internal/modules/driver"
	"fleetdesk/internal/modules/order"
	"fleetdesk/internal/modules/route"
)

type DriverAppHandler struct {
	drivers *driver.Service
	orders  *order.Service
	routes  *route.Service
}

func NewDriverAppHandler(drivers *driver.Service, orders *order.Service, routes *route.Service) *DriverAppHandler {
	return &DriverAppHandler{drivers: drivers, orders: orders, routes: routes}
}

// me loads the driver profile linked to the caller, answering 404 when there is none.
func (h *DriverAppHandler) me(c *gin.Context) (*domain.Driver, bool) {
	d, err := h.drivers.ByExternalID(c.Request.Context(), actor(c))
	if err != nil {
		writeDomainError(c, err)
		return nil, false
	}
	return d, true
}

func (h *DriverAppHandler) Me(c *gin.Context) {
	d, ok := h.me(c)
	if !ok {
		return
	}
	writeJSON(c, http.StatusOK, d)
}

func (h *DriverAppHandler) SetDuty(c *gin.Context) {
	d, ok := h.me(c)
	if !ok {
		return
	}
	var cmd driver.DutyCommand
	if !bindJSON(c, &cmd) {
		return
	}
	cmd.DriverID = d.ID
	cmd.Actor = actor(c)
	updated, err := h.drivers.SetDuty(c.Request.Context(), cmd)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, updated)
}

func (h *DriverAppHandler) UpdateLocation(c *gin.Context) {
	d, ok := h.me(c)
	if !ok {
		return
	}
	var cmd driver.LocationCommand
	if !bindJSON(c, &cmd) {
		return
	}
	cmd.DriverID = d.ID
	updated, err := h.drivers.UpdateLocation(c.Request.Context(), cmd)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, updated.Location)
}

func (h *DriverAppHandler) SetPushToken(c *gin.Context) {
	d, ok := h.me(c)
	if !ok {
		return
	}
	var cmd driver.PushTokenCommand
	if !bindJSON(c, &cmd) {
		return
	}
	cmd.DriverID = d.ID
	if err := h.drivers.SetPushToken(c.Request.Context(), cmd); err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *DriverAppHandler) Routes(c *gin.Context) {
	d, ok := h.me(c)
	if !ok {
		return
	}
	routes, err := h.routes.List(c.Request.Context(), route.ListFilter{DriverID: d.ID, Status: domain.RouteStatus(c.Query("status"))})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, routes)
}

func (h *DriverAppHandler) Progress(c *gin.Context) {
	d, ok := h.me(c)
	if !ok {
		return
	}
	r, err := h.routes.Get(c.Request.Context(), pathID(c, "id"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	if r.DriverID != d.ID {
		writeError(c, http.StatusForbidden, "route belongs to another driver")
		return
	}
	var cmd route.ProgressCommand
	if !bindJSON(c, &cmd) {
		return
	}
	cmd.RouteID = r.ID
	cmd.Actor = actor(c)
	o, err := h.routes.UpdateProgress(c.Request.Context(), cmd)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, o)
}

type driverStatusReq struct {
	Status          domain.Status `json:"status"`
	ProofOfDelivery string        `json:"proof_of_delivery"`
	Reason          string        `json:"reason"`
}

const driverStatusHint = "drivers may only set EN_ROUTE, DELIVERED, FAILED or RETURNED"

// UpdateOrderStatus lets the driver report the outcome of one of its stops.
func (h *DriverAppHandler) UpdateOrderStatus(c *gin.Context) {
	d, ok := h.me(c)
	if !ok {
		return
	}
	o, err := h.orders.Get(c.Request.Context(), pathID(c, "id"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	if o.AssignedDriverID == nil || *o.AssignedDriverID != d.ID {
		writeError(c, http.StatusForbidden, "order is not assigned to you")
		return
	}
	var req driverStatusReq
	if !bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	var updated *domain.Order
	switch req.Status {
	case domain.StatusEnRoute, domain.StatusDelivered:
		updated, err = h.orders.UpdateStatus(ctx, order.UpdateStatusCommand{
			OrderID: o.ID, Status: req.Status, ProofOfDelivery: req.ProofOfDelivery, Actor: actor(c),
		})
	case domain.StatusFailed:
		updated, err = h.orders.MarkFailed(ctx, order.ReasonCommand{OrderID: o.ID, Reason: req.Reason, Actor: actor(c)})
	case domain.StatusReturned:
		updated, err = h.orders.MarkReturned(ctx, order.ReasonCommand{OrderID: o.ID, Reason: req.Reason, Actor: actor(c)})
	default:
		writeError(c, http.StatusBadRequest, driverStatusHint)
		return
	}
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, updated)
}
