// README: Order handlers: intake, status machine, payment verification and order queries.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fleetdesk/internal/domain"
	"fleetdesk/internal/modules/order"
	"fleetdesk/internal/types"
)

type OrderHandler struct {
	order *order.Service
}

func NewOrderHandler(svc *order.Service) *OrderHandler {
	return &OrderHandler{order: svc}
}

func (h *OrderHandler) Create(c *gin.Context) {
	var cmd order.CreateCommand
	if !bindJSON(c, &cmd) {
		return
	}
	cmd.Actor = actor(c)
	o, err := h.order.Create(c.Request.Context(), cmd)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, o)
}

// List serves GET /orders; q switches to a free-text search.
func (h *OrderHandler) List(c *gin.Context) {
	if term := c.Query("q"); term != "" {
		orders, err := h.order.Search(c.Request.Context(), term)
		if err != nil {
			writeDomainError(c, err)
			return
		}
		writeJSON(c, http.StatusOK, orders)
		return
	}
	limit, err := queryLimit(c)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	orders, err := h.order.List(c.Request.Context(), order.ListFilter{
		Status:        domain.Status(c.Query("status")),
		PaymentStatus: domain.PaymentStatus(c.Query("payment_status")),
		DriverID:      types.ID(c.Query("driver_id")),
		CustomerID:    types.ID(c.Query("customer_id")),
		Limit:         limit,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, orders)
}

func (h *OrderHandler) Get(c *gin.Context) {
	o, err := h.order.Get(c.Request.Context(), pathID(c, "id"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, o)
}

func (h *OrderHandler) Unassigned(c *gin.Context) {
	orders, err := h.order.Unassigned(c.Request.Context())
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, orders)
}

func (h *OrderHandler) PendingVerifications(c *gin.Context) {
	orders, err := h.order.PendingVerifications(c.Request.Context())
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, orders)
}

func (h *OrderHandler) VerificationHistory(c *gin.Context) {
	limit, err := queryLimit(c)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	entries, err := h.order.VerificationHistory(c.Request.Context(), limit)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, entries)
}

func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	var cmd order.UpdateStatusCommand
	if !bindJSON(c, &cmd) {
		return
	}
	cmd.OrderID = pathID(c, "id")
	cmd.Actor = actor(c)
	h.respond(c)(h.order.UpdateStatus(c.Request.Context(), cmd))
}

func (h *OrderHandler) Cancel(c *gin.Context) {
	var cmd order.CancelCommand
	if !bindOptionalJSON(c, &cmd) {
		return
	}
	cmd.OrderID = pathID(c, "id")
	cmd.Actor = actor(c)
	h.respond(c)(h.order.Cancel(c.Request.Context(), cmd))
}

func (h *OrderHandler) MarkFailed(c *gin.Context) {
	var cmd order.ReasonCommand
	if !bindJSON(c, &cmd) {
		return
	}
	cmd.OrderID = pathID(c, "id")
	cmd.Actor = actor(c)
	h.respond(c)(h.order.MarkFailed(c.Request.Context(), cmd))
}

func (h *OrderHandler) MarkReturned(c *gin.Context) {
	var cmd order.ReasonCommand
	if !bindJSON(c, &cmd) {
		return
	}
	cmd.OrderID = pathID(c, "id")
	cmd.Actor = actor(c)
	h.respond(c)(h.order.MarkReturned(c.Request.Context(), cmd))
}

func (h *OrderHandler) ApprovePayment(c *gin.Context) {
	cmd := order.ApprovePaymentCommand{OrderID: pathID(c, "id"), Actor: actor(c)}
	h.respond(c)(h.order.ApprovePayment(c.Request.Context(), cmd))
}

func (h *OrderHandler) RejectPayment(c *gin.Context) {
	var cmd order.RejectPaymentCommand
	if !bindOptionalJSON(c, &cmd) {
		return
	}
	cmd.OrderID = pathID(c, "id")
	cmd.Actor = actor(c)
	h.respond(c)(h.order.RejectPayment(c.Request.Context(), cmd))
}

// respond writes the order returned by a state change.
func (h *OrderHandler) respond(c *gin.Context) func(*domain.Order, error) {
	return func(o *domain.Order, err error) {
		if err != nil {
			writeDomainError(c, err)
			return
		}
		writeJSON(c, http.StatusOK, o)
	}
}
