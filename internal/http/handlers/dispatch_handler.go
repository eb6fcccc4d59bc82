// README: Dispatch and route handlers: batch assignment, manifests, sequencing and route lifecycle.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fleetdesk/internal/domain"
	"fleetdesk/internal/modules/dispatch"
	"fleetdesk/internal/modules/route"
	"fleetdesk/internal/types"
)

type DispatchHandler struct {
	dispatch *dispatch.Service
	routes   *route.Service
}

func NewDispatchHandler(d *dispatch.Service, routes *route.Service) *DispatchHandler {
	return &DispatchHandler{dispatch: d, routes: routes}
}

func (h *DispatchHandler) Assign(c *gin.Context) {
	var cmd dispatch.AssignCommand
	if !bindJSON(c, &cmd) {
		return
	}
	cmd.Actor = actor(c)
	orders, err := h.dispatch.AssignOrdersToDriver(c.Request.Context(), cmd)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"assigned_count": len(orders), "orders": orders})
}

func (h *DispatchHandler) Assigned(c *gin.Context) {
	groups, err := h.dispatch.AssignedOrders(c.Request.Context(), types.ID(c.Query("driver_id")))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, groups)
}

func (h *DispatchHandler) CreateRoute(c *gin.Context) {
	var cmd route.CreateManifestCommand
	if !bindJSON(c, &cmd) {
		return
	}
	cmd.Actor = actor(c)
	r, err := h.routes.CreateManifest(c.Request.Context(), cmd)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, r)
}

func (h *DispatchHandler) ListRoutes(c *gin.Context) {
	routes, err := h.routes.List(c.Request.Context(), route.ListFilter{
		DriverID: types.ID(c.Query("driver_id")),
		Status:   domain.RouteStatus(c.Query("status")),
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, routes)
}

func (h *DispatchHandler) GetRoute(c *gin.Context) {
	r, err := h.routes.Get(c.Request.Context(), pathID(c, "id"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, r)
}

func (h *DispatchHandler) Resequence(c *gin.Context) {
	var cmd route.OptimizeCommand
	if !bindJSON(c, &cmd) {
		return
	}
	cmd.RouteID = pathID(c, "id")
	cmd.Actor = actor(c)
	r, err := h.routes.OptimizeRoute(c.Request.Context(), cmd)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, r)
}

func (h *DispatchHandler) Suggest(c *gin.Context) {
	s, err := h.routes.SuggestSequence(c.Request.Context(), pathID(c, "id"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, s)
}

func (h *DispatchHandler) Legs(c *gin.Context) {
	l, err := h.routes.Legs(c.Request.Context(), pathID(c, "id"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, l)
}

func (h *DispatchHandler) Activate(c *gin.Context) {
	r, err := h.routes.Activate(c.Request.Context(), route.ActivateCommand{RouteID: pathID(c, "id"), Actor: actor(c)})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, r)
}

func (h *DispatchHandler) Complete(c *gin.Context) {
	r, err := h.routes.Complete(c.Request.Context(), route.CompleteCommand{RouteID: pathID(c, "id"), Actor: actor(c)})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, r)
}
