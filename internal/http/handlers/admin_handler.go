// README: Audit log and settings handlers.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fleetdesk/internal/domain"
	"fleetdesk/internal/modules/audit"
	"fleetdesk/internal/modules/settings"
	"fleetdesk/internal/types"
)

type AdminHandler struct {
	audit    *audit.Service
	settings *settings.Service
}

func NewAdminHandler(a *audit.Service, s *settings.Service) *AdminHandler {
	return &AdminHandler{audit: a, settings: s}
}

func (h *AdminHandler) Audit(c *gin.Context) {
	limit, err := queryLimit(c)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	entries, err := h.audit.List(c.Request.Context(), audit.Filter{
		ActorID:  c.Query("actor_id"),
		TargetID: types.ID(c.Query("target_id")),
		Action:   domain.AuditAction(c.Query("action")),
		Limit:    limit,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, entries)
}

func (h *AdminHandler) RecentAudit(c *gin.Context) {
	limit, err := queryLimit(c)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	entries, err := h.audit.Recent(c.Request.Context(), limit)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, entries)
}

func (h *AdminHandler) Warehouse(c *gin.Context) {
	p, err := h.settings.Warehouse(c.Request.Context())
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, p)
}

func (h *AdminHandler) SetWarehouse(c *gin.Context) {
	var cmd settings.SetWarehouseCommand
	if !bindJSON(c, &cmd) {
		return
	}
	cmd.Actor = actor(c)
	p, err := h.settings.SetWarehouse(c.Request.Context(), cmd)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, p)
}
