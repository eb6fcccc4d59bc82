// README: Back-office driver handlers: fleet roster, availability, proximity and COD wallets.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fleetdesk/internal/modules/driver"
	"fleetdesk/internal/modules/route"
	"fleetdesk/internal/modules/wallet"
	"fleetdesk/internal/types"
)

type DriverHandler struct {
	drivers *driver.Service
	wallets *wallet.Service
	routes  *route.Service
}

func NewDriverHandler(drivers *driver.Service, wallets *wallet.Service, routes *route.Service) *DriverHandler {
	return &DriverHandler{drivers: drivers, wallets: wallets, routes: routes}
}

func (h *DriverHandler) Create(c *gin.Context) {
	var cmd driver.CreateCommand
	if !bindJSON(c, &cmd) {
		return
	}
	cmd.Actor = actor(c)
	d, err := h.drivers.Create(c.Request.Context(), cmd)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, d)
}

func (h *DriverHandler) List(c *gin.Context) {
	drivers, err := h.drivers.List(c.Request.Context())
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, drivers)
}

func (h *DriverHandler) Get(c *gin.Context) {
	d, err := h.drivers.Get(c.Request.Context(), pathID(c, "id"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, d)
}

func (h *DriverHandler) SetDuty(c *gin.Context) {
	var cmd driver.DutyCommand
	if !bindJSON(c, &cmd) {
		return
	}
	cmd.DriverID = pathID(c, "id")
	cmd.Actor = actor(c)
	d, err := h.drivers.SetDuty(c.Request.Context(), cmd)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, d)
}

func (h *DriverHandler) Available(c *gin.Context) {
	drivers, err := h.drivers.Available(c.Request.Context())
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, drivers)
}

// Nearby serves GET /drivers/nearby?lat=&lng=&radius_km=.
func (h *DriverHandler) Nearby(c *gin.Context) {
	lat, okLat, err := queryFloat(c, "lat")
	if err != nil {
		writeDomainError(c, err)
		return
	}
	lng, okLng, err := queryFloat(c, "lng")
	if err != nil {
		writeDomainError(c, err)
		return
	}
	if !okLat || !okLng {
		writeError(c, http.StatusBadRequest, "lat and lng are required")
		return
	}
	radius, _, err := queryFloat(c, "radius_km")
	if err != nil {
		writeDomainError(c, err)
		return
	}
	drivers, err := h.drivers.Nearby(c.Request.Context(), types.Point{Lat: lat, Lng: lng}, radius)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, drivers)
}

// Orders lists the driver's assigned orders not yet placed on a route.
func (h *DriverHandler) Orders(c *gin.Context) {
	orders, err := h.routes.DriverOrders(c.Request.Context(), pathID(c, "id"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, orders)
}

func (h *DriverHandler) Wallets(c *gin.Context) {
	wallets, err := h.wallets.Wallets(c.Request.Context())
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, wallets)
}

func (h *DriverHandler) Settle(c *gin.Context) {
	var cmd wallet.SettleCommand
	if !bindOptionalJSON(c, &cmd) {
		return
	}
	cmd.DriverID = pathID(c, "id")
	cmd.Actor = actor(c)
	s, err := h.wallets.Settle(c.Request.Context(), cmd)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, s)
}

func (h *DriverHandler) SettlementHistory(c *gin.Context) {
	limit, err := queryLimit(c)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	entries, err := h.wallets.SettlementHistory(c.Request.Context(), pathID(c, "id"), limit)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, entries)
}
