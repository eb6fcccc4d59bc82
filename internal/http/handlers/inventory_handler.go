// README: Product and stock handlers.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fleetdesk/internal/modules/inventory"
)

type InventoryHandler struct {
	inventory *inventory.Service
}

func NewInventoryHandler(svc *inventory.Service) *InventoryHandler {
	return &InventoryHandler{inventory: svc}
}

func (h *InventoryHandler) Create(c *gin.Context) {
	var cmd inventory.CreateProductCommand
	if !bindJSON(c, &cmd) {
		return
	}
	cmd.Actor = actor(c)
	p, err := h.inventory.CreateProduct(c.Request.Context(), cmd)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, p)
}

func (h *InventoryHandler) List(c *gin.Context) {
	products, err := h.inventory.List(c.Request.Context(), c.Query("category"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, products)
}

func (h *InventoryHandler) Get(c *gin.Context) {
	p, err := h.inventory.Get(c.Request.Context(), pathID(c, "id"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, p)
}

// LowStock serves GET /products/low-stock?threshold=; zero means the configured default.
func (h *InventoryHandler) LowStock(c *gin.Context) {
	threshold, err := queryInt(c, "threshold")
	if err != nil {
		writeDomainError(c, err)
		return
	}
	products, err := h.inventory.LowStock(c.Request.Context(), threshold)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, products)
}

func (h *InventoryHandler) Restock(c *gin.Context) {
	var cmd inventory.RestockCommand
	if !bindJSON(c, &cmd) {
		return
	}
	cmd.ProductID = pathID(c, "id")
	cmd.Actor = actor(c)
	level, err := h.inventory.Restock(c.Request.Context(), cmd)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"product_id": cmd.ProductID, "stock_level": level})
}

func (h *InventoryHandler) History(c *gin.Context) {
	limit, err := queryLimit(c)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	entries, err := h.inventory.StockHistory(c.Request.Context(), pathID(c, "id"), limit)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, entries)
}
