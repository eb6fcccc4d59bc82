package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"fleetdesk/internal/types"
)

type Product struct {
	ID          types.ID        `json:"id"`
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	StockLevel  int             `json:"stock_level"`
	Category    string          `json:"category,omitempty"`
	ImageURL    string          `json:"image_url,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}

// MaxStockLevel is the largest quantity a stock level or a single line can
// hold; it matches the INTEGER column.
const MaxStockLevel = 1<<31 - 1

// AddStock returns level+qty, refusing results outside [0, MaxStockLevel].
func AddStock(level, qty int) (int, error) {
	if qty < 0 || qty > MaxStockLevel-level {
		return 0, fmt.Errorf("%w: stock level %d plus %d exceeds %d", ErrBadRequest, level, qty, MaxStockLevel)
	}
	return level + qty, nil
}
