// README: Inventory ledger: product intake, restock and stock queries.
package inventory

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"fleetdesk/internal/domain"
	"fleetdesk/internal/modules/audit"
	"fleetdesk/internal/store"
	"fleetdesk/internal/types"
)

const DefaultLowStockThreshold = 10

type Service struct {
	store    store.Store
	history  *audit.Service
	lowStock int
}

func NewService(s store.Store, lowStockThreshold int) *Service {
	if lowStockThreshold <= 0 {
		lowStockThreshold = DefaultLowStockThreshold
	}
	return &Service{store: s, history: audit.NewService(s), lowStock: lowStockThreshold}
}

type RestockCommand struct {
	ProductID types.ID `json:"product_id" validate:"required"`
	Quantity  int      `json:"quantity" validate:"gt=0,lte=2147483647"`
	Reason    string   `json:"reason"`
	Actor     string   `json:"-"`
}

type CreateProductCommand struct {
	ID          types.ID        `json:"id"`
	SKU         string          `json:"sku" validate:"required"`
	Name        string          `json:"name" validate:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price" validate:"gte=0"`
	StockLevel  int             `json:"stock_level" validate:"gte=0,lte=2147483647"`
	Category    string          `json:"category"`
	ImageURL    string          `json:"image_url"`
	Actor       string          `json:"-"`
}

// Restock adds quantity units and returns the new stock level.
func (s *Service) Restock(ctx context.Context, cmd RestockCommand) (int, error) {
	if err := domain.Validate(cmd); err != nil {
		return 0, err
	}
	var level int
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		p, err := tx.GetProduct(ctx, cmd.ProductID)
		if err != nil {
			return err
		}
		previous := p.StockLevel
		if p.StockLevel, err = domain.AddStock(p.StockLevel, cmd.Quantity); err != nil {
			return err
		}
		p.UpdatedAt = time.Now().UTC()
		if err := tx.UpdateProduct(ctx, p); err != nil {
			return err
		}
		level = p.StockLevel
		return audit.Record(ctx, tx, domain.ActionStockRestocked, cmd.Actor, p.ID, map[string]any{
			"quantity":           cmd.Quantity,
			"reason":             cmd.Reason,
			"previousStockLevel": previous,
			"newStockLevel":      p.StockLevel,
		})
	})
	if err != nil {
		return 0, err
	}
	return level, nil
}

func (s *Service) CreateProduct(ctx context.Context, cmd CreateProductCommand) (*domain.Product, error) {
	if err := domain.Validate(cmd); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	p := &domain.Product{
		ID:          cmd.ID,
		SKU:         cmd.SKU,
		Name:        cmd.Name,
		Description: cmd.Description,
		Price:       cmd.Price.Round(types.MoneyPlaces),
		StockLevel:  cmd.StockLevel,
		Category:    cmd.Category,
		ImageURL:    cmd.ImageURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if p.ID == "" {
		p.ID = types.NewID()
	}
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if err := tx.InsertProduct(ctx, p); err != nil {
			return err
		}
		return audit.Record(ctx, tx, domain.ActionProductCreated, cmd.Actor, p.ID, map[string]any{
			"sku":        p.SKU,
			"name":       p.Name,
			"stockLevel": p.StockLevel,
		})
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*domain.Product, error) {
	return s.store.GetProduct(ctx, id)
}

func (s *Service) List(ctx context.Context, category string) ([]*domain.Product, error) {
	return s.store.ListProducts(ctx, store.ProductFilter{Category: category})
}

// LowStock lists products at or below threshold; zero uses the configured default.
func (s *Service) LowStock(ctx context.Context, threshold int) ([]*domain.Product, error) {
	if threshold <= 0 {
		threshold = s.lowStock
	}
	return s.store.ListProducts(ctx, store.ProductFilter{MaxStock: &threshold})
}

// StockHistory lists restock and restoration entries, newest first.
func (s *Service) StockHistory(ctx context.Context, productID types.ID, limit int) ([]*domain.AuditEntry, error) {
	return s.history.History(ctx, productID, limit, domain.ActionStockRestocked, domain.ActionStockRestored)
}
