package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"fleetdesk/internal/domain"
	"fleetdesk/internal/modules/audit"
	"fleetdesk/internal/store"
	"fleetdesk/internal/types"
)

// Request asks for quantity units of one product.
type Request struct {
	ProductID types.ID
	Quantity  int
}

// Reserve checks every request against current stock and only then
// decrements. On any failure nothing is written. Requests for the same
// product are summed before the check. The returned products carry the
// decremented stock levels.
func Reserve(ctx context.Context, tx store.Tx, reqs []Request) (map[types.ID]*domain.Product, error) {
	wanted, order, err := aggregate(reqs)
	if err != nil {
		return nil, err
	}

	products := make(map[types.ID]*domain.Product, len(wanted))
	var missing []string
	for _, id := range sortedIDs(wanted) {
		p, err := tx.GetProduct(ctx, id)
		if err != nil {
			if isNotFound(err) {
				missing = append(missing, string(id))
				continue
			}
			return nil, err
		}
		products[id] = p
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrProductNotFound, strings.Join(missing, ", "))
	}

	var short []string
	for _, id := range order {
		p := products[id]
		if p.StockLevel < wanted[id] {
			short = append(short, fmt.Sprintf("%s (%s): available %d, requested %d", p.Name, p.ID, p.StockLevel, wanted[id]))
		}
	}
	if len(short) > 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrInsufficientStock, strings.Join(short, "; "))
	}

	now := time.Now().UTC()
	for _, id := range sortedIDs(wanted) {
		p := products[id]
		p.StockLevel -= wanted[id]
		p.UpdatedAt = now
		if err := tx.UpdateProduct(ctx, p); err != nil {
			return nil, err
		}
	}
	return products, nil
}

// Restore gives an order's items back to stock once. It reports false when
// the order had already been restored. The caller persists o afterwards.
func Restore(ctx context.Context, tx store.Tx, o *domain.Order, actor, reason string) (bool, error) {
	if o.StockRestored {
		return false, nil
	}
	reqs := make([]Request, 0, len(o.Items))
	for _, it := range o.Items {
		reqs = append(reqs, Request{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	wanted, _, err := aggregate(reqs)
	if err != nil {
		return false, err
	}

	now := time.Now().UTC()
	for _, id := range sortedIDs(wanted) {
		p, err := tx.GetProduct(ctx, id)
		if err != nil {
			return false, err
		}
		if p.StockLevel, err = domain.AddStock(p.StockLevel, wanted[id]); err != nil {
			return false, err
		}
		p.UpdatedAt = now
		if err := tx.UpdateProduct(ctx, p); err != nil {
			return false, err
		}
		meta := map[string]any{
			"orderId":       string(o.ID),
			"quantity":      wanted[id],
			"newStockLevel": p.StockLevel,
		}
		if reason != "" {
			meta["reason"] = reason
		}
		if err := audit.Record(ctx, tx, domain.ActionStockRestored, actor, id, meta); err != nil {
			return false, err
		}
	}
	o.StockRestored = true
	return true, nil
}

// aggregate sums quantities per product, rejecting totals past MaxStockLevel.
func aggregate(reqs []Request) (map[types.ID]int, []types.ID, error) {
	wanted := make(map[types.ID]int, len(reqs))
	order := make([]types.ID, 0, len(reqs))
	for _, r := range reqs {
		if r.Quantity <= 0 || r.Quantity > domain.MaxStockLevel {
			return nil, nil, fmt.Errorf("%w: quantity for product %s must be between 1 and %d", domain.ErrBadRequest, r.ProductID, domain.MaxStockLevel)
		}
		if _, seen := wanted[r.ProductID]; !seen {
			order = append(order, r.ProductID)
		}
		if wanted[r.ProductID] > domain.MaxStockLevel-r.Quantity {
			return nil, nil, fmt.Errorf("%w: total quantity for product %s exceeds %d", domain.ErrBadRequest, r.ProductID, domain.MaxStockLevel)
		}
		wanted[r.ProductID] += r.Quantity
	}
	return wanted, order, nil
}

// sortedIDs fixes the lock order so concurrent transactions cannot deadlock.
func sortedIDs(m map[types.ID]int) []types.ID {
	ids := make([]types.ID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
