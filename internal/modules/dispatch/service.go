// README: Dispatch board: batch assignment of orders to an on-duty driver.
package dispatch

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"fleetdesk/internal/domain"
	"fleetdesk/internal/modules/audit"
	"fleetdesk/internal/store"
	"fleetdesk/internal/types"
)

type AssignCommand struct {
	OrderIDs []types.ID `json:"order_ids" validate:"required,min=1,unique,dive,required"`
	DriverID types.ID   `json:"driver_id" validate:"required"`
	Actor    string     `json:"-"`
}

// DriverOrders groups the orders currently ASSIGNED to one driver.
type DriverOrders struct {
	DriverID   types.ID        `json:"driver_id"`
	DriverName string          `json:"driver_name"`
	Orders     []*domain.Order `json:"orders"`
}

const unknownDriverName = "Unknown Driver"

type Service struct {
	store store.Store
	log   *slog.Logger
}

func NewService(s store.Store, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: s, log: log}
}

// AssignOrdersToDriver assigns the whole batch or nothing.
func (s *Service) AssignOrdersToDriver(ctx context.Context, cmd AssignCommand) ([]*domain.Order, error) {
	if err := domain.Validate(cmd); err != nil {
		return nil, err
	}

	var assigned []*domain.Order
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		d, orders, err := AssignRules.Eligible(ctx, tx, cmd.DriverID, cmd.OrderIDs)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		for _, o := range orders {
			driverID := d.ID
			o.AssignedDriverID = &driverID
			o.Status = domain.StatusAssigned
			o.UpdatedAt = now
			if err := tx.UpdateOrder(ctx, o); err != nil {
				return err
			}
			if err := audit.Record(ctx, tx, domain.ActionOrderAssigned, cmd.Actor, o.ID, map[string]any{
				"driverId":   d.ID.String(),
				"driverName": d.Name,
			}); err != nil {
				return err
			}
		}
		assigned = orders
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("orders assigned", "driver_id", cmd.DriverID, "count", len(assigned), "actor", cmd.Actor)
	return assigned, nil
}

// AssignedOrders lists ASSIGNED orders grouped by driver. An empty driverID
// returns every driver that has some.
func (s *Service) AssignedOrders(ctx context.Context, driverID types.ID) ([]DriverOrders, error) {
	orders, err := s.store.ListOrders(ctx, store.OrderFilter{
		Statuses:    []domain.Status{domain.StatusAssigned},
		DriverID:    driverID,
		OldestFirst: true,
	})
	if err != nil {
		return nil, err
	}

	groups := make(map[types.ID]*DriverOrders)
	for _, o := range orders {
		if o.AssignedDriverID == nil {
			continue
		}
		id := *o.AssignedDriverID
		g, ok := groups[id]
		if !ok {
			g = &DriverOrders{DriverID: id, DriverName: s.driverName(ctx, id)}
			groups[id] = g
		}
		g.Orders = append(g.Orders, o)
	}

	out := make([]DriverOrders, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DriverName != out[j].DriverName {
			return out[i].DriverName < out[j].DriverName
		}
		return out[i].DriverID < out[j].DriverID
	})
	return out, nil
}

func (s *Service) driverName(ctx context.Context, id types.ID) string {
	d, err := s.store.GetDriver(ctx, id)
	if err != nil {
		return unknownDriverName
	}
	return d.Name
}
