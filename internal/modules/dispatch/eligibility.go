package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fleetdesk/internal/domain"
	"fleetdesk/internal/store"
	"fleetdesk/internal/types"
)

// Rules describe which orders may be handed to a driver. Assignment and
// manifest creation share the checks and differ only in source statuses.
type Rules struct {
	Allowed []domain.Status
}

var (
	// AssignRules guard direct assignment from the dispatch board.
	AssignRules = Rules{Allowed: []domain.Status{
		domain.StatusPendingDispatch,
		domain.StatusProcessing,
		domain.StatusPendingVerification,
	}}
	// ManifestRules guard route creation; orders assigned earlier may join a manifest.
	ManifestRules = Rules{Allowed: []domain.Status{
		domain.StatusPendingDispatch,
		domain.StatusProcessing,
		domain.StatusAssigned,
	}}
)

func (r Rules) allows(s domain.Status) bool {
	for _, a := range r.Allowed {
		if a == s {
			return true
		}
	}
	return false
}

// Check reports why o cannot go to driverID, or nil.
func (r Rules) Check(o *domain.Order, driverID types.ID) error {
	if o.Status == domain.StatusCancelled {
		return fmt.Errorf("%w: order %s is cancelled", domain.ErrIllegalAssignment, o.ID)
	}
	if o.AssignedToOther(driverID) {
		return fmt.Errorf("%w: order %s belongs to driver %s", domain.ErrAlreadyAssigned, o.ID, *o.AssignedDriverID)
	}
	if !r.allows(o.Status) {
		return fmt.Errorf("%w: order %s (status: %s)", domain.ErrIllegalAssignment, o.ID, o.Status)
	}
	return nil
}

// Eligible loads the driver and every order from r and validates the whole
// batch before the caller writes anything. Orders come back in request order.
func (r Rules) Eligible(ctx context.Context, rd store.Reader, driverID types.ID, orderIDs []types.ID) (*domain.Driver, []*domain.Order, error) {
	d, err := OnDutyDriver(ctx, rd, driverID)
	if err != nil {
		return nil, nil, err
	}

	found, err := rd.GetOrders(ctx, orderIDs)
	if err != nil {
		return nil, nil, err
	}
	var missing []string
	orders := make([]*domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		o, ok := found[id]
		if !ok {
			missing = append(missing, id.String())
			continue
		}
		orders = append(orders, o)
	}
	if len(missing) > 0 {
		return nil, nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, strings.Join(missing, ", "))
	}

	for _, o := range orders {
		if err := r.Check(o, driverID); err != nil {
			return nil, nil, err
		}
	}
	return d, orders, nil
}

// OnDutyDriver returns the driver when it exists and is on duty.
func OnDutyDriver(ctx context.Context, rd store.Reader, id types.ID) (*domain.Driver, error) {
	d, err := rd.GetDriver(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: driver %s not found", domain.ErrDriverUnavailable, id)
	}
	if err != nil {
		return nil, err
	}
	if !d.OnDuty {
		return nil, fmt.Errorf("%w: driver %s", domain.ErrDriverUnavailable, id)
	}
	return d, nil
}
