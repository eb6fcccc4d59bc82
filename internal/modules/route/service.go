// README: Route manifests: build from eligible orders, reorder while DRAFT, dispatch and track progress.
package route

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"fleetdesk/internal/domain"
	"fleetdesk/internal/geo"
	"fleetdesk/internal/maps"
	"fleetdesk/internal/modules/audit"
	"fleetdesk/internal/modules/dispatch"
	"fleetdesk/internal/modules/settings"
	"fleetdesk/internal/store"
	"fleetdesk/internal/types"
)

// Optimizer proposes a visiting order for stops starting at origin and
// estimates single driving legs.
type Optimizer interface {
	OptimizeWaypoints(ctx context.Context, origin types.Point, stops []types.Point) (*maps.Optimized, error)
	TravelEstimate(ctx context.Context, origin, destination types.Point) (maps.Estimate, error)
}

// Notifier pushes route events to the driver app.
type Notifier interface {
	NotifyRouteActivated(ctx context.Context, deviceToken string, r *domain.Route) error
}

type Service struct {
	store     store.Store
	optimizer Optimizer
	notifier  Notifier
	log       *slog.Logger
}

// NewService wires the route service. optimizer and notifier may be nil.
func NewService(s store.Store, optimizer Optimizer, notifier Notifier, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: s, optimizer: optimizer, notifier: notifier, log: log}
}

// CreateManifest re-reads every order inside the transaction and creates the
// DRAFT route only when the whole batch is still eligible.
func (s *Service) CreateManifest(ctx context.Context, cmd CreateManifestCommand) (*domain.Route, error) {
	if err := domain.Validate(cmd); err != nil {
		return nil, err
	}
	id := cmd.RouteID
	if id == "" {
		id = types.NewID()
	}

	var created *domain.Route
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetRoute(ctx, id); err == nil {
			return fmt.Errorf("%w: route %s", domain.ErrDuplicate, id)
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		d, orders, err := dispatch.ManifestRules.Eligible(ctx, tx, cmd.DriverID, cmd.OrderIDs)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		r := &domain.Route{
			ID:        id,
			DriverID:  d.ID,
			OrderIDs:  append([]types.ID(nil), cmd.OrderIDs...),
			Status:    domain.RouteDraft,
			CreatedAt: now,
		}
		if err := tx.InsertRoute(ctx, r); err != nil {
			return err
		}
		for i, o := range orders {
			driverID, pos := d.ID, i+1
			o.AssignedDriverID = &driverID
			o.Status = domain.StatusAssigned
			o.RoutePosition = &pos
			o.UpdatedAt = now
			if err := tx.UpdateOrder(ctx, o); err != nil {
				return err
			}
		}
		created = r
		return audit.Record(ctx, tx, domain.ActionRouteCreated, cmd.Actor, r.ID, map[string]any{
			"driverId":   d.ID.String(),
			"orderCount": len(r.OrderIDs),
		})
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("route created", "route_id", created.ID, "driver_id", created.DriverID, "stops", len(created.OrderIDs))
	return created, nil
}

// OptimizeRoute replaces the stop order of a DRAFT route with a permutation
// of its current orders.
func (s *Service) OptimizeRoute(ctx context.Context, cmd OptimizeCommand) (*domain.Route, error) {
	if err := domain.Validate(cmd); err != nil {
		return nil, err
	}

	var updated *domain.Route
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		r, err := tx.GetRoute(ctx, cmd.RouteID)
		if err != nil {
			return err
		}
		if r.Status != domain.RouteDraft {
			return fmt.Errorf("%w: route %s is %s", domain.ErrRouteNotDraft, r.ID, r.Status)
		}
		if err := samePermutation(r.OrderIDs, cmd.OrderIDs); err != nil {
			return err
		}

		r.OrderIDs = append([]types.ID(nil), cmd.OrderIDs...)
		if err := tx.UpdateRoute(ctx, r); err != nil {
			return err
		}
		orders, err := tx.GetOrders(ctx, r.OrderIDs)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		for i, id := range r.OrderIDs {
			o, ok := orders[id]
			if !ok {
				continue
			}
			pos := i + 1
			o.RoutePosition = &pos
			o.UpdatedAt = now
			if err := tx.UpdateOrder(ctx, o); err != nil {
				return err
			}
		}
		updated = r
		return audit.Record(ctx, tx, domain.ActionRouteOptimized, cmd.Actor, r.ID, map[string]any{
			"optimizedOrderIds": idStrings(r.OrderIDs),
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Activate dispatches a DRAFT route. The driver push is sent after commit and
// its failure does not undo the activation.
func (s *Service) Activate(ctx context.Context, cmd ActivateCommand) (*domain.Route, error) {
	if err := domain.Validate(cmd); err != nil {
		return nil, err
	}

	var (
		activated *domain.Route
		token     string
	)
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		r, err := tx.GetRoute(ctx, cmd.RouteID)
		if err != nil {
			return err
		}
		if r.Status != domain.RouteDraft {
			return fmt.Errorf("%w: route %s is %s", domain.ErrRouteNotDraft, r.ID, r.Status)
		}

		now := time.Now().UTC()
		r.Status = domain.RouteActive
		r.StartedAt = &now
		if err := tx.UpdateRoute(ctx, r); err != nil {
			return err
		}
		if d, err := tx.GetDriver(ctx, r.DriverID); err == nil {
			token = d.PushToken
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		activated = r
		return audit.Record(ctx, tx, domain.ActionRouteActivated, cmd.Actor, r.ID, map[string]any{
			"driverId":   r.DriverID.String(),
			"orderCount": len(r.OrderIDs),
		})
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("route activated", "route_id", activated.ID, "driver_id", activated.DriverID)
	s.notifyActivated(ctx, token, activated)
	return activated, nil
}

func (s *Service) notifyActivated(ctx context.Context, token string, r *domain.Route) {
	if s.notifier == nil || token == "" {
		s.log.Debug("route push skipped", "route_id", r.ID, "has_token", token != "")
		return
	}
	if err := s.notifier.NotifyRouteActivated(ctx, token, r); err != nil {
		s.log.Warn("route push failed", "route_id", r.ID, "driver_id", r.DriverID, "err", err)
	}
}

// UpdateProgress marks the order at the current stop EN_ROUTE when it is
// still ASSIGNED. Other stops are left alone.
func (s *Service) UpdateProgress(ctx context.Context, cmd ProgressCommand) (*domain.Order, error) {
	if err := domain.Validate(cmd); err != nil {
		return nil, err
	}

	var current *domain.Order
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		r, err := tx.GetRoute(ctx, cmd.RouteID)
		if err != nil {
			return err
		}
		if cmd.CurrentStopIndex >= len(r.OrderIDs) {
			return fmt.Errorf("%w: stop index %d out of range for %d stops", domain.ErrBadRequest, cmd.CurrentStopIndex, len(r.OrderIDs))
		}
		orders, err := tx.GetOrders(ctx, r.OrderIDs)
		if err != nil {
			return err
		}
		if missing := missingIDs(r.OrderIDs, orders); len(missing) > 0 {
			return fmt.Errorf("%w: route %s references %s", domain.ErrOrderNotFound, r.ID, strings.Join(missing, ", "))
		}

		o := orders[r.OrderIDs[cmd.CurrentStopIndex]]
		current = o
		if o.Status != domain.StatusAssigned {
			return nil
		}
		o.Status = domain.StatusEnRoute
		o.UpdatedAt = time.Now().UTC()
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return err
		}
		return audit.Record(ctx, tx, domain.ActionOrderStatusChanged, cmd.Actor, o.ID, map[string]any{
			"from":    string(domain.StatusAssigned),
			"to":      string(domain.StatusEnRoute),
			"routeId": r.ID.String(),
		})
	})
	if err != nil {
		return nil, err
	}
	return current, nil
}

// Complete closes a route without checking its stops. The number of stops
// still open is recorded in the audit entry.
func (s *Service) Complete(ctx context.Context, cmd CompleteCommand) (*domain.Route, error) {
	if err := domain.Validate(cmd); err != nil {
		return nil, err
	}

	var completed *domain.Route
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		r, err := tx.GetRoute(ctx, cmd.RouteID)
		if err != nil {
			return err
		}
		if r.Status == domain.RouteCompleted {
			return fmt.Errorf("%w: route %s is already completed", domain.ErrPreconditionFailed, r.ID)
		}
		orders, err := tx.GetOrders(ctx, r.OrderIDs)
		if err != nil {
			return err
		}
		open := 0
		for _, o := range orders {
			if !o.Status.Terminal() {
				open++
			}
		}

		now := time.Now().UTC()
		r.Status = domain.RouteCompleted
		r.CompletedAt = &now
		if err := tx.UpdateRoute(ctx, r); err != nil {
			return err
		}
		completed = r
		return audit.Record(ctx, tx, domain.ActionRouteCompleted, cmd.Actor, r.ID, map[string]any{
			"driverId":   r.DriverID.String(),
			"orderCount": len(r.OrderIDs),
			"openStops":  open,
		})
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("route completed", "route_id", completed.ID)
	return completed, nil
}

// SuggestSequence proposes a stop order for a route without changing it.
// The maps optimizer is used when configured; otherwise, or when it fails,
// the nearest neighbour heuristic is used.
func (s *Service) SuggestSequence(ctx context.Context, routeID types.ID) (*Suggestion, error) {
	r, err := s.store.GetRoute(ctx, routeID)
	if err != nil {
		return nil, err
	}
	orders, err := s.store.GetOrders(ctx, r.OrderIDs)
	if err != nil {
		return nil, err
	}

	out := &Suggestion{RouteID: r.ID, OrderIDs: []types.ID{}, Source: SourceNearestNeighbour}
	stops := make([]Stop, 0, len(r.OrderIDs))
	for _, id := range r.OrderIDs {
		o, ok := orders[id]
		if !ok {
			out.Skipped = append(out.Skipped, id)
			continue
		}
		stops = append(stops, Stop{OrderID: id, Point: o.DeliveryAddress.Coordinates})
	}
	if len(stops) == 0 {
		return out, nil
	}

	var origin *types.Point
	if wh, err := settings.Warehouse(ctx, s.store); err == nil {
		origin = &wh
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	if s.optimizer != nil {
		start := stops[0].Point
		if origin != nil {
			start = *origin
		}
		opt, err := s.optimize(ctx, start, stops)
		if err == nil {
			out.OrderIDs = make([]types.ID, len(opt.Order))
			for i, idx := range opt.Order {
				out.OrderIDs[i] = stops[idx].OrderID
			}
			out.Source = SourceMaps
			out.DistanceKm = opt.DistanceKm
			return out, nil
		}
		s.log.Warn("maps optimizer failed, using nearest neighbour", "route_id", r.ID, "err", err)
	}

	out.OrderIDs = NearestNeighbour(stops)
	out.DistanceKm = PathKm(origin, reorder(stops, out.OrderIDs))
	return out, nil
}

func (s *Service) optimize(ctx context.Context, origin types.Point, stops []Stop) (*maps.Optimized, error) {
	points := make([]types.Point, len(stops))
	for i, st := range stops {
		points[i] = st.Point
	}
	opt, err := s.optimizer.OptimizeWaypoints(ctx, origin, points)
	if err != nil {
		return nil, err
	}
	if !isPermutation(opt.Order, len(stops)) {
		return nil, fmt.Errorf("optimizer returned order %v for %d stops", opt.Order, len(stops))
	}
	return opt, nil
}

// maxLegRequests bounds concurrent Directions calls for one route.
const maxLegRequests = 4

// Legs estimates each hop of a route in its current order. The first hop
// starts at the warehouse when one is configured. Hops the maps client
// cannot estimate fall back to straight-line distance.
func (s *Service) Legs(ctx context.Context, routeID types.ID) (*LegsReport, error) {
	r, err := s.store.GetRoute(ctx, routeID)
	if err != nil {
		return nil, err
	}
	orders, err := s.store.GetOrders(ctx, r.OrderIDs)
	if err != nil {
		return nil, err
	}

	out := &LegsReport{RouteID: r.ID, Legs: []Leg{}}
	var points []Stop
	if wh, err := settings.Warehouse(ctx, s.store); err == nil {
		points = append(points, Stop{Point: wh})
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	for _, id := range r.OrderIDs {
		o, ok := orders[id]
		if !ok {
			out.Skipped = append(out.Skipped, id)
			continue
		}
		points = append(points, Stop{OrderID: id, Point: o.DeliveryAddress.Coordinates})
	}
	if len(points) < 2 {
		return out, nil
	}

	out.Legs = make([]Leg, len(points)-1)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxLegRequests)
	for i := range out.Legs {
		from, to := points[i], points[i+1]
		out.Legs[i] = Leg{
			FromOrderID: from.OrderID,
			ToOrderID:   to.OrderID,
			DistanceKm:  geo.DistanceKm(from.Point, to.Point),
			Source:      SourceStraightLine,
		}
		if s.optimizer == nil {
			continue
		}
		leg := &out.Legs[i]
		g.Go(func() error {
			est, err := s.optimizer.TravelEstimate(gctx, from.Point, to.Point)
			if err != nil {
				s.log.Warn("travel estimate failed, using straight line", "route_id", r.ID, "to", to.OrderID, "err", err)
				return nil
			}
			leg.DistanceKm = est.DistanceKm
			leg.DurationSeconds = int64(est.Duration.Seconds())
			leg.Source = SourceMaps
			return nil
		})
	}
	_ = g.Wait()

	for _, l := range out.Legs {
		out.DistanceKm += l.DistanceKm
		out.DurationSeconds += l.DurationSeconds
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*domain.Route, error) {
	return s.store.GetRoute(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]*domain.Route, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown route status %q", domain.ErrBadRequest, f.Status)
	}
	return s.store.ListRoutes(ctx, store.RouteFilter{DriverID: f.DriverID, Status: f.Status})
}

// DriverOrders lists orders assigned to the driver that are not on a route yet.
func (s *Service) DriverOrders(ctx context.Context, driverID types.ID) ([]*domain.Order, error) {
	if driverID == "" {
		return nil, fmt.Errorf("%w: driver id is required", domain.ErrBadRequest)
	}
	return s.store.ListOrders(ctx, store.OrderFilter{
		Statuses:     []domain.Status{domain.StatusAssigned},
		DriverID:     driverID,
		WithoutRoute: true,
		OldestFirst:  true,
	})
}

// samePermutation reports ids that are not in the route and route orders
// left out of the new sequence.
func samePermutation(current, proposed []types.ID) error {
	in := make(map[types.ID]bool, len(current))
	for _, id := range current {
		in[id] = true
	}
	seen := make(map[types.ID]bool, len(proposed))
	var extra, missing, repeated []string
	for _, id := range proposed {
		if seen[id] {
			repeated = append(repeated, id.String())
			continue
		}
		seen[id] = true
		if !in[id] {
			extra = append(extra, id.String())
		}
	}
	for _, id := range current {
		if !seen[id] {
			missing = append(missing, id.String())
		}
	}
	if len(extra) == 0 && len(missing) == 0 && len(repeated) == 0 {
		return nil
	}
	var parts []string
	if len(extra) > 0 {
		parts = append(parts, "not in route: "+strings.Join(extra, ", "))
	}
	if len(missing) > 0 {
		parts = append(parts, "missing from sequence: "+strings.Join(missing, ", "))
	}
	if len(repeated) > 0 {
		parts = append(parts, "repeated: "+strings.Join(repeated, ", "))
	}
	return fmt.Errorf("%w: %s", domain.ErrOrderSetMismatch, strings.Join(parts, "; "))
}

func missingIDs(ids []types.ID, found map[types.ID]*domain.Order) []string {
	var out []string
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			out = append(out, id.String())
		}
	}
	return out
}

func isPermutation(order []int, n int) bool {
	if len(order) != n {
		return false
	}
	seen := make([]bool, n)
	for _, i := range order {
		if i < 0 || i >= n || seen[i] {
			return false
		}
		seen[i] = true
	}
	return true
}

func idStrings(ids []types.ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
