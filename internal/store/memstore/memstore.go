// README: In-memory Store used by tests and FLEETDESK_STORE=memory. Transactions
// are serialized by one mutex and roll back to a snapshot when fn fails.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"fleetdesk/internal/domain"
	"fleetdesk/internal/store"
	"fleetdesk/internal/types"
)

type Store struct {
	mu sync.RWMutex
	st *state
}

var (
	_ store.Store = (*Store)(nil)
	_ store.Tx    = (*tx)(nil)
)

func New() *Store {
	return &Store{st: newState()}
}

func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	defer func() {
		if r := recover(); r != nil {
			s.st = snapshot
			panic(r)
		}
	}()
	if err := fn(&tx{state: s.st}); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id types.ID) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.GetOrder(ctx, id)
}

func (s *Store) GetOrders(ctx context.Context, ids []types.ID) (map[types.ID]*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.GetOrders(ctx, ids)
}

func (s *Store) ListOrders(ctx context.Context, f store.OrderFilter) ([]*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.ListOrders(ctx, f)
}

func (s *Store) GetProduct(ctx context.Context, id types.ID) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.GetProduct(ctx, id)
}

func (s *Store) GetProductBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.GetProductBySKU(ctx, sku)
}

func (s *Store) ListProducts(ctx context.Context, f store.ProductFilter) ([]*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.ListProducts(ctx, f)
}

func (s *Store) GetDriver(ctx context.Context, id types.ID) (*domain.Driver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.GetDriver(ctx, id)
}

func (s *Store) GetDriverByExternalID(ctx context.Context, externalID string) (*domain.Driver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.GetDriverByExternalID(ctx, externalID)
}

func (s *Store) ListDrivers(ctx context.Context, f store.DriverFilter) ([]*domain.Driver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.ListDrivers(ctx, f)
}

func (s *Store) GetRoute(ctx context.Context, id types.ID) (*domain.Route, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.GetRoute(ctx, id)
}

func (s *Store) ListRoutes(ctx context.Context, f store.RouteFilter) ([]*domain.Route, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.ListRoutes(ctx, f)
}

func (s *Store) ListAudit(ctx context.Context, f store.AuditFilter) ([]*domain.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.ListAudit(ctx, f)
}

func (s *Store) GetSetting(ctx context.Context, key string) (*domain.Setting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.GetSetting(ctx, key)
}

// tx embeds the live state; the Store mutex is held for its whole lifetime.
type tx struct {
	*state
}

func (t *tx) InsertOrder(_ context.Context, o *domain.Order) error {
	if _, ok := t.state.orders[o.ID]; ok {
		return fmt.Errorf("%w: order %s", domain.ErrDuplicate, o.ID)
	}
	t.state.orders[o.ID] = o.Clone()
	t.state.orderSeq = append(t.state.orderSeq, o.ID)
	return nil
}

func (t *tx) UpdateOrder(_ context.Context, o *domain.Order) error {
	if _, ok := t.state.orders[o.ID]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrOrderNotFound, o.ID)
	}
	t.state.orders[o.ID] = o.Clone()
	return nil
}

func (t *tx) InsertProduct(_ context.Context, p *domain.Product) error {
	if _, ok := t.state.products[p.ID]; ok {
		return fmt.Errorf("%w: product %s", domain.ErrDuplicate, p.ID)
	}
	for _, existing := range t.state.products {
		if existing.SKU == p.SKU {
			return fmt.Errorf("%w: sku %s", domain.ErrDuplicate, p.SKU)
		}
	}
	t.state.products[p.ID] = p.Clone()
	return nil
}

func (t *tx) UpdateProduct(_ context.Context, p *domain.Product) error {
	if _, ok := t.state.products[p.ID]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrProductNotFound, p.ID)
	}
	t.state.products[p.ID] = p.Clone()
	return nil
}

func (t *tx) InsertDriver(_ context.Context, d *domain.Driver) error {
	if _, ok := t.state.drivers[d.ID]; ok {
		return fmt.Errorf("%w: driver %s", domain.ErrDuplicate, d.ID)
	}
	for _, existing := range t.state.drivers {
		if d.ExternalID != "" && existing.ExternalID == d.ExternalID {
			return fmt.Errorf("%w: external id %s", domain.ErrDuplicate, d.ExternalID)
		}
	}
	t.state.drivers[d.ID] = d.Clone()
	return nil
}

func (t *tx) UpdateDriver(_ context.Context, d *domain.Driver) error {
	if _, ok := t.state.drivers[d.ID]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrDriverNotFound, d.ID)
	}
	t.state.drivers[d.ID] = d.Clone()
	return nil
}

func (t *tx) InsertRoute(_ context.Context, r *domain.Route) error {
	if _, ok := t.state.routes[r.ID]; ok {
		return fmt.Errorf("%w: route %s", domain.ErrDuplicate, r.ID)
	}
	t.state.routes[r.ID] = r.Clone()
	t.state.routeSeq = append(t.state.routeSeq, r.ID)
	return nil
}

func (t *tx) UpdateRoute(_ context.Context, r *domain.Route) error {
	if _, ok := t.state.routes[r.ID]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrRouteNotFound, r.ID)
	}
	t.state.routes[r.ID] = r.Clone()
	return nil
}

func (t *tx) AppendAudit(_ context.Context, e *domain.AuditEntry) error {
	t.state.audit = append(t.state.audit, cloneAudit(e))
	return nil
}

func (t *tx) PutSetting(_ context.Context, s *domain.Setting) error {
	cp := *s
	cp.Value = append([]byte(nil), s.Value...)
	t.state.settings[s.Key] = &cp
	return nil
}

type state struct {
	orders   map[types.ID]*domain.Order
	orderSeq []types.ID
	products map[types.ID]*domain.Product
	drivers  map[types.ID]*domain.Driver
	routes   map[types.ID]*domain.Route
	routeSeq []types.ID
	audit    []*domain.AuditEntry
	settings map[string]*domain.Setting
}

func newState() *state {
	return &state{
		orders:   map[types.ID]*domain.Order{},
		products: map[types.ID]*domain.Product{},
		drivers:  map[types.ID]*domain.Driver{},
		routes:   map[types.ID]*domain.Route{},
		settings: map[string]*domain.Setting{},
	}
}

func (st *state) clone() *state {
	cp := newState()
	for id, o := range st.orders {
		cp.orders[id] = o.Clone()
	}
	cp.orderSeq = append([]types.ID(nil), st.orderSeq...)
	for id, p := range st.products {
		cp.products[id] = p.Clone()
	}
	for id, d := range st.drivers {
		cp.drivers[id] = d.Clone()
	}
	for id, r := range st.routes {
		cp.routes[id] = r.Clone()
	}
	cp.routeSeq = append([]types.ID(nil), st.routeSeq...)
	cp.audit = append([]*domain.AuditEntry(nil), st.audit...)
	for k, v := range st.settings {
		s := *v
		cp.settings[k] = &s
	}
	return cp
}

func (st *state) GetOrder(_ context.Context, id types.ID) (*domain.Order, error) {
	o, ok := st.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id)
	}
	return o.Clone(), nil
}

func (st *state) GetOrders(_ context.Context, ids []types.ID) (map[types.ID]*domain.Order, error) {
	out := make(map[types.ID]*domain.Order, len(ids))
	for _, id := range ids {
		if o, ok := st.orders[id]; ok {
			out[id] = o.Clone()
		}
	}
	return out, nil
}

func (st *state) ListOrders(_ context.Context, f store.OrderFilter) ([]*domain.Order, error) {
	var ids map[types.ID]bool
	if len(f.IDs) > 0 {
		ids = make(map[types.ID]bool, len(f.IDs))
		for _, id := range f.IDs {
			ids[id] = true
		}
	}
	term := strings.ToLower(strings.TrimSpace(f.Term))
	out := make([]*domain.Order, 0)
	for i := range st.orderSeq {
		id := st.orderSeq[i]
		if !f.OldestFirst {
			id = st.orderSeq[len(st.orderSeq)-1-i]
		}
		o := st.orders[id]
		if ids != nil && !ids[o.ID] {
			continue
		}
		if len(f.Statuses) > 0 && !containsStatus(f.Statuses, o.Status) {
			continue
		}
		if f.PaymentStatus != "" && o.PaymentStatus != f.PaymentStatus {
			continue
		}
		if f.PaymentMethod != "" && o.PaymentMethod != f.PaymentMethod {
			continue
		}
		if f.DriverID != "" && (o.AssignedDriverID == nil || *o.AssignedDriverID != f.DriverID) {
			continue
		}
		if f.CustomerID != "" && o.CustomerID != f.CustomerID {
			continue
		}
		if f.Unassigned && o.AssignedDriverID != nil {
			continue
		}
		if f.WithoutRoute && o.RoutePosition != nil {
			continue
		}
		if term != "" && !matchesTerm(o, term) {
			continue
		}
		out = append(out, o.Clone())
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (st *state) GetProduct(_ context.Context, id types.ID) (*domain.Product, error) {
	p, ok := st.products[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
	}
	return p.Clone(), nil
}

func (st *state) GetProductBySKU(_ context.Context, sku string) (*domain.Product, error) {
	for _, p := range st.products {
		if p.SKU == sku {
			return p.Clone(), nil
		}
	}
	return nil, fmt.Errorf("%w: sku %s", domain.ErrProductNotFound, sku)
}

func (st *state) ListProducts(_ context.Context, f store.ProductFilter) ([]*domain.Product, error) {
	out := make([]*domain.Product, 0, len(st.products))
	for _, p := range st.products {
		if f.MaxStock != nil && p.StockLevel > *f.MaxStock {
			continue
		}
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (st *state) GetDriver(_ context.Context, id types.ID) (*domain.Driver, error) {
	d, ok := st.drivers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrDriverNotFound, id)
	}
	return d.Clone(), nil
}

func (st *state) GetDriverByExternalID(_ context.Context, externalID string) (*domain.Driver, error) {
	for _, d := range st.drivers {
		if d.ExternalID == externalID {
			return d.Clone(), nil
		}
	}
	return nil, fmt.Errorf("%w: external id %s", domain.ErrDriverNotFound, externalID)
}

func (st *state) ListDrivers(_ context.Context, f store.DriverFilter) ([]*domain.Driver, error) {
	out := make([]*domain.Driver, 0, len(st.drivers))
	for _, d := range st.drivers {
		if f.OnDuty != nil && d.OnDuty != *f.OnDuty {
			continue
		}
		out = append(out, d.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (st *state) GetRoute(_ context.Context, id types.ID) (*domain.Route, error) {
	r, ok := st.routes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrRouteNotFound, id)
	}
	return r.Clone(), nil
}

func (st *state) ListRoutes(_ context.Context, f store.RouteFilter) ([]*domain.Route, error) {
	out := make([]*domain.Route, 0)
	for i := len(st.routeSeq) - 1; i >= 0; i-- {
		r := st.routes[st.routeSeq[i]]
		if f.DriverID != "" && r.DriverID != f.DriverID {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		out = append(out, r.Clone())
	}
	return out, nil
}

func (st *state) ListAudit(_ context.Context, f store.AuditFilter) ([]*domain.AuditEntry, error) {
	out := make([]*domain.AuditEntry, 0)
	for i := len(st.audit) - 1; i >= 0; i-- {
		e := st.audit[i]
		if f.ActorID != "" && e.ActorID != f.ActorID {
			continue
		}
		if f.TargetID != "" && e.TargetID != f.TargetID {
			continue
		}
		if len(f.Actions) > 0 && !containsAction(f.Actions, e.Action) {
			continue
		}
		out = append(out, cloneAudit(e))
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (st *state) GetSetting(_ context.Context, key string) (*domain.Setting, error) {
	s, ok := st.settings[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSettingNotFound, key)
	}
	cp := *s
	cp.Value = append([]byte(nil), s.Value...)
	return &cp, nil
}

func matchesTerm(o *domain.Order, term string) bool {
	return strings.Contains(strings.ToLower(string(o.ID)), term) ||
		strings.Contains(strings.ToLower(o.CustomerName), term) ||
		strings.Contains(strings.ToLower(o.CustomerPhone), term)
}

func containsStatus(list []domain.Status, s domain.Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsAction(list []domain.AuditAction, a domain.AuditAction) bool {
	for _, v := range list {
		if v == a {
			return true
		}
	}
	return false
}

func cloneAudit(e *domain.AuditEntry) *domain.AuditEntry {
	cp := *e
	if e.Metadata != nil {
		cp.Metadata = make(map[string]any, len(e.Metadata))
		for k, v := range e.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}
