// README: Persistence contract shared by the services. Every mutating operation
// runs inside one Tx; reads outside a Tx see committed state only.
package store

import (
	"context"

	"fleetdesk/internal/domain"
	"fleetdesk/internal/types"
)

// Reader is the query side. Get* methods return a domain NotFound error when the
// row is missing; inside a Tx the postgres implementation locks what it reads.
type Reader interface {
	GetOrder(ctx context.Context, id types.ID) (*domain.Order, error)
	// GetOrders returns the orders that exist, keyed by id. Missing ids are absent.
	GetOrders(ctx context.Context, ids []types.ID) (map[types.ID]*domain.Order, error)
	ListOrders(ctx context.Context, f OrderFilter) ([]*domain.Order, error)

	GetProduct(ctx context.Context, id types.ID) (*domain.Product, error)
	GetProductBySKU(ctx context.Context, sku string) (*domain.Product, error)
	ListProducts(ctx context.Context, f ProductFilter) ([]*domain.Product, error)

	GetDriver(ctx context.Context, id types.ID) (*domain.Driver, error)
	GetDriverByExternalID(ctx context.Context, externalID string) (*domain.Driver, error)
	ListDrivers(ctx context.Context, f DriverFilter) ([]*domain.Driver, error)

	GetRoute(ctx context.Context, id types.ID) (*domain.Route, error)
	ListRoutes(ctx context.Context, f RouteFilter) ([]*domain.Route, error)

	ListAudit(ctx context.Context, f AuditFilter) ([]*domain.AuditEntry, error)

	GetSetting(ctx context.Context, key string) (*domain.Setting, error)
}

// Tx is one atomic unit. Insert* return domain.ErrDuplicate on key collisions.
type Tx interface {
	Reader

	InsertOrder(ctx context.Context, o *domain.Order) error
	UpdateOrder(ctx context.Context, o *domain.Order) error

	InsertProduct(ctx context.Context, p *domain.Product) error
	UpdateProduct(ctx context.Context, p *domain.Product) error

	InsertDriver(ctx context.Context, d *domain.Driver) error
	UpdateDriver(ctx context.Context, d *domain.Driver) error

	InsertRoute(ctx context.Context, r *domain.Route) error
	UpdateRoute(ctx context.Context, r *domain.Route) error

	AppendAudit(ctx context.Context, e *domain.AuditEntry) error

	PutSetting(ctx context.Context, s *domain.Setting) error
}

type Store interface {
	Reader
	// InTx runs fn atomically. Any error returned by fn rolls back every write.
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

type OrderFilter struct {
	IDs           []types.ID
	Statuses      []domain.Status
	PaymentStatus domain.PaymentStatus
	PaymentMethod domain.PaymentMethod
	DriverID      types.ID
	CustomerID    types.ID
	// Unassigned keeps orders with no driver.
	Unassigned bool
	// WithoutRoute keeps orders that have no route position yet.
	WithoutRoute bool
	// Term matches id, customer name or phone, case-insensitively.
	Term        string
	OldestFirst bool
	Limit       int
}

type ProductFilter struct {
	// MaxStock keeps products with stock_level <= *MaxStock.
	MaxStock *int
	Category string
	Limit    int
}

type DriverFilter struct {
	OnDuty *bool
}

type RouteFilter struct {
	DriverID types.ID
	Status   domain.RouteStatus
}

// AuditFilter results are always newest first.
type AuditFilter struct {
	ActorID  string
	TargetID types.ID
	Actions  []domain.AuditAction
	Limit    int
}
