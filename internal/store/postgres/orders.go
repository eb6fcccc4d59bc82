package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"fleetdesk/internal/domain"
	"fleetdesk/internal/store"
	"fleetdesk/internal/types"
)

const orderColumns = `
	id, customer_id, customer_name, customer_phone,
	payment_method, payment_status, status, total_amount::text,
	items, delivery_address, delivery_notes,
	assigned_driver_id, route_position,
	failed_reason, return_reason, cancellation_reason, cancelled_by,
	proof_of_delivery, verified_by, stock_restored,
	created_at, updated_at, verified_at, cancelled_at`

func (q *queries) GetOrder(ctx context.Context, id types.ID) (*domain.Order, error) {
	row := q.q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`+q.forUpdate(), string(id))
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id)
	}
	return o, err
}

func (q *queries) GetOrders(ctx context.Context, ids []types.ID) (map[types.ID]*domain.Order, error) {
	// Lock in id order so concurrent batches over the same orders cannot deadlock.
	rows, err := q.q.Query(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ANY($1) ORDER BY id`+q.forUpdate(), idStrings(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[types.ID]*domain.Order, len(ids))
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out[o.ID] = o
	}
	return out, rows.Err()
}

func (q *queries) ListOrders(ctx context.Context, f store.OrderFilter) ([]*domain.Order, error) {
	var w where
	if len(f.IDs) > 0 {
		w.add("id = ANY($%d)", idStrings(f.IDs))
	}
	if len(f.Statuses) > 0 {
		raw := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			raw[i] = string(s)
		}
		w.add("status = ANY($%d)", raw)
	}
	if f.PaymentStatus != "" {
		w.add("payment_status = $%d", string(f.PaymentStatus))
	}
	if f.PaymentMethod != "" {
		w.add("payment_method = $%d", string(f.PaymentMethod))
	}
	if f.DriverID != "" {
		w.add("assigned_driver_id = $%d", string(f.DriverID))
	}
	if f.CustomerID != "" {
		w.add("customer_id = $%d", string(f.CustomerID))
	}
	if f.Unassigned {
		w.addRaw("assigned_driver_id IS NULL")
	}
	if f.WithoutRoute {
		w.addRaw("route_position IS NULL")
	}
	if f.Term != "" {
		w.add("(id ILIKE '%%' || $%[1]d || '%%' OR customer_name ILIKE '%%' || $%[1]d || '%%' OR customer_phone ILIKE '%%' || $%[1]d || '%%')", f.Term)
	}
	order := " ORDER BY created_at DESC, id DESC"
	if f.OldestFirst {
		order = " ORDER BY created_at ASC, id ASC"
	}
	sql := `SELECT ` + orderColumns + ` FROM orders` + w.String() + order + w.limit(f.Limit)

	rows, err := q.q.Query(ctx, sql, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*domain.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (q *queries) InsertOrder(ctx context.Context, o *domain.Order) error {
	items, addr, err := marshalOrderDocs(o)
	if err != nil {
		return err
	}
	_, err = q.q.Exec(ctx, `
		INSERT INTO orders (
			id, customer_id, customer_name, customer_phone,
			payment_method, payment_status, status, total_amount,
			items, delivery_address, delivery_notes,
			assigned_driver_id, route_position,
			failed_reason, return_reason, cancellation_reason, cancelled_by,
			proof_of_delivery, verified_by, stock_restored,
			created_at, updated_at, verified_at, cancelled_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8::text::numeric,
			$9, $10, $11,
			$12, $13,
			$14, $15, $16, $17,
			$18, $19, $20,
			$21, $22, $23, $24
		)`,
		string(o.ID), string(o.CustomerID), o.CustomerName, o.CustomerPhone,
		string(o.PaymentMethod), string(o.PaymentStatus), string(o.Status), o.TotalAmount.String(),
		items, addr, o.DeliveryNotes,
		idPtr(o.AssignedDriverID), o.RoutePosition,
		o.FailedReason, o.ReturnReason, o.CancellationReason, o.CancelledBy,
		o.ProofOfDelivery, o.VerifiedBy, o.StockRestored,
		o.CreatedAt, o.UpdatedAt, o.VerifiedAt, o.CancelledAt,
	)
	return wrapWriteErr(err, "order "+string(o.ID))
}

func (q *queries) UpdateOrder(ctx context.Context, o *domain.Order) error {
	items, addr, err := marshalOrderDocs(o)
	if err != nil {
		return err
	}
	tag, err := q.q.Exec(ctx, `
		UPDATE orders SET
			customer_id = $2, customer_name = $3, customer_phone = $4,
			payment_method = $5, payment_status = $6, status = $7, total_amount = $8::text::numeric,
			items = $9, delivery_address = $10, delivery_notes = $11,
			assigned_driver_id = $12, route_position = $13,
			failed_reason = $14, return_reason = $15, cancellation_reason = $16, cancelled_by = $17,
			proof_of_delivery = $18, verified_by = $19, stock_restored = $20,
			updated_at = $21, verified_at = $22, cancelled_at = $23
		WHERE id = $1`,
		string(o.ID), string(o.CustomerID), o.CustomerName, o.CustomerPhone,
		string(o.PaymentMethod), string(o.PaymentStatus), string(o.Status), o.TotalAmount.String(),
		items, addr, o.DeliveryNotes,
		idPtr(o.AssignedDriverID), o.RoutePosition,
		o.FailedReason, o.ReturnReason, o.CancellationReason, o.CancelledBy,
		o.ProofOfDelivery, o.VerifiedBy, o.StockRestored,
		o.UpdatedAt, o.VerifiedAt, o.CancelledAt,
	)
	if err != nil {
		return wrapWriteErr(err, "order "+string(o.ID))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrOrderNotFound, o.ID)
	}
	return nil
}

func scanOrder(row scanner) (*domain.Order, error) {
	var (
		o                  domain.Order
		id, customerID     string
		method, payStatus  string
		status, total      string
		items, addr        []byte
		driverID           *string
		createdAt, updated time.Time
	)
	err := row.Scan(
		&id, &customerID, &o.CustomerName, &o.CustomerPhone,
		&method, &payStatus, &status, &total,
		&items, &addr, &o.DeliveryNotes,
		&driverID, &o.RoutePosition,
		&o.FailedReason, &o.ReturnReason, &o.CancellationReason, &o.CancelledBy,
		&o.ProofOfDelivery, &o.VerifiedBy, &o.StockRestored,
		&createdAt, &updated, &o.VerifiedAt, &o.CancelledAt,
	)
	if err != nil {
		return nil, err
	}
	o.ID = types.ID(id)
	o.CustomerID = types.ID(customerID)
	o.PaymentMethod = domain.PaymentMethod(method)
	o.PaymentStatus = domain.PaymentStatus(payStatus)
	o.Status = domain.Status(status)
	o.CreatedAt = createdAt
	o.UpdatedAt = updated
	if o.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("order %s total: %w", id, err)
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("order %s items: %w", id, err)
	}
	if err := json.Unmarshal(addr, &o.DeliveryAddress); err != nil {
		return nil, fmt.Errorf("order %s address: %w", id, err)
	}
	if driverID != nil {
		d := types.ID(*driverID)
		o.AssignedDriverID = &d
	}
	return &o, nil
}

func marshalOrderDocs(o *domain.Order) ([]byte, []byte, error) {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return nil, nil, fmt.Errorf("order %s items: %w", o.ID, err)
	}
	addr, err := json.Marshal(o.DeliveryAddress)
	if err != nil {
		return nil, nil, fmt.Errorf("order %s address: %w", o.ID, err)
	}
	return items, addr, nil
}

func idPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
