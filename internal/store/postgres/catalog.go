package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"fleetdesk/internal/domain"
	"fleetdesk/internal/store"
	"fleetdesk/internal/types"
)

const productColumns = `id, sku, name, description, price::text, stock_level, category, image_url, created_at, updated_at`

func (q *queries) GetProduct(ctx context.Context, id types.ID) (*domain.Product, error) {
	row := q.q.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`+q.forUpdate(), string(id))
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
	}
	return p, err
}

func (q *queries) GetProductBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	row := q.q.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE sku = $1`+q.forUpdate(), sku)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: sku %s", domain.ErrProductNotFound, sku)
	}
	return p, err
}

func (q *queries) ListProducts(ctx context.Context, f store.ProductFilter) ([]*domain.Product, error) {
	var w where
	if f.MaxStock != nil {
		w.add("stock_level <= $%d", *f.MaxStock)
	}
	if f.Category != "" {
		w.add("category = $%d", f.Category)
	}
	sql := `SELECT ` + productColumns + ` FROM products` + w.String() + ` ORDER BY name, id` + w.limit(f.Limit)
	rows, err := q.q.Query(ctx, sql, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*domain.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (q *queries) InsertProduct(ctx context.Context, p *domain.Product) error {
	_, err := q.q.Exec(ctx, `
		INSERT INTO products (id, sku, name, description, price, stock_level, category, image_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::text::numeric, $6, $7, $8, $9, $10)`,
		string(p.ID), p.SKU, p.Name, p.Description, p.Price.String(), p.StockLevel, p.Category, p.ImageURL, p.CreatedAt, p.UpdatedAt,
	)
	return wrapWriteErr(err, "product "+p.SKU)
}

func (q *queries) UpdateProduct(ctx context.Context, p *domain.Product) error {
	tag, err := q.q.Exec(ctx, `
		UPDATE products SET
			name = $2, description = $3, price = $4::text::numeric, stock_level = $5,
			category = $6, image_url = $7, updated_at = $8
		WHERE id = $1`,
		string(p.ID), p.Name, p.Description, p.Price.String(), p.StockLevel, p.Category, p.ImageURL, p.UpdatedAt,
	)
	if err != nil {
		return wrapWriteErr(err, "product "+string(p.ID))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrProductNotFound, p.ID)
	}
	return nil
}

func scanProduct(row scanner) (*domain.Product, error) {
	var (
		p     domain.Product
		id    string
		price string
	)
	if err := row.Scan(&id, &p.SKU, &p.Name, &p.Description, &price, &p.StockLevel, &p.Category, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.ID = types.ID(id)
	var err error
	if p.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("product %s price: %w", id, err)
	}
	return &p, nil
}

const driverColumns = `id, external_id, name, phone, on_duty, cod_wallet::text,
	location_lat, location_lng, location_at, push_token, created_at, updated_at`

func (q *queries) GetDriver(ctx context.Context, id types.ID) (*domain.Driver, error) {
	row := q.q.QueryRow(ctx, `SELECT `+driverColumns+` FROM drivers WHERE id = $1`+q.forUpdate(), string(id))
	d, err := scanDriver(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrDriverNotFound, id)
	}
	return d, err
}

func (q *queries) GetDriverByExternalID(ctx context.Context, externalID string) (*domain.Driver, error) {
	row := q.q.QueryRow(ctx, `SELECT `+driverColumns+` FROM drivers WHERE external_id = $1`+q.forUpdate(), externalID)
	d, err := scanDriver(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: external id %s", domain.ErrDriverNotFound, externalID)
	}
	return d, err
}

func (q *queries) ListDrivers(ctx context.Context, f store.DriverFilter) ([]*domain.Driver, error) {
	var w where
	if f.OnDuty != nil {
		w.add("on_duty = $%d", *f.OnDuty)
	}
	rows, err := q.q.Query(ctx, `SELECT `+driverColumns+` FROM drivers`+w.String()+` ORDER BY name, id`, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*domain.Driver, 0)
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (q *queries) InsertDriver(ctx context.Context, d *domain.Driver) error {
	lat, lng, at := locationArgs(d.Location)
	_, err := q.q.Exec(ctx, `
		INSERT INTO drivers (
			id, external_id, name, phone, on_duty, cod_wallet,
			location_lat, location_lng, location_at, push_token, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6::text::numeric, $7, $8, $9, $10, $11, $12)`,
		string(d.ID), d.ExternalID, d.Name, d.Phone, d.OnDuty, d.CODWallet.String(),
		lat, lng, at, d.PushToken, d.CreatedAt, d.UpdatedAt,
	)
	return wrapWriteErr(err, "driver "+string(d.ID))
}

func (q *queries) UpdateDriver(ctx context.Context, d *domain.Driver) error {
	lat, lng, at := locationArgs(d.Location)
	tag, err := q.q.Exec(ctx, `
		UPDATE drivers SET
			external_id = $2, name = $3, phone = $4, on_duty = $5, cod_wallet = $6::text::numeric,
			location_lat = $7, location_lng = $8, location_at = $9, push_token = $10, updated_at = $11
		WHERE id = $1`,
		string(d.ID), d.ExternalID, d.Name, d.Phone, d.OnDuty, d.CODWallet.String(),
		lat, lng, at, d.PushToken, d.UpdatedAt,
	)
	if err != nil {
		return wrapWriteErr(err, "driver "+string(d.ID))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrDriverNotFound, d.ID)
	}
	return nil
}

func scanDriver(row scanner) (*domain.Driver, error) {
	var (
		d        domain.Driver
		id       string
		wallet   string
		lat, lng *float64
		at       *time.Time
	)
	err := row.Scan(&id, &d.ExternalID, &d.Name, &d.Phone, &d.OnDuty, &wallet,
		&lat, &lng, &at, &d.PushToken, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	d.ID = types.ID(id)
	if d.CODWallet, err = decimal.NewFromString(wallet); err != nil {
		return nil, fmt.Errorf("driver %s wallet: %w", id, err)
	}
	if lat != nil && lng != nil {
		d.Location = &domain.Location{Point: types.Point{Lat: *lat, Lng: *lng}}
		if at != nil {
			d.Location.RecordedAt = *at
		}
	}
	return &d, nil
}

func locationArgs(l *domain.Location) (*float64, *float64, *time.Time) {
	if l == nil {
		return nil, nil, nil
	}
	lat, lng, at := l.Lat, l.Lng, l.RecordedAt
	return &lat, &lng, &at
}
