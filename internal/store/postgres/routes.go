package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"fleetdesk/internal/domain"
	"fleetdesk/internal/store"
	"fleetdesk/internal/types"
)

const routeColumns = `id, driver_id, order_ids, status, created_at, started_at, completed_at`

func (q *queries) GetRoute(ctx context.Context, id types.ID) (*domain.Route, error) {
	row := q.q.QueryRow(ctx, `SELECT `+routeColumns+` FROM routes WHERE id = $1`+q.forUpdate(), string(id))
	r, err := scanRoute(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrRouteNotFound, id)
	}
	return r, err
}

func (q *queries) ListRoutes(ctx context.Context, f store.RouteFilter) ([]*domain.Route, error) {
	var w where
	if f.DriverID != "" {
		w.add("driver_id = $%d", string(f.DriverID))
	}
	if f.Status != "" {
		w.add("status = $%d", string(f.Status))
	}
	rows, err := q.q.Query(ctx, `SELECT `+routeColumns+` FROM routes`+w.String()+` ORDER BY created_at DESC, id DESC`, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*domain.Route, 0)
	for rows.Next() {
		r, err := scanRoute(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (q *queries) InsertRoute(ctx context.Context, r *domain.Route) error {
	_, err := q.q.Exec(ctx, `
		INSERT INTO routes (id, driver_id, order_ids, status, created_at, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(r.ID), string(r.DriverID), idStrings(r.OrderIDs), string(r.Status), r.CreatedAt, r.StartedAt, r.CompletedAt,
	)
	return wrapWriteErr(err, "route "+string(r.ID))
}

func (q *queries) UpdateRoute(ctx context.Context, r *domain.Route) error {
	tag, err := q.q.Exec(ctx, `
		UPDATE routes SET driver_id = $2, order_ids = $3, status = $4, started_at = $5, completed_at = $6
		WHERE id = $1`,
		string(r.ID), string(r.DriverID), idStrings(r.OrderIDs), string(r.Status), r.StartedAt, r.CompletedAt,
	)
	if err != nil {
		return wrapWriteErr(err, "route "+string(r.ID))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrRouteNotFound, r.ID)
	}
	return nil
}

func scanRoute(row scanner) (*domain.Route, error) {
	var (
		r        domain.Route
		id       string
		driverID string
		orderIDs []string
		status   string
	)
	if err := row.Scan(&id, &driverID, &orderIDs, &status, &r.CreatedAt, &r.StartedAt, &r.CompletedAt); err != nil {
		return nil, err
	}
	r.ID = types.ID(id)
	r.DriverID = types.ID(driverID)
	r.OrderIDs = types.IDs(orderIDs)
	r.Status = domain.RouteStatus(status)
	return &r, nil
}

func (q *queries) AppendAudit(ctx context.Context, e *domain.AuditEntry) error {
	meta := e.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("audit %s metadata: %w", e.Action, err)
	}
	_, err = q.q.Exec(ctx, `
		INSERT INTO audit_log (id, action, actor_id, target_id, metadata, ts)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		string(e.ID), string(e.Action), e.ActorID, string(e.TargetID), raw, e.Timestamp,
	)
	return wrapWriteErr(err, "audit "+string(e.ID))
}

func (q *queries) ListAudit(ctx context.Context, f store.AuditFilter) ([]*domain.AuditEntry, error) {
	var w where
	if f.ActorID != "" {
		w.add("actor_id = $%d", f.ActorID)
	}
	if f.TargetID != "" {
		w.add("target_id = $%d", string(f.TargetID))
	}
	if len(f.Actions) > 0 {
		raw := make([]string, len(f.Actions))
		for i, a := range f.Actions {
			raw[i] = string(a)
		}
		w.add("action = ANY($%d)", raw)
	}
	sql := `SELECT id, action, actor_id, target_id, metadata, ts FROM audit_log` + w.String() + ` ORDER BY seq DESC` + w.limit(f.Limit)
	rows, err := q.q.Query(ctx, sql, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*domain.AuditEntry, 0)
	for rows.Next() {
		var (
			e                    domain.AuditEntry
			id, action, targetID string
			meta                 []byte
		)
		if err := rows.Scan(&id, &action, &e.ActorID, &targetID, &meta, &e.Timestamp); err != nil {
			return nil, err
		}
		e.ID = types.ID(id)
		e.Action = domain.AuditAction(action)
		e.TargetID = types.ID(targetID)
		if err := json.Unmarshal(meta, &e.Metadata); err != nil {
			return nil, fmt.Errorf("audit %s metadata: %w", id, err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (q *queries) GetSetting(ctx context.Context, key string) (*domain.Setting, error) {
	var s domain.Setting
	var value []byte
	err := q.q.QueryRow(ctx, `SELECT key, value, updated_at, updated_by FROM settings WHERE key = $1`+q.forUpdate(), key).
		Scan(&s.Key, &value, &s.UpdatedAt, &s.UpdatedBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrSettingNotFound, key)
	}
	if err != nil {
		return nil, err
	}
	s.Value = value
	return &s, nil
}

func (q *queries) PutSetting(ctx context.Context, s *domain.Setting) error {
	_, err := q.q.Exec(ctx, `
		INSERT INTO settings (key, value, updated_at, updated_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at, updated_by = EXCLUDED.updated_by`,
		s.Key, []byte(s.Value), s.UpdatedAt, s.UpdatedBy,
	)
	return wrapWriteErr(err, "setting "+s.Key)
}

func idStrings(ids []types.ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
