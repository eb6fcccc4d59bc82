// README: Audit log. Entries are written inside the caller's transaction and
// are never updated or deleted.
package audit

import (
	"context"
	"time"

	"fleetdesk/internal/domain"
	"fleetdesk/internal/store"
	"fleetdesk/internal/types"
)

const DefaultRecentLimit = 10

// Record appends one entry inside tx. An empty actor is recorded as the system.
func Record(ctx context.Context, tx store.Tx, action domain.AuditAction, actor string, target types.ID, meta map[string]any) error {
	if actor == "" {
		actor = domain.SystemActor
	}
	return tx.AppendAudit(ctx, &domain.AuditEntry{
		ID:        types.NewID(),
		Action:    action,
		ActorID:   actor,
		TargetID:  target,
		Metadata:  meta,
		Timestamp: time.Now().UTC(),
	})
}

type Service struct {
	store store.Reader
}

func NewService(s store.Reader) *Service {
	return &Service{store: s}
}

type Filter struct {
	ActorID  string
	TargetID types.ID
	Action   domain.AuditAction
	Limit    int
}

func (s *Service) List(ctx context.Context, f Filter) ([]*domain.AuditEntry, error) {
	sf := store.AuditFilter{ActorID: f.ActorID, TargetID: f.TargetID, Limit: f.Limit}
	if f.Action != "" {
		sf.Actions = []domain.AuditAction{f.Action}
	}
	return s.store.ListAudit(ctx, sf)
}

func (s *Service) Recent(ctx context.Context, limit int) ([]*domain.AuditEntry, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	return s.store.ListAudit(ctx, store.AuditFilter{Limit: limit})
}

// History returns entries for the given actions, optionally narrowed to one
// target. Ledger history views are built on it.
func (s *Service) History(ctx context.Context, target types.ID, limit int, actions ...domain.AuditAction) ([]*domain.AuditEntry, error) {
	return s.store.ListAudit(ctx, store.AuditFilter{TargetID: target, Actions: actions, Limit: limit})
}
