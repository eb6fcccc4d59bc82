// README: Order service implements the status machine and its ledger side effects.
package order

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"fleetdesk/internal/domain"
	"fleetdesk/internal/modules/audit"
	"fleetdesk/internal/modules/inventory"
	"fleetdesk/internal/modules/wallet"
	"fleetdesk/internal/store"
	"fleetdesk/internal/types"
)

type Service struct {
	store   store.Store
	history *audit.Service
	log     *slog.Logger
}

func NewService(s store.Store, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: s, history: audit.NewService(s), log: log}
}

// Create reserves stock for every line and inserts the order, all or nothing.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*domain.Order, error) {
	if err := domain.Validate(cmd); err != nil {
		return nil, err
	}
	if !cmd.DeliveryAddress.Coordinates.Valid() {
		return nil, fmt.Errorf("%w: delivery coordinates out of range", domain.ErrBadRequest)
	}

	id := cmd.OrderID
	if id == "" {
		id = types.NewID()
	}
	reqs := make([]inventory.Request, len(cmd.Items))
	for i, it := range cmd.Items {
		reqs[i] = inventory.Request{ProductID: it.ProductID, Quantity: it.Quantity}
	}

	var created *domain.Order
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		products, err := inventory.Reserve(ctx, tx, reqs)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		status, payment := domain.InitialStatus(cmd.PaymentMethod)
		o := &domain.Order{
			ID:              id,
			CustomerID:      cmd.CustomerID,
			CustomerName:    cmd.CustomerName,
			CustomerPhone:   cmd.CustomerPhone,
			PaymentMethod:   cmd.PaymentMethod,
			PaymentStatus:   payment,
			Status:          status,
			TotalAmount:     decimal.Zero,
			Items:           make([]domain.LineItem, 0, len(cmd.Items)),
			DeliveryAddress: cmd.DeliveryAddress,
			DeliveryNotes:   cmd.DeliveryNotes,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		for _, it := range cmd.Items {
			p := products[it.ProductID]
			subtotal := p.Price.Mul(decimal.NewFromInt(int64(it.Quantity))).Round(types.MoneyPlaces)
			o.Items = append(o.Items, domain.LineItem{
				ProductID:   p.ID,
				ProductName: p.Name,
				Quantity:    it.Quantity,
				UnitPrice:   p.Price,
				Subtotal:    subtotal,
			})
			o.TotalAmount = o.TotalAmount.Add(subtotal)
		}
		if err := tx.InsertOrder(ctx, o); err != nil {
			return err
		}
		created = o
		return audit.Record(ctx, tx, domain.ActionOrderCreated, cmd.Actor, o.ID, map[string]any{
			"totalAmount":   o.TotalAmount.StringFixed(types.MoneyPlaces),
			"itemCount":     len(o.Items),
			"paymentMethod": string(o.PaymentMethod),
			"status":        string(o.Status),
		})
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("order created", "order_id", created.ID, "total", created.TotalAmount.StringFixed(types.MoneyPlaces), "status", created.Status)
	return created, nil
}

// UpdateStatus moves an order along the transition table and applies the
// coupled ledger effects in the same transaction.
func (s *Service) UpdateStatus(ctx context.Context, cmd UpdateStatusCommand) (*domain.Order, error) {
	if err := domain.Validate(cmd); err != nil {
		return nil, err
	}
	if !cmd.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrBadRequest, cmd.Status)
	}

	var updated *domain.Order
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		o, err := tx.GetOrder(ctx, cmd.OrderID)
		if err != nil {
			return err
		}
		from, to := o.Status, cmd.Status
		if !domain.CanTransition(from, to) {
			return fmt.Errorf("%w: order %s from %s to %s", domain.ErrInvalidTransition, o.ID, from, to)
		}
		if to == domain.StatusProcessing && o.PaymentMethod == domain.PaymentBankTransfer && o.PaymentStatus != domain.PaymentVerified {
			return fmt.Errorf("%w: order %s payment is %s, bank transfer must be verified before processing",
				domain.ErrPreconditionFailed, o.ID, o.PaymentStatus)
		}

		now := time.Now().UTC()
		if to.RestoresStock() {
			if _, err := inventory.Restore(ctx, tx, o, cmd.Actor, "status changed to "+string(to)); err != nil {
				return err
			}
		}
		switch to {
		case domain.StatusCancelled:
			actor := actorOrSystem(cmd.Actor)
			o.CancelledBy = &actor
			o.CancelledAt = &now
		case domain.StatusDelivered:
			if o.PaymentMethod == domain.PaymentCOD {
				if o.AssignedDriverID == nil {
					return fmt.Errorf("%w: order %s", domain.ErrMissingDriverAssignment, o.ID)
				}
				if _, err := wallet.Credit(ctx, tx, *o.AssignedDriverID, o.TotalAmount); err != nil {
					return err
				}
			}
			if cmd.ProofOfDelivery != "" {
				proof := cmd.ProofOfDelivery
				o.ProofOfDelivery = &proof
			}
		}

		o.Status = to
		o.UpdatedAt = now
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return err
		}
		updated = o
		return audit.Record(ctx, tx, domain.ActionOrderStatusChanged, cmd.Actor, o.ID, map[string]any{
			"from": string(from),
			"to":   string(to),
		})
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("order status changed", "order_id", updated.ID, "status", updated.Status, "actor", cmd.Actor)
	return updated, nil
}

// Cancel is allowed only before dispatch.
func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) (*domain.Order, error) {
	if err := domain.Validate(cmd); err != nil {
		return nil, err
	}
	var updated *domain.Order
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		o, err := tx.GetOrder(ctx, cmd.OrderID)
		if err != nil {
			return err
		}
		if !cancellable[o.Status] {
			return fmt.Errorf("%w: order %s is %s", domain.ErrIllegalCancellation, o.ID, o.Status)
		}
		if _, err := inventory.Restore(ctx, tx, o, cmd.Actor, "order cancelled"); err != nil {
			return err
		}

		now := time.Now().UTC()
		from := o.Status
		actor := actorOrSystem(cmd.Actor)
		o.Status = domain.StatusCancelled
		o.CancellationReason = optional(cmd.Reason)
		o.CancelledBy = &actor
		o.CancelledAt = &now
		o.UpdatedAt = now
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return err
		}
		updated = o
		return audit.Record(ctx, tx, domain.ActionOrderCancelled, cmd.Actor, o.ID, map[string]any{
			"reason":         cmd.Reason,
			"previousStatus": string(from),
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// MarkFailed records a failed delivery from any status.
func (s *Service) MarkFailed(ctx context.Context, cmd ReasonCommand) (*domain.Order, error) {
	return s.markTerminal(ctx, cmd, domain.StatusFailed)
}

// MarkReturned records a returned delivery from any status.
func (s *Service) MarkReturned(ctx context.Context, cmd ReasonCommand) (*domain.Order, error) {
	return s.markTerminal(ctx, cmd, domain.StatusReturned)
}

func (s *Service) markTerminal(ctx context.Context, cmd ReasonCommand, to domain.Status) (*domain.Order, error) {
	if err := domain.Validate(cmd); err != nil {
		return nil, err
	}
	var updated *domain.Order
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		o, err := tx.GetOrder(ctx, cmd.OrderID)
		if err != nil {
			return err
		}
		if _, err := inventory.Restore(ctx, tx, o, cmd.Actor, cmd.Reason); err != nil {
			return err
		}

		from := o.Status
		reason := cmd.Reason
		if to == domain.StatusFailed {
			o.FailedReason = &reason
		} else {
			o.ReturnReason = &reason
		}
		o.Status = to
		o.UpdatedAt = time.Now().UTC()
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return err
		}
		updated = o
		return audit.Record(ctx, tx, domain.ActionOrderStatusChanged, cmd.Actor, o.ID, map[string]any{
			"from":   string(from),
			"to":     string(to),
			"reason": cmd.Reason,
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ApprovePayment verifies a pending bank transfer. An order still waiting for
// verification moves to PROCESSING.
func (s *Service) ApprovePayment(ctx context.Context, cmd ApprovePaymentCommand) (*domain.Order, error) {
	if err := domain.Validate(cmd); err != nil {
		return nil, err
	}
	var updated *domain.Order
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		o, err := tx.GetOrder(ctx, cmd.OrderID)
		if err != nil {
			return err
		}
		if err := checkPendingTransfer(o); err != nil {
			return err
		}

		now := time.Now().UTC()
		actor := actorOrSystem(cmd.Actor)
		o.PaymentStatus = domain.PaymentVerified
		o.VerifiedBy = &actor
		o.VerifiedAt = &now
		if o.Status == domain.StatusPendingVerification {
			o.Status = domain.StatusProcessing
		}
		o.UpdatedAt = now
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return err
		}
		updated = o
		return audit.Record(ctx, tx, domain.ActionPaymentApproved, cmd.Actor, o.ID, map[string]any{
			"amount": o.TotalAmount.StringFixed(types.MoneyPlaces),
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// RejectPayment marks a pending bank transfer rejected, gives the stock back
// and cancels the order.
func (s *Service) RejectPayment(ctx context.Context, cmd RejectPaymentCommand) (*domain.Order, error) {
	if err := domain.Validate(cmd); err != nil {
		return nil, err
	}
	var updated *domain.Order
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		o, err := tx.GetOrder(ctx, cmd.OrderID)
		if err != nil {
			return err
		}
		if err := checkPendingTransfer(o); err != nil {
			return err
		}
		if _, err := inventory.Restore(ctx, tx, o, cmd.Actor, "payment rejected"); err != nil {
			return err
		}

		now := time.Now().UTC()
		actor := actorOrSystem(cmd.Actor)
		reason := cmd.Reason
		if reason == "" {
			reason = "payment rejected"
		}
		o.PaymentStatus = domain.PaymentRejected
		o.VerifiedBy = &actor
		o.VerifiedAt = &now
		o.Status = domain.StatusCancelled
		o.CancellationReason = &reason
		o.CancelledBy = &actor
		o.CancelledAt = &now
		o.UpdatedAt = now
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return err
		}
		updated = o
		return audit.Record(ctx, tx, domain.ActionPaymentRejected, cmd.Actor, o.ID, map[string]any{
			"reason": cmd.Reason,
			"amount": o.TotalAmount.StringFixed(types.MoneyPlaces),
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*domain.Order, error) {
	return s.store.GetOrder(ctx, id)
}

// List returns orders newest first.
func (s *Service) List(ctx context.Context, f ListFilter) ([]*domain.Order, error) {
	sf := store.OrderFilter{
		PaymentStatus: f.PaymentStatus,
		DriverID:      f.DriverID,
		CustomerID:    f.CustomerID,
		Limit:         f.Limit,
	}
	if f.Status != "" {
		if !f.Status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", domain.ErrBadRequest, f.Status)
		}
		sf.Statuses = []domain.Status{f.Status}
	}
	return s.store.ListOrders(ctx, sf)
}

// Search matches order id, customer name or phone.
func (s *Service) Search(ctx context.Context, term string) ([]*domain.Order, error) {
	if term == "" {
		return []*domain.Order{}, nil
	}
	return s.store.ListOrders(ctx, store.OrderFilter{Term: term})
}

// PendingVerifications lists bank transfers awaiting an admin decision.
func (s *Service) PendingVerifications(ctx context.Context) ([]*domain.Order, error) {
	return s.store.ListOrders(ctx, store.OrderFilter{
		PaymentMethod: domain.PaymentBankTransfer,
		PaymentStatus: domain.PaymentPending,
		Statuses:      []domain.Status{domain.StatusPendingVerification},
	})
}

// Unassigned lists orders ready for dispatch, oldest first.
func (s *Service) Unassigned(ctx context.Context) ([]*domain.Order, error) {
	return s.store.ListOrders(ctx, store.OrderFilter{
		Statuses:    []domain.Status{domain.StatusPendingDispatch, domain.StatusProcessing},
		Unassigned:  true,
		OldestFirst: true,
	})
}

// VerificationHistory lists payment approvals and rejections, newest first.
func (s *Service) VerificationHistory(ctx context.Context, limit int) ([]*domain.AuditEntry, error) {
	if limit <= 0 {
		limit = defaultVerificationHistoryLimit
	}
	return s.history.History(ctx, "", limit, domain.ActionPaymentApproved, domain.ActionPaymentRejected)
}

func checkPendingTransfer(o *domain.Order) error {
	if o.PaymentMethod != domain.PaymentBankTransfer {
		return fmt.Errorf("%w: order %s is paid by %s", domain.ErrPaymentNotPending, o.ID, o.PaymentMethod)
	}
	if o.PaymentStatus != domain.PaymentPending {
		return fmt.Errorf("%w: order %s payment is %s", domain.ErrPaymentNotPending, o.ID, o.PaymentStatus)
	}
	if o.Status.Terminal() {
		return fmt.Errorf("%w: order %s is %s", domain.ErrPaymentNotPending, o.ID, o.Status)
	}
	return nil
}

func actorOrSystem(actor string) string {
	if actor == "" {
		return domain.SystemActor
	}
	return actor
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
