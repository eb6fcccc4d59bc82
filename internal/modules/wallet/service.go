// README: Driver COD wallet ledger. Credits come from delivered COD orders,
// debits from admin settlements.
package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"fleetdesk/internal/domain"
	"fleetdesk/internal/modules/audit"
	"fleetdesk/internal/store"
	"fleetdesk/internal/types"
)

type Service struct {
	store   store.Store
	history *audit.Service
}

func NewService(s store.Store) *Service {
	return &Service{store: s, history: audit.NewService(s)}
}

type SettleCommand struct {
	DriverID types.ID `json:"driver_id" validate:"required"`
	// Amount nil settles the full balance.
	Amount *decimal.Decimal `json:"amount"`
	Actor  string           `json:"-"`
}

type Settlement struct {
	DriverID        types.ID        `json:"driver_id"`
	Amount          decimal.Decimal `json:"amount"`
	PreviousBalance decimal.Decimal `json:"previous_balance"`
	NewBalance      decimal.Decimal `json:"new_balance"`
}

// Settle takes cash off a driver's wallet. Balance read and write share one
// transaction with the driver row locked.
func (s *Service) Settle(ctx context.Context, cmd SettleCommand) (*Settlement, error) {
	if err := domain.Validate(cmd); err != nil {
		return nil, err
	}
	if cmd.Amount != nil {
		if err := domain.PositiveAmount("amount", *cmd.Amount); err != nil {
			return nil, err
		}
	}

	var out Settlement
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		d, err := tx.GetDriver(ctx, cmd.DriverID)
		if err != nil {
			return err
		}
		amount := d.CODWallet
		if cmd.Amount != nil {
			amount = *cmd.Amount
		}
		if amount.GreaterThan(d.CODWallet) {
			return fmt.Errorf("%w: driver %s balance %s, requested %s",
				domain.ErrSettlementExceedsBalance, d.ID, d.CODWallet.StringFixed(types.MoneyPlaces), amount.StringFixed(types.MoneyPlaces))
		}
		out = Settlement{
			DriverID:        d.ID,
			Amount:          amount,
			PreviousBalance: d.CODWallet,
			NewBalance:      d.CODWallet.Sub(amount),
		}
		d.CODWallet = out.NewBalance
		d.UpdatedAt = time.Now().UTC()
		if err := tx.UpdateDriver(ctx, d); err != nil {
			return err
		}
		return audit.Record(ctx, tx, domain.ActionDriverSettled, cmd.Actor, d.ID, map[string]any{
			"amount":          amount.StringFixed(types.MoneyPlaces),
			"previousBalance": out.PreviousBalance.StringFixed(types.MoneyPlaces),
			"newBalance":      out.NewBalance.StringFixed(types.MoneyPlaces),
		})
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

type Wallet struct {
	DriverID      types.ID        `json:"driver_id"`
	Name          string          `json:"name"`
	Phone         string          `json:"phone"`
	OnDuty        bool            `json:"on_duty"`
	Balance       decimal.Decimal `json:"balance"`
	LastSettledAt *time.Time      `json:"last_settled_at,omitempty"`
}

// Wallets lists every driver's balance with the time of the last settlement.
func (s *Service) Wallets(ctx context.Context) ([]Wallet, error) {
	drivers, err := s.store.ListDrivers(ctx, store.DriverFilter{})
	if err != nil {
		return nil, err
	}
	settlements, err := s.history.History(ctx, "", 0, domain.ActionDriverSettled)
	if err != nil {
		return nil, err
	}
	last := make(map[types.ID]time.Time, len(drivers))
	for _, e := range settlements {
		if _, ok := last[e.TargetID]; !ok {
			last[e.TargetID] = e.Timestamp
		}
	}

	out := make([]Wallet, 0, len(drivers))
	for _, d := range drivers {
		w := Wallet{DriverID: d.ID, Name: d.Name, Phone: d.Phone, OnDuty: d.OnDuty, Balance: d.CODWallet}
		if ts, ok := last[d.ID]; ok {
			w.LastSettledAt = &ts
		}
		out = append(out, w)
	}
	return out, nil
}

func (s *Service) SettlementHistory(ctx context.Context, driverID types.ID, limit int) ([]*domain.AuditEntry, error) {
	return s.history.History(ctx, driverID, limit, domain.ActionDriverSettled)
}
