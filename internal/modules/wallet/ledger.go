package wallet

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"fleetdesk/internal/store"
	"fleetdesk/internal/types"
)

// Credit adds amount to a driver's COD wallet inside tx and returns the new balance.
func Credit(ctx context.Context, tx store.Tx, driverID types.ID, amount decimal.Decimal) (decimal.Decimal, error) {
	d, err := tx.GetDriver(ctx, driverID)
	if err != nil {
		return decimal.Zero, err
	}
	d.CODWallet = d.CODWallet.Add(amount)
	d.UpdatedAt = time.Now().UTC()
	if err := tx.UpdateDriver(ctx, d); err != nil {
		return decimal.Zero, err
	}
	return d.CODWallet, nil
}
