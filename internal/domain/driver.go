package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"fleetdesk/internal/types"
)

type Location struct {
	types.Point
	RecordedAt time.Time `json:"recorded_at"`
}

type Driver struct {
	ID         types.ID        `json:"id"`
	ExternalID string          `json:"external_id"`
	Name       string          `json:"name"`
	Phone      string          `json:"phone"`
	OnDuty     bool            `json:"on_duty"`
	CODWallet  decimal.Decimal `json:"cod_wallet"`
	Location   *Location       `json:"location,omitempty"`
	PushToken  string          `json:"-"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func (d *Driver) Clone() *Driver {
	if d == nil {
		return nil
	}
	cp := *d
	cp.Location = clonePtr(d.Location)
	return &cp
}
