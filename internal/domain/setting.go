package domain

import (
	"encoding/json"
	"time"
)

const SettingWarehouseLocation = "warehouse_location"

type Setting struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	UpdatedAt time.Time       `json:"updated_at"`
	UpdatedBy string          `json:"updated_by,omitempty"`
}
