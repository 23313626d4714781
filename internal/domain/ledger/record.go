package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Asset is a searchable instrument.
type Asset struct {
	Symbol    string `json:"symbol" db:"symbol"`
	Name      string `json:"name" db:"name"`
	AssetType string `json:"asset_type" db:"asset_type"`
}

// Record is a committed composite transaction.
type Record struct {
	ID            uuid.UUID           `json:"id"`
	AccountID     uuid.UUID           `json:"account_id"`
	Kind          TransactionKind     `json:"kind"`
	ExecutedAt    time.Time           `json:"executed_at"`
	EffectiveCost decimal.NullDecimal `json:"effective_cost"`
	Legs          []Leg               `json:"legs"`
	CreatedAt     time.Time           `json:"created_at"`
}
