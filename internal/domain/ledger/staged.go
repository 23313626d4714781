package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// FeeSpec describes the fee leg of a staged transaction.
//
// TokenTreatment only matters in FeeToken mode: FeeSeparate adds the token
// fee's EUR estimate to the cost, anything else leaves the cost unchanged.
type FeeSpec struct {
	Mode           FeeMode             `json:"fee_mode"`
	EUR            decimal.NullDecimal `json:"fee_eur"`
	Percentage     decimal.NullDecimal `json:"fee_percentage"`
	Symbol         string              `json:"fee_symbol,omitempty"`
	Amount         decimal.NullDecimal `json:"fee_amount"`
	TokenTreatment FeeMode             `json:"token_treatment"`
}

// StagedTransaction is a single prospective composite operation entered by hand.
type StagedTransaction struct {
	Kind        TransactionKind     `json:"kind"`
	Symbol      string              `json:"symbol"`
	Amount      decimal.NullDecimal `json:"amount"`
	QuoteSymbol string              `json:"quote_symbol,omitempty"`
	QuoteAmount decimal.NullDecimal `json:"quote_amount"`
	EURAmount   decimal.NullDecimal `json:"eur_amount"`
	Fee         FeeSpec             `json:"fee"`
	ExecutedAt  time.Time           `json:"executed_at"`
}

// Leg is one atomic ledger operation ready to be committed.
type Leg struct {
	Kind     OperationKind       `json:"kind"`
	Symbol   string              `json:"symbol"`
	Amount   decimal.Decimal     `json:"amount"`
	PriceEUR decimal.NullDecimal `json:"price_eur"`
}

// Payload is the fully resolved commit request for one staged transaction.
type Payload struct {
	Kind          TransactionKind     `json:"kind"`
	ExecutedAt    time.Time           `json:"executed_at"`
	Legs          []Leg               `json:"legs"`
	EffectiveCost decimal.NullDecimal `json:"effective_cost"`
}

// NullOf wraps a decimal into a valid NullDecimal.
func NullOf(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}
