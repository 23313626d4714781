package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// RawRow is one line of an exchange export after locale normalization.
type RawRow struct {
	Line      int             `json:"line"`
	UserID    string          `json:"user_id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Account   string          `json:"account"`
	Operation string          `json:"operation"`
	Symbol    string          `json:"symbol"`
	Amount    decimal.Decimal `json:"amount"`
	Remark    string          `json:"remark,omitempty"`
}

// ClassifiedRow is a RawRow with its canonical kind and sign-normalized amount.
type ClassifiedRow struct {
	Raw    RawRow          `json:"raw"`
	Kind   OperationKind   `json:"kind"`
	Symbol string          `json:"symbol"`
	Amount decimal.Decimal `json:"amount"`
}

// Timestamp returns the row's source timestamp.
func (r ClassifiedRow) Timestamp() time.Time {
	return r.Raw.Timestamp
}

// IsInflow reports whether the row increases the user's balance.
func (r ClassifiedRow) IsInflow() bool {
	return r.Amount.IsPositive()
}
