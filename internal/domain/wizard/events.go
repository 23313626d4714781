package wizard

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/wealth-tracker/internal/domain/fees"
	"github.com/FACorreiaa/wealth-tracker/internal/domain/import/normalizer"
	"github.com/FACorreiaa/wealth-tracker/internal/domain/ledger"
)

// Event is one user action on the wizard.
type Event interface {
	Name() string
}

type (
	SetKind struct {
		Kind ledger.TransactionKind
	}
	// SetReceived sets the acquired (or moved) asset and quantity.
	SetReceived struct {
		Symbol string
		Amount string
	}
	// SetSpent sets the quote leg of a purchase.
	SetSpent struct {
		Symbol string
		Amount string
	}
	// SetOrigin sets the EUR value anchoring the transaction's cost.
	SetOrigin struct {
		EURAmount string
	}
	SetFeeMode struct {
		Mode fees.Mode
	}
	// SetFee edits fee fields. Nil fields are left alone, empty strings clear.
	SetFee struct {
		EUR            *string
		Percentage     *string
		Symbol         *string
		Amount         *string
		TokenTreatment *fees.Mode
	}
	SetExecutedAt struct {
		At time.Time
	}
	Next    struct{}
	Back    struct{}
	Confirm struct{}
	Cancel  struct{}
)

func (SetKind) Name() string       { return "SetKind" }
func (SetReceived) Name() string   { return "SetReceived" }
func (SetSpent) Name() string      { return "SetSpent" }
func (SetOrigin) Name() string     { return "SetOrigin" }
func (SetFeeMode) Name() string    { return "SetFeeMode" }
func (SetFee) Name() string        { return "SetFee" }
func (SetExecutedAt) Name() string { return "SetExecutedAt" }
func (Next) Name() string          { return "Next" }
func (Back) Name() string          { return "Back" }
func (Confirm) Name() string       { return "Confirm" }
func (Cancel) Name() string        { return "Cancel" }

func (e SetFee) apply(spec fees.Spec) (fees.Spec, error) {
	var errs fees.FieldErrors
	unused := func(field string, set bool) bool {
		if set && !fees.Uses(spec.Mode, field) {
			errs = append(errs, fees.FieldError{Field: field, Message: fmt.Sprintf("not used with %s fees", spec.Mode)})
			return true
		}
		return false
	}
	set := func(field string, raw *string, dst *decimal.NullDecimal) {
		if raw == nil || unused(field, strings.TrimSpace(*raw) != "") {
			return
		}
		v, err := parseDecimal(field, *raw)
		if err != nil {
			errs = append(errs, err...)
			return
		}
		*dst = v
	}
	set("fee_eur", e.EUR, &spec.EUR)
	set("fee_percentage", e.Percentage, &spec.Percentage)
	set("fee_amount", e.Amount, &spec.Amount)
	if e.Symbol != nil && !unused("fee_symbol", strings.TrimSpace(*e.Symbol) != "") {
		spec.Symbol = ledger.NormalizeSymbol(*e.Symbol)
	}
	if e.TokenTreatment != nil && !unused("token_treatment", true) {
		if *e.TokenTreatment != fees.ModeIncluded && *e.TokenTreatment != fees.ModeSeparate {
			errs = append(errs, fees.FieldError{Field: "token_treatment", Message: "choose included or separate"})
		} else {
			spec.TokenTreatment = *e.TokenTreatment
		}
	}
	if len(errs) > 0 {
		return spec, errs
	}
	return spec, nil
}

// parseDecimal reads a user-typed number in either locale. Empty input
// clears the value.
func parseDecimal(field, raw string) (decimal.NullDecimal, fees.FieldErrors) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.NullDecimal{}, nil
	}
	v, err := normalizer.ParseLocaleAmount(raw)
	if err != nil {
		return decimal.NullDecimal{}, fees.FieldErrors{{Field: field, Message: "enter a valid number"}}
	}
	return ledger.NullOf(v), nil
}

func parseQuantity(field, raw string) (decimal.NullDecimal, error) {
	v, errs := parseDecimal(field, raw)
	if errs != nil {
		return v, errs
	}
	if v.Valid && v.Decimal.IsNegative() {
		return decimal.NullDecimal{}, fees.FieldErrors{{Field: field, Message: "must be zero or positive"}}
	}
	return v, nil
}

// Envelope is the wire form of an event, tagged by Type.
type Envelope struct {
	Type           string     `json:"type"`
	Kind           string     `json:"kind,omitempty"`
	Symbol         string     `json:"symbol,omitempty"`
	Amount         string     `json:"amount,omitempty"`
	EURAmount      string     `json:"eur_amount,omitempty"`
	FeeMode        string     `json:"fee_mode,omitempty"`
	FeeEUR         *string    `json:"fee_eur,omitempty"`
	FeePercentage  *string    `json:"fee_percentage,omitempty"`
	FeeSymbol      *string    `json:"fee_symbol,omitempty"`
	FeeAmount      *string    `json:"fee_amount,omitempty"`
	TokenTreatment *string    `json:"token_treatment,omitempty"`
	ExecutedAt     *time.Time `json:"executed_at,omitempty"`
}

// Event decodes the envelope into its typed event.
func (e Envelope) Event() (Event, error) {
	switch strings.ToLower(strings.TrimSpace(e.Type)) {
	case "set_kind":
		kind, err := ledger.ParseTransactionKind(e.Kind)
		if err != nil {
			return nil, err
		}
		return SetKind{Kind: kind}, nil
	case "set_received":
		return SetReceived{Symbol: e.Symbol, Amount: e.Amount}, nil
	case "set_spent":
		return SetSpent{Symbol: e.Symbol, Amount: e.Amount}, nil
	case "set_origin":
		return SetOrigin{EURAmount: e.EURAmount}, nil
	case "set_fee_mode":
		mode, err := ledger.ParseFeeMode(e.FeeMode)
		if err != nil {
			return nil, err
		}
		return SetFeeMode{Mode: mode}, nil
	case "set_fee":
		ev := SetFee{EUR: e.FeeEUR, Percentage: e.FeePercentage, Symbol: e.FeeSymbol, Amount: e.FeeAmount}
		if e.TokenTreatment != nil {
			mode, err := ledger.ParseFeeMode(*e.TokenTreatment)
			if err != nil {
				return nil, err
			}
			ev.TokenTreatment = &mode
		}
		return ev, nil
	case "set_executed_at":
		if e.ExecutedAt == nil {
			return nil, fmt.Errorf("set_executed_at needs executed_at")
		}
		return SetExecutedAt{At: *e.ExecutedAt}, nil
	case "next":
		return Next{}, nil
	case "back":
		return Back{}, nil
	case "confirm":
		return Confirm{}, nil
	case "cancel":
		return Cancel{}, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", e.Type)
	}
}
