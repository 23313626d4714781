// Package fees resolves how a transaction fee enters the cost basis.
package fees

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/wealth-tracker/internal/domain/ledger"
)

type (
	Mode = ledger.FeeMode
	Spec = ledger.FeeSpec
)

const (
	ModeNone     = ledger.FeeNone
	ModeIncluded = ledger.FeeIncluded
	ModeSeparate = ledger.FeeSeparate
	ModeToken    = ledger.FeeToken
)

var hundred = decimal.NewFromInt(100)

// FieldError is a user-facing message attached to one input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FieldErrors collects every validation failure of a form.
type FieldErrors []FieldError

func (e FieldErrors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Principal is what the fee is charged on.
type Principal struct {
	EUR    decimal.Decimal // EUR value actually spent
	Symbol string          // Asset the principal was paid in
}

// Resolution is the outcome of applying a fee spec to a principal.
type Resolution struct {
	FeeEUR        decimal.Decimal
	EffectiveCost decimal.Decimal
	Legs          []ledger.Leg
}

// SwitchMode returns spec moved to mode, with the fields that mean nothing
// in the new mode cleared.
func SwitchMode(spec Spec, mode Mode) Spec {
	switch mode {
	case ModeIncluded:
		return Spec{
			Mode:   ModeIncluded,
			EUR:    spec.EUR,
			Symbol: spec.Symbol,
			Amount: spec.Amount,
		}
	case ModeSeparate:
		next := Spec{Mode: ModeSeparate, EUR: spec.EUR}
		if spec.Mode == ModeSeparate {
			next.Percentage = spec.Percentage
		}
		return next
	case ModeToken:
		treatment := spec.TokenTreatment
		if treatment != ModeIncluded && treatment != ModeSeparate {
			treatment = ModeIncluded
		}
		return Spec{
			Mode:           ModeToken,
			EUR:            spec.EUR,
			Symbol:         spec.Symbol,
			Amount:         spec.Amount,
			TokenTreatment: treatment,
		}
	default:
		return Spec{Mode: ModeNone}
	}
}

// modeFields lists the fee fields each mode reads.
var modeFields = map[Mode][]string{
	ModeNone:     nil,
	ModeIncluded: {"fee_eur", "fee_symbol", "fee_amount"},
	ModeSeparate: {"fee_eur", "fee_percentage"},
	ModeToken:    {"fee_eur", "fee_symbol", "fee_amount", "token_treatment"},
}

// Uses reports whether mode reads field.
func Uses(mode Mode, field string) bool {
	for _, f := range modeFields[mode] {
		if f == field {
			return true
		}
	}
	return false
}

// unusedFields reports the fields set on spec that its mode ignores.
func unusedFields(spec Spec) FieldErrors {
	var errs FieldErrors
	check := func(field string, set bool) {
		if set && !Uses(spec.Mode, field) {
			errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf("not used with %s fees", spec.Mode)})
		}
	}
	check("fee_percentage", spec.Percentage.Valid)
	check("fee_symbol", strings.TrimSpace(spec.Symbol) != "")
	check("fee_amount", spec.Amount.Valid)
	check("token_treatment", spec.TokenTreatment != ModeNone)
	return errs
}

// EffectiveMode is the mode that decides the cost-basis formula. A token fee
// follows its treatment.
func EffectiveMode(spec Spec) Mode {
	if spec.Mode == ModeToken {
		return spec.TokenTreatment
	}
	return spec.Mode
}

// Validate returns every problem with spec, or nil.
func Validate(spec Spec) FieldErrors {
	var errs FieldErrors

	if spec.Mode == ModeNone {
		return nil
	}

	errs = append(errs, unusedFields(spec)...)

	if spec.EUR.Valid && spec.EUR.Decimal.IsNegative() {
		errs = append(errs, FieldError{Field: "fee_eur", Message: "fee must be zero or positive"})
	}
	if spec.Percentage.Valid {
		p := spec.Percentage.Decimal
		if p.IsNegative() || p.GreaterThan(hundred) {
			errs = append(errs, FieldError{Field: "fee_percentage", Message: "percentage must be between 0 and 100"})
		}
	}

	if spec.Mode == ModeSeparate && !spec.EUR.Valid && !spec.Percentage.Valid {
		errs = append(errs, FieldError{Field: "fee_eur", Message: "enter the fee in EUR or as a percentage"})
	}

	hasSymbol := strings.TrimSpace(spec.Symbol) != ""
	hasAmount := spec.Amount.Valid && spec.Amount.Decimal.IsPositive()
	switch {
	case !Uses(spec.Mode, "fee_symbol"):
	case spec.Mode == ModeToken && !hasSymbol && !hasAmount:
		errs = append(errs,
			FieldError{Field: "fee_symbol", Message: "choose the token the fee was paid in"},
			FieldError{Field: "fee_amount", Message: "enter the fee quantity"},
		)
	case hasSymbol && !hasAmount:
		errs = append(errs, FieldError{Field: "fee_amount", Message: fmt.Sprintf("enter a positive fee quantity for %s", ledger.NormalizeSymbol(spec.Symbol))})
	case !hasSymbol && spec.Amount.Valid:
		errs = append(errs, FieldError{Field: "fee_symbol", Message: "choose the token the fee was paid in"})
	}

	if spec.Mode == ModeToken && spec.TokenTreatment != ModeIncluded && spec.TokenTreatment != ModeSeparate {
		errs = append(errs, FieldError{Field: "token_treatment", Message: "choose whether the fee is included or separate"})
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// FeeEUR is the EUR value of the fee: the explicit amount when set, else the
// percentage of the principal.
func FeeEUR(spec Spec, principalEUR decimal.Decimal) decimal.Decimal {
	if spec.EUR.Valid {
		return spec.EUR.Decimal
	}
	if spec.Percentage.Valid {
		return spec.Percentage.Decimal.Div(hundred).Mul(principalEUR)
	}
	return decimal.Zero
}

// Resolve applies spec to p. Invalid specs return FieldErrors.
func Resolve(spec Spec, p Principal) (Resolution, error) {
	if errs := Validate(spec); errs != nil {
		return Resolution{}, errs
	}

	res := Resolution{EffectiveCost: p.EUR, FeeEUR: decimal.Zero}

	switch spec.Mode {
	case ModeIncluded:
		res.FeeEUR = FeeEUR(spec, p.EUR)
		if leg, ok := tokenLeg(spec, decimal.Zero); ok && !sameAsset(spec.Symbol, p.Symbol) {
			res.Legs = append(res.Legs, leg)
		}
	case ModeSeparate:
		res.FeeEUR = FeeEUR(spec, p.EUR)
		res.EffectiveCost = p.EUR.Add(res.FeeEUR)
	case ModeToken:
		res.FeeEUR = FeeEUR(Spec{EUR: spec.EUR}, p.EUR)
		price := decimal.Zero
		if spec.TokenTreatment == ModeSeparate {
			res.EffectiveCost = p.EUR.Add(res.FeeEUR)
			price = res.FeeEUR.Div(spec.Amount.Decimal)
		}
		if leg, ok := tokenLeg(spec, price); ok {
			res.Legs = append(res.Legs, leg)
		}
	}

	return res, nil
}

func tokenLeg(spec Spec, price decimal.Decimal) (ledger.Leg, bool) {
	symbol := ledger.NormalizeSymbol(spec.Symbol)
	if symbol == "" || !spec.Amount.Valid || !spec.Amount.Decimal.IsPositive() {
		return ledger.Leg{}, false
	}
	return ledger.Leg{
		Kind:     ledger.OpFee,
		Symbol:   symbol,
		Amount:   spec.Amount.Decimal.Neg(),
		PriceEUR: ledger.NullOf(price),
	}, true
}

func sameAsset(a, b string) bool {
	return ledger.NormalizeSymbol(a) == ledger.NormalizeSymbol(b)
}
