// Package costbasis previews the weighted-average unit cost (PRU) of a
// staged acquisition. Nothing here writes back to staged state.
package costbasis

import (
	"errors"
	"math"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/wealth-tracker/internal/domain/ledger"
)

var ErrNonPositiveQuantity = errors.New("quantity must be greater than zero")

var maxMinorUnits = decimal.NewFromInt(math.MaxInt64)

// maxDisplayDigits caps the fraction digits used for sub-unit prices.
const maxDisplayDigits = 10

// Input is the principal, quantity and fee of one acquisition.
type Input struct {
	PrincipalEUR decimal.Decimal
	Quantity     decimal.Decimal
	FeeMode      ledger.FeeMode
	FeeEUR       decimal.Decimal
}

// Preview returns (principal + separate fee) / quantity.
func Preview(in Input) (decimal.Decimal, error) {
	if !in.Quantity.IsPositive() {
		return decimal.Zero, ErrNonPositiveQuantity
	}
	cost := in.PrincipalEUR
	if in.FeeMode == ledger.FeeSeparate {
		cost = cost.Add(in.FeeEUR)
	}
	return cost.Div(in.Quantity), nil
}

// FormatPRU renders value in currency using its fraction digits. Values
// below one unit get enough extra digits to show four significant figures.
// Values too large for minor units are printed plainly with the currency code.
func FormatPRU(value decimal.Decimal, currency string) string {
	cur := *money.New(0, ledger.NormalizeSymbol(currency)).Currency()
	digits := displayDigits(value, cur.Fraction)

	minor := value.Shift(int32(digits)).Round(0)
	if minor.Abs().GreaterThan(maxMinorUnits) {
		return value.StringFixed(int32(digits)) + " " + cur.Code
	}
	f := money.NewFormatter(digits, cur.Decimal, cur.Thousand, cur.Grapheme, cur.Template)
	return f.Format(minor.IntPart())
}

func displayDigits(value decimal.Decimal, fraction int) int {
	abs := value.Abs()
	if abs.IsZero() || abs.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fraction
	}
	digits := fraction
	for digits < maxDisplayDigits && abs.Shift(int32(digits)).LessThan(decimal.NewFromInt(1000)) {
		digits++
	}
	return digits
}
