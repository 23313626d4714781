// Package valuation decides whether a group's EUR value is known or must be
// supplied, and derives it from user input.
package valuation

import (
	"strings"
	"unicode"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/wealth-tracker/internal/domain/import/normalizer"
	"github.com/FACorreiaa/wealth-tracker/internal/domain/ledger"
)

// Resolver sets the valuation flags of groups.
type Resolver struct {
	assets ledger.Assets
}

// New creates a resolver anchored on assets.Anchor.
func New(assets ledger.Assets) Resolver {
	return Resolver{assets: assets}
}

// Resolve returns a copy of g with has_eur, needs_eur_input and the derived
// amounts set. User-entered amounts on g are dropped.
func (r Resolver) Resolve(g ledger.Group) ledger.Group {
	g.HasEUR = false
	g.NeedsEURInput = false
	g.EURAmount = decimal.NullDecimal{}
	g.AutoEURAmount = decimal.NullDecimal{}
	g.HintUSDCAmount = decimal.NullDecimal{}
	g.PrimarySymbol = r.PrimarySymbol(g.Rows)

	anchorRows := lo.Filter(g.Rows, func(row ledger.ClassifiedRow, _ int) bool {
		return r.assets.IsAnchor(row.Symbol)
	})
	if len(anchorRows) > 0 {
		auto := lo.Reduce(anchorRows, func(sum decimal.Decimal, row ledger.ClassifiedRow, _ int) decimal.Decimal {
			return sum.Add(row.Amount.Abs())
		}, decimal.Zero)
		g.HasEUR = true
		g.AutoEURAmount = ledger.NullOf(auto)
		g.EURAmount = ledger.NullOf(auto)
		return g
	}

	if !g.HasKind(ledger.OpBuy) {
		return g
	}

	g.NeedsEURInput = true
	stable := lo.Filter(g.Rows, func(row ledger.ClassifiedRow, _ int) bool {
		return r.assets.IsStablecoin(row.Symbol) &&
			row.Amount.IsNegative() &&
			(row.Kind == ledger.OpSpend || row.Kind == ledger.OpTransfer)
	})
	if len(stable) > 0 {
		hint := lo.Reduce(stable, func(sum decimal.Decimal, row ledger.ClassifiedRow, _ int) decimal.Decimal {
			return sum.Add(row.Amount.Abs())
		}, decimal.Zero)
		g.HintUSDCAmount = ledger.NullOf(hint)
	}
	return g
}

// ResolveAll resolves every group, keeping order.
func (r Resolver) ResolveAll(groups []ledger.Group) []ledger.Group {
	return lo.Map(groups, func(g ledger.Group, _ int) ledger.Group {
		return r.Resolve(g)
	})
}

// PrimarySymbol is the first BUY row whose symbol is neither a stablecoin
// nor fiat, falling back to the first BUY row. Empty when there is no BUY.
func (r Resolver) PrimarySymbol(rows []ledger.ClassifiedRow) string {
	buys := lo.Filter(rows, func(row ledger.ClassifiedRow, _ int) bool {
		return row.Kind == ledger.OpBuy
	})
	if len(buys) == 0 {
		return ""
	}
	if crypto, ok := lo.Find(buys, func(row ledger.ClassifiedRow) bool {
		return r.assets.IsCrypto(row.Symbol)
	}); ok {
		return crypto.Symbol
	}
	return buys[0].Symbol
}

// PrimaryQuantity sums the BUY quantity of the group's primary symbol.
func PrimaryQuantity(g ledger.Group) decimal.Decimal {
	if g.PrimarySymbol == "" {
		return decimal.Zero
	}
	return lo.Reduce(g.Rows, func(sum decimal.Decimal, row ledger.ClassifiedRow, _ int) decimal.Decimal {
		if row.Kind == ledger.OpBuy && row.Symbol == g.PrimarySymbol {
			return sum.Add(row.Amount)
		}
		return sum
	}, decimal.Zero)
}

// SetEURAmount returns a copy of g holding the parsed amount. Negative or
// non-numeric input clears the amount instead of failing.
func (r Resolver) SetEURAmount(g ledger.Group, raw string) ledger.Group {
	amount, ok := parseNonNegative(raw)
	if !ok {
		return clearEURAmount(g)
	}
	g.EURAmount = ledger.NullOf(amount)
	return g
}

// SetUnitPrice returns a copy of g whose EUR amount is price times the
// primary symbol's bought quantity. Invalid input clears the amount.
func (r Resolver) SetUnitPrice(g ledger.Group, raw string) ledger.Group {
	price, ok := parseNonNegative(raw)
	qty := PrimaryQuantity(g)
	if !ok || !qty.IsPositive() {
		return clearEURAmount(g)
	}
	g.EURAmount = ledger.NullOf(price.Mul(qty))
	return g
}

// clearEURAmount drops user input. A group with a known EUR value falls back
// to it.
func clearEURAmount(g ledger.Group) ledger.Group {
	g.EURAmount = g.AutoEURAmount
	return g
}

func parseNonNegative(raw string) (decimal.Decimal, bool) {
	if strings.IndexFunc(raw, unicode.IsLetter) >= 0 {
		return decimal.Zero, false
	}
	amount, err := normalizer.ParseLocaleAmount(raw)
	if err != nil || amount.IsNegative() {
		return decimal.Zero, false
	}
	return amount, true
}
