package ledger

import "strings"

// Assets knows which symbols are fiat, which fiat anchors the cost basis and
// which tokens are stablecoins.
type Assets struct {
	Anchor      string
	Fiat        map[string]bool
	Stablecoins map[string]bool
}

// DefaultAssets returns the EUR-anchored asset table.
func DefaultAssets() Assets {
	return NewAssets("EUR")
}

// NewAssets builds an asset table anchored on the given fiat currency.
func NewAssets(anchor string) Assets {
	anchor = NormalizeSymbol(anchor)
	if anchor == "" {
		anchor = "EUR"
	}
	fiat := map[string]bool{
		"EUR": true, "USD": true, "GBP": true, "CHF": true,
		"CAD": true, "AUD": true, "JPY": true, "BRL": true,
	}
	fiat[anchor] = true
	return Assets{
		Anchor: anchor,
		Fiat:   fiat,
		Stablecoins: map[string]bool{
			"USDC": true, "USDT": true, "BUSD": true, "FDUSD": true,
			"DAI": true, "TUSD": true, "EURC": true, "EURI": true,
		},
	}
}

// NormalizeSymbol upper-cases and trims an asset symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func (a Assets) IsAnchor(symbol string) bool {
	return NormalizeSymbol(symbol) == a.Anchor
}

func (a Assets) IsFiat(symbol string) bool {
	return a.Fiat[NormalizeSymbol(symbol)]
}

func (a Assets) IsStablecoin(symbol string) bool {
	return a.Stablecoins[NormalizeSymbol(symbol)]
}

// IsCrypto reports whether the symbol is a volatile crypto asset.
func (a Assets) IsCrypto(symbol string) bool {
	s := NormalizeSymbol(symbol)
	return s != "" && !a.IsFiat(s) && !a.IsStablecoin(s)
}
