package wizard

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/wealth-tracker/internal/domain/costbasis"
	"github.com/FACorreiaa/wealth-tracker/internal/domain/fees"
	"github.com/FACorreiaa/wealth-tracker/internal/domain/ledger"
)

// ValidateStep checks the fields owned by step.
func (m Machine) ValidateStep(tx ledger.StagedTransaction, step Step) fees.FieldErrors {
	var errs fees.FieldErrors
	add := func(field, msg string) {
		errs = append(errs, fees.FieldError{Field: field, Message: msg})
	}

	switch step {
	case StepReceived:
		switch {
		case tx.Symbol == "":
			add("symbol", "choose an asset")
		case isFiatKind(tx.Kind) && !m.assets.IsFiat(tx.Symbol):
			add("symbol", fmt.Sprintf("%s is not a fiat currency", tx.Symbol))
		case !isFiatKind(tx.Kind) && m.assets.IsFiat(tx.Symbol):
			add("symbol", fmt.Sprintf("%s is a fiat currency", tx.Symbol))
		}
		if !tx.Amount.Valid || !tx.Amount.Decimal.IsPositive() {
			add("amount", "quantity must be greater than zero")
		}
		if needsOrigin(tx.Kind) && !tx.EURAmount.Valid {
			add("eur_amount", "enter the EUR value")
		}
		if tx.ExecutedAt.IsZero() {
			add("executed_at", "choose a date")
		}
	case StepSpent:
		switch {
		case tx.QuoteSymbol == "":
			add("quote_symbol", "choose what was spent")
		case tx.QuoteSymbol == tx.Symbol:
			add("quote_symbol", "spent and received assets must differ")
		case tx.Kind == ledger.KindBuyFiat && !m.assets.IsFiat(tx.QuoteSymbol):
			add("quote_symbol", fmt.Sprintf("%s is not a fiat currency", tx.QuoteSymbol))
		case tx.Kind == ledger.KindBuySpot && m.assets.IsFiat(tx.QuoteSymbol):
			add("quote_symbol", "a fiat purchase is a BUY_FIAT")
		}
		if !tx.QuoteAmount.Valid || !tx.QuoteAmount.Decimal.IsPositive() {
			add("quote_amount", "quantity must be greater than zero")
		} else if _, ok := m.principalEUR(tx); !ok {
			add("eur_amount", fmt.Sprintf("enter the EUR value of the %s spent", tx.QuoteSymbol))
		}
	case StepFees:
		errs = append(errs, fees.Validate(tx.Fee)...)
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Validate checks every step visited for the transaction's kind.
func (m Machine) Validate(tx ledger.StagedTransaction) fees.FieldErrors {
	var errs fees.FieldErrors
	for _, step := range Steps(tx.Kind) {
		errs = append(errs, m.ValidateStep(tx, step)...)
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func isFiatKind(kind ledger.TransactionKind) bool {
	return kind == ledger.KindFiatDeposit || kind == ledger.KindFiatWithdraw
}

// needsOrigin reports kinds whose cost is anchored by a EUR value typed on
// the first step.
func needsOrigin(kind ledger.TransactionKind) bool {
	return kind == ledger.KindCryptoDeposit || kind == ledger.KindExit
}

// principalEUR is the EUR value of what was paid or carried in. An explicit
// EUR amount wins; purchases fall back to the quote amount when it is in the
// anchor currency or a stablecoin; fiat movements are their own value.
func (m Machine) principalEUR(tx ledger.StagedTransaction) (decimal.Decimal, bool) {
	if tx.EURAmount.Valid {
		return tx.EURAmount.Decimal, true
	}
	switch {
	case tx.Kind.HasQuoteLeg():
		if tx.QuoteAmount.Valid && (m.assets.IsAnchor(tx.QuoteSymbol) || m.assets.IsStablecoin(tx.QuoteSymbol)) {
			return tx.QuoteAmount.Decimal, true
		}
	case isFiatKind(tx.Kind):
		if tx.Amount.Valid && m.assets.IsAnchor(tx.Symbol) {
			return tx.Amount.Decimal, true
		}
	}
	return decimal.Zero, false
}

// principalSymbol is the asset the principal was paid in.
func principalSymbol(tx ledger.StagedTransaction) string {
	if tx.Kind.HasQuoteLeg() {
		return tx.QuoteSymbol
	}
	return tx.Symbol
}

func (m Machine) resolveFee(tx ledger.StagedTransaction, principal decimal.Decimal) (fees.Resolution, error) {
	if !tx.Kind.AcceptsFee() {
		return fees.Resolution{EffectiveCost: principal, FeeEUR: decimal.Zero}, nil
	}
	return fees.Resolve(tx.Fee, fees.Principal{EUR: principal, Symbol: principalSymbol(tx)})
}

// PreviewPRU is the provisional unit cost of an acquisition, or null when
// the transaction is not an acquisition or lacks a value.
func (m Machine) PreviewPRU(tx ledger.StagedTransaction) decimal.NullDecimal {
	switch tx.Kind {
	case ledger.KindBuyFiat, ledger.KindBuySpot, ledger.KindCryptoDeposit, ledger.KindReward:
	default:
		return decimal.NullDecimal{}
	}
	if !tx.Amount.Valid {
		return decimal.NullDecimal{}
	}
	principal, ok := m.principalEUR(tx)
	if !ok {
		return decimal.NullDecimal{}
	}
	res, err := m.resolveFee(tx, principal)
	if err != nil {
		return decimal.NullDecimal{}
	}
	mode := fees.ModeNone
	if tx.Kind.AcceptsFee() {
		mode = fees.EffectiveMode(tx.Fee)
	}
	pru, err := costbasis.Preview(costbasis.Input{
		PrincipalEUR: principal,
		Quantity:     tx.Amount.Decimal,
		FeeMode:      mode,
		FeeEUR:       res.FeeEUR,
	})
	if err != nil {
		return decimal.NullDecimal{}
	}
	return ledger.NullOf(pru)
}

// BuildPayload turns a complete transaction into its ledger legs.
func (m Machine) BuildPayload(tx ledger.StagedTransaction) (ledger.Payload, error) {
	if errs := m.Validate(tx); errs != nil {
		return ledger.Payload{}, errs
	}

	principal, hasPrincipal := m.principalEUR(tx)
	res, err := m.resolveFee(tx, principal)
	if err != nil {
		return ledger.Payload{}, err
	}

	payload := ledger.Payload{Kind: tx.Kind, ExecutedAt: tx.ExecutedAt}
	if hasPrincipal {
		payload.EffectiveCost = ledger.NullOf(res.EffectiveCost)
	}

	qty := tx.Amount.Decimal
	unitPrice := decimal.NullDecimal{}
	if hasPrincipal {
		unitPrice = ledger.NullOf(res.EffectiveCost.Div(qty))
	}

	switch tx.Kind {
	case ledger.KindBuyFiat, ledger.KindBuySpot:
		quoteKind := ledger.OpSpend
		if tx.Kind == ledger.KindBuyFiat {
			quoteKind = ledger.OpFiatAnchor
		}
		payload.Legs = []ledger.Leg{
			{Kind: ledger.OpBuy, Symbol: tx.Symbol, Amount: qty, PriceEUR: unitPrice},
			{
				Kind:     quoteKind,
				Symbol:   tx.QuoteSymbol,
				Amount:   tx.QuoteAmount.Decimal.Neg(),
				PriceEUR: ledger.NullOf(principal.Div(tx.QuoteAmount.Decimal)),
			},
		}
	case ledger.KindReward:
		payload.Legs = []ledger.Leg{{Kind: ledger.OpReward, Symbol: tx.Symbol, Amount: qty, PriceEUR: unitPrice}}
	case ledger.KindFiatDeposit:
		payload.Legs = []ledger.Leg{{Kind: ledger.OpFiatDeposit, Symbol: tx.Symbol, Amount: qty, PriceEUR: unitPrice}}
	case ledger.KindFiatWithdraw:
		payload.Legs = []ledger.Leg{{Kind: ledger.OpExit, Symbol: tx.Symbol, Amount: qty.Neg(), PriceEUR: unitPrice}}
	case ledger.KindCryptoDeposit:
		payload.Legs = []ledger.Leg{{Kind: ledger.OpTransfer, Symbol: tx.Symbol, Amount: qty, PriceEUR: unitPrice}}
	case ledger.KindGasFee:
		payload.Legs = []ledger.Leg{{Kind: ledger.OpFee, Symbol: tx.Symbol, Amount: qty.Neg(), PriceEUR: unitPrice}}
	case ledger.KindExit:
		payload.Legs = []ledger.Leg{{Kind: ledger.OpExit, Symbol: tx.Symbol, Amount: qty.Neg(), PriceEUR: unitPrice}}
	case ledger.KindNonTaxableExit:
		payload.Legs = []ledger.Leg{{Kind: ledger.OpTransfer, Symbol: tx.Symbol, Amount: qty.Neg(), PriceEUR: unitPrice}}
	default:
		return ledger.Payload{}, errors.New("unsupported transaction kind")
	}

	payload.Legs = append(payload.Legs, res.Legs...)
	return payload, nil
}
