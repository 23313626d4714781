// Package classifier maps exchange operation labels to canonical ledger kinds.
package classifier

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/wealth-tracker/internal/domain/ledger"
)

// ClassificationError reports an operation label with no mapping.
type ClassificationError struct {
	Line  int
	Label string
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("row %d: unrecognized operation %q", e.Line, e.Label)
}

type rule int

const (
	ruleTrade rule = iota + 1
	ruleFee
	ruleReward
	ruleFiatDeposit
	ruleFiatExit
	ruleTransfer
	ruleDeposit
	ruleWithdraw
)

// labels is the transaction-history vocabulary of the supported exchange,
// lower-cased.
var labels = map[string]rule{
	// Trades resolve by sign and coin
	"buy":                       ruleTrade,
	"sell":                      ruleTrade,
	"transaction buy":           ruleTrade,
	"transaction spend":         ruleTrade,
	"transaction sold":          ruleTrade,
	"transaction revenue":       ruleTrade,
	"transaction related":       ruleTrade,
	"binance convert":           ruleTrade,
	"convert":                   ruleTrade,
	"large otc trading":         ruleTrade,
	"small assets exchange bnb": ruleTrade,
	"buy crypto":                ruleTrade,
	"auto-invest transaction":   ruleTrade,

	"fee":             ruleFee,
	"transaction fee": ruleFee,
	"trading fee":     ruleFee,
	"withdraw fee":    ruleFee,

	"simple earn flexible interest":  ruleReward,
	"simple earn locked rewards":     ruleReward,
	"staking rewards":                ruleReward,
	"eth 2.0 staking rewards":        ruleReward,
	"pos savings interest":           ruleReward,
	"savings interest":               ruleReward,
	"launchpool interest":            ruleReward,
	"bnb vault rewards":              ruleReward,
	"distribution":                   ruleReward,
	"airdrop assets":                 ruleReward,
	"commission rebate":              ruleReward,
	"referral commission":            ruleReward,
	"commission fee shared with you": ruleReward,
	"cashback voucher":               ruleReward,
	"card cashback":                  ruleReward,
	"mission reward distribution":    ruleReward,
	"crypto box":                     ruleReward,

	"fiat deposit": ruleFiatDeposit,

	"fiat withdraw":         ruleFiatExit,
	"fiat withdrawal":       ruleFiatExit,
	"binance card spending": ruleFiatExit,
	"card spending":         ruleFiatExit,

	"deposit":    ruleDeposit,
	"withdraw":   ruleWithdraw,
	"withdrawal": ruleWithdraw,

	"transfer between main and funding wallet":                 ruleTransfer,
	"transfer between spot account and funding account":        ruleTransfer,
	"transfer between main account/futures and margin account": ruleTransfer,
	"internal transfer":                 ruleTransfer,
	"simple earn flexible subscription": ruleTransfer,
	"simple earn flexible redemption":   ruleTransfer,
	"simple earn locked subscription":   ruleTransfer,
	"simple earn locked redemption":     ruleTransfer,
	"staking purchase":                  ruleTransfer,
	"staking redemption":                ruleTransfer,
}

// Classifier assigns an OperationKind to every raw row.
type Classifier struct {
	assets ledger.Assets
}

// New creates a classifier that treats assets.Anchor as the fiat anchor.
func New(assets ledger.Assets) *Classifier {
	return &Classifier{assets: assets}
}

// Classify maps one row. It never mutates its input.
func (c *Classifier) Classify(row ledger.RawRow) (ledger.ClassifiedRow, error) {
	label := strings.ToLower(strings.Join(strings.Fields(row.Operation), " "))
	r, ok := labels[label]
	if !ok {
		return ledger.ClassifiedRow{}, &ClassificationError{Line: row.Line, Label: row.Operation}
	}

	symbol := ledger.NormalizeSymbol(row.Symbol)
	amount := row.Amount
	var kind ledger.OperationKind

	switch r {
	case ruleTrade:
		switch {
		case c.assets.IsAnchor(symbol):
			kind = ledger.OpFiatAnchor
		case amount.IsNegative():
			kind = ledger.OpSpend
		default:
			kind = ledger.OpBuy
		}
	case ruleFee:
		kind, amount = ledger.OpFee, outflow(amount)
	case ruleReward:
		kind, amount = ledger.OpReward, amount.Abs()
	case ruleFiatDeposit:
		kind, amount = ledger.OpFiatDeposit, amount.Abs()
	case ruleFiatExit:
		kind, amount = ledger.OpExit, outflow(amount)
	case ruleDeposit:
		if c.assets.IsFiat(symbol) {
			kind, amount = ledger.OpFiatDeposit, amount.Abs()
		} else {
			kind = ledger.OpTransfer
		}
	case ruleWithdraw:
		if c.assets.IsFiat(symbol) {
			kind, amount = ledger.OpExit, outflow(amount)
		} else {
			kind = ledger.OpTransfer
		}
	case ruleTransfer:
		kind = ledger.OpTransfer
	}

	return ledger.ClassifiedRow{
		Raw:    row,
		Kind:   kind,
		Symbol: symbol,
		Amount: amount,
	}, nil
}

// ClassifyAll maps every row in order. The first unrecognized label aborts
// the whole batch.
func (c *Classifier) ClassifyAll(rows []ledger.RawRow) ([]ledger.ClassifiedRow, error) {
	out := make([]ledger.ClassifiedRow, 0, len(rows))
	for _, row := range rows {
		classified, err := c.Classify(row)
		if err != nil {
			return nil, err
		}
		out = append(out, classified)
	}
	return out, nil
}

func outflow(d decimal.Decimal) decimal.Decimal {
	return d.Abs().Neg()
}
