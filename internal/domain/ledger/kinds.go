// Package ledger holds the staged ledger types shared by the import pipeline,
// the fee strategy and the transaction wizard.
package ledger

import (
	"fmt"
	"strings"
)

// OperationKind is the canonical type of one classified exchange row.
type OperationKind int

const (
	OpBuy OperationKind = iota + 1
	OpSpend
	OpFee
	OpReward
	OpFiatDeposit
	OpFiatAnchor
	OpTransfer
	OpExit
)

var operationKindNames = map[OperationKind]string{
	OpBuy:         "BUY",
	OpSpend:       "SPEND",
	OpFee:         "FEE",
	OpReward:      "REWARD",
	OpFiatDeposit: "FIAT_DEPOSIT",
	OpFiatAnchor:  "FIAT_ANCHOR",
	OpTransfer:    "TRANSFER",
	OpExit:        "EXIT",
}

func (k OperationKind) String() string {
	if name, ok := operationKindNames[k]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseOperationKind parses the canonical upper-case name of a kind.
func ParseOperationKind(s string) (OperationKind, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for k, name := range operationKindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown operation kind: %q", s)
}

func (k OperationKind) MarshalText() ([]byte, error) {
	if _, ok := operationKindNames[k]; !ok {
		return nil, fmt.Errorf("invalid operation kind %d", int(k))
	}
	return []byte(k.String()), nil
}

func (k *OperationKind) UnmarshalText(text []byte) error {
	parsed, err := ParseOperationKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// TransactionKind is the type of a manually entered composite transaction.
type TransactionKind int

const (
	KindBuyFiat TransactionKind = iota + 1
	KindBuySpot
	KindReward
	KindFiatDeposit
	KindFiatWithdraw
	KindCryptoDeposit
	KindGasFee
	KindExit
	KindNonTaxableExit
)

var transactionKindNames = map[TransactionKind]string{
	KindBuyFiat:        "BUY_FIAT",
	KindBuySpot:        "BUY_SPOT",
	KindReward:         "REWARD",
	KindFiatDeposit:    "FIAT_DEPOSIT",
	KindFiatWithdraw:   "FIAT_WITHDRAW",
	KindCryptoDeposit:  "CRYPTO_DEPOSIT",
	KindGasFee:         "GAS_FEE",
	KindExit:           "EXIT",
	KindNonTaxableExit: "NON_TAXABLE_EXIT",
}

func (k TransactionKind) String() string {
	if name, ok := transactionKindNames[k]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseTransactionKind parses the canonical upper-case name of a kind.
func ParseTransactionKind(s string) (TransactionKind, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for k, name := range transactionKindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown transaction kind: %q", s)
}

func (k TransactionKind) MarshalText() ([]byte, error) {
	if _, ok := transactionKindNames[k]; !ok {
		return nil, fmt.Errorf("invalid transaction kind %d", int(k))
	}
	return []byte(k.String()), nil
}

func (k *TransactionKind) UnmarshalText(text []byte) error {
	parsed, err := ParseTransactionKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// HasQuoteLeg reports whether the kind spends another asset to acquire the received one.
func (k TransactionKind) HasQuoteLeg() bool {
	return k == KindBuyFiat || k == KindBuySpot
}

// AcceptsFee reports whether a fee leg can be attached to the kind.
func (k TransactionKind) AcceptsFee() bool {
	switch k {
	case KindBuyFiat, KindBuySpot, KindCryptoDeposit, KindNonTaxableExit:
		return true
	default:
		return false
	}
}

// FeeMode selects how a fee enters the cost basis.
type FeeMode int

const (
	FeeNone FeeMode = iota
	FeeIncluded
	FeeSeparate
	FeeToken
)

var feeModeNames = map[FeeMode]string{
	FeeNone:     "none",
	FeeIncluded: "included",
	FeeSeparate: "separate",
	FeeToken:    "token",
}

func (m FeeMode) String() string {
	if name, ok := feeModeNames[m]; ok {
		return name
	}
	return "unknown"
}

// ParseFeeMode parses a lower-case fee mode name. The empty string is FeeNone.
func ParseFeeMode(s string) (FeeMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return FeeNone, nil
	}
	for m, name := range feeModeNames {
		if name == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown fee mode: %q", s)
}

func (m FeeMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *FeeMode) UnmarshalText(text []byte) error {
	parsed, err := ParseFeeMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
