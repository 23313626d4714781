package ledger

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrEmptyGroup        = errors.New("group has no rows")
	ErrConflictingFlags  = errors.New("group cannot both carry and need a EUR value")
	ErrNegativeEURAmount = errors.New("group EUR amount must not be negative")
)

// Group is a set of classified rows judged to belong to one user action.
type Group struct {
	Index          int                 `json:"group_index"`
	Timestamp      time.Time           `json:"timestamp"`
	Summary        string              `json:"summary"`
	Rows           []ClassifiedRow     `json:"rows"`
	HasEUR         bool                `json:"has_eur"`
	NeedsEURInput  bool                `json:"needs_eur_input"`
	EURAmount      decimal.NullDecimal `json:"eur_amount"`
	AutoEURAmount  decimal.NullDecimal `json:"auto_eur_amount"`
	HintUSDCAmount decimal.NullDecimal `json:"hint_usdc_amount"`
	PrimarySymbol  string              `json:"primary_symbol,omitempty"`
	SuggestExclude bool                `json:"suggest_exclude"`
}

// Validate checks the structural invariants of a group.
func (g Group) Validate() error {
	if len(g.Rows) == 0 {
		return fmt.Errorf("group %d: %w", g.Index, ErrEmptyGroup)
	}
	if g.HasEUR && g.NeedsEURInput {
		return fmt.Errorf("group %d: %w", g.Index, ErrConflictingFlags)
	}
	if g.EURAmount.Valid && g.EURAmount.Decimal.IsNegative() {
		return fmt.Errorf("group %d: %w", g.Index, ErrNegativeEURAmount)
	}
	return nil
}

// HasKind reports whether any row of the group has the given kind.
func (g Group) HasKind(kind OperationKind) bool {
	for _, row := range g.Rows {
		if row.Kind == kind {
			return true
		}
	}
	return false
}

// Resolved reports whether the group can be committed without further input.
func (g Group) Resolved() bool {
	return !g.NeedsEURInput || g.EURAmount.Valid
}

// Summarize renders the rows as "+0.1 BTC, -3000 EUR".
func Summarize(rows []ClassifiedRow) string {
	parts := make([]string, 0, len(rows))
	for _, row := range rows {
		sign := ""
		if !row.Amount.IsNegative() {
			sign = "+"
		}
		parts = append(parts, fmt.Sprintf("%s%s %s", sign, row.Amount.String(), row.Symbol))
	}
	return strings.Join(parts, ", ")
}

// CountRows returns the total number of rows across groups.
func CountRows(groups []Group) int {
	total := 0
	for _, g := range groups {
		total += len(g.Rows)
	}
	return total
}
