package overlay

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/wealth-tracker/internal/domain/import/valuation"
	"github.com/FACorreiaa/wealth-tracker/internal/domain/ledger"
)

var base = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func crow(kind ledger.OperationKind, symbol, amount string) ledger.ClassifiedRow {
	r := ledger.RawRow{Timestamp: base, Symbol: symbol, Amount: decimal.RequireFromString(amount)}
	return ledger.ClassifiedRow{Raw: r, Kind: kind, Symbol: symbol, Amount: r.Amount}
}

func fixture(t *testing.T) *Snapshot {
	t.Helper()
	assets := ledger.DefaultAssets()
	resolver := valuation.New(assets)
	groups := resolver.ResolveAll([]ledger.Group{
		{Index: 0, Timestamp: base, Rows: []ledger.ClassifiedRow{
			crow(ledger.OpBuy, "BTC", "0.1"), crow(ledger.OpFiatAnchor, "EUR", "-3000"),
		}},
		{Index: 1, Timestamp: base.Add(time.Hour), Rows: []ledger.ClassifiedRow{
			crow(ledger.OpTransfer, "ETH", "-1"), crow(ledger.OpFee, "ETH", "-0.001"),
		}},
		{Index: 2, Timestamp: base.Add(2 * time.Hour), Rows: []ledger.ClassifiedRow{
			crow(ledger.OpBuy, "SOL", "10"), crow(ledger.OpSpend, "USDC", "-1500"),
		}},
		{Index: 3, Timestamp: base.Add(3 * time.Hour), Rows: []ledger.ClassifiedRow{
			crow(ledger.OpReward, "ETH", "0.001"),
		}},
	})
	return New(groups, resolver, assets)
}

func TestNew_SuggestsCryptoWithdrawals(t *testing.T) {
	s := fixture(t)

	suggested := []bool{}
	for _, g := range s.Groups() {
		suggested = append(suggested, g.SuggestExclude)
	}
	assert.Equal(t, []bool{false, true, false, false}, suggested)
	for i := 0; i < 4; i++ {
		assert.False(t, s.Excluded(i), "groups start included")
	}
}

func TestIsCryptoWithdrawal(t *testing.T) {
	assets := ledger.DefaultAssets()
	tests := []struct {
		name string
		rows []ledger.ClassifiedRow
		want bool
	}{
		{"outgoing crypto", []ledger.ClassifiedRow{crow(ledger.OpTransfer, "BTC", "-0.2")}, true},
		{"incoming crypto", []ledger.ClassifiedRow{crow(ledger.OpTransfer, "BTC", "0.2")}, false},
		{"internal move", []ledger.ClassifiedRow{crow(ledger.OpTransfer, "USDC", "-10"), crow(ledger.OpTransfer, "USDC", "10")}, false},
		{"swap", []ledger.ClassifiedRow{crow(ledger.OpTransfer, "ETH", "-1"), crow(ledger.OpBuy, "BTC", "0.05")}, false},
		{"fee only", []ledger.ClassifiedRow{crow(ledger.OpFee, "BNB", "-0.01")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCryptoWithdrawal(ledger.Group{Rows: tt.rows}, assets))
		})
	}
}

func TestToggle_ExcludesFromPayload(t *testing.T) {
	s := fixture(t)
	s, err := s.SetEURAmount(2, "1400")
	require.NoError(t, err)

	before := s.Stats()
	excluded, err := s.Toggle(1)
	require.NoError(t, err)

	payload, err := excluded.Payload()
	require.NoError(t, err)
	assert.Equal(t, before.TotalGroups-1, payload.GroupsCount)
	assert.Equal(t, before.TotalRows-2, payload.RowsCount)
	for _, g := range payload.Groups {
		assert.NotEqual(t, 1, g.Index)
	}

	assert.False(t, s.Excluded(1), "previous snapshot is unchanged")
	back, err := excluded.Toggle(1)
	require.NoError(t, err)
	assert.False(t, back.Excluded(1))
}

func TestValidate_BlocksUnresolvedIncludedGroups(t *testing.T) {
	s := fixture(t)

	err := s.Validate()
	var unresolved *UnresolvedError
	require.True(t, errors.As(err, &unresolved))
	assert.Equal(t, []int{2}, unresolved.Indexes)
	assert.True(t, errors.Is(err, ErrUnresolved))
	assert.Equal(t, 1, s.Stats().GroupsNeedingEUR)

	skipped, err := s.SetExcluded(2, true)
	require.NoError(t, err)
	assert.NoError(t, skipped.Validate())
	assert.Equal(t, 0, skipped.Stats().GroupsNeedingEUR)

	priced, err := s.SetUnitPrice(2, "150")
	require.NoError(t, err)
	g, ok := priced.Group(2)
	require.True(t, ok)
	assert.True(t, g.EURAmount.Decimal.Equal(decimal.NewFromInt(1500)))
	assert.NoError(t, priced.Validate())

	orig, _ := s.Group(2)
	assert.False(t, orig.EURAmount.Valid, "edits never touch the source snapshot")
}

func TestValidate_InvalidInputClearsAmount(t *testing.T) {
	s := fixture(t)
	s, err := s.SetEURAmount(2, "1400")
	require.NoError(t, err)
	require.NoError(t, s.Validate())

	s, err = s.SetEURAmount(2, "-3")
	require.NoError(t, err)
	assert.ErrorIs(t, s.Validate(), ErrUnresolved)
}

func TestValidate_NothingIncluded(t *testing.T) {
	s := fixture(t)
	var err error
	for i := 0; i < 4; i++ {
		s, err = s.SetExcluded(i, true)
		require.NoError(t, err)
	}
	assert.ErrorIs(t, s.Validate(), ErrNothingToSend)
}

func TestUnknownGroup(t *testing.T) {
	s := fixture(t)

	_, err := s.Toggle(42)
	assert.ErrorIs(t, err, ErrUnknownGroup)
	_, err = s.SetEURAmount(42, "1")
	assert.ErrorIs(t, err, ErrUnknownGroup)
	_, ok := s.Group(42)
	assert.False(t, ok)
}
