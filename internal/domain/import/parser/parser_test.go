package parser

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const exchangeHeader = "User_ID,UTC_Time,Account,Operation,Coin,Change,Remark"

func exportOf(lines ...string) []byte {
	return []byte(strings.Join(lines, "\n") + "\n")
}

func TestParse_CommaExport(t *testing.T) {
	data := exportOf(
		exchangeHeader,
		"42,2024-03-01 10:00:00,Spot,Buy,btc,0.1,",
		"42,2024-03-01 10:00:00,Spot,Buy,EUR,-3000,",
		"42,2024-03-02 08:30:00,Earn,Simple Earn Flexible Interest,ETH,0.0004,daily",
	)

	res, err := Parse(data, Options{})
	require.NoError(t, err)
	require.Len(t, res.Rows, 3)

	first := res.Rows[0]
	assert.Equal(t, 2, first.Line)
	assert.Equal(t, "42", first.UserID)
	assert.Equal(t, "Spot", first.Account)
	assert.Equal(t, "Buy", first.Operation)
	assert.Equal(t, "BTC", first.Symbol)
	assert.True(t, first.Amount.Equal(decimal.RequireFromString("0.1")))
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), first.Timestamp)

	assert.True(t, res.Rows[1].Amount.Equal(decimal.NewFromInt(-3000)))
	assert.Equal(t, "daily", res.Rows[2].Remark)
	assert.Equal(t, 4, res.Rows[2].Line)
}

func TestParse_EuropeanSemicolonExport(t *testing.T) {
	data := exportOf(
		"User_ID;UTC_Time;Account;Operation;Coin;Change;Remark",
		"42;01/03/2024 10:00:00;Spot;Buy;BTC;0,1;",
		"42;01/03/2024 10:00:00;Spot;Buy;EUR;-3000,50;",
	)

	res, err := Parse(data, Options{})
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)

	assert.Equal(t, ';', res.Config.Delimiter)
	assert.True(t, res.Rows[0].Amount.Equal(decimal.RequireFromString("0.1")))
	assert.True(t, res.Rows[1].Amount.Equal(decimal.RequireFromString("-3000.50")))
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), res.Rows[0].Timestamp)
	assert.Equal(t, "2024-03-01T10:00:00", res.Records[0].Fields["UTC_Time"])
	assert.Equal(t, "YYYY-MM-DDTHH:mm:ss", res.DateFormat)
}

func TestParse_ShortRowsArePadded(t *testing.T) {
	data := exportOf(
		exchangeHeader,
		"42,2024-03-01 10:00:00,Spot,Deposit,EUR,500",
	)

	res, err := Parse(data, Options{})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "", res.Records[0].Fields["Remark"])
	assert.Equal(t, "", res.Rows[0].Remark)
}

func TestParse_TooManyColumns(t *testing.T) {
	data := exportOf(
		exchangeHeader,
		"42,2024-03-01 10:00:00,Spot,Buy,BTC,0.1,,extra,fields",
	)

	_, err := Parse(data, Options{})
	require.Error(t, err)

	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 2, perr.Row)
	assert.Contains(t, perr.Reason, "expected 7 columns, got 9")
	assert.Equal(t, "row 2: expected 7 columns, got 9", err.Error())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantRow int
		reason  string
	}{
		{
			name:    "empty file",
			data:    []byte(""),
			wantRow: 0,
			reason:  "file is empty",
		},
		{
			name:    "header only",
			data:    exportOf(exchangeHeader),
			wantRow: 1,
			reason:  "no data rows",
		},
		{
			name:    "non numeric change",
			data:    exportOf(exchangeHeader, "42,2024-03-01 10:00:00,Spot,Buy,BTC,abc,"),
			wantRow: 2,
			reason:  `non-numeric value "abc" in column "Change"`,
		},
		{
			name:    "bad timestamp",
			data:    exportOf(exchangeHeader, "42,yesterday,Spot,Buy,BTC,0.1,"),
			wantRow: 2,
			reason:  `invalid timestamp "yesterday"`,
		},
		{
			name:    "missing coin",
			data:    exportOf(exchangeHeader, "42,2024-03-01 10:00:00,Spot,Buy,,0.1,"),
			wantRow: 2,
			reason:  `empty value in column "Coin"`,
		},
		{
			name:    "missing required columns",
			data:    exportOf("Date,Coin", "2024-03-01,BTC"),
			wantRow: 1,
			reason:  "missing required columns: account, operation, change",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.data, Options{})
			require.Error(t, err)

			var perr *ParseError
			require.True(t, errors.As(err, &perr), "expected *ParseError, got %T", err)
			assert.Equal(t, tt.wantRow, perr.Row)
			assert.Contains(t, perr.Reason, tt.reason)
		})
	}
}

func TestParse_LineNumbersCountBlankLines(t *testing.T) {
	data := exportOf(
		"",
		exchangeHeader,
		"42,2024-03-01 10:00:00,Spot,Buy,BTC,0.1,",
		"",
		"42,2024-03-01 10:00:00,Spot,Buy,BTC,zz,",
	)

	_, err := Parse(data, Options{})
	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 5, perr.Row)
}

func TestParse_PreferredDateFormat(t *testing.T) {
	data := exportOf(
		exchangeHeader,
		"42,03-01-2024,Spot,Buy,BTC,0.1,",
	)

	res, err := Parse(data, Options{DateFormat: "MM-DD-YYYY"})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), res.Rows[0].Timestamp)
}

func TestParse_DetectsDateFormat(t *testing.T) {
	res, err := Parse(exportOf(
		exchangeHeader,
		"42,01-03-2024 10:00:00,Spot,Buy,BTC,0.1,",
		"42,02-03-2024 11:00:00,Spot,Buy,EUR,-3000,",
	), Options{})
	require.NoError(t, err)
	assert.Equal(t, "DD-MM-YYYY HH:mm:ss", res.DateFormat)

	res, err = Parse(exportOf(
		exchangeHeader,
		"42,03-01-2024,Spot,Buy,BTC,0.1,",
	), Options{DateFormat: "MM-DD-YYYY"})
	require.NoError(t, err)
	assert.Equal(t, "MM-DD-YYYY", res.DateFormat)

	res, err = Parse(exportOf(
		exchangeHeader,
		"42,2024-03-01 10:00:00,Spot,Buy,BTC,0.1,",
		"42,01.03.2024,Spot,Buy,EUR,-3000,",
	), Options{})
	require.NoError(t, err)
	assert.Empty(t, res.DateFormat, "rows in different formats share none")
}

// Decimal commas are normalized per field after the split, so a comma
// export must quote them.
func TestParse_DecimalCommaInCommaExport(t *testing.T) {
	_, err := Parse(exportOf(
		exchangeHeader,
		"42,2024-03-01 10:00:00,Spot,Buy,BTC,0,1,",
	), Options{})
	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 2, perr.Row)
	assert.Contains(t, perr.Reason, "expected 7 columns, got 8")

	res, err := Parse(exportOf(
		exchangeHeader,
		`42,2024-03-01 10:00:00,Spot,Buy,BTC,"0,1",`,
	), Options{})
	require.NoError(t, err)
	assert.True(t, res.Rows[0].Amount.Equal(decimal.RequireFromString("0.1")))
	assert.Equal(t, "2024-03-01 10:00:00", res.Records[0].Fields["UTC_Time"], "header-adjacent fields are not merged")
}
