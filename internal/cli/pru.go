package cli

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/wealth-tracker/internal/domain/costbasis"
	"github.com/FACorreiaa/wealth-tracker/internal/domain/import/normalizer"
	"github.com/FACorreiaa/wealth-tracker/internal/domain/ledger"
)

// pruCmd previews the unit cost of one acquisition.
type pruCmd struct {
	principal string
	qty       string
	feeMode   string
	fee       string
	currency  string
}

func (*pruCmd) Name() string     { return "pru" }
func (*pruCmd) Synopsis() string { return "preview the unit cost of an acquisition" }
func (*pruCmd) Usage() string {
	return `stagectl pru -principal <eur> -qty <quantity> [-fee-mode separate -fee <eur>] [-currency EUR]

  Prints (principal + separate fee) / quantity. Amounts accept both
  1,234.56 and 1.234,56 notations.
`
}

func (c *pruCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.principal, "principal", "", "EUR value spent")
	f.StringVar(&c.qty, "qty", "", "Quantity received")
	f.StringVar(&c.feeMode, "fee-mode", "none", "Fee mode: none, included, separate or token")
	f.StringVar(&c.fee, "fee", "", "Fee in EUR")
	f.StringVar(&c.currency, "currency", "EUR", "Display currency")
}

func (c *pruCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	in, err := c.input()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	pru, err := costbasis.Preview(in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Println(costbasis.FormatPRU(pru, c.currency))
	return subcommands.ExitSuccess
}

func (c *pruCmd) input() (costbasis.Input, error) {
	var in costbasis.Input
	principal, err := normalizer.ParseLocaleAmount(c.principal)
	if err != nil {
		return in, fmt.Errorf("invalid -principal: %w", err)
	}
	qty, err := normalizer.ParseLocaleAmount(c.qty)
	if err != nil {
		return in, fmt.Errorf("invalid -qty: %w", err)
	}
	mode, err := ledger.ParseFeeMode(c.feeMode)
	if err != nil {
		return in, err
	}
	fee := decimal.Zero
	if c.fee != "" {
		if fee, err = normalizer.ParseLocaleAmount(c.fee); err != nil {
			return in, fmt.Errorf("invalid -fee: %w", err)
		}
	}
	return costbasis.Input{PrincipalEUR: principal, Quantity: qty, FeeMode: mode, FeeEUR: fee}, nil
}
