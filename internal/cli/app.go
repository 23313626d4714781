// Package cli implements stagectl, an offline companion to the staging API:
// it previews exchange exports, computes cost-basis previews and applies
// database migrations.
package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"

	"github.com/FACorreiaa/wealth-tracker/internal/domain/ledger"
)

// Register the subcommands.
func Register(c *subcommands.Commander) {
	c.Register(&previewCmd{}, "staging")
	c.Register(&pruCmd{}, "staging")
	c.Register(&migrateCmd{}, "database")
}

// Completion describes the command line for shell completion.
func Completion() *complete.Command {
	feeModes := predict.Set{
		ledger.FeeNone.String(),
		ledger.FeeIncluded.String(),
		ledger.FeeSeparate.String(),
		ledger.FeeToken.String(),
	}
	return &complete.Command{
		Sub: map[string]*complete.Command{
			"preview": {
				Flags: map[string]complete.Predictor{
					"anchor":      predict.Set{"EUR", "USD", "GBP", "CHF"},
					"tz":          predict.Something,
					"window":      predict.Something,
					"max-rows":    predict.Something,
					"date-format": predict.Set{"YYYY-MM-DD HH:mm:ss", "DD/MM/YYYY", "MM-DD-YYYY"},
					"exclude":     predict.Something,
					"eur":         predict.Something,
					"price":       predict.Something,
					"json":        predict.Nothing,
					"raw":         predict.Nothing,
				},
				Args: predict.Files("*.csv"),
			},
			"pru": {
				Flags: map[string]complete.Predictor{
					"principal": predict.Something,
					"qty":       predict.Something,
					"fee-mode":  feeModes,
					"fee":       predict.Something,
					"currency":  predict.Set{"EUR", "USD", "GBP", "CHF"},
				},
			},
			"migrate":  {},
			"help":     {},
			"flags":    {},
			"commands": {},
		},
	}
}

// printMarkdown renders md for the terminal, falling back to the raw text.
func printMarkdown(w io.Writer, md string, raw bool) {
	if !raw {
		r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(120))
		if err == nil {
			if out, err := r.Render(md); err == nil {
				fmt.Fprint(w, out)
				return
			}
		}
	}
	fmt.Fprint(w, md)
}

// listFlag collects repeated or comma separated flag values.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(v string) error {
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*l = append(*l, part)
		}
	}
	return nil
}

// assignFlag collects repeated index=value pairs.
type assignFlag []string

func (a *assignFlag) String() string { return strings.Join(*a, " ") }

func (a *assignFlag) Set(v string) error {
	if !strings.Contains(v, "=") {
		return fmt.Errorf("expected index=value, got %q", v)
	}
	*a = append(*a, v)
	return nil
}
