package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/subcommands"

	"github.com/FACorreiaa/wealth-tracker/internal/domain/import/grouper"
	"github.com/FACorreiaa/wealth-tracker/internal/domain/import/overlay"
	"github.com/FACorreiaa/wealth-tracker/internal/domain/import/parser"
	importservice "github.com/FACorreiaa/wealth-tracker/internal/domain/import/service"
	"github.com/FACorreiaa/wealth-tracker/internal/domain/ledger"
)

// previewCmd stages an export file without touching the database.
type previewCmd struct {
	anchor     string
	timezone   string
	window     time.Duration
	maxRows    int
	dateFormat string
	exclude    listFlag
	eur        assignFlag
	price      assignFlag
	json       bool
	raw        bool
}

func (*previewCmd) Name() string     { return "preview" }
func (*previewCmd) Synopsis() string { return "group and value an exchange export" }
func (*previewCmd) Usage() string {
	return `stagectl preview [-anchor EUR] [-tz <zone>] [-exclude 1,2] [-eur 3=1400] [-json] <export.csv | ->

  Parses, classifies and groups an exchange export and shows which groups
  still need a EUR value. Edits given by -exclude, -eur and -price are
  applied before the report, which ends with the confirmation check.
`
}

func (c *previewCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.anchor, "anchor", "EUR", "Anchor currency of the valuation")
	f.StringVar(&c.timezone, "tz", "UTC", "Zone of naive timestamps")
	f.DurationVar(&c.window, "window", grouper.DefaultWindow, "Largest gap between rows of one group")
	f.IntVar(&c.maxRows, "max-rows", grouper.DefaultMaxRows, "Largest group size")
	f.StringVar(&c.dateFormat, "date-format", "", "Preferred timestamp layout, e.g. DD/MM/YYYY")
	f.Var(&c.exclude, "exclude", "Group indexes to exclude (repeatable, comma separated)")
	f.Var(&c.eur, "eur", "EUR total for a group as index=amount (repeatable)")
	f.Var(&c.price, "price", "EUR unit price for a group as index=price (repeatable)")
	f.BoolVar(&c.json, "json", false, "Print the staged groups as JSON")
	f.BoolVar(&c.raw, "raw", false, "Print plain markdown")
}

func (c *previewCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: expected exactly one export file (or - for stdin)")
		return subcommands.ExitUsageError
	}
	data, err := readInput(f.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading export: %v\n", err)
		return subcommands.ExitFailure
	}
	loc, err := time.LoadLocation(c.timezone)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing timezone: %v\n", err)
		return subcommands.ExitUsageError
	}

	pipeline := importservice.NewPipeline(importservice.Config{
		Grouping: grouper.Config{Window: c.window, MaxRows: c.maxRows},
		Assets:   ledger.NewAssets(c.anchor),
		Location: loc,
	})
	staged, err := pipeline.Stage(data, parser.Options{DateFormat: c.dateFormat})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error staging export: %v\n", err)
		return subcommands.ExitFailure
	}

	snapshot, err := c.applyEdits(staged.Snapshot)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error applying edits: %v\n", err)
		return subcommands.ExitUsageError
	}
	staged.Snapshot = snapshot

	if c.json {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(previewJSON(staged)); err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding preview: %v\n", err)
			return subcommands.ExitFailure
		}
	} else {
		printMarkdown(os.Stdout, PreviewMarkdown(staged, c.anchor), c.raw)
	}

	if err := snapshot.Validate(); err != nil {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *previewCmd) applyEdits(s *overlay.Snapshot) (*overlay.Snapshot, error) {
	var err error
	for _, raw := range c.exclude {
		idx, convErr := strconv.Atoi(raw)
		if convErr != nil {
			return nil, fmt.Errorf("invalid group index %q", raw)
		}
		if s, err = s.SetExcluded(idx, true); err != nil {
			return nil, err
		}
	}
	edits := []struct {
		pairs assignFlag
		apply func(*overlay.Snapshot, int, string) (*overlay.Snapshot, error)
	}{
		{c.eur, (*overlay.Snapshot).SetEURAmount},
		{c.price, (*overlay.Snapshot).SetUnitPrice},
	}
	for _, edit := range edits {
		for _, pair := range edit.pairs {
			rawIdx, value, _ := strings.Cut(pair, "=")
			idx, convErr := strconv.Atoi(strings.TrimSpace(rawIdx))
			if convErr != nil {
				return nil, fmt.Errorf("invalid group index %q", rawIdx)
			}
			if s, err = edit.apply(s, idx, value); err != nil {
				return nil, err
			}
		}
	}
	return s, nil
}

type previewOutput struct {
	Fingerprint string                    `json:"fingerprint"`
	Stats       overlay.Stats             `json:"stats"`
	Groups      []importservice.GroupView `json:"groups"`
	Unresolved  []int                     `json:"unresolved,omitempty"`
}

func previewJSON(staged *importservice.Staged) previewOutput {
	out := previewOutput{
		Fingerprint: staged.Parsed.Config.Fingerprint,
		Stats:       staged.Snapshot.Stats(),
	}
	for _, g := range staged.Snapshot.Groups() {
		out.Groups = append(out.Groups, importservice.GroupView{Group: g, Excluded: staged.Snapshot.Excluded(g.Index)})
	}
	var unresolved *overlay.UnresolvedError
	if errors.As(staged.Snapshot.Validate(), &unresolved) {
		out.Unresolved = unresolved.Indexes
	}
	return out
}

func readInput(name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(name)
}
