// Package grouper clusters classified rows that belong to one user action.
package grouper

import (
	"time"

	"github.com/FACorreiaa/wealth-tracker/internal/domain/ledger"
)

const (
	DefaultWindow  = 2 * time.Second
	DefaultMaxRows = 16
)

// Config controls the proximity window and the per-group row cap.
type Config struct {
	Window  time.Duration
	MaxRows int
}

// DefaultConfig returns the grouping heuristic tuned for exchange exports,
// where the legs of one trade share a timestamp or differ by a second.
func DefaultConfig() Config {
	return Config{Window: DefaultWindow, MaxRows: DefaultMaxRows}
}

func (c Config) normalized() Config {
	if c.Window < 0 {
		c.Window = 0
	}
	if c.MaxRows <= 0 {
		c.MaxRows = DefaultMaxRows
	}
	return c
}

// Group scans rows in order and starts a new group whenever a row falls
// outside the anchor's window or the running group is full. Rows sharing the
// anchor's exact timestamp always join. Summary, index and timestamp are set;
// valuation flags are left to the valuation resolver.
func Group(rows []ledger.ClassifiedRow, cfg Config) []ledger.Group {
	cfg = cfg.normalized()

	var groups []ledger.Group
	var current *ledger.Group

	for _, row := range rows {
		if current != nil && joins(current, row, cfg) {
			current.Rows = append(current.Rows, row)
			continue
		}
		if current != nil {
			groups = append(groups, finish(*current))
		}
		current = &ledger.Group{
			Index:     len(groups),
			Timestamp: row.Timestamp(),
			Rows:      []ledger.ClassifiedRow{row},
		}
	}
	if current != nil {
		groups = append(groups, finish(*current))
	}

	return groups
}

func joins(g *ledger.Group, row ledger.ClassifiedRow, cfg Config) bool {
	ts := row.Timestamp()
	if ts.Equal(g.Timestamp) {
		return true
	}
	delta := ts.Sub(g.Timestamp)
	if delta < 0 {
		delta = -delta
	}
	return delta <= cfg.Window && len(g.Rows) < cfg.MaxRows
}

func finish(g ledger.Group) ledger.Group {
	g.Summary = ledger.Summarize(g.Rows)
	return g
}
