// Package overlay holds the user's exclusions and valuation edits on top of
// a previewed import. Snapshots are immutable; every edit returns a new one.
package overlay

import (
	"errors"
	"fmt"

	"github.com/samber/lo"

	"github.com/FACorreiaa/wealth-tracker/internal/domain/import/valuation"
	"github.com/FACorreiaa/wealth-tracker/internal/domain/ledger"
)

var (
	ErrUnknownGroup  = errors.New("unknown group")
	ErrUnresolved    = errors.New("groups still need a EUR value")
	ErrNothingToSend = errors.New("every group is excluded")
)

// UnresolvedError lists the included groups that still need a EUR value.
type UnresolvedError struct {
	Indexes []int
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("%v: %v", ErrUnresolved, e.Indexes)
}

func (e *UnresolvedError) Unwrap() error { return ErrUnresolved }

// Stats summarises a snapshot for display.
type Stats struct {
	TotalGroups      int `json:"total_groups"`
	TotalRows        int `json:"total_rows"`
	IncludedGroups   int `json:"included_groups"`
	IncludedRows     int `json:"included_rows"`
	GroupsNeedingEUR int `json:"groups_needing_eur"`
}

// Payload is what gets handed to the commit collaborator.
type Payload struct {
	Groups      []ledger.Group
	GroupsCount int
	RowsCount   int
}

// Snapshot is one immutable state of the staged import. Groups live in an
// arena in preview order; index maps group_index to arena position.
type Snapshot struct {
	arena    []ledger.Group
	index    map[int]int
	excluded map[int]bool
	resolver valuation.Resolver
}

// New builds the first snapshot of a preview. Crypto-to-crypto withdrawal
// groups get SuggestExclude; every group starts included.
func New(groups []ledger.Group, resolver valuation.Resolver, assets ledger.Assets) *Snapshot {
	s := &Snapshot{
		arena:    make([]ledger.Group, len(groups)),
		index:    make(map[int]int, len(groups)),
		excluded: map[int]bool{},
		resolver: resolver,
	}
	for i, g := range groups {
		g.SuggestExclude = IsCryptoWithdrawal(g, assets)
		s.arena[i] = g
		s.index[g.Index] = i
	}
	return s
}

// IsCryptoWithdrawal reports groups that only move crypto out of the
// account: at least one outgoing crypto TRANSFER, nothing bought, earned or
// settled in fiat.
func IsCryptoWithdrawal(g ledger.Group, assets ledger.Assets) bool {
	outgoing := false
	for _, row := range g.Rows {
		switch row.Kind {
		case ledger.OpTransfer:
			if row.Amount.IsNegative() && !assets.IsFiat(row.Symbol) {
				outgoing = true
			} else if !row.Amount.IsNegative() {
				return false
			}
		case ledger.OpFee:
			// network fee of the withdrawal
		default:
			return false
		}
	}
	return outgoing
}

func (s *Snapshot) clone() *Snapshot {
	next := &Snapshot{
		arena:    make([]ledger.Group, len(s.arena)),
		index:    s.index,
		excluded: make(map[int]bool, len(s.excluded)),
		resolver: s.resolver,
	}
	copy(next.arena, s.arena)
	for k, v := range s.excluded {
		next.excluded[k] = v
	}
	return next
}

func (s *Snapshot) replace(groupIndex int, edit func(ledger.Group) ledger.Group) (*Snapshot, error) {
	pos, ok := s.index[groupIndex]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownGroup, groupIndex)
	}
	next := s.clone()
	next.arena[pos] = edit(s.arena[pos])
	return next, nil
}

// Groups returns every group in preview order.
func (s *Snapshot) Groups() []ledger.Group {
	out := make([]ledger.Group, len(s.arena))
	copy(out, s.arena)
	return out
}

// Group returns one group by its index.
func (s *Snapshot) Group(groupIndex int) (ledger.Group, bool) {
	pos, ok := s.index[groupIndex]
	if !ok {
		return ledger.Group{}, false
	}
	return s.arena[pos], true
}

// Excluded reports whether a group is toggled out.
func (s *Snapshot) Excluded(groupIndex int) bool {
	return s.excluded[groupIndex]
}

// Toggle flips the inclusion of one group.
func (s *Snapshot) Toggle(groupIndex int) (*Snapshot, error) {
	return s.SetExcluded(groupIndex, !s.excluded[groupIndex])
}

// SetExcluded sets the inclusion of one group.
func (s *Snapshot) SetExcluded(groupIndex int, excluded bool) (*Snapshot, error) {
	if _, ok := s.index[groupIndex]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownGroup, groupIndex)
	}
	next := s.clone()
	if excluded {
		next.excluded[groupIndex] = true
	} else {
		delete(next.excluded, groupIndex)
	}
	return next, nil
}

// SetEURAmount records a user-entered EUR total for one group.
func (s *Snapshot) SetEURAmount(groupIndex int, raw string) (*Snapshot, error) {
	return s.replace(groupIndex, func(g ledger.Group) ledger.Group {
		return s.resolver.SetEURAmount(g, raw)
	})
}

// SetUnitPrice derives a group's EUR total from a per-unit price.
func (s *Snapshot) SetUnitPrice(groupIndex int, raw string) (*Snapshot, error) {
	return s.replace(groupIndex, func(g ledger.Group) ledger.Group {
		return s.resolver.SetUnitPrice(g, raw)
	})
}

func (s *Snapshot) included() []ledger.Group {
	return lo.Filter(s.arena, func(g ledger.Group, _ int) bool {
		return !s.excluded[g.Index]
	})
}

// Stats counts groups and rows, overall and included.
func (s *Snapshot) Stats() Stats {
	included := s.included()
	return Stats{
		TotalGroups:    len(s.arena),
		TotalRows:      ledger.CountRows(s.arena),
		IncludedGroups: len(included),
		IncludedRows:   ledger.CountRows(included),
		GroupsNeedingEUR: lo.CountBy(included, func(g ledger.Group) bool {
			return !g.Resolved()
		}),
	}
}

// Validate blocks confirmation while an included group needs a EUR value.
func (s *Snapshot) Validate() error {
	included := s.included()
	if len(included) == 0 {
		return ErrNothingToSend
	}
	pending := lo.FilterMap(included, func(g ledger.Group, _ int) (int, bool) {
		return g.Index, !g.Resolved()
	})
	if len(pending) > 0 {
		return &UnresolvedError{Indexes: pending}
	}
	for _, g := range included {
		if err := g.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Payload returns the included groups after validation.
func (s *Snapshot) Payload() (Payload, error) {
	if err := s.Validate(); err != nil {
		return Payload{}, err
	}
	included := s.included()
	return Payload{
		Groups:      included,
		GroupsCount: len(included),
		RowsCount:   ledger.CountRows(included),
	}, nil
}
