// Package wizard drives manual entry of one composite transaction through
// conditional steps. All state changes go through Machine.Transition.
package wizard

import (
	"errors"
	"fmt"
	"time"

	"github.com/FACorreiaa/wealth-tracker/internal/domain/fees"
	"github.com/FACorreiaa/wealth-tracker/internal/domain/ledger"
)

type Step int

const (
	StepReceived Step = iota + 1
	StepSpent
	StepFees
	StepSubmit
	StepDone
	StepCancelled
)

var stepNames = map[Step]string{
	StepReceived:  "received",
	StepSpent:     "spent",
	StepFees:      "fees",
	StepSubmit:    "submit",
	StepDone:      "done",
	StepCancelled: "cancelled",
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return "unknown"
}

func (s Step) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Step) UnmarshalText(text []byte) error {
	for step, name := range stepNames {
		if name == string(text) {
			*s = step
			return nil
		}
	}
	return fmt.Errorf("unknown step %q", text)
}

// Terminal reports whether no further event is accepted.
func (s Step) Terminal() bool {
	return s == StepDone || s == StepCancelled
}

var (
	ErrTerminal        = errors.New("transaction is already finished")
	ErrEventNotAllowed = errors.New("event not allowed at this step")
)

// State is the wizard's full state. Payload is set once the transaction is
// confirmed.
type State struct {
	Step    Step                     `json:"step"`
	Tx      ledger.StagedTransaction `json:"transaction"`
	Payload *ledger.Payload          `json:"payload,omitempty"`
}

// Steps lists the steps visited for kind, in order.
func Steps(kind ledger.TransactionKind) []Step {
	steps := []Step{StepReceived}
	if kind.HasQuoteLeg() {
		steps = append(steps, StepSpent)
	}
	if kind.AcceptsFee() {
		steps = append(steps, StepFees)
	}
	return append(steps, StepSubmit)
}

func neighbour(kind ledger.TransactionKind, from Step, delta int) (Step, bool) {
	steps := Steps(kind)
	for i, s := range steps {
		if s == from {
			j := i + delta
			if j < 0 || j >= len(steps) {
				return from, false
			}
			return steps[j], true
		}
	}
	return from, false
}

// allowed lists the steps each event may be applied at.
var allowed = map[string][]Step{
	"SetKind":       {StepReceived},
	"SetReceived":   {StepReceived},
	"SetOrigin":     {StepReceived, StepSpent},
	"SetSpent":      {StepSpent},
	"SetFeeMode":    {StepFees},
	"SetFee":        {StepFees},
	"SetExecutedAt": {StepReceived, StepSpent, StepFees},
	"Next":          {StepReceived, StepSpent, StepFees},
	"Back":          {StepSpent, StepFees, StepSubmit},
	"Confirm":       {StepSubmit},
	"Cancel":        {StepReceived, StepSpent, StepFees, StepSubmit},
}

// Machine validates and applies wizard events.
type Machine struct {
	assets ledger.Assets
}

func NewMachine(assets ledger.Assets) Machine {
	return Machine{assets: assets}
}

// Start opens a fiat purchase paid in the anchor currency.
func (m Machine) Start(now time.Time) State {
	return State{
		Step: StepReceived,
		Tx: ledger.StagedTransaction{
			Kind:        ledger.KindBuyFiat,
			QuoteSymbol: m.assets.Anchor,
			Fee:         fees.Spec{Mode: fees.ModeNone},
			ExecutedAt:  now.UTC(),
		},
	}
}

// Transition applies e to s. On error the returned state is s unchanged;
// validation problems come back as fees.FieldErrors.
func (m Machine) Transition(s State, e Event) (State, error) {
	if s.Step.Terminal() {
		return s, ErrTerminal
	}
	name := e.Name()
	if !stepIn(s.Step, allowed[name]) {
		return s, fmt.Errorf("%w: %s at step %s", ErrEventNotAllowed, name, s.Step)
	}

	next := s
	switch ev := e.(type) {
	case SetKind:
		if ev.Kind.String() == "UNKNOWN" {
			return s, fees.FieldErrors{{Field: "kind", Message: "choose a transaction type"}}
		}
		if ev.Kind != s.Tx.Kind {
			next.Step = StepReceived
			next.Tx.Kind = ev.Kind
			next.Tx.Fee = fees.Spec{Mode: fees.ModeNone}
			if !ev.Kind.HasQuoteLeg() {
				next.Tx.QuoteSymbol = ""
				next.Tx.QuoteAmount.Valid = false
			} else if next.Tx.QuoteSymbol == "" && ev.Kind == ledger.KindBuyFiat {
				next.Tx.QuoteSymbol = m.assets.Anchor
			}
		}
	case SetReceived:
		amount, err := parseQuantity("amount", ev.Amount)
		if err != nil {
			return s, err
		}
		next.Tx.Symbol = ledger.NormalizeSymbol(ev.Symbol)
		next.Tx.Amount = amount
	case SetSpent:
		amount, err := parseQuantity("quote_amount", ev.Amount)
		if err != nil {
			return s, err
		}
		next.Tx.QuoteSymbol = ledger.NormalizeSymbol(ev.Symbol)
		next.Tx.QuoteAmount = amount
	case SetOrigin:
		amount, err := parseQuantity("eur_amount", ev.EURAmount)
		if err != nil {
			return s, err
		}
		next.Tx.EURAmount = amount
	case SetFeeMode:
		next.Tx.Fee = fees.SwitchMode(s.Tx.Fee, ev.Mode)
	case SetFee:
		spec, err := ev.apply(s.Tx.Fee)
		if err != nil {
			return s, err
		}
		next.Tx.Fee = spec
	case SetExecutedAt:
		next.Tx.ExecutedAt = ev.At.UTC()
	case Next:
		if errs := m.ValidateStep(s.Tx, s.Step); errs != nil {
			return s, errs
		}
		if step, ok := neighbour(s.Tx.Kind, s.Step, 1); ok {
			next.Step = step
		}
	case Back:
		if step, ok := neighbour(s.Tx.Kind, s.Step, -1); ok {
			next.Step = step
		}
	case Confirm:
		payload, err := m.BuildPayload(s.Tx)
		if err != nil {
			return s, err
		}
		next.Step = StepDone
		next.Payload = &payload
	case Cancel:
		next = State{Step: StepCancelled}
	default:
		return s, fmt.Errorf("%w: %T", ErrEventNotAllowed, e)
	}
	return next, nil
}

func stepIn(step Step, steps []Step) bool {
	for _, s := range steps {
		if s == step {
			return true
		}
	}
	return false
}
