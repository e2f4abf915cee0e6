package ledger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Effect is the aggregate side effect of a transition.
type Effect int

const (
	EffectNone Effect = iota
	EffectCredit
	EffectDebit
)

func (e Effect) String() string {
	switch e {
	case EffectCredit:
		return "credit"
	case EffectDebit:
		return "debit"
	default:
		return "none"
	}
}

// transitionTable is the only place donation status legality is defined.
var transitionTable = map[DonationStatus]map[DonationStatus]Effect{
	StatusPending: {
		StatusCompleted: EffectCredit,
		StatusFailed:    EffectNone,
	},
	StatusCompleted: {
		StatusRefunded: EffectDebit,
	},
	StatusFailed:   {},
	StatusRefunded: {},
}

var (
	ErrInvalidTransition = errors.New("invalid donation status transition")
	ErrUnknownStatus     = errors.New("unknown donation status")
)

// Transition is one row of the transition table.
type Transition struct {
	From   DonationStatus
	To     DonationStatus
	Effect Effect
}

// Transitions returns the table rows in a stable order.
func Transitions() []Transition {
	out := make([]Transition, 0, 3)
	for _, from := range Statuses() {
		for _, to := range Statuses() {
			if eff, ok := transitionTable[from][to]; ok {
				out = append(out, Transition{From: from, To: to, Effect: eff})
			}
		}
	}
	return out
}

// Allowed reports whether from -> to is a table transition.
func Allowed(from, to DonationStatus) bool {
	_, ok := transitionTable[from][to]
	return ok
}

// TransitionPlan is the outcome of validating a requested status change against a donation.
type TransitionPlan struct {
	From   DonationStatus
	To     DonationStatus
	Effect Effect
	// Delta is the signed amount the campaign aggregate must absorb.
	Delta decimal.Decimal
	// Replay marks an idempotent COMPLETED re-delivery: nothing is written.
	Replay bool
	// BindTransactionID is set when the donation has no transaction id yet and one was supplied.
	BindTransactionID string
	// ExternalRef is a supplied id that is recorded on the audit row only.
	ExternalRef string
}

// Plan validates moving d to target. txID is the optional external transaction id.
// Re-applying COMPLETED is a replay only when txID matches the stored transaction id.
func Plan(d *Donation, target DonationStatus, txID string) (TransitionPlan, error) {
	if d == nil {
		return TransitionPlan{}, errors.New("donation is required")
	}
	if !target.Valid() {
		return TransitionPlan{}, fmt.Errorf("%w: %q", ErrUnknownStatus, string(target))
	}
	txID = strings.TrimSpace(txID)
	from := d.Status
	plan := TransitionPlan{From: from, To: target, Delta: decimal.Zero}

	if from == target {
		if from == StatusCompleted && txID != "" && txID == d.TxID() {
			plan.Replay = true
			return plan, nil
		}
		return TransitionPlan{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, target)
	}

	eff, ok := transitionTable[from][target]
	if !ok {
		return TransitionPlan{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, target)
	}
	plan.Effect = eff
	switch eff {
	case EffectCredit:
		plan.Delta = d.Amount
	case EffectDebit:
		plan.Delta = d.Amount.Neg()
	}

	if txID != "" {
		switch stored := d.TxID(); {
		case stored == "":
			plan.BindTransactionID = txID
		case stored != txID:
			plan.ExternalRef = txID
		}
	}
	return plan, nil
}
