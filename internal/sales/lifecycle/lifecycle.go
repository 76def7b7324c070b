// Package lifecycle defines the sale order status machine.
package lifecycle

import (
	"fmt"

	"github.com/lensworks/lensworks/internal/shared"
)

// Status represents the lifecycle of a sale order.
type Status string

const (
	StatusDraft            Status = "DRAFT"
	StatusConfirmed        Status = "CONFIRMED"
	StatusInProduction     Status = "IN_PRODUCTION"
	StatusReadyForDispatch Status = "READY_FOR_DISPATCH"
	StatusDelivered        Status = "DELIVERED" // terminal
)

// IsValid checks if the status is known.
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusConfirmed, StatusInProduction, StatusReadyForDispatch, StatusDelivered:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	return s == StatusDelivered
}

// CanEdit checks if the full order may still be updated.
func (s Status) CanEdit() bool {
	return s.IsValid() && !s.IsTerminal()
}

// CanDelete checks if the order may be removed.
func (s Status) CanDelete() bool {
	return s == StatusDraft
}

// Action is a user-facing transition.
type Action struct {
	To    Status `json:"status"`
	Label string `json:"label"`
}

var transitions = map[Status][]Action{
	StatusDraft: {
		{To: StatusConfirmed, Label: "Confirm"},
		{To: StatusInProduction, Label: "Start Production"},
	},
	StatusConfirmed: {
		{To: StatusInProduction, Label: "Start Production"},
	},
	StatusInProduction: {
		{To: StatusReadyForDispatch, Label: "Ready for Dispatch"},
	},
	StatusReadyForDispatch: {
		{To: StatusDelivered, Label: "Mark as Delivered"},
	},
}

// Next lists the transitions available from s.
func Next(s Status) []Action {
	return append([]Action(nil), transitions[s]...)
}

// Transition returns nil when from -> to is explicitly legal. Anything else,
// including unknown states, is a conflict.
func Transition(from, to Status) error {
	if !from.IsValid() {
		return fmt.Errorf("%w: unknown current status %q", shared.ErrConflict, from)
	}
	if !to.IsValid() {
		return fmt.Errorf("%w: unknown target status %q", shared.ErrConflict, to)
	}
	for _, a := range transitions[from] {
		if a.To == to {
			return nil
		}
	}
	if from.IsTerminal() {
		return fmt.Errorf("%w: invalid status transition: %s is terminal", shared.ErrConflict, from)
	}
	return fmt.Errorf("%w: invalid status transition from %s to %s", shared.ErrConflict, from, to)
}

// Parse converts raw input into a Status.
func Parse(raw string) (Status, bool) {
	s := Status(raw)
	return s, s.IsValid()
}
