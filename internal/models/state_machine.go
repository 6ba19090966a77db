// Package models provides the entities of the options ledger and their lifecycle rules.
package models

import "fmt"

// PositionState represents the lifecycle state of a strategy or an alert.
type PositionState string

const (
	// StateOpen is a strategy held in the open collection
	StateOpen PositionState = "open"
	// StateClosed is a strategy retired to the closed collection
	StateClosed PositionState = "closed"

	// StateAlertActive is an alert still being evaluated
	StateAlertActive PositionState = "active"
	// StateAlertTriggered is an alert that has fired
	StateAlertTriggered PositionState = "triggered"
)

// Transition conditions
const (
	ConditionEdited       = "edited"
	ConditionRolled       = "rolled"
	ConditionClosed       = "closed"
	ConditionPriceCrossed = "price_crossed"
)

// StateTransition defines valid state transitions
type StateTransition struct {
	From        PositionState
	To          PositionState
	Condition   string
	Description string
}

// ValidTransitions lists every allowed lifecycle move. Closed strategies and
// triggered alerts have no outgoing transitions.
var ValidTransitions = []StateTransition{
	{StateOpen, StateOpen, ConditionEdited, "Legs and metadata replaced"},
	{StateOpen, StateOpen, ConditionRolled, "Single leg rolled to a new strike/expiration"},
	{StateOpen, StateClosed, ConditionClosed, "Strategy closed and P/L realized"},
	{StateAlertActive, StateAlertTriggered, ConditionPriceCrossed, "Quote satisfied the alert condition"},
}

// CheckTransition returns an error when from→to under condition is not allowed.
func CheckTransition(from, to PositionState, condition string) error {
	for _, t := range ValidTransitions {
		if t.From == from && t.To == to && t.Condition == condition {
			return nil
		}
	}
	return fmt.Errorf("invalid transition from %s to %s with condition '%s'", from, to, condition)
}

// State returns the lifecycle state of the strategy.
func (s *OptionStrategy) State() PositionState {
	if s.IsClosed() {
		return StateClosed
	}
	return StateOpen
}

// TransitionState validates that the strategy may move to the target state.
func (s *OptionStrategy) TransitionState(to PositionState, condition string) error {
	if err := CheckTransition(s.State(), to, condition); err != nil {
		return fmt.Errorf("strategy %s state transition failed: %w", s.ID, err)
	}
	return nil
}
