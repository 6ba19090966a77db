package models

import (
	"fmt"
	"time"
)

// AlertCondition is the direction a price must cross.
type AlertCondition string

// AlertStatus is ACTIVE until the condition is met, then TRIGGERED forever.
type AlertStatus string

const (
	// ConditionAbove fires when price >= target
	ConditionAbove AlertCondition = "above"
	// ConditionBelow fires when price <= target
	ConditionBelow AlertCondition = "below"

	// AlertActive is evaluated on every refresh
	AlertActive AlertStatus = "active"
	// AlertTriggered is excluded from evaluation
	AlertTriggered AlertStatus = "triggered"
)

// Valid returns true if the AlertCondition is one of the defined constants
func (c AlertCondition) Valid() bool {
	return c == ConditionAbove || c == ConditionBelow
}

// PriceAlert is a one-shot price threshold on a ticker.
type PriceAlert struct {
	ID          string         `json:"id"`
	Ticker      string         `json:"ticker"`
	TargetPrice float64        `json:"targetPrice"`
	Condition   AlertCondition `json:"condition"`
	Status      AlertStatus    `json:"status"`
	CreatedAt   time.Time      `json:"createdAt"`
	TriggeredAt *time.Time     `json:"triggeredAt,omitempty"`
}

// CheckCondition reports whether price satisfies the alert. Boundaries are inclusive.
func (a *PriceAlert) CheckCondition(price float64) bool {
	if a.Status != AlertActive {
		return false
	}
	switch a.Condition {
	case ConditionAbove:
		return price >= a.TargetPrice
	case ConditionBelow:
		return price <= a.TargetPrice
	default:
		return false
	}
}

// Trigger moves the alert to TRIGGERED. It fails if the alert already fired.
func (a *PriceAlert) Trigger(at time.Time) error {
	if err := CheckTransition(PositionState(a.Status), StateAlertTriggered, ConditionPriceCrossed); err != nil {
		return fmt.Errorf("alert %s: %w", a.ID, err)
	}
	a.Status = AlertTriggered
	ts := at.UTC()
	a.TriggeredAt = &ts
	return nil
}

// Clone returns a copy that does not share the TriggeredAt pointer.
func (a PriceAlert) Clone() PriceAlert {
	out := a
	if a.TriggeredAt != nil {
		ts := *a.TriggeredAt
		out.TriggeredAt = &ts
	}
	return out
}
