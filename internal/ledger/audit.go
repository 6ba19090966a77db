package ledger

import (
	"fmt"
	"sort"

	"github.com/eddiefleurent/options_tracker/internal/models"
)

// IssueKind classifies a problem found by Audit.
type IssueKind string

const (
	IssueOrphanedAccount IssueKind = "orphaned_account"
	IssueExpiredLeg      IssueKind = "expired_leg"
	IssueDuplicateLegID  IssueKind = "duplicate_leg_id"
	IssueInvalidLeg      IssueKind = "invalid_leg"
	IssueIncompleteClose IssueKind = "incomplete_close"
)

// Issue is one inconsistency in the stored state.
type Issue struct {
	Kind       IssueKind `json:"kind"`
	StrategyID string    `json:"strategyId,omitempty"`
	Detail     string    `json:"detail"`
}

// AuditReport summarizes the stored state and lists issues a user may want to fix.
type AuditReport struct {
	Accounts      int     `json:"accounts"`
	Open          int     `json:"open"`
	Closed        int     `json:"closed"`
	Alerts        int     `json:"alerts"`
	HistoryDays   int     `json:"historyDays"`
	OpenLegs      int     `json:"openLegs"`
	UniverseCount int     `json:"universe"`
	Issues        []Issue `json:"issues"`
}

// Audit inspects the state without changing it.
func (l *Ledger) Audit() AuditReport {
	l.mu.RLock()
	defer l.mu.RUnlock()

	r := AuditReport{
		Accounts:      len(l.accounts),
		Open:          len(l.open),
		Closed:        len(l.closed),
		Alerts:        len(l.alerts),
		HistoryDays:   len(l.history),
		UniverseCount: len(l.universe()),
	}
	add := func(kind IssueKind, id, format string, args ...any) {
		r.Issues = append(r.Issues, Issue{Kind: kind, StrategyID: id, Detail: fmt.Sprintf(format, args...)})
	}

	today := l.today()
	seenLeg := make(map[string]string)
	for _, s := range l.open {
		if !l.hasAccount(s.AccountID) {
			add(IssueOrphanedAccount, s.ID, "open strategy %q references unknown account %s", s.Name, s.AccountID)
		}
		for _, leg := range s.Legs {
			r.OpenLegs++
			if err := legInput(leg).Validate(); err != nil {
				add(IssueInvalidLeg, s.ID, "leg %s: %v", leg.ID, err)
			}
			if leg.Expiration < today {
				add(IssueExpiredLeg, s.ID, "leg %s %s expired %s and is still open", leg.ID, leg.Ticker, leg.Expiration)
			}
			if other, dup := seenLeg[leg.ID]; dup {
				add(IssueDuplicateLegID, s.ID, "leg id %s is also used by strategy %s", leg.ID, other)
			}
			seenLeg[leg.ID] = s.ID
		}
	}

	for _, s := range l.closed {
		if !l.hasAccount(s.AccountID) {
			add(IssueOrphanedAccount, s.ID, "closed strategy %q references unknown account %s", s.Name, s.AccountID)
		}
		if s.CloseDate == "" || s.RealizedPL == nil {
			add(IssueIncompleteClose, s.ID, "closed strategy %q has no close date or realized P/L", s.Name)
		}
	}

	sort.SliceStable(r.Issues, func(i, j int) bool { return r.Issues[i].Kind < r.Issues[j].Kind })
	return r
}

// legInput is the input a stored leg would have been entered with. A long leg
// rolled for more premium than it cost carries a net credit, so a negative
// purchase price is accepted here.
func legInput(leg models.OptionLeg) models.LegInput {
	price := leg.PurchasePrice
	if leg.Action == models.ActionBuy && price < 0 {
		price = 0
	}
	return models.LegInput{
		Ticker:        leg.Ticker,
		Type:          leg.Type,
		Action:        leg.Action,
		Strike:        leg.Strike,
		Expiration:    leg.Expiration,
		PurchasePrice: price,
		Contracts:     leg.Contracts,
	}
}
