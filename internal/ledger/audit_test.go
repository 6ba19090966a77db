package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddiefleurent/options_tracker/internal/models"
	"github.com/eddiefleurent/options_tracker/internal/storage"
)

func TestLedger_AuditCleanState(t *testing.T) {
	f := newFixture(t)
	acc := f.account(t)
	f.open(t, strategy("SPY put", acc, leg("SPY", models.OptionTypePut, models.ActionSell, 450, 2, 1)))
	_, err := f.ledger.AddToWatchlist("qqq")
	require.NoError(t, err)

	r := f.ledger.Audit()
	assert.Empty(t, r.Issues)
	assert.Equal(t, 1, r.Accounts)
	assert.Equal(t, 1, r.Open)
	assert.Equal(t, 1, r.OpenLegs)
	assert.Equal(t, 2, r.UniverseCount)
}

func TestLedger_AuditFindsIssues(t *testing.T) {
	kv := storage.NewMemoryKV()
	kv.Put(storage.KeyAccounts, `[{"id":"a1","name":"Main","broker":"IBKR"}]`)
	kv.Put(storage.KeyPositions, `[
		{"id":"s1","name":"Old put","accountId":"gone","openDate":"2026-08-01","legs":[
			{"id":"l1","ticker":"SPY","type":"PUT","action":"SELL","strike":400,"expiration":"2026-09-19","purchasePrice":1,"contracts":1}]},
		{"id":"s2","name":"Broken","accountId":"a1","openDate":"2026-10-01","legs":[
			{"id":"l1","ticker":"QQQ","type":"STRADDLE","action":"BUY","strike":350,"expiration":"2026-12-18","purchasePrice":1,"contracts":1}]}
	]`)
	kv.Put(storage.KeyClosedPositions, `[{"id":"s3","name":"Half closed","accountId":"a1","openDate":"2026-09-01","legs":[]}]`)

	f := openFixture(t, kv)
	r := f.ledger.Audit()

	kinds := make(map[IssueKind][]string)
	for _, is := range r.Issues {
		kinds[is.Kind] = append(kinds[is.Kind], is.StrategyID)
	}
	assert.Equal(t, []string{"s1"}, kinds[IssueOrphanedAccount])
	assert.Equal(t, []string{"s1"}, kinds[IssueExpiredLeg])
	assert.Equal(t, []string{"s2"}, kinds[IssueDuplicateLegID])
	assert.Equal(t, []string{"s2"}, kinds[IssueInvalidLeg])
	assert.Equal(t, []string{"s3"}, kinds[IssueIncompleteClose])

	assert.Equal(t, 2, r.Open)
	assert.Equal(t, 1, r.Closed)
	assert.Equal(t, 2, r.OpenLegs)
	for i := 1; i < len(r.Issues); i++ {
		assert.LessOrEqual(t, r.Issues[i-1].Kind, r.Issues[i].Kind)
	}
}

func TestLedger_AuditAcceptsLongLegRolledToCredit(t *testing.T) {
	f := newFixture(t)
	acc := f.account(t)
	s := f.open(t, strategy("AAPL call", acc, leg("AAPL", models.OptionTypeCall, models.ActionBuy, 200, 2, 1)))

	rolled, err := f.ledger.RollStrategy(s.ID, RollInput{NewStrike: 210, NewExpiration: "2027-01-15", RollPremium: 3})
	require.NoError(t, err)
	require.Len(t, rolled.Legs, 1)
	assert.InDelta(t, -1, rolled.Legs[0].PurchasePrice, 1e-9)
	assert.InDelta(t, 100, rolled.TotalPL, 1e-9)

	assert.Empty(t, f.ledger.Audit().Issues)

	// Edits go through entry validation, which still requires a price >= 0.
	in := strategy(rolled.Name, acc, models.LegInput{
		Ticker: "AAPL", Type: models.OptionTypeCall, Action: models.ActionBuy,
		Strike: 210, Expiration: "2027-01-15", PurchasePrice: rolled.Legs[0].PurchasePrice, Contracts: 1,
	})
	_, err = f.ledger.EditStrategy(s.ID, in)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
