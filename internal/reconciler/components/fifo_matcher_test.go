package components

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"log/slog"

	"github.com/rewards-reconciler/internal/domain/ledger"
	"github.com/rewards-reconciler/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// newTx builds a validated transaction at baseTime plus the given number of hours
func newTx(customerID, txID string, txType shared.TransactionType, amount int64, hour int) ledger.Transaction {
	return ledger.Transaction{
		TransactionID: txID,
		CustomerID:    customerID,
		Type:          txType,
		Amount:        decimal.NewFromInt(amount),
		CreatedAt:     baseTime.Add(time.Duration(hour) * time.Hour),
	}
}

func earned(id string, amount int64, hour int) ledger.Transaction {
	return newTx("C", id, shared.TransactionTypeEarned, amount, hour)
}

func spent(id string, amount int64, hour int) ledger.Transaction {
	return newTx("C", id, shared.TransactionTypeSpent, amount, hour)
}

func expired(id string, amount int64, hour int) ledger.Transaction {
	return newTx("C", id, shared.TransactionTypeExpired, amount, hour)
}

func redeemIDs(outcome ledger.MatchOutcome) map[string]string {
	links := make(map[string]string)
	for _, tx := range outcome.Ledger {
		if tx.RedeemID != nil {
			links[tx.TransactionID] = *tx.RedeemID
		}
	}
	return links
}

func orphanIDs(outcome ledger.MatchOutcome) []string {
	ids := make([]string, 0, len(outcome.Orphans))
	for _, o := range outcome.Orphans {
		ids = append(ids, o.Transaction.TransactionID)
	}
	return ids
}

func unconsumedIDs(outcome ledger.MatchOutcome) []string {
	ids := make([]string, 0, len(outcome.Unconsumed))
	for _, tx := range outcome.Unconsumed {
		ids = append(ids, tx.TransactionID)
	}
	return ids
}

func TestFIFOMatcher_Match_Scenarios(t *testing.T) {
	matcher := NewFIFOMatcher()

	tests := []struct {
		name             string
		txs              []ledger.Transaction
		expectLinks      map[string]string
		expectOrphans    []string
		expectUnconsumed []string
	}{
		{
			name: "interleaved earns and spends",
			txs: []ledger.Transaction{
				earned("E1", 100, 1),
				earned("E2", 50, 3),
				spent("S1", -60, 2),
				spent("S2", -30, 4),
			},
			expectLinks:      map[string]string{"S1": "E1", "S2": "E2"},
			expectOrphans:    []string{},
			expectUnconsumed: []string{},
		},
		{
			name: "spend beyond available earn is orphaned",
			txs: []ledger.Transaction{
				earned("E1", 100, 1),
				spent("S1", -50, 2),
				spent("S2", -80, 3),
			},
			expectLinks:      map[string]string{"S1": "E1"},
			expectOrphans:    []string{"S2"},
			expectUnconsumed: []string{},
		},
		{
			name: "one to one without splitting amounts",
			txs: []ledger.Transaction{
				earned("E1", 10, 1),
				spent("S1", -500, 2),
			},
			expectLinks:      map[string]string{"S1": "E1"},
			expectOrphans:    []string{},
			expectUnconsumed: []string{},
		},
		{
			name: "oldest earn is consumed first",
			txs: []ledger.Transaction{
				earned("E2", 20, 2),
				earned("E1", 10, 1),
				spent("S1", -5, 3),
			},
			expectLinks:      map[string]string{"S1": "E1"},
			expectOrphans:    []string{},
			expectUnconsumed: []string{"E2"},
		},
		{
			name: "one earn against multiple spends",
			txs: []ledger.Transaction{
				earned("E1", 100, 1),
				spent("S1", -10, 2),
				spent("S2", -10, 3),
				spent("S3", -10, 4),
			},
			expectLinks:      map[string]string{"S1": "E1"},
			expectOrphans:    []string{"S2", "S3"},
			expectUnconsumed: []string{},
		},
		{
			name: "expired consumes like spent",
			txs: []ledger.Transaction{
				earned("E1", 40, 1),
				earned("E2", 40, 2),
				expired("X1", -40, 3),
				spent("S1", -40, 4),
			},
			expectLinks:      map[string]string{"X1": "E1", "S1": "E2"},
			expectOrphans:    []string{},
			expectUnconsumed: []string{},
		},
		{
			name: "spend before any earn is orphaned without advancing the cursor",
			txs: []ledger.Transaction{
				spent("S1", -10, 1),
				earned("E1", 10, 2),
				spent("S2", -10, 3),
			},
			expectLinks:      map[string]string{"S2": "E1"},
			expectOrphans:    []string{"S1"},
			expectUnconsumed: []string{},
		},
		{
			name: "earn at the same instant as the spend is available",
			txs: []ledger.Transaction{
				earned("E1", 10, 5),
				spent("S1", -10, 5),
			},
			expectLinks:      map[string]string{"S1": "E1"},
			expectOrphans:    []string{},
			expectUnconsumed: []string{},
		},
		{
			name: "timestamp ties are broken by transaction id",
			txs: []ledger.Transaction{
				earned("E-b", 10, 1),
				earned("E-a", 10, 1),
				spent("S1", -10, 2),
			},
			expectLinks:      map[string]string{"S1": "E-a"},
			expectOrphans:    []string{},
			expectUnconsumed: []string{"E-b"},
		},
		{
			name:             "only earns",
			txs:              []ledger.Transaction{earned("E1", 10, 1), earned("E2", 10, 2)},
			expectLinks:      map[string]string{},
			expectOrphans:    []string{},
			expectUnconsumed: []string{"E1", "E2"},
		},
		{
			name:             "empty input",
			txs:              nil,
			expectLinks:      map[string]string{},
			expectOrphans:    []string{},
			expectUnconsumed: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := matcher.Match("C", tt.txs)

			assert.Equal(t, "C", outcome.CustomerID)
			assert.Equal(t, tt.expectLinks, redeemIDs(outcome))
			assert.Equal(t, tt.expectOrphans, orphanIDs(outcome))
			assert.Equal(t, tt.expectUnconsumed, unconsumedIDs(outcome))
			assert.Len(t, outcome.Ledger, len(tt.txs))
			assert.Len(t, outcome.Matches, len(tt.expectLinks))

			for _, o := range outcome.Orphans {
				assert.Equal(t, shared.ReasonInsufficientEarnedBalance, o.Reason)
				assert.Nil(t, o.Transaction.RedeemID)
			}
		})
	}
}

func TestFIFOMatcher_Match_BackLinks(t *testing.T) {
	outcome := NewFIFOMatcher().Match("C", []ledger.Transaction{
		earned("E1", 100, 1),
		spent("S1", -60, 2),
	})

	require.Len(t, outcome.Ledger, 2)
	e1, s1 := outcome.Ledger[0], outcome.Ledger[1]
	require.NotNil(t, e1.ConsumedBy)
	assert.Equal(t, "S1", *e1.ConsumedBy)
	assert.Nil(t, e1.RedeemID)
	require.NotNil(t, s1.RedeemID)
	assert.Equal(t, "E1", *s1.RedeemID)
	assert.Nil(t, s1.ConsumedBy)
	assert.Equal(t, []ledger.Match{{EarnedID: "E1", SpendID: "S1"}}, outcome.Matches)
}

func TestFIFOMatcher_Match_DoesNotMutateInput(t *testing.T) {
	stale := "stale"
	input := []ledger.Transaction{
		spent("S1", -10, 2),
		earned("E1", 10, 1),
	}
	input[0].RedeemID = &stale

	outcome := NewFIFOMatcher().Match("C", input)

	assert.Equal(t, "S1", input[0].TransactionID, "input order is preserved")
	assert.Equal(t, &stale, input[0].RedeemID)
	assert.Nil(t, input[1].ConsumedBy)
	assert.Equal(t, map[string]string{"S1": "E1"}, redeemIDs(outcome))
}

// randomCustomer generates an arbitrary earn/spend sequence with frequent timestamp ties
func randomCustomer(rng *rand.Rand, customerID string, n int) []ledger.Transaction {
	txs := make([]ledger.Transaction, n)
	for i := range txs {
		id := fmt.Sprintf("%s-T%03d", customerID, i)
		hour := rng.Intn(n/2 + 1)
		switch rng.Intn(3) {
		case 0:
			txs[i] = newTx(customerID, id, shared.TransactionTypeEarned, int64(rng.Intn(100)), hour)
		case 1:
			txs[i] = newTx(customerID, id, shared.TransactionTypeSpent, -int64(rng.Intn(100)), hour)
		default:
			txs[i] = newTx(customerID, id, shared.TransactionTypeExpired, -int64(rng.Intn(100)), hour)
		}
	}
	return txs
}

func TestFIFOMatcher_Match_Properties(t *testing.T) {
	matcher := NewFIFOMatcher()
	validator := NewResultValidator(slog.Default())
	rng := rand.New(rand.NewSource(7))

	for iteration := 0; iteration < 200; iteration++ {
		txs := randomCustomer(rng, "C", rng.Intn(40))
		outcome := matcher.Match("C", txs)

		byID := make(map[string]ledger.Transaction, len(txs))
		for _, tx := range txs {
			byID[tx.TransactionID] = tx
		}

		// Each earned id is referenced at most once and never from the future
		used := make(map[string]bool)
		for spendID, earnedID := range redeemIDs(outcome) {
			assert.False(t, used[earnedID], "earned %s linked twice", earnedID)
			used[earnedID] = true

			e, s := byID[earnedID], byID[spendID]
			assert.Equal(t, shared.TransactionTypeEarned, e.Type)
			assert.True(t, s.Type.IsConsumption())
			assert.False(t, e.CreatedAt.After(s.CreatedAt), "no time travel")
		}

		require.NoError(t, validator.ValidateStructure("C", txs, &outcome))

		// Re-running yields byte-identical output
		first, err := json.Marshal(outcome)
		require.NoError(t, err)
		second, err := json.Marshal(matcher.Match("C", txs))
		require.NoError(t, err)
		assert.Equal(t, first, second)

		// Input order does not change the outcome
		shuffled := make([]ledger.Transaction, len(txs))
		copy(shuffled, txs)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		third, err := json.Marshal(matcher.Match("C", shuffled))
		require.NoError(t, err)
		assert.Equal(t, first, third)
	}
}
