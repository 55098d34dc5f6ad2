package service

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"runepoints/models"
)

func testEvent(choices ...string) *models.BetEvent {
	return &models.BetEvent{
		ID:       "event-1",
		Question: "Who wins?",
		Choices:  choices,
		Deadline: time.Now().Add(time.Hour),
	}
}

func bet(userID string, choice int, amount int64) *models.BetRecord {
	return &models.BetRecord{EventID: "event-1", UserID: userID, ChoiceIndex: choice, Amount: amount}
}

func TestPool_TotalsAndOdds(t *testing.T) {
	event := testEvent("Red", "Blue")
	bets := []*models.BetRecord{
		bet("alice", 0, 100),
		bet("bob", 1, 300),
	}

	pool := NewPool(event, bets)

	assert.Equal(t, []int64{100, 300}, pool.Totals)
	assert.Equal(t, int64(400), pool.Sum)
	assert.Equal(t, "4.00", pool.Odds(0).StringFixed(2))
	assert.Equal(t, "1.33", pool.Odds(1).StringFixed(2))
	assert.Equal(t, []string{"4.00", "1.33"}, pool.DisplayOdds())
}

func TestPool_OddsForEmptyChoiceIsZero(t *testing.T) {
	event := testEvent("Red", "Blue", "Green")
	pool := NewPool(event, []*models.BetRecord{bet("alice", 0, 50)})

	assert.True(t, pool.Odds(2).IsZero())
	assert.True(t, pool.Odds(-1).IsZero())
	assert.True(t, pool.Odds(3).IsZero())
	assert.Equal(t, []string{"1.00", "0.00", "0.00"}, pool.DisplayOdds())
}

func TestPool_Payouts(t *testing.T) {
	tests := []struct {
		name     string
		choices  []string
		bets     []*models.BetRecord
		winner   int
		expected map[string]int64
	}{
		{
			name:     "single winner takes the pool",
			choices:  []string{"Red", "Blue"},
			bets:     []*models.BetRecord{bet("alice", 0, 100), bet("bob", 1, 300)},
			winner:   0,
			expected: map[string]int64{"alice": 400},
		},
		{
			name:     "larger side wins",
			choices:  []string{"Red", "Blue"},
			bets:     []*models.BetRecord{bet("alice", 0, 100), bet("bob", 1, 300)},
			winner:   1,
			expected: map[string]int64{"bob": 400},
		},
		{
			name:    "remainder is not redistributed",
			choices: []string{"Red", "Blue"},
			bets: []*models.BetRecord{
				bet("alice", 0, 1),
				bet("bob", 0, 1),
				bet("carol", 0, 1),
				bet("dave", 1, 1),
			},
			winner:   0,
			expected: map[string]int64{"alice": 1, "bob": 1, "carol": 1},
		},
		{
			name:     "nobody on the winning choice",
			choices:  []string{"Red", "Blue", "Green"},
			bets:     []*models.BetRecord{bet("alice", 0, 100), bet("bob", 1, 300)},
			winner:   2,
			expected: map[string]int64{},
		},
		{
			name:     "no bets at all",
			choices:  []string{"Red", "Blue"},
			bets:     nil,
			winner:   0,
			expected: map[string]int64{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := testEvent(tt.choices...)
			pool := NewPool(event, tt.bets)
			assert.Equal(t, tt.expected, pool.Payouts(tt.bets, tt.winner))
		})
	}
}

func TestPool_PayoutsNeverExceedPool(t *testing.T) {
	event := testEvent("Red", "Blue", "Green")
	bets := []*models.BetRecord{
		bet("u1", 0, 7),
		bet("u2", 0, 13),
		bet("u3", 0, 29),
		bet("u4", 1, 101),
		bet("u5", 2, 3),
	}
	pool := NewPool(event, bets)

	for winner := range event.Choices {
		var paid int64
		for _, p := range pool.Payouts(bets, winner) {
			paid += p
		}
		assert.LessOrEqual(t, paid, pool.Sum, "winner %d", winner)
	}
}

func TestCalculatePayout_LargeValuesDoNotOverflow(t *testing.T) {
	b := &models.BetRecord{Amount: math.MaxInt64 / 2}
	pool := int64(math.MaxInt64 - 1)
	winningTotal := int64(math.MaxInt64 / 2)

	assert.Equal(t, pool, b.CalculatePayout(winningTotal, pool))
	assert.Equal(t, int64(0), b.CalculatePayout(0, pool))
}
