package models

import (
	"math/bits"
	"time"
)

// BetEventState is derived from the deadline and the result, never stored
type BetEventState string

const (
	BetEventStateOpen               BetEventState = "open"
	BetEventStateAwaitingResolution BetEventState = "awaiting_resolution"
	BetEventStateResolved           BetEventState = "resolved"
)

const (
	MinChoices = 2
	MaxChoices = 3
)

// BetEvent is a parimutuel market with two or three outcomes
type BetEvent struct {
	ID         string     `db:"id" json:"id"`
	Question   string     `db:"question" json:"question"`
	Choices    []string   `db:"choices" json:"choices"`
	Deadline   time.Time  `db:"deadline" json:"deadline"`
	Result     *int       `db:"result" json:"result,omitempty"`
	ResolvedAt *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
	CreatedBy  string     `db:"created_by" json:"created_by"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// BetRecord is one user's stake on an event. At most one exists per (event, user).
type BetRecord struct {
	EventID     string    `db:"event_id" json:"event_id"`
	UserID      string    `db:"user_id" json:"user_id"`
	ChoiceIndex int       `db:"choice_index" json:"choice_index"`
	Amount      int64     `db:"amount" json:"amount"`
	PlacedAt    time.Time `db:"placed_at" json:"placed_at"`
}

// State returns the lifecycle state of the event at the given instant
func (e *BetEvent) State(now time.Time) BetEventState {
	if e.Result != nil {
		return BetEventStateResolved
	}
	if now.Before(e.Deadline) {
		return BetEventStateOpen
	}
	return BetEventStateAwaitingResolution
}

// IsResolved checks if a result has been recorded
func (e *BetEvent) IsResolved() bool {
	return e.Result != nil
}

// AcceptsBets checks if placement is permitted at the given instant
func (e *BetEvent) AcceptsBets(now time.Time) bool {
	return e.State(now) == BetEventStateOpen
}

// ValidChoice checks if the index addresses one of the event's choices
func (e *BetEvent) ValidChoice(index int) bool {
	return index >= 0 && index < len(e.Choices)
}

// ChoiceTotals sums the staked amount per choice index
func (e *BetEvent) ChoiceTotals(bets []*BetRecord) []int64 {
	totals := make([]int64, len(e.Choices))
	for _, bet := range bets {
		if e.ValidChoice(bet.ChoiceIndex) {
			totals[bet.ChoiceIndex] += bet.Amount
		}
	}
	return totals
}

// PoolTotal sums the totals of every choice
func PoolTotal(totals []int64) int64 {
	var sum int64
	for _, t := range totals {
		sum += t
	}
	return sum
}

// CalculatePayout returns floor(amount * pool / winningTotal). The product is
// computed in 128 bits so large pools cannot overflow.
func (b *BetRecord) CalculatePayout(winningTotal, pool int64) int64 {
	if winningTotal <= 0 || b.Amount <= 0 || pool <= 0 {
		return 0
	}
	hi, lo := bits.Mul64(uint64(b.Amount), uint64(pool))
	if hi >= uint64(winningTotal) {
		// amount exceeds the winning total, which a consistent pool never produces
		return 0
	}
	quo, _ := bits.Div64(hi, lo, uint64(winningTotal))
	return int64(quo)
}
