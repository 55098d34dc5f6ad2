package service

import (
	"github.com/shopspring/decimal"

	"runepoints/models"
)

// Pool is the parimutuel state of an event computed from one snapshot of its bets
type Pool struct {
	Totals []int64
	Sum    int64
}

// NewPool sums the stakes per choice of the event
func NewPool(event *models.BetEvent, bets []*models.BetRecord) Pool {
	totals := event.ChoiceTotals(bets)
	return Pool{Totals: totals, Sum: models.PoolTotal(totals)}
}

// Odds returns sum/total[i], or zero when nobody staked on the choice
func (p Pool) Odds(choice int) decimal.Decimal {
	if choice < 0 || choice >= len(p.Totals) || p.Totals[choice] == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(p.Sum).Div(decimal.NewFromInt(p.Totals[choice]))
}

// DisplayOdds rounds every choice's odds to two decimals
func (p Pool) DisplayOdds() []string {
	out := make([]string, len(p.Totals))
	for i := range p.Totals {
		out[i] = p.Odds(i).StringFixed(2)
	}
	return out
}

// Payouts maps each winning bettor to floor(amount * sum / total[winner]).
// Losers are absent. The flooring remainder is not redistributed.
func (p Pool) Payouts(bets []*models.BetRecord, winner int) map[string]int64 {
	payouts := make(map[string]int64)
	if winner < 0 || winner >= len(p.Totals) || p.Totals[winner] == 0 {
		return payouts
	}
	for _, bet := range bets {
		if bet.ChoiceIndex != winner {
			continue
		}
		payouts[bet.UserID] = bet.CalculatePayout(p.Totals[winner], p.Sum)
	}
	return payouts
}
