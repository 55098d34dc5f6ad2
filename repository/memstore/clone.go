package memstore

import (
	"maps"
	"slices"

	"runepoints/models"
)

// cloneValue copies stored records so callers never alias committed state
func cloneValue(v any) any {
	switch r := v.(type) {
	case *models.User:
		c := *r
		if r.LastAttendanceDay != nil {
			day := *r.LastAttendanceDay
			c.LastAttendanceDay = &day
		}
		return &c
	case *models.BetEvent:
		c := *r
		c.Choices = slices.Clone(r.Choices)
		if r.Result != nil {
			result := *r.Result
			c.Result = &result
		}
		if r.ResolvedAt != nil {
			at := *r.ResolvedAt
			c.ResolvedAt = &at
		}
		return &c
	case *models.BetRecord:
		c := *r
		return &c
	case *models.AttendanceToken:
		c := *r
		return &c
	case *models.Reward:
		c := *r
		return &c
	case *models.ExchangeRequest:
		c := *r
		return &c
	default:
		return v
	}
}

func cloneHistory(h *models.BalanceHistory) *models.BalanceHistory {
	c := *h
	c.TransactionMetadata = maps.Clone(h.TransactionMetadata)
	if h.RelatedID != nil {
		id := *h.RelatedID
		c.RelatedID = &id
	}
	if h.RelatedType != nil {
		kind := *h.RelatedType
		c.RelatedType = &kind
	}
	return &c
}
