package models

import (
	"time"
)

// ExchangeStatus tracks fulfillment of a redemption request
type ExchangeStatus string

const (
	ExchangeStatusPending  ExchangeStatus = "pending"
	ExchangeStatusApproved ExchangeStatus = "approved"
	ExchangeStatusRejected ExchangeStatus = "rejected"
)

// Reward is a catalog entry that can be redeemed for points
type Reward struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Cost      int64     `db:"cost" json:"cost"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ExchangeRequest is keyed by (UserID, RewardID); a repeat request replaces the previous one
type ExchangeRequest struct {
	UserID      string         `db:"user_id" json:"user_id"`
	RewardID    string         `db:"reward_id" json:"reward_id"`
	Cost        int64          `db:"cost" json:"cost"`
	Status      ExchangeStatus `db:"status" json:"status"`
	RequestedAt time.Time      `db:"requested_at" json:"requested_at"`
}
