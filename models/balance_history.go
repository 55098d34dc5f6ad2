package models

import (
	"time"
)

// TransactionType represents the type of balance change
type TransactionType string

const (
	TransactionTypeRegistration TransactionType = "registration"
	TransactionTypeAttendance   TransactionType = "attendance"
	TransactionTypeBetWin       TransactionType = "bet-win"

	// Reported on balance change events only; these debits write no history entry
	TransactionTypeBetStake TransactionType = "bet-stake"
	TransactionTypeExchange TransactionType = "exchange"
)

// RelatedType represents what type of entity the related_id refers to
type RelatedType string

const (
	RelatedTypeBetEvent RelatedType = "bet_event"
	RelatedTypeReward   RelatedType = "reward"
)

// BalanceHistory is one append-only ledger entry for a user
type BalanceHistory struct {
	ID                  int64           `db:"id" json:"id"`
	UserID              string          `db:"user_id" json:"user_id"`
	BalanceBefore       int64           `db:"balance_before" json:"balance_before"`
	BalanceAfter        int64           `db:"balance_after" json:"balance_after"`
	ChangeAmount        int64           `db:"change_amount" json:"change_amount"`
	TransactionType     TransactionType `db:"transaction_type" json:"transaction_type"`
	TransactionMetadata map[string]any  `db:"transaction_metadata" json:"transaction_metadata,omitempty"`
	RelatedID           *string         `db:"related_id" json:"related_id,omitempty"`
	RelatedType         *RelatedType    `db:"related_type" json:"related_type,omitempty"`
	CreatedAt           time.Time       `db:"created_at" json:"created_at"`
}
