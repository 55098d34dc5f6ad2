package service

import (
	"context"
	"fmt"

	"runepoints/events"
	"runepoints/models"
)

// RecordBalanceChange appends a history entry and queues a balance change event
// on the unit of work. Entries whose change is zero are not recorded.
func RecordBalanceChange(ctx context.Context, uow UnitOfWork, history *models.BalanceHistory) error {
	if history.ChangeAmount == 0 && history.TransactionType != models.TransactionTypeRegistration {
		return nil
	}
	if err := uow.BalanceHistoryRepository().Record(ctx, history); err != nil {
		return fmt.Errorf("failed to record balance history: %w", err)
	}

	event := events.BalanceChangeEvent{
		UserID:          history.UserID,
		OldBalance:      history.BalanceBefore,
		NewBalance:      history.BalanceAfter,
		TransactionType: history.TransactionType,
		ChangeAmount:    history.ChangeAmount,
	}
	if history.RelatedID != nil {
		event.RelatedID = *history.RelatedID
	}
	uow.EventBus().Publish(event)
	return nil
}

// applyBalanceDelta moves a locked user's balance and persists it. It never
// lets the balance go negative.
func applyBalanceDelta(ctx context.Context, uow UnitOfWork, user *models.User, delta int64) (before, after int64, err error) {
	before = user.Balance
	after = before + delta
	if after < 0 {
		return before, before, ErrInsufficientBalance
	}
	if err := uow.UserRepository().UpdateBalance(ctx, user.ID, after); err != nil {
		return before, before, fmt.Errorf("failed to update balance: %w", err)
	}
	user.Balance = after
	return before, after, nil
}

func relatedRef(id string, kind models.RelatedType) (*string, *models.RelatedType) {
	return &id, &kind
}
