package service

import (
	"context"
	"fmt"
	"strings"

	"runepoints/events"
	"runepoints/models"
)

// exchangeService implements the ExchangeService interface
type exchangeService struct {
	ledger *Ledger
}

// NewExchangeService creates a new exchange service
func NewExchangeService(ledger *Ledger) ExchangeService {
	return &exchangeService{ledger: ledger}
}

// RequestExchange debits the reward's cost and files a pending request. A
// repeat request for the same reward replaces the earlier one and is charged again.
func (s *exchangeService) RequestExchange(ctx context.Context, userID, rewardID string) (*models.ExchangeRequest, error) {
	var request *models.ExchangeRequest
	err := s.ledger.RunTransaction(ctx, func(ctx context.Context, uow UnitOfWork) error {
		reward, err := uow.RewardRepository().GetByID(ctx, rewardID)
		if err != nil {
			return fmt.Errorf("failed to get reward: %w", err)
		}
		if reward == nil {
			return ErrRewardNotFound
		}

		user, err := uow.UserRepository().GetByIDForUpdate(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to get user: %w", err)
		}
		if user == nil {
			return ErrUserNotFound
		}
		if user.Balance < reward.Cost {
			return ErrInsufficientBalance
		}

		before, after, err := applyBalanceDelta(ctx, uow, user, -reward.Cost)
		if err != nil {
			return err
		}

		request = &models.ExchangeRequest{
			UserID:      userID,
			RewardID:    rewardID,
			Cost:        reward.Cost,
			Status:      models.ExchangeStatusPending,
			RequestedAt: s.ledger.Now(),
		}
		if err := uow.ExchangeRequestRepository().Upsert(ctx, request); err != nil {
			return fmt.Errorf("failed to store exchange request: %w", err)
		}

		uow.EventBus().Publish(events.ExchangeRequestedEvent{
			UserID:     userID,
			RewardID:   rewardID,
			RewardName: reward.Name,
			Cost:       reward.Cost,
		})
		if reward.Cost > 0 {
			uow.EventBus().Publish(events.BalanceChangeEvent{
				UserID:          userID,
				OldBalance:      before,
				NewBalance:      after,
				TransactionType: models.TransactionTypeExchange,
				ChangeAmount:    -reward.Cost,
				RelatedID:       rewardID,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

// ListRewards returns the catalog ordered by cost
func (s *exchangeService) ListRewards(ctx context.Context) ([]*models.Reward, error) {
	var rewards []*models.Reward
	err := s.ledger.View(ctx, func(ctx context.Context, uow UnitOfWork) error {
		var err error
		rewards, err = uow.RewardRepository().GetAll(ctx)
		if err != nil {
			return fmt.Errorf("failed to list rewards: %w", err)
		}
		return nil
	})
	return rewards, err
}

// UpsertReward creates or edits a catalog entry
func (s *exchangeService) UpsertReward(ctx context.Context, id, name string, cost int64) (*models.Reward, error) {
	id = strings.TrimSpace(id)
	name = strings.TrimSpace(name)
	if id == "" || name == "" || cost < 0 {
		return nil, ErrInvalidReward
	}

	reward := &models.Reward{
		ID:        id,
		Name:      name,
		Cost:      cost,
		UpdatedAt: s.ledger.Now(),
	}
	err := s.ledger.RunTransaction(ctx, func(ctx context.Context, uow UnitOfWork) error {
		if err := uow.RewardRepository().Upsert(ctx, reward); err != nil {
			return fmt.Errorf("failed to save reward: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reward, nil
}

// ListRequests returns the user's redemption requests, newest first
func (s *exchangeService) ListRequests(ctx context.Context, userID string) ([]*models.ExchangeRequest, error) {
	var requests []*models.ExchangeRequest
	err := s.ledger.View(ctx, func(ctx context.Context, uow UnitOfWork) error {
		var err error
		requests, err = uow.ExchangeRequestRepository().GetByUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to list exchange requests: %w", err)
		}
		return nil
	})
	return requests, err
}
