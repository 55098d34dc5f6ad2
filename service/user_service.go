package service

import (
	"context"
	"fmt"
	"strings"

	"runepoints/events"
	"runepoints/models"
)

// InitialBalance is granted on registration unless overridden
const InitialBalance int64 = 100

// userService implements the UserService interface
type userService struct {
	ledger          *Ledger
	startingBalance int64
}

// NewUserService creates a new user service. A negative starting balance falls back to InitialBalance.
func NewUserService(ledger *Ledger, startingBalance int64) UserService {
	if startingBalance < 0 {
		startingBalance = InitialBalance
	}
	return &userService{
		ledger:          ledger,
		startingBalance: startingBalance,
	}
}

// Register creates the user with the starting balance and a registration history entry
func (s *userService) Register(ctx context.Context, userID, username string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if userID == "" {
		return nil, ErrMissingUserID
	}
	if username == "" {
		return nil, ErrInvalidUsername
	}

	var user *models.User
	err := s.ledger.RunTransaction(ctx, func(ctx context.Context, uow UnitOfWork) error {
		existing, err := uow.UserRepository().GetByID(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to check existing user: %w", err)
		}
		if existing != nil {
			return ErrUserExists
		}

		now := s.ledger.Now()
		user = &models.User{
			ID:        userID,
			Username:  username,
			Balance:   s.startingBalance,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := uow.UserRepository().Create(ctx, user); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}

		history := &models.BalanceHistory{
			UserID:          userID,
			BalanceBefore:   0,
			BalanceAfter:    s.startingBalance,
			ChangeAmount:    s.startingBalance,
			TransactionType: models.TransactionTypeRegistration,
			TransactionMetadata: map[string]any{
				"username": username,
			},
			CreatedAt: now,
		}
		if err := RecordBalanceChange(ctx, uow, history); err != nil {
			return fmt.Errorf("failed to record initial balance: %w", err)
		}

		uow.EventBus().Publish(events.UserRegisteredEvent{
			UserID:         userID,
			Username:       username,
			InitialBalance: s.startingBalance,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetUser returns the user's record, including the current balance
func (s *userService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var user *models.User
	err := s.ledger.View(ctx, func(ctx context.Context, uow UnitOfWork) error {
		var err error
		user, err = uow.UserRepository().GetByID(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to get user: %w", err)
		}
		if user == nil {
			return ErrUserNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetHistory returns the user's ledger entries, newest first
func (s *userService) GetHistory(ctx context.Context, userID string, limit int) ([]*models.BalanceHistory, error) {
	var history []*models.BalanceHistory
	err := s.ledger.View(ctx, func(ctx context.Context, uow UnitOfWork) error {
		user, err := uow.UserRepository().GetByID(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to get user: %w", err)
		}
		if user == nil {
			return ErrUserNotFound
		}
		history, err = uow.BalanceHistoryRepository().GetByUser(ctx, userID, limit)
		if err != nil {
			return fmt.Errorf("failed to get balance history: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return history, nil
}
