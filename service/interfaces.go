package service

import (
	"context"
	"time"

	"runepoints/events"
	"runepoints/models"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	// GetByID retrieves a user, returning nil when no such user exists
	GetByID(ctx context.Context, id string) (*models.User, error)

	// GetByIDForUpdate is GetByID with a row lock held until the unit of work ends
	GetByIDForUpdate(ctx context.Context, id string) (*models.User, error)

	// Create inserts a new user, failing with ErrUserExists on a duplicate id
	Create(ctx context.Context, user *models.User) error

	// UpdateBalance sets a user's balance
	UpdateBalance(ctx context.Context, id string, newBalance int64) error

	// UpdateLastAttendanceDay sets the user's last attended service day
	UpdateLastAttendanceDay(ctx context.Context, id string, dayKey string) error
}

// BalanceHistoryRepository defines the interface for balance history tracking
type BalanceHistoryRepository interface {
	// Record appends a new balance history entry
	Record(ctx context.Context, history *models.BalanceHistory) error

	// GetByUser returns the newest entries first; limit <= 0 returns everything
	GetByUser(ctx context.Context, userID string, limit int) ([]*models.BalanceHistory, error)
}

// BetEventRepository covers bet events and the bet records placed on them
type BetEventRepository interface {
	Create(ctx context.Context, event *models.BetEvent) error
	GetByID(ctx context.Context, id string) (*models.BetEvent, error)
	GetByIDForUpdate(ctx context.Context, id string) (*models.BetEvent, error)
	GetAll(ctx context.Context) ([]*models.BetEvent, error)

	// GetUnresolvedClosedBetween returns unresolved events whose deadline is in (from, to]
	GetUnresolvedClosedBetween(ctx context.Context, from, to time.Time) ([]*models.BetEvent, error)

	// MarkResolved records the result; it never overwrites an existing one
	MarkResolved(ctx context.Context, id string, result int, resolvedAt time.Time) error

	// Bet records
	GetBet(ctx context.Context, eventID, userID string) (*models.BetRecord, error)
	CreateBet(ctx context.Context, bet *models.BetRecord) error
	GetBets(ctx context.Context, eventID string) ([]*models.BetRecord, error)
}

// AttendanceTokenRepository stores issued check-in tokens
type AttendanceTokenRepository interface {
	Create(ctx context.Context, token *models.AttendanceToken) error
	GetByToken(ctx context.Context, token string) (*models.AttendanceToken, error)
}

// RewardRepository defines the reward catalog
type RewardRepository interface {
	GetByID(ctx context.Context, id string) (*models.Reward, error)
	GetAll(ctx context.Context) ([]*models.Reward, error)
	Upsert(ctx context.Context, reward *models.Reward) error
}

// ExchangeRequestRepository stores redemption requests keyed by (user, reward)
type ExchangeRequestRepository interface {
	// Upsert creates the request or replaces the existing one for the same pair
	Upsert(ctx context.Context, request *models.ExchangeRequest) error
	GetByUser(ctx context.Context, userID string) ([]*models.ExchangeRequest, error)
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// UnitOfWork is one ledger transaction. Repositories returned by it are scoped
// to the transaction and must not be used after Commit or Rollback.
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	UserRepository() UserRepository
	BalanceHistoryRepository() BalanceHistoryRepository
	BetEventRepository() BetEventRepository
	AttendanceTokenRepository() AttendanceTokenRepository
	RewardRepository() RewardRepository
	ExchangeRequestRepository() ExchangeRequestRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory creates units of work for a storage backend
type UnitOfWorkFactory interface {
	Create() UnitOfWork
	CreateReadOnly() UnitOfWork
}

// UserService covers registration and balance reads
type UserService interface {
	Register(ctx context.Context, userID, username string) (*models.User, error)
	GetUser(ctx context.Context, userID string) (*models.User, error)
	GetHistory(ctx context.Context, userID string, limit int) ([]*models.BalanceHistory, error)
}

// WageringService owns the bet event lifecycle
type WageringService interface {
	CreateEvent(ctx context.Context, creatorID, question string, choices []string, deadline time.Time) (*models.BetEvent, error)
	PlaceBet(ctx context.Context, eventID, userID string, choiceIndex int, amount int64) (*models.BetRecord, error)
	ResolveEvent(ctx context.Context, eventID string, winningChoice int) (*ResolutionResult, error)
	GetEventSummary(ctx context.Context, eventID string) (*EventSummary, error)
	ListEvents(ctx context.Context) (*EventListing, error)
	AnnounceClosedEvents(ctx context.Context, from, to time.Time) ([]*models.BetEvent, error)
}

// AttendanceService issues tokens and grants the daily check-in credit
type AttendanceService interface {
	IssueToken(ctx context.Context, issuerID, className string, expiresAt *time.Time) (*models.AttendanceToken, error)
	GrantAttendance(ctx context.Context, userID, token string, at time.Time) (*AttendanceResult, error)
}

// ExchangeService redeems points for catalog rewards
type ExchangeService interface {
	RequestExchange(ctx context.Context, userID, rewardID string) (*models.ExchangeRequest, error)
	ListRewards(ctx context.Context) ([]*models.Reward, error)
	UpsertReward(ctx context.Context, id, name string, cost int64) (*models.Reward, error)
	ListRequests(ctx context.Context, userID string) ([]*models.ExchangeRequest, error)
}

// SummaryCache is an optional read-through cache for event summaries
type SummaryCache interface {
	Get(ctx context.Context, eventID string) (*EventSummary, bool)
	Set(ctx context.Context, summary *EventSummary)
	Invalidate(ctx context.Context, eventID string)
}

// TransactionObserver receives the outcome of every ledger transaction
type TransactionObserver interface {
	ObserveTransaction(outcome string, attempts int, elapsed time.Duration)
}
