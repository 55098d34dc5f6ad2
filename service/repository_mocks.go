package service

import (
	"context"
	"time"

	"runepoints/events"
	"runepoints/models"

	"github.com/stretchr/testify/mock"
)

// MockUserRepository is a mock implementation of UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) UpdateBalance(ctx context.Context, id string, newBalance int64) error {
	args := m.Called(ctx, id, newBalance)
	return args.Error(0)
}

func (m *MockUserRepository) UpdateLastAttendanceDay(ctx context.Context, id string, dayKey string) error {
	args := m.Called(ctx, id, dayKey)
	return args.Error(0)
}

// MockBalanceHistoryRepository is a mock implementation of BalanceHistoryRepository
type MockBalanceHistoryRepository struct {
	mock.Mock
}

func (m *MockBalanceHistoryRepository) Record(ctx context.Context, history *models.BalanceHistory) error {
	args := m.Called(ctx, history)
	return args.Error(0)
}

func (m *MockBalanceHistoryRepository) GetByUser(ctx context.Context, userID string, limit int) ([]*models.BalanceHistory, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.BalanceHistory), args.Error(1)
}

// MockBetEventRepository is a mock implementation of BetEventRepository
type MockBetEventRepository struct {
	mock.Mock
}

func (m *MockBetEventRepository) Create(ctx context.Context, event *models.BetEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockBetEventRepository) GetByID(ctx context.Context, id string) (*models.BetEvent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BetEvent), args.Error(1)
}

func (m *MockBetEventRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.BetEvent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BetEvent), args.Error(1)
}

func (m *MockBetEventRepository) GetAll(ctx context.Context) ([]*models.BetEvent, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.BetEvent), args.Error(1)
}

func (m *MockBetEventRepository) GetUnresolvedClosedBetween(ctx context.Context, from, to time.Time) ([]*models.BetEvent, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.BetEvent), args.Error(1)
}

func (m *MockBetEventRepository) MarkResolved(ctx context.Context, id string, result int, resolvedAt time.Time) error {
	args := m.Called(ctx, id, result, resolvedAt)
	return args.Error(0)
}

func (m *MockBetEventRepository) GetBet(ctx context.Context, eventID, userID string) (*models.BetRecord, error) {
	args := m.Called(ctx, eventID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BetRecord), args.Error(1)
}

func (m *MockBetEventRepository) CreateBet(ctx context.Context, bet *models.BetRecord) error {
	args := m.Called(ctx, bet)
	return args.Error(0)
}

func (m *MockBetEventRepository) GetBets(ctx context.Context, eventID string) ([]*models.BetRecord, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.BetRecord), args.Error(1)
}

// MockEventPublisher is a mock implementation of EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) {
	m.Called(event)
}

// MockUnitOfWork is a mock UnitOfWork. Repositories are injected with
// SetRepositories; unset ones panic when requested.
type MockUnitOfWork struct {
	mock.Mock
	userRepo           UserRepository
	balanceHistoryRepo BalanceHistoryRepository
	betEventRepo       BetEventRepository
	eventBus           EventPublisher
}

// SetRepositories wires the repositories the unit of work hands out
func (m *MockUnitOfWork) SetRepositories(userRepo UserRepository, historyRepo BalanceHistoryRepository, betEventRepo BetEventRepository, eventBus EventPublisher) {
	m.userRepo = userRepo
	m.balanceHistoryRepo = historyRepo
	m.betEventRepo = betEventRepo
	m.eventBus = eventBus
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) UserRepository() UserRepository {
	if m.userRepo == nil {
		panic("MockUnitOfWork: user repository not set")
	}
	return m.userRepo
}

func (m *MockUnitOfWork) BalanceHistoryRepository() BalanceHistoryRepository {
	if m.balanceHistoryRepo == nil {
		panic("MockUnitOfWork: balance history repository not set")
	}
	return m.balanceHistoryRepo
}

func (m *MockUnitOfWork) BetEventRepository() BetEventRepository {
	if m.betEventRepo == nil {
		panic("MockUnitOfWork: bet event repository not set")
	}
	return m.betEventRepo
}

func (m *MockUnitOfWork) AttendanceTokenRepository() AttendanceTokenRepository {
	panic("MockUnitOfWork: attendance token repository not supported")
}

func (m *MockUnitOfWork) RewardRepository() RewardRepository {
	panic("MockUnitOfWork: reward repository not supported")
}

func (m *MockUnitOfWork) ExchangeRequestRepository() ExchangeRequestRepository {
	panic("MockUnitOfWork: exchange request repository not supported")
}

func (m *MockUnitOfWork) EventBus() EventPublisher {
	if m.eventBus == nil {
		panic("MockUnitOfWork: event bus not set")
	}
	return m.eventBus
}

// MockUnitOfWorkFactory is a mock UnitOfWorkFactory
type MockUnitOfWorkFactory struct {
	mock.Mock
}

func (m *MockUnitOfWorkFactory) Create() UnitOfWork {
	args := m.Called()
	return args.Get(0).(UnitOfWork)
}

func (m *MockUnitOfWorkFactory) CreateReadOnly() UnitOfWork {
	args := m.Called()
	return args.Get(0).(UnitOfWork)
}
