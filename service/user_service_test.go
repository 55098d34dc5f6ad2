package service

import (
	"context"
	"errors"
	"testing"

	"runepoints/events"
	"runepoints/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func createTestUserService() (UserService, *MockUnitOfWork, *MockUnitOfWorkFactory, *MockUserRepository, *MockBalanceHistoryRepository, *MockEventPublisher) {
	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockUserRepo := new(MockUserRepository)
	mockHistoryRepo := new(MockBalanceHistoryRepository)
	mockPublisher := new(MockEventPublisher)

	mockUoW.SetRepositories(mockUserRepo, mockHistoryRepo, nil, mockPublisher)
	mockFactory.On("Create").Return(mockUoW)
	mockFactory.On("CreateReadOnly").Return(mockUoW).Maybe()

	svc := NewUserService(newTestLedger(mockFactory), InitialBalance)
	return svc, mockUoW, mockFactory, mockUserRepo, mockHistoryRepo, mockPublisher
}

func TestUserService_Register_NewUser(t *testing.T) {
	ctx := context.Background()
	svc, mockUoW, mockFactory, mockUserRepo, mockHistoryRepo, mockPublisher := createTestUserService()
	setupBasicTransactionMocks(mockUoW)

	mockUserRepo.On("GetByID", ctx, "user-1").Return(nil, nil)
	mockUserRepo.On("Create", ctx, mock.MatchedBy(func(u *models.User) bool {
		return u.ID == "user-1" && u.Username == "alice" && u.Balance == InitialBalance
	})).Return(nil)
	mockHistoryRepo.On("Record", ctx, mock.MatchedBy(func(h *models.BalanceHistory) bool {
		return h.UserID == "user-1" &&
			h.TransactionType == models.TransactionTypeRegistration &&
			h.BalanceBefore == 0 &&
			h.BalanceAfter == InitialBalance &&
			h.ChangeAmount == InitialBalance
	})).Return(nil)
	mockPublisher.On("Publish", mock.AnythingOfType("events.BalanceChangeEvent")).Return()
	mockPublisher.On("Publish", events.UserRegisteredEvent{
		UserID:         "user-1",
		Username:       "alice",
		InitialBalance: InitialBalance,
	}).Return()

	user, err := svc.Register(ctx, "user-1", "  alice ")

	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, InitialBalance, user.Balance)
	assertAllMockExpectations(t, mockUoW, mockFactory, mockUserRepo, mockHistoryRepo, mockPublisher)
}

func TestUserService_Register_ExistingUser(t *testing.T) {
	ctx := context.Background()
	svc, mockUoW, _, mockUserRepo, mockHistoryRepo, mockPublisher := createTestUserService()
	mockUoW.On("Begin", mock.Anything).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockUserRepo.On("GetByID", ctx, "user-1").Return(&models.User{ID: "user-1", Balance: 50}, nil)

	user, err := svc.Register(ctx, "user-1", "alice")

	assert.Nil(t, user)
	assert.ErrorIs(t, err, ErrUserExists)
	mockUserRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	mockHistoryRepo.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
	mockPublisher.AssertNotCalled(t, "Publish", mock.Anything)
	mockUoW.AssertNotCalled(t, "Commit")
}

func TestUserService_Register_Validation(t *testing.T) {
	svc, _, mockFactory, _, _, _ := createTestUserService()

	_, err := svc.Register(context.Background(), "", "alice")
	assert.ErrorIs(t, err, ErrMissingUserID)

	_, err = svc.Register(context.Background(), "user-1", "   ")
	assert.ErrorIs(t, err, ErrInvalidUsername)

	mockFactory.AssertNotCalled(t, "Create")
}

func TestUserService_Register_StorageError(t *testing.T) {
	ctx := context.Background()
	svc, mockUoW, _, mockUserRepo, _, _ := createTestUserService()
	mockUoW.On("Begin", mock.Anything).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockUserRepo.On("GetByID", ctx, "user-1").Return(nil, errors.New("disk on fire"))

	_, err := svc.Register(ctx, "user-1", "alice")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to check existing user")
	mockUoW.AssertNotCalled(t, "Commit")
}

func TestUserService_GetUser_NotFound(t *testing.T) {
	ctx := context.Background()
	svc, mockUoW, _, mockUserRepo, _, _ := createTestUserService()
	mockUoW.On("Begin", mock.Anything).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockUserRepo.On("GetByID", ctx, "ghost").Return(nil, nil)

	user, err := svc.GetUser(ctx, "ghost")

	assert.Nil(t, user)
	assert.ErrorIs(t, err, ErrUserNotFound)
	mockUoW.AssertNotCalled(t, "Commit")
}

func TestUserService_GetHistory(t *testing.T) {
	ctx := context.Background()
	svc, mockUoW, mockFactory, mockUserRepo, mockHistoryRepo, _ := createTestUserService()
	mockUoW.On("Begin", mock.Anything).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	entries := []*models.BalanceHistory{
		{ID: 2, UserID: "user-1", TransactionType: models.TransactionTypeAttendance, ChangeAmount: 1},
		{ID: 1, UserID: "user-1", TransactionType: models.TransactionTypeRegistration, ChangeAmount: 100},
	}
	mockUserRepo.On("GetByID", ctx, "user-1").Return(&models.User{ID: "user-1"}, nil)
	mockHistoryRepo.On("GetByUser", ctx, "user-1", 10).Return(entries, nil)

	history, err := svc.GetHistory(ctx, "user-1", 10)

	require.NoError(t, err)
	assert.Equal(t, entries, history)
	mockFactory.AssertCalled(t, "CreateReadOnly")
	mockFactory.AssertNotCalled(t, "Create")
	mockUoW.AssertNotCalled(t, "Commit")
	assertAllMockExpectations(t, mockUserRepo, mockHistoryRepo)
}
