package repository_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"runepoints/models"
	"runepoints/repository"
	"runepoints/repository/testutil"
	"runepoints/service"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepositories_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	userRepo := repository.NewUserRepository(testDB.DB)
	historyRepo := repository.NewBalanceHistoryRepository(testDB.DB)
	eventRepo := repository.NewBetEventRepository(testDB.DB)
	tokenRepo := repository.NewAttendanceTokenRepository(testDB.DB)
	rewardRepo := repository.NewRewardRepository(testDB.DB)
	exchangeRepo := repository.NewExchangeRequestRepository(testDB.DB)

	t.Run("users", func(t *testing.T) {
		user := testutil.CreateTestUserWithBalance("u-users", 50)
		require.NoError(t, userRepo.Create(ctx, user))
		assert.ErrorIs(t, userRepo.Create(ctx, user), service.ErrUserExists)

		require.NoError(t, userRepo.UpdateBalance(ctx, user.ID, 75))
		require.NoError(t, userRepo.UpdateLastAttendanceDay(ctx, user.ID, "2025-07-16"))

		got, err := userRepo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, int64(75), got.Balance)
		require.NotNil(t, got.LastAttendanceDay)
		assert.Equal(t, "2025-07-16", *got.LastAttendanceDay)

		missing, err := userRepo.GetByID(ctx, "nobody")
		require.NoError(t, err)
		assert.Nil(t, missing)
		assert.ErrorIs(t, userRepo.UpdateBalance(ctx, "nobody", 1), service.ErrUserNotFound)
	})

	t.Run("balance cannot go negative", func(t *testing.T) {
		user := testutil.CreateTestUser("u-negative")
		require.NoError(t, userRepo.Create(ctx, user))
		assert.Error(t, userRepo.UpdateBalance(ctx, user.ID, -1))
	})

	t.Run("balance history", func(t *testing.T) {
		user := testutil.CreateTestUser("u-history")
		require.NoError(t, userRepo.Create(ctx, user))

		eventID := "ev-history"
		kind := models.RelatedTypeBetEvent
		base := time.Now().UTC().Add(-time.Minute)
		for i := 0; i < 3; i++ {
			require.NoError(t, historyRepo.Record(ctx, &models.BalanceHistory{
				UserID:              user.ID,
				BalanceBefore:       int64(100 + i),
				BalanceAfter:        int64(101 + i),
				ChangeAmount:        1,
				TransactionType:     models.TransactionTypeAttendance,
				TransactionMetadata: map[string]any{"day": fmt.Sprintf("2025-07-1%d", i)},
				RelatedID:           &eventID,
				RelatedType:         &kind,
				CreatedAt:           base.Add(time.Duration(i) * time.Second),
			}))
		}

		latest, err := historyRepo.GetByUser(ctx, user.ID, 2)
		require.NoError(t, err)
		require.Len(t, latest, 2)
		assert.Equal(t, int64(103), latest[0].BalanceAfter)
		assert.Equal(t, "2025-07-12", latest[0].TransactionMetadata["day"])
		require.NotNil(t, latest[0].RelatedType)
		assert.Equal(t, models.RelatedTypeBetEvent, *latest[0].RelatedType)

		all, err := historyRepo.GetByUser(ctx, user.ID, 0)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("bet events and bets", func(t *testing.T) {
		user := testutil.CreateTestUser("u-bets")
		require.NoError(t, userRepo.Create(ctx, user))

		event := testutil.CreateTestBetEvent("ev-bets")
		event.Choices = []string{"red", "green", "blue"}
		require.NoError(t, eventRepo.Create(ctx, event))

		got, err := eventRepo.GetByID(ctx, event.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, []string{"red", "green", "blue"}, got.Choices)
		assert.Nil(t, got.Result)

		bet := testutil.CreateTestBet(event.ID, user.ID, 2, 30)
		require.NoError(t, eventRepo.CreateBet(ctx, bet))
		assert.ErrorIs(t, eventRepo.CreateBet(ctx, bet), service.ErrDuplicateBet)

		stored, err := eventRepo.GetBet(ctx, event.ID, user.ID)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, 2, stored.ChoiceIndex)

		bets, err := eventRepo.GetBets(ctx, event.ID)
		require.NoError(t, err)
		assert.Len(t, bets, 1)

		resolvedAt := time.Now().UTC()
		require.NoError(t, eventRepo.MarkResolved(ctx, event.ID, 1, resolvedAt))
		assert.ErrorIs(t, eventRepo.MarkResolved(ctx, event.ID, 0, resolvedAt), service.ErrAlreadyResolved)

		got, err = eventRepo.GetByID(ctx, event.ID)
		require.NoError(t, err)
		require.NotNil(t, got.Result)
		assert.Equal(t, 1, *got.Result)
		assert.NotNil(t, got.ResolvedAt)
	})

	t.Run("closed between window", func(t *testing.T) {
		now := time.Now().UTC()
		past := testutil.CreateTestBetEvent("ev-window-past")
		past.Deadline = now.Add(-30 * time.Second)
		future := testutil.CreateTestBetEvent("ev-window-future")
		require.NoError(t, eventRepo.Create(ctx, past))
		require.NoError(t, eventRepo.Create(ctx, future))

		closed, err := eventRepo.GetUnresolvedClosedBetween(ctx, now.Add(-time.Minute), now)
		require.NoError(t, err)
		ids := make([]string, 0, len(closed))
		for _, e := range closed {
			ids = append(ids, e.ID)
		}
		assert.Contains(t, ids, past.ID)
		assert.NotContains(t, ids, future.ID)
	})

	t.Run("tokens rewards and exchange requests", func(t *testing.T) {
		token := testutil.CreateTestAttendanceToken("tok-1", time.Now().UTC())
		require.NoError(t, tokenRepo.Create(ctx, token))
		got, err := tokenRepo.GetByToken(ctx, "tok-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, token.ClassName, got.ClassName)

		unknown, err := tokenRepo.GetByToken(ctx, "tok-unknown")
		require.NoError(t, err)
		assert.Nil(t, unknown)

		reward := testutil.CreateTestReward("sticker", 10)
		require.NoError(t, rewardRepo.Upsert(ctx, reward))
		reward.Cost = 15
		require.NoError(t, rewardRepo.Upsert(ctx, reward))
		stored, err := rewardRepo.GetByID(ctx, "sticker")
		require.NoError(t, err)
		assert.Equal(t, int64(15), stored.Cost)

		user := testutil.CreateTestUser("u-exchange")
		require.NoError(t, userRepo.Create(ctx, user))

		request := &models.ExchangeRequest{
			UserID:      user.ID,
			RewardID:    reward.ID,
			Cost:        15,
			Status:      models.ExchangeStatusPending,
			RequestedAt: time.Now().UTC(),
		}
		require.NoError(t, exchangeRepo.Upsert(ctx, request))
		request.RequestedAt = request.RequestedAt.Add(time.Second)
		require.NoError(t, exchangeRepo.Upsert(ctx, request))

		requests, err := exchangeRepo.GetByUser(ctx, user.ID)
		require.NoError(t, err)
		assert.Len(t, requests, 1)
	})
}

func TestLedger_PostgresSettlement_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	clock := time.Now().UTC()
	ledger := service.NewLedger(
		repository.NewUnitOfWorkFactory(testDB.DB, nil),
		service.WithMaxAttempts(20),
		service.WithRetryInterval(5*time.Millisecond),
		service.WithClock(func() time.Time { return clock }),
	)
	users := service.NewUserService(ledger, 1000)
	wagering := service.NewWageringService(ledger, nil)

	t.Run("two bettor scenario", func(t *testing.T) {
		_, err := users.Register(ctx, "winner", "winner")
		require.NoError(t, err)
		_, err = users.Register(ctx, "loser", "loser")
		require.NoError(t, err)

		event, err := wagering.CreateEvent(ctx, "op", "Who wins?", []string{"A", "B"}, clock.Add(time.Hour))
		require.NoError(t, err)

		_, err = wagering.PlaceBet(ctx, event.ID, "winner", 0, 100)
		require.NoError(t, err)
		_, err = wagering.PlaceBet(ctx, event.ID, "loser", 1, 300)
		require.NoError(t, err)

		_, err = wagering.PlaceBet(ctx, event.ID, "winner", 1, 10)
		assert.ErrorIs(t, err, service.ErrDuplicateBet)

		result, err := wagering.ResolveEvent(ctx, event.ID, 0)
		require.NoError(t, err)
		assert.Equal(t, map[string]int64{"winner": 400}, result.Payouts)

		winner, err := users.GetUser(ctx, "winner")
		require.NoError(t, err)
		assert.Equal(t, int64(1300), winner.Balance)
		loser, err := users.GetUser(ctx, "loser")
		require.NoError(t, err)
		assert.Equal(t, int64(700), loser.Balance)

		history, err := users.GetHistory(ctx, "winner", 0)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, models.TransactionTypeBetWin, history[0].TransactionType)
		assert.Equal(t, int64(400), history[0].ChangeAmount)
	})

	t.Run("concurrent bets by different users all land", func(t *testing.T) {
		event, err := wagering.CreateEvent(ctx, "op", "Concurrent?", []string{"A", "B"}, clock.Add(time.Hour))
		require.NoError(t, err)

		const bettors = 4
		for i := 0; i < bettors; i++ {
			_, err := users.Register(ctx, fmt.Sprintf("c-%d", i), "c")
			require.NoError(t, err)
		}

		var wg sync.WaitGroup
		errs := make([]error, bettors)
		for i := 0; i < bettors; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = wagering.PlaceBet(ctx, event.ID, fmt.Sprintf("c-%d", i), i%2, 10)
			}(i)
		}
		wg.Wait()

		for _, err := range errs {
			assert.NoError(t, err)
		}
		summary, err := wagering.GetEventSummary(ctx, event.ID)
		require.NoError(t, err)
		assert.Equal(t, bettors, summary.BetCount)
		assert.Equal(t, int64(bettors*10), summary.Pool)
	})

	t.Run("concurrent bets by the same user debit once", func(t *testing.T) {
		event, err := wagering.CreateEvent(ctx, "op", "Same user?", []string{"A", "B"}, clock.Add(time.Hour))
		require.NoError(t, err)
		_, err = users.Register(ctx, "same", "same")
		require.NoError(t, err)

		const attempts = 5
		var wg sync.WaitGroup
		errs := make([]error, attempts)
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = wagering.PlaceBet(ctx, event.ID, "same", 0, 100)
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.ErrorIs(t, err, service.ErrDuplicateBet)
		}
		assert.Equal(t, 1, succeeded)

		user, err := users.GetUser(ctx, "same")
		require.NoError(t, err)
		assert.Equal(t, int64(900), user.Balance)
	})
}

func TestUnitOfWork_RollbackDiscards_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()
	factory := repository.NewUnitOfWorkFactory(testDB.DB, nil)

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))
	require.NoError(t, uow.UserRepository().Create(ctx, testutil.CreateTestUser("rolled-back")))
	require.NoError(t, uow.Rollback())

	var count int
	err := testDB.DB.WithTransaction(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE id = 'rolled-back'`).Scan(&count)
	})
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
