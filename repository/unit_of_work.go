package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"runepoints/database"
	"runepoints/events"
	"runepoints/service"
)

// unitOfWork implements the UnitOfWork interface over a serializable Postgres transaction
type unitOfWork struct {
	db                  *database.DB
	readOnly            bool
	tx                  pgx.Tx
	ctx                 context.Context
	transactionalBus    *events.TransactionalBus
	userRepo            service.UserRepository
	balanceHistoryRepo  service.BalanceHistoryRepository
	betEventRepo        service.BetEventRepository
	attendanceTokenRepo service.AttendanceTokenRepository
	rewardRepo          service.RewardRepository
	exchangeRequestRepo service.ExchangeRequestRepository
}

// NewUnitOfWorkFactory creates a new UnitOfWork factory
func NewUnitOfWorkFactory(db *database.DB, eventBus *events.Bus) service.UnitOfWorkFactory {
	return &unitOfWorkFactory{
		db:       db,
		eventBus: eventBus,
	}
}

type unitOfWorkFactory struct {
	db       *database.DB
	eventBus *events.Bus
}

func (f *unitOfWorkFactory) Create() service.UnitOfWork {
	return &unitOfWork{
		db:               f.db,
		transactionalBus: events.NewTransactionalBus(f.eventBus),
	}
}

func (f *unitOfWorkFactory) CreateReadOnly() service.UnitOfWork {
	return &unitOfWork{
		db:               f.db,
		readOnly:         true,
		transactionalBus: events.NewTransactionalBus(f.eventBus),
	}
}

// Begin starts a new transaction
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}

	tx, err := u.db.BeginTx(ctx, database.LedgerTxOptions(u.readOnly))
	if err != nil {
		return classify(err)
	}

	u.tx = tx
	u.ctx = ctx

	u.userRepo = newUserRepositoryWithTx(tx)
	u.balanceHistoryRepo = newBalanceHistoryRepositoryWithTx(tx)
	u.betEventRepo = newBetEventRepositoryWithTx(tx)
	u.attendanceTokenRepo = newAttendanceTokenRepositoryWithTx(tx)
	u.rewardRepo = newRewardRepositoryWithTx(tx)
	u.exchangeRequestRepo = newExchangeRequestRepositoryWithTx(tx)

	return nil
}

// Commit commits the transaction and then flushes queued events
func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	err := u.tx.Commit(u.ctx)
	u.tx = nil
	if err != nil {
		u.transactionalBus.Discard()
		return classify(err)
	}

	u.transactionalBus.Flush(u.ctx)
	return nil
}

// Rollback rolls back the transaction; it is a no-op after Commit
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil
	}

	err := u.tx.Rollback(u.ctx)
	u.tx = nil
	u.transactionalBus.Discard()
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}

// UserRepository returns the user repository for this unit of work
func (u *unitOfWork) UserRepository() service.UserRepository {
	if u.userRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.userRepo
}

// BalanceHistoryRepository returns the balance history repository for this unit of work
func (u *unitOfWork) BalanceHistoryRepository() service.BalanceHistoryRepository {
	if u.balanceHistoryRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.balanceHistoryRepo
}

// BetEventRepository returns the bet event repository for this unit of work
func (u *unitOfWork) BetEventRepository() service.BetEventRepository {
	if u.betEventRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.betEventRepo
}

// AttendanceTokenRepository returns the attendance token repository for this unit of work
func (u *unitOfWork) AttendanceTokenRepository() service.AttendanceTokenRepository {
	if u.attendanceTokenRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.attendanceTokenRepo
}

// RewardRepository returns the reward repository for this unit of work
func (u *unitOfWork) RewardRepository() service.RewardRepository {
	if u.rewardRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.rewardRepo
}

// ExchangeRequestRepository returns the exchange request repository for this unit of work
func (u *unitOfWork) ExchangeRequestRepository() service.ExchangeRequestRepository {
	if u.exchangeRequestRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.exchangeRequestRepo
}

// EventBus returns the transactional event bus for this unit of work
func (u *unitOfWork) EventBus() service.EventPublisher {
	if u.transactionalBus == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.transactionalBus
}
