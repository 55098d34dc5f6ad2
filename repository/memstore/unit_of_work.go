package memstore

import (
	"context"
	"fmt"

	"runepoints/events"
	"runepoints/service"
)

// NewUnitOfWorkFactory creates units of work over the store
func NewUnitOfWorkFactory(store *Store, eventBus *events.Bus) service.UnitOfWorkFactory {
	return &unitOfWorkFactory{
		store:    store,
		eventBus: eventBus,
	}
}

type unitOfWorkFactory struct {
	store    *Store
	eventBus *events.Bus
}

func (f *unitOfWorkFactory) Create() service.UnitOfWork {
	return &unitOfWork{store: f.store, eventBus: f.eventBus}
}

func (f *unitOfWorkFactory) CreateReadOnly() service.UnitOfWork {
	return &unitOfWork{store: f.store, eventBus: f.eventBus, readOnly: true}
}

type unitOfWork struct {
	store     *Store
	eventBus  *events.Bus
	readOnly  bool
	ctx       context.Context
	tx        *txn
	txBus     *events.TransactionalBus
	finalized bool
}

func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil || u.finalized {
		return fmt.Errorf("transaction already started")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	u.ctx = ctx
	u.tx = newTxn(u.store, u.readOnly)
	u.txBus = events.NewTransactionalBus(u.eventBus)
	return nil
}

func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}
	if u.readOnly {
		return fmt.Errorf("cannot commit a read-only transaction")
	}

	if _, err := u.tx.commit(); err != nil {
		return err
	}
	u.tx = nil
	u.finalized = true

	u.txBus.Flush(u.ctx)
	return nil
}

func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil
	}
	u.tx = nil
	u.finalized = true
	u.txBus.Discard()
	return nil
}

func (u *unitOfWork) active() *txn {
	if u.tx == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.tx
}

func (u *unitOfWork) UserRepository() service.UserRepository {
	return &userRepository{tx: u.active()}
}

func (u *unitOfWork) BalanceHistoryRepository() service.BalanceHistoryRepository {
	return &balanceHistoryRepository{tx: u.active()}
}

func (u *unitOfWork) BetEventRepository() service.BetEventRepository {
	return &betEventRepository{tx: u.active()}
}

func (u *unitOfWork) AttendanceTokenRepository() service.AttendanceTokenRepository {
	return &attendanceTokenRepository{tx: u.active()}
}

func (u *unitOfWork) RewardRepository() service.RewardRepository {
	return &rewardRepository{tx: u.active()}
}

func (u *unitOfWork) ExchangeRequestRepository() service.ExchangeRequestRepository {
	return &exchangeRequestRepository{tx: u.active()}
}

func (u *unitOfWork) EventBus() service.EventPublisher {
	if u.txBus == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.txBus
}
