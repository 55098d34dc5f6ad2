package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultMaxAttempts     = 5
	defaultInitialInterval = 20 * time.Millisecond
	maxRetryInterval       = 500 * time.Millisecond
)

// Transaction outcomes reported to the TransactionObserver
const (
	OutcomeCommitted = "committed"
	OutcomeAborted   = "aborted"
	OutcomeConflict  = "conflict"
)

// TxFunc is the body of a ledger transaction. It may run more than once and
// must not have side effects outside the unit of work it is given.
type TxFunc func(ctx context.Context, uow UnitOfWork) error

// Ledger is the single point of balance mutation. Every write goes through
// RunTransaction, which commits all of the body's writes or none of them.
type Ledger struct {
	uowFactory      UnitOfWorkFactory
	maxAttempts     int
	initialInterval time.Duration
	now             func() time.Time
	observer        TransactionObserver
}

// LedgerOption configures a Ledger
type LedgerOption func(*Ledger)

// WithMaxAttempts bounds how many times a conflicting transaction is run
func WithMaxAttempts(n int) LedgerOption {
	return func(l *Ledger) {
		if n > 0 {
			l.maxAttempts = n
		}
	}
}

// WithRetryInterval sets the first backoff delay after a conflict
func WithRetryInterval(d time.Duration) LedgerOption {
	return func(l *Ledger) {
		if d > 0 {
			l.initialInterval = d
		}
	}
}

// WithClock replaces the wall clock used by every service built on the ledger
func WithClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) {
		l.now = now
	}
}

// WithObserver reports transaction outcomes, typically to metrics
func WithObserver(o TransactionObserver) LedgerOption {
	return func(l *Ledger) {
		l.observer = o
	}
}

// NewLedger creates a ledger over the given storage backend
func NewLedger(uowFactory UnitOfWorkFactory, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		uowFactory:      uowFactory,
		maxAttempts:     DefaultMaxAttempts,
		initialInterval: defaultInitialInterval,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Now returns the current instant in UTC
func (l *Ledger) Now() time.Time {
	return l.now().UTC()
}

// RunTransaction runs fn inside a unit of work and commits it. Errors from fn
// abort the transaction and are returned as is. A conflict reported by storage
// at any point reruns fn against a fresh snapshot, with exponential backoff,
// until the attempt budget is spent; the caller then gets ErrConflict.
func (l *Ledger) RunTransaction(ctx context.Context, fn TxFunc) error {
	start := time.Now()
	attempts := 0

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = l.initialInterval
	b.MaxInterval = maxRetryInterval

	operation := func() (struct{}, error) {
		attempts++
		err := l.attempt(ctx, l.uowFactory.Create(), fn, true)
		if err == nil {
			return struct{}{}, nil
		}
		if errors.Is(err, ErrConflict) {
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	}

	notify := func(err error, next time.Duration) {
		log.WithFields(log.Fields{
			"attempt": attempts,
			"retryIn": next,
			"error":   err,
		}).Debug("Ledger transaction conflicted, retrying")
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(l.maxAttempts)),
		backoff.WithNotify(notify),
	)

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Unwrap()
	}

	switch {
	case err == nil:
		l.observe(OutcomeCommitted, attempts, start)
		return nil
	case errors.Is(err, ErrConflict):
		l.observe(OutcomeConflict, attempts, start)
		log.WithFields(log.Fields{
			"attempts": attempts,
			"error":    err,
		}).Warn("Ledger transaction gave up after repeated conflicts")
		return fmt.Errorf("%w: gave up after %d attempts", ErrConflict, attempts)
	default:
		l.observe(OutcomeAborted, attempts, start)
		return err
	}
}

// View runs fn against a read-only snapshot. Nothing is committed, and
// conflicts are not retried because reads are not safety critical.
func (l *Ledger) View(ctx context.Context, fn TxFunc) error {
	return l.attempt(ctx, l.uowFactory.CreateReadOnly(), fn, false)
}

func (l *Ledger) attempt(ctx context.Context, uow UnitOfWork, fn TxFunc, commit bool) error {
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := fn(ctx, uow); err != nil {
		return err
	}

	if !commit {
		return nil
	}
	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (l *Ledger) observe(outcome string, attempts int, start time.Time) {
	if l.observer != nil {
		l.observer.ObserveTransaction(outcome, attempts, time.Since(start))
	}
}
