package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"runepoints/events"
	"runepoints/models"
)

// EventSummary is the read model for an event's pool
type EventSummary struct {
	ID         string               `json:"id"`
	Question   string               `json:"question"`
	Choices    []string             `json:"choices"`
	Deadline   time.Time            `json:"deadline"`
	State      models.BetEventState `json:"state"`
	Result     *int                 `json:"result,omitempty"`
	ResolvedAt *time.Time           `json:"resolved_at,omitempty"`
	Totals     []int64              `json:"totals"`
	Pool       int64                `json:"pool"`
	Odds       []string             `json:"odds"`
	BetCount   int                  `json:"bet_count"`
}

// EventListing splits events into those still taking bets and the rest
type EventListing struct {
	Open   []*models.BetEvent `json:"open"`
	Closed []*models.BetEvent `json:"closed"`
}

// ResolutionResult describes a settled event
type ResolutionResult struct {
	Event     *models.BetEvent `json:"event"`
	Totals    []int64          `json:"totals"`
	Pool      int64            `json:"pool"`
	Odds      []string         `json:"odds"`
	Payouts   map[string]int64 `json:"payouts"`
	TotalPaid int64            `json:"total_paid"`
}

// wageringService implements the WageringService interface
type wageringService struct {
	ledger *Ledger
	cache  SummaryCache
}

// NewWageringService creates a new wagering service. cache may be nil.
func NewWageringService(ledger *Ledger, cache SummaryCache) WageringService {
	return &wageringService{
		ledger: ledger,
		cache:  cache,
	}
}

// CreateEvent opens a new market. Choice labels are trimmed and blank ones dropped.
func (s *wageringService) CreateEvent(ctx context.Context, creatorID, question string, choices []string, deadline time.Time) (*models.BetEvent, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrInvalidQuestion
	}

	labels := make([]string, 0, len(choices))
	for _, c := range choices {
		if c = strings.TrimSpace(c); c != "" {
			labels = append(labels, c)
		}
	}
	if len(labels) < models.MinChoices || len(labels) > models.MaxChoices {
		return nil, ErrInvalidChoices
	}

	now := s.ledger.Now()
	if !deadline.After(now) {
		return nil, ErrInvalidDeadline
	}

	event := &models.BetEvent{
		ID:        uuid.NewString(),
		Question:  question,
		Choices:   labels,
		Deadline:  deadline.UTC(),
		CreatedBy: creatorID,
		CreatedAt: now,
	}

	err := s.ledger.RunTransaction(ctx, func(ctx context.Context, uow UnitOfWork) error {
		if err := uow.BetEventRepository().Create(ctx, event); err != nil {
			return fmt.Errorf("failed to create event: %w", err)
		}
		uow.EventBus().Publish(events.BetEventCreatedEvent{
			EventID:   event.ID,
			Question:  event.Question,
			Choices:   event.Choices,
			Deadline:  event.Deadline,
			CreatedBy: creatorID,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"eventID":  event.ID,
		"choices":  len(event.Choices),
		"deadline": event.Deadline,
	}).Info("Bet event created")
	return event, nil
}

// PlaceBet stakes amount on one choice. Every precondition is checked against
// the transaction's snapshot, so a retried attempt re-validates from scratch.
// The debit itself is not written to the user's history.
func (s *wageringService) PlaceBet(ctx context.Context, eventID, userID string, choiceIndex int, amount int64) (*models.BetRecord, error) {
	var bet *models.BetRecord
	err := s.ledger.RunTransaction(ctx, func(ctx context.Context, uow UnitOfWork) error {
		now := s.ledger.Now()

		event, err := uow.BetEventRepository().GetByID(ctx, eventID)
		if err != nil {
			return fmt.Errorf("failed to get event: %w", err)
		}
		if event == nil {
			return ErrEventNotFound
		}
		if !event.AcceptsBets(now) {
			return ErrEventClosed
		}
		if !event.ValidChoice(choiceIndex) {
			return ErrInvalidChoice
		}
		if amount <= 0 {
			return ErrInvalidAmount
		}

		user, err := uow.UserRepository().GetByIDForUpdate(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to get user: %w", err)
		}
		if user == nil {
			return ErrUserNotFound
		}

		existing, err := uow.BetEventRepository().GetBet(ctx, eventID, userID)
		if err != nil {
			return fmt.Errorf("failed to check existing bet: %w", err)
		}
		if existing != nil {
			return ErrDuplicateBet
		}
		if amount > user.Balance {
			return ErrInsufficientBalance
		}

		bet = &models.BetRecord{
			EventID:     eventID,
			UserID:      userID,
			ChoiceIndex: choiceIndex,
			Amount:      amount,
			PlacedAt:    now,
		}
		if err := uow.BetEventRepository().CreateBet(ctx, bet); err != nil {
			return fmt.Errorf("failed to record bet: %w", err)
		}

		before, after, err := applyBalanceDelta(ctx, uow, user, -amount)
		if err != nil {
			return err
		}

		uow.EventBus().Publish(events.BetPlacedEvent{
			EventID:     eventID,
			UserID:      userID,
			ChoiceIndex: choiceIndex,
			Amount:      amount,
		})
		uow.EventBus().Publish(events.BalanceChangeEvent{
			UserID:          userID,
			OldBalance:      before,
			NewBalance:      after,
			TransactionType: models.TransactionTypeBetStake,
			ChangeAmount:    -amount,
			RelatedID:       eventID,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, eventID)
	return bet, nil
}

// ResolveEvent settles the event in a single transaction: totals are
// recomputed from the bets read inside it, every winner is credited
// floor(stake * pool / winningTotal), and the result is frozen. Authorization
// is the caller's concern.
func (s *wageringService) ResolveEvent(ctx context.Context, eventID string, winningChoice int) (*ResolutionResult, error) {
	var result *ResolutionResult
	err := s.ledger.RunTransaction(ctx, func(ctx context.Context, uow UnitOfWork) error {
		now := s.ledger.Now()

		event, err := uow.BetEventRepository().GetByIDForUpdate(ctx, eventID)
		if err != nil {
			return fmt.Errorf("failed to get event: %w", err)
		}
		if event == nil {
			return ErrEventNotFound
		}
		if event.IsResolved() {
			return ErrAlreadyResolved
		}
		if !event.ValidChoice(winningChoice) {
			return ErrInvalidChoice
		}

		bets, err := uow.BetEventRepository().GetBets(ctx, eventID)
		if err != nil {
			return fmt.Errorf("failed to get bets: %w", err)
		}

		pool := NewPool(event, bets)
		payouts := pool.Payouts(bets, winningChoice)
		odds := pool.Odds(winningChoice)

		// Lock winners in a stable order
		winners := make([]string, 0, len(payouts))
		for userID := range payouts {
			winners = append(winners, userID)
		}
		sort.Strings(winners)

		stakes := make(map[string]int64, len(bets))
		for _, bet := range bets {
			stakes[bet.UserID] = bet.Amount
		}

		var totalPaid int64
		for _, userID := range winners {
			payout := payouts[userID]
			if payout == 0 {
				continue
			}

			user, err := uow.UserRepository().GetByIDForUpdate(ctx, userID)
			if err != nil {
				return fmt.Errorf("failed to get winner %s: %w", userID, err)
			}
			if user == nil {
				return fmt.Errorf("winner %s: %w", userID, ErrUserNotFound)
			}

			before, after, err := applyBalanceDelta(ctx, uow, user, payout)
			if err != nil {
				return err
			}

			relatedID, relatedType := relatedRef(eventID, models.RelatedTypeBetEvent)
			history := &models.BalanceHistory{
				UserID:          userID,
				BalanceBefore:   before,
				BalanceAfter:    after,
				ChangeAmount:    payout,
				TransactionType: models.TransactionTypeBetWin,
				TransactionMetadata: map[string]any{
					"choice": winningChoice,
					"stake":  stakes[userID],
					"odds":   odds.StringFixed(2),
				},
				RelatedID:   relatedID,
				RelatedType: relatedType,
				CreatedAt:   now,
			}
			if err := RecordBalanceChange(ctx, uow, history); err != nil {
				return err
			}
			totalPaid += payout
		}

		if err := uow.BetEventRepository().MarkResolved(ctx, eventID, winningChoice, now); err != nil {
			return fmt.Errorf("failed to mark event resolved: %w", err)
		}
		event.Result = &winningChoice
		event.ResolvedAt = &now

		result = &ResolutionResult{
			Event:     event,
			Totals:    pool.Totals,
			Pool:      pool.Sum,
			Odds:      pool.DisplayOdds(),
			Payouts:   payouts,
			TotalPaid: totalPaid,
		}

		uow.EventBus().Publish(events.BetEventResolvedEvent{
			EventID:       eventID,
			Question:      event.Question,
			WinningChoice: winningChoice,
			WinningLabel:  event.Choices[winningChoice],
			Totals:        pool.Totals,
			Pool:          pool.Sum,
			Payouts:       payouts,
			ResolvedAt:    now,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, eventID)
	log.WithFields(log.Fields{
		"eventID":   eventID,
		"winner":    winningChoice,
		"pool":      result.Pool,
		"winners":   len(result.Payouts),
		"totalPaid": result.TotalPaid,
	}).Info("Bet event resolved")
	return result, nil
}

// GetEventSummary returns totals and odds for the event, served from the
// summary cache when one is configured.
func (s *wageringService) GetEventSummary(ctx context.Context, eventID string) (*EventSummary, error) {
	if s.cache != nil {
		if summary, ok := s.cache.Get(ctx, eventID); ok {
			summary.State = stateOf(summary, s.ledger.Now())
			return summary, nil
		}
	}

	var summary *EventSummary
	err := s.ledger.View(ctx, func(ctx context.Context, uow UnitOfWork) error {
		event, err := uow.BetEventRepository().GetByID(ctx, eventID)
		if err != nil {
			return fmt.Errorf("failed to get event: %w", err)
		}
		if event == nil {
			return ErrEventNotFound
		}
		bets, err := uow.BetEventRepository().GetBets(ctx, eventID)
		if err != nil {
			return fmt.Errorf("failed to get bets: %w", err)
		}

		pool := NewPool(event, bets)
		summary = &EventSummary{
			ID:         event.ID,
			Question:   event.Question,
			Choices:    event.Choices,
			Deadline:   event.Deadline,
			Result:     event.Result,
			ResolvedAt: event.ResolvedAt,
			Totals:     pool.Totals,
			Pool:       pool.Sum,
			Odds:       pool.DisplayOdds(),
			BetCount:   len(bets),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	summary.State = stateOf(summary, s.ledger.Now())
	if s.cache != nil {
		s.cache.Set(ctx, summary)
	}
	return summary, nil
}

// ListEvents returns open events soonest deadline first and closed events most recent first
func (s *wageringService) ListEvents(ctx context.Context) (*EventListing, error) {
	var all []*models.BetEvent
	err := s.ledger.View(ctx, func(ctx context.Context, uow UnitOfWork) error {
		var err error
		all, err = uow.BetEventRepository().GetAll(ctx)
		if err != nil {
			return fmt.Errorf("failed to list events: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	now := s.ledger.Now()
	listing := &EventListing{
		Open:   []*models.BetEvent{},
		Closed: []*models.BetEvent{},
	}
	for _, event := range all {
		if event.AcceptsBets(now) {
			listing.Open = append(listing.Open, event)
		} else {
			listing.Closed = append(listing.Closed, event)
		}
	}
	sort.SliceStable(listing.Open, func(i, j int) bool {
		return listing.Open[i].Deadline.Before(listing.Open[j].Deadline)
	})
	sort.SliceStable(listing.Closed, func(i, j int) bool {
		return listing.Closed[i].Deadline.After(listing.Closed[j].Deadline)
	})
	return listing, nil
}

// AnnounceClosedEvents publishes a closed notification for every unresolved
// event whose deadline fell in (from, to]. The state change itself is derived
// from the clock; this only tells subscribers about it.
func (s *wageringService) AnnounceClosedEvents(ctx context.Context, from, to time.Time) ([]*models.BetEvent, error) {
	var closed []*models.BetEvent
	err := s.ledger.RunTransaction(ctx, func(ctx context.Context, uow UnitOfWork) error {
		var err error
		closed, err = uow.BetEventRepository().GetUnresolvedClosedBetween(ctx, from, to)
		if err != nil {
			return fmt.Errorf("failed to get closed events: %w", err)
		}
		for _, event := range closed {
			bets, err := uow.BetEventRepository().GetBets(ctx, event.ID)
			if err != nil {
				return fmt.Errorf("failed to get bets: %w", err)
			}
			uow.EventBus().Publish(events.BetEventClosedEvent{
				EventID:  event.ID,
				Question: event.Question,
				Deadline: event.Deadline,
				Totals:   NewPool(event, bets).Totals,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return closed, nil
}

func (s *wageringService) invalidate(ctx context.Context, eventID string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, eventID)
	}
}

func stateOf(summary *EventSummary, now time.Time) models.BetEventState {
	event := models.BetEvent{Deadline: summary.Deadline, Result: summary.Result}
	return event.State(now)
}
