package events

import (
	"context"
	"sync"
	"time"

	"runepoints/models"

	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeBalanceChange     EventType = "balance_change"
	EventTypeUserRegistered    EventType = "user_registered"
	EventTypeBetPlaced         EventType = "bet_placed"
	EventTypeBetEventCreated   EventType = "bet_event_created"
	EventTypeBetEventClosed    EventType = "bet_event_closed"
	EventTypeBetEventResolved  EventType = "bet_event_resolved"
	EventTypeAttendanceGranted EventType = "attendance_granted"
	EventTypeExchangeRequested EventType = "exchange_requested"
)

// AllEventTypes lists every type emitted by the services, for subscribers that forward everything
var AllEventTypes = []EventType{
	EventTypeBalanceChange,
	EventTypeUserRegistered,
	EventTypeBetPlaced,
	EventTypeBetEventCreated,
	EventTypeBetEventClosed,
	EventTypeBetEventResolved,
	EventTypeAttendanceGranted,
	EventTypeExchangeRequested,
}

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// BalanceChangeEvent represents a balance change that occurred
type BalanceChangeEvent struct {
	UserID          string                 `json:"user_id"`
	OldBalance      int64                  `json:"old_balance"`
	NewBalance      int64                  `json:"new_balance"`
	TransactionType models.TransactionType `json:"transaction_type,omitempty"`
	ChangeAmount    int64                  `json:"change_amount"`
	RelatedID       string                 `json:"related_id,omitempty"`
}

func (e BalanceChangeEvent) Type() EventType {
	return EventTypeBalanceChange
}

// UserRegisteredEvent represents a new member joining the ledger
type UserRegisteredEvent struct {
	UserID         string `json:"user_id"`
	Username       string `json:"username"`
	InitialBalance int64  `json:"initial_balance"`
}

func (e UserRegisteredEvent) Type() EventType {
	return EventTypeUserRegistered
}

// BetPlacedEvent represents a stake recorded on an event
type BetPlacedEvent struct {
	EventID     string `json:"event_id"`
	UserID      string `json:"user_id"`
	ChoiceIndex int    `json:"choice_index"`
	Amount      int64  `json:"amount"`
}

func (e BetPlacedEvent) Type() EventType {
	return EventTypeBetPlaced
}

// BetEventCreatedEvent is emitted when an operator opens a new market
type BetEventCreatedEvent struct {
	EventID   string    `json:"event_id"`
	Question  string    `json:"question"`
	Choices   []string  `json:"choices"`
	Deadline  time.Time `json:"deadline"`
	CreatedBy string    `json:"created_by"`
}

func (e BetEventCreatedEvent) Type() EventType {
	return EventTypeBetEventCreated
}

// BetEventClosedEvent is emitted once an event's deadline has passed without a result
type BetEventClosedEvent struct {
	EventID  string    `json:"event_id"`
	Question string    `json:"question"`
	Deadline time.Time `json:"deadline"`
	Totals   []int64   `json:"totals"`
}

func (e BetEventClosedEvent) Type() EventType {
	return EventTypeBetEventClosed
}

// BetEventResolvedEvent carries the settlement of an event
type BetEventResolvedEvent struct {
	EventID       string           `json:"event_id"`
	Question      string           `json:"question"`
	WinningChoice int              `json:"winning_choice"`
	WinningLabel  string           `json:"winning_label"`
	Totals        []int64          `json:"totals"`
	Pool          int64            `json:"pool"`
	Payouts       map[string]int64 `json:"payouts"`
	ResolvedAt    time.Time        `json:"resolved_at"`
}

func (e BetEventResolvedEvent) Type() EventType {
	return EventTypeBetEventResolved
}

// AttendanceGrantedEvent represents a successful check-in
type AttendanceGrantedEvent struct {
	UserID    string `json:"user_id"`
	DayKey    string `json:"day_key"`
	ClassName string `json:"class_name"`
	Credit    int64  `json:"credit"`
}

func (e AttendanceGrantedEvent) Type() EventType {
	return EventTypeAttendanceGranted
}

// ExchangeRequestedEvent represents a redemption awaiting fulfillment
type ExchangeRequestedEvent struct {
	UserID     string `json:"user_id"`
	RewardID   string `json:"reward_id"`
	RewardName string `json:"reward_name"`
	Cost       int64  `json:"cost"`
}

func (e ExchangeRequestedEvent) Type() EventType {
	return EventTypeExchangeRequested
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// SubscribeAll adds the handler to every known event type
func (b *Bus) SubscribeAll(handler Handler) {
	for _, eventType := range AllEventTypes {
		b.Subscribe(eventType, handler)
	}
}

// Emit publishes an event to all registered handlers
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"handlerCount": len(handlers),
	}).Debug("Emitting event to handlers")

	// Handlers run asynchronously so a slow subscriber never holds up a request
	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// TransactionalBus holds events raised inside a unit of work until it commits.
type TransactionalBus struct {
	real    *Bus
	pending []Event
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) {
	log.WithFields(log.Fields{
		"eventType":    e.Type(),
		"pendingCount": len(b.pending),
	}).Debug("Queued event on transactional bus")
	b.pending = append(b.pending, e)
}

// Pending returns the queued events without flushing them
func (b *TransactionalBus) Pending() []Event {
	out := make([]Event, len(b.pending))
	copy(out, b.pending)
	return out
}

// Flush is called after a successful commit. A nil underlying bus drops the events.
func (b *TransactionalBus) Flush(ctx context.Context) error {
	if b.real == nil {
		b.pending = nil
		return nil
	}

	log.WithFields(log.Fields{
		"pendingEventCount": len(b.pending),
	}).Debug("Flushing transactional bus")

	// Detached from the request context, which may be cancelled once the response is written
	eventCtx := context.WithoutCancel(ctx)
	for _, ev := range b.pending {
		b.real.Emit(eventCtx, ev)
	}
	b.pending = nil
	return nil
}

// Discard is called after a rollback.
func (b *TransactionalBus) Discard() {
	b.pending = nil
}
