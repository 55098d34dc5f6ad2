package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"runepoints/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionalBus_FlushDelivers(t *testing.T) {
	mainBus := NewBus()
	transactionalBus := NewTransactionalBus(mainBus)

	received := make(chan BalanceChangeEvent, 1)
	mainBus.Subscribe(EventTypeBalanceChange, func(ctx context.Context, event Event) {
		if balanceEvent, ok := event.(BalanceChangeEvent); ok {
			received <- balanceEvent
		} else {
			t.Errorf("Expected BalanceChangeEvent, got %T", event)
		}
	})

	testEvent := BalanceChangeEvent{
		UserID:          "user-1",
		OldBalance:      100,
		NewBalance:      500,
		TransactionType: models.TransactionTypeBetWin,
		ChangeAmount:    400,
		RelatedID:       "event-1",
	}
	transactionalBus.Publish(testEvent)
	assert.Len(t, transactionalBus.Pending(), 1)

	require.NoError(t, transactionalBus.Flush(context.Background()))
	assert.Empty(t, transactionalBus.Pending())

	select {
	case got := <-received:
		assert.Equal(t, testEvent, got)
	case <-time.After(2 * time.Second):
		t.Fatal("Event was not received within timeout")
	}
}

func TestTransactionalBus_MultipleEvents(t *testing.T) {
	mainBus := NewBus()
	transactionalBus := NewTransactionalBus(mainBus)

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		ids = map[string]bool{}
	)
	wg.Add(3)
	mainBus.Subscribe(EventTypeBetPlaced, func(ctx context.Context, event Event) {
		defer wg.Done()
		mu.Lock()
		ids[event.(BetPlacedEvent).UserID] = true
		mu.Unlock()
	})

	for _, uid := range []string{"a", "b", "c"} {
		transactionalBus.Publish(BetPlacedEvent{EventID: "e", UserID: uid, Amount: 10})
	}
	require.NoError(t, transactionalBus.Flush(context.Background()))

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("not all events were delivered")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, map[string]bool{"a": true, "b": true, "c": true}, ids)
}

func TestTransactionalBus_Discard(t *testing.T) {
	mainBus := NewBus()
	transactionalBus := NewTransactionalBus(mainBus)

	received := make(chan struct{}, 1)
	mainBus.Subscribe(EventTypeBalanceChange, func(ctx context.Context, event Event) {
		received <- struct{}{}
	})

	transactionalBus.Publish(BalanceChangeEvent{UserID: "user-1", ChangeAmount: 5})
	transactionalBus.Discard()
	require.NoError(t, transactionalBus.Flush(context.Background()))

	select {
	case <-received:
		t.Fatal("Event was received despite being discarded")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestTransactionalBus_NilBusDropsEvents(t *testing.T) {
	transactionalBus := NewTransactionalBus(nil)
	transactionalBus.Publish(UserRegisteredEvent{UserID: "u"})
	assert.NoError(t, transactionalBus.Flush(context.Background()))
	assert.Empty(t, transactionalBus.Pending())
}

func TestBus_SubscribeAllAndPanicRecovery(t *testing.T) {
	bus := NewBus()

	received := make(chan EventType, len(AllEventTypes))
	bus.Subscribe(EventTypeExchangeRequested, func(ctx context.Context, event Event) {
		panic("boom")
	})
	bus.SubscribeAll(func(ctx context.Context, event Event) {
		received <- event.Type()
	})

	bus.Emit(context.Background(), ExchangeRequestedEvent{UserID: "u", RewardID: "r"})
	bus.Emit(context.Background(), AttendanceGrantedEvent{UserID: "u", DayKey: "2025-07-16"})

	got := map[EventType]bool{}
	for i := 0; i < 2; i++ {
		select {
		case et := <-received:
			got[et] = true
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for events")
		}
	}
	assert.True(t, got[EventTypeExchangeRequested])
	assert.True(t, got[EventTypeAttendanceGranted])
}
