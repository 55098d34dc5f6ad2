package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"runepoints/models"
	"runepoints/service"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Warning: failed to terminate redis container: %v", err)
		}
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	rdb, err := Connect(ctx, endpoint)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestSummaryCache_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	c := NewSummaryCache(setupRedis(t), time.Minute)

	t.Run("miss", func(t *testing.T) {
		_, ok := c.Get(ctx, "nope")
		assert.False(t, ok)
	})

	t.Run("round trip and invalidate", func(t *testing.T) {
		deadline := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		summary := &service.EventSummary{
			ID:       "event-1",
			Question: "Who wins?",
			Choices:  []string{"Red", "Blue"},
			Deadline: deadline,
			State:    models.BetEventStateOpen,
			Totals:   []int64{100, 300},
			Pool:     400,
			Odds:     []string{"4.00", "1.33"},
			BetCount: 2,
		}
		c.Set(ctx, summary)

		got, ok := c.Get(ctx, "event-1")
		require.True(t, ok)
		assert.Equal(t, summary.Totals, got.Totals)
		assert.Equal(t, summary.Odds, got.Odds)
		assert.True(t, deadline.Equal(got.Deadline))

		c.Invalidate(ctx, "event-1")
		_, ok = c.Get(ctx, "event-1")
		assert.False(t, ok)
	})

	t.Run("entries expire", func(t *testing.T) {
		short := NewSummaryCache(c.rdb, 200*time.Millisecond)
		short.Set(ctx, &service.EventSummary{ID: "event-2"})

		assert.Eventually(t, func() bool {
			_, ok := short.Get(ctx, "event-2")
			return !ok
		}, 5*time.Second, 100*time.Millisecond)
	})

	t.Run("undecodable entry is dropped", func(t *testing.T) {
		require.NoError(t, c.rdb.Set(ctx, summaryKey("event-3"), "{not json", time.Minute).Err())

		_, ok := c.Get(ctx, "event-3")
		assert.False(t, ok)
		n, err := c.rdb.Exists(ctx, summaryKey("event-3")).Result()
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)
	})
}
