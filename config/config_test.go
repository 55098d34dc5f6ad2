package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "test")

	cfg, err := load()
	require.NoError(t, err)

	assert.Equal(t, int64(100), cfg.StartingBalance)
	assert.Equal(t, int64(1), cfg.AttendanceCredit)
	assert.Equal(t, 5, cfg.LedgerMaxAttempts)
	assert.Equal(t, 8, cfg.ServiceDayRolloverHour)
	assert.Equal(t, time.Hour, cfg.AttendanceTokenTTL)
	assert.Equal(t, "Asia/Tokyo", cfg.Location().String())
	assert.Equal(t, "runepoints", cfg.DatabaseApplicationName)
	assert.Equal(t, int32(10), cfg.DatabaseMaxConns)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("DATABASE_URL", "postgres://localhost:5432")
	t.Setenv("OPERATOR_IDS", "alice,bob")
	t.Setenv("LEDGER_MAX_ATTEMPTS", "8")
	t.Setenv("SERVICE_TIMEZONE", "UTC")

	cfg, err := load()
	require.NoError(t, err)

	assert.Equal(t, []string{"alice", "bob"}, cfg.OperatorIDs)
	assert.Equal(t, 8, cfg.LedgerMaxAttempts)
	assert.True(t, cfg.IsOperator("bob"))
	assert.False(t, cfg.IsOperator("carol"))
	assert.False(t, cfg.IsOperator(""))
}

func TestLoad_Validation(t *testing.T) {
	t.Run("database url required outside tests", func(t *testing.T) {
		t.Setenv("ENVIRONMENT", "production")
		t.Setenv("DATABASE_URL", "")
		_, err := load()
		assert.ErrorContains(t, err, "DATABASE_URL")
	})

	t.Run("rollover hour range", func(t *testing.T) {
		t.Setenv("ENVIRONMENT", "test")
		t.Setenv("SERVICE_DAY_ROLLOVER_HOUR", "24")
		_, err := load()
		assert.ErrorContains(t, err, "SERVICE_DAY_ROLLOVER_HOUR")
	})

	t.Run("pool sizes", func(t *testing.T) {
		t.Setenv("ENVIRONMENT", "test")
		t.Setenv("DATABASE_MAX_CONNS", "2")
		t.Setenv("DATABASE_MIN_CONNS", "3")
		_, err := load()
		assert.ErrorContains(t, err, "DATABASE_MIN_CONNS")
	})

	t.Run("unknown timezone", func(t *testing.T) {
		t.Setenv("ENVIRONMENT", "test")
		t.Setenv("SERVICE_TIMEZONE", "Mars/Olympus")
		_, err := load()
		assert.ErrorContains(t, err, "SERVICE_TIMEZONE")
	})
}

func TestSetTestConfig(t *testing.T) {
	t.Cleanup(ResetConfig)

	cfg := NewTestConfig()
	cfg.AttendanceCredit = 7
	SetTestConfig(cfg)

	assert.Same(t, cfg, Get())
}
