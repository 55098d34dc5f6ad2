package config

import (
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"

	// Embedded zone database so SERVICE_TIMEZONE resolves on minimal images
	_ "time/tzdata"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL             string `env:"DATABASE_URL"`
	DatabaseName            string `env:"DATABASE_NAME"`
	DatabaseApplicationName string `env:"DATABASE_APPLICATION_NAME" envDefault:"runepoints"`
	DatabaseMaxConns        int32  `env:"DATABASE_MAX_CONNS"        envDefault:"10"`
	DatabaseMinConns        int32  `env:"DATABASE_MIN_CONNS"        envDefault:"0"`

	// Ledger configuration
	StartingBalance         int64         `env:"STARTING_BALANCE"              envDefault:"100"`
	LedgerMaxAttempts       int           `env:"LEDGER_MAX_ATTEMPTS"           envDefault:"5"`
	LedgerRetryInitialDelay time.Duration `env:"LEDGER_RETRY_INITIAL_INTERVAL" envDefault:"20ms"`

	// Attendance configuration
	AttendanceCredit       int64         `env:"ATTENDANCE_CREDIT"         envDefault:"1"`
	ServiceTimezone        string        `env:"SERVICE_TIMEZONE"          envDefault:"Asia/Tokyo"`
	ServiceDayRolloverHour int           `env:"SERVICE_DAY_ROLLOVER_HOUR" envDefault:"8"`
	AttendanceTokenTTL     time.Duration `env:"ATTENDANCE_TOKEN_TTL"      envDefault:"1h"`

	// Operators may create and resolve events, issue tokens and edit the catalog
	OperatorIDs []string `env:"OPERATOR_IDS" envSeparator:","`

	// HTTP and metrics
	HTTPAddr    string `env:"HTTP_ADDR"    envDefault:":8080"`
	MetricsPort int    `env:"METRICS_PORT" envDefault:"9090"`

	// Optional integrations; empty disables them
	RedisAddr       string        `env:"REDIS_ADDR"`
	SummaryCacheTTL time.Duration `env:"SUMMARY_CACHE_TTL" envDefault:"5s"`
	NATSServers     string        `env:"NATS_SERVERS"`
	DiscordToken    string        `env:"DISCORD_TOKEN"`
	DiscordChannel  string        `env:"DISCORD_CHANNEL_ID"`

	// Cron spec for the deadline watcher
	DeadlineWatchSchedule string `env:"DEADLINE_WATCH_SCHEDULE" envDefault:"@every 1m"`

	// Environment
	Environment string `env:"ENVIRONMENT" envDefault:"development"` // "development", "production" or "test"
	LogLevel    string `env:"LOG_LEVEL"   envDefault:"info"`
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	// If instance is already set (e.g., by tests), return it
	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			if os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// load loads configuration from environment variables
func load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and, outside tests, required settings
func (c *Config) Validate() error {
	if c.LedgerMaxAttempts < 1 {
		return fmt.Errorf("LEDGER_MAX_ATTEMPTS must be at least 1")
	}
	if c.ServiceDayRolloverHour < 0 || c.ServiceDayRolloverHour > 23 {
		return fmt.Errorf("SERVICE_DAY_ROLLOVER_HOUR must be between 0 and 23")
	}
	if c.DatabaseMaxConns < 0 || c.DatabaseMinConns < 0 || c.DatabaseMinConns > c.DatabaseMaxConns {
		return fmt.Errorf("DATABASE_MIN_CONNS must be between 0 and DATABASE_MAX_CONNS")
	}
	if c.AttendanceCredit < 0 || c.StartingBalance < 0 {
		return fmt.Errorf("ATTENDANCE_CREDIT and STARTING_BALANCE must not be negative")
	}
	if _, err := time.LoadLocation(c.ServiceTimezone); err != nil {
		return fmt.Errorf("invalid SERVICE_TIMEZONE %q: %w", c.ServiceTimezone, err)
	}
	if c.Environment != "test" && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	return nil
}

// Location returns the service-day reference timezone
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.ServiceTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsOperator checks whether the user may perform operator actions
func (c *Config) IsOperator(userID string) bool {
	return userID != "" && slices.Contains(c.OperatorIDs, userID)
}

// SetTestConfig overrides the global config instance for testing
// This should only be called from test files
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
// This should only be called from test files
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		Environment:             "test",
		DatabaseMaxConns:        4,
		LogLevel:                "debug",
		StartingBalance:         100,
		LedgerMaxAttempts:       5,
		LedgerRetryInitialDelay: time.Millisecond,
		AttendanceCredit:        1,
		ServiceTimezone:         "Asia/Tokyo",
		ServiceDayRolloverHour:  8,
		AttendanceTokenTTL:      time.Hour,
		OperatorIDs:             []string{"operator-1"},
		HTTPAddr:                ":0",
		SummaryCacheTTL:         5 * time.Second,
		DeadlineWatchSchedule:   "@every 1m",
	}
}
