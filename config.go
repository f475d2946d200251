package partysync

import (
	"fmt"
	"strings"
	"time"
)

// Mode selects how a registry persists party state.
type Mode int32

// Registry persistence modes.
const (
	// ModeDurable mirrors every successful mutation into the durable
	// membership and lookup stores and supports session recovery.
	ModeDurable Mode = iota

	// ModeEphemeral keeps party state in process memory only. No durable
	// writes are issued and nothing survives a restart.
	ModeEphemeral
)

// String returns a human-readable name for the mode.
func (m Mode) String() string {
	switch m {
	case ModeDurable:
		return "durable"
	case ModeEphemeral:
		return "ephemeral"
	default:
		return "unknown"
	}
}

// BatchConfig controls the mutation batch processor's drain cadence.
type BatchConfig struct {
	// Size is the maximum number of mutation events drained per cycle.
	Size int `yaml:"size"`

	// Delay is the interval between drain cycles.
	Delay time.Duration `yaml:"delay"`
}

// BudgetConfig models the durable stores' request quota for the default
// fixed-window budget provider.
type BudgetConfig struct {
	// ReadLimit is the allowed read requests per window.
	ReadLimit int64 `yaml:"readLimit"`

	// WriteLimit is the allowed write requests per window.
	WriteLimit int64 `yaml:"writeLimit"`

	// Window is the quota window duration.
	Window time.Duration `yaml:"window"`
}

// Config is the configuration for a Registry.
//
// All duration fields accept standard Go duration strings like "30s", "5m", "720h".
type Config struct {
	// Name identifies the registry. It namespaces the membership bucket and
	// appears as the registry part of player-lookup records, so it must be
	// stable across process restarts for recovery to work.
	Name string `yaml:"name"`

	// Mode selects durable or ephemeral persistence.
	Mode Mode `yaml:"mode"`

	// DefaultCapacity is the capacity assigned to newly created parties.
	DefaultCapacity int `yaml:"defaultCapacity"`

	// RecordTTL is how long a group record survives in the membership store
	// without activity. Refreshed by every durable write and by the
	// recovery TTL refresh. Recommended: 30 days.
	RecordTTL time.Duration `yaml:"recordTtl"`

	// QuotaPollInterval is the interval between budget polls while a store
	// operation waits for request allowance.
	QuotaPollInterval time.Duration `yaml:"quotaPollInterval"`

	// RetryInterval separates attempts in the unbounded retry loops around
	// recovery, cleanup and TTL-refresh store calls.
	RetryInterval time.Duration `yaml:"retryInterval"`

	// ReadyWaitTimeout bounds how long an add operation polls for the
	// candidate's session-ready flag before rejecting.
	ReadyWaitTimeout time.Duration `yaml:"readyWaitTimeout"`

	// ReadyPollInterval is the interval between session-ready polls.
	ReadyPollInterval time.Duration `yaml:"readyPollInterval"`

	// OperationTimeout is the timeout for individual durable store
	// operations issued by the reducer.
	OperationTimeout time.Duration `yaml:"operationTimeout"`

	// MembershipBucket is the KV bucket name for group records.
	// Defaults to "party-<name>".
	MembershipBucket string `yaml:"membershipBucket"`

	// Batch controls the mutation drain cadence.
	Batch BatchConfig `yaml:"batch"`

	// Budget models the stores' request quota for the default provider.
	// Ignored when a custom BudgetProvider is injected at the hub.
	Budget BudgetConfig `yaml:"budget"`
}

// DefaultConfig returns a Config with production defaults for the given
// registry name.
//
// Returns:
//   - Config: Configuration with default values
func DefaultConfig(name string) Config {
	return Config{
		Name:              name,
		Mode:              ModeDurable,
		DefaultCapacity:   8,
		RecordTTL:         30 * 24 * time.Hour,
		QuotaPollInterval: 500 * time.Millisecond,
		RetryInterval:     2 * time.Second,
		ReadyWaitTimeout:  10 * time.Second,
		ReadyPollInterval: 100 * time.Millisecond,
		OperationTimeout:  10 * time.Second,
		Batch: BatchConfig{
			Size:  20,
			Delay: 30 * time.Second,
		},
		Budget: BudgetConfig{
			ReadLimit:  100,
			WriteLimit: 100,
			Window:     time.Minute,
		},
	}
}

// SetDefaults fills in missing configuration values with production defaults.
//
// Parameters:
//   - cfg: Config to apply defaults to (modified in place)
func SetDefaults(cfg *Config) {
	defaults := DefaultConfig(cfg.Name)

	if cfg.DefaultCapacity == 0 {
		cfg.DefaultCapacity = defaults.DefaultCapacity
	}
	if cfg.RecordTTL == 0 {
		cfg.RecordTTL = defaults.RecordTTL
	}
	if cfg.QuotaPollInterval == 0 {
		cfg.QuotaPollInterval = defaults.QuotaPollInterval
	}
	if cfg.RetryInterval == 0 {
		cfg.RetryInterval = defaults.RetryInterval
	}
	if cfg.ReadyWaitTimeout == 0 {
		cfg.ReadyWaitTimeout = defaults.ReadyWaitTimeout
	}
	if cfg.ReadyPollInterval == 0 {
		cfg.ReadyPollInterval = defaults.ReadyPollInterval
	}
	if cfg.OperationTimeout == 0 {
		cfg.OperationTimeout = defaults.OperationTimeout
	}
	if cfg.MembershipBucket == "" {
		cfg.MembershipBucket = "party-" + cfg.Name
	}
	if cfg.Batch.Size == 0 {
		cfg.Batch.Size = defaults.Batch.Size
	}
	if cfg.Batch.Delay == 0 {
		cfg.Batch.Delay = defaults.Batch.Delay
	}
	if cfg.Budget.ReadLimit == 0 {
		cfg.Budget.ReadLimit = defaults.Budget.ReadLimit
	}
	if cfg.Budget.WriteLimit == 0 {
		cfg.Budget.WriteLimit = defaults.Budget.WriteLimit
	}
	if cfg.Budget.Window == 0 {
		cfg.Budget.Window = defaults.Budget.Window
	}
}

// Validate checks configuration constraints and returns an error for
// invalid values.
//
// Hard Validation Rules:
//   - Name must be non-empty (it namespaces durable records)
//   - Name must not contain "::" (reserved as the lookup-record separator)
//   - DefaultCapacity >= 1
//   - Batch.Size >= 1 and Batch.Delay > 0
//   - RecordTTL > 0 for durable registries
//   - ReadyPollInterval <= ReadyWaitTimeout
//
// Returns:
//   - error: Validation error with a clear explanation, nil if valid
func (cfg *Config) Validate() error {
	if cfg.Name == "" {
		return fmt.Errorf("%w: registry name is required", ErrInvalidConfig)
	}

	if strings.Contains(cfg.Name, "::") {
		return fmt.Errorf("%w: registry name %q must not contain %q", ErrInvalidConfig, cfg.Name, "::")
	}

	if cfg.DefaultCapacity < 1 {
		return fmt.Errorf("%w: DefaultCapacity must be >= 1, got %d", ErrInvalidConfig, cfg.DefaultCapacity)
	}

	if cfg.Batch.Size < 1 {
		return fmt.Errorf("%w: Batch.Size must be >= 1, got %d", ErrInvalidConfig, cfg.Batch.Size)
	}

	if cfg.Batch.Delay <= 0 {
		return fmt.Errorf("%w: Batch.Delay must be > 0, got %v", ErrInvalidConfig, cfg.Batch.Delay)
	}

	if cfg.Mode == ModeDurable && cfg.RecordTTL <= 0 {
		return fmt.Errorf("%w: RecordTTL must be > 0 for durable registries", ErrInvalidConfig)
	}

	if cfg.ReadyPollInterval > cfg.ReadyWaitTimeout {
		return fmt.Errorf(
			"%w: ReadyPollInterval (%v) must not exceed ReadyWaitTimeout (%v)",
			ErrInvalidConfig, cfg.ReadyPollInterval, cfg.ReadyWaitTimeout,
		)
	}

	return nil
}

// ValidateWithWarnings checks configuration and logs warnings for
// non-recommended values.
//
// Called after Validate() during registration to provide operator guidance.
//
// Parameters:
//   - logger: Logger instance for warning output
func (cfg *Config) ValidateWithWarnings(logger Logger) {
	// A drain cadence shorter than the quota poll makes the gate the
	// effective rate limiter, which hides batching behavior.
	if cfg.Batch.Delay < cfg.QuotaPollInterval {
		logger.Warn(
			"Batch.Delay is shorter than QuotaPollInterval",
			"delay", cfg.Batch.Delay,
			"quotaPollInterval", cfg.QuotaPollInterval,
		)
	}

	if cfg.Mode == ModeDurable && cfg.RecordTTL < 24*time.Hour {
		logger.Warn(
			"RecordTTL is very short, parties may expire while idle",
			"recordTtl", cfg.RecordTTL,
			"recommended", "720h (30 days)",
		)
	}

	if cfg.Budget.WriteLimit < int64(cfg.Batch.Size) {
		logger.Warn(
			"write budget per window is below the batch size, drains will stall on quota",
			"writeLimit", cfg.Budget.WriteLimit,
			"batchSize", cfg.Batch.Size,
		)
	}
}

// TestConfig returns a configuration optimized for fast test execution.
//
// Test timings are 10-100x faster than production defaults to enable rapid
// iteration without sacrificing test coverage. Use DefaultConfig() for
// production deployments.
//
// Returns:
//   - Config: Configuration with fast timings for tests
func TestConfig(name string) Config {
	cfg := DefaultConfig(name)

	cfg.Batch.Delay = 10 * time.Millisecond
	cfg.QuotaPollInterval = 5 * time.Millisecond
	cfg.RetryInterval = 10 * time.Millisecond
	cfg.ReadyWaitTimeout = time.Second
	cfg.ReadyPollInterval = 5 * time.Millisecond
	cfg.OperationTimeout = 5 * time.Second
	cfg.Budget = BudgetConfig{ReadLimit: 10000, WriteLimit: 10000, Window: time.Minute}

	return cfg
}
