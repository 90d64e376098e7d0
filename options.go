package opqueue

import "time"

const (
	defaultMaxQueueSize         = 100
	defaultRetryAttempts        = 3
	defaultRetryDelay           = 5 * time.Second
	defaultBatchSize            = 10
	defaultNetworkCheckInterval = 10 * time.Second
	defaultFailedLimit          = 50
	defaultQueueKey             = "opqueue:queue"
	defaultFailedKey            = "opqueue:failed"
)

// Config defines queue behavior and collaborators.
type Config struct {
	MaxQueueSize         int
	RetryAttempts        int
	RetryDelay           time.Duration
	BatchSize            int
	AutoProcess          bool
	autoProcessSet       bool
	NetworkCheckInterval time.Duration
	FailedLimit          int
	QueueKey             string
	FailedKey            string
	Clock                Clock
	Logger               Logger
	Events               Sink
	Storage              Storage
	Connectivity         Connectivity
}

func (c Config) withDefaults() Config {
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = defaultMaxQueueSize
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = defaultRetryAttempts
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = defaultRetryDelay
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if !c.autoProcessSet {
		c.AutoProcess = true
	}
	if c.NetworkCheckInterval <= 0 {
		c.NetworkCheckInterval = defaultNetworkCheckInterval
	}
	if c.FailedLimit <= 0 {
		c.FailedLimit = defaultFailedLimit
	}
	if c.QueueKey == "" {
		c.QueueKey = defaultQueueKey
	}
	if c.FailedKey == "" {
		c.FailedKey = defaultFailedKey
	}
	if c.Clock == nil {
		c.Clock = SystemClock{}
	}
	if c.Logger == nil {
		c.Logger = NopLogger{}
	}
	if c.Events == nil {
		c.Events = NopSink{}
	}
	if c.Storage == nil {
		c.Storage = NewMemoryStorage()
	}
	if c.Connectivity == nil {
		c.Connectivity = NewManualConnectivity(true)
	}

	return c
}

// Option configures a Queue.
type Option func(*Config)

// WithMaxQueueSize bounds the live store; admission beyond the bound evicts
// the lowest-priority entry.
func WithMaxQueueSize(size int) Option {
	return func(c *Config) {
		c.MaxQueueSize = size
	}
}

// WithRetryAttempts sets the per-entry attempt budget.
func WithRetryAttempts(attempts int) Option {
	return func(c *Config) {
		c.RetryAttempts = attempts
	}
}

// WithRetryDelay sets the fixed delay before a failed entry becomes
// eligible again. The delay is deliberately constant, not exponential.
func WithRetryDelay(delay time.Duration) Option {
	return func(c *Config) {
		c.RetryDelay = delay
	}
}

// WithBatchSize sets the maximum number of entries per processing run.
func WithBatchSize(size int) Option {
	return func(c *Config) {
		c.BatchSize = size
	}
}

// WithAutoProcess enables or disables processing triggered by enqueues and
// network transitions. Manual Process calls work either way.
func WithAutoProcess(enabled bool) Option {
	return func(c *Config) {
		c.AutoProcess = enabled
		c.autoProcessSet = true
	}
}

// WithNetworkCheckInterval sets the fallback processing timer period.
func WithNetworkCheckInterval(interval time.Duration) Option {
	return func(c *Config) {
		c.NetworkCheckInterval = interval
	}
}

// WithFailedLimit bounds the failed-item store.
func WithFailedLimit(limit int) Option {
	return func(c *Config) {
		c.FailedLimit = limit
	}
}

// WithStorageKeys sets the storage keys for the queue and failed-item
// snapshots.
func WithStorageKeys(queueKey, failedKey string) Option {
	return func(c *Config) {
		c.QueueKey = queueKey
		c.FailedKey = failedKey
	}
}

// WithClock sets the queue clock.
func WithClock(clock Clock) Option {
	return func(c *Config) {
		c.Clock = clock
	}
}

// WithLogger sets the queue logger.
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithEvents sets the event sink.
func WithEvents(sink Sink) Option {
	return func(c *Config) {
		c.Events = sink
	}
}

// WithStorage sets the durable snapshot backend.
func WithStorage(storage Storage) Option {
	return func(c *Config) {
		c.Storage = storage
	}
}

// WithConnectivity sets the network state source.
func WithConnectivity(conn Connectivity) Option {
	return func(c *Config) {
		c.Connectivity = conn
	}
}
