package paperjet

import (
	"time"

	"go.uber.org/zap"
)

// Capture and navigation defaults.
const (
	DefaultCaptureAttempts = 3
	DefaultNavigateTimeout = 30 * time.Second
)

// managerConfig holds tunables resolved from options.
type managerConfig struct {
	engine            Engine
	logger            *zap.Logger
	poolSize          int
	acquireTimeout    time.Duration
	navigateTimeout   time.Duration
	connectTimeout    time.Duration
	healthInterval    time.Duration
	reconnectAttempts int
	reconnectBackoff  time.Duration
	captureAttempts   int
}

func defaultManagerConfig() managerConfig {
	return managerConfig{
		engine:            NewRodEngine(),
		logger:            zap.NewNop(),
		poolSize:          DefaultPoolSize,
		acquireTimeout:    DefaultAcquireTimeout,
		navigateTimeout:   DefaultNavigateTimeout,
		connectTimeout:    DefaultConnectTimeout,
		healthInterval:    DefaultHealthCheckInterval,
		reconnectAttempts: DefaultReconnectAttempts,
		captureAttempts:   DefaultCaptureAttempts,
	}
}

// Option customizes Manager behavior.
type Option func(*managerConfig)

// WithEngine replaces the rod-backed engine, mainly for tests.
func WithEngine(e Engine) Option {
	return func(c *managerConfig) {
		if e != nil {
			c.engine = e
		}
	}
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *managerConfig) {
		if log != nil {
			c.logger = log
		}
	}
}

// WithPoolSize sets the number of pre-warmed sessions.
func WithPoolSize(n int) Option {
	return func(c *managerConfig) {
		if n > 0 {
			c.poolSize = n
		}
	}
}

// WithAcquireTimeout bounds how long a caller waits for a free session.
func WithAcquireTimeout(d time.Duration) Option {
	return func(c *managerConfig) {
		if d > 0 {
			c.acquireTimeout = d
		}
	}
}

// WithNavigateTimeout bounds page navigation during a capture.
func WithNavigateTimeout(d time.Duration) Option {
	return func(c *managerConfig) {
		if d > 0 {
			c.navigateTimeout = d
		}
	}
}

// WithHealthCheckInterval sets the connection probe interval.
func WithHealthCheckInterval(d time.Duration) Option {
	return func(c *managerConfig) {
		if d > 0 {
			c.healthInterval = d
		}
	}
}

// WithReconnectAttempts bounds reconnection tries after a connection loss.
func WithReconnectAttempts(n int) Option {
	return func(c *managerConfig) {
		if n > 0 {
			c.reconnectAttempts = n
		}
	}
}

// WithReconnectBackoff inserts a fixed delay between reconnection attempts.
// Default is none.
func WithReconnectBackoff(d time.Duration) Option {
	return func(c *managerConfig) {
		if d >= 0 {
			c.reconnectBackoff = d
		}
	}
}

// WithCaptureAttempts sets the total attempt count for one Capture call.
func WithCaptureAttempts(n int) Option {
	return func(c *managerConfig) {
		if n > 0 {
			c.captureAttempts = n
		}
	}
}
