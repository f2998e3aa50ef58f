package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/paperjet/paperjet/internal/yamlcfg"
)

// Sentinel errors for config resolution.
var (
	ErrMissingEngineURL = errors.New("engine control URL is required (set PAPERJET_ENGINE_URL or --engine-url)")
	ErrConfigLoad       = errors.New("failed to load config file")
)

// Defaults for the server surface. Pool and capture defaults live in the
// paperjet package.
const (
	defaultPort         = 8080
	defaultReadTimeout  = 10 * time.Second
	defaultWriteTimeout = 120 * time.Second
)

// serverConfig is the fully resolved process configuration.
// Precedence: flags > environment > config file > defaults.
type serverConfig struct {
	EngineURL          string `yaml:"engineUrl"`
	Port               int    `yaml:"port"`
	PoolSize           int    `yaml:"poolSize"`
	AcquireTimeoutMs   int    `yaml:"acquireTimeoutMs"`
	NavigateTimeoutMs  int    `yaml:"navigateTimeoutMs"`
	HealthIntervalMs   int    `yaml:"healthIntervalMs"`
	ReconnectAttempts  int    `yaml:"reconnectAttempts"`
	ReconnectBackoffMs int    `yaml:"reconnectBackoffMs"`
	CaptureAttempts    int    `yaml:"captureAttempts"`
	LaunchBrowser      bool   `yaml:"launchBrowser"`
	Verbose            bool   `yaml:"verbose"`
}

// resolveConfig merges the config file, environment and flags into the final
// configuration. The engine URL must come from somewhere unless a local
// browser launch was explicitly requested; startup fails fast otherwise.
func resolveConfig(flags *serverFlags, env *envConfig) (*serverConfig, error) {
	cfg := &serverConfig{Port: defaultPort}

	configPath := env.ConfigPath
	if flags.config != "" {
		configPath = flags.config
	}
	if configPath != "" {
		if err := yamlcfg.LoadFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfigLoad, err)
		}
		if cfg.Port == 0 {
			cfg.Port = defaultPort
		}
	}

	// Environment overrides the file.
	if env.EngineURL != "" {
		cfg.EngineURL = env.EngineURL
	}
	if env.Port > 0 {
		cfg.Port = env.Port
	}
	if env.PoolSize > 0 {
		cfg.PoolSize = env.PoolSize
	}
	if env.LaunchBrowser {
		cfg.LaunchBrowser = true
	}

	// Flags override everything.
	if flags.engineURL != "" {
		cfg.EngineURL = flags.engineURL
	}
	if flags.port > 0 {
		cfg.Port = flags.port
	}
	if flags.poolSize > 0 {
		cfg.PoolSize = flags.poolSize
	}
	if flags.launchBrowser {
		cfg.LaunchBrowser = true
	}
	if flags.verbose {
		cfg.Verbose = true
	}

	if cfg.EngineURL == "" && !cfg.LaunchBrowser {
		return nil, ErrMissingEngineURL
	}
	return cfg, nil
}

// durationOrZero converts a millisecond config value to a duration, with 0
// meaning "use the library default".
func durationOrZero(ms int) time.Duration {
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}
