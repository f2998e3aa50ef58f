package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// envConfig holds configuration from environment variables.
// Provides container-friendly overrides without requiring YAML files.
type envConfig struct {
	ConfigPath    string // PAPERJET_CONFIG: config file path
	EngineURL     string // PAPERJET_ENGINE_URL: engine control-connection address
	Port          int    // PAPERJET_PORT: HTTP listen port
	PoolSize      int    // PAPERJET_POOL_SIZE: pooled session count
	LaunchBrowser bool   // PAPERJET_LAUNCH_BROWSER: launch a local browser when no engine URL is set
}

// knownEnvVars lists valid PAPERJET_* environment variables.
// Used to detect typos and warn users about unknown variables.
var knownEnvVars = map[string]bool{
	"PAPERJET_CONFIG":         true,
	"PAPERJET_ENGINE_URL":     true,
	"PAPERJET_PORT":           true,
	"PAPERJET_POOL_SIZE":      true,
	"PAPERJET_LAUNCH_BROWSER": true,
}

// loadEnvConfig reads configuration from environment variables.
func loadEnvConfig() *envConfig {
	return &envConfig{
		ConfigPath:    os.Getenv("PAPERJET_CONFIG"),
		EngineURL:     os.Getenv("PAPERJET_ENGINE_URL"),
		Port:          parseEnvInt("PAPERJET_PORT"),
		PoolSize:      parseEnvInt("PAPERJET_POOL_SIZE"),
		LaunchBrowser: parseEnvBool("PAPERJET_LAUNCH_BROWSER"),
	}
}

// parseEnvInt parses an integer environment variable, returning 0 (unset)
// for missing or malformed values.
func parseEnvInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// parseEnvBool treats "1", "true", "yes" (case-insensitive) as true.
func parseEnvBool(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// warnUnknownEnvVars writes a warning for each PAPERJET_* variable that is
// set but not recognized, catching typos like PAPERJET_POOLSIZE.
func warnUnknownEnvVars(w io.Writer) {
	for _, kv := range os.Environ() {
		name, _, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, "PAPERJET_") {
			continue
		}
		if !knownEnvVars[name] {
			fmt.Fprintf(w, "warning: unknown environment variable %s\n", name)
		}
	}
}
