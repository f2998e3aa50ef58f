// Package yamlcfg wraps YAML parsing to isolate the external dependency.
// This allows swapping the underlying YAML library without modifying callers.
package yamlcfg

import (
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// MaxFileSize limits config files to prevent memory exhaustion (default 1MB).
var MaxFileSize int64 = 1 << 20

var (
	ErrEmptyData      = errors.New("yamlcfg: empty data")
	ErrNilDestination = errors.New("yamlcfg: nil destination pointer")
	ErrFileTooLarge   = errors.New("yamlcfg: file exceeds maximum size")
)

// Unmarshal parses YAML data into v.
func Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return ErrEmptyData
	}
	if v == nil {
		return ErrNilDestination
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("yamlcfg: %w", err)
	}
	return nil
}

// LoadFile reads and parses a YAML config file into v, enforcing the size
// limit before reading.
func LoadFile(path string, v any) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("yamlcfg: %w", err)
	}
	if info.Size() > MaxFileSize {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrFileTooLarge, info.Size(), MaxFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("yamlcfg: %w", err)
	}
	return Unmarshal(data, v)
}
