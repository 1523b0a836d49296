package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// DefaultMaxAgentIterations bounds the agent loop per llm step.
	DefaultMaxAgentIterations = 10

	// DefaultRepeatThreshold is the consecutive identical tool-call count
	// treated as a stuck loop.
	DefaultRepeatThreshold = 3

	// DefaultMaxHistoryTurns caps carried conversation history.
	DefaultMaxHistoryTurns = 10

	// DefaultThreadTTL is the thread continuation window.
	DefaultThreadTTL = 30 * time.Minute

	// DefaultSweepInterval is the task TTL sweep period.
	DefaultSweepInterval = time.Minute
)

// GetDefaultConfig returns the default engine configuration.
func GetDefaultConfig() LoomConfig {
	cfg := LoomConfig{}
	cfg.Engine.ApplyDefaults()
	return cfg
}

// GetUserConfigDir returns the per-user configuration directory
// (~/.config/loom), honoring XDG_CONFIG_HOME.
func GetUserConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "loom"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", "loom"), nil
}
