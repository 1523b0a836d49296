package config

import "time"

// LoomConfig is the top-level configuration structure for loom.
type LoomConfig struct {
	Engine EngineConfig `yaml:"engine,omitempty"`
}

// EngineConfig holds the tunable knobs of the execution core.
type EngineConfig struct {
	// MaxAgentIterations caps the agent loop when an llm step does not
	// set its own ceiling (default: 10)
	MaxAgentIterations int `yaml:"maxAgentIterations,omitempty"`

	// RepeatThreshold is the number of consecutive identical tool calls
	// after which the agent loop aborts as stuck (default: 3)
	RepeatThreshold int `yaml:"repeatThreshold,omitempty"`

	// MaxHistoryTurns caps the conversational context carried into an
	// llm step and a continued thread (default: 10)
	MaxHistoryTurns int `yaml:"maxHistoryTurns,omitempty"`

	// ThreadTTL is the window within which a completed task remains
	// continuable for its (source, chat) key (default: 30m)
	ThreadTTL time.Duration `yaml:"threadTTL,omitempty"`

	// SweepInterval is the period of the task TTL cleanup sweep
	// (default: 1m)
	SweepInterval time.Duration `yaml:"sweepInterval,omitempty"`
}

// ApplyDefaults fills zero fields with engine defaults.
func (c *EngineConfig) ApplyDefaults() {
	if c.MaxAgentIterations <= 0 {
		c.MaxAgentIterations = DefaultMaxAgentIterations
	}
	if c.RepeatThreshold <= 0 {
		c.RepeatThreshold = DefaultRepeatThreshold
	}
	if c.MaxHistoryTurns <= 0 {
		c.MaxHistoryTurns = DefaultMaxHistoryTurns
	}
	if c.ThreadTTL <= 0 {
		c.ThreadTTL = DefaultThreadTTL
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
}
