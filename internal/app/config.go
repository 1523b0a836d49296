package app

import "loom/internal/api"

// Config carries everything the bootstrap needs. The callback fields
// let an embedding host supply its own LLM access, event sink and local
// leaf tools; the serve command leaves them nil and the engine degrades
// accordingly (llm steps fail, events are dropped).
type Config struct {
	// Debug enables verbose logging
	Debug bool

	// Silent suppresses all log output; used by CLI commands whose
	// stdout is the result payload
	Silent bool

	// LogLevel names the log level ("debug", "info", "warn", "error");
	// empty means info. Debug overrides it.
	LogLevel string

	// ConfigPath is the configuration directory holding config.yaml,
	// workflows/, providers/ and tasks/
	ConfigPath string

	// BuiltinWorkflowsPath optionally points at definitions shipped with
	// a deployment; custom definitions shadow them by id
	BuiltinWorkflowsPath string

	// LLM performs generation turns for llm steps and agent loops
	LLM api.LLMClient

	// Events receives task lifecycle notifications
	Events api.EventPublisher

	// LocalTools are in-process leaf tools registered into the catalog
	LocalTools []api.LocalTool
}

// NewConfig creates an application configuration for the CLI entry
// points.
func NewConfig(debug, silent bool, configPath string) *Config {
	return &Config{
		Debug:      debug,
		Silent:     silent,
		ConfigPath: configPath,
	}
}
