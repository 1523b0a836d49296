package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"loom/internal/app"
)

// rootConfigPath selects the configuration directory for all commands.
// When empty, the per-user default (~/.config/loom) applies.
var rootConfigPath string

// rootDebug enables verbose logging across the application.
var rootDebug bool

// rootLogLevel selects the log level by name; --debug overrides it.
var rootLogLevel string

// newAppConfig builds the application configuration shared by every
// command entry point. Commands whose stdout is the result payload pass
// silent=true.
func newAppConfig(silent bool) *app.Config {
	cfg := app.NewConfig(rootDebug, silent, rootConfigPath)
	cfg.LogLevel = rootLogLevel
	return cfg
}

// quietByDefault reports whether a command whose stdout is the result
// payload should suppress logs: yes, unless logging was asked for
// explicitly.
func quietByDefault() bool {
	return !rootDebug && rootLogLevel == ""
}

// rootCmd represents the base command for the loom application.
var rootCmd = &cobra.Command{
	Use:   "loom",
	Short: "Run LLM-assisted workflows over an MCP tool mesh",
	Long: `loom executes YAML-defined workflows whose steps call mesh tools,
run bounded LLM agent loops, apply pure transforms or render templates.
Runs persist as durable tasks; conversations continue across runs
through thread continuation.`,
	// Handled errors print their own message; suppress the usage dump.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command. Called from the
// main package to inject the build version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "loom version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootConfigPath, "config-path", "", "Configuration directory (default ~/.config/loom)")
	rootCmd.PersistentFlags().BoolVar(&rootDebug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&rootLogLevel, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(newVersionCmd())
}
