// Package logging provides the shared logging facility for loom.
//
// All components log through subsystem-tagged helpers (Debug, Info, Warn,
// Error) backed by log/slog. Init must be called once at startup; before
// that, log calls are silently dropped.
package logging
