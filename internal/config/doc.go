// Package config provides engine configuration and generic file-per-entity
// storage.
//
// Storage groups entities by type into subdirectories of a configuration
// directory and keys them by sanitized name. Workflow definitions are
// stored as YAML documents, task records as JSON documents; both go
// through the same Storage type with a Format selecting the extension.
package config
