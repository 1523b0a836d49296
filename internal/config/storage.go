package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"loom/pkg/logging"
)

// Format selects the on-disk serialization for one Storage instance.
type Format string

const (
	// FormatYAML stores entities as .yaml files (workflow definitions)
	FormatYAML Format = "yaml"

	// FormatJSON stores entities as .json files (task records)
	FormatJSON Format = "json"
)

func (f Format) ext() string {
	if f == FormatJSON {
		return ".json"
	}
	return ".yaml"
}

// Storage provides generic file-per-entity storage under a configuration
// directory. Entities are grouped by type into subdirectories and keyed
// by sanitized name.
type Storage struct {
	mu         sync.RWMutex
	configPath string // Custom config path; empty uses the default user config dir
	format     Format
}

// NewStorage creates a Storage instance using the default configuration
// directory and YAML serialization.
func NewStorage() *Storage {
	return &Storage{format: FormatYAML}
}

// NewStorageWithPath creates a Storage instance rooted at a custom path.
func NewStorageWithPath(configPath string, format Format) *Storage {
	return &Storage{configPath: configPath, format: format}
}

// Save stores data for the given entity type and name.
// entityType: subdirectory name (workflows, tasks)
// name: filename without extension
func (ds *Storage) Save(entityType string, name string, data []byte) error {
	if entityType == "" {
		return fmt.Errorf("entityType cannot be empty")
	}
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()

	targetDir, err := ds.resolveEntityDir(entityType)
	if err != nil {
		return fmt.Errorf("failed to resolve directory for entity type %s: %w", entityType, err)
	}

	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", targetDir, err)
	}

	filename := ds.sanitizeFilename(name) + ds.format.ext()
	filePath := filepath.Join(targetDir, filename)

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write file %s: %w", filePath, err)
	}

	logging.Debug("Storage", "Saved %s/%s to %s", entityType, name, filePath)
	return nil
}

// Load retrieves data for the given entity type and name.
// Returns the file content, or an error if not found.
func (ds *Storage) Load(entityType string, name string) ([]byte, error) {
	if entityType == "" {
		return nil, fmt.Errorf("entityType cannot be empty")
	}
	if name == "" {
		return nil, fmt.Errorf("name cannot be empty")
	}

	ds.mu.RLock()
	defer ds.mu.RUnlock()

	configDir, err := ds.getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get configuration directory: %w", err)
	}

	filePath := filepath.Join(configDir, entityType, ds.sanitizeFilename(name)+ds.format.ext())
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("entity %s/%s not found", entityType, name)
		}
		return nil, fmt.Errorf("failed to read file %s: %w", filePath, err)
	}

	logging.Debug("Storage", "Loaded %s/%s from %s", entityType, name, filePath)
	return data, nil
}

// Delete removes the file for the given entity type and name.
func (ds *Storage) Delete(entityType string, name string) error {
	if entityType == "" {
		return fmt.Errorf("entityType cannot be empty")
	}
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()

	configDir, err := ds.getConfigDir()
	if err != nil {
		return fmt.Errorf("failed to get configuration directory: %w", err)
	}

	filename := ds.sanitizeFilename(name) + ds.format.ext()
	filePath := filepath.Join(configDir, entityType, filename)

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return fmt.Errorf("entity %s/%s not found", entityType, name)
	}

	if err := os.Remove(filePath); err != nil {
		return fmt.Errorf("failed to delete file %s: %w", filePath, err)
	}

	logging.Debug("Storage", "Deleted %s/%s from %s", entityType, name, filePath)
	return nil
}

// List returns all available names for the given entity type.
func (ds *Storage) List(entityType string) ([]string, error) {
	if entityType == "" {
		return nil, fmt.Errorf("entityType cannot be empty")
	}

	ds.mu.RLock()
	defer ds.mu.RUnlock()

	configDir, err := ds.getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get configuration directory: %w", err)
	}

	entityPath := filepath.Join(configDir, entityType)
	names, err := ds.listFilesInDirectory(entityPath)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to list %s: %w", entityType, err)
	}

	logging.Debug("Storage", "Listed %d %s entities", len(names), entityType)
	return names, nil
}

// EntityDir returns the directory holding the given entity type.
func (ds *Storage) EntityDir(entityType string) (string, error) {
	return ds.resolveEntityDir(entityType)
}

// getConfigDir returns the configuration directory to use.
func (ds *Storage) getConfigDir() (string, error) {
	if ds.configPath != "" {
		return ds.configPath, nil
	}
	return GetUserConfigDir()
}

// resolveEntityDir determines the target directory for saving.
func (ds *Storage) resolveEntityDir(entityType string) (string, error) {
	configDir, err := ds.getConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, entityType), nil
}

// listFilesInDirectory lists matching files in a directory and returns
// their base names.
func (ds *Storage) listFilesInDirectory(dirPath string) ([]string, error) {
	if _, err := os.Stat(dirPath); os.IsNotExist(err) {
		return []string{}, nil
	}

	patterns := []string{filepath.Join(dirPath, "*"+ds.format.ext())}
	if ds.format == FormatYAML {
		patterns = append(patterns, filepath.Join(dirPath, "*.yml"))
	}

	var names []string
	for _, pattern := range patterns {
		files, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("failed to glob %s files: %w", ds.format, err)
		}
		for _, filePath := range files {
			basename := filepath.Base(filePath)
			names = append(names, strings.TrimSuffix(basename, filepath.Ext(basename)))
		}
	}

	return names, nil
}

// sanitizeFilename ensures the filename is safe for filesystem operations.
func (ds *Storage) sanitizeFilename(name string) string {
	sanitized := name
	for _, c := range []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|", "."} {
		sanitized = strings.ReplaceAll(sanitized, c, "_")
	}

	sanitized = strings.Trim(sanitized, " _")
	sanitized = strings.ReplaceAll(sanitized, " ", "_")

	for strings.Contains(sanitized, "__") {
		sanitized = strings.ReplaceAll(sanitized, "__", "_")
	}
	sanitized = strings.Trim(sanitized, "_")

	if sanitized == "" {
		sanitized = "unnamed"
	}

	return sanitized
}
