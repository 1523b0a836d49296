package provider

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"loom/pkg/logging"
)

// LoadSpecs loads provider specs from the providers/ subdirectory of the
// configuration path. A missing directory is not an error; invalid files
// are skipped with a logged error so one bad definition never blocks the
// rest of the mesh.
func LoadSpecs(configPath string) ([]Spec, error) {
	if configPath == "" {
		return nil, nil
	}
	dir := filepath.Join(configPath, "providers")

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		logging.Debug("ProviderLoader", "No providers directory at %s", dir)
		return nil, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read providers directory: %w", err)
	}

	var specs []Spec
	for _, entry := range entries {
		if entry.IsDir() || !isYAMLFile(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		spec, err := loadSpecFromFile(path)
		if err != nil {
			logging.Error("ProviderLoader", err, "Failed to load provider from %s", path)
			continue
		}
		specs = append(specs, *spec)
	}

	logging.Info("ProviderLoader", "Loaded %d provider definitions from %s", len(specs), dir)
	return specs, nil
}

func loadSpecFromFile(path string) (*Spec, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}

	var spec Spec
	if err := yaml.Unmarshal(content, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse YAML from %s: %w", path, err)
	}
	if spec.Name == "" {
		spec.Name = strings.TrimSuffix(strings.TrimSuffix(filepath.Base(path), ".yaml"), ".yml")
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

func isYAMLFile(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml")
}
