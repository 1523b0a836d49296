package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"loom/pkg/logging"

	"gopkg.in/yaml.v3"
)

const configFileName = "config.yaml"

// GetDefaultConfigPathOrPanic returns the per-user configuration
// directory, panicking when the home directory cannot be resolved.
func GetDefaultConfigPathOrPanic() string {
	dir, err := GetUserConfigDir()
	if err != nil {
		panic(fmt.Errorf("could not determine user config directory: %w", err))
	}
	return dir
}

// LoadConfig loads configuration from a single directory. The directory
// holds config.yaml plus subdirectories for stored entities (workflows,
// tasks). A missing config.yaml is not an error; defaults apply.
func LoadConfig(configPath string) (LoomConfig, error) {
	configFilePath := filepath.Join(configPath, configFileName)
	config := GetDefaultConfig()

	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("ConfigLoader", "No config.yaml found at %s, using defaults", configFilePath)
			return config, nil
		}
		logging.Info("ConfigLoader", "Error loading config.yaml from %s: %s", configFilePath, err)
		return LoomConfig{}, err
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return LoomConfig{}, fmt.Errorf("error loading config from %s: %w", configFilePath, err)
	}
	config.Engine.ApplyDefaults()

	logging.Info("ConfigLoader", "Loaded configuration from %s", configFilePath)
	return config, nil
}
