package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a SplitConfig from a YAML file, starting from Default()
// so an operator only needs to specify the fields they want to
// override, then validates the result.
func Load(path string) (SplitConfig, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return SplitConfig{}, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return SplitConfig{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return SplitConfig{}, err
	}

	return cfg, nil
}
