// Package config defines SplitConfig, the validated configuration the
// splitting core accepts, plus a YAML loader for operator tooling.
// The core itself never reads files — Validate is the only boundary
// the splitter and sizer depend on.
package config

import (
	"time"

	"github.com/cuemby/checksplit/pkg/errs"
	"github.com/cuemby/checksplit/pkg/types"
)

// SplitConfig controls whether and how oversized records are sharded.
// Validate enforces the bounds on each field.
type SplitConfig struct {
	Enabled              bool           `yaml:"enabled"`
	MaxSizeThreshold     int            `yaml:"maxSizeThreshold"`
	Strategy             types.Strategy `yaml:"strategy"`
	MaxChunkSize         int            `yaml:"maxChunkSize"`
	EnableSizeMonitoring bool           `yaml:"enableSizeMonitoring"`
	SplitRecordPrefix    string         `yaml:"splitRecordPrefix"`
	MaxRetries           int            `yaml:"maxRetries"`
	// OperationTimeout decodes as a Go duration scalar (e.g. "30s"),
	// not a bare millisecond count — yaml.v3 unmarshals time.Duration
	// via its standard string parser.
	OperationTimeout time.Duration `yaml:"operationTimeout"`
}

// Default returns the documented default configuration. Enabled is
// false by default — a caller must opt in.
func Default() SplitConfig {
	return SplitConfig{
		Enabled:              false,
		MaxSizeThreshold:     358_400,
		Strategy:             types.MessageLevel,
		MaxChunkSize:         307_200,
		EnableSizeMonitoring: true,
		SplitRecordPrefix:    "split",
		MaxRetries:           3,
		OperationTimeout:     30 * time.Second,
	}
}

// Validate checks SplitConfig against its documented bounds and
// returns the first violation found, wrapped as *errs.ConfigError.
func (c SplitConfig) Validate() error {
	if c.MaxSizeThreshold < 100_000 || c.MaxSizeThreshold > 400_000 {
		return &errs.ConfigError{Field: "maxSizeThreshold", Msg: "must be between 100000 and 400000 bytes"}
	}
	if c.Strategy != types.MessageLevel && c.Strategy != types.ContentLevel {
		return &errs.ConfigError{Field: "strategy", Msg: "must be MESSAGE_LEVEL or CONTENT_LEVEL"}
	}
	if c.MaxChunkSize < 50_000 || c.MaxChunkSize > 350_000 {
		return &errs.ConfigError{Field: "maxChunkSize", Msg: "must be between 50000 and 350000 bytes"}
	}
	if c.SplitRecordPrefix == "" {
		return &errs.ConfigError{Field: "splitRecordPrefix", Msg: "must be non-empty"}
	}
	if c.MaxRetries < 1 || c.MaxRetries > 10 {
		return &errs.ConfigError{Field: "maxRetries", Msg: "must be between 1 and 10"}
	}
	if c.OperationTimeout < 5*time.Second || c.OperationTimeout > 120*time.Second {
		return &errs.ConfigError{Field: "operationTimeout", Msg: "must be between 5s and 120s"}
	}
	return nil
}
