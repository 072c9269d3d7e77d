// Package config loads the metakit YAML configuration.
//
// Every key is optional; missing keys keep their defaults:
//
//	device:
//	  max_utilization: 0.5
//	  max_memory_usage: 0.5
//	  per_process: 1
//	  smi_timeout: 10s
//	training:
//	  init_lr: 0.1
//	  meta_lr: 0.01
//	  epochs: 1
//	  classes: 7
//	  batch_size: 14
//	  critic_hidden: 64
//	run_log: metakit.log
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/born-ml/metakit/internal/device"
	cnserrors "github.com/born-ml/metakit/internal/errors"
	"gopkg.in/yaml.v3"
)

// Config is the root of the configuration file.
type Config struct {
	Device   DeviceConfig   `yaml:"device"`
	Training TrainingConfig `yaml:"training"`
	RunLog   string         `yaml:"run_log"`
}

// DeviceConfig controls GPU selection.
type DeviceConfig struct {
	MaxUtilization float64       `yaml:"max_utilization"`
	MaxMemoryUsage float64       `yaml:"max_memory_usage"`
	PerProcess     int           `yaml:"per_process"`
	SMITimeout     time.Duration `yaml:"smi_timeout"`
}

// Limits returns the selection limits.
func (d DeviceConfig) Limits() device.Limits {
	return device.Limits{MaxUtilization: d.MaxUtilization, MaxMemoryUsage: d.MaxMemoryUsage}
}

// TrainingConfig controls the meta-training loop.
type TrainingConfig struct {
	InitLR       float64 `yaml:"init_lr"`
	MetaLR       float64 `yaml:"meta_lr"`
	Epochs       int     `yaml:"epochs"`
	Classes      int     `yaml:"classes"`
	BatchSize    int     `yaml:"batch_size"`
	CriticHidden int     `yaml:"critic_hidden"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			MaxUtilization: device.DefaultMaxUtilization,
			MaxMemoryUsage: device.DefaultMaxMemoryUsage,
			PerProcess:     1,
			SMITimeout:     device.DefaultSMITimeout,
		},
		Training: TrainingConfig{
			InitLR:       0.1,
			MetaLR:       0.01,
			Epochs:       1,
			Classes:      7,
			BatchSize:    14,
			CriticHidden: 64,
		},
		RunLog: "metakit.log",
	}
}

// Load reads path over the defaults. An empty path returns Default().
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: config path is supplied by the operator
	if err != nil {
		return nil, cnserrors.Wrap(cnserrors.ErrCodeInvalidRequest,
			fmt.Sprintf("failed to read config %s", path), err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result. Unknown
// keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, cnserrors.Wrap(cnserrors.ErrCodeInvalidRequest, "failed to parse config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges.
func (c *Config) Validate() error {
	var problems []string
	check := func(ok bool, msg string) {
		if !ok {
			problems = append(problems, msg)
		}
	}

	check(c.Device.MaxUtilization > 0 && c.Device.MaxUtilization <= 1, "device.max_utilization must be in (0, 1]")
	check(c.Device.MaxMemoryUsage > 0 && c.Device.MaxMemoryUsage <= 1, "device.max_memory_usage must be in (0, 1]")
	check(c.Device.PerProcess >= 1, "device.per_process must be at least 1")
	check(c.Device.SMITimeout > 0, "device.smi_timeout must be positive")
	check(c.Training.InitLR > 0, "training.init_lr must be positive")
	check(c.Training.MetaLR >= 0, "training.meta_lr must not be negative")
	check(c.Training.Epochs >= 1, "training.epochs must be at least 1")
	check(c.Training.Classes >= 2, "training.classes must be at least 2")
	check(c.Training.BatchSize >= c.Training.Classes, "training.batch_size must cover every class")
	check(c.Training.CriticHidden >= 1, "training.critic_hidden must be at least 1")
	check(c.RunLog != "", "run_log must be set")

	if len(problems) > 0 {
		return cnserrors.NewWithContext(cnserrors.ErrCodeInvalidRequest,
			fmt.Sprintf("invalid config: %d problem(s)", len(problems)),
			map[string]any{"problems": problems})
	}
	return nil
}
