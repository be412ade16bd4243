package reinforcement

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	. "learnpath/grid_world"
)

// ErrConfiguration is returned when the dataset, the model or the config itself fails
// to load at startup. A missing model file is not a configuration error.
var ErrConfiguration = errors.New("configuration error")

// CONFIG_KIND is the only kind of config definition this package reads.
const CONFIG_KIND = "navigator"

// DEFAULT_MAX_STEPS bounds rollouts when neither the config nor the request sets a cap.
const DEFAULT_MAX_STEPS = 1000

type OuterConfig struct {
	Kind string      `mapstructure:"kind"`
	Def  interface{} `mapstructure:"def"`
}

// Config holds the dataset, model and simulation parameters needed to construct a Navigator.
// Keys are snake_case since viper lowercases everything it reads.
type Config struct {
	Dataset    DatasetConfig    `yaml:"dataset"`
	Model      ModelConfig      `yaml:"model"`
	Simulation SimulationConfig `yaml:"simulation"`
	Batch      BatchConfig      `yaml:"batch"`
}

type DatasetConfig struct {
	// Path to a json dataset (optionally .zst) or a sqlite database.
	Path string `yaml:"path"`
	// Format is "json" or "sqlite"; inferred from the path's extension when empty.
	Format string `yaml:"format"`
	// Table is the sqlite table holding the records.
	Table string `yaml:"table"`
	// Scale converts raw coordinates into grid cells.
	Scale float64 `yaml:"scale"`
}

type ModelConfig struct {
	// Path to the json weights of the decision model. Empty means heuristic only.
	Path string `yaml:"path"`
}

type SimulationConfig struct {
	MaxSteps int `yaml:"max_steps"`
}

type BatchConfig struct {
	Workers int `yaml:"workers"`
	// Deadline is a duration, e.g. "30s", after which batch evaluation is cancelled.
	Deadline string `yaml:"deadline"`
}

// FromYaml reads a config file of the form {kind: navigator, def: {...}}. Relative
// dataset and model paths are resolved against the config file's directory.
func FromYaml(path string) (*Config, error) {
	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")
	var err error
	if err = vp.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	outerConfig := &OuterConfig{}
	if err = vp.Unmarshal(outerConfig); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if outerConfig.Kind != CONFIG_KIND {
		return nil, fmt.Errorf("%w: unsupported config kind %q", ErrConfiguration, outerConfig.Kind)
	}

	var def []byte
	if def, err = yaml.Marshal(outerConfig.Def); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	innerConfig := &Config{}
	if err = yaml.Unmarshal(def, innerConfig); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	innerConfig.resolvePaths(filepath.Dir(path))
	if err = innerConfig.SetDefaults(); err != nil {
		return nil, err
	}
	return innerConfig, nil
}

func (cfg *Config) resolvePaths(dir string) {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) || strings.Contains(p, ":") {
			return p
		}
		return filepath.Join(dir, p)
	}
	cfg.Dataset.Path = resolve(cfg.Dataset.Path)
	cfg.Model.Path = resolve(cfg.Model.Path)
}

// SetDefaults fills unset values and validates the rest.
func (cfg *Config) SetDefaults() error {
	if cfg.Dataset.Path == "" {
		return fmt.Errorf("%w: dataset.path is required", ErrConfiguration)
	}
	if cfg.Dataset.Format == "" {
		switch strings.ToLower(filepath.Ext(cfg.Dataset.Path)) {
		case ".db", ".sqlite", ".sqlite3":
			cfg.Dataset.Format = "sqlite"
		default:
			cfg.Dataset.Format = "json"
		}
	}
	if cfg.Dataset.Format != "json" && cfg.Dataset.Format != "sqlite" {
		return fmt.Errorf("%w: unknown dataset.format %q", ErrConfiguration, cfg.Dataset.Format)
	}
	if cfg.Dataset.Table == "" {
		cfg.Dataset.Table = "resources"
	}
	if cfg.Dataset.Scale == 0 {
		cfg.Dataset.Scale = DefaultScale
	}
	if cfg.Dataset.Scale < 0 {
		return fmt.Errorf("%w: dataset.scale must be positive, got %v", ErrConfiguration, cfg.Dataset.Scale)
	}

	if cfg.Simulation.MaxSteps == 0 {
		cfg.Simulation.MaxSteps = DEFAULT_MAX_STEPS
	}
	if cfg.Simulation.MaxSteps < 0 {
		return fmt.Errorf("%w: simulation.max_steps must be positive, got %d", ErrConfiguration, cfg.Simulation.MaxSteps)
	}

	if cfg.Batch.Workers == 0 {
		cfg.Batch.Workers = runtime.NumCPU()
	}
	if cfg.Batch.Workers < 0 {
		return fmt.Errorf("%w: batch.workers must be positive, got %d", ErrConfiguration, cfg.Batch.Workers)
	}
	if cfg.Batch.Deadline != "" {
		if _, err := time.ParseDuration(cfg.Batch.Deadline); err != nil {
			return fmt.Errorf("%w: batch.deadline: %v", ErrConfiguration, err)
		}
	}
	return nil
}

// WithBatchDeadline returns a context extended by the batch deadline, if one is specified.
func (cfg *Config) WithBatchDeadline(
	ctx context.Context,
) (context.Context, context.CancelFunc, error) {
	if cfg.Batch.Deadline != "" {
		if duration, err := time.ParseDuration(cfg.Batch.Deadline); err != nil {
			return nil, nil, fmt.Errorf("%w: batch.deadline: %v", ErrConfiguration, err)
		} else {
			innerCtx, cancel := context.WithTimeout(ctx, duration)
			return innerCtx, cancel, nil
		}
	}
	defaultCtx, cancel := context.WithCancel(ctx)
	return defaultCtx, cancel, nil
}
