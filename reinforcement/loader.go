package reinforcement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	. "learnpath/grid_world"
)

// LoadNavigator loads the dataset and the decision model named by the config and builds a
// Navigator. A model that is not configured or whose file does not exist is not an error;
// the navigator falls back to the heuristic policy and logs the degradation. Every other
// load failure is wrapped in ErrConfiguration.
func LoadNavigator(ctx context.Context, cfg *Config, logger *slog.Logger) (*Navigator, error) {
	if logger == nil {
		logger = slog.Default()
	}

	records, err := loadRecords(ctx, cfg.Dataset)
	if err != nil {
		return nil, fmt.Errorf("%w: dataset %s: %w", ErrConfiguration, cfg.Dataset.Path, err)
	}
	grid, err := Build(records, cfg.Dataset.Scale)
	if err != nil {
		return nil, fmt.Errorf("%w: dataset %s: %w", ErrConfiguration, cfg.Dataset.Path, err)
	}
	space := grid.Space()
	logger.Info("grid built",
		"dataset", cfg.Dataset.Path,
		"resources", len(records),
		"width", space.Width,
		"height", space.Height)

	builder := NewNavigatorBuilder().
		WithGrid(grid).
		WithMaxSteps(cfg.Simulation.MaxSteps).
		WithLogger(logger)

	switch model, err := loadModel(cfg.Model.Path); {
	case err == nil:
		logger.Info("decision model loaded", "path", cfg.Model.Path, "states", model.InputSize())
		builder.WithModel(model)
	case errors.Is(err, os.ErrNotExist):
		logger.Warn("decision model unavailable, falling back to heuristic policy",
			"path", cfg.Model.Path, "reason", err)
	default:
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	return builder.Build()
}

func loadRecords(ctx context.Context, dataset DatasetConfig) ([]ResourceRecord, error) {
	if dataset.Format == "sqlite" {
		return LoadRecordsSQLite(ctx, dataset.Path, dataset.Table)
	}
	return LoadRecordsFile(dataset.Path)
}

var errNoModelPath = fmt.Errorf("no model path configured: %w", os.ErrNotExist)

func loadModel(path string) (*DQN, error) {
	if path == "" {
		return nil, errNoModelPath
	}
	return LoadDQN(path)
}
