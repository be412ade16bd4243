/*
Learnpath walks an agent across a grid of learning resources, from fundamentals at the origin
toward advanced material in the far corner. The grid is built from a dataset of topics whose
coordinates come from an embedding; the agent only moves up or right, driven by a pretrained
decision model when one is available and by a greedy heuristic otherwise.

The command loads the grid and model named by the config, rolls out one episode, prints it as
json, then evaluates a rollout from every resource on a pool of workers.
*/

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	. "learnpath/grid_world"
	"learnpath/reinforcement"
)

var (
	configPath *string
	dbg        *bool
	nworkers   *int
	from       *string
	goal       *string
)

func init() {
	configPath = flag.String("config", "./config.yaml", "path to the navigator config")
	dbg = flag.Bool("debug", false, "debug mode")
	nworkers = flag.Int("nworkers", 0, "number of batch workers; overrides the config when positive")
	from = flag.String("from", "", "name of the resource to start from; the origin when empty")
	goal = flag.String("goal", "", "goal cell as x,y; the far corner when empty")
}

// parsePosition reads a position of the form "x,y".
func parsePosition(s string) (Position, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return Position{}, fmt.Errorf("%w: position %q is not of the form x,y", ErrInvalidInput, s)
	}
	x, errX := strconv.Atoi(strings.TrimSpace(parts[0]))
	y, errY := strconv.Atoi(strings.TrimSpace(parts[1]))
	if errX != nil || errY != nil {
		return Position{}, fmt.Errorf("%w: position %q is not of the form x,y", ErrInvalidInput, s)
	}
	return Position{X: x, Y: y}, nil
}

// endpoints resolves the rollout's start and goal from the flags.
func endpoints(grid *Grid, from, goal string) (start, target Position, err error) {
	space := grid.Space()
	target = Position{X: space.Width - 1, Y: space.Height - 1}
	if from != "" {
		var cell ResourceCell
		if cell, err = grid.Lookup(from); err != nil {
			return
		}
		start = cell.Position()
	}
	if goal != "" {
		target, err = parsePosition(goal)
	}
	return
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func runApp() (err error) {
	logger := newLogger(*dbg)

	var cfg *reinforcement.Config
	if cfg, err = reinforcement.FromYaml(*configPath); err != nil {
		return
	}
	if *nworkers > 0 {
		cfg.Batch.Workers = *nworkers
	}

	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	var nav *reinforcement.Navigator
	if nav, err = reinforcement.LoadNavigator(appCtx, cfg, logger); err != nil {
		return
	}
	if *dbg {
		nav.Grid().Show(os.Stderr)
	}

	start, target, err := endpoints(nav.Grid(), *from, *goal)
	if err != nil {
		return
	}
	episode, err := nav.Rollout(start, target, 0)
	if err != nil {
		return
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err = enc.Encode(episode); err != nil {
		return
	}

	batchCtx, batchCancel, err := cfg.WithBatchDeadline(appCtx)
	if err != nil {
		return
	}
	defer batchCancel()

	report, err := nav.RolloutAll(batchCtx, reinforcement.CornerRequests(nav.Grid()), cfg.Batch.Workers)
	if err != nil {
		return
	}
	logger.Info("evaluation",
		"mode", nav.Mode(),
		"episodes", len(report.Episodes),
		"goalReached", report.GoalReached,
		"stepLimitExceeded", report.StepLimitExceeded,
		"totalSteps", report.TotalSteps,
		"meanReturn", report.MeanReturn)
	return
}

func main() {
	flag.Parse()
	if err := runApp(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
