package reinforcement

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	. "learnpath/grid_world"
)

// Step is a single transition of the agent: do Action at Position, land on Next and
// observe Reward.
type Step struct {
	Position    Position `json:"-"`
	Next        Position `json:"nextPosition"`
	Action      Action   `json:"action"`
	Reward      float64  `json:"reward"`
	GoalReached bool     `json:"isGoalReached"`
}

// Outcome is the terminal state of a rollout.
type Outcome string

const (
	GOAL_REACHED        Outcome = "GOAL_REACHED"
	STEP_LIMIT_EXCEEDED Outcome = "STEP_LIMIT_EXCEEDED"
)

// Episode is the result of a rollout: every position visited after the start, in order.
// TotalSteps always equals len(Path). Episodes are never persisted.
type Episode struct {
	ID         string     `json:"id"`
	Start      Position   `json:"startPosition"`
	Goal       Position   `json:"goalPosition"`
	Path       []Position `json:"path"`
	TotalSteps int        `json:"totalSteps"`
	Return     float64    `json:"return"`
	Outcome    Outcome    `json:"outcome"`
}

// Navigator runs the policy over a loaded grid. It holds only immutable state after
// construction, so a single Navigator may serve any number of concurrent callers.
type Navigator struct {
	grid     *Grid
	policy   Policy
	maxSteps int
	logger   *slog.Logger
}

// NavigatorBuilder assembles a Navigator. The policy is chosen once, in Build: a model
// policy when WithModel was given a model, the heuristic otherwise.
type NavigatorBuilder struct {
	grid     *Grid
	model    DecisionModel
	maxSteps int
	logger   *slog.Logger
}

// NewNavigatorBuilder returns a builder with the default step cap and logger.
func NewNavigatorBuilder() *NavigatorBuilder {
	return &NavigatorBuilder{
		maxSteps: DEFAULT_MAX_STEPS,
		logger:   slog.Default(),
	}
}

func (nb *NavigatorBuilder) WithGrid(grid *Grid) *NavigatorBuilder {
	nb.grid = grid
	return nb
}

// WithModel sets the decision model. A nil model leaves the navigator on the heuristic.
func (nb *NavigatorBuilder) WithModel(model DecisionModel) *NavigatorBuilder {
	nb.model = model
	return nb
}

// WithMaxSteps sets the default rollout cap, used when a request does not set its own.
func (nb *NavigatorBuilder) WithMaxSteps(maxSteps int) *NavigatorBuilder {
	nb.maxSteps = maxSteps
	return nb
}

func (nb *NavigatorBuilder) WithLogger(logger *slog.Logger) *NavigatorBuilder {
	nb.logger = logger
	return nb
}

// ErrNoGrid is returned when Build() is called before WithGrid().
var ErrNoGrid = fmt.Errorf("%w: no grid: WithGrid must be called", ErrConfiguration)

// Build validates the parts and selects the policy.
func (nb *NavigatorBuilder) Build() (*Navigator, error) {
	if nb.grid == nil {
		return nil, ErrNoGrid
	}
	if nb.maxSteps < 1 {
		return nil, fmt.Errorf("%w: max steps must be positive, got %d", ErrConfiguration, nb.maxSteps)
	}
	logger := nb.logger
	if logger == nil {
		logger = slog.Default()
	}

	var policy Policy = NewHeuristicPolicy(nb.grid.Space())
	if nb.model != nil {
		modelPolicy, err := NewModelPolicy(nb.grid.Space(), nb.model)
		if err != nil {
			return nil, err
		}
		policy = modelPolicy
	}

	return &Navigator{
		grid:     nb.grid,
		policy:   policy,
		maxSteps: nb.maxSteps,
		logger:   logger.With("policy", policy.Mode()),
	}, nil
}

func (nav *Navigator) Grid() *Grid {
	return nav.grid
}

// Mode reports which policy drives the agent: "model" or "heuristic".
func (nav *Navigator) Mode() string {
	return nav.policy.Mode()
}

// Snapshot describes the static grid.
func (nav *Navigator) Snapshot() Snapshot {
	return nav.grid.Snapshot()
}

// Step decides and applies one action from pos toward goal. Positions off the grid are
// rejected rather than clamped.
func (nav *Navigator) Step(pos, goal Position) (Step, error) {
	if err := nav.checkRequest(pos, goal); err != nil {
		return Step{}, fmt.Errorf("step: %w", err)
	}
	step, err := nav.transition(pos, goal)
	if err != nil {
		return Step{}, fmt.Errorf("step: %w", err)
	}
	return step, nil
}

func (nav *Navigator) transition(pos, goal Position) (Step, error) {
	decision, err := nav.policy.Decide(pos, goal)
	if err != nil {
		return Step{}, err
	}
	return Step{
		Position:    pos,
		Next:        decision.Next,
		Action:      decision.Action,
		Reward:      Reward(pos, decision.Next, goal, nav.grid.Resources()),
		GoalReached: decision.Next == goal,
	}, nil
}

func (nav *Navigator) checkRequest(pos, goal Position) error {
	if err := nav.grid.Validate("position", pos); err != nil {
		return err
	}
	return nav.grid.Validate("goal", goal)
}

// Rollout repeatedly steps from start until the goal is reached or maxSteps steps have
// been taken, whichever comes first. A maxSteps of zero uses the navigator's default.
// Since the agent only moves up or right, goals below or left of the start are reached
// only by hitting the step cap.
func (nav *Navigator) Rollout(start, goal Position, maxSteps int) (*Episode, error) {
	if maxSteps < 0 {
		return nil, fmt.Errorf("rollout: %w: max steps must not be negative, got %d", ErrInvalidInput, maxSteps)
	}
	if maxSteps == 0 {
		maxSteps = nav.maxSteps
	}
	if err := nav.checkRequest(start, goal); err != nil {
		return nil, fmt.Errorf("rollout: %w", err)
	}

	episode := &Episode{
		ID:    uuid.NewString(),
		Start: start,
		Goal:  goal,
		Path:  []Position{},
	}
	pos := start
	for pos != goal && episode.TotalSteps < maxSteps {
		step, err := nav.transition(pos, goal)
		if err != nil {
			return nil, fmt.Errorf("rollout: %w", err)
		}
		pos = step.Next
		episode.Path = append(episode.Path, pos)
		episode.Return += step.Reward
		episode.TotalSteps++
	}

	episode.Outcome = GOAL_REACHED
	if pos != goal {
		episode.Outcome = STEP_LIMIT_EXCEEDED
	}
	nav.logger.Debug("rollout finished",
		"id", episode.ID,
		"start", start.String(),
		"goal", goal.String(),
		"outcome", episode.Outcome,
		"steps", episode.TotalSteps)
	return episode, nil
}

