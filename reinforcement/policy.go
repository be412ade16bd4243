package reinforcement

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	. "learnpath/grid_world"
)

// ErrPolicyInference is returned when a decision model is present but fails to produce
// a usable decision. It is distinct from having no model, which selects the heuristic.
var ErrPolicyInference = errors.New("policy inference failed")

// Action is a discrete agent move. UP and RIGHT are the model's output indices, in order;
// STAY is never chosen directly, only substituted when a move is blocked or the goal is reached.
type Action int

const (
	UP Action = iota
	RIGHT
	STAY
)

// NUM_MODEL_ACTIONS is the number of scores a decision model must return, one each for UP and RIGHT.
const NUM_MODEL_ACTIONS = 2

var actionNames = [...]string{UP: "UP", RIGHT: "RIGHT", STAY: "STAY"}

func (a Action) String() string {
	if a < UP || a > STAY {
		return fmt.Sprintf("Action(%d)", int(a))
	}
	return actionNames[a]
}

func (a Action) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// Decision is a policy's chosen action and the position it leads to.
type Decision struct {
	Action Action
	Next   Position
}

// Policy selects the next action toward a goal. Both positions must lie on the grid.
type Policy interface {
	Decide(pos, goal Position) (Decision, error)
	// Mode names the policy for logs: "model" or "heuristic".
	Mode() string
}

// Apply moves from pos by the action. Moves that would leave the grid become STAY,
// so the result is always in bounds.
func Apply(space GridSpace, pos Position, action Action) Decision {
	switch action {
	case UP:
		if pos.Y < space.Height-1 {
			return Decision{Action: UP, Next: Position{X: pos.X, Y: pos.Y + 1}}
		}
	case RIGHT:
		if pos.X < space.Width-1 {
			return Decision{Action: RIGHT, Next: Position{X: pos.X + 1, Y: pos.Y}}
		}
	}
	return Decision{Action: STAY, Next: pos}
}

// EncodeState maps a position to its row-major state index, y*width + x.
func EncodeState(space GridSpace, pos Position) int {
	return pos.Y*space.Width + pos.X
}

func checkPositions(space GridSpace, pos, goal Position) error {
	if !space.Contains(pos) {
		return fmt.Errorf("%w: position %v outside grid %dx%d", ErrInvalidInput, pos, space.Width, space.Height)
	}
	if !space.Contains(goal) {
		return fmt.Errorf("%w: goal %v outside grid %dx%d", ErrInvalidInput, goal, space.Width, space.Height)
	}
	return nil
}

// HeuristicPolicy greedily closes the x gap first, then the y gap. It reaches any goal
// up and to the right of the start, and stays put otherwise.
type HeuristicPolicy struct {
	space GridSpace
}

func NewHeuristicPolicy(space GridSpace) *HeuristicPolicy {
	return &HeuristicPolicy{space: space}
}

func (p *HeuristicPolicy) Mode() string { return "heuristic" }

func (p *HeuristicPolicy) Decide(pos, goal Position) (Decision, error) {
	if err := checkPositions(p.space, pos, goal); err != nil {
		return Decision{}, err
	}

	action := STAY
	if pos.X < goal.X {
		action = RIGHT
	} else if pos.Y < goal.Y {
		action = UP
	}
	return Apply(p.space, pos, action), nil
}

// ModelPolicy feeds the one-hot encoded position through a decision model and takes
// the higher scoring of UP and RIGHT, preferring UP on a tie.
type ModelPolicy struct {
	space GridSpace
	model DecisionModel
}

// NewModelPolicy fails with ErrConfiguration if the model's input does not match the
// grid's state space, which means it was trained on a different grid.
func NewModelPolicy(space GridSpace, model DecisionModel) (*ModelPolicy, error) {
	if model == nil {
		return nil, fmt.Errorf("%w: nil decision model", ErrConfiguration)
	}
	if n := model.InputSize(); n != space.NumCells() {
		return nil, fmt.Errorf(
			"%w: model expects %d states but the grid is %dx%d (%d states)",
			ErrConfiguration, n, space.Width, space.Height, space.NumCells())
	}
	return &ModelPolicy{space: space, model: model}, nil
}

func (p *ModelPolicy) Mode() string { return "model" }

func (p *ModelPolicy) Decide(pos, goal Position) (Decision, error) {
	if err := checkPositions(p.space, pos, goal); err != nil {
		return Decision{}, err
	}
	if pos == goal {
		return Decision{Action: STAY, Next: pos}, nil
	}

	input := make([]float64, p.space.NumCells())
	input[EncodeState(p.space, pos)] = 1

	scores, err := p.model.Forward(input)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: state %v: %w", ErrPolicyInference, pos, err)
	}
	if len(scores) != NUM_MODEL_ACTIONS {
		return Decision{}, fmt.Errorf("%w: model returned %d scores, expected %d", ErrPolicyInference, len(scores), NUM_MODEL_ACTIONS)
	}
	for i, s := range scores {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return Decision{}, fmt.Errorf("%w: %v score is %v", ErrPolicyInference, Action(i), s)
		}
	}

	action := UP
	if scores[RIGHT] > scores[UP] {
		action = RIGHT
	}
	return Apply(p.space, pos, action), nil
}
