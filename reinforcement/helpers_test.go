package reinforcement

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	. "learnpath/grid_world"
)

// newGrid builds a grid with a resource at each position, using unit scale so the
// positions are kept as given. Include the origin to avoid any normalization shift.
func newGrid(positions ...Position) *Grid {
	records := make([]ResourceRecord, len(positions))
	for i, p := range positions {
		records[i] = ResourceRecord{
			Name: fmt.Sprintf("topic %d", i),
			XRaw: float64(p.X),
			YRaw: float64(p.Y),
		}
	}
	grid, err := Build(records, 1)
	if err != nil {
		panic(err)
	}
	return grid
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedModel returns scores chosen per state index, and records the states it saw.
type scriptedModel struct {
	states int
	scores func(state int) []float64
	err    error
	seen   []int
}

func (m *scriptedModel) InputSize() int { return m.states }

func (m *scriptedModel) Forward(input []float64) ([]float64, error) {
	if m.err != nil {
		return nil, m.err
	}
	state := -1
	for i, v := range input {
		if v == 1 {
			if state != -1 {
				return nil, errors.New("input is not one-hot")
			}
			state = i
		}
	}
	m.seen = append(m.seen, state)
	return m.scores(state), nil
}

// constModel always prefers the same action.
func constModel(states int, action Action) *scriptedModel {
	return &scriptedModel{
		states: states,
		scores: func(int) []float64 {
			scores := []float64{0, 0}
			scores[action] = 1
			return scores
		},
	}
}
