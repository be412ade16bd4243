package reinforcement

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// DecisionModel is a pre-trained function from an encoded state to one score per action.
// Implementations must be safe for concurrent use; the navigator never mutates them.
type DecisionModel interface {
	// InputSize is the length of the state vector the model was trained on.
	InputSize() int
	// Forward returns the action scores for an input vector.
	Forward(input []float64) ([]float64, error)
}

// Linear is a fully connected layer, y = Wx + b, with W stored row-major as [out][in].
type Linear struct {
	Weight [][]float64 `json:"weight"`
	Bias   []float64   `json:"bias"`
}

// DQN is the two layer q-network, Linear -> ReLU -> Linear, whose weights are exported
// from training as json. Inference only; nothing here updates the weights.
type DQN struct {
	FC1 Linear `json:"fc1"`
	FC2 Linear `json:"fc2"`
}

const dqnSchema = `{
	"type": "object",
	"required": ["fc1", "fc2"],
	"properties": {
		"fc1": {"$ref": "#/$defs/linear"},
		"fc2": {"$ref": "#/$defs/linear"}
	},
	"$defs": {
		"linear": {
			"type": "object",
			"required": ["weight", "bias"],
			"properties": {
				"weight": {
					"type": "array",
					"minItems": 1,
					"items": {"type": "array", "minItems": 1, "items": {"type": "number"}}
				},
				"bias": {"type": "array", "minItems": 1, "items": {"type": "number"}}
			}
		}
	}
}`

var dqnValidator = jsonschema.MustCompileString("dqn.schema.json", dqnSchema)

// LoadDQN reads a json weights artifact, zstd-decompressing it if the path ends in .zst.
// A missing file is returned as the underlying os error, so that callers can treat it
// as "no model" rather than a broken one; any other problem is an ErrConfiguration.
func LoadDQN(path string) (*DQN, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("%w: model %s: %v", ErrConfiguration, path, err)
		}
		defer dec.Close()
		r = dec
	}

	model, err := DecodeDQN(r)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", path, err)
	}
	return model, nil
}

// DecodeDQN decodes and shape-checks json weights.
func DecodeDQN(r io.Reader) (*DQN, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	var doc interface{}
	if err = json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: weights are not valid json: %v", ErrConfiguration, err)
	}
	if err = dqnValidator.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	model := &DQN{}
	if err = json.Unmarshal(data, model); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if err = model.checkShapes(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	return model, nil
}

func (m *DQN) checkShapes() error {
	if err := m.FC1.checkShape("fc1", len(m.FC1.Weight[0])); err != nil {
		return err
	}
	hidden := len(m.FC1.Bias)
	if err := m.FC2.checkShape("fc2", hidden); err != nil {
		return err
	}
	if n := len(m.FC2.Bias); n != NUM_MODEL_ACTIONS {
		return fmt.Errorf("fc2 has %d outputs, expected %d", n, NUM_MODEL_ACTIONS)
	}
	return nil
}

func (l *Linear) checkShape(name string, in int) error {
	if len(l.Weight) != len(l.Bias) {
		return fmt.Errorf("%s has %d weight rows but %d biases", name, len(l.Weight), len(l.Bias))
	}
	for i, row := range l.Weight {
		if len(row) != in {
			return fmt.Errorf("%s weight row %d has %d columns, expected %d", name, i, len(row), in)
		}
	}
	return nil
}

func (m *DQN) InputSize() int {
	return len(m.FC1.Weight[0])
}

// Forward runs the network on a state vector. Zero inputs are skipped, which makes
// the one-hot states used by the policy cost one column of fc1 rather than the full product.
func (m *DQN) Forward(input []float64) ([]float64, error) {
	if len(input) != m.InputSize() {
		return nil, fmt.Errorf("input has length %d, model expects %d", len(input), m.InputSize())
	}

	hidden := make([]float64, len(m.FC1.Bias))
	copy(hidden, m.FC1.Bias)
	for j, v := range input {
		if v == 0 {
			continue
		}
		for i := range hidden {
			hidden[i] += m.FC1.Weight[i][j] * v
		}
	}
	for i, h := range hidden {
		hidden[i] = math.Max(h, 0)
	}

	out := make([]float64, len(m.FC2.Bias))
	for i := range out {
		sum := m.FC2.Bias[i]
		for j, h := range hidden {
			sum += m.FC2.Weight[i][j] * h
		}
		out[i] = sum
	}
	return out, nil
}
