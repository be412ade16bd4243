package reinforcement

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
	. "github.com/smartystreets/goconvey/convey"

	. "learnpath/grid_world"
)

// A 2x2 grid model: RIGHT from (0,0) and (0,1), UP from (1,0), a tie at (1,1).
// fc2 is the identity, so the scores are the relu'd columns of fc1.
const twoByTwoWeights = `{
	"fc1": {
		"weight": [[0, 1, 0, 0], [1, 0, 1, 0]],
		"bias": [0, 0]
	},
	"fc2": {
		"weight": [[1, 0], [0, 1]],
		"bias": [0, 0]
	}
}`

func TestDQN(t *testing.T) {
	Convey("Given decoded weights", t, func() {
		model, err := DecodeDQN(strings.NewReader(twoByTwoWeights))
		So(err, ShouldBeNil)
		So(model.InputSize(), ShouldEqual, 4)

		Convey("Forward computes fc2(relu(fc1(x)))", func() {
			scores, err := model.Forward([]float64{1, 0, 0, 0})
			So(err, ShouldBeNil)
			So(scores, ShouldResemble, []float64{0, 1})

			scores, err = model.Forward([]float64{0, 1, 0, 0})
			So(err, ShouldBeNil)
			So(scores, ShouldResemble, []float64{1, 0})
		})

		Convey("Negative activations are clipped by the relu", func() {
			model.FC1.Bias = []float64{-5, 0.5}
			scores, err := model.Forward([]float64{0, 1, 0, 0})
			So(err, ShouldBeNil)
			So(scores, ShouldResemble, []float64{0, 0.5})
		})

		Convey("Dense inputs are supported", func() {
			scores, err := model.Forward([]float64{0.5, 0.5, 2, 0})
			So(err, ShouldBeNil)
			So(scores, ShouldResemble, []float64{0.5, 2.5})
		})

		Convey("Inputs of the wrong length are an error", func() {
			_, err := model.Forward([]float64{1, 0})
			So(err, ShouldNotBeNil)
		})

		Convey("The model drives a rollout through the model policy", func() {
			grid := newGrid(Position{X: 0, Y: 0}, Position{X: 1, Y: 1})
			nav, err := NewNavigatorBuilder().
				WithGrid(grid).
				WithModel(model).
				WithLogger(quietLogger()).
				Build()
			So(err, ShouldBeNil)
			So(nav.Mode(), ShouldEqual, "model")

			episode, err := nav.Rollout(Position{X: 0, Y: 0}, Position{X: 1, Y: 1}, 0)
			So(err, ShouldBeNil)
			So(episode.Path, ShouldResemble, []Position{{X: 1, Y: 0}, {X: 1, Y: 1}})
			So(episode.Outcome, ShouldEqual, GOAL_REACHED)
		})
	})

	Convey("Malformed weights are configuration errors", t, func() {
		bad := []string{
			`nope`,
			`{"fc1": {"weight": [[1]], "bias": [0]}}`,
			`{"fc1": {"weight": [[1, 2], [3]], "bias": [0, 0]}, "fc2": {"weight": [[1, 1], [1, 1]], "bias": [0, 0]}}`,
			`{"fc1": {"weight": [[1], [1]], "bias": [0]}, "fc2": {"weight": [[1, 1], [1, 1]], "bias": [0, 0]}}`,
			`{"fc1": {"weight": [[1], [1]], "bias": [0, 0]}, "fc2": {"weight": [[1], [1]], "bias": [0, 0]}}`,
			`{"fc1": {"weight": [[1]], "bias": [0]}, "fc2": {"weight": [[1], [1], [1]], "bias": [0, 0, 0]}}`,
			`{"fc1": {"weight": [["a"]], "bias": [0]}, "fc2": {"weight": [[1], [1]], "bias": [0, 0]}}`,
		}
		for _, doc := range bad {
			_, err := DecodeDQN(strings.NewReader(doc))
			So(errors.Is(err, ErrConfiguration), ShouldBeTrue)
		}
	})
}

func TestLoadDQN(t *testing.T) {
	Convey("Given weights on disk", t, func() {
		dir := t.TempDir()

		Convey("Plain json is loaded", func() {
			path := filepath.Join(dir, "model.json")
			So(os.WriteFile(path, []byte(twoByTwoWeights), 0o644), ShouldBeNil)
			model, err := LoadDQN(path)
			So(err, ShouldBeNil)
			So(model.InputSize(), ShouldEqual, 4)
		})

		Convey("Zstd compressed json is loaded", func() {
			path := filepath.Join(dir, "model.json.zst")
			So(writeZstd(path, twoByTwoWeights), ShouldBeNil)
			model, err := LoadDQN(path)
			So(err, ShouldBeNil)
			So(len(model.FC2.Bias), ShouldEqual, NUM_MODEL_ACTIONS)
		})

		Convey("A missing file is distinguishable from a broken one", func() {
			_, err := LoadDQN(filepath.Join(dir, "model1.json"))
			So(errors.Is(err, os.ErrNotExist), ShouldBeTrue)
			So(errors.Is(err, ErrConfiguration), ShouldBeFalse)

			path := filepath.Join(dir, "broken.json")
			So(os.WriteFile(path, []byte(`{"fc1": 3}`), 0o644), ShouldBeNil)
			_, err = LoadDQN(path)
			So(errors.Is(err, ErrConfiguration), ShouldBeTrue)
		})
	})
}

func writeZstd(path, content string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc, err := zstd.NewWriter(f)
	if err != nil {
		return err
	}
	if _, err = enc.Write([]byte(content)); err != nil {
		return err
	}
	return enc.Close()
}
