package grid_world

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

var logicRecords = []ResourceRecord{
	{Name: "Introduction to Mathematical Logic", XRaw: 0.19, YRaw: 0.17},
	{Name: "SAT Problem", XRaw: 0.22, YRaw: 0.18},
	{Name: "Resolution", XRaw: 0.18, YRaw: 0.18},
	{Name: "Warshall's Algorithm for Computing Transitive Closure", XRaw: 0.17, YRaw: 0.18},
	{Name: "Predicate Logic", XRaw: 0.20, YRaw: 0.18},
}

func TestBuild(t *testing.T) {
	Convey("When a grid is built from raw records", t, func() {
		grid, err := Build(logicRecords, DefaultScale)
		So(err, ShouldBeNil)

		Convey("The minimum coordinates are normalized to zero", func() {
			minX, minY := math.MaxInt, math.MaxInt
			for _, cell := range grid.Cells() {
				minX = min(minX, cell.X)
				minY = min(minY, cell.Y)
			}
			So(minX, ShouldEqual, 0)
			So(minY, ShouldEqual, 0)
		})

		Convey("The grid bounds are max+1 and contain every cell", func() {
			maxX, maxY := 0, 0
			for _, cell := range grid.Cells() {
				So(grid.Contains(cell.Position()), ShouldBeTrue)
				maxX = max(maxX, cell.X)
				maxY = max(maxY, cell.Y)
			}
			So(grid.Space().Width, ShouldEqual, maxX+1)
			So(grid.Space().Height, ShouldEqual, maxY+1)
		})

		Convey("Cells keep the record order and are classified by name", func() {
			cells := grid.Cells()
			So(len(cells), ShouldEqual, len(logicRecords))
			So(cells[0].Name, ShouldEqual, "Introduction to Mathematical Logic")
			So(cells[0].Type, ShouldEqual, CONCEPT)
			So(cells[1].Type, ShouldEqual, PROBLEM)
			So(cells[2].Type, ShouldEqual, TECHNIQUE)
			So(cells[3].Type, ShouldEqual, ALGORITHM)
			So(cells[3].Position(), ShouldResemble, Position{X: 0, Y: 1})
		})

		Convey("Rebuilding from the same records is identical", func() {
			again, err := Build(logicRecords, DefaultScale)
			So(err, ShouldBeNil)
			So(again.Space(), ShouldResemble, grid.Space())
			So(again.Cells(), ShouldResemble, grid.Cells())
			So(again.Resources(), ShouldResemble, grid.Resources())
		})

		Convey("Translating the raw origin does not change the grid", func() {
			base := []ResourceRecord{{Name: "a", XRaw: 0.25, YRaw: 0.5}, {Name: "b", XRaw: 0.75, YRaw: 0.25}}
			shifted := []ResourceRecord{{Name: "a", XRaw: 2.25, YRaw: -3.5}, {Name: "b", XRaw: 2.75, YRaw: -3.75}}
			g1, err := Build(base, DefaultScale)
			So(err, ShouldBeNil)
			g2, err := Build(shifted, DefaultScale)
			So(err, ShouldBeNil)
			So(g2.Space(), ShouldResemble, g1.Space())
			So(g2.Cells(), ShouldResemble, g1.Cells())
		})

		Convey("Mutating returned cells does not affect the grid", func() {
			cells := grid.Cells()
			cells[0].X = 1000
			So(grid.Cells()[0].X, ShouldNotEqual, 1000)
		})
	})

	Convey("When scaling truncates toward zero", t, func() {
		grid, err := Build([]ResourceRecord{
			{Name: "a", XRaw: -0.019, YRaw: 0.019},
			{Name: "b", XRaw: 0.029, YRaw: 0.039},
		}, DefaultScale)
		So(err, ShouldBeNil)
		// -1.9 -> -1, 1.9 -> 1, 2.9 -> 2, 3.9 -> 3
		So(grid.Cells()[0].Position(), ShouldResemble, Position{X: 0, Y: 0})
		So(grid.Cells()[1].Position(), ShouldResemble, Position{X: 3, Y: 2})
		So(grid.Space(), ShouldResemble, GridSpace{Width: 4, Height: 3})
	})

	Convey("When a single record is built, the grid is 1x1", t, func() {
		grid, err := Build([]ResourceRecord{{Name: "Sets", XRaw: 0.42, YRaw: 0.42}}, DefaultScale)
		So(err, ShouldBeNil)
		So(grid.Space(), ShouldResemble, GridSpace{Width: 1, Height: 1})
		So(grid.IsResource(Position{}), ShouldBeTrue)
	})

	Convey("When the input is invalid, Build fails with ErrInvalidInput", t, func() {
		cases := map[string][]ResourceRecord{
			"empty":     {},
			"no name":   {{Name: " ", XRaw: 1, YRaw: 1}},
			"duplicate": {{Name: "a"}, {Name: "a"}},
			"nan":       {{Name: "a", XRaw: math.NaN()}},
			"inf":       {{Name: "a", YRaw: math.Inf(1)}},
			"too large": {{Name: "a", XRaw: 1e12}},
		}
		for _, records := range cases {
			_, err := Build(records, DefaultScale)
			So(errors.Is(err, ErrInvalidInput), ShouldBeTrue)
		}

		_, err := Build(logicRecords, 0)
		So(errors.Is(err, ErrInvalidInput), ShouldBeTrue)
	})
}

func TestClassify(t *testing.T) {
	Convey("Topic types follow keyword priority", t, func() {
		So(Classify("Warshall's Algorithm"), ShouldEqual, ALGORITHM)
		So(Classify("Algorithmic Problem Solving"), ShouldEqual, ALGORITHM)
		So(Classify("the SAT problem"), ShouldEqual, PROBLEM)
		So(Classify("Proof Strategies II"), ShouldEqual, TECHNIQUE)
		So(Classify("INDUCTION"), ShouldEqual, TECHNIQUE)
		So(Classify("Relations"), ShouldEqual, CONCEPT)
	})
}

func TestLookup(t *testing.T) {
	Convey("Given a grid", t, func() {
		grid, err := Build(logicRecords, DefaultScale)
		So(err, ShouldBeNil)

		Convey("Names are found regardless of case", func() {
			cell, err := grid.Lookup("predicate logic")
			So(err, ShouldBeNil)
			So(cell.Name, ShouldEqual, "Predicate Logic")
		})

		Convey("Typos are rejected with a suggestion", func() {
			_, err := grid.Lookup("Predicat Logik")
			So(errors.Is(err, ErrInvalidInput), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "did you mean Predicate Logic")
		})

		Convey("Unrelated names get no suggestion", func() {
			_, err := grid.Lookup("zz")
			So(errors.Is(err, ErrInvalidInput), ShouldBeTrue)
			So(err.Error(), ShouldNotContainSubstring, "did you mean")
		})
	})
}

func TestSnapshot(t *testing.T) {
	Convey("The snapshot marshals in the grid description shape", t, func() {
		grid, err := Build(logicRecords, DefaultScale)
		So(err, ShouldBeNil)

		data, err := json.Marshal(grid.Snapshot())
		So(err, ShouldBeNil)

		var out struct {
			Size          map[string]int           `json:"size"`
			Resources     []map[string]interface{} `json:"resources"`
			AgentPosition []int                    `json:"agentPosition"`
			GoalPosition  []int                    `json:"goalPosition"`
		}
		So(json.Unmarshal(data, &out), ShouldBeNil)
		So(out.Size, ShouldResemble, map[string]int{"x": 6, "y": 2})
		So(len(out.Resources), ShouldEqual, len(logicRecords))
		So(out.Resources[1]["type"], ShouldEqual, "problem")
		So(out.AgentPosition, ShouldResemble, []int{0, 0})
		So(out.GoalPosition, ShouldResemble, []int{5, 1})
	})

	Convey("Show prints the top row first", t, func() {
		grid, err := Build(logicRecords, DefaultScale)
		So(err, ShouldBeNil)
		var buf bytes.Buffer
		grid.Show(&buf)
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		So(len(lines), ShouldEqual, 2)
		So(lines[0], ShouldStartWith, "a t . c . p")
	})
}

func TestPositionJSON(t *testing.T) {
	Convey("Positions round trip as [x,y]", t, func() {
		var p Position
		So(json.Unmarshal([]byte(`[3,4]`), &p), ShouldBeNil)
		So(p, ShouldResemble, Position{X: 3, Y: 4})

		err := json.Unmarshal([]byte(`[1,2,3]`), &p)
		So(errors.Is(err, ErrInvalidInput), ShouldBeTrue)
	})
}
