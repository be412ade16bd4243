package grid_world

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// ErrInvalidInput is returned for malformed or empty input data, out-of-grid
// coordinates and non-finite numbers.
var ErrInvalidInput = errors.New("invalid input")

// DefaultScale converts raw resource coordinates into grid cells.
const DefaultScale = 100.0

// Scaled coordinates beyond this magnitude are rejected; they would produce
// grids no policy could ever traverse.
const maxCoordinate = 1e9

// TopicType is the coarse category of a resource, derived from its name.
type TopicType string

const (
	ALGORITHM TopicType = "algorithm"
	PROBLEM   TopicType = "problem"
	TECHNIQUE TopicType = "technique"
	CONCEPT   TopicType = "concept"
)

// Keyword sets in match priority. Names matching none of them are concepts.
var topicKeywords = []struct {
	topic    TopicType
	keywords []string
}{
	{ALGORITHM, []string{"algorithm", "warshall"}},
	{PROBLEM, []string{"problem", "sat"}},
	{TECHNIQUE, []string{"proof", "strategy", "technique", "resolution", "induction"}},
}

// Classify returns the topic type of a resource name. Matching is a case-insensitive
// substring match and the first matching keyword set wins.
func Classify(name string) TopicType {
	lower := strings.ToLower(name)
	for _, set := range topicKeywords {
		for _, kw := range set.keywords {
			if strings.Contains(lower, kw) {
				return set.topic
			}
		}
	}
	return CONCEPT
}

// Position is an x/y grid coordinate. It marshals as a two-element array, [x,y].
type Position struct {
	X, Y int
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

func (p Position) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{p.X, p.Y})
}

func (p *Position) UnmarshalJSON(data []byte) error {
	var xy []int
	if err := json.Unmarshal(data, &xy); err != nil {
		return fmt.Errorf("%w: position: %v", ErrInvalidInput, err)
	}
	if len(xy) != 2 {
		return fmt.Errorf("%w: position must be [x,y], got %d elements", ErrInvalidInput, len(xy))
	}
	p.X, p.Y = xy[0], xy[1]
	return nil
}

// Manhattan returns the L1 distance between two positions.
func Manhattan(a, b Position) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

func abs(i int) int {
	if i < 0 {
		return -i
	}
	return i
}

// ResourceRecord is a raw resource as loaded from the dataset, in source units.
type ResourceRecord struct {
	Name       string
	XRaw, YRaw float64
}

// ResourceCell is a resource after scaling and normalization onto the grid.
type ResourceCell struct {
	X    int       `json:"x"`
	Y    int       `json:"y"`
	Name string    `json:"name"`
	Type TopicType `json:"type"`
}

// Position returns the cell's grid coordinate.
func (c ResourceCell) Position() Position {
	return Position{X: c.X, Y: c.Y}
}

// GridSpace is the bounded extent of the grid: every cell lies within [0,Width) x [0,Height).
type GridSpace struct {
	Width  int `json:"x"`
	Height int `json:"y"`
}

// Contains reports whether p lies within the grid bounds.
func (gs GridSpace) Contains(p Position) bool {
	return p.X >= 0 && p.X < gs.Width && p.Y >= 0 && p.Y < gs.Height
}

// NumCells is the number of grid positions, which is also the size of the state space.
func (gs GridSpace) NumCells() int {
	return gs.Width * gs.Height
}

// ResourceSet is the set of positions occupied by at least one resource.
type ResourceSet map[Position]struct{}

// Has reports whether p holds a resource.
func (rs ResourceSet) Has(p Position) bool {
	_, ok := rs[p]
	return ok
}

// Grid is the immutable grid built from a dataset. It is safe for concurrent readers.
type Grid struct {
	space     GridSpace
	cells     []ResourceCell
	resources ResourceSet
	byName    map[string]int
}

// Build converts raw records into a normalized grid: coordinates are scaled and truncated
// toward zero, then translated so that the minimum x and y land on zero. The records'
// order is preserved in the resulting cells, and building twice from the same records
// yields identical grids.
func Build(records []ResourceRecord, scale float64) (*Grid, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no resource records", ErrInvalidInput)
	}
	if scale <= 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return nil, fmt.Errorf("%w: scale must be positive and finite, got %v", ErrInvalidInput, scale)
	}

	scaled := make([]Position, len(records))
	seen := make(map[string]struct{}, len(records))
	for i, rec := range records {
		if strings.TrimSpace(rec.Name) == "" {
			return nil, fmt.Errorf("%w: record %d has an empty name", ErrInvalidInput, i)
		}
		if _, dup := seen[rec.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate resource %q", ErrInvalidInput, rec.Name)
		}
		seen[rec.Name] = struct{}{}

		x, err := scaleCoordinate(rec.XRaw, scale)
		if err != nil {
			return nil, fmt.Errorf("%w: resource %q x_coordinate: %v", ErrInvalidInput, rec.Name, err)
		}
		y, err := scaleCoordinate(rec.YRaw, scale)
		if err != nil {
			return nil, fmt.Errorf("%w: resource %q y_coordinate: %v", ErrInvalidInput, rec.Name, err)
		}
		scaled[i] = Position{X: x, Y: y}
	}

	minX, minY := scaled[0].X, scaled[0].Y
	for _, p := range scaled[1:] {
		minX = min(minX, p.X)
		minY = min(minY, p.Y)
	}

	grid := &Grid{
		cells:     make([]ResourceCell, len(records)),
		resources: make(ResourceSet, len(records)),
		byName:    make(map[string]int, len(records)),
	}
	for i, rec := range records {
		cell := ResourceCell{
			X:    scaled[i].X - minX,
			Y:    scaled[i].Y - minY,
			Name: rec.Name,
			Type: Classify(rec.Name),
		}
		grid.cells[i] = cell
		grid.resources[cell.Position()] = struct{}{}
		grid.byName[strings.ToLower(rec.Name)] = i
		grid.space.Width = max(grid.space.Width, cell.X+1)
		grid.space.Height = max(grid.space.Height, cell.Y+1)
	}

	return grid, nil
}

func scaleCoordinate(raw, scale float64) (int, error) {
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return 0, errors.New("not a finite number")
	}
	v := math.Trunc(raw * scale)
	if math.Abs(v) > maxCoordinate {
		return 0, fmt.Errorf("%v scales beyond the grid limit", raw)
	}
	return int(v), nil
}

// Space returns the grid bounds.
func (g *Grid) Space() GridSpace {
	return g.space
}

// Contains reports whether p lies within the grid bounds.
func (g *Grid) Contains(p Position) bool {
	return g.space.Contains(p)
}

// IsResource reports whether p holds a resource.
func (g *Grid) IsResource(p Position) bool {
	return g.resources.Has(p)
}

// Resources returns the set of resource positions. The set is shared and must not be modified.
func (g *Grid) Resources() ResourceSet {
	return g.resources
}

// Cells returns a copy of the resource cells in dataset order.
func (g *Grid) Cells() []ResourceCell {
	cells := make([]ResourceCell, len(g.cells))
	copy(cells, g.cells)
	return cells
}

// Validate returns an ErrInvalidInput error naming @what if p is off the grid.
func (g *Grid) Validate(what string, p Position) error {
	if !g.Contains(p) {
		return fmt.Errorf("%w: %s %v outside grid %dx%d", ErrInvalidInput, what, p, g.space.Width, g.space.Height)
	}
	return nil
}

// Lookup finds a resource by name, ignoring case. On a miss the error lists the
// closest names, if any are near enough to be plausible typos.
func (g *Grid) Lookup(name string) (ResourceCell, error) {
	if i, ok := g.byName[strings.ToLower(name)]; ok {
		return g.cells[i], nil
	}
	if near := g.Suggest(name, 3); len(near) > 0 {
		return ResourceCell{}, fmt.Errorf("%w: no resource %q, did you mean %s?", ErrInvalidInput, name, strings.Join(near, ", "))
	}
	return ResourceCell{}, fmt.Errorf("%w: no resource %q", ErrInvalidInput, name)
}

// Suggest returns up to @limit resource names closest to @name by edit distance,
// nearest first. Names further than half the query length are never suggested.
func (g *Grid) Suggest(name string, limit int) []string {
	query := strings.ToLower(name)
	cutoff := max(len(query)/2, 1)

	type scored struct {
		name string
		dist int
	}
	candidates := []scored{}
	for _, cell := range g.cells {
		dist := levenshtein.ComputeDistance(query, strings.ToLower(cell.Name))
		if dist <= cutoff {
			candidates = append(candidates, scored{cell.Name, dist})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].dist == candidates[j].dist {
			return candidates[i].name < candidates[j].name
		}
		return candidates[i].dist < candidates[j].dist
	})

	names := []string{}
	for i := 0; i < len(candidates) && i < limit; i++ {
		names = append(names, candidates[i].name)
	}
	return names
}

// Snapshot is the static description of a grid for consumers that draw or inspect it.
type Snapshot struct {
	Size          GridSpace      `json:"size"`
	Resources     []ResourceCell `json:"resources"`
	AgentPosition Position       `json:"agentPosition"`
	GoalPosition  Position       `json:"goalPosition"`
}

// Snapshot describes the grid with the conventional agent start at the origin and the
// goal at the far corner.
func (g *Grid) Snapshot() Snapshot {
	return Snapshot{
		Size:          g.space,
		Resources:     g.Cells(),
		AgentPosition: Position{},
		GoalPosition:  Position{X: g.space.Width - 1, Y: g.space.Height - 1},
	}
}

// Show prints the grid for visual reference, top row first, so that (0,0) is at the
// bottom left. Resource cells are marked by the first letter of their topic type.
func (g *Grid) Show(w io.Writer) {
	marks := make(map[Position]byte, len(g.cells))
	for _, cell := range g.cells {
		marks[cell.Position()] = cell.Type[0]
	}
	for _, y := range Rev(g.space.Height) {
		line := make([]byte, 0, g.space.Width*2+1)
		for x := 0; x < g.space.Width; x++ {
			mark, ok := marks[Position{X: x, Y: y}]
			if !ok {
				mark = '.'
			}
			line = append(line, mark, ' ')
		}
		line = append(line, '\n')
		_, _ = w.Write(line)
	}
}

// Rev returns reversed indices of a slice, e.g. for ranging over.
func Rev(length int) []int {
	indices := make([]int, length)
	for i := 0; i < length; i++ {
		indices[i] = length - i - 1
	}
	return indices
}
