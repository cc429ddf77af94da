package world

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfBounds is returned for coordinate access outside the grid.
	ErrOutOfBounds = errors.New("coordinate out of bounds")
	// ErrInvalidDimensions is returned when a map is too small to hold a base.
	ErrInvalidDimensions = errors.New("invalid map dimensions")
)

// MinDimension is the smallest width or height accepted: a base needs an
// interior cell with all eight neighbours on the grid.
const MinDimension = 3

// Map holds the flat tile grid plus its generation metadata. The grid shape
// never changes after construction; only tile contents mutate. Map is not
// safe for concurrent use; the engine guards it with a single lock.
type Map struct {
	Width        int      `json:"width"`
	Height       int      `json:"height"`
	Seed         uint32   `json:"seed"`
	BasePosition Position `json:"base_position"`

	grid []Tile // indexed by y*Width+x

	// Robot IDs standing on non-base tiles. A harvester on a deposit leaves
	// the Resource variant in place, so occupancy is tracked separately.
	occupants map[Position]string
}

// NewMap creates an all-empty map of the given size.
func NewMap(width, height int) (*Map, error) {
	if width < MinDimension || height < MinDimension {
		return nil, fmt.Errorf("%w: %dx%d (minimum %dx%d)", ErrInvalidDimensions, width, height, MinDimension, MinDimension)
	}
	m := &Map{
		Width:     width,
		Height:    height,
		grid:      make([]Tile, width*height),
		occupants: make(map[Position]string),
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			m.grid[m.index(x, y)] = EmptyTile(x, y)
		}
	}
	return m, nil
}

func (m *Map) index(x, y int) int {
	return y*m.Width + x
}

// InBounds reports whether (x, y) lies on the grid.
func (m *Map) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < m.Width && y < m.Height
}

// Get returns the tile at (x, y). Callers are expected to check IsValid or
// InBounds first; an out-of-range coordinate is a logic error and is
// reported as ErrOutOfBounds.
func (m *Map) Get(x, y int) (Tile, error) {
	if !m.InBounds(x, y) {
		return Tile{}, fmt.Errorf("get (%d,%d) on %dx%d map: %w", x, y, m.Width, m.Height, ErrOutOfBounds)
	}
	return m.grid[m.index(x, y)], nil
}

// Set overwrites the tile at the tile's own coordinates. There is no bounds
// check; writing outside the grid panics.
func (m *Map) Set(t Tile) {
	m.grid[m.index(t.X, t.Y)] = t
}

// IsValid reports whether a robot may move onto (x, y): the coordinate is in
// bounds, the tile is Empty or a Resource, and no other robot stands there.
func (m *Map) IsValid(x, y int) bool {
	if !m.InBounds(x, y) {
		return false
	}
	t := m.grid[m.index(x, y)]
	if t.Kind != TileEmpty && t.Kind != TileResource {
		return false
	}
	_, taken := m.occupants[Position{X: x, Y: y}]
	return !taken
}

// IsBase reports whether p is the base position.
func (m *Map) IsBase(p Position) bool {
	return p == m.BasePosition
}

// Occupy records robot id as standing on p. The base is never recorded.
func (m *Map) Occupy(p Position, id string) {
	if m.IsBase(p) {
		return
	}
	m.occupants[p] = id
}

// Vacate clears p if robot id is the one recorded there.
func (m *Map) Vacate(p Position, id string) {
	if cur, ok := m.occupants[p]; ok && cur == id {
		delete(m.occupants, p)
	}
}

// OccupantAt returns the robot recorded at p, if any.
func (m *Map) OccupantAt(p Position) (string, bool) {
	id, ok := m.occupants[p]
	return id, ok
}

// OccupiedCount returns how many non-base tiles hold a robot.
func (m *Map) OccupiedCount() int {
	return len(m.occupants)
}

// TileCount returns the number of cells in the grid.
func (m *Map) TileCount() int {
	return len(m.grid)
}

// Tiles returns a copy of the grid in row-major order.
func (m *Map) Tiles() []Tile {
	out := make([]Tile, len(m.grid))
	copy(out, m.grid)
	return out
}

// TerrainMask returns one bool per cell, true where the tile is Terrain.
func (m *Map) TerrainMask() []bool {
	mask := make([]bool, len(m.grid))
	for i, t := range m.grid {
		mask[i] = t.Kind == TileTerrain
	}
	return mask
}

// Neighbors4 returns the in-bounds 4-connected neighbours of p.
func (m *Map) Neighbors4(p Position) []Position {
	out := make([]Position, 0, 4)
	for _, d := range Directions4 {
		n := Position{X: p.X + d.X, Y: p.Y + d.Y}
		if m.InBounds(n.X, n.Y) {
			out = append(out, n)
		}
	}
	return out
}

// Directions4 lists the axis-aligned unit steps.
var Directions4 = [4]Position{
	{X: 1, Y: 0},
	{X: -1, Y: 0},
	{X: 0, Y: 1},
	{X: 0, Y: -1},
}

// Directions8 lists the eight surrounding offsets.
var Directions8 = [8]Position{
	{X: -1, Y: -1}, {X: 0, Y: -1}, {X: 1, Y: -1},
	{X: -1, Y: 0}, {X: 1, Y: 0},
	{X: -1, Y: 1}, {X: 0, Y: 1}, {X: 1, Y: 1},
}

// String returns a summary of the map.
func (m *Map) String() string {
	return fmt.Sprintf("Map(%dx%d, seed=%d, base=(%d,%d))", m.Width, m.Height, m.Seed, m.BasePosition.X, m.BasePosition.Y)
}
