// Package world provides the tile grid, procedural generation, and the tile
// mutation primitives robots use to move and harvest.
package world

import "fmt"

// TileKind is the variant held by a grid cell.
type TileKind uint8

const (
	TileEmpty    TileKind = iota // Open ground
	TileTerrain                  // Impassable rock
	TileBase                     // The single home base
	TileResource                 // Harvestable deposit
	TileRobot                    // Transient robot marker
)

// ResourceKind enumerates harvestable deposits.
type ResourceKind uint8

const (
	ResourceEnergy ResourceKind = iota
	ResourceMineral
)

// RobotKind identifies a robot's capability set. It lives here because
// robot markers are a tile variant.
type RobotKind uint8

const (
	RobotExplorer RobotKind = iota
	RobotHarvester
)

// Resource is a deposit with a non-negative remaining quantity.
type Resource struct {
	Kind     ResourceKind `json:"kind"`
	Quantity int          `json:"quantity"`
}

// Position is a grid coordinate.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Tile is one grid cell. Resource is meaningful only for TileResource and
// Robot only for TileRobot.
type Tile struct {
	X        int       `json:"x"`
	Y        int       `json:"y"`
	Kind     TileKind  `json:"kind"`
	Resource Resource  `json:"resource"`
	Robot    RobotKind `json:"robot"`
}

// Pos returns the tile's coordinate.
func (t Tile) Pos() Position {
	return Position{X: t.X, Y: t.Y}
}

// EmptyTile returns an open tile at (x, y).
func EmptyTile(x, y int) Tile {
	return Tile{X: x, Y: y, Kind: TileEmpty}
}

// TerrainTile returns an impassable tile at (x, y).
func TerrainTile(x, y int) Tile {
	return Tile{X: x, Y: y, Kind: TileTerrain}
}

// BaseTile returns the home base tile at (x, y).
func BaseTile(x, y int) Tile {
	return Tile{X: x, Y: y, Kind: TileBase}
}

// ResourceTile returns a deposit of the given kind and quantity at (x, y).
func ResourceTile(x, y int, kind ResourceKind, quantity int) Tile {
	return Tile{X: x, Y: y, Kind: TileResource, Resource: Resource{Kind: kind, Quantity: quantity}}
}

// RobotTile returns a robot marker at (x, y).
func RobotTile(x, y int, kind RobotKind) Tile {
	return Tile{X: x, Y: y, Kind: TileRobot, Robot: kind}
}

// Glyph returns the display glyph for the tile, used by snapshot consumers.
func (t Tile) Glyph() rune {
	switch t.Kind {
	case TileTerrain:
		return '⛰'
	case TileBase:
		return '🏠'
	case TileResource:
		if t.Resource.Kind == ResourceEnergy {
			return '⚡'
		}
		return '💎'
	case TileRobot:
		if t.Robot == RobotHarvester {
			return '🚜'
		}
		return '🤖'
	default:
		return ' '
	}
}

func (k TileKind) String() string {
	switch k {
	case TileEmpty:
		return "empty"
	case TileTerrain:
		return "terrain"
	case TileBase:
		return "base"
	case TileResource:
		return "resource"
	case TileRobot:
		return "robot"
	default:
		return fmt.Sprintf("tile(%d)", uint8(k))
	}
}

func (k ResourceKind) String() string {
	switch k {
	case ResourceEnergy:
		return "energy"
	case ResourceMineral:
		return "mineral"
	default:
		return fmt.Sprintf("resource(%d)", uint8(k))
	}
}

func (k RobotKind) String() string {
	switch k {
	case RobotExplorer:
		return "explorer"
	case RobotHarvester:
		return "harvester"
	default:
		return fmt.Sprintf("robot(%d)", uint8(k))
	}
}

// ParseRobotKind maps "explorer" or "harvester" to a RobotKind.
func ParseRobotKind(s string) (RobotKind, bool) {
	switch s {
	case "explorer":
		return RobotExplorer, true
	case "harvester":
		return RobotHarvester, true
	}
	return 0, false
}

// ManhattanDistance returns |dx| + |dy| between two positions.
func ManhattanDistance(a, b Position) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}
