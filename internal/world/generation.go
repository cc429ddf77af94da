// World generation using simplex noise.
// Terrain comes from a coarse noise layer, resources from a finer one
// combined with independent probability rolls, then the base is placed.
package world

import (
	"fmt"
	"log/slog"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/robot-expedition/internal/entropy"
)

// GenConfig holds world generation parameters.
type GenConfig struct {
	Width  int
	Height int
	Seed   uint32 // Noise seed; identical seed and size give identical layout

	// DrawSeed seeds the independent random source used for resource
	// probability rolls and base placement (0 = fresh entropy each run).
	DrawSeed int64

	TerrainScale        float64 // Divisor applied to x,y before sampling terrain noise
	ResourceScale       float64 // Finer divisor for the resource layer
	Threshold           float64 // Noise value above which terrain/resources appear
	ResourceProbability float64 // Chance per roll once the resource noise passes
	ResourceQuantity    int     // Starting quantity of every deposit
	BaseAttempts        int     // Random samples before falling back to a scan
	NearbyResource      int     // Chebyshev radius checked for a resource near base
}

// DefaultGenConfig returns the standard 25x25 world.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Width:               25,
		Height:              25,
		Seed:                8,
		TerrainScale:        6.0,
		ResourceScale:       2.0,
		Threshold:           0.3,
		ResourceProbability: 0.1,
		ResourceQuantity:    10,
		BaseAttempts:        1000,
		NearbyResource:      3,
	}
}

// SmallTestConfig returns a tiny fully-seeded world for rapid iteration.
func SmallTestConfig() GenConfig {
	cfg := DefaultGenConfig()
	cfg.Width = 10
	cfg.Height = 10
	cfg.Seed = 42
	cfg.DrawSeed = 42
	return cfg
}

// Generate creates a complete world map with terrain, resources, and base.
func Generate(cfg GenConfig) (*Map, error) {
	m, err := NewMap(cfg.Width, cfg.Height)
	if err != nil {
		return nil, err
	}
	if cfg.TerrainScale <= 0 || cfg.ResourceScale <= 0 {
		return nil, fmt.Errorf("%w: noise scales must be positive", ErrInvalidDimensions)
	}
	m.Seed = cfg.Seed

	var rng *rand.Rand
	if cfg.DrawSeed != 0 {
		rng = rand.New(rand.NewSource(cfg.DrawSeed))
	} else {
		rng = entropy.NewRand()
	}

	// Two noise generators for independent layers.
	terrainNoise := opensimplex.New(int64(cfg.Seed))
	resourceNoise := opensimplex.New(int64(cfg.Seed) + 1)

	generateTerrain(m, terrainNoise, cfg)
	placeResources(m, resourceNoise, rng, cfg)
	placeBase(m, rng, cfg)
	ensureNearbyResource(m, rng, cfg)

	return m, nil
}

// generateTerrain marks interior tiles as terrain where the coarse noise
// exceeds the threshold. The outer ring always stays open.
func generateTerrain(m *Map, noise opensimplex.Noise, cfg GenConfig) {
	for y := 1; y < m.Height-1; y++ {
		for x := 1; x < m.Width-1; x++ {
			v := noise.Eval2(float64(x)/cfg.TerrainScale, float64(y)/cfg.TerrainScale)
			if v > cfg.Threshold {
				m.Set(TerrainTile(x, y))
			}
		}
	}
}

// placeResources seeds deposits on still-empty tiles. Energy is rolled
// first and mineral only if that roll fails, so mineral is slightly rarer
// (p*(1-p) against p).
func placeResources(m *Map, noise opensimplex.Noise, rng *rand.Rand, cfg GenConfig) {
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if m.grid[m.index(x, y)].Kind != TileEmpty {
				continue
			}
			v := noise.Eval2(float64(x)/cfg.ResourceScale, float64(y)/cfg.ResourceScale)
			if v <= cfg.Threshold {
				continue
			}
			if rng.Float64() < cfg.ResourceProbability {
				m.Set(ResourceTile(x, y, ResourceEnergy, cfg.ResourceQuantity))
			} else if rng.Float64() < cfg.ResourceProbability {
				m.Set(ResourceTile(x, y, ResourceMineral, cfg.ResourceQuantity))
			}
		}
	}
}

// placeBase samples interior coordinates until one is empty and surrounded
// by eight empty tiles. If sampling fails it scans the interior, and as a
// last resort clears a 3x3 patch in the middle of the map.
func placeBase(m *Map, rng *rand.Rand, cfg GenConfig) {
	for i := 0; i < cfg.BaseAttempts; i++ {
		x := 1 + rng.Intn(m.Width-2)
		y := 1 + rng.Intn(m.Height-2)
		if m.clearAround(x, y) {
			m.setBase(x, y)
			return
		}
	}

	for y := 1; y < m.Height-1; y++ {
		for x := 1; x < m.Width-1; x++ {
			if m.clearAround(x, y) {
				m.setBase(x, y)
				return
			}
		}
	}

	cx, cy := m.Width/2, m.Height/2
	slog.Warn("no clear area for base, clearing one", "x", cx, "y", cy, "seed", m.Seed)
	for _, d := range Directions8 {
		m.Set(EmptyTile(cx+d.X, cy+d.Y))
	}
	m.setBase(cx, cy)
}

func (m *Map) clearAround(x, y int) bool {
	if m.grid[m.index(x, y)].Kind != TileEmpty {
		return false
	}
	for _, d := range Directions8 {
		nx, ny := x+d.X, y+d.Y
		if !m.InBounds(nx, ny) || m.grid[m.index(nx, ny)].Kind != TileEmpty {
			return false
		}
	}
	return true
}

func (m *Map) setBase(x, y int) {
	m.Set(BaseTile(x, y))
	m.BasePosition = Position{X: x, Y: y}
}

// ensureNearbyResource guarantees a deposit close to the base. The clear
// ring around the base is left alone; the deposit goes on the second ring,
// on a tile 4-adjacent to the clear ring so it is always reachable. Only a
// map too narrow to have a second ring goes without.
func ensureNearbyResource(m *Map, rng *rand.Rand, cfg GenConfig) {
	b := m.BasePosition
	for dy := -cfg.NearbyResource; dy <= cfg.NearbyResource; dy++ {
		for dx := -cfg.NearbyResource; dx <= cfg.NearbyResource; dx++ {
			x, y := b.X+dx, b.Y+dy
			if m.InBounds(x, y) && m.grid[m.index(x, y)].Kind == TileResource {
				return
			}
		}
	}

	var open, rock []Position
	for d := -1; d <= 1; d++ {
		for _, p := range []Position{
			{X: b.X + 2, Y: b.Y + d},
			{X: b.X - 2, Y: b.Y + d},
			{X: b.X + d, Y: b.Y + 2},
			{X: b.X + d, Y: b.Y - 2},
		} {
			if !m.InBounds(p.X, p.Y) {
				continue
			}
			if m.grid[m.index(p.X, p.Y)].Kind == TileEmpty {
				open = append(open, p)
			} else {
				rock = append(rock, p)
			}
		}
	}
	// Prefer open ground; otherwise the deposit replaces rock.
	candidates := open
	if len(candidates) == 0 {
		candidates = rock
	}
	if len(candidates) == 0 {
		slog.Warn("no room for a resource near base", "base_x", b.X, "base_y", b.Y)
		return
	}
	p := candidates[rng.Intn(len(candidates))]
	m.Set(ResourceTile(p.X, p.Y, ResourceEnergy, cfg.ResourceQuantity))
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Counts returns a summary of tile kind distribution.
func Counts(m *Map) map[TileKind]int {
	counts := make(map[TileKind]int)
	for _, t := range m.grid {
		counts[t.Kind]++
	}
	return counts
}
