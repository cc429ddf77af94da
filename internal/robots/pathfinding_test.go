package robots_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/robot-expedition/internal/robots"
	"github.com/talgya/robot-expedition/internal/world"
)

// openMap builds an empty w x h map with the base at base.
func openMap(t *testing.T, w, h int, base world.Position) *world.Map {
	t.Helper()
	m, err := world.NewMap(w, h)
	require.NoError(t, err)
	m.Set(world.BaseTile(base.X, base.Y))
	m.BasePosition = base
	return m
}

func pos(x, y int) world.Position { return world.Position{X: x, Y: y} }

func TestNextStepStraightLine(t *testing.T) {
	m := openMap(t, 5, 5, pos(4, 4))

	step, ok := robots.NextStep(m, pos(0, 0), pos(3, 0))
	require.True(t, ok)
	assert.Equal(t, pos(1, 0), step)
}

func TestNextStepAtGoal(t *testing.T) {
	m := openMap(t, 5, 5, pos(4, 4))

	_, ok := robots.NextStep(m, pos(2, 2), pos(2, 2))
	assert.False(t, ok)
}

func TestNextStepRoutesAroundTerrain(t *testing.T) {
	m := openMap(t, 5, 5, pos(4, 4))
	for y := 0; y < 4; y++ {
		m.Set(world.TerrainTile(1, y))
	}

	step, ok := robots.NextStep(m, pos(0, 0), pos(2, 0))
	require.True(t, ok)
	assert.Equal(t, pos(0, 1), step)
}

func TestNextStepAvoidsBaseUnlessGoal(t *testing.T) {
	m := openMap(t, 5, 5, pos(1, 0))

	step, ok := robots.NextStep(m, pos(0, 0), pos(2, 0))
	require.True(t, ok)
	assert.Equal(t, pos(0, 1), step, "path must go around the base")

	step, ok = robots.NextStep(m, pos(0, 0), pos(1, 0))
	require.True(t, ok)
	assert.Equal(t, pos(1, 0), step, "base is reachable as a goal")
}

func TestNextStepBlockedByWall(t *testing.T) {
	m := openMap(t, 5, 5, pos(0, 0))
	for y := 0; y < 5; y++ {
		m.Set(world.TerrainTile(2, y))
	}

	// No path; the greedy step lands on terrain.
	_, ok := robots.NextStep(m, pos(1, 2), pos(4, 2))
	assert.False(t, ok)

	// No path, but the greedy step is open ground.
	step, ok := robots.NextStep(m, pos(0, 2), pos(4, 2))
	require.True(t, ok)
	assert.Equal(t, pos(1, 2), step)
}

func TestNextStepOutOfBounds(t *testing.T) {
	m := openMap(t, 3, 3, pos(1, 1))

	_, ok := robots.NextStep(m, pos(0, 0), pos(7, 7))
	assert.False(t, ok)
}
