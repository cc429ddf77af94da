package engine_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/robot-expedition/internal/engine"
	"github.com/talgya/robot-expedition/internal/robots"
	"github.com/talgya/robot-expedition/internal/world"
)

// collector is a Sink that keeps every event.
type collector struct {
	mu     sync.Mutex
	events []engine.Event
}

func (c *collector) Record(e engine.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *collector) all() []engine.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]engine.Event(nil), c.events...)
}

func fastConfig(gen world.GenConfig, sinks ...engine.Sink) engine.Config {
	cfg := engine.DefaultConfig()
	cfg.World = gen
	cfg.TickInterval = time.Millisecond
	cfg.MinInterval = time.Millisecond
	cfg.SpeedStep = time.Millisecond
	cfg.RobotSeed = 99
	cfg.Sinks = sinks
	return cfg
}

func TestSendRobotRejectsUnknownKind(t *testing.T) {
	sim, err := engine.New(fastConfig(world.SmallTestConfig()))
	require.NoError(t, err)

	_, err = sim.SendRobot(robots.Kind(7), nil)
	assert.ErrorIs(t, err, engine.ErrUnknownKind)
	assert.Zero(t, sim.ActiveRobots())
}

func TestPausedSimulationDoesNotAdvance(t *testing.T) {
	sim, err := engine.New(fastConfig(world.SmallTestConfig()))
	require.NoError(t, err)
	require.False(t, sim.Running())

	id, err := sim.SendRobot(robots.Explorer, nil)
	require.NoError(t, err)

	before := sim.Snapshot()
	time.Sleep(50 * time.Millisecond)

	statuses := sim.Robots()
	require.Len(t, statuses, 1)
	assert.Equal(t, id, statuses[0].ID)
	assert.Zero(t, statuses[0].Ticks)
	assert.Equal(t, sim.BasePosition(), statuses[0].Pos)
	assert.Equal(t, before.Rows, sim.Snapshot().Rows)

	sim.Shutdown()
	sim.Wait()
	assert.Zero(t, sim.ActiveRobots())

	_, err = sim.SendRobot(robots.Explorer, nil)
	assert.ErrorIs(t, err, engine.ErrShuttingDown)
}

func TestSpeedControls(t *testing.T) {
	cfg := engine.DefaultConfig()
	sim, err := engine.New(cfg)
	require.NoError(t, err)

	assert.Equal(t, 500*time.Millisecond, sim.Interval())
	for i := 0; i < 10; i++ {
		sim.IncreaseSpeed()
	}
	assert.Equal(t, 100*time.Millisecond, sim.Interval())
	assert.Equal(t, 200*time.Millisecond, sim.DecreaseSpeed())
}

func TestExpeditionEndToEnd(t *testing.T) {
	sink := &collector{}
	sim, err := engine.New(fastConfig(world.SmallTestConfig(), sink))
	require.NoError(t, err)

	_, err = sim.SendRobot(robots.Explorer, nil)
	require.NoError(t, err)
	sim.Play()

	require.Eventually(t, func() bool {
		return sim.ActiveRobots() == 0
	}, 30*time.Second, 5*time.Millisecond)

	located := sim.Located()
	require.Len(t, located, 1)
	find := located[0]
	assert.True(t, find.Depleted)
	assert.Zero(t, find.Remaining)
	assert.Empty(t, sim.Pending())

	var explorerReports, delivered int
	for _, e := range sink.all() {
		if e.Kind != engine.EventReport {
			continue
		}
		switch e.RobotKind {
		case "explorer":
			explorerReports++
			assert.Equal(t, find.Pos, world.Position{X: e.X, Y: e.Y})
		case "harvester":
			delivered += e.Quantity
		}
	}
	assert.Equal(t, 1, explorerReports)

	quantity := world.SmallTestConfig().ResourceQuantity
	assert.Equal(t, quantity, delivered)
	assert.Equal(t, quantity, sim.EnergyCount()+sim.ResourceCount())

	st := sim.Stats()
	assert.Equal(t, 1, st.Explorers)
	assert.Equal(t, 1, st.Harvesters)
	for _, r := range sim.Robots() {
		assert.Equal(t, robots.Idle, r.State)
	}

	sim.ReadMap(func(m *world.Map) {
		tile, err := m.Get(find.Pos.X, find.Pos.Y)
		require.NoError(t, err)
		assert.Equal(t, world.TileEmpty, tile.Kind)
		assert.Zero(t, m.OccupiedCount())
	})
}

func TestHarvesterCostBlocksDispatch(t *testing.T) {
	cfg := fastConfig(world.SmallTestConfig())
	cfg.HarvesterCost = 5
	sim, err := engine.New(cfg)
	require.NoError(t, err)

	_, err = sim.SendRobot(robots.Explorer, nil)
	require.NoError(t, err)
	sim.Play()

	require.Eventually(t, func() bool {
		return sim.ActiveRobots() == 0
	}, 30*time.Second, 5*time.Millisecond)

	st := sim.Stats()
	assert.Zero(t, st.Harvesters)
	assert.Zero(t, st.Located)
	assert.Zero(t, st.Energy)
}

func TestConcurrentRobotsKeepMapConsistent(t *testing.T) {
	gen := world.DefaultGenConfig()
	gen.DrawSeed = 5
	sim, err := engine.New(fastConfig(gen))
	require.NoError(t, err)

	var terrain []bool
	var tileCount int
	sim.ReadMap(func(m *world.Map) {
		terrain = m.TerrainMask()
		tileCount = m.TileCount()
	})

	for i := 0; i < 8; i++ {
		_, err := sim.SendRobot(robots.Explorer, nil)
		require.NoError(t, err)
	}
	for i := 0; i < 4; i++ {
		_, err := sim.SendRobot(robots.Harvester, nil)
		require.NoError(t, err)
	}
	sim.Play()

	deadline := time.Now().Add(300 * time.Millisecond)
	for time.Now().Before(deadline) {
		sim.ReadMap(func(m *world.Map) {
			assert.Equal(t, terrain, m.TerrainMask(), "terrain never changes")
			assert.Equal(t, tileCount, m.TileCount())

			seen := make(map[string]world.Position)
			for _, tile := range m.Tiles() {
				id, ok := m.OccupantAt(tile.Pos())
				if !ok {
					continue
				}
				prev, dup := seen[id]
				assert.False(t, dup, "robot %s on %v and %v", id, prev, tile.Pos())
				seen[id] = tile.Pos()
			}
			assert.LessOrEqual(t, m.OccupiedCount(), 12+8)
		})
		time.Sleep(2 * time.Millisecond)
	}

	sim.Shutdown()
	sim.Wait()

	assert.Zero(t, sim.ActiveRobots())
	sim.ReadMap(func(m *world.Map) {
		counts := world.Counts(m)
		assert.Zero(t, counts[world.TileRobot], "no markers after shutdown")
		assert.Equal(t, 1, counts[world.TileBase])
		assert.Zero(t, m.OccupiedCount())
	})
	for _, r := range sim.Robots() {
		assert.Equal(t, robots.Idle, r.State)
	}
}

func TestEventsAndSubscribers(t *testing.T) {
	sink := &collector{}
	sim, err := engine.New(fastConfig(world.SmallTestConfig(), sink))
	require.NoError(t, err)

	id, ch := sim.Subscribe()
	sim.Play()
	sim.Pause()

	for _, want := range []string{"play", "pause"} {
		select {
		case e := <-ch:
			assert.Equal(t, engine.EventControl, e.Kind)
			assert.Equal(t, want, e.Description)
			assert.False(t, e.Time.IsZero())
		case <-time.After(time.Second):
			t.Fatalf("no %s event", want)
		}
	}

	sim.Unsubscribe(id)
	_, open := <-ch
	assert.False(t, open)

	assert.Len(t, sim.RecentEvents(10), 2)
	assert.Len(t, sim.RecentEvents(1), 1)
	assert.Len(t, sink.all(), 2)
}

func TestSnapshotRendersGrid(t *testing.T) {
	sim, err := engine.New(fastConfig(world.SmallTestConfig()))
	require.NoError(t, err)

	snap, ok := sim.TrySnapshot()
	require.True(t, ok)
	assert.Equal(t, 10, snap.Width)
	require.Len(t, snap.Rows, 10)

	base := sim.BasePosition()
	row := []rune(snap.Rows[base.Y])
	assert.Equal(t, '🏠', row[base.X])
	assert.Equal(t, snap.Rows, sim.Snapshot().Rows)
}
