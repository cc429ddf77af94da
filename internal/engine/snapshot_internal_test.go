package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/robot-expedition/internal/robots"
	"github.com/talgya/robot-expedition/internal/world"
)

func TestTrySnapshotSkipsWhenMapLocked(t *testing.T) {
	m, err := world.Generate(world.SmallTestConfig())
	if err != nil {
		t.Fatal(err)
	}
	s := NewWithMap(m, DefaultConfig())

	s.mapMu.Lock()
	_, ok := s.TrySnapshot()
	s.mapMu.Unlock()
	assert.False(t, ok)

	_, ok = s.TrySnapshot()
	assert.True(t, ok)
}

func TestEventLogTrimsToCapacity(t *testing.T) {
	l := newEventLog(nil)
	for i := 0; i < maxEvents+50; i++ {
		l.publish(Event{Kind: EventControl, Quantity: i})
	}

	all := l.recent(0)
	assert.Len(t, all, maxEvents)
	assert.Equal(t, 50, all[0].Quantity)
	assert.Equal(t, maxEvents+49, all[len(all)-1].Quantity)
}

func TestAbandonedTargetLeavesLocatedQueue(t *testing.T) {
	m, err := world.NewMap(12, 12)
	if err != nil {
		t.Fatal(err)
	}
	m.Set(world.BaseTile(2, 2))
	m.BasePosition = world.Position{X: 2, Y: 2}
	deposit := world.Position{X: 8, Y: 8}
	m.Set(world.ResourceTile(deposit.X, deposit.Y, world.ResourceEnergy, 10))
	for _, d := range world.Directions8 {
		m.Set(world.TerrainTile(deposit.X+d.X, deposit.Y+d.Y))
	}

	cfg := DefaultConfig()
	cfg.TickInterval = time.Millisecond
	cfg.MinInterval = time.Millisecond
	cfg.Robot.StuckLimit = 2
	cfg.RobotSeed = 3
	s := NewWithMap(m, cfg)
	defer func() {
		s.Shutdown()
		s.Wait()
	}()

	s.located = append(s.located, LocatedResource{Pos: deposit, Kind: world.ResourceEnergy, Remaining: 10})
	_, err = s.SendRobot(robots.Harvester, func(r *robots.Robot) {
		r.AssignTarget(robots.Target{Pos: deposit, Resource: world.Resource{Kind: world.ResourceEnergy, Quantity: 10}})
	})
	require.NoError(t, err)
	s.Play()

	require.Eventually(t, func() bool {
		return len(s.Pending()) == 0
	}, 10*time.Second, 5*time.Millisecond)
	assert.Empty(t, s.Located())

	found := false
	for _, e := range s.RecentEvents(0) {
		if e.Kind == EventAbandon && e.X == deposit.X && e.Y == deposit.Y {
			found = true
		}
	}
	assert.True(t, found)
}
