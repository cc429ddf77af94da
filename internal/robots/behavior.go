// Robot behavior: one state-machine step per tick.
// Explorers wander until they land on a deposit, then walk home to report it.
// Harvesters mine a deposit, carry the load home, and go back while any
// quantity remains.
package robots

import (
	"fmt"
	"log/slog"

	"github.com/talgya/robot-expedition/internal/world"
)

// Step advances the robot by one tick. Reporting and Idle are resolved by
// the engine, so Step leaves them untouched. An error means the step was
// aborted because of an out-of-bounds access.
func (r *Robot) Step(m *world.Map) error {
	r.Ticks++
	switch r.Kind {
	case Explorer:
		return r.stepExplorer(m)
	case Harvester:
		return r.stepHarvester(m)
	default:
		return fmt.Errorf("robot %s: unknown kind %d", r.ID, r.Kind)
	}
}

// CalculateNextStep returns the next tile on the way to (tx, ty).
func (r *Robot) CalculateNextStep(m *world.Map, tx, ty int) (world.Position, bool) {
	return NextStep(m, r.Pos, world.Position{X: tx, Y: ty})
}

func (r *Robot) stepExplorer(m *world.Map) error {
	switch r.State {
	case Exploring:
		r.wander(m)
		if r.covered != nil && r.covered.Kind == world.TileResource {
			r.Target = &Target{Pos: r.Pos, Resource: r.covered.Resource}
			r.State = ReturningToBase
			r.stuck = 0
			slog.Debug("explorer found resource",
				"robot", r.ID,
				"x", r.Pos.X, "y", r.Pos.Y,
				"kind", r.covered.Resource.Kind,
				"quantity", r.covered.Resource.Quantity,
			)
		}
	case ReturningToBase:
		r.returnHome(m)
	case Harvesting:
		// Explorers do not mine.
		r.State = Exploring
	}
	return nil
}

func (r *Robot) stepHarvester(m *world.Map) error {
	switch r.State {
	case Exploring:
		if t, ok := r.scan(m); ok {
			r.AssignTarget(t)
			slog.Debug("harvester spotted resource", "robot", r.ID, "x", t.Pos.X, "y", t.Pos.Y)
			return nil
		}
		r.wander(m)
	case Harvesting:
		return r.approachAndHarvest(m)
	case ReturningToBase:
		r.returnHome(m)
	}
	return nil
}

// wander takes one random axis-aligned step, clamped to the grid.
func (r *Robot) wander(m *world.Map) {
	x, y := r.Pos.X, r.Pos.Y
	d := 1
	if r.rng.Intn(2) == 0 {
		d = -1
	}
	if r.rng.Intn(2) == 0 {
		x = clamp(x+d, 0, m.Width-1)
	} else {
		y = clamp(y+d, 0, m.Height-1)
	}
	if x == r.Pos.X && y == r.Pos.Y {
		return
	}
	r.MoveTo(m, x, y)
}

// scan looks for the nearest deposit within the scan radius.
func (r *Robot) scan(m *world.Map) (Target, bool) {
	best := -1
	var found Target
	rad := r.opts.ScanRadius
	for dy := -rad; dy <= rad; dy++ {
		for dx := -rad; dx <= rad; dx++ {
			x, y := r.Pos.X+dx, r.Pos.Y+dy
			if !m.InBounds(x, y) {
				continue
			}
			t, err := m.Get(x, y)
			if err != nil || t.Kind != world.TileResource || r.shuns(t.Pos()) {
				continue
			}
			d := abs(dx) + abs(dy)
			if best == -1 || d < best {
				best = d
				found = Target{Pos: t.Pos(), Resource: t.Resource}
			}
		}
	}
	return found, best != -1
}

func (r *Robot) approachAndHarvest(m *world.Map) error {
	if r.Target == nil {
		r.State = Exploring
		return nil
	}
	tp := r.Target.Pos
	t, err := m.Get(tp.X, tp.Y)
	if err != nil {
		r.abandon("target out of bounds")
		return fmt.Errorf("robot %s harvest: %w", r.ID, err)
	}
	if t.Kind == world.TileRobot {
		// Another robot is standing on the deposit; wait for it to move on.
		r.stuck++
		if r.stuck >= r.opts.StuckLimit {
			r.abandon("target blocked")
		}
		return nil
	}
	if t.Kind != world.TileResource {
		r.abandon("target gone")
		return nil
	}

	if world.ManhattanDistance(r.Pos, tp) <= 1 {
		if _, err := r.Harvest(m); err != nil {
			return err
		}
		r.State = ReturningToBase
		r.stuck = 0
		return nil
	}

	if next, ok := NextStep(m, r.Pos, tp); ok && r.MoveTo(m, next.X, next.Y) {
		r.stuck = 0
		return nil
	}
	r.stuck++
	if r.stuck >= r.opts.StuckLimit {
		r.abandon("target unreachable")
	}
	return nil
}

// Harvest removes up to the robot's capacity from the target deposit and
// loads it. The tile keeps the remainder or becomes empty once depleted.
func (r *Robot) Harvest(m *world.Map) (int, error) {
	if r.Target == nil {
		return 0, nil
	}
	tp := r.Target.Pos
	t, err := m.Get(tp.X, tp.Y)
	if err != nil {
		return 0, fmt.Errorf("robot %s harvest: %w", r.ID, err)
	}
	if t.Kind != world.TileResource {
		return 0, nil
	}

	q := t.Resource.Quantity
	carried := min(q, r.opts.Capacity)
	remaining := q - carried
	if remaining > 0 {
		m.Set(world.ResourceTile(tp.X, tp.Y, t.Resource.Kind, remaining))
	} else {
		m.Set(world.EmptyTile(tp.X, tp.Y))
	}

	r.Cargo = world.Resource{Kind: t.Resource.Kind, Quantity: r.Cargo.Quantity + carried}
	r.Target.Resource = world.Resource{Kind: t.Resource.Kind, Quantity: remaining}
	r.Target.Partial = remaining > 0

	slog.Debug("harvested",
		"robot", r.ID,
		"x", tp.X, "y", tp.Y,
		"carried", carried,
		"remaining", remaining,
	)
	return carried, nil
}

// returnHome walks toward the base and switches to Reporting once docked on
// or beside it. A blocked step is simply retried next tick.
func (r *Robot) returnHome(m *world.Map) {
	home := m.BasePosition
	if world.ManhattanDistance(r.Pos, home) <= 1 {
		r.State = Reporting
		r.stuck = 0
		return
	}
	next, ok := NextStep(m, r.Pos, home)
	if ok && next != home && r.MoveTo(m, next.X, next.Y) {
		r.stuck = 0
		return
	}
	r.stuck++
}

// shunFactor scales StuckLimit into the number of ticks an abandoned
// deposit is ignored by scan.
const shunFactor = 10

func (r *Robot) abandon(reason string) {
	slog.Debug("robot abandoned target", "robot", r.ID, "kind", r.Kind, "reason", reason)
	if r.Target != nil {
		p := r.Target.Pos
		r.shunned[p] = r.Ticks + uint64(shunFactor*r.opts.StuckLimit)
		r.abandoned = &p
	}
	r.Target = nil
	r.stuck = 0
	r.State = Exploring
}

func (r *Robot) shuns(p world.Position) bool {
	until, ok := r.shunned[p]
	if !ok {
		return false
	}
	if r.Ticks >= until {
		delete(r.shunned, p)
		return false
	}
	return true
}

// TakeAbandoned reports the last deposit the robot gave up on, once.
func (r *Robot) TakeAbandoned() (world.Position, bool) {
	if r.abandoned == nil {
		return world.Position{}, false
	}
	p := *r.abandoned
	r.abandoned = nil
	return p, true
}

// Unload hands over the carried load and empties the cargo hold.
func (r *Robot) Unload() world.Resource {
	c := r.Cargo
	r.Cargo = world.Resource{}
	return c
}

// ResumeHarvest sends a reporting harvester back to its partial deposit.
func (r *Robot) ResumeHarvest() {
	r.State = Harvesting
	r.stuck = 0
}

// Retire takes the robot off the grid and makes it Idle.
func (r *Robot) Retire(m *world.Map) {
	r.Remove(m)
	r.State = Idle
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
