package robots

import "github.com/talgya/robot-expedition/internal/world"

// Place puts the robot's marker on its current tile. Robots start on the
// base, which shows the robot until it leaves.
func (r *Robot) Place(m *world.Map) {
	if r.placed {
		return
	}
	r.occupy(m, r.Pos)
	r.placed = true
}

// MoveTo moves the robot onto (x, y). It returns false without changing
// anything if the destination is not a valid move target.
func (r *Robot) MoveTo(m *world.Map, x, y int) bool {
	if !m.IsValid(x, y) {
		return false
	}
	r.leave(m)
	dest := world.Position{X: x, Y: y}
	r.occupy(m, dest)
	r.Pos = dest
	r.Discovered[dest] = struct{}{}
	r.placed = true
	return true
}

// Remove takes the robot off the grid, restoring whatever it covered.
func (r *Robot) Remove(m *world.Map) {
	if !r.placed {
		return
	}
	r.leave(m)
	r.placed = false
}

func (r *Robot) occupy(m *world.Map, p world.Position) {
	t, err := m.Get(p.X, p.Y)
	if err != nil {
		return
	}
	if t.Kind == world.TileResource {
		// Harvesters leave deposits visible until they are consumed.
		if r.Kind == Harvester {
			m.Occupy(p, r.ID)
			return
		}
		covered := t
		r.covered = &covered
	}
	m.Set(world.RobotTile(p.X, p.Y, r.Kind))
	m.Occupy(p, r.ID)
}

func (r *Robot) leave(m *world.Map) {
	p := r.Pos
	m.Vacate(p, r.ID)
	if p == r.Home && m.IsBase(p) {
		m.Set(world.BaseTile(p.X, p.Y))
		r.covered = nil
		return
	}
	if r.covered != nil {
		m.Set(*r.covered)
		r.covered = nil
		return
	}
	t, err := m.Get(p.X, p.Y)
	if err == nil && t.Kind == world.TileRobot {
		m.Set(world.EmptyTile(p.X, p.Y))
	}
}
