package robots

import "github.com/talgya/robot-expedition/internal/world"

// NextStep returns the first step of a shortest 4-connected path from
// `from` to `to`, searching breadth-first over tiles that are not terrain.
// The base is only entered when it is the goal. When no path exists it
// falls back to one greedy step along the longer axis, accepted only if that
// tile is not terrain. ok is false when there is no step to take.
func NextStep(m *world.Map, from, to world.Position) (step world.Position, ok bool) {
	if from == to || !m.InBounds(from.X, from.Y) || !m.InBounds(to.X, to.Y) {
		return world.Position{}, false
	}

	idx := func(p world.Position) int { return p.Y*m.Width + p.X }
	parent := make([]int, m.Width*m.Height)
	for i := range parent {
		parent[i] = -1
	}
	start := idx(from)
	parent[start] = start

	queue := []world.Position{from}
	found := false
	for len(queue) > 0 && !found {
		cur := queue[0]
		queue = queue[1:]
		for _, n := range m.Neighbors4(cur) {
			ni := idx(n)
			if parent[ni] != -1 || !passable(m, n, to) {
				continue
			}
			parent[ni] = idx(cur)
			if n == to {
				found = true
				break
			}
			queue = append(queue, n)
		}
	}

	if found {
		// Walk back from the goal until the node whose parent is the start.
		i := idx(to)
		for parent[i] != start {
			i = parent[i]
		}
		return world.Position{X: i % m.Width, Y: i / m.Width}, true
	}

	return greedyStep(m, from, to)
}

func passable(m *world.Map, p, goal world.Position) bool {
	if m.IsBase(p) {
		return p == goal
	}
	t, err := m.Get(p.X, p.Y)
	return err == nil && t.Kind != world.TileTerrain
}

func greedyStep(m *world.Map, from, to world.Position) (world.Position, bool) {
	dx, dy := to.X-from.X, to.Y-from.Y
	step := from
	if abs(dx) >= abs(dy) {
		step.X += sign(dx)
	} else {
		step.Y += sign(dy)
	}
	t, err := m.Get(step.X, step.Y)
	if err != nil || t.Kind == world.TileTerrain {
		return world.Position{}, false
	}
	return step, true
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
