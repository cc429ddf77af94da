package engine

import (
	"strings"
	"time"

	"github.com/talgya/robot-expedition/internal/world"
)

// Snapshot is a read-only rendering of the grid: one string of glyphs per
// row, for display collaborators.
type Snapshot struct {
	Width  int            `json:"width"`
	Height int            `json:"height"`
	Base   world.Position `json:"base"`
	Rows   []string       `json:"rows"`
	Taken  time.Time      `json:"taken"`
}

// String joins the rows with newlines.
func (s Snapshot) String() string {
	return strings.Join(s.Rows, "\n")
}

// Snapshot renders the grid, waiting for the read lock.
func (s *Simulation) Snapshot() Snapshot {
	s.mapMu.RLock()
	defer s.mapMu.RUnlock()
	return render(s.worldMap)
}

// TrySnapshot renders the grid only if the read lock is free right now.
// ok is false on contention; callers keep their previous snapshot.
func (s *Simulation) TrySnapshot() (snap Snapshot, ok bool) {
	if !s.mapMu.TryRLock() {
		return Snapshot{}, false
	}
	defer s.mapMu.RUnlock()
	return render(s.worldMap), true
}

func render(m *world.Map) Snapshot {
	tiles := m.Tiles()
	rows := make([]string, m.Height)
	var b strings.Builder
	for y := 0; y < m.Height; y++ {
		b.Reset()
		for x := 0; x < m.Width; x++ {
			b.WriteRune(tiles[y*m.Width+x].Glyph())
		}
		rows[y] = b.String()
	}
	return Snapshot{
		Width:  m.Width,
		Height: m.Height,
		Base:   m.BasePosition,
		Rows:   rows,
		Taken:  time.Now(),
	}
}
