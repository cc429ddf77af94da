package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/talgya/robot-expedition/internal/robots"
)

// runWorker drives one robot until it goes Idle. Each tick takes the map
// write lock for exactly one state-machine step, then sleeps unlocked.
func (s *Simulation) runWorker(r *robots.Robot, h *handle) {
	defer s.wg.Done()
	defer close(h.done)

	for r.State != robots.Idle {
		if s.stopping.Load() {
			s.retire(r)
			break
		}
		if !s.clock.Running() {
			time.Sleep(s.clock.Interval())
			continue
		}

		s.mapMu.Lock()
		err := r.Step(s.worldMap)
		s.mapMu.Unlock()
		if err != nil {
			slog.Error("robot step aborted", "robot", r.ID, "kind", r.Kind, "error", err)
		}

		if p, ok := r.TakeAbandoned(); ok {
			s.targetAbandoned(r, p)
		}
		if r.State == robots.Reporting {
			s.robotCameBack(r)
		}
		h.publish(r)

		if r.State == robots.Idle {
			break
		}
		time.Sleep(s.clock.Interval())
	}

	h.publish(r)
	s.events.publish(Event{
		Kind:        EventIdle,
		RobotID:     r.ID,
		RobotKind:   r.Kind.String(),
		X:           r.Pos.X,
		Y:           r.Pos.Y,
		Description: fmt.Sprintf("%s finished after %d ticks", r.Kind, r.Ticks),
	})
	slog.Info("robot idle", "robot", r.ID, "kind", r.Kind, "ticks", r.Ticks)
}

func (h *handle) publish(r *robots.Robot) {
	st := r.Status()
	h.status.Store(&st)
}
