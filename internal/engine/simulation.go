// Simulation owns the shared world map, the robot workers, and the
// aggregate counters they report into.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/talgya/robot-expedition/internal/entropy"
	"github.com/talgya/robot-expedition/internal/robots"
	"github.com/talgya/robot-expedition/internal/world"
)

var (
	// ErrUnknownKind is returned when dispatching an unsupported robot kind.
	ErrUnknownKind = errors.New("unknown robot kind")
	// ErrShuttingDown is returned when dispatching after Shutdown.
	ErrShuttingDown = errors.New("simulation shutting down")
)

// Config holds everything needed to build a Simulation.
type Config struct {
	World world.GenConfig
	Robot robots.Options

	TickInterval time.Duration
	MinInterval  time.Duration
	SpeedStep    time.Duration

	// Energy spent to dispatch a harvester to an explorer's find.
	HarvesterCost int

	// Seeds the robots' wander and direction draws (0 = fresh entropy).
	RobotSeed int64

	StartRunning bool

	Sinks []Sink
}

// DefaultConfig returns the standard settings.
func DefaultConfig() Config {
	return Config{
		World:        world.DefaultGenConfig(),
		Robot:        robots.DefaultOptions(),
		TickInterval: DefaultInterval,
		MinInterval:  DefaultMinimum,
		SpeedStep:    DefaultSpeedStep,
	}
}

// LocatedResource is a deposit an explorer reported.
type LocatedResource struct {
	Pos       world.Position     `json:"pos"`
	Kind      world.ResourceKind `json:"kind"`
	Remaining int                `json:"remaining"`
	Depleted  bool               `json:"depleted"`
	FoundBy   string             `json:"found_by"`
	FoundAt   time.Time          `json:"found_at"`
}

// Stats is a point-in-time summary of the aggregate state.
type Stats struct {
	Energy         int   `json:"energy"`
	Minerals       int   `json:"minerals"`
	Running        bool  `json:"running"`
	IntervalMS     int64 `json:"interval_ms"`
	Explorers      int   `json:"explorers"`
	Harvesters     int   `json:"harvesters"`
	ActiveRobots   int   `json:"active_robots"`
	Located        int   `json:"located"`
	PendingLocated int   `json:"pending_located"`
}

// Simulation holds the complete world state and wires robots to it.
type Simulation struct {
	cfg   Config
	clock *Clock

	// Every tile read or write happens under mapMu.
	mapMu    sync.RWMutex
	worldMap *world.Map

	// Aggregates, guarded independently of the map.
	mu       sync.Mutex
	energy   int
	minerals int
	located  []LocatedResource

	regMu      sync.Mutex
	explorers  map[string]*handle
	harvesters map[string]*handle
	order      []*handle

	wg       sync.WaitGroup
	stopping atomic.Bool

	rng    *entropy.Source
	events *eventLog
}

// handle is the engine's view of a running worker: identity, a join
// channel, and the last status the worker published.
type handle struct {
	id     string
	kind   robots.Kind
	done   chan struct{}
	status atomic.Pointer[robots.Status]
}

// New generates the world and returns a Simulation with no robots.
func New(cfg Config) (*Simulation, error) {
	m, err := world.Generate(cfg.World)
	if err != nil {
		return nil, fmt.Errorf("generate world: %w", err)
	}
	return NewWithMap(m, cfg), nil
}

// NewWithMap wraps an existing map. The Simulation takes ownership of m.
func NewWithMap(m *world.Map, cfg Config) *Simulation {
	s := &Simulation{
		cfg:        cfg,
		clock:      NewClock(cfg.TickInterval, cfg.MinInterval, cfg.SpeedStep),
		worldMap:   m,
		explorers:  make(map[string]*handle),
		harvesters: make(map[string]*handle),
		rng:        entropy.NewSource(cfg.RobotSeed),
		events:     newEventLog(cfg.Sinks),
	}
	if cfg.StartRunning {
		s.clock.Play()
	}
	slog.Info("simulation ready",
		"width", m.Width,
		"height", m.Height,
		"seed", m.Seed,
		"base_x", m.BasePosition.X,
		"base_y", m.BasePosition.Y,
		"interval", s.clock.Interval(),
	)
	return s
}

// Play resumes all workers.
func (s *Simulation) Play() {
	s.clock.Play()
	s.events.publish(Event{Kind: EventControl, Description: "play"})
}

// Pause freezes all workers between ticks.
func (s *Simulation) Pause() {
	s.clock.Pause()
	s.events.publish(Event{Kind: EventControl, Description: "pause"})
}

// Running reports whether the simulation is playing.
func (s *Simulation) Running() bool {
	return s.clock.Running()
}

// IncreaseSpeed shortens the tick interval.
func (s *Simulation) IncreaseSpeed() time.Duration {
	d := s.clock.Faster()
	slog.Info("speed changed", "interval", d)
	return d
}

// DecreaseSpeed lengthens the tick interval.
func (s *Simulation) DecreaseSpeed() time.Duration {
	d := s.clock.Slower()
	slog.Info("speed changed", "interval", d)
	return d
}

// Interval returns the current tick interval.
func (s *Simulation) Interval() time.Duration {
	return s.clock.Interval()
}

// EnergyCount returns the aggregate energy collected.
func (s *Simulation) EnergyCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.energy
}

// ResourceCount returns the aggregate minerals collected.
func (s *Simulation) ResourceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.minerals
}

// BasePosition returns the base coordinate.
func (s *Simulation) BasePosition() world.Position {
	s.mapMu.RLock()
	defer s.mapMu.RUnlock()
	return s.worldMap.BasePosition
}

// SendRobot dispatches a new robot of the given kind from the base. setup,
// if non-nil, runs before the worker starts (e.g. to assign a target).
// It returns the new robot's ID.
func (s *Simulation) SendRobot(kind robots.Kind, setup func(*robots.Robot)) (string, error) {
	if kind != robots.Explorer && kind != robots.Harvester {
		return "", fmt.Errorf("send robot: %w: %d", ErrUnknownKind, kind)
	}
	if s.stopping.Load() {
		return "", fmt.Errorf("send robot: %w", ErrShuttingDown)
	}

	base := s.BasePosition()
	r := robots.New(kind, base, s.cfg.Robot, s.rng.Derive())
	if setup != nil {
		setup(r)
	}

	s.mapMu.Lock()
	r.Place(s.worldMap)
	s.mapMu.Unlock()

	h := &handle{id: r.ID, kind: kind, done: make(chan struct{})}
	st := r.Status()
	h.status.Store(&st)

	s.regMu.Lock()
	if kind == robots.Explorer {
		s.explorers[r.ID] = h
	} else {
		s.harvesters[r.ID] = h
	}
	s.order = append(s.order, h)
	s.wg.Add(1)
	s.regMu.Unlock()

	go s.runWorker(r, h)

	s.events.publish(Event{
		Kind:        EventDispatch,
		RobotID:     r.ID,
		RobotKind:   kind.String(),
		X:           base.X,
		Y:           base.Y,
		Description: fmt.Sprintf("%s dispatched from base", kind),
	})
	slog.Info("robot dispatched", "robot", r.ID, "kind", kind, "x", base.X, "y", base.Y)
	return r.ID, nil
}

// robotCameBack folds a docked robot's results into the aggregates and
// decides what it does next. It runs on the robot's own worker without the
// map lock held.
func (s *Simulation) robotCameBack(r *robots.Robot) {
	switch r.Kind {
	case robots.Explorer:
		s.explorerCameBack(r)
	case robots.Harvester:
		s.harvesterCameBack(r)
	}
}

func (s *Simulation) explorerCameBack(r *robots.Robot) {
	var target robots.Target
	dispatch := false
	if r.Target != nil {
		target = *r.Target
		s.mu.Lock()
		if s.indexLocated(target.Pos) < 0 && s.energy >= s.cfg.HarvesterCost {
			s.energy -= s.cfg.HarvesterCost
			s.located = append(s.located, LocatedResource{
				Pos:       target.Pos,
				Kind:      target.Resource.Kind,
				Remaining: target.Resource.Quantity,
				FoundBy:   r.ID,
				FoundAt:   time.Now(),
			})
			dispatch = true
		}
		s.mu.Unlock()

		s.events.publish(Event{
			Kind:        EventReport,
			RobotID:     r.ID,
			RobotKind:   r.Kind.String(),
			X:           target.Pos.X,
			Y:           target.Pos.Y,
			Resource:    target.Resource.Kind.String(),
			Description: fmt.Sprintf("explorer located %s at (%d,%d)", target.Resource.Kind, target.Pos.X, target.Pos.Y),
		})
	}

	s.retire(r)

	if dispatch {
		_, err := s.SendRobot(robots.Harvester, func(h *robots.Robot) {
			h.AssignTarget(robots.Target{Pos: target.Pos, Resource: target.Resource})
		})
		if err != nil {
			slog.Warn("harvester dispatch failed", "x", target.Pos.X, "y", target.Pos.Y, "error", err)
		}
	}
}

func (s *Simulation) harvesterCameBack(r *robots.Robot) {
	load := r.Unload()

	s.mu.Lock()
	switch load.Kind {
	case world.ResourceEnergy:
		s.energy += load.Quantity
	case world.ResourceMineral:
		s.minerals += load.Quantity
	}
	if r.Target != nil {
		if i := s.indexLocated(r.Target.Pos); i >= 0 {
			s.located[i].Remaining = r.Target.Resource.Quantity
			s.located[i].Depleted = !r.Target.Partial
		}
	}
	s.mu.Unlock()

	e := Event{
		Kind:        EventReport,
		RobotID:     r.ID,
		RobotKind:   r.Kind.String(),
		Resource:    load.Kind.String(),
		Quantity:    load.Quantity,
		Description: fmt.Sprintf("harvester delivered %d %s", load.Quantity, load.Kind),
	}
	if r.Target != nil {
		e.X, e.Y = r.Target.Pos.X, r.Target.Pos.Y
	}
	s.events.publish(e)

	if r.Target != nil && r.Target.Partial && !s.stopping.Load() {
		r.ResumeHarvest()
		return
	}
	s.retire(r)
}

// targetAbandoned drops a located entry whose harvester gave up on it, so a
// later find at the same coordinate can dispatch again.
func (s *Simulation) targetAbandoned(r *robots.Robot, p world.Position) {
	s.mu.Lock()
	dropped := false
	if i := s.indexLocated(p); i >= 0 && !s.located[i].Depleted {
		s.located = append(s.located[:i], s.located[i+1:]...)
		dropped = true
	}
	s.mu.Unlock()

	s.events.publish(Event{
		Kind:        EventAbandon,
		RobotID:     r.ID,
		RobotKind:   r.Kind.String(),
		X:           p.X,
		Y:           p.Y,
		Description: fmt.Sprintf("%s gave up on (%d,%d)", r.Kind, p.X, p.Y),
	})
	slog.Info("target abandoned", "robot", r.ID, "x", p.X, "y", p.Y, "requeued", dropped)
}

// indexLocated returns the queue index for p, or -1. Callers hold s.mu.
func (s *Simulation) indexLocated(p world.Position) int {
	for i, l := range s.located {
		if l.Pos == p {
			return i
		}
	}
	return -1
}

func (s *Simulation) retire(r *robots.Robot) {
	s.mapMu.Lock()
	r.Retire(s.worldMap)
	s.mapMu.Unlock()
}

// Located returns a copy of the located-resource queue.
func (s *Simulation) Located() []LocatedResource {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]LocatedResource, len(s.located))
	copy(out, s.located)
	return out
}

// Pending returns located deposits not yet depleted.
func (s *Simulation) Pending() []LocatedResource {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []LocatedResource
	for _, l := range s.located {
		if !l.Depleted {
			out = append(out, l)
		}
	}
	return out
}

// Robots returns the last published status of every robot, in dispatch order.
func (s *Simulation) Robots() []robots.Status {
	s.regMu.Lock()
	defer s.regMu.Unlock()
	out := make([]robots.Status, 0, len(s.order))
	for _, h := range s.order {
		out = append(out, *h.status.Load())
	}
	return out
}

// ActiveRobots counts workers that have not exited.
func (s *Simulation) ActiveRobots() int {
	s.regMu.Lock()
	defer s.regMu.Unlock()
	n := 0
	for _, h := range s.order {
		select {
		case <-h.done:
		default:
			n++
		}
	}
	return n
}

// Stats returns a summary of the aggregate state. It never touches the map
// lock.
func (s *Simulation) Stats() Stats {
	st := Stats{
		Running:      s.clock.Running(),
		IntervalMS:   s.clock.Interval().Milliseconds(),
		ActiveRobots: s.ActiveRobots(),
	}

	s.regMu.Lock()
	st.Explorers = len(s.explorers)
	st.Harvesters = len(s.harvesters)
	s.regMu.Unlock()

	s.mu.Lock()
	st.Energy = s.energy
	st.Minerals = s.minerals
	st.Located = len(s.located)
	for _, l := range s.located {
		if !l.Depleted {
			st.PendingLocated++
		}
	}
	s.mu.Unlock()
	return st
}

// RecentEvents returns up to n of the most recent events.
func (s *Simulation) RecentEvents(n int) []Event {
	return s.events.recent(n)
}

// Subscribe registers for live events. The channel is closed by Unsubscribe.
func (s *Simulation) Subscribe() (int, <-chan Event) {
	return s.events.subscribe()
}

// Unsubscribe removes a subscriber.
func (s *Simulation) Unsubscribe(id int) {
	s.events.unsubscribe(id)
}

// ReadMap runs fn with shared access to the map. fn must not keep m.
func (s *Simulation) ReadMap(fn func(m *world.Map)) {
	s.mapMu.RLock()
	defer s.mapMu.RUnlock()
	fn(s.worldMap)
}

// Shutdown drives every robot to Idle; workers exit on their next loop.
func (s *Simulation) Shutdown() {
	if s.stopping.Swap(true) {
		return
	}
	slog.Info("simulation shutting down", "active_robots", s.ActiveRobots())
}

// Wait blocks until every worker has exited.
func (s *Simulation) Wait() {
	s.wg.Wait()
}
