// Package robots provides the robot data model and the per-tick state
// machine for explorers and harvesters. Robots touch the world only through
// the world.Map accessors and are never shared between goroutines.
package robots

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"

	"github.com/talgya/robot-expedition/internal/world"
)

// Kind is the robot's capability set.
type Kind = world.RobotKind

const (
	Explorer  = world.RobotExplorer
	Harvester = world.RobotHarvester
)

// State is the robot's behavioral state.
type State uint8

const (
	Exploring       State = iota // Wandering (explorer) or scanning (harvester)
	Harvesting                   // Approaching and mining the target deposit
	ReturningToBase              // Walking home with a find or a load
	Reporting                    // Docked at base, waiting for the engine
	Idle                         // Terminal; the worker exits
)

func (s State) String() string {
	switch s {
	case Exploring:
		return "exploring"
	case Harvesting:
		return "harvesting"
	case ReturningToBase:
		return "returning"
	case Reporting:
		return "reporting"
	case Idle:
		return "idle"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// MarshalText renders the state name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name written by MarshalText.
func (s *State) UnmarshalText(b []byte) error {
	for st := Exploring; st <= Idle; st++ {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown robot state %q", b)
}

// Target references a deposit the robot found or was sent to.
type Target struct {
	Pos      world.Position `json:"pos"`
	Resource world.Resource `json:"resource"` // Last known contents
	Partial  bool           `json:"partial"`  // Quantity remained after the last harvest
}

// Options tunes robot behavior.
type Options struct {
	Capacity   int // Units a harvester carries per trip
	ScanRadius int // Square radius a harvester searches for deposits
	StuckLimit int // Ticks without progress before a target is abandoned
}

// DefaultOptions returns the standard robot tuning.
func DefaultOptions() Options {
	return Options{
		Capacity:   5,
		ScanRadius: 5,
		StuckLimit: 20,
	}
}

// Robot is one explorer or harvester. It is owned by exactly one worker.
type Robot struct {
	ID     string
	Kind   Kind
	Pos    world.Position
	Home   world.Position
	State  State
	Target *Target

	// Harvester load; zero for explorers.
	Cargo world.Resource

	// Tiles this robot has stood on.
	Discovered map[world.Position]struct{}

	Ticks uint64

	opts    Options
	rng     *rand.Rand
	stuck   int
	covered *world.Tile // deposit hidden under an explorer marker
	placed  bool

	// Deposits given up on, skipped by scan until the recorded tick.
	shunned   map[world.Position]uint64
	abandoned *world.Position
}

// New creates a robot of the given kind standing at home. It is not on the
// grid until Place is called.
func New(kind Kind, home world.Position, opts Options, rng *rand.Rand) *Robot {
	def := DefaultOptions()
	if opts.Capacity <= 0 {
		opts.Capacity = def.Capacity
	}
	if opts.ScanRadius < 0 {
		opts.ScanRadius = def.ScanRadius
	}
	if opts.StuckLimit <= 0 {
		opts.StuckLimit = def.StuckLimit
	}
	return &Robot{
		ID:         uuid.New().String(),
		Kind:       kind,
		Pos:        home,
		Home:       home,
		State:      Exploring,
		Discovered: map[world.Position]struct{}{home: {}},
		shunned:    make(map[world.Position]uint64),
		opts:       opts,
		rng:        rng,
	}
}

// AssignTarget points the robot at a known deposit and starts harvesting.
func (r *Robot) AssignTarget(t Target) {
	r.Target = &t
	r.State = Harvesting
	r.stuck = 0
}

// Status is a copy of the robot's observable fields.
type Status struct {
	ID         string         `json:"id"`
	Kind       string         `json:"kind"`
	State      State          `json:"state"`
	Pos        world.Position `json:"pos"`
	Target     *Target        `json:"target,omitempty"`
	Cargo      world.Resource `json:"cargo"`
	Discovered int            `json:"discovered"`
	Ticks      uint64         `json:"ticks"`
}

// Status returns a snapshot safe to hand to other goroutines.
func (r *Robot) Status() Status {
	s := Status{
		ID:         r.ID,
		Kind:       r.Kind.String(),
		State:      r.State,
		Pos:        r.Pos,
		Cargo:      r.Cargo,
		Discovered: len(r.Discovered),
		Ticks:      r.Ticks,
	}
	if r.Target != nil {
		t := *r.Target
		s.Target = &t
	}
	return s
}
