package engine

import (
	"log/slog"
	"sync"
	"time"
)

// Event kinds.
const (
	EventDispatch = "dispatch"
	EventReport   = "report"
	EventIdle     = "idle"
	EventAbandon  = "abandon"
	EventControl  = "control"
)

const maxEvents = 1000

// Event is a notable occurrence in the simulation.
type Event struct {
	Time        time.Time `json:"time"`
	Kind        string    `json:"kind"`
	RobotID     string    `json:"robot_id,omitempty"`
	RobotKind   string    `json:"robot_kind,omitempty"`
	X           int       `json:"x"`
	Y           int       `json:"y"`
	Resource    string    `json:"resource,omitempty"`
	Quantity    int       `json:"quantity"`
	Description string    `json:"description"`
}

// Sink receives every event as it is published. Implementations must be
// safe for concurrent use; errors are logged and otherwise ignored.
type Sink interface {
	Record(Event) error
}

// eventLog keeps the most recent events and fans them out to subscribers.
type eventLog struct {
	mu     sync.Mutex
	events []Event
	subs   map[int]chan Event
	nextID int
	sinks  []Sink
}

func newEventLog(sinks []Sink) *eventLog {
	return &eventLog{
		subs:  make(map[int]chan Event),
		sinks: sinks,
	}
}

func (l *eventLog) publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	l.mu.Lock()
	l.events = append(l.events, e)
	if len(l.events) > maxEvents {
		l.events = l.events[len(l.events)-maxEvents:]
	}
	for id, ch := range l.subs {
		select {
		case ch <- e:
		default:
			slog.Debug("dropping event for slow subscriber", "sub_id", id)
		}
	}
	sinks := l.sinks
	l.mu.Unlock()

	for _, s := range sinks {
		if err := s.Record(e); err != nil {
			slog.Error("event sink failed", "kind", e.Kind, "error", err)
		}
	}
}

func (l *eventLog) recent(n int) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	start := len(l.events) - n
	if n <= 0 || start < 0 {
		start = 0
	}
	out := make([]Event, len(l.events)-start)
	copy(out, l.events[start:])
	return out
}

func (l *eventLog) subscribe() (int, <-chan Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.nextID
	l.nextID++
	ch := make(chan Event, 64)
	l.subs[id] = ch
	return id, ch
}

func (l *eventLog) unsubscribe(id int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ch, ok := l.subs[id]; ok {
		delete(l.subs, id)
		close(ch)
	}
}
