// Package persistence provides the SQLite report journal for a run.
// Every dispatch, report, and idle event is appended so it can be queried
// while the simulation runs. Nothing is ever loaded back into a simulation.
package persistence

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/robot-expedition/internal/engine"
)

// MemoryDSN keeps the journal in memory for the life of the process.
const MemoryDSN = ":memory:"

// DB wraps a SQLite connection for the event journal.
type DB struct {
	conn *sqlx.DB
}

type eventRow struct {
	TimeMS      int64  `db:"time_ms"`
	Kind        string `db:"kind"`
	RobotID     string `db:"robot_id"`
	RobotKind   string `db:"robot_kind"`
	X           int    `db:"x"`
	Y           int    `db:"y"`
	Resource    string `db:"resource"`
	Quantity    int    `db:"quantity"`
	Description string `db:"description"`
}

// Open opens or creates a SQLite database at the given path. MemoryDSN or
// an empty path gives an in-memory journal.
func Open(path string) (*DB, error) {
	dsn := path
	memory := path == "" || path == MemoryDSN
	if memory {
		dsn = MemoryDSN
	} else if !strings.Contains(path, "?") {
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	conn, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if memory {
		// Each in-memory connection is its own database.
		conn.SetMaxOpenConns(1)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		time_ms INTEGER NOT NULL,
		kind TEXT NOT NULL,
		robot_id TEXT NOT NULL DEFAULT '',
		robot_kind TEXT NOT NULL DEFAULT '',
		x INTEGER NOT NULL DEFAULT 0,
		y INTEGER NOT NULL DEFAULT 0,
		resource TEXT NOT NULL DEFAULT '',
		quantity INTEGER NOT NULL DEFAULT 0,
		description TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS run_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind);
	CREATE INDEX IF NOT EXISTS idx_events_robot ON events(robot_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// Record appends one event. It satisfies engine.Sink.
func (db *DB) Record(e engine.Event) error {
	_, err := db.conn.NamedExec(`INSERT INTO events
		(time_ms, kind, robot_id, robot_kind, x, y, resource, quantity, description)
		VALUES (:time_ms, :kind, :robot_id, :robot_kind, :x, :y, :resource, :quantity, :description)`,
		toRow(e),
	)
	if err != nil {
		return fmt.Errorf("insert event %s: %w", e.Kind, err)
	}
	return nil
}

// SaveMeta stores a key-value pair describing the run.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO run_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a run metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM run_meta WHERE key = ?", key)
	return value, err
}

// SaveRunInfo records the parameters the world was generated from.
func (db *DB) SaveRunInfo(width, height int, seed uint32) error {
	for k, v := range map[string]string{
		"width":      fmt.Sprintf("%d", width),
		"height":     fmt.Sprintf("%d", height),
		"seed":       fmt.Sprintf("%d", seed),
		"started_at": time.Now().UTC().Format(time.RFC3339),
	} {
		if err := db.SaveMeta(k, v); err != nil {
			return fmt.Errorf("save meta %s: %w", k, err)
		}
	}
	slog.Debug("run info saved", "width", width, "height", height, "seed", seed)
	return nil
}

// RecentEvents returns the most recent N events, newest first.
func (db *DB) RecentEvents(limit int) ([]engine.Event, error) {
	var rows []eventRow
	err := db.conn.Select(&rows,
		`SELECT time_ms, kind, robot_id, robot_kind, x, y, resource, quantity, description
		 FROM events ORDER BY id DESC LIMIT ?`,
		limit,
	)
	return fromRows(rows), err
}

// Reports returns the most recent N report events, newest first.
func (db *DB) Reports(limit int) ([]engine.Event, error) {
	var rows []eventRow
	err := db.conn.Select(&rows,
		`SELECT time_ms, kind, robot_id, robot_kind, x, y, resource, quantity, description
		 FROM events WHERE kind = ? ORDER BY id DESC LIMIT ?`,
		engine.EventReport, limit,
	)
	return fromRows(rows), err
}

// Totals sums harvested quantities per resource kind.
func (db *DB) Totals() (map[string]int, error) {
	var rows []struct {
		Resource string `db:"resource"`
		Total    int    `db:"total"`
	}
	err := db.conn.Select(&rows,
		`SELECT resource, SUM(quantity) AS total FROM events
		 WHERE kind = ? AND robot_kind = 'harvester'
		 GROUP BY resource`,
		engine.EventReport,
	)
	if err != nil {
		return nil, err
	}
	totals := make(map[string]int, len(rows))
	for _, r := range rows {
		totals[r.Resource] = r.Total
	}
	return totals, nil
}

func toRow(e engine.Event) eventRow {
	return eventRow{
		TimeMS:      e.Time.UnixMilli(),
		Kind:        e.Kind,
		RobotID:     e.RobotID,
		RobotKind:   e.RobotKind,
		X:           e.X,
		Y:           e.Y,
		Resource:    e.Resource,
		Quantity:    e.Quantity,
		Description: e.Description,
	}
}

func fromRows(rows []eventRow) []engine.Event {
	events := make([]engine.Event, 0, len(rows))
	for _, r := range rows {
		events = append(events, engine.Event{
			Time:        time.UnixMilli(r.TimeMS),
			Kind:        r.Kind,
			RobotID:     r.RobotID,
			RobotKind:   r.RobotKind,
			X:           r.X,
			Y:           r.Y,
			Resource:    r.Resource,
			Quantity:    r.Quantity,
			Description: r.Description,
		})
	}
	return events
}
