package persistence_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/robot-expedition/internal/engine"
	"github.com/talgya/robot-expedition/internal/persistence"
)

func openMemory(t *testing.T) *persistence.DB {
	t.Helper()
	db, err := persistence.Open(persistence.MemoryDSN)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRecordAndQuery(t *testing.T) {
	db := openMemory(t)
	now := time.Now()

	events := []engine.Event{
		{Time: now, Kind: engine.EventDispatch, RobotID: "e1", RobotKind: "explorer", Description: "explorer dispatched"},
		{Time: now, Kind: engine.EventReport, RobotID: "e1", RobotKind: "explorer", X: 4, Y: 2, Resource: "energy", Description: "found"},
		{Time: now, Kind: engine.EventReport, RobotID: "h1", RobotKind: "harvester", X: 4, Y: 2, Resource: "energy", Quantity: 5, Description: "delivered"},
		{Time: now, Kind: engine.EventReport, RobotID: "h1", RobotKind: "harvester", X: 4, Y: 2, Resource: "energy", Quantity: 3, Description: "delivered"},
		{Time: now, Kind: engine.EventReport, RobotID: "h2", RobotKind: "harvester", X: 1, Y: 7, Resource: "mineral", Quantity: 4, Description: "delivered"},
		{Time: now, Kind: engine.EventIdle, RobotID: "h2", RobotKind: "harvester", Description: "done"},
	}
	for _, e := range events {
		require.NoError(t, db.Record(e))
	}

	recent, err := db.RecentEvents(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, engine.EventIdle, recent[0].Kind, "newest first")
	assert.Equal(t, now.UnixMilli(), recent[0].Time.UnixMilli())

	reports, err := db.Reports(10)
	require.NoError(t, err)
	assert.Len(t, reports, 4)
	assert.Equal(t, "h2", reports[0].RobotID)

	totals, err := db.Totals()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"energy": 8, "mineral": 4}, totals)
}

func TestRunMeta(t *testing.T) {
	db := openMemory(t)

	require.NoError(t, db.SaveRunInfo(25, 20, 8))
	w, err := db.GetMeta("width")
	require.NoError(t, err)
	assert.Equal(t, "25", w)

	seed, err := db.GetMeta("seed")
	require.NoError(t, err)
	assert.Equal(t, "8", seed)

	_, err = db.GetMeta("missing")
	assert.Error(t, err)
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	db, err := persistence.Open(path)
	require.NoError(t, err)
	require.NoError(t, db.Record(engine.Event{Time: time.Now(), Kind: engine.EventControl, Description: "play"}))
	require.NoError(t, db.Close())

	db, err = persistence.Open(path)
	require.NoError(t, err)
	defer db.Close()
	recent, err := db.RecentEvents(10)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}
