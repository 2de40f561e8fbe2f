package db

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stupiduntilnot/botik/internal/session"
)

func TestEventLog_Record(t *testing.T) {
	db := testDB(t)
	parent, err := LogEvent(db, nil, EventProcessStarted, nil)
	require.NoError(t, err)

	log := &EventLog{DB: db, ParentID: &parent}
	log.Record(context.Background(), session.Event{
		Type:   session.EventTurnCompleted,
		UserID: 99,
		TurnID: "turn-1",
		Fields: map[string]any{"history_len": 2},
	})

	var (
		parentID int64
		raw      string
	)
	require.NoError(t, db.QueryRow(
		`SELECT parent_id, payload FROM events WHERE event_type = ?`, session.EventTurnCompleted,
	).Scan(&parentID, &raw))
	assert.Equal(t, parent, parentID)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))
	assert.Equal(t, float64(99), payload["user_id"])
	assert.Equal(t, "turn-1", payload["turn_id"])
	assert.Equal(t, float64(2), payload["history_len"])
}

func TestEventLog_OmitsEmptyTurnID(t *testing.T) {
	db := testDB(t)
	(&EventLog{DB: db}).Record(context.Background(), session.Event{Type: session.EventSessionReset, UserID: 1})

	var raw string
	require.NoError(t, db.QueryRow(`SELECT payload FROM events WHERE event_type = ?`, session.EventSessionReset).Scan(&raw))
	assert.JSONEq(t, `{"user_id":1}`, raw)
}
