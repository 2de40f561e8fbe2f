package db

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/stupiduntilnot/botik/internal/session"
)

// EventLog records session turn events in the events table, as children of
// the process.started event when ParentID is set.
type EventLog struct {
	DB       *sql.DB
	ParentID *int64
	Logger   *slog.Logger
}

func (l *EventLog) Record(_ context.Context, ev session.Event) {
	payload := make(map[string]any, len(ev.Fields)+2)
	for k, v := range ev.Fields {
		payload[k] = v
	}
	payload["user_id"] = ev.UserID
	if ev.TurnID != "" {
		payload["turn_id"] = ev.TurnID
	}
	if _, err := LogEvent(l.DB, l.ParentID, ev.Type, payload); err != nil && l.Logger != nil {
		l.Logger.Warn("failed to record event", "event_type", ev.Type, "error", err)
	}
}
