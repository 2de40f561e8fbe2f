package session

import "context"

// Turn lifecycle event types.
const (
	EventTurnStarted       = "turn.started"
	EventTurnCompleted     = "turn.completed"
	EventTurnFailed        = "turn.failed"
	EventHistorySummarized = "history.summarized"
	EventSummaryFailed     = "summary.failed"
	EventSessionReset      = "session.reset"
)

// Event describes one step of a turn for audit purposes.
type Event struct {
	Type   string
	UserID int64
	TurnID string
	Fields map[string]any
}

// EventSink receives turn events. Recording is best effort: a sink failure
// never affects the turn.
type EventSink interface {
	Record(ctx context.Context, ev Event)
}

type nopSink struct{}

func (nopSink) Record(context.Context, Event) {}
