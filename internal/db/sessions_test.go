package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stupiduntilnot/botik/internal/session"
)

func TestSessionStore_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	s := &SessionStore{DB: testDB(t)}

	h, err := s.Get(ctx, 42)
	require.NoError(t, err)
	assert.Empty(t, h)

	first := session.History{session.UserTurn("Привет"), session.AssistantTurn("Здравствуйте! 👋")}
	require.NoError(t, s.Set(ctx, 42, first))

	got, err := s.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, first, got)

	var raw string
	require.NoError(t, s.DB.QueryRow(`SELECT history FROM sessions WHERE key = 'history:42'`).Scan(&raw))
	assert.Equal(t, `[{"role":"user","content":"Привет"},{"role":"assistant","content":"Здравствуйте! 👋"}]`, raw)

	summary := session.History{session.SummaryTurn("greetings exchanged")}
	require.NoError(t, s.Set(ctx, 42, summary), "set overwrites")
	got, err = s.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, summary, got)

	require.NoError(t, s.Delete(ctx, 42))
	require.NoError(t, s.Delete(ctx, 42))
	got, err = s.Get(ctx, 42)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSessionStore_Malformed(t *testing.T) {
	s := &SessionStore{DB: testDB(t)}
	_, err := s.DB.Exec(`INSERT INTO sessions (key, history) VALUES ('history:7', 'not json')`)
	require.NoError(t, err)

	_, err = s.Get(context.Background(), 7)
	assert.ErrorIs(t, err, session.ErrMalformedHistory)
}

func TestSessionStore_ClosedDBIsUnavailable(t *testing.T) {
	db, err := OpenDB(t.TempDir() + "/closed.db")
	require.NoError(t, err)
	require.NoError(t, InitSchema(db))
	require.NoError(t, db.Close())
	s := &SessionStore{DB: db}

	ctx := context.Background()
	_, err = s.Get(ctx, 1)
	assert.ErrorIs(t, err, session.ErrStoreUnavailable)
	assert.ErrorIs(t, s.Set(ctx, 1, session.History{session.UserTurn("x")}), session.ErrStoreUnavailable)
	assert.ErrorIs(t, s.Delete(ctx, 1), session.ErrStoreUnavailable)
}

func TestSessionStore_BacksController(t *testing.T) {
	ctx := context.Background()
	store := &SessionStore{DB: testDB(t)}
	ctrl, err := session.NewController(session.ControllerConfig{
		Store: store,
		Completer: session.CompleterFunc(func(_ context.Context, h session.History) (string, error) {
			return "echo", nil
		}),
		Summarizer: session.SummarizerFunc(func(_ context.Context, h session.History) (session.Turn, error) {
			return session.SummaryTurn("short"), nil
		}),
		Threshold: 4,
	})
	require.NoError(t, err)

	_, err = ctrl.Handle(ctx, 1, "hi")
	require.NoError(t, err)
	_, err = ctrl.Handle(ctx, 1, "bye")
	require.NoError(t, err)

	h, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, session.History{session.SystemTurn("Summary of previous dialogue: short")}, h)
}
