package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stupiduntilnot/botik/internal/session"
)

func newTestStore(t *testing.T, ttl time.Duration) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := New(context.Background(), Options{Addr: mr.Addr(), TTL: ttl})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, mr
}

func TestStore_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t, 0)

	h, err := s.Get(ctx, 1001)
	require.NoError(t, err)
	assert.Empty(t, h)

	want := session.History{
		session.UserTurn("Как дела?"),
		session.AssistantTurn("Отлично 🤖 <ok> & ready"),
	}
	require.NoError(t, s.Set(ctx, 1001, want))

	raw, err := mr.Get("history:1001")
	require.NoError(t, err)
	assert.Equal(t, `[{"role":"user","content":"Как дела?"},{"role":"assistant","content":"Отлично 🤖 <ok> & ready"}]`, raw)
	assert.Zero(t, mr.TTL("history:1001"))

	got, err := s.Get(ctx, 1001)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, s.Delete(ctx, 1001))
	assert.False(t, mr.Exists("history:1001"))
	require.NoError(t, s.Delete(ctx, 1001), "deleting a missing key is not an error")

	got, err = s.Get(ctx, 1001)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_TTL(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t, time.Hour)

	require.NoError(t, s.Set(ctx, 5, session.History{session.UserTurn("hi")}))
	assert.Equal(t, time.Hour, mr.TTL("history:5"))

	mr.FastForward(2 * time.Hour)
	h, err := s.Get(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, h, "expired session reads as empty")
}

func TestStore_MalformedValue(t *testing.T) {
	s, mr := newTestStore(t, 0)
	require.NoError(t, mr.Set("history:9", "{broken"))

	_, err := s.Get(context.Background(), 9)
	assert.ErrorIs(t, err, session.ErrMalformedHistory)
}

func TestStore_Unavailable(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	s := NewWithClient(client, 0)
	defer s.Close()

	mr.Close()

	_, err = s.Get(ctx, 1)
	assert.ErrorIs(t, err, session.ErrStoreUnavailable)
	assert.ErrorIs(t, s.Set(ctx, 1, session.History{session.UserTurn("x")}), session.ErrStoreUnavailable)
	assert.ErrorIs(t, s.Delete(ctx, 1), session.ErrStoreUnavailable)
}

func TestNew_PingFailure(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = New(context.Background(), Options{Addr: addr})
	assert.Error(t, err)
}

func TestStore_BacksController(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t, 0)
	ctrl, err := session.NewController(session.ControllerConfig{
		Store: s,
		Completer: session.CompleterFunc(func(context.Context, session.History) (string, error) {
			return "<r>", nil
		}),
		Summarizer: session.SummarizerFunc(func(context.Context, session.History) (session.Turn, error) {
			return session.SummaryTurn("<condensed text>"), nil
		}),
		Threshold: 4,
	})
	require.NoError(t, err)

	_, err = ctrl.Handle(ctx, 77, "hi")
	require.NoError(t, err)
	raw, err := mr.Get("history:77")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"role":"user","content":"hi"},{"role":"assistant","content":"<r>"}]`, raw)

	_, err = ctrl.Handle(ctx, 77, "bye")
	require.NoError(t, err)
	raw, err = mr.Get("history:77")
	require.NoError(t, err)
	assert.Equal(t, `[{"role":"system","content":"Summary of previous dialogue: <condensed text>"}]`, raw)

	require.NoError(t, ctrl.Reset(ctx, 77))
	assert.False(t, mr.Exists("history:77"))
}
