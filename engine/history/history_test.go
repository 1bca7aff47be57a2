package history

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/humanoid-academy/coursebot/engine/domain"
)

func setupStore(t *testing.T) *SQLStore {
	t.Helper()
	dsn := "sqlite:" + filepath.Join(t.TempDir(), "history.db")
	s, err := Open(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestParseDSN(t *testing.T) {
	tests := []struct {
		dsn     string
		driver  string
		dialect Dialect
	}{
		{"postgres://u:p@localhost:5432/course", "pgx", Postgres},
		{"postgresql://localhost/course", "pgx", Postgres},
		{"sqlite:./chat.db", "sqlite", SQLite},
		{"sqlite:///var/lib/coursebot/chat.db", "sqlite", SQLite},
		{"file:chat.db?cache=shared", "sqlite", SQLite},
		{"chat.sqlite", "sqlite", SQLite},
	}
	for _, tt := range tests {
		driver, source, dialect, err := ParseDSN(tt.dsn)
		require.NoError(t, err, tt.dsn)
		assert.Equal(t, tt.driver, driver, tt.dsn)
		assert.Equal(t, tt.dialect, dialect, tt.dsn)
		if dialect == SQLite {
			assert.Contains(t, source, "busy_timeout")
		}
	}

	_, _, _, err := ParseDSN("mysql://root:secret@db/course")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret")
}

func TestRebind(t *testing.T) {
	pg := &SQLStore{dialect: Postgres}
	assert.Equal(t, "VALUES ($1, $2, $3)", pg.rebind("VALUES (?, ?, ?)"))
	lite := &SQLStore{dialect: SQLite}
	assert.Equal(t, "VALUES (?, ?)", lite.rebind("VALUES (?, ?)"))
}

func TestSQLStore_RecordAndList(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	// Inserted out of order; reads come back by created_at.
	require.NoError(t, s.Record(ctx, domain.ChatExchange{
		SessionID: "s1", UserMessage: "What is Gazebo?", AIResponse: "A simulator.", CreatedAt: base.Add(2 * time.Minute),
	}))
	require.NoError(t, s.Record(ctx, domain.ChatExchange{
		SessionID: "s1", UserMessage: "What is ROS 2?", AIResponse: "A robotics middleware.", Context: "chapter 1", CreatedAt: base,
	}))
	require.NoError(t, s.Record(ctx, domain.ChatExchange{
		SessionID: "other", UserMessage: "hi", AIResponse: "hello", CreatedAt: base,
	}))

	got, err := s.ListBySession(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "What is ROS 2?", got[0].UserMessage)
	assert.Equal(t, "chapter 1", got[0].Context)
	assert.WithinDuration(t, base, got[0].CreatedAt, time.Second)
	assert.Equal(t, "What is Gazebo?", got[1].UserMessage)
	assert.Empty(t, got[1].Context)
	assert.NotZero(t, got[1].ID)
}

func TestSQLStore_ListUnknownSession(t *testing.T) {
	got, err := setupStore(t).ListBySession(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSQLStore_StampsMissingTime(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	require.NoError(t, s.Record(ctx, domain.ChatExchange{SessionID: "s", UserMessage: "q", AIResponse: "a"}))

	got, err := s.ListBySession(ctx, "s")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.WithinDuration(t, time.Now(), got[0].CreatedAt, time.Minute)
}

func TestSQLStore_ReopenKeepsRows(t *testing.T) {
	dsn := "sqlite:" + filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	s, err := Open(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, s.Record(ctx, domain.ChatExchange{SessionID: "s", UserMessage: "q", AIResponse: "a"}))
	require.NoError(t, s.Close())

	s, err = Open(ctx, dsn)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, SQLite, s.Dialect())
	require.NoError(t, s.Ping(ctx))

	got, err := s.ListBySession(ctx, "s")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestTimestampScan(t *testing.T) {
	want := time.Date(2026, 3, 1, 10, 0, 0, 500, time.UTC)
	for _, src := range []any{
		want,
		want.Format(time.RFC3339Nano),
		[]byte(want.Format("2006-01-02 15:04:05.999999999-07:00")),
		want.String(),
	} {
		var ts timestamp
		require.NoError(t, ts.Scan(src), "%v", src)
		assert.True(t, want.Equal(time.Time(ts)), "%v", src)
	}
	var ts timestamp
	assert.Error(t, ts.Scan("yesterday"))
	assert.Error(t, ts.Scan(3.5))
}

type fakeConn struct {
	msgs []*nats.Msg
	err  error
}

func (f *fakeConn) PublishMsg(m *nats.Msg) error {
	f.msgs = append(f.msgs, m)
	return f.err
}

func TestEventRecorder(t *testing.T) {
	conn := &fakeConn{}
	ex := domain.ChatExchange{SessionID: "s1", UserMessage: "q", AIResponse: "héllo", Context: "c", CreatedAt: time.Now().UTC()}
	require.NoError(t, NewEventRecorder(conn).Record(context.Background(), ex))

	require.Len(t, conn.msgs, 1)
	assert.Equal(t, ExchangeSubject, conn.msgs[0].Subject)
	var ev ExchangeEvent
	require.NoError(t, json.Unmarshal(conn.msgs[0].Data, &ev))
	assert.Equal(t, "s1", ev.SessionID)
	assert.True(t, ev.HasContext)
	assert.Equal(t, 5, ev.ResponseChars)
}

type failingRecorder struct{ err error }

func (f failingRecorder) Record(context.Context, domain.ChatExchange) error { return f.err }

func TestMulti(t *testing.T) {
	s := setupStore(t)
	conn := &fakeConn{}
	boom := errors.New("nats down")
	rec := Multi(s, nil, NewEventRecorder(conn), failingRecorder{err: boom})

	err := rec.Record(context.Background(), domain.ChatExchange{SessionID: "m", UserMessage: "q", AIResponse: "a"})
	require.ErrorIs(t, err, boom)

	got, err := s.ListBySession(context.Background(), "m")
	require.NoError(t, err)
	assert.Len(t, got, 1, "one failing recorder must not stop the others")
	assert.Len(t, conn.msgs, 1)
}

func TestNop(t *testing.T) {
	require.NoError(t, Nop{}.Record(context.Background(), domain.ChatExchange{}))
	got, err := Nop{}.ListBySession(context.Background(), "x")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
