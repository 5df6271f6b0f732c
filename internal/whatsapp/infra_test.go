package whatsapp

import (
	"bytes"
	"context"
	"database/sql"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

func TestLogSink_Record(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(slog.New(slog.NewTextHandler(&buf, nil)))

	ev := Event{
		ID:        uuid.New(),
		RequestID: "req-1",
		Sender:    "+447745824688",
		AgentID:   "himson",
		Outcome:   OutcomeReplied,
		ThreadID:  "thread_1",
		RunID:     "run_1",
		CreatedAt: time.Now(),
	}
	if err := sink.Record(context.Background(), ev); err != nil {
		t.Fatalf("Record: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"outcome=replied", "agent_id=himson", "thread_id=thread_1", ev.ID.String()} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q: %s", want, out)
		}
	}
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	return db
}

func TestPostgresSink_RecordAndRecent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	sink := NewPostgresSink(db)
	if err := sink.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	// second call must be a no-op
	if err := sink.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema again: %v", err)
	}

	base := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Microsecond)
	older := Event{
		ID:        uuid.New(),
		RequestID: "req-older",
		Sender:    "+85294689284",
		AgentID:   "murff",
		Outcome:   OutcomeConfigError,
		Detail:    "no assistant bound for agent murff",
		CreatedAt: base,
	}
	newer := Event{
		ID:        uuid.New(),
		RequestID: "req-newer",
		Sender:    "+447745824688",
		AgentID:   "himson",
		Outcome:   OutcomeReplied,
		ThreadID:  "thread_1",
		RunID:     "run_1",
		CreatedAt: base.Add(time.Second),
	}
	t.Cleanup(func() {
		_, _ = db.Exec(`DELETE FROM routing_events WHERE id = $1 OR id = $2`, older.ID.String(), newer.ID.String())
	})
	for _, ev := range []Event{older, newer} {
		if err := sink.Record(ctx, ev); err != nil {
			t.Fatalf("Record %s: %v", ev.RequestID, err)
		}
	}

	got, err := sink.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].ID != newer.ID || got[1].ID != older.ID {
		t.Fatalf("events not newest first: %s, %s", got[0].RequestID, got[1].RequestID)
	}

	ev := got[0]
	if ev.RequestID != newer.RequestID || ev.Sender != newer.Sender || ev.AgentID != newer.AgentID ||
		ev.Outcome != newer.Outcome || ev.ThreadID != newer.ThreadID || ev.RunID != newer.RunID {
		t.Errorf("round trip mismatch: got %+v, want %+v", ev, newer)
	}
	if !ev.CreatedAt.Equal(newer.CreatedAt) {
		t.Errorf("created_at = %v, want %v", ev.CreatedAt, newer.CreatedAt)
	}
	if got[1].Detail != older.Detail || got[1].Outcome != OutcomeConfigError {
		t.Errorf("older event mismatch: %+v", got[1])
	}
}
