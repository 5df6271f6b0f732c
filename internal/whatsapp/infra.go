package whatsapp

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// PostgresSink keeps routing events in Postgres.
type PostgresSink struct {
	db *sql.DB
}

func NewPostgresSink(db *sql.DB) *PostgresSink {
	return &PostgresSink{db: db}
}

func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS routing_events (
			id          UUID PRIMARY KEY,
			request_id  TEXT NOT NULL,
			sender      TEXT NOT NULL,
			agent_id    TEXT NOT NULL DEFAULT '',
			outcome     TEXT NOT NULL,
			detail      TEXT NOT NULL DEFAULT '',
			thread_id   TEXT NOT NULL DEFAULT '',
			run_id      TEXT NOT NULL DEFAULT '',
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS routing_events_created_at_idx ON routing_events (created_at DESC);
	`)
	return err
}

func (s *PostgresSink) Record(ctx context.Context, ev Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO routing_events (id, request_id, sender, agent_id, outcome, detail, thread_id, run_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		ev.ID.String(),
		ev.RequestID,
		ev.Sender,
		ev.AgentID,
		string(ev.Outcome),
		ev.Detail,
		ev.ThreadID,
		ev.RunID,
		ev.CreatedAt,
	)
	return err
}

// Recent returns the newest events first.
func (s *PostgresSink) Recent(ctx context.Context, limit int) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, request_id, sender, agent_id, outcome, detail, thread_id, run_id, created_at
		FROM routing_events
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var ev Event
		var id, outcome string
		if err := rows.Scan(
			&id,
			&ev.RequestID,
			&ev.Sender,
			&ev.AgentID,
			&outcome,
			&ev.Detail,
			&ev.ThreadID,
			&ev.RunID,
			&ev.CreatedAt,
		); err != nil {
			return nil, err
		}
		if ev.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		ev.Outcome = Outcome(outcome)
		out = append(out, ev)
	}

	return out, rows.Err()
}

// LogSink writes routing events to the logger when no database is
// configured.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Record(ctx context.Context, ev Event) error {
	s.logger.LogAttrs(ctx, slog.LevelInfo, "routing event",
		slog.String("event_id", ev.ID.String()),
		slog.String("request_id", ev.RequestID),
		slog.String("sender", ev.Sender),
		slog.String("agent_id", ev.AgentID),
		slog.String("outcome", string(ev.Outcome)),
		slog.String("detail", ev.Detail),
		slog.String("thread_id", ev.ThreadID),
		slog.String("run_id", ev.RunID),
		slog.Time("created_at", ev.CreatedAt.Truncate(time.Millisecond)),
	)
	return nil
}
