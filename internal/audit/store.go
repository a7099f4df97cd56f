// Package audit persists a value-free trail of redaction passes and tool
// calls in SQLite. Records carry labels, tags, statuses and timings; never
// the values a tag stands for.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	domiotel "github.com/Treamyracle/INFOMEDIA/internal/otel"
)

var tracer = domiotel.Tracer("github.com/Treamyracle/INFOMEDIA/internal/audit")

// ErrNotFound is returned by Get for an unknown event id.
var ErrNotFound = errors.New("audit event not found")

// Event kinds.
const (
	KindChat   = "chat"
	KindRedact = "redact"
)

// Event is one audited request.
type Event struct {
	ID           string     `json:"id"`
	SessionID    string     `json:"session_id"`
	Timestamp    time.Time  `json:"timestamp"`
	Kind         string     `json:"kind"`
	Labels       []string   `json:"labels,omitempty"`
	Tags         []string   `json:"tags,omitempty"`
	Degraded     bool       `json:"degraded"`
	NERLatencyMS float64    `json:"ner_latency_ms"`
	ToolCalls    []ToolCall `json:"tool_calls,omitempty"`
	Model        string     `json:"model,omitempty"`
	DurationMS   int64      `json:"duration_ms"`
	Error        string     `json:"error,omitempty"`
}

// ToolCall is the audited outcome of one dispatch.
type ToolCall struct {
	Tool   string `json:"tool"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// Recorder accepts audit events.
type Recorder interface {
	Record(ctx context.Context, ev *Event) error
}

// Store persists events in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the audit database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening audit database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS audit_events (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		timestamp TIMESTAMP NOT NULL,
		kind TEXT NOT NULL,
		event_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_session ON audit_events(session_id);
	CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_events(timestamp);
	`
	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating audit schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores ev, assigning an id and timestamp when unset.
func (s *Store) Record(ctx context.Context, ev *Event) error {
	if ev.ID == "" {
		ev.ID = "aud_" + uuid.New().String()[:12]
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	ctx, span := tracer.Start(ctx, "audit.record",
		trace.WithAttributes(
			attribute.String("audit.id", ev.ID),
			attribute.String("audit.kind", ev.Kind),
		))
	defer span.End()

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshaling audit event: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_events (id, session_id, timestamp, kind, event_json) VALUES (?, ?, ?, ?, ?)`,
		ev.ID, ev.SessionID, ev.Timestamp, ev.Kind, string(data))
	if err != nil {
		return fmt.Errorf("storing audit event: %w", err)
	}
	return nil
}

// Get retrieves an event by id.
func (s *Store) Get(ctx context.Context, id string) (*Event, error) {
	ctx, span := tracer.Start(ctx, "audit.get")
	defer span.End()

	var data string
	err := s.db.QueryRowContext(ctx, `SELECT event_json FROM audit_events WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying audit event: %w", err)
	}

	var ev Event
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		return nil, fmt.Errorf("unmarshaling audit event: %w", err)
	}
	return &ev, nil
}

// List returns events newest first. An empty sessionID lists all sessions;
// limit <= 0 means no limit.
func (s *Store) List(ctx context.Context, sessionID string, limit int) ([]Event, error) {
	ctx, span := tracer.Start(ctx, "audit.list")
	defer span.End()

	query := `SELECT event_json FROM audit_events WHERE 1=1`
	args := []interface{}{}
	if sessionID != "" {
		query += ` AND session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY timestamp DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			continue
		}
		var ev Event
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			continue
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
