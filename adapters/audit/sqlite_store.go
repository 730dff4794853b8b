package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/veriford/trustcore/core"
	"github.com/veriford/trustcore/ports"
)

// timeLayout keeps the fractional second fixed width. Timestamps are stored
// as UTC text and compared lexicographically in SQL, so the format must not
// trim trailing zeros the way RFC3339Nano does.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore is a durable implementation of the AuditStore interface.
// A monotonic seq column preserves insertion order even when timestamps
// collide.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (or creates) the audit database at the given DSN.
func OpenSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit db: %w", err)
	}
	// SQLite allows one writer at a time; a single pooled connection also
	// keeps :memory: databases from splitting across connections.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLiteStore wraps an existing database handle.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	store := &SQLiteStore{db: db}
	if err := store.ensureSchema(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) ensureSchema() error {
	schema := `
CREATE TABLE IF NOT EXISTS login_events (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  id TEXT NOT NULL UNIQUE,
  timestamp TEXT NOT NULL,
  user_ip TEXT,
  user_agent TEXT,
  email TEXT,
  outcome TEXT NOT NULL,
  assessment_ref TEXT,
  score REAL,
  token_valid INTEGER NOT NULL DEFAULT 0,
  allowed INTEGER NOT NULL DEFAULT 0,
  error_detail TEXT,
  annotated INTEGER NOT NULL DEFAULT 0,
  annotation TEXT,
  annotated_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_login_events_outcome ON login_events(outcome);
CREATE INDEX IF NOT EXISTS idx_login_events_timestamp ON login_events(timestamp);
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create audit schema: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Record appends one event, assigning its identity
func (s *SQLiteStore) Record(ctx context.Context, event *core.LoginEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO login_events
  (id, timestamp, user_ip, user_agent, email, outcome, assessment_ref, score, token_valid, allowed, error_detail)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.Timestamp.UTC().Format(timeLayout),
		event.UserIP,
		event.UserAgent,
		event.Email,
		string(event.Outcome),
		event.AssessmentRef,
		event.Score,
		boolToInt(event.TokenValid),
		boolToInt(event.Allowed),
		event.ErrorDetail,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrAuditUnavailable, err)
	}
	return nil
}

// List returns events matching the filter, in audit order
func (s *SQLiteStore) List(ctx context.Context, filter ports.EventFilter) ([]*core.LoginEvent, error) {
	query := strings.Builder{}
	query.WriteString(`
SELECT id, timestamp, user_ip, user_agent, email, outcome, assessment_ref, score, token_valid, allowed, error_detail, annotated, annotation, annotated_at
FROM login_events WHERE 1=1`)

	var args []any
	if len(filter.Outcomes) > 0 {
		placeholders := make([]string, len(filter.Outcomes))
		for i, o := range filter.Outcomes {
			placeholders[i] = "?"
			args = append(args, string(o))
		}
		query.WriteString(" AND outcome IN (" + strings.Join(placeholders, ", ") + ")")
	}
	if !filter.From.IsZero() {
		query.WriteString(" AND timestamp >= ?")
		args = append(args, filter.From.UTC().Format(timeLayout))
	}
	if !filter.To.IsZero() {
		query.WriteString(" AND timestamp <= ?")
		args = append(args, filter.To.UTC().Format(timeLayout))
	}
	query.WriteString(" ORDER BY seq ASC")
	if filter.Limit > 0 {
		query.WriteString(" LIMIT ?")
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list login events: %w", err)
	}
	defer rows.Close()

	var events []*core.LoginEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func scanEvent(rows *sql.Rows) (*core.LoginEvent, error) {
	var (
		e                   core.LoginEvent
		ts                  string
		outcome             string
		tokenValid, allowed int
		annotated           int
		annotation          sql.NullString
		annotatedAt         sql.NullString
		ip, ua, email       sql.NullString
		assessmentRef, edet sql.NullString
		score               sql.NullFloat64
	)

	if err := rows.Scan(&e.ID, &ts, &ip, &ua, &email, &outcome, &assessmentRef, &score,
		&tokenValid, &allowed, &edet, &annotated, &annotation, &annotatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan login event: %w", err)
	}

	parsed, err := time.Parse(timeLayout, ts)
	if err != nil {
		return nil, fmt.Errorf("failed to parse event timestamp: %w", err)
	}

	e.Timestamp = parsed
	e.UserIP = ip.String
	e.UserAgent = ua.String
	e.Email = email.String
	e.Outcome = core.Outcome(outcome)
	e.AssessmentRef = assessmentRef.String
	e.Score = score.Float64
	e.TokenValid = tokenValid != 0
	e.Allowed = allowed != 0
	e.ErrorDetail = edet.String
	e.Annotated = annotated != 0
	e.Annotation = annotation.String
	if annotatedAt.Valid {
		if t, err := time.Parse(timeLayout, annotatedAt.String); err == nil {
			e.AnnotatedAt = &t
		}
	}
	return &e, nil
}

// Annotate marks an event as reviewed
func (s *SQLiteStore) Annotate(ctx context.Context, eventID, annotation string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
UPDATE login_events SET annotated = 1, annotation = ?, annotated_at = ? WHERE id = ?`,
		annotation, time.Now().UTC().Format(timeLayout), eventID)
	if err != nil {
		return false, fmt.Errorf("failed to annotate login event: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// PotentialFalsePositives returns blocked events whose IP later logged in
// successfully, suggesting the block hit a legitimate user
func (s *SQLiteStore) PotentialFalsePositives(ctx context.Context, since time.Time) ([]*core.LoginEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT b.id, b.timestamp, b.user_ip, b.user_agent, b.email, b.outcome, b.assessment_ref, b.score, b.token_valid, b.allowed, b.error_detail, b.annotated, b.annotation, b.annotated_at
FROM login_events b
WHERE b.outcome IN (?, ?)
  AND b.user_ip != ''
  AND b.timestamp >= ?
  AND EXISTS (
    SELECT 1 FROM login_events a
    WHERE a.allowed = 1 AND a.user_ip = b.user_ip AND a.timestamp > b.timestamp
  )
ORDER BY b.seq ASC`,
		string(core.OutcomeBlockedNoToken),
		string(core.OutcomeBlockedRiskRejected),
		since.UTC().Format(timeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query potential false positives: %w", err)
	}
	defer rows.Close()

	var events []*core.LoginEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// BlockedStats counts events per outcome since the given time
func (s *SQLiteStore) BlockedStats(ctx context.Context, since time.Time) (map[core.Outcome]int, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT outcome, COUNT(*) FROM login_events WHERE timestamp >= ? GROUP BY outcome`,
		since.UTC().Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to query blocked stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[core.Outcome]int)
	for rows.Next() {
		var outcome string
		var count int
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, err
		}
		stats[core.Outcome(outcome)] = count
	}
	return stats, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
