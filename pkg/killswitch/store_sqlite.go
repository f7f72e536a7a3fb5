package killswitch

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the breaker record in a single-row table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore migrates the schema and seeds the one row.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenSQLiteStore opens (or creates) the database at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	return NewSQLiteStore(db)
}

func (s *SQLiteStore) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS kill_switch (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		frozen INTEGER NOT NULL DEFAULT 0,
		reason TEXT NOT NULL DEFAULT '',
		triggered_by TEXT NOT NULL DEFAULT '',
		triggered_at INTEGER NOT NULL DEFAULT 0,
		expires_at INTEGER,
		last_alert_at INTEGER NOT NULL DEFAULT 0,
		alert_sent INTEGER NOT NULL DEFAULT 0
	);
	INSERT OR IGNORE INTO kill_switch (id) VALUES (1);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

// Load reads the record.
func (s *SQLiteStore) Load(ctx context.Context) (State, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT frozen, reason, triggered_by, triggered_at, expires_at, last_alert_at, alert_sent
		FROM kill_switch WHERE id = 1`)

	var (
		state       State
		frozen      int
		alertSent   int
		triggeredAt int64
		lastAlertAt int64
		expiresAt   sql.NullInt64
	)
	if err := row.Scan(&frozen, &state.Reason, &state.TriggeredBy, &triggeredAt, &expiresAt, &lastAlertAt, &alertSent); err != nil {
		return State{}, err
	}

	state.Frozen = frozen != 0
	state.AlertSent = alertSent != 0
	if triggeredAt > 0 {
		state.TriggeredAt = time.UnixMilli(triggeredAt)
	}
	if lastAlertAt > 0 {
		state.LastAlertAt = time.UnixMilli(lastAlertAt)
	}
	if expiresAt.Valid {
		t := time.UnixMilli(expiresAt.Int64)
		state.ExpiresAt = &t
	}
	return state, nil
}

// Save rewrites the record whole.
func (s *SQLiteStore) Save(ctx context.Context, state State) error {
	var expiresAt sql.NullInt64
	if state.ExpiresAt != nil {
		expiresAt = sql.NullInt64{Int64: state.ExpiresAt.UnixMilli(), Valid: true}
	}
	var triggeredAt, lastAlertAt int64
	if !state.TriggeredAt.IsZero() {
		triggeredAt = state.TriggeredAt.UnixMilli()
	}
	if !state.LastAlertAt.IsZero() {
		lastAlertAt = state.LastAlertAt.UnixMilli()
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE kill_switch
		SET frozen = ?, reason = ?, triggered_by = ?, triggered_at = ?,
		    expires_at = ?, last_alert_at = ?, alert_sent = ?
		WHERE id = 1`,
		boolToInt(state.Frozen), state.Reason, state.TriggeredBy, triggeredAt,
		expiresAt, lastAlertAt, boolToInt(state.AlertSent))
	return err
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
