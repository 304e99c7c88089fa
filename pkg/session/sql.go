package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/veraxis/scout/pkg/config"
	"github.com/veraxis/scout/pkg/model"
	"github.com/veraxis/scout/pkg/utils"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// ============================================================================
// SQL STORE
// ============================================================================

const (
	dialectSQLite   = "sqlite"
	dialectPostgres = "postgres"
	dialectMySQL    = "mysql"
)

// SQLStore persists sessions in a relational database. Messages are
// rows with monotonically increasing sequence numbers and a JSON
// payload carrying the full message (chain and invocations included).
type SQLStore struct {
	db      *sql.DB
	dialect string
}

// NewSQLStore wraps an open database connection.
func NewSQLStore(db *sql.DB, dialect string) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	switch dialect {
	case dialectSQLite, dialectPostgres, dialectMySQL:
	default:
		return nil, fmt.Errorf("unsupported sql dialect: %s (supported: sqlite, postgres, mysql)", dialect)
	}

	s := &SQLStore{db: db, dialect: dialect}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize session schema: %w", err)
	}
	return s, nil
}

// NewSQLStoreFromConfig opens the configured database and initializes
// the schema.
func NewSQLStoreFromConfig(cfg config.SessionSQLConfig) (*SQLStore, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session store configuration: %w", err)
	}

	driverName := cfg.Driver
	if driverName == dialectSQLite {
		driverName = "sqlite3"
		if err := utils.EnsureParentDir(cfg.Path); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open(driverName, cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s session database: %w", cfg.Driver, err)
	}

	return NewSQLStore(db, cfg.Driver)
}

// ============================================================================
// SCHEMA
// ============================================================================

const sessionsTableSQL = `
CREATE TABLE IF NOT EXISTS sessions (
    id VARCHAR(64) PRIMARY KEY,
    user_id VARCHAR(255) NOT NULL,
    topic TEXT NOT NULL,
    status VARCHAR(32) NOT NULL,
    failure_reason TEXT,
    artifacts_json TEXT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
)`

const messagesTableSQLite = `
CREATE TABLE IF NOT EXISTS session_messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id VARCHAR(64) NOT NULL,
    message_id VARCHAR(64) NOT NULL,
    role VARCHAR(16) NOT NULL,
    message_json TEXT NOT NULL,
    sequence_num INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL,
    FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
)`

const messagesTablePostgres = `
CREATE TABLE IF NOT EXISTS session_messages (
    id SERIAL PRIMARY KEY,
    session_id VARCHAR(64) NOT NULL,
    message_id VARCHAR(64) NOT NULL,
    role VARCHAR(16) NOT NULL,
    message_json TEXT NOT NULL,
    sequence_num BIGINT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
)`

// MySQL carries its indexes inline: CREATE INDEX has no IF NOT EXISTS
// there.
const messagesTableMySQL = `
CREATE TABLE IF NOT EXISTS session_messages (
    id BIGINT PRIMARY KEY AUTO_INCREMENT,
    session_id VARCHAR(64) NOT NULL,
    message_id VARCHAR(64) NOT NULL,
    role VARCHAR(16) NOT NULL,
    message_json TEXT NOT NULL,
    sequence_num BIGINT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    INDEX idx_messages_session (session_id),
    INDEX idx_messages_sequence (session_id, sequence_num),
    FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
)`

const sessionsTableMySQL = `
CREATE TABLE IF NOT EXISTS sessions (
    id VARCHAR(64) PRIMARY KEY,
    user_id VARCHAR(255) NOT NULL,
    topic TEXT NOT NULL,
    status VARCHAR(32) NOT NULL,
    failure_reason TEXT,
    artifacts_json TEXT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    INDEX idx_sessions_user_id (user_id),
    INDEX idx_sessions_created_at (created_at)
)`

var indexStatements = []string{
	`CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_created_at ON sessions(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_session ON session_messages(session_id)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_sequence ON session_messages(session_id, sequence_num)`,
}

func (s *SQLStore) schemaStatements() []string {
	switch s.dialect {
	case dialectPostgres:
		return append([]string{sessionsTableSQL, messagesTablePostgres}, indexStatements...)
	case dialectMySQL:
		return []string{sessionsTableMySQL, messagesTableMySQL}
	default:
		return append([]string{sessionsTableSQL, messagesTableSQLite}, indexStatements...)
	}
}

func (s *SQLStore) initSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, stmt := range s.schemaStatements() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $N for postgres.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ============================================================================
// STORE OPERATIONS
// ============================================================================

// Put inserts a new session row.
func (s *SQLStore) Put(ctx context.Context, session *model.ResearchSession) error {
	if session == nil || session.ID == "" {
		return fmt.Errorf("session with an id is required")
	}

	artifacts, err := marshalArtifacts(session.Artifacts)
	if err != nil {
		return err
	}

	query := s.rebind(`
INSERT INTO sessions (id, user_id, topic, status, failure_reason, artifacts_json, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = s.db.ExecContext(ctx, query,
		session.ID, session.UserID, session.Topic, string(session.Status),
		session.FailureReason, artifacts, session.CreatedAt.UTC(), session.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	for i := range session.Messages {
		if err := s.AppendMessage(ctx, session.ID, &session.Messages[i]); err != nil {
			return err
		}
	}
	return nil
}

// Get loads a session and its messages in sequence order.
func (s *SQLStore) Get(ctx context.Context, id string) (*model.ResearchSession, error) {
	query := s.rebind(`
SELECT id, user_id, topic, status, failure_reason, artifacts_json, created_at, updated_at
FROM sessions WHERE id = ?`)

	session, err := s.scanSession(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}

	messagesQuery := s.rebind(`
SELECT message_json FROM session_messages WHERE session_id = ? ORDER BY sequence_num ASC`)
	rows, err := s.db.QueryContext(ctx, messagesQuery, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		var msg model.Message
		if err := json.Unmarshal([]byte(payload), &msg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal message: %w", err)
		}
		session.Messages = append(session.Messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return session, nil
}

// List returns message-free sessions, newest first.
func (s *SQLStore) List(ctx context.Context, userID string) ([]*model.ResearchSession, error) {
	query := `
SELECT id, user_id, topic, status, failure_reason, artifacts_json, created_at, updated_at
FROM sessions`
	args := []any{}
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY created_at DESC, id ASC`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*model.ResearchSession
	for rows.Next() {
		session, err := s.scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}
	return sessions, nil
}

// AppendMessage inserts the message with the next sequence number.
func (s *SQLStore) AppendMessage(ctx context.Context, id string, msg *model.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	existsQuery := s.rebind(`SELECT COUNT(*) FROM sessions WHERE id = ?`)
	if err := tx.QueryRowContext(ctx, existsQuery, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check session: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("session %q: %w", id, ErrNotFound)
	}

	var seq int64
	seqQuery := s.rebind(`SELECT COALESCE(MAX(sequence_num), 0) + 1 FROM session_messages WHERE session_id = ?`)
	if err := tx.QueryRowContext(ctx, seqQuery, id).Scan(&seq); err != nil {
		return fmt.Errorf("failed to get next sequence number: %w", err)
	}

	now := time.Now().UTC()
	insertQuery := s.rebind(`
INSERT INTO session_messages (session_id, message_id, role, message_json, sequence_num, created_at)
VALUES (?, ?, ?, ?, ?, ?)`)
	if _, err := tx.ExecContext(ctx, insertQuery, id, msg.ID, string(msg.Role), string(payload), seq, now); err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	touchQuery := s.rebind(`UPDATE sessions SET updated_at = ? WHERE id = ?`)
	if _, err := tx.ExecContext(ctx, touchQuery, now, id); err != nil {
		return fmt.Errorf("failed to update session timestamp: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit message: %w", err)
	}
	return nil
}

// UpdateStatus sets the lifecycle state and failure reason.
func (s *SQLStore) UpdateStatus(ctx context.Context, id string, status model.SessionStatus, reason string) error {
	query := s.rebind(`UPDATE sessions SET status = ?, failure_reason = ?, updated_at = ? WHERE id = ?`)
	result, err := s.db.ExecContext(ctx, query, string(status), reason, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update session status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("session %q: %w", id, ErrNotFound)
	}
	return nil
}

// AddArtifact appends to the session's artifact list.
func (s *SQLStore) AddArtifact(ctx context.Context, id string, artifact model.Artifact) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var raw sql.NullString
	selectQuery := s.rebind(`SELECT artifacts_json FROM sessions WHERE id = ?`)
	if err := tx.QueryRowContext(ctx, selectQuery, id).Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("session %q: %w", id, ErrNotFound)
		}
		return fmt.Errorf("failed to read artifacts: %w", err)
	}

	var artifacts []model.Artifact
	if raw.Valid && raw.String != "" {
		if err := json.Unmarshal([]byte(raw.String), &artifacts); err != nil {
			return fmt.Errorf("failed to unmarshal artifacts: %w", err)
		}
	}
	artifacts = append(artifacts, artifact)

	payload, err := marshalArtifacts(artifacts)
	if err != nil {
		return err
	}

	updateQuery := s.rebind(`UPDATE sessions SET artifacts_json = ?, updated_at = ? WHERE id = ?`)
	if _, err := tx.ExecContext(ctx, updateQuery, payload, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("failed to update artifacts: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit artifact: %w", err)
	}
	return nil
}

// Delete removes the session and its messages.
func (s *SQLStore) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	messagesQuery := s.rebind(`DELETE FROM session_messages WHERE session_id = ?`)
	if _, err := tx.ExecContext(ctx, messagesQuery, id); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}

	sessionQuery := s.rebind(`DELETE FROM sessions WHERE id = ?`)
	result, err := tx.ExecContext(ctx, sessionQuery, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("session %q: %w", id, ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// ============================================================================
// HELPERS
// ============================================================================

// scanner covers both sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func (s *SQLStore) scanSession(row scanner) (*model.ResearchSession, error) {
	var (
		session       model.ResearchSession
		status        string
		failureReason sql.NullString
		artifacts     sql.NullString
	)
	err := row.Scan(&session.ID, &session.UserID, &session.Topic, &status,
		&failureReason, &artifacts, &session.CreatedAt, &session.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	session.Status = model.SessionStatus(status)
	session.FailureReason = failureReason.String
	if artifacts.Valid && artifacts.String != "" {
		if err := json.Unmarshal([]byte(artifacts.String), &session.Artifacts); err != nil {
			return nil, fmt.Errorf("failed to unmarshal artifacts: %w", err)
		}
	}
	return &session, nil
}

func marshalArtifacts(artifacts []model.Artifact) (string, error) {
	if len(artifacts) == 0 {
		return "[]", nil
	}
	payload, err := json.Marshal(artifacts)
	if err != nil {
		return "", fmt.Errorf("failed to marshal artifacts: %w", err)
	}
	return string(payload), nil
}

var _ Store = (*SQLStore)(nil)
