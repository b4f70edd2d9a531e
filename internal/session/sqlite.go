package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/samsaffron/wazuh-chat/internal/config"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	cfg config.SessionsConfig
}

// Schema for the sessions database.
const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    number INTEGER,
    title TEXT,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    archived BOOLEAN DEFAULT FALSE,
    status TEXT DEFAULT 'active'
);

CREATE TABLE IF NOT EXISTS messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    role TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
    content TEXT NOT NULL,
    components TEXT,
    tool_calls_made INTEGER DEFAULT 0,
    processing_ms INTEGER DEFAULT 0,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    sequence INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_updated_at ON sessions(updated_at DESC);
CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_number ON sessions(number);
CREATE UNIQUE INDEX IF NOT EXISTS idx_messages_session_sequence ON messages(session_id, sequence);

-- Metadata table for current session tracking
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT
);

-- Full-text search on message content
CREATE VIRTUAL TABLE IF NOT EXISTS messages_fts USING fts5(
    content,
    content='messages',
    content_rowid='id'
);

-- Triggers to keep FTS in sync
CREATE TRIGGER IF NOT EXISTS messages_ai AFTER INSERT ON messages BEGIN
    INSERT INTO messages_fts(rowid, content) VALUES (new.id, new.content);
END;

CREATE TRIGGER IF NOT EXISTS messages_ad AFTER DELETE ON messages BEGIN
    INSERT INTO messages_fts(messages_fts, rowid, content) VALUES ('delete', old.id, old.content);
END;

CREATE TRIGGER IF NOT EXISTS messages_au AFTER UPDATE ON messages BEGIN
    INSERT INTO messages_fts(messages_fts, rowid, content) VALUES ('delete', old.id, old.content);
    INSERT INTO messages_fts(rowid, content) VALUES (new.id, new.content);
END;
`

// NewSQLiteStore opens (creating if needed) the sessions database.
func NewSQLiteStore(cfg config.SessionsConfig) (*SQLiteStore, error) {
	dbPath, err := DBPath(cfg)
	if err != nil {
		return nil, fmt.Errorf("get db path: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_time_format=sqlite")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, cfg: cfg}, nil
}

// schemaVersion is the current schema version.
// Fresh databases get the full schema and start here; older ones migrate.
const schemaVersion = 2

type migration struct {
	version     int
	description string
	up          func(db *sql.DB) error
}

// migrations upgrade databases created before a schema change. The
// schema const always holds the full current schema.
var migrations = []migration{
	{
		version:     1,
		description: "add reply metadata columns (components, tool_calls_made, processing_ms)",
		up: func(db *sql.DB) error {
			alterStatements := []string{
				"ALTER TABLE messages ADD COLUMN components TEXT",
				"ALTER TABLE messages ADD COLUMN tool_calls_made INTEGER DEFAULT 0",
				"ALTER TABLE messages ADD COLUMN processing_ms INTEGER DEFAULT 0",
			}
			for _, stmt := range alterStatements {
				if _, err := db.Exec(stmt); err != nil {
					if !isDuplicateColumnError(err) {
						return err
					}
				}
			}
			return nil
		},
	},
	{
		version:     2,
		description: "number sessions sequentially",
		up: func(db *sql.DB) error {
			if _, err := db.Exec("ALTER TABLE sessions ADD COLUMN number INTEGER"); err != nil && !isDuplicateColumnError(err) {
				return err
			}
			// Backfill in creation order.
			_, err := db.Exec(`
				UPDATE sessions SET number = (
					SELECT COUNT(*) FROM sessions s2
					WHERE s2.created_at < sessions.created_at
					   OR (s2.created_at = sessions.created_at AND s2.id <= sessions.id)
				) WHERE number IS NULL`)
			if err != nil {
				return fmt.Errorf("backfill session numbers: %w", err)
			}
			_, err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_number ON sessions(number)`)
			return err
		},
	},
}

// initSchema initializes the database schema and runs any pending migrations.
func initSchema(db *sql.DB) error {
	var currentVersion int
	err := db.QueryRow("SELECT version FROM schema_version").Scan(&currentVersion)
	if err == nil && currentVersion >= schemaVersion {
		return nil
	}
	return initSchemaFull(db, err, currentVersion)
}

func initSchemaFull(db *sql.DB, versionErr error, currentVersion int) error {
	// Pre-migration databases lack columns the base schema indexes, so
	// detect them before running it.
	var tableCount int
	if err := db.QueryRow(`
		SELECT COUNT(*) FROM sqlite_master
		WHERE type='table' AND name='sessions'
	`).Scan(&tableCount); err != nil {
		return fmt.Errorf("check sessions table: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	if versionErr != nil {
		if !errors.Is(versionErr, sql.ErrNoRows) && !strings.Contains(versionErr.Error(), "no such table") {
			return fmt.Errorf("get current version: %w", versionErr)
		}
		if tableCount > 0 {
			currentVersion = 0
		} else {
			currentVersion = schemaVersion
		}
		if _, err := db.Exec("INSERT INTO schema_version (version) VALUES (?)", currentVersion); err != nil {
			return fmt.Errorf("insert initial version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if err := m.up(db); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.description, err)
		}
		if _, err := db.Exec("UPDATE schema_version SET version = ?", m.version); err != nil {
			return fmt.Errorf("update version to %d: %w", m.version, err)
		}
	}

	// IF NOT EXISTS throughout, so this only fills in what is missing.
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create base schema: %w", err)
	}
	return nil
}

// isDuplicateColumnError checks if an error is due to a column already existing.
func isDuplicateColumnError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "duplicate column") ||
		strings.Contains(errStr, "already exists")
}

// CleanupExpired applies the retention settings: sessions idle longer than
// timeout_minutes or older than max_age_days are removed, then only the
// newest max_count remain. Archived sessions are kept.
func (s *SQLiteStore) CleanupExpired(ctx context.Context, now time.Time) (int, error) {
	var removed int64

	if s.cfg.TimeoutMinutes > 0 {
		cutoff := now.Add(-time.Duration(s.cfg.TimeoutMinutes) * time.Minute)
		n, err := s.exec(ctx,
			"DELETE FROM sessions WHERE updated_at < ? AND archived = FALSE",
			cutoff.UTC())
		if err != nil {
			return int(removed), fmt.Errorf("delete idle sessions: %w", err)
		}
		removed += n
	}

	if s.cfg.MaxAgeDays > 0 {
		cutoff := now.AddDate(0, 0, -s.cfg.MaxAgeDays)
		n, err := s.exec(ctx,
			"DELETE FROM sessions WHERE updated_at < ? AND archived = FALSE",
			cutoff.UTC())
		if err != nil {
			return int(removed), fmt.Errorf("delete old sessions: %w", err)
		}
		removed += n
	}

	if s.cfg.MaxCount > 0 {
		n, err := s.exec(ctx, `
			DELETE FROM sessions WHERE id IN (
				SELECT id FROM sessions
				WHERE archived = FALSE
				ORDER BY updated_at DESC
				LIMIT -1 OFFSET ?
			)`, s.cfg.MaxCount)
		if err != nil {
			return int(removed), fmt.Errorf("enforce max count: %w", err)
		}
		removed += n
	}

	return int(removed), nil
}

func (s *SQLiteStore) exec(ctx context.Context, query string, args ...any) (int64, error) {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Create inserts a new session and assigns the next session number.
func (s *SQLiteStore) Create(ctx context.Context, sess *Session) error {
	if sess.ID == "" {
		sess.ID = NewID()
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now()
	}
	if sess.UpdatedAt.IsZero() {
		sess.UpdatedAt = sess.CreatedAt
	}
	if sess.Status == "" {
		sess.Status = StatusActive
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var maxNum sql.NullInt64
	if err := tx.QueryRowContext(ctx, "SELECT MAX(number) FROM sessions").Scan(&maxNum); err != nil {
		return fmt.Errorf("get max session number: %w", err)
	}
	sess.Number = maxNum.Int64 + 1

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (id, number, title, created_at, updated_at, archived, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Number, nullString(sess.Title),
		sess.CreatedAt.UTC(), sess.UpdatedAt.UTC(), sess.Archived, string(sess.Status))
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return tx.Commit()
}

const sessionColumns = `
	s.id, COALESCE(s.number, 0), COALESCE(s.title, ''), s.created_at, s.updated_at,
	s.archived, COALESCE(s.status, 'active'),
	(SELECT COUNT(*) FROM messages WHERE session_id = s.id)`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var sess Session
	var status string
	err := row.Scan(&sess.ID, &sess.Number, &sess.Title, &sess.CreatedAt, &sess.UpdatedAt,
		&sess.Archived, &status, &sess.MessageCount)
	if err != nil {
		return nil, err
	}
	sess.Status = SessionStatus(status)
	return &sess, nil
}

// Get retrieves a session by ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Session, error) {
	return s.getWhere(ctx, "s.id = ?", id)
}

// GetByNumber retrieves a session by its sequential number.
func (s *SQLiteStore) GetByNumber(ctx context.Context, number int64) (*Session, error) {
	return s.getWhere(ctx, "s.number = ?", number)
}

func (s *SQLiteStore) getWhere(ctx context.Context, where string, arg any) (*Session, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+sessionColumns+" FROM sessions s WHERE "+where, arg)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	return sess, nil
}

// Update modifies an existing session.
func (s *SQLiteStore) Update(ctx context.Context, sess *Session) error {
	sess.UpdatedAt = time.Now()
	n, err := s.exec(ctx, `
		UPDATE sessions SET title = ?, updated_at = ?, archived = ?, status = ?
		WHERE id = ?`,
		nullString(sess.Title), sess.UpdatedAt.UTC(), sess.Archived, string(sess.Status), sess.ID)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, sess.ID)
	}
	return nil
}

// Delete removes a session and its messages.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	// Foreign key cascade handles messages
	n, err := s.exec(ctx, "DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// List returns sessions matching the options, most recently active first.
// A negative limit returns every match.
func (s *SQLiteStore) List(ctx context.Context, opts ListOptions) ([]Session, error) {
	query := "SELECT " + sessionColumns + " FROM sessions s WHERE 1=1"
	args := []any{}

	if q := strings.TrimSpace(opts.Query); q != "" {
		query += ` AND LOWER(COALESCE(s.title, '')) LIKE '%' || ? || '%' ESCAPE '\'`
		args = append(args, escapeLike(strings.ToLower(q)))
	}
	if !opts.Archived {
		query += " AND s.archived = FALSE"
	}

	query += " ORDER BY s.updated_at DESC, s.number DESC"

	limit := opts.Limit
	if limit == 0 {
		limit = 50
	}
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
		if opts.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", opts.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var results []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		results = append(results, *sess)
	}
	return results, rows.Err()
}

// Search finds messages containing every query term using FTS5.
func (s *SQLiteStore) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT m.session_id, COALESCE(s.number, 0), m.id, COALESCE(s.title, ''),
		       snippet(messages_fts, 0, '**', '**', '...', 32), m.role, m.created_at
		FROM messages_fts f
		JOIN messages m ON m.id = f.rowid
		JOIN sessions s ON s.id = m.session_id
		WHERE messages_fts MATCH ?
		ORDER BY rank
		LIMIT ?`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("search messages: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		var role string
		err := rows.Scan(&r.SessionID, &r.SessionNumber, &r.MessageID, &r.Title,
			&r.Snippet, &role, &r.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		r.Role = Role(role)
		results = append(results, r)
	}
	return results, rows.Err()
}

// ftsQuery quotes each term so user input is never parsed as FTS syntax.
func ftsQuery(q string) string {
	terms := strings.Fields(q)
	for i, t := range terms {
		terms[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(terms, " ")
}

// AddMessage appends a message to a session. If msg.Sequence < 0 the
// sequence number is allocated atomically. The first user message names an
// untitled session, and history beyond max_messages exchanges is trimmed.
func (s *SQLiteStore) AddMessage(ctx context.Context, sessionID string, msg *Message) error {
	msg.SessionID = sessionID
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	componentsJSON, err := msg.ComponentsJSON()
	if err != nil {
		return fmt.Errorf("serialize components: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var title sql.NullString
	err = tx.QueryRowContext(ctx, "SELECT title FROM sessions WHERE id = ?", sessionID).Scan(&title)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}

	if msg.Sequence < 0 {
		var maxSeq sql.NullInt64
		err = tx.QueryRowContext(ctx,
			`SELECT MAX(sequence) FROM messages WHERE session_id = ?`,
			sessionID).Scan(&maxSeq)
		if err != nil {
			return fmt.Errorf("get max sequence: %w", err)
		}
		if maxSeq.Valid {
			msg.Sequence = int(maxSeq.Int64) + 1
		} else {
			msg.Sequence = 0
		}
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO messages (session_id, role, content, components, tool_calls_made, processing_ms, created_at, sequence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, string(msg.Role), msg.Content, nullString(componentsJSON),
		msg.ToolCallsMade, msg.ProcessingMs, msg.CreatedAt.UTC(), msg.Sequence)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	msg.ID, _ = result.LastInsertId()

	if msg.Role == RoleUser && strings.TrimSpace(title.String) == "" {
		if _, err := tx.ExecContext(ctx, "UPDATE sessions SET title = ? WHERE id = ?",
			TitleFrom(msg.Content), sessionID); err != nil {
			return fmt.Errorf("set session title: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, "UPDATE sessions SET updated_at = ? WHERE id = ?",
		time.Now().UTC(), sessionID); err != nil {
		return fmt.Errorf("update session timestamp: %w", err)
	}

	if keep := s.retained(); keep > 0 {
		_, err := tx.ExecContext(ctx, `
			DELETE FROM messages WHERE session_id = ? AND sequence <= (
				SELECT sequence FROM messages WHERE session_id = ?
				ORDER BY sequence DESC LIMIT 1 OFFSET ?
			)`, sessionID, sessionID, keep)
		if err != nil {
			return fmt.Errorf("trim history: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// retained is the number of messages kept per session; 0 keeps all.
func (s *SQLiteStore) retained() int {
	return s.cfg.MaxMessages * 2
}

const messageColumns = `id, session_id, role, content, COALESCE(components, ''),
	COALESCE(tool_calls_made, 0), COALESCE(processing_ms, 0), created_at, sequence`

func scanMessages(rows *sql.Rows) ([]Message, error) {
	var messages []Message
	for rows.Next() {
		var msg Message
		var role, componentsJSON string
		err := rows.Scan(&msg.ID, &msg.SessionID, &role, &msg.Content, &componentsJSON,
			&msg.ToolCallsMade, &msg.ProcessingMs, &msg.CreatedAt, &msg.Sequence)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Role = Role(role)
		if err := msg.SetComponentsFromJSON(componentsJSON); err != nil {
			return nil, fmt.Errorf("deserialize components: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// GetMessages retrieves messages for a session in sequence order.
func (s *SQLiteStore) GetMessages(ctx context.Context, sessionID string, limit, offset int) ([]Message, error) {
	query := "SELECT " + messageColumns + " FROM messages WHERE session_id = ? ORDER BY sequence ASC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
		if offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", offset)
		}
	} else if offset > 0 {
		query += fmt.Sprintf(" LIMIT -1 OFFSET %d", offset)
	}

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// Context returns the last max_messages exchanges of a session, oldest first.
func (s *SQLiteStore) Context(ctx context.Context, sessionID string) ([]Message, error) {
	keep := s.retained()
	if keep <= 0 {
		return s.GetMessages(ctx, sessionID, 0, 0)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT * FROM (
			SELECT `+messageColumns+` FROM messages
			WHERE session_id = ? ORDER BY sequence DESC LIMIT ?
		) ORDER BY sequence ASC`, sessionID, keep)
	if err != nil {
		return nil, fmt.Errorf("query context: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// SetCurrent marks a session as the current one.
func (s *SQLiteStore) SetCurrent(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO metadata (key, value) VALUES ('current_session', ?)`,
		sessionID)
	return err
}

// GetCurrent retrieves the current session, or nil if none is set or it
// has since been removed.
func (s *SQLiteStore) GetCurrent(ctx context.Context) (*Session, error) {
	var sessionID string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM metadata WHERE key = 'current_session'").Scan(&sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sess, err := s.Get(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return sess, err
}

// ClearCurrent removes the current session marker.
func (s *SQLiteStore) ClearCurrent(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM metadata WHERE key = 'current_session'")
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// nullString converts an empty string to NULL for database storage.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
