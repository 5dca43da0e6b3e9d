// Package sqlite persists sessions in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"topicrag/internal/domain"
	"topicrag/internal/session/sqlite/migrations"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements domain.SessionStore on SQLite.
type Store struct {
	db   *sql.DB
	path string
}

var _ domain.SessionStore = (*Store)(nil)

// NewStore opens or creates sessions.db in dataDir.
// If dataDir is empty, defaults to ~/.local/share/topicrag.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".local", "share", "topicrag")
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "sessions.db")
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, path: dbPath}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	var upFiles []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			upFiles = append(upFiles, e.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= current {
			continue
		}
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}
	return nil
}

// Save inserts or replaces a session.
func (s *Store) Save(ctx context.Context, sess domain.Session) error {
	if sess.SessionID == "" {
		return fmt.Errorf("%w: empty session id", domain.ErrInvalidInput)
	}
	summaries, err := json.Marshal(sess.VideoSummaries)
	if err != nil {
		return fmt.Errorf("marshalling video summaries: %w", err)
	}
	missing, err := json.Marshal(sess.MissingSources)
	if err != nil {
		return fmt.Errorf("marshalling missing sources: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (session_id, input_method, topic, namespace, chunk_count, vectors_upserted,
			status, summary, source, strategy, video_summaries, missing_sources, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			input_method = excluded.input_method,
			topic = excluded.topic,
			namespace = excluded.namespace,
			chunk_count = excluded.chunk_count,
			vectors_upserted = excluded.vectors_upserted,
			status = excluded.status,
			summary = excluded.summary,
			source = excluded.source,
			strategy = excluded.strategy,
			video_summaries = excluded.video_summaries,
			missing_sources = excluded.missing_sources,
			updated_at = excluded.updated_at
	`,
		sess.SessionID, string(sess.InputMethod), sess.Topic, sess.Namespace, sess.ChunkCount, sess.VectorsUpserted,
		string(sess.Status), sess.Summary, sess.Source, sess.Strategy, string(summaries), string(missing),
		formatTime(sess.CreatedAt), formatTime(sess.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("saving session %s: %w", sess.SessionID, err)
	}
	return nil
}

const selectColumns = `SELECT session_id, input_method, topic, namespace, chunk_count, vectors_upserted,
	status, summary, source, strategy, video_summaries, missing_sources, created_at, updated_at FROM sessions`

// Get returns domain.ErrNotFound when the session does not exist.
func (s *Store) Get(ctx context.Context, id string) (domain.Session, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" WHERE session_id = ?", id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Session{}, fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("getting session %s: %w", id, err)
	}
	return sess, nil
}

// List returns up to limit sessions, newest first. limit <= 0 means all.
func (s *Store) List(ctx context.Context, limit int) ([]domain.Session, error) {
	query := selectColumns + " ORDER BY created_at DESC, session_id DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []domain.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// Delete removes a session. Its vectors are left in the index.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE session_id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(r scanner) (domain.Session, error) {
	var (
		sess                 domain.Session
		method, status       string
		summaries, missing   string
		createdAt, updatedAt string
	)
	err := r.Scan(&sess.SessionID, &method, &sess.Topic, &sess.Namespace, &sess.ChunkCount, &sess.VectorsUpserted,
		&status, &sess.Summary, &sess.Source, &sess.Strategy, &summaries, &missing, &createdAt, &updatedAt)
	if err != nil {
		return domain.Session{}, err
	}
	sess.InputMethod = domain.InputMethod(method)
	sess.Status = domain.SessionStatus(status)
	if err := json.Unmarshal([]byte(summaries), &sess.VideoSummaries); err != nil {
		return domain.Session{}, fmt.Errorf("unmarshalling video summaries: %w", err)
	}
	if err := json.Unmarshal([]byte(missing), &sess.MissingSources); err != nil {
		return domain.Session{}, fmt.Errorf("unmarshalling missing sources: %w", err)
	}
	if sess.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return domain.Session{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if sess.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return domain.Session{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return sess, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
