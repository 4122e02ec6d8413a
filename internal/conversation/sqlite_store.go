package conversation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/cloud-shuttle/quill/pkg/types"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	turn_count INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS turns (
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	seq INTEGER NOT NULL,
	role TEXT NOT NULL,
	content BLOB NOT NULL,
	compression TEXT NOT NULL DEFAULT 'none',
	PRIMARY KEY (session_id, seq)
);
`

// SQLiteStore keeps one session per SQLite database file
type SQLiteStore struct {
	policy     Policy
	compressor Compressor
	logger     *slog.Logger
}

// NewSQLiteStore creates a new SQLite-backed session store
func NewSQLiteStore(policy Policy, logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteStore{
		policy:     policy,
		compressor: &NoopCompressor{},
		logger:     logger,
	}
}

// SetCompressor sets the compressor used for new writes
func (s *SQLiteStore) SetCompressor(c Compressor) {
	s.compressor = c
}

func openSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return db, nil
}

// Load reads the most recently updated session in the database
func (s *SQLiteStore) Load(ctx context.Context, location string) ([]types.Turn, error) {
	// sql.Open would create an empty database, so check first
	if _, err := os.Stat(location); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, location)
	} else if err != nil {
		return nil, fmt.Errorf("opening session: %w", err)
	}

	db, err := openSQLite(location)
	if err != nil {
		if isNotADatabase(err) && s.policy == PolicyStrict {
			return nil, fmt.Errorf("%w: %s is not a SQLite database", ErrCorruptSession, location)
		}
		return nil, err
	}
	defer db.Close()

	sessionID, err := latestSessionID(ctx, db)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, location)
	}
	if err != nil {
		return nil, fmt.Errorf("getting session: %w", err)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT seq, role, content, compression
		FROM turns
		WHERE session_id = ?
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying turns: %w", err)
	}
	defer rows.Close()

	opts := DecodeOptions{Policy: s.policy, OnSkip: skipLogger(s.logger, location)}
	var turns []types.Turn
	for rows.Next() {
		var seq int
		var role, compression string
		var content []byte
		if err := rows.Scan(&seq, &role, &content, &compression); err != nil {
			return nil, fmt.Errorf("scanning turn row: %w", err)
		}

		turn, err := s.decodeRow(role, content, compression)
		if err != nil {
			if stop := opts.reject(seq, err); stop != nil {
				return nil, fmt.Errorf("loading sqlite session %s: %w", location, stop)
			}
			continue
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating turns: %w", err)
	}

	return turns, nil
}

func (s *SQLiteStore) decodeRow(role string, content []byte, compression string) (types.Turn, error) {
	c, err := NewCompressor(CompressionType(compression))
	if err != nil {
		return types.Turn{}, err
	}
	data, err := c.Decompress(content)
	if err != nil {
		return types.Turn{}, fmt.Errorf("decompressing turn content: %w", err)
	}
	turn := types.Turn{Role: types.Role(role), Content: string(data)}
	if err := turn.Validate(); err != nil {
		return types.Turn{}, err
	}
	return turn, nil
}

// Save replaces the stored turns in a single transaction
func (s *SQLiteStore) Save(ctx context.Context, location string, turns []types.Turn) error {
	for i, turn := range turns {
		if err := turn.Validate(); err != nil {
			return fmt.Errorf("turn %d: %w", i+1, err)
		}
	}

	if dir := filepath.Dir(location); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating session directory: %w", err)
		}
	}

	db, err := openSQLite(location)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	sessionID, err := latestSessionID(ctx, tx)
	if errors.Is(err, sql.ErrNoRows) {
		sessionID = generateSessionID()
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sessions (id, created_at, updated_at, turn_count) VALUES (?, ?, ?, 0)
		`, sessionID, now, now); err != nil {
			return fmt.Errorf("creating session: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("getting session: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM turns WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("clearing turns: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO turns (session_id, seq, role, content, compression) VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, turn := range turns {
		content, compression := s.encodeContent(turn.Content)
		if _, err := stmt.ExecContext(ctx, sessionID, i+1, string(turn.Role), content, string(compression)); err != nil {
			return fmt.Errorf("inserting turn %d: %w", i+1, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE sessions SET updated_at = ?, turn_count = ? WHERE id = ?
	`, now, len(turns), sessionID); err != nil {
		return fmt.Errorf("updating session metadata: %w", err)
	}

	return tx.Commit()
}

// encodeContent compresses large content when that makes it smaller
func (s *SQLiteStore) encodeContent(content string) ([]byte, CompressionType) {
	raw := []byte(content)
	if s.compressor == nil || s.compressor.Type() == CompressionNone || len(raw) <= compressionThreshold {
		return raw, CompressionNone
	}
	compressed, err := s.compressor.Compress(raw)
	if err != nil || len(compressed) >= len(raw) {
		return raw, CompressionNone
	}
	return compressed, s.compressor.Type()
}

func isNotADatabase(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrNotADB
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func latestSessionID(ctx context.Context, q queryRower) (string, error) {
	var id string
	err := q.QueryRowContext(ctx, `
		SELECT id FROM sessions ORDER BY updated_at DESC, created_at DESC LIMIT 1
	`).Scan(&id)
	return id, err
}

func generateSessionID() string {
	return fmt.Sprintf("sess_%s", uuid.New().String())
}
