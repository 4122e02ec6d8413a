// Package conversation persists story sessions as ordered turn logs and
// selects the slice of history that is replayed to the model.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/cloud-shuttle/quill/pkg/types"
)

var (
	// ErrSessionNotFound is returned when nothing is stored at a location
	ErrSessionNotFound = errors.New("session not found")

	// ErrCorruptSession is returned when a stored record cannot be decoded
	// under PolicyStrict
	ErrCorruptSession = errors.New("corrupt session")
)

// Store reads and writes complete sessions.
//
// Load returns turns in conversational order. Save replaces whatever was
// stored at location with turns; it is not atomic with respect to a crash.
type Store interface {
	Load(ctx context.Context, location string) ([]types.Turn, error)
	Save(ctx context.Context, location string, turns []types.Turn) error
}

// Policy controls how malformed records are handled on load
type Policy string

const (
	// PolicyStrict fails the whole load on the first malformed record
	PolicyStrict Policy = "strict"
	// PolicyLenient skips malformed records and keeps the rest
	PolicyLenient Policy = "lenient"
)

// ParsePolicy parses a policy name; the empty string means strict
func ParsePolicy(name string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", string(PolicyStrict):
		return PolicyStrict, nil
	case string(PolicyLenient):
		return PolicyLenient, nil
	default:
		return "", fmt.Errorf("unknown session policy: %q", name)
	}
}

// RecordError describes a malformed record. Record is 1-based: the line
// number for JSONL, the item index for CBOR, the sequence for SQLite.
type RecordError struct {
	Record int
	Err    error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %d: %v", e.Record, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// Options configures the store returned by Open
type Options struct {
	Policy      Policy
	Compression CompressionType
	Logger      *slog.Logger
}

// Open returns the store backend for location. SQLite databases are
// recognised by extension; every other path is a flat file whose codec is
// also picked by extension.
func Open(location string, opts Options) (Store, error) {
	if opts.Policy == "" {
		opts.Policy = PolicyStrict
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if IsSQLiteLocation(location) {
		compressor, err := NewCompressor(opts.Compression)
		if err != nil {
			return nil, err
		}
		s := NewSQLiteStore(opts.Policy, opts.Logger)
		s.SetCompressor(compressor)
		return s, nil
	}

	return NewFileStore(CodecFor(location), opts.Policy, opts.Logger), nil
}

// IsSQLiteLocation reports whether location names a SQLite database
func IsSQLiteLocation(location string) bool {
	switch strings.ToLower(filepath.Ext(location)) {
	case ".db", ".sqlite", ".sqlite3":
		return true
	}
	return false
}

func skipLogger(logger *slog.Logger, location string) func(int, error) {
	return func(record int, err error) {
		logger.Warn("skipping malformed session record",
			"location", location, "record", record, "error", err)
	}
}
