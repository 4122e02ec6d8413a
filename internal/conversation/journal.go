package conversation

import (
	"context"
	"errors"
	"log/slog"

	"github.com/cloud-shuttle/quill/pkg/types"
)

// Journal binds a Store to one session location and absorbs I/O failures:
// a missing or unreadable session loads as empty history and a failed save
// is logged and dropped. Only a corrupt session under PolicyStrict is
// surfaced, so the caller can stop before overwriting it.
type Journal struct {
	store    Store
	location string
	logger   *slog.Logger
}

// NewJournal creates a journal for location
func NewJournal(store Store, location string, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{store: store, location: location, logger: logger}
}

// Location returns the storage location of the session
func (j *Journal) Location() string {
	return j.location
}

// Load returns the stored turns. The only error it returns wraps
// ErrCorruptSession.
func (j *Journal) Load(ctx context.Context) ([]types.Turn, error) {
	turns, err := j.store.Load(ctx, j.location)
	switch {
	case err == nil:
		j.logger.Debug("session loaded", "location", j.location, "turns", len(turns))
		return turns, nil
	case errors.Is(err, ErrCorruptSession):
		return nil, err
	case errors.Is(err, ErrSessionNotFound):
		j.logger.Debug("no stored session, starting empty", "location", j.location)
		return nil, nil
	default:
		j.logger.Debug("session unreadable, starting empty", "location", j.location, "error", err)
		return nil, nil
	}
}

// Save writes turns and reports whether the write succeeded
func (j *Journal) Save(ctx context.Context, turns []types.Turn) bool {
	if err := j.store.Save(ctx, j.location, turns); err != nil {
		j.logger.Debug("session save failed", "location", j.location, "error", err)
		return false
	}
	j.logger.Debug("session saved", "location", j.location, "turns", len(turns))
	return true
}
