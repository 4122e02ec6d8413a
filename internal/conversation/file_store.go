package conversation

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cloud-shuttle/quill/pkg/types"
)

// FileStore keeps one session per file, encoded with a Codec
type FileStore struct {
	codec  Codec
	policy Policy
	logger *slog.Logger
}

// NewFileStore creates a file-backed store
func NewFileStore(codec Codec, policy Policy, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{codec: codec, policy: policy, logger: logger}
}

// Codec returns the codec used by this store
func (s *FileStore) Codec() Codec {
	return s.codec
}

// Load reads the session at location
func (s *FileStore) Load(ctx context.Context, location string) ([]types.Turn, error) {
	f, err := os.Open(location)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, location)
	}
	if err != nil {
		return nil, fmt.Errorf("opening session: %w", err)
	}
	defer f.Close()

	turns, err := s.codec.Decode(bufio.NewReader(f), DecodeOptions{
		Policy: s.policy,
		OnSkip: skipLogger(s.logger, location),
	})
	if err != nil {
		return nil, fmt.Errorf("loading %s session %s: %w", s.codec.Name(), location, err)
	}
	return turns, nil
}

// Save overwrites location with turns, creating parent directories first
func (s *FileStore) Save(ctx context.Context, location string, turns []types.Turn) error {
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

	f, err := os.Create(location)
	if err != nil {
		return fmt.Errorf("creating session file: %w", err)
	}

	w := bufio.NewWriter(f)
	if err := s.codec.Encode(w, turns); err != nil {
		f.Close()
		return fmt.Errorf("writing session: %w", err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flushing session: %w", err)
	}
	return f.Close()
}
