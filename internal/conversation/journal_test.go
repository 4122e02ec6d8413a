package conversation

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cloud-shuttle/quill/pkg/logger"
	"github.com/cloud-shuttle/quill/pkg/types"
)

type failingStore struct {
	loadErr error
	saveErr error
}

func (s *failingStore) Load(ctx context.Context, location string) ([]types.Turn, error) {
	return nil, s.loadErr
}

func (s *failingStore) Save(ctx context.Context, location string, turns []types.Turn) error {
	return s.saveErr
}

func TestJournalLoad(t *testing.T) {
	tests := []struct {
		name    string
		loadErr error
		wantErr bool
	}{
		{"not found", ErrSessionNotFound, false},
		{"permission denied", os.ErrPermission, false},
		{"record error outside strict mode", &RecordError{Record: 3, Err: errors.New("bad json")}, false},
		{"strict corrupt", errors.Join(ErrCorruptSession, errors.New("record 3")), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := NewJournal(&failingStore{loadErr: tt.loadErr}, "session.jsonl", logger.Discard())
			turns, err := j.Load(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrCorruptSession) {
				t.Errorf("Load() error = %v, want ErrCorruptSession", err)
			}
			if len(turns) != 0 {
				t.Errorf("Load() returned %d turns, want none", len(turns))
			}
		})
	}
}

func TestJournalSaveFailureIsDropped(t *testing.T) {
	j := NewJournal(&failingStore{saveErr: errors.New("disk full")}, "session.jsonl", logger.Discard())
	if j.Save(context.Background(), []types.Turn{types.UserTurn("hi")}) {
		t.Fatal("Save() reported success for a failing store")
	}
}

func TestJournalSaveToUnwritableLocation(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	// parent path is a regular file, so MkdirAll fails
	location := filepath.Join(blocker, "session.jsonl")
	store, err := Open(location, Options{Logger: logger.Discard()})
	if err != nil {
		t.Fatal(err)
	}
	j := NewJournal(store, location, logger.Discard())
	if j.Save(context.Background(), []types.Turn{types.UserTurn("hi")}) {
		t.Fatal("Save() reported success")
	}
}

func TestJournalSurfacesCorruptFile(t *testing.T) {
	location := filepath.Join(t.TempDir(), "session.jsonl")
	if err := os.WriteFile(location, []byte("{not json}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	strict, _ := Open(location, Options{Policy: PolicyStrict, Logger: logger.Discard()})
	if _, err := NewJournal(strict, location, logger.Discard()).Load(context.Background()); !errors.Is(err, ErrCorruptSession) {
		t.Fatalf("strict Load() error = %v, want ErrCorruptSession", err)
	}

	lenient, _ := Open(location, Options{Policy: PolicyLenient, Logger: logger.Discard()})
	turns, err := NewJournal(lenient, location, logger.Discard()).Load(context.Background())
	if err != nil {
		t.Fatalf("lenient Load() error = %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("lenient Load() = %v, want empty", turns)
	}
}

func TestJournalRoundTrip(t *testing.T) {
	ctx := context.Background()
	location := filepath.Join(t.TempDir(), ".quill", "session.jsonl")
	store, err := Open(location, Options{Logger: logger.Discard()})
	if err != nil {
		t.Fatal(err)
	}
	j := NewJournal(store, location, logger.Discard())

	turns, err := j.Load(ctx)
	if err != nil || len(turns) != 0 {
		t.Fatalf("first Load() = %v, %v; want empty, nil", turns, err)
	}

	turns = append(turns, types.UserTurn("Begin."), types.AssistantTurn("It began."))
	if !j.Save(ctx, turns) {
		t.Fatal("Save() failed")
	}

	loaded, err := j.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	assertTurnsEqual(t, loaded, turns)
	if j.Location() != location {
		t.Errorf("Location() = %q, want %q", j.Location(), location)
	}
}
