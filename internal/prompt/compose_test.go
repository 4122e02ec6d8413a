package prompt

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestParseSections(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		wantModel string
		wantCtx   string
		wantInst  string
		wantErr   bool
	}{
		{"instruct only", []string{"m", "instruct", "write"}, "m", "", "write", false},
		{"context only", []string{"m", "context", "a world"}, "m", "a world", "", false},
		{"both", []string{"m", "context", "c", "instruct", "i"}, "m", "c", "i", false},
		{"reversed order", []string{"m", "instruct", "i", "context", "c"}, "m", "c", "i", false},
		{"keyword case", []string{"m", "INSTRUCT", "i"}, "m", "", "i", false},
		{"no model", nil, "", "", "", true},
		{"no sections", []string{"m"}, "", "", "", true},
		{"missing value", []string{"m", "context"}, "", "", "", true},
		{"unknown keyword", []string{"m", "style", "noir"}, "", "", "", true},
		{"duplicate", []string{"m", "context", "a", "context", "b"}, "", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model, s, err := ParseSections(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSections() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrUsage) {
					t.Errorf("error = %v, want ErrUsage", err)
				}
				return
			}
			if model != tt.wantModel || s.Context != tt.wantCtx || s.Instruction != tt.wantInst {
				t.Errorf("ParseSections() = %q, %+v", model, s)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ctx.md")
	if err := os.WriteFile(path, []byte("from a file\n"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := Resolve("@" + path)
	if err != nil {
		t.Fatal(err)
	}
	if got != "from a file\n" {
		t.Errorf("Resolve() = %q", got)
	}

	if got, _ := Resolve("plain text"); got != "plain text" {
		t.Errorf("Resolve(literal) = %q", got)
	}

	_, err = Resolve("@" + filepath.Join(dir, "missing.md"))
	if !errors.Is(err, ErrFileNotFound) {
		t.Errorf("Resolve(missing) error = %v, want ErrFileNotFound", err)
	}

	binary := filepath.Join(dir, "cover.png")
	if err := os.WriteFile(binary, []byte("ok \xff bad"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Resolve("@" + binary); !errors.Is(err, ErrUsage) {
		t.Errorf("Resolve(invalid UTF-8) error = %v, want ErrUsage", err)
	}
}

func TestCompose(t *testing.T) {
	_, both, _ := ParseSections([]string{"m", "context", "c", "instruct", "i"})
	got, err := Compose(both)
	if err != nil {
		t.Fatal(err)
	}
	if want := "Context:\nc\n\nInstruction:\ni"; got != want {
		t.Errorf("Compose() = %q, want %q", got, want)
	}

	_, ctxOnly, _ := ParseSections([]string{"m", "context", "c"})
	if got, _ := Compose(ctxOnly); got != "c" {
		t.Errorf("Compose(context only) = %q", got)
	}

	if _, err := Compose(Sections{}); !errors.Is(err, ErrUsage) {
		t.Errorf("Compose(empty) error = %v, want ErrUsage", err)
	}
}

func TestResolveAllFromFiles(t *testing.T) {
	dir := t.TempDir()
	ctxPath := filepath.Join(dir, "world.txt")
	os.WriteFile(ctxPath, []byte("A drowned city."), 0644)

	_, s, err := ParseSections([]string{"m", "context", "@" + ctxPath, "instruct", "Describe the bell tower."})
	if err != nil {
		t.Fatal(err)
	}
	resolved, err := s.ResolveAll()
	if err != nil {
		t.Fatal(err)
	}
	got, _ := Compose(resolved)
	if want := "Context:\nA drowned city.\n\nInstruction:\nDescribe the bell tower."; got != want {
		t.Errorf("Compose() = %q, want %q", got, want)
	}

	_, bad, _ := ParseSections([]string{"m", "instruct", "@" + filepath.Join(dir, "nope")})
	if _, err := bad.ResolveAll(); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("ResolveAll() error = %v, want ErrFileNotFound", err)
	}
}
