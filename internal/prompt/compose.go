// Package prompt turns command-line section arguments into the user turn
// sent to the model.
package prompt

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"unicode/utf8"
)

var (
	// ErrUsage is returned for malformed section arguments
	ErrUsage = errors.New("usage error")

	// ErrFileNotFound is returned when an @file reference does not exist
	ErrFileNotFound = errors.New("file not found")
)

// Section keywords
const (
	KeywordContext  = "context"
	KeywordInstruct = "instruct"
)

// FileRefPrefix marks a section value that names a file
const FileRefPrefix = "@"

// Sections holds the raw section values as given on the command line
type Sections struct {
	Context     string
	Instruction string

	hasContext     bool
	hasInstruction bool
}

// HasContext reports whether a context section was given
func (s Sections) HasContext() bool { return s.hasContext }

// HasInstruction reports whether an instruct section was given
func (s Sections) HasInstruction() bool { return s.hasInstruction }

// ParseSections splits args into the model name and its sections. Each
// section is a keyword followed by one value, in any order, at most once.
func ParseSections(args []string) (string, Sections, error) {
	var s Sections
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return "", s, fmt.Errorf("%w: model is required", ErrUsage)
	}
	model := args[0]

	rest := args[1:]
	for i := 0; i < len(rest); i += 2 {
		keyword := strings.ToLower(rest[i])
		if i+1 >= len(rest) {
			return "", s, fmt.Errorf("%w: %q needs a value", ErrUsage, rest[i])
		}
		value := rest[i+1]

		switch keyword {
		case KeywordContext:
			if s.hasContext {
				return "", s, fmt.Errorf("%w: context given twice", ErrUsage)
			}
			s.Context, s.hasContext = value, true
		case KeywordInstruct:
			if s.hasInstruction {
				return "", s, fmt.Errorf("%w: instruct given twice", ErrUsage)
			}
			s.Instruction, s.hasInstruction = value, true
		default:
			return "", s, fmt.Errorf("%w: unknown section %q (want %s or %s)", ErrUsage, rest[i], KeywordContext, KeywordInstruct)
		}
	}

	if !s.hasContext && !s.hasInstruction {
		return "", s, fmt.Errorf("%w: at least one of %s or %s is required", ErrUsage, KeywordContext, KeywordInstruct)
	}
	return model, s, nil
}

// Resolve returns value, or the contents of the file it names when it
// starts with "@".
func Resolve(value string) (string, error) {
	path, ok := strings.CutPrefix(value, FileRefPrefix)
	if !ok {
		return value, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: %s is not valid UTF-8 text", ErrUsage, path)
	}
	return string(data), nil
}

// ResolveAll resolves every present section in place
func (s Sections) ResolveAll() (Sections, error) {
	var err error
	if s.hasContext {
		if s.Context, err = Resolve(s.Context); err != nil {
			return s, fmt.Errorf("context: %w", err)
		}
	}
	if s.hasInstruction {
		if s.Instruction, err = Resolve(s.Instruction); err != nil {
			return s, fmt.Errorf("instruct: %w", err)
		}
	}
	return s, nil
}

// Compose builds the user turn content from resolved sections
func Compose(s Sections) (string, error) {
	switch {
	case s.hasContext && s.hasInstruction:
		return "Context:\n" + s.Context + "\n\nInstruction:\n" + s.Instruction, nil
	case s.hasContext:
		return s.Context, nil
	case s.hasInstruction:
		return s.Instruction, nil
	default:
		return "", fmt.Errorf("%w: nothing to send", ErrUsage)
	}
}
