// Package fallback picks the backends to try for a request and runs one
// attempt per backend until one succeeds.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// DefaultBackends is the preference order used when none is configured
var DefaultBackends = []string{"novita", "together", "fireworks-ai", "nebius"}

// Selector produces the ordered backend list for one invocation
type Selector struct {
	// Forced pins a single backend and disables fallback
	Forced string

	// Defaults is the preference order when nothing is forced
	Defaults []string
}

// Backends returns the ordered attempt list. An empty list of defaults
// yields a single empty identifier, which lets the router choose.
func (s Selector) Backends() []string {
	if forced := strings.TrimSpace(s.Forced); forced != "" {
		return []string{forced}
	}
	if len(s.Defaults) == 0 {
		return []string{""}
	}
	out := make([]string, len(s.Defaults))
	copy(out, s.Defaults)
	return out
}

// ParseBackends splits a comma separated backend list, dropping blanks
func ParseBackends(list string) []string {
	var out []string
	for _, part := range strings.Split(list, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Policy decides whether another attempt follows a failed one
type Policy interface {
	// Next is called after attempt (0-based) of total failed with err
	Next(attempt, total int, err error) bool
}

// Sequential tries every backend once, in order. A cancelled context
// stops it early.
type Sequential struct{}

func (Sequential) Next(attempt, total int, err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return attempt+1 < total
}

// ExhaustedError is returned when every attempt failed
type ExhaustedError struct {
	Attempts int
	Backend  string
	Last     error
}

func (e *ExhaustedError) Error() string {
	name := e.Backend
	if name == "" {
		name = "auto"
	}
	return fmt.Sprintf("all %d backend attempt(s) failed, last (%s): %v", e.Attempts, name, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// Runner executes attempts across backends
type Runner struct {
	Policy Policy
	Logger *slog.Logger
}

// Run calls attempt once per backend, strictly in order, and returns the
// first success along with the backend that produced it. attempt receives
// only the backend id; anything else it needs must be captured immutably
// so a failed attempt cannot leak state into the next.
func Run[T any](ctx context.Context, r Runner, backends []string, attempt func(ctx context.Context, backend string) (T, error)) (T, string, error) {
	var zero T
	policy := r.Policy
	if policy == nil {
		policy = Sequential{}
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if len(backends) == 0 {
		backends = []string{""}
	}

	var lastErr error
	var lastBackend string
	tried := 0
	for i, backend := range backends {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				return zero, "", err
			}
			break
		}

		tried++
		logger.Debug("trying backend", "backend", backend, "attempt", i+1, "of", len(backends))
		result, err := attempt(ctx, backend)
		if err == nil {
			return result, backend, nil
		}

		lastErr, lastBackend = err, backend
		logger.Warn("backend attempt failed", "backend", backend, "attempt", i+1, "error", err)
		if !policy.Next(i, len(backends), err) {
			break
		}
	}

	return zero, "", &ExhaustedError{Attempts: tried, Backend: lastBackend, Last: lastErr}
}
