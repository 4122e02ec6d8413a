// Package continuation drives a single backend attempt: it requests a
// reply, and while the backend reports truncation it asks the model to
// continue, until the reply is long enough or the round limit is reached.
package continuation

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloud-shuttle/quill/internal/llm"
	"github.com/cloud-shuttle/quill/pkg/types"
)

// State is a step of the continuation loop
type State int

const (
	StateRequesting State = iota
	StateEvaluating
	StateContinuing
	StateDone
)

func (s State) String() string {
	switch s {
	case StateRequesting:
		return "requesting"
	case StateEvaluating:
		return "evaluating"
	case StateContinuing:
		return "continuing"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Defaults
const (
	DefaultMaxRounds   = 6
	DefaultChunkTokens = 4096
	DefaultTemperature = 0.85
	DefaultTopP        = 0.92

	// charsPerToken estimates completion tokens when a backend omits usage
	charsPerToken = 4
)

// PieceSeparator joins the pieces of a continued reply
const PieceSeparator = "\n\n"

// StopReason says why the loop ended
type StopReason string

const (
	StopFinished   StopReason = "finished"
	StopTarget     StopReason = "target_words"
	StopBudget     StopReason = "token_budget"
	StopRoundLimit StopReason = "round_limit"
)

// Options configures a Driver
type Options struct {
	Model string

	// MaxRounds bounds the number of requests per attempt
	MaxRounds int

	// TargetWords stops continuing once the joined reply has this many
	// whitespace-separated words. Zero disables the check.
	TargetWords int

	// MaxOutputTokens is the completion token budget across all rounds.
	// Zero means unlimited.
	MaxOutputTokens int

	// ChunkTokens is the max_tokens sent with each request
	ChunkTokens int

	Temperature  float64
	TopP         float64
	SystemPrompt string
}

// Transition is reported to an Observer on every state change
type Transition struct {
	Backend string
	Round   int
	From    State
	To      State
	Reason  string
}

// Observer receives the transition trace
type Observer func(Transition)

// Result is the outcome of a successful attempt
type Result struct {
	// Text is the pieces joined by PieceSeparator
	Text   string
	Pieces []string

	// Messages is the full working list sent in the last round plus the
	// final reply
	Messages []types.Turn

	// NewTurns are the turns appended after base
	NewTurns []types.Turn

	Rounds       int
	Usage        llm.Usage
	FinishReason string
	StopReason   StopReason
	Backend      string
}

// Driver runs the continuation state machine against a Completer
type Driver struct {
	client   llm.Completer
	opts     Options
	observer Observer
}

// NewDriver creates a driver, filling zero options with defaults
func NewDriver(client llm.Completer, opts Options) *Driver {
	if opts.MaxRounds <= 0 {
		opts.MaxRounds = DefaultMaxRounds
	}
	if opts.ChunkTokens <= 0 {
		opts.ChunkTokens = DefaultChunkTokens
	}
	if opts.Temperature == 0 {
		opts.Temperature = DefaultTemperature
	}
	if opts.TopP == 0 {
		opts.TopP = DefaultTopP
	}
	return &Driver{client: client, opts: opts}
}

// SetObserver installs a transition observer
func (d *Driver) SetObserver(o Observer) {
	d.observer = o
}

// Options returns the effective options
func (d *Driver) Options() Options {
	return d.opts
}

// Run performs one attempt against backend. base is the packed history
// ending with the new user turn; it is copied and never modified. Any
// request error aborts the attempt and discards its partial output.
func (d *Driver) Run(ctx context.Context, backend string, base []types.Turn) (*Result, error) {
	working := types.CloneTurns(base)
	res := &Result{Backend: backend}
	state := StateRequesting
	outputTokens := 0

	for state != StateDone {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		switch state {
		case StateRequesting:
			res.Rounds++
			req := &llm.ChatRequest{
				Model:       d.opts.Model,
				Backend:     backend,
				Messages:    llm.MessagesFromTurns(d.opts.SystemPrompt, working),
				MaxTokens:   d.chunkTokens(outputTokens),
				Temperature: d.opts.Temperature,
				TopP:        d.opts.TopP,
			}
			completion, err := d.client.Complete(ctx, req)
			if err != nil {
				return nil, fmt.Errorf("round %d: %w", res.Rounds, err)
			}

			working = append(working, types.AssistantTurn(completion.Text))
			res.Pieces = append(res.Pieces, completion.Text)
			res.FinishReason = completion.FinishReason
			if completion.Usage != nil {
				res.Usage.Add(*completion.Usage)
				outputTokens += completion.Usage.CompletionTokens
			} else {
				outputTokens += estimateTokens(completion.Text)
			}
			state = d.transition(backend, res.Rounds, state, StateEvaluating, completion.FinishReason)

		case StateEvaluating:
			stop, reason := d.evaluate(res, outputTokens)
			if stop != "" {
				res.StopReason = stop
				state = d.transition(backend, res.Rounds, state, StateDone, reason)
				continue
			}
			state = d.transition(backend, res.Rounds, state, StateContinuing, reason)

		case StateContinuing:
			working = append(working, types.UserTurn(types.ContinuePrompt))
			state = d.transition(backend, res.Rounds, state, StateRequesting, types.ContinuePrompt)
		}
	}

	res.Text = strings.Join(res.Pieces, PieceSeparator)
	res.Messages = working
	res.NewTurns = working[len(base):]
	return res, nil
}

// evaluate decides whether the loop ends after the latest piece
func (d *Driver) evaluate(res *Result, outputTokens int) (StopReason, string) {
	if !llm.IsTruncation(res.FinishReason) {
		return StopFinished, fmt.Sprintf("finish_reason=%q", res.FinishReason)
	}
	if d.opts.TargetWords > 0 {
		// recounted over the whole reply so words split across pieces are
		// not double counted
		words := CountWords(strings.Join(res.Pieces, PieceSeparator))
		if words >= d.opts.TargetWords {
			return StopTarget, fmt.Sprintf("words=%d target=%d", words, d.opts.TargetWords)
		}
	}
	if d.opts.MaxOutputTokens > 0 && outputTokens >= d.opts.MaxOutputTokens {
		return StopBudget, fmt.Sprintf("tokens=%d budget=%d", outputTokens, d.opts.MaxOutputTokens)
	}
	if res.Rounds >= d.opts.MaxRounds {
		return StopRoundLimit, fmt.Sprintf("rounds=%d", res.Rounds)
	}
	return "", "truncated"
}

// chunkTokens clamps the per-request cap to what is left of the budget
func (d *Driver) chunkTokens(used int) int {
	n := d.opts.ChunkTokens
	if d.opts.MaxOutputTokens > 0 {
		if remaining := d.opts.MaxOutputTokens - used; remaining < n {
			n = remaining
		}
	}
	return n
}

func (d *Driver) transition(backend string, round int, from, to State, reason string) State {
	if d.observer != nil {
		d.observer(Transition{Backend: backend, Round: round, From: from, To: to, Reason: reason})
	}
	return to
}

// CountWords counts whitespace-separated words
func CountWords(text string) int {
	return len(strings.Fields(text))
}

func estimateTokens(text string) int {
	return (len(text) + charsPerToken - 1) / charsPerToken
}
