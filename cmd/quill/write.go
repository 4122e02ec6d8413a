package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cloud-shuttle/quill/internal/config"
	"github.com/cloud-shuttle/quill/internal/continuation"
	"github.com/cloud-shuttle/quill/internal/conversation"
	"github.com/cloud-shuttle/quill/internal/fallback"
	"github.com/cloud-shuttle/quill/internal/llm"
	"github.com/cloud-shuttle/quill/internal/markdown"
	"github.com/cloud-shuttle/quill/internal/prompt"
	"github.com/cloud-shuttle/quill/pkg/logger"
	"github.com/cloud-shuttle/quill/pkg/types"
)

// writeOptions holds the command-line flags
type writeOptions struct {
	output         string
	maxTokens      int
	chunkTokens    int
	words          int
	backend        string
	session        string
	resetSession   bool
	lenientSession bool
	envFile        string
	envFileSet     bool
	noReflow       bool
	verbose        bool
}

// env bundles what every command needs after startup
type env struct {
	cfg    *config.Config
	logger *slog.Logger
}

func setup(opts writeOptions, stderr io.Writer) (*env, error) {
	cfg, err := config.Load(config.Options{EnvFile: opts.envFile, Required: opts.envFileSet})
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	log := logger.Init(stderr, logger.LevelFor(opts.verbose), cfg.LogFormat)
	if cfg.EnvFile != "" {
		log.Debug("settings file loaded", "path", cfg.EnvFile)
	}
	return &env{cfg: cfg, logger: log}, nil
}

// openJournal opens the session at the flag location or the configured one
func (e *env) openJournal(opts writeOptions) (*conversation.Journal, error) {
	location := opts.session
	if location == "" {
		location = e.cfg.SessionPath
	}
	policy := e.cfg.SessionPolicy
	if opts.lenientSession {
		policy = conversation.PolicyLenient
	}

	store, err := conversation.Open(location, conversation.Options{
		Policy:      policy,
		Compression: e.cfg.Compression,
		Logger:      e.logger,
	})
	if err != nil {
		return nil, err
	}
	return conversation.NewJournal(store, location, e.logger), nil
}

// corruptHint wraps a strict-mode load failure with recovery options
func corruptHint(err error) error {
	return fmt.Errorf("%w\nhint: rerun with --lenient-session to skip bad records, or --reset-session to start over", err)
}

func runWrite(ctx context.Context, opts writeOptions, args []string, stdout, stderr io.Writer) error {
	model, sections, err := prompt.ParseSections(args)
	if err != nil {
		return err
	}

	e, err := setup(opts, stderr)
	if err != nil {
		return err
	}
	if opts.chunkTokens > 0 {
		e.cfg.ChunkTokens = opts.chunkTokens
	}
	if err := e.cfg.Validate(); err != nil {
		return err
	}
	if opts.maxTokens < 0 || opts.words < 0 {
		return fmt.Errorf("%w: --max-tokens and --words must not be negative", prompt.ErrUsage)
	}

	sections, err = sections.ResolveAll()
	if err != nil {
		return err
	}
	content, err := prompt.Compose(sections)
	if err != nil {
		return err
	}

	journal, err := e.openJournal(opts)
	if err != nil {
		return err
	}

	var history []types.Turn
	if opts.resetSession {
		e.logger.Debug("session reset requested, ignoring stored history", "location", journal.Location())
	} else {
		history, err = journal.Load(ctx)
		if err != nil {
			return corruptHint(err)
		}
	}

	userTurn := types.UserTurn(content)
	packed := conversation.Pack(history, e.cfg.HistoryChars)
	base := append(types.CloneTurns(packed), userTurn)
	e.logger.Debug("history packed",
		"stored_turns", len(history), "packed_turns", len(packed), "budget_chars", e.cfg.HistoryChars)

	client := llm.NewClient(llm.Config{
		BaseURL: e.cfg.BaseURL,
		APIKey:  e.cfg.APIKey,
		Timeout: e.cfg.Timeout,
	})
	driver := continuation.NewDriver(client, continuation.Options{
		Model:           model,
		MaxRounds:       continuation.DefaultMaxRounds,
		TargetWords:     opts.words,
		MaxOutputTokens: opts.maxTokens,
		ChunkTokens:     e.cfg.ChunkTokens,
		SystemPrompt:    e.cfg.SystemPrompt,
	})
	driver.SetObserver(func(tr continuation.Transition) {
		e.logger.Debug("continuation",
			"backend", tr.Backend, "round", tr.Round,
			"from", tr.From.String(), "to", tr.To.String(), "reason", tr.Reason)
	})

	selector := fallback.Selector{Forced: opts.backend, Defaults: e.cfg.Backends}
	runner := fallback.Runner{Policy: fallback.Sequential{}, Logger: e.logger}

	started := time.Now()
	result, backend, err := fallback.Run(ctx, runner, selector.Backends(),
		func(ctx context.Context, backend string) (*continuation.Result, error) {
			return driver.Run(ctx, backend, base)
		})
	if err != nil {
		return err
	}

	// stored history is kept whole; only the replayed window was packed
	turns := make([]types.Turn, 0, len(history)+1+len(result.NewTurns))
	turns = append(turns, history...)
	turns = append(turns, userTurn)
	turns = append(turns, result.NewTurns...)
	saved := journal.Save(ctx, turns)

	text := result.Text
	if !opts.noReflow {
		text = markdown.Reflow(text)
	}
	if err := writeOutput(opts.output, text, stdout); err != nil {
		return err
	}

	fmt.Fprintln(stderr, renderSummary(summary{
		Model:      model,
		Backend:    backend,
		Rounds:     result.Rounds,
		Words:      continuation.CountWords(result.Text),
		Tokens:     result.Usage.CompletionTokens,
		StopReason: string(result.StopReason),
		Session:    journal.Location(),
		Saved:      saved,
		Output:     opts.output,
		Elapsed:    time.Since(started),
	}))
	return nil
}

// writeOutput prints text to stdout or writes it to path
func writeOutput(path, text string, stdout io.Writer) error {
	if path == "" {
		_, err := fmt.Fprintln(stdout, text)
		return err
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(text+"\n"), 0644); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}

// exitHint explains common failures in one line
func exitHint(err error) string {
	var apiErr *llm.APIError
	switch {
	case errors.Is(err, config.ErrMissingCredential):
		return "create a token at https://huggingface.co/settings/tokens"
	case errors.Is(err, prompt.ErrUsage):
		return "run quill --help for usage"
	case errors.As(err, &apiErr) && (apiErr.StatusCode == 401 || apiErr.StatusCode == 403):
		return "check that HF_TOKEN is valid and has inference permissions"
	}
	return ""
}
