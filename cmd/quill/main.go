// Package main is the entry point for the quill CLI
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, renderError(err))
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var opts writeOptions

	rootCmd := &cobra.Command{
		Use:   "quill <model> [context <text|@file>] [instruct <text|@file>]",
		Short: "Write long-form fiction with hosted language models",
		Long: `quill sends a story prompt to an OpenAI-compatible router and keeps the
conversation in a session file, so each run continues the same story.

When a backend stops because it ran out of output tokens, quill asks it to
continue, up to 6 rounds, and stitches the pieces together. If a backend
fails, the next one in the list is tried from the same starting point.

Examples:
  quill meta-llama/Llama-3.3-70B-Instruct instruct "Open on a lighthouse in a storm."
  quill deepseek-ai/DeepSeek-V3 context @world.md instruct @chapter3.md --words 3000 -o ch3.md`,
		Version:       "0.1.0",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.envFileSet = cmd.Flags().Changed("env-file")
			return runWrite(cmd.Context(), opts, args, stdout, stderr)
		},
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	flags := rootCmd.Flags()
	flags.StringVarP(&opts.output, "output", "o", "", "Write the reply to a file instead of stdout")
	flags.IntVar(&opts.maxTokens, "max-tokens", 0, "Output token budget across all rounds (0 = unlimited)")
	flags.IntVar(&opts.chunkTokens, "chunk-tokens", 0, "max_tokens per request (default from QUILL_CHUNK_TOKENS)")
	flags.IntVar(&opts.words, "words", 0, "Keep continuing until the reply has this many words")
	flags.StringVar(&opts.backend, "backend", "", "Use only this backend, no fallback")
	flags.BoolVar(&opts.resetSession, "reset-session", false, "Ignore stored history; the session is overwritten")
	flags.BoolVar(&opts.noReflow, "no-reflow", false, "Print the reply exactly as received")

	persistent := rootCmd.PersistentFlags()
	persistent.StringVar(&opts.session, "session", "", "Session location (.jsonl, .cbor, .db)")
	persistent.BoolVar(&opts.lenientSession, "lenient-session", false, "Skip malformed session records instead of failing")
	persistent.StringVar(&opts.envFile, "env-file", "", "Settings file (default .env)")
	persistent.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging for debugging")

	rootCmd.AddCommand(sessionCmd(&opts, stdout, stderr))
	return rootCmd
}
