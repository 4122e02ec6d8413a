package main

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/cloud-shuttle/quill/internal/conversation"
)

const previewChars = 60

func sessionCmd(opts *writeOptions, stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect and convert the stored session",
	}
	cmd.AddCommand(
		sessionShowCmd(opts, stdout, stderr),
		sessionExportCmd(opts, stdout, stderr),
	)
	return cmd
}

func sessionShowCmd(opts *writeOptions, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "List the turns of the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.envFileSet = cmd.Flags().Changed("env-file")
			e, err := setup(*opts, stderr)
			if err != nil {
				return err
			}
			journal, err := e.openJournal(*opts)
			if err != nil {
				return err
			}

			turns, err := journal.Load(cmd.Context())
			if err != nil {
				return corruptHint(err)
			}
			if len(turns) == 0 {
				fmt.Fprintf(stdout, "%s is empty\n", journal.Location())
				return nil
			}

			total := 0
			for i, turn := range turns {
				n := utf8.RuneCountInString(turn.Content)
				total += n
				fmt.Fprintf(stdout, "%4d  %s %7d  %s\n", i+1, renderRole(turn.Role.String()), n, preview(turn.Content))
			}
			fmt.Fprintf(stdout, "%d turn(s), %d characters, replay budget %d\n", len(turns), total, e.cfg.HistoryChars)
			return nil
		},
	}
}

func sessionExportCmd(opts *writeOptions, stdout, stderr io.Writer) *cobra.Command {
	var to string

	cmd := &cobra.Command{
		Use:   "export --to <location>",
		Short: "Copy the stored session into another location or format",
		Long: `Copy the stored session into another location. The format is chosen by
extension: .jsonl (one JSON object per line), .cbor (CBOR sequence) or
.db/.sqlite (SQLite database).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.envFileSet = cmd.Flags().Changed("env-file")
			e, err := setup(*opts, stderr)
			if err != nil {
				return err
			}
			source, err := e.openJournal(*opts)
			if err != nil {
				return err
			}
			if to == source.Location() {
				return fmt.Errorf("export target is the session itself: %s", to)
			}

			turns, err := source.Load(cmd.Context())
			if err != nil {
				return corruptHint(err)
			}

			// errors surface here, unlike the journal's best-effort save
			target, err := conversation.Open(to, conversation.Options{
				Compression: e.cfg.Compression,
				Logger:      e.logger,
			})
			if err != nil {
				return err
			}
			if err := target.Save(cmd.Context(), to, turns); err != nil {
				return fmt.Errorf("exporting session: %w", err)
			}

			fmt.Fprintf(stdout, "exported %d turn(s) from %s to %s\n", len(turns), source.Location(), to)
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "Target location")
	if err := cmd.MarkFlagRequired("to"); err != nil {
		panic(err)
	}
	return cmd
}

// preview returns the first line of content, shortened
func preview(content string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(content), "\n")
	if utf8.RuneCountInString(line) <= previewChars {
		return line
	}
	return string([]rune(line)[:previewChars-1]) + "…"
}
