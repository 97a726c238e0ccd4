package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fmueller/voxtype/internal/history"
	"github.com/spf13/cobra"
)

func newHistoryCmd(app *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse and manage past transcriptions",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "Show the most recent transcriptions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withHistory(cmd.Context(), func(store *history.Store) error {
				entries, err := store.Recent(cmd.Context(), limit)
				if err != nil {
					return fmt.Errorf("list history: %w", err)
				}
				printEntries(cmd.OutOrStdout(), entries)
				return nil
			})
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries to show")

	dates := &cobra.Command{
		Use:   "dates",
		Short: "List the days that have transcriptions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withHistory(cmd.Context(), func(store *history.Store) error {
				days, err := store.Dates(cmd.Context())
				if err != nil {
					return fmt.Errorf("list history dates: %w", err)
				}
				if len(days) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no history")
					return nil
				}
				for _, d := range days {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", d.Date, d.Count)
				}
				return nil
			})
		},
	}

	showDate := &cobra.Command{
		Use:   "show-date <YYYY-MM-DD>",
		Short: "Show the transcriptions of one day (UTC)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := time.Parse("2006-01-02", args[0])
			if err != nil {
				return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", args[0])
			}
			return app.withHistory(cmd.Context(), func(store *history.Store) error {
				entries, err := store.ForDate(cmd.Context(), day)
				if err != nil {
					return fmt.Errorf("show history for %s: %w", args[0], err)
				}
				printEntries(cmd.OutOrStdout(), entries)
				return nil
			})
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one transcription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withHistory(cmd.Context(), func(store *history.Store) error {
				if err := store.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			})
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every transcription",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withHistory(cmd.Context(), func(store *history.Store) error {
				n, err := store.Clear(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d entries\n", n)
				return nil
			})
		},
	}

	cmd.AddCommand(list, dates, showDate, deleteCmd, clearCmd)
	return cmd
}

func (a *appState) withHistory(ctx context.Context, fn func(*history.Store) error) error {
	store, err := a.openHistory(ctx)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func printEntries(w io.Writer, entries []history.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "no history")
		return
	}
	for _, e := range entries {
		var tags []string
		if e.LLMUsed {
			tag := "llm"
			if e.Preset != "" {
				tag += ":" + e.Preset
			}
			tags = append(tags, tag)
		}
		tags = append(tags, fmt.Sprintf("%.1fs", e.AudioSeconds))

		fmt.Fprintf(w, "%s  %s  [%s]\n", e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.ID, strings.Join(tags, ", "))
		fmt.Fprintf(w, "  %s\n", e.Text())
		if e.RefinedText != "" && e.RefinedText != e.RawText {
			fmt.Fprintf(w, "  raw: %s\n", e.RawText)
		}
	}
}
