package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"

	"github.com/nao1215/imgrescue/internal/config"
	"github.com/nao1215/imgrescue/internal/database"
)

const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past fetch runs",
		Long: `History lists recorded fetch runs, newest first, as a Markdown table.

Examples:
  imgrescue history
  imgrescue history -n 5`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "n", defaultHistoryLimit, "Number of runs to show (0 = all)")
	cmd.Flags().String("db-dir", config.XDGDataDir(), "History database directory")

	return cmd
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}

	db, err := database.Open(dbDir, database.Options{CreateIfNotExists: false})
	if errors.Is(err, database.ErrNotFound) {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded yet.")
		return nil
	}
	if err != nil {
		return err
	}
	defer db.Close()

	return printHistory(cmd.Context(), db, limit, cmd.OutOrStdout())
}

func printHistory(ctx context.Context, db *database.HistoryDB, limit int, out io.Writer) error {
	runs, err := db.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded yet.")
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		state := "finished"
		switch {
		case !r.Finished():
			state = "unfinished"
		case r.Canceled:
			state = "canceled"
		}

		duration := ""
		if r.Finished() {
			duration = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
		}

		rows = append(rows, []string{
			strconv.FormatInt(r.ID, 10),
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			duration,
			state,
			strconv.Itoa(r.Targets),
			strconv.Itoa(r.Stored),
			strconv.Itoa(r.Failed),
			strconv.Itoa(r.Incomplete),
			strconv.Itoa(r.FilesWritten),
			strconv.Itoa(r.RewriteEntries),
		})
	}

	md := markdown.NewMarkdown(out)
	md.Table(markdown.TableSet{
		Header: []string{"Run", "Started", "Duration", "Status", "Targets", "Stored", "Failed", "Incomplete", "New Files", "Rewrites"},
		Rows:   rows,
	})
	return md.Build()
}
