package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/imgrescue/internal/config"
	"github.com/nao1215/imgrescue/internal/pipeline"
)

// Default plan outputs.
const (
	defaultWorklistFile  = "worklist.csv"
	defaultAnnotatedFile = "occurrences_annotated.csv"
)

// NewPlanCmd creates the plan command.
func NewPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan <occurrences.csv>",
		Short: "Resolve canonical URLs and write the download worklist",
		Long: `Plan resolves the canonical URL of every image occurrence without
downloading anything.

It writes two files: the occurrences annotated with chosen_download_url and
chosen_kind, and the worklist of unique URLs sorted by URL. Review the
worklist before running fetch.

Examples:
  imgrescue plan occurrences.csv
  imgrescue plan occurrences.csv --worklist out/worklist.csv --annotated out/annotated.csv`,
		Args: cobra.ExactArgs(1),
		RunE: runPlanCmd,
	}

	cmd.Flags().String("worklist", defaultWorklistFile, "Worklist output path")
	cmd.Flags().String("annotated", defaultAnnotatedFile, "Annotated occurrences output path")

	return cmd
}

func runPlanCmd(cmd *cobra.Command, args []string) error {
	cfg := config.NewConfig()
	cfg.OccurrencesPath = args[0]

	var err error
	if cfg.WorklistPath, err = cmd.Flags().GetString("worklist"); err != nil {
		return err
	}
	if cfg.AnnotatedPath, err = cmd.Flags().GetString("annotated"); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := newLogger(cmd)

	p := pipeline.New(pipeline.WithLogger(logger))
	p.AddSteps(
		pipeline.NewLoadStep(cfg.OccurrencesPath),
		pipeline.NewResolveStep(pipeline.WithResolveLogger(logger)),
		pipeline.NewWritePlanStep(cfg.AnnotatedPath, cfg.WorklistPath),
	)

	state := pipeline.NewState(time.Now())
	if err := p.Execute(context.Background(), state); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Occurrences:   %d\n", len(state.Occurrences))
	fmt.Fprintf(out, "Unique URLs:   %d\n", len(state.Worklist))
	fmt.Fprintf(out, "Local files:   %d\n", len(state.Local))
	fmt.Fprintf(out, "Worklist:      %s\n", cfg.WorklistPath)
	fmt.Fprintf(out, "Annotated:     %s\n", cfg.AnnotatedPath)
	return nil
}
