package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	imglog "github.com/nao1215/imgrescue/internal/log"
)

// NewRootCmd creates the root command for imgrescue.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "imgrescue",
		Short: "Recover remotely hosted images from a content export",
		Long: `imgrescue recovers the images referenced by a legacy content export.

Every image occurrence is resolved to one canonical URL (explicit full size,
then a full size URL inferred from the thumbnail, then the thumbnail). Each
unique URL is downloaded once, with retries, TLS fallbacks, an optional
Wayback Machine fallback and an optional Tor route. Payloads are stored once
under their sha1 and a rewrite table maps every URL variant to its file.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")

	cmd.AddCommand(NewPlanCmd())
	cmd.AddCommand(NewFetchCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// getBoolFlag reads a flag from the command or, failing that, from the
// root's persistent flags.
func getBoolFlag(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		v, err = cmd.Root().PersistentFlags().GetBool(name)
		if err != nil {
			return false
		}
	}
	return v
}

// newLogger builds the redacting logger selected by --verbose and --log-json.
func newLogger(cmd *cobra.Command) *slog.Logger {
	verbose := getBoolFlag(cmd, "verbose")
	if getBoolFlag(cmd, "log-json") {
		return imglog.NewSecureJSONLogger(cmd.ErrOrStderr(), verbose)
	}
	return imglog.NewSecureLogger(cmd.ErrOrStderr(), verbose)
}
