package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/imgrescue/internal/archive"
	"github.com/nao1215/imgrescue/internal/config"
	"github.com/nao1215/imgrescue/internal/database"
	"github.com/nao1215/imgrescue/internal/fetch"
	"github.com/nao1215/imgrescue/internal/manifest"
	"github.com/nao1215/imgrescue/internal/pipeline"
	"github.com/nao1215/imgrescue/internal/report"
	"github.com/nao1215/imgrescue/internal/store"
	"github.com/nao1215/imgrescue/internal/tor"
)

// failureListSize is how many ledger entries the console report shows.
const failureListSize = 10

// NewFetchCmd creates the fetch command.
func NewFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch <occurrences.csv>",
		Short: "Download, store and map every image",
		Long: `Fetch runs the full recovery pipeline.

Every unique canonical URL is downloaded at most once per run. Transient
failures are retried with linear backoff; 4xx responses are final. After
direct attempts fail, the optional TLS fallback, Wayback Machine fallback and
Tor route are tried in that order. Payloads are stored in the store directory
as <sha1><ext>.

Outputs:
  url_map.csv             every observed URL variant -> stored file
  download_failures.csv   every URL without a stored file, with reason

Request headers come from --headers-file, --referer and the configuration
file. Cookie and Authorization headers from the headers file or the
configuration defaults are sent to the image hosts and the Tor route, never
to the archive host; a hosts entry for the archive host is the only way to
send it credentials.

Interrupting the run (Ctrl+C) stops new downloads and still writes both files.

Examples:
  # Basic run
  imgrescue fetch occurrences.csv

  # Archive fallback and a public URL for the rewrite table
  imgrescue fetch occurrences.csv --archive --public-url https://cdn.example.com/img

  # Retry only what failed last time
  imgrescue fetch occurrences.csv --only-failed download_failures.csv

  # Route blocked URLs through an existing Tor daemon
  imgrescue fetch occurrences.csv --external-tor 127.0.0.1:9050`,
		Args: cobra.ExactArgs(1),
		RunE: runFetchCmd,
	}

	f := cmd.Flags()

	// Outputs
	f.StringP("store", "s", config.DefaultStoreDir, "Directory for stored assets")
	f.String("rewrite", config.DefaultRewriteFile, "Rewrite table output path")
	f.String("failures", config.DefaultFailureFile, "Failure ledger output path")
	f.String("summary", "", "Write a run summary (.md for Markdown, .json for JSON)")
	f.String("public-url", "", "Public base URL for the new_url column (must start with http)")

	// Fetch behavior
	f.IntP("workers", "w", config.DefaultWorkers, "Number of concurrent downloads")
	f.DurationP("timeout", "t", config.DefaultTimeout, "Timeout for each request")
	f.IntP("retries", "r", config.DefaultRetries, "Retries after a retryable failure")
	f.Duration("backoff", config.DefaultBackoffBase, "Base delay; the n-th retry waits n times this")
	f.Int64("max-body-size", config.DefaultMaxBodySize, "Maximum image size in bytes")
	f.Float64("rate", 0, "Requests per second per host (0 disables)")
	f.Int("burst", 1, "Burst size for --rate")

	// Fallbacks
	f.Bool("insecure-tls", false, "After a TLS failure, retry once without certificate verification")
	f.Bool("plaintext-fallback", false, "After a TLS failure, retry once over http://")
	f.Bool("archive", false, "Fall back to the Wayback Machine after direct failures")
	f.String("archive-endpoint", config.DefaultArchiveEndpoint, "CDX index endpoint")
	f.String("archive-base", config.DefaultArchiveBase, "Snapshot URL base")
	f.String("archive-snapshot", "", "Use this capture timestamp instead of querying the index")

	// Request headers
	f.String("user-agent", config.DefaultUserAgent, "User-Agent header")
	f.String("referer", "", "Referer header for every request")
	f.String("headers-file", "", `File of "Key: Value" header lines`)
	f.StringP("config", "c", "", "Configuration file path (default: .imgrescue.yaml in current or home directory)")

	// Scope
	f.Int("limit", 0, "Fetch at most this many worklist entries (0 = all)")
	f.Int("start-index", 0, "Skip this many worklist entries first")
	f.String("only-failed", "", "Fetch only URLs listed in this failure ledger")
	f.Bool("resume", false, "Skip URLs already stored by an earlier run")

	// History
	f.String("db-dir", config.XDGDataDir(), "History database directory")
	f.Bool("no-history", false, "Do not record this run in the history database")

	// Tor
	f.Bool("tor", false, "Retry failed URLs once through an embedded Tor daemon")
	f.StringP("external-tor", "e", "", "Retry failed URLs once through the Tor proxy at this address")
	f.Duration("tor-timeout", config.DefaultTorStartupTimeout, "Timeout for embedded Tor startup")

	f.Bool("no-progress", false, "Disable the progress bar")

	return cmd
}

func runFetchCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildFetchConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := newLogger(cmd)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("received shutdown signal, finishing in-flight downloads")
			cancel()
		case <-ctx.Done():
		}
	}()

	var progress pipeline.Progress
	if noProgress, _ := cmd.Flags().GetBool("no-progress"); !noProgress { //nolint:errcheck // flag is defined above
		progress = newBarProgress(cmd.ErrOrStderr())
	}

	return runFetch(ctx, cfg, logger, cmd.OutOrStdout(), progress)
}

// buildFetchConfig creates a Config from cobra command flags.
func buildFetchConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.OccurrencesPath = args[0]
	f := cmd.Flags()

	var err error
	get := func(dst *string, name string) {
		if err == nil {
			*dst, err = f.GetString(name)
		}
	}
	getBool := func(dst *bool, name string) {
		if err == nil {
			*dst, err = f.GetBool(name)
		}
	}
	getInt := func(dst *int, name string) {
		if err == nil {
			*dst, err = f.GetInt(name)
		}
	}
	getDuration := func(dst *time.Duration, name string) {
		if err == nil {
			*dst, err = f.GetDuration(name)
		}
	}

	get(&cfg.StoreDir, "store")
	get(&cfg.RewritePath, "rewrite")
	get(&cfg.FailurePath, "failures")
	get(&cfg.SummaryPath, "summary")
	get(&cfg.PublicBaseURL, "public-url")
	getInt(&cfg.Workers, "workers")
	getDuration(&cfg.Timeout, "timeout")
	getInt(&cfg.Retries, "retries")
	getDuration(&cfg.BackoffBase, "backoff")
	getInt(&cfg.RateBurst, "burst")
	getBool(&cfg.InsecureTLSFallback, "insecure-tls")
	getBool(&cfg.PlaintextFallback, "plaintext-fallback")
	getBool(&cfg.ArchiveFallback, "archive")
	get(&cfg.ArchiveEndpoint, "archive-endpoint")
	get(&cfg.ArchiveBase, "archive-base")
	get(&cfg.ArchiveSnapshot, "archive-snapshot")
	get(&cfg.UserAgent, "user-agent")
	get(&cfg.Referer, "referer")
	get(&cfg.HeadersFile, "headers-file")
	get(&cfg.ConfigFilePath, "config")
	getInt(&cfg.Limit, "limit")
	getInt(&cfg.StartIndex, "start-index")
	get(&cfg.OnlyFailedPath, "only-failed")
	getBool(&cfg.Resume, "resume")
	get(&cfg.DBDir, "db-dir")
	getBool(&cfg.UseTor, "tor")
	get(&cfg.TorProxyAddress, "external-tor")
	getDuration(&cfg.TorStartupTimeout, "tor-timeout")
	if err != nil {
		return nil, err
	}

	if cfg.MaxBodySize, err = f.GetInt64("max-body-size"); err != nil {
		return nil, err
	}
	if cfg.RateLimit, err = f.GetFloat64("rate"); err != nil {
		return nil, err
	}

	noHistory, err := f.GetBool("no-history")
	if err != nil {
		return nil, err
	}
	if noHistory {
		cfg.DBDir = ""
	}

	if cfg.TorProxyAddress != "" {
		cfg.UseTor = true
		cfg.UseExternalTor = true
	} else {
		cfg.TorProxyAddress = config.DefaultTorProxyAddress
	}

	cfg.Verbose = getBoolFlag(cmd, "verbose")
	cfg.LogJSON = getBoolFlag(cmd, "log-json")

	// An explicit --config must exist; the search path may come up empty.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		cfg.Hosts, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	default:
		cfg.Hosts = &config.File{Hosts: make(map[string]config.HostConfig)}
	}

	return cfg, nil
}

// runFetch executes the pipeline described by cfg. progress may be nil.
func runFetch(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer, progress pipeline.Progress) error {
	if err := cfg.PrepareOutputs(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	st, err := store.Open(cfg.StoreDir)
	if err != nil {
		return err
	}

	var only map[string]bool
	if cfg.OnlyFailedPath != "" {
		entries, err := manifest.ReadFailuresFile(cfg.OnlyFailedPath)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", cfg.OnlyFailedPath, err)
		}
		only = make(map[string]bool, len(entries))
		for _, e := range entries {
			only[e.URL] = true
		}
	}

	var global map[string]string
	if cfg.HeadersFile != "" {
		if global, err = config.LoadHeadersFile(cfg.HeadersFile); err != nil {
			return err
		}
	}

	var history *database.HistoryDB
	if cfg.DBDir != "" {
		history, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open history: %w", err)
		}
		defer history.Close()
		logger.Debug("history opened", "path", history.Path())
	} else if cfg.Resume {
		return errors.New("--resume needs the history database (drop --no-history)")
	}

	engineOpts := []fetch.Option{
		fetch.WithWorkers(cfg.Workers),
		fetch.WithRetries(cfg.Retries),
		fetch.WithBackoff(fetch.LinearBackoff(cfg.BackoffBase)),
		fetch.WithTimeout(cfg.Timeout),
		fetch.WithMaxBodySize(cfg.MaxBodySize),
		fetch.WithUserAgent(cfg.UserAgent),
		fetch.WithHeaders(cfg.HeadersFor(global)),
		fetch.WithRateLimit(cfg.RateLimit, cfg.RateBurst),
		fetch.WithPlaintextFallback(cfg.PlaintextFallback),
	}
	if cfg.InsecureTLSFallback {
		engineOpts = append(engineOpts, fetch.WithInsecureFallback(newInsecureClient()))
	}
	if cfg.ArchiveFallback {
		engineOpts = append(engineOpts, fetch.WithArchive(newArchiveResolver(cfg)))
	}
	if cfg.UseTor {
		alternate, stop, err := startTor(ctx, cfg, logger, out)
		if err != nil {
			return err
		}
		defer stop()
		engineOpts = append(engineOpts, fetch.WithAlternate(alternate))
	}

	fetchOpts := []pipeline.FetchStepOption{
		pipeline.WithEngineOptions(engineOpts...),
		pipeline.WithFetchLogger(logger),
	}
	if progress != nil {
		fetchOpts = append(fetchOpts, pipeline.WithProgress(progress))
	}

	p := pipeline.New(pipeline.WithLogger(logger))
	p.AddSteps(
		pipeline.NewLoadStep(cfg.OccurrencesPath),
		pipeline.NewResolveStep(
			pipeline.WithOnly(only),
			pipeline.WithWindow(cfg.StartIndex, cfg.Limit),
			pipeline.WithResolveLogger(logger),
		),
	)
	if history != nil {
		fetchOpts = append(fetchOpts, pipeline.WithHistory(history))
		p.AddStep(pipeline.NewBeginRunStep(history))
		if cfg.Resume {
			p.AddStep(pipeline.NewReuseStep(history, st, logger))
		}
	}
	p.AddStep(pipeline.NewFetchStep(newDirectClient(), st, fetchOpts...))

	p.AddFinalStep(pipeline.NewExpandStep(cfg.PublicBaseURL))
	p.AddFinalStep(pipeline.NewWriteOutputsStep(cfg.RewritePath, cfg.FailurePath))
	if cfg.SummaryPath != "" {
		p.AddFinalStep(pipeline.NewSummaryFileStep(cfg.SummaryPath))
	}
	if history != nil {
		p.AddFinalStep(pipeline.NewFinishRunStep(history))
	}
	p.AddFinalStep(pipeline.NewReportStep(report.NewTextWriter(out, report.WithFailureList(failureListSize))))

	state := pipeline.NewState(time.Now())
	err = p.Execute(ctx, state)
	if err != nil && state.Canceled {
		return fmt.Errorf("run interrupted, partial results written: %w", err)
	}
	return err
}

// Per-attempt timeouts come from the engine, so these clients set none.
func newDirectClient() *http.Client {
	return &http.Client{Transport: defaultTransport()}
}

func newInsecureClient() *http.Client {
	t := defaultTransport()
	t.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: true, //nolint:gosec // opt-in fallback for hosts with broken certificates
	}
	return &http.Client{Transport: t}
}

func defaultTransport() *http.Transport {
	return http.DefaultTransport.(*http.Transport).Clone() //nolint:forcetypeassert // always *http.Transport
}

func newArchiveResolver(cfg *config.Config) archive.Resolver {
	if cfg.ArchiveSnapshot != "" {
		return archive.NewPinnedResolver(cfg.ArchiveBase, cfg.ArchiveSnapshot)
	}
	return archive.NewWaybackResolver(
		&http.Client{Timeout: cfg.Timeout},
		archive.WithEndpoint(cfg.ArchiveEndpoint),
		archive.WithBase(cfg.ArchiveBase),
		archive.WithUserAgent(cfg.UserAgent),
	)
}

// startTor returns a Tor-routed HTTP client and a function releasing it.
func startTor(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) (*http.Client, func(), error) {
	if cfg.UseExternalTor {
		client, err := tor.NewClient(cfg.TorProxyAddress, cfg.Timeout)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Tor client: %w", err)
		}
		if status := client.CheckConnection(ctx); status != tor.ProxyStatusOK {
			return nil, nil, fmt.Errorf("tor proxy check failed: %s (make sure Tor is running at %s): %w",
				status, cfg.TorProxyAddress, status.Error())
		}
		logger.Info("Tor proxy connection verified", "address", cfg.TorProxyAddress)
		return client.NewHTTPClient(), func() {}, nil
	}

	fmt.Fprintln(out, "Starting embedded Tor daemon...")
	fmt.Fprintf(out, "This may take 1-3 minutes while Tor bootstraps.\n\n")

	embedded := tor.NewEmbeddedTor(tor.WithStartupTimeout(cfg.TorStartupTimeout))
	if err := embedded.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to start embedded Tor: %w", err)
	}
	stop := func() {
		logger.Info("stopping embedded Tor daemon")
		if err := embedded.Stop(); err != nil {
			logger.Error("failed to stop embedded Tor", "error", err)
		}
	}

	client, err := embedded.NewClient(cfg.Timeout)
	if err != nil {
		stop()
		return nil, nil, fmt.Errorf("failed to create Tor client: %w", err)
	}
	if status := client.CheckConnection(ctx); status != tor.ProxyStatusOK {
		stop()
		return nil, nil, fmt.Errorf("embedded Tor proxy check failed: %s: %w", status, status.Error())
	}

	logger.Info("embedded Tor daemon started",
		"socksAddr", embedded.SocksAddr(),
		"controlAddr", embedded.ControlAddr(),
	)
	return client.NewHTTPClient(), stop, nil
}
