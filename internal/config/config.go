package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is used for XDG directory paths.
	AppName = "imgrescue"

	DefaultWorkers     = 4
	DefaultTimeout     = 20 * time.Second
	DefaultRetries     = 2
	DefaultBackoffBase = time.Second

	// DefaultMaxBodySize caps a single image download.
	DefaultMaxBodySize = 50 * 1024 * 1024

	// DefaultUserAgent is sent unless a headers file or host entry overrides it.
	DefaultUserAgent = "Mozilla/5.0 (compatible; imgrescue/1.0; +https://github.com/nao1215/imgrescue)"

	// DefaultArchiveEndpoint is the Wayback Machine CDX API.
	DefaultArchiveEndpoint = "https://web.archive.org/cdx/search/cdx"

	// DefaultArchiveBase prefixes snapshot URLs.
	DefaultArchiveBase = "https://web.archive.org/web"

	// DefaultTorProxyAddress is the standard Tor SOCKS5 port.
	DefaultTorProxyAddress = "127.0.0.1:9050"

	// DefaultTorStartupTimeout bounds the embedded Tor bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute

	// Default output file names, relative to the output directory.
	DefaultRewriteFile = "url_map.csv"
	DefaultFailureFile = "download_failures.csv"
	DefaultStoreDir    = "assets"
)

var snapshotPattern = regexp.MustCompile(`^\d{1,14}$`)

// Config holds every option of a pipeline run. It is filled from CLI flags
// and passed down explicitly.
type Config struct {
	// OccurrencesPath is the occurrences CSV produced by extraction.
	OccurrencesPath string

	// WorklistPath and AnnotatedPath are written by the plan command.
	WorklistPath  string
	AnnotatedPath string

	// StoreDir receives content-addressed assets.
	StoreDir string

	// RewritePath and FailurePath are the run products.
	RewritePath string
	FailurePath string

	// SummaryPath, when set, receives a Markdown run summary.
	SummaryPath string

	// DBDir holds the history database. Empty disables history.
	DBDir string

	// Resume skips URLs whose stored asset is recorded in the history and
	// still present in the store.
	Resume bool

	// OnlyFailedPath restricts the run to URLs listed in a previous ledger.
	OnlyFailedPath string

	Workers     int
	Timeout     time.Duration
	Retries     int
	BackoffBase time.Duration
	MaxBodySize int64

	// RateLimit is the request rate per host per second; 0 disables it.
	RateLimit float64
	RateBurst int

	// InsecureTLSFallback retries once without certificate verification
	// after a TLS failure.
	InsecureTLSFallback bool

	// PlaintextFallback retries once over http:// after a TLS failure.
	PlaintextFallback bool

	// ArchiveFallback consults the Wayback Machine after direct failure.
	ArchiveFallback bool
	ArchiveEndpoint string
	ArchiveBase     string

	// ArchiveSnapshot pins every archive lookup to one capture timestamp
	// instead of querying the index.
	ArchiveSnapshot string

	// PublicBaseURL prefixes filenames in the rewrite table's new_url column.
	PublicBaseURL string

	UserAgent string
	Referer   string

	// HeadersFile is a "Key: Value" file applied to every request.
	HeadersFile string

	// ConfigFilePath points at the YAML host configuration.
	ConfigFilePath string

	// Hosts holds per-host overrides loaded from the configuration file.
	Hosts *File

	// Limit and StartIndex select a window of the sorted worklist.
	Limit      int
	StartIndex int

	// UseTor adds a Tor-routed alternate transport.
	UseTor            bool
	UseExternalTor    bool
	TorProxyAddress   string
	TorStartupTimeout time.Duration

	Verbose bool
	LogJSON bool
}

// NewConfig returns a Config with defaults filled in.
func NewConfig() *Config {
	return &Config{
		StoreDir:          DefaultStoreDir,
		RewritePath:       DefaultRewriteFile,
		FailurePath:       DefaultFailureFile,
		DBDir:             XDGDataDir(),
		Workers:           DefaultWorkers,
		Timeout:           DefaultTimeout,
		Retries:           DefaultRetries,
		BackoffBase:       DefaultBackoffBase,
		MaxBodySize:       DefaultMaxBodySize,
		RateBurst:         1,
		ArchiveEndpoint:   DefaultArchiveEndpoint,
		ArchiveBase:       DefaultArchiveBase,
		UserAgent:         DefaultUserAgent,
		TorProxyAddress:   DefaultTorProxyAddress,
		TorStartupTimeout: DefaultTorStartupTimeout,
	}
}

// XDGDataDir returns the data directory, e.g. ~/.local/share/imgrescue.
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the config directory, e.g. ~/.config/imgrescue.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate reports the first invalid setting. Input files must exist.
func (c *Config) Validate() error {
	if c.OccurrencesPath == "" {
		return ErrNoOccurrences
	}
	if err := requireFile(c.OccurrencesPath); err != nil {
		return err
	}
	if c.OnlyFailedPath != "" {
		if err := requireFile(c.OnlyFailedPath); err != nil {
			return err
		}
	}
	if c.HeadersFile != "" {
		if err := requireFile(c.HeadersFile); err != nil {
			return err
		}
	}
	if c.StoreDir == "" {
		return ErrNoStoreDir
	}
	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Retries < 0 {
		return ErrInvalidRetries
	}
	if c.BackoffBase < 0 {
		return ErrInvalidBackoff
	}
	if c.MaxBodySize <= 0 {
		return ErrInvalidMaxBodySize
	}
	if c.RateLimit < 0 {
		return ErrInvalidRateLimit
	}
	if c.Limit < 0 || c.StartIndex < 0 {
		return ErrInvalidWindow
	}
	if c.ArchiveSnapshot != "" && !snapshotPattern.MatchString(c.ArchiveSnapshot) {
		return ErrInvalidSnapshot
	}
	return nil
}

// PrepareOutputs creates the directories of the rewrite table, failure
// ledger and summary file and checks that a file can be created in each.
// It runs before any fetching so that a bad output path cannot cost a
// finished run its results.
func (c *Config) PrepareOutputs() error {
	for _, path := range []string{c.RewritePath, c.FailurePath, c.SummaryPath} {
		if path == "" {
			continue
		}
		if err := checkWritable(path); err != nil {
			return err
		}
	}
	return nil
}

// checkWritable makes sure a file can later be written at path.
func checkWritable(path string) error {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrOutputNotWritable, path)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrOutputNotWritable, path, err)
	}
	scratch, err := os.CreateTemp(dir, ".scratch-*")
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrOutputNotWritable, path, err)
	}
	name := scratch.Name()
	_ = scratch.Close()
	_ = os.Remove(name)
	return nil
}

func requireFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrInputNotFound, path)
	}
	if err != nil {
		return fmt.Errorf("failed to check %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrInputNotFound, path)
	}
	return nil
}
