package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	if cfg.Workers != DefaultWorkers {
		t.Errorf("Workers = %d, want %d", cfg.Workers, DefaultWorkers)
	}
	if cfg.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", cfg.Timeout, DefaultTimeout)
	}
	if cfg.Retries != DefaultRetries {
		t.Errorf("Retries = %d, want %d", cfg.Retries, DefaultRetries)
	}
	if cfg.BackoffBase != time.Second {
		t.Errorf("BackoffBase = %v, want 1s", cfg.BackoffBase)
	}
	if cfg.ArchiveFallback {
		t.Error("ArchiveFallback should be off by default")
	}
	if cfg.DBDir != XDGDataDir() {
		t.Errorf("DBDir = %q, want %q", cfg.DBDir, XDGDataDir())
	}
	if !strings.HasSuffix(XDGDataDir(), AppName) {
		t.Errorf("XDGDataDir() = %q", XDGDataDir())
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	occurrences := writeFile(t, dir, "occ.csv", "thumb_url,full_url\n")

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr error
	}{
		{"valid", func(*Config) {}, nil},
		{"no occurrences", func(c *Config) { c.OccurrencesPath = "" }, ErrNoOccurrences},
		{"missing occurrences", func(c *Config) { c.OccurrencesPath = filepath.Join(dir, "nope.csv") }, ErrInputNotFound},
		{"occurrences is a directory", func(c *Config) { c.OccurrencesPath = dir }, ErrInputNotFound},
		{"missing ledger", func(c *Config) { c.OnlyFailedPath = filepath.Join(dir, "ledger.csv") }, ErrInputNotFound},
		{"missing headers file", func(c *Config) { c.HeadersFile = filepath.Join(dir, "headers.txt") }, ErrInputNotFound},
		{"no store", func(c *Config) { c.StoreDir = "" }, ErrNoStoreDir},
		{"zero workers", func(c *Config) { c.Workers = 0 }, ErrInvalidWorkers},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, ErrInvalidTimeout},
		{"negative retries", func(c *Config) { c.Retries = -1 }, ErrInvalidRetries},
		{"zero retries", func(c *Config) { c.Retries = 0 }, nil},
		{"negative backoff", func(c *Config) { c.BackoffBase = -time.Second }, ErrInvalidBackoff},
		{"zero body size", func(c *Config) { c.MaxBodySize = 0 }, ErrInvalidMaxBodySize},
		{"negative rate", func(c *Config) { c.RateLimit = -1 }, ErrInvalidRateLimit},
		{"negative limit", func(c *Config) { c.Limit = -1 }, ErrInvalidWindow},
		{"negative start", func(c *Config) { c.StartIndex = -1 }, ErrInvalidWindow},
		{"bad snapshot", func(c *Config) { c.ArchiveSnapshot = "2020-01-01" }, ErrInvalidSnapshot},
		{"good snapshot", func(c *Config) { c.ArchiveSnapshot = "20200101000000" }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := NewConfig()
			cfg.OccurrencesPath = occurrences
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPrepareOutputs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	blocker := writeFile(t, dir, "blocker", "a file, not a directory")

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr error
	}{
		{"nested directories are created", func(c *Config) {
			c.RewritePath = filepath.Join(dir, "out", "a", "url_map.csv")
			c.FailurePath = filepath.Join(dir, "out", "b", "failures.csv")
			c.SummaryPath = filepath.Join(dir, "out", "c", "summary.md")
		}, nil},
		{"no summary", func(c *Config) {
			c.RewritePath = filepath.Join(dir, "url_map.csv")
			c.FailurePath = filepath.Join(dir, "failures.csv")
		}, nil},
		{"rewrite parent is a file", func(c *Config) {
			c.RewritePath = filepath.Join(blocker, "url_map.csv")
			c.FailurePath = filepath.Join(dir, "failures.csv")
		}, ErrOutputNotWritable},
		{"ledger path is a directory", func(c *Config) {
			c.RewritePath = filepath.Join(dir, "url_map.csv")
			c.FailurePath = dir
		}, ErrOutputNotWritable},
		{"summary parent is a file", func(c *Config) {
			c.RewritePath = filepath.Join(dir, "url_map.csv")
			c.FailurePath = filepath.Join(dir, "failures.csv")
			c.SummaryPath = filepath.Join(blocker, "summary.json")
		}, ErrOutputNotWritable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := NewConfig()
			tt.modify(cfg)

			err := cfg.PrepareOutputs()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("PrepareOutputs() error = %v, want nil", err)
				}
				for _, p := range []string{cfg.RewritePath, cfg.FailurePath, cfg.SummaryPath} {
					if p == "" {
						continue
					}
					if info, err := os.Stat(filepath.Dir(p)); err != nil || !info.IsDir() {
						t.Errorf("directory of %s was not created", p)
					}
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("PrepareOutputs() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestFileGetHostConfig(t *testing.T) {
	t.Parallel()

	file := &File{
		Defaults: HostConfig{
			UserAgent: "default-agent",
			Headers:   map[string]string{"Accept": "image/*"},
		},
		Hosts: map[string]HostConfig{
			"example.com": {
				Cookie:  "cf_clearance=abc",
				Headers: map[string]string{"X-Custom": "1"},
			},
			"cdn.example.com": {
				Referer: "https://blog.example.com/",
			},
		},
	}

	t.Run("unknown host gets defaults", func(t *testing.T) {
		t.Parallel()

		got := file.GetHostConfig("other.org")
		if got.UserAgent != "default-agent" || got.Cookie != "" {
			t.Errorf("GetHostConfig() = %+v", got)
		}
	})

	t.Run("subdomain inherits parent entry", func(t *testing.T) {
		t.Parallel()

		got := file.GetHostConfig("img.EXAMPLE.com")
		if got.Cookie != "cf_clearance=abc" {
			t.Errorf("Cookie = %q", got.Cookie)
		}
		if got.Headers["Accept"] != "image/*" || got.Headers["X-Custom"] != "1" {
			t.Errorf("Headers = %v", got.Headers)
		}
	})

	t.Run("most specific entry wins", func(t *testing.T) {
		t.Parallel()

		got := file.GetHostConfig("cdn.example.com")
		if got.Referer != "https://blog.example.com/" || got.Cookie != "" {
			t.Errorf("GetHostConfig() = %+v", got)
		}
	})

	t.Run("defaults are not mutated", func(t *testing.T) {
		t.Parallel()

		_ = file.GetHostConfig("example.com")
		if _, ok := file.Defaults.Headers["X-Custom"]; ok {
			t.Error("host headers leaked into defaults")
		}
	})
}

func TestHeadersFor(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()
	cfg.Referer = "https://blog.example.com/"
	cfg.Hosts = &File{
		Hosts: map[string]HostConfig{
			"img.example.com": {Cookie: "cf_clearance=abc", UserAgent: "browser"},
		},
	}

	headersFor := cfg.HeadersFor(map[string]string{"user-agent": "from-file", "accept-language": "en"})

	got := headersFor("img.example.com")
	want := map[string]string{
		"User-Agent":      "browser",
		"Accept-Language": "en",
		"Referer":         "https://blog.example.com/",
		"Cookie":          "cf_clearance=abc",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("header %s = %q, want %q", k, got[k], v)
		}
	}

	other := headersFor("other.org")
	if other["User-Agent"] != "from-file" || other["Cookie"] != "" {
		t.Errorf("headers for other host = %v", other)
	}
}

func TestHeadersForArchiveHost(t *testing.T) {
	t.Parallel()

	global := map[string]string{"cookie": "cf_clearance=from-file", "authorization": "Bearer x", "accept": "image/*"}

	t.Run("credentials stay with the origins", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.Hosts = &File{
			Defaults: HostConfig{Cookie: "session=default"},
			Hosts:    map[string]HostConfig{},
		}
		headersFor := cfg.HeadersFor(global)

		origin := headersFor("img.example.com")
		if origin["Cookie"] != "session=default" || origin["Authorization"] != "Bearer x" {
			t.Errorf("origin headers = %v", origin)
		}

		for _, host := range []string{"web.archive.org", "WEB.ARCHIVE.ORG"} {
			archive := headersFor(host)
			for _, k := range credentialHeaders {
				if v, ok := archive[k]; ok {
					t.Errorf("%s received %s: %q", host, k, v)
				}
			}
			if archive["Accept"] != "image/*" {
				t.Errorf("%s lost non-credential headers: %v", host, archive)
			}
		}
	})

	t.Run("explicit archive entry applies", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.Hosts = &File{
			Hosts: map[string]HostConfig{"web.archive.org": {Cookie: "archive=1"}},
		}
		got := cfg.HeadersFor(global)("web.archive.org")
		if got["Cookie"] != "archive=1" {
			t.Errorf("Cookie = %q, want archive=1", got["Cookie"])
		}
		if _, ok := got["Authorization"]; ok {
			t.Error("Authorization from headers file sent to the archive")
		}
	})

	t.Run("custom archive base", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.ArchiveEndpoint = "http://mirror.example.net/cdx"
		cfg.ArchiveBase = "http://mirror.example.net/web"
		headersFor := cfg.HeadersFor(global)

		if got := headersFor("mirror.example.net"); got["Cookie"] != "" {
			t.Errorf("mirror received Cookie %q", got["Cookie"])
		}
		if got := headersFor("web.archive.org"); got["Cookie"] != "cf_clearance=from-file" {
			t.Errorf("web.archive.org is not the archive here but got Cookie %q", got["Cookie"])
		}
	})
}

func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("valid file", func(t *testing.T) {
		t.Parallel()

		path := writeFile(t, t.TempDir(), "config.yaml", `
defaults:
  userAgent: "Mozilla/5.0"
hosts:
  Img.Example.com:
    cookie: "cf_clearance=xyz"
    referer: "https://blog.example.com/"
    headers:
      Accept: "image/avif,image/webp"
`)
		cf, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("LoadConfigFile() error = %v", err)
		}
		if cf.Defaults.UserAgent != "Mozilla/5.0" {
			t.Errorf("Defaults.UserAgent = %q", cf.Defaults.UserAgent)
		}
		hc, ok := cf.Hosts["img.example.com"]
		if !ok {
			t.Fatalf("host key not lowercased: %v", cf.Hosts)
		}
		if hc.Cookie != "cf_clearance=xyz" || hc.Headers["Accept"] != "image/avif,image/webp" {
			t.Errorf("host config = %+v", hc)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfigFile(filepath.Join(t.TempDir(), "none.yaml"))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("error = %v, want ErrConfigNotFound", err)
		}
	})

	t.Run("invalid yaml", func(t *testing.T) {
		t.Parallel()

		path := writeFile(t, t.TempDir(), "bad.yaml", "hosts: [unclosed")
		if _, err := LoadConfigFile(path); err == nil {
			t.Error("expected parse error")
		}
	})

	t.Run("empty file", func(t *testing.T) {
		t.Parallel()

		path := writeFile(t, t.TempDir(), "empty.yaml", "")
		cf, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("LoadConfigFile() error = %v", err)
		}
		if cf.Hosts == nil {
			t.Error("Hosts should be initialized")
		}
	})
}

func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "custom.yaml", "")

	if got := FindConfigFile(path); got != path {
		t.Errorf("FindConfigFile(%q) = %q", path, got)
	}
	if got := FindConfigFile(filepath.Join(dir, "missing.yaml")); got != "" {
		t.Errorf("FindConfigFile(missing) = %q, want empty", got)
	}
}

func TestParseHeaders(t *testing.T) {
	t.Parallel()

	input := `# exported from the browser
User-Agent: Mozilla/5.0 (X11; Linux x86_64)

Cookie: cf_clearance=abc:def; __cf_bm=xyz
not a header line
 : empty key
Accept: image/*
`
	got, err := ParseHeaders(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseHeaders() error = %v", err)
	}

	want := map[string]string{
		"User-Agent": "Mozilla/5.0 (X11; Linux x86_64)",
		"Cookie":     "cf_clearance=abc:def; __cf_bm=xyz",
		"Accept":     "image/*",
	}
	if len(got) != len(want) {
		t.Fatalf("ParseHeaders() = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, want %q", k, got[k], v)
		}
	}
}

func TestLoadHeadersFile(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "headers.txt", "Referer: https://blog.example.com/\n")
	got, err := LoadHeadersFile(path)
	if err != nil {
		t.Fatalf("LoadHeadersFile() error = %v", err)
	}
	if got["Referer"] != "https://blog.example.com/" {
		t.Errorf("Referer = %q", got["Referer"])
	}

	if _, err := LoadHeadersFile(filepath.Join(t.TempDir(), "none")); err == nil {
		t.Error("expected error for missing file")
	}
}
