package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the configuration file name searched for.
const DefaultConfigFile = ".imgrescue.yaml"

// LoadConfigFile loads host configuration from a YAML file.
// A missing file yields ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if cf.Hosts == nil {
		cf.Hosts = make(map[string]HostConfig)
	}

	// Host keys are matched case-insensitively.
	for host, hc := range cf.Hosts {
		if lower := strings.ToLower(host); lower != host {
			delete(cf.Hosts, host)
			cf.Hosts[lower] = hc
		}
	}
	return &cf, nil
}

// FindConfigFile returns configPath if it exists, otherwise the first of
// ./.imgrescue.yaml, $XDG_CONFIG_HOME/imgrescue/config.yaml and
// ~/.imgrescue.yaml that exists, or "".
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	candidates := make([]string, 0, 3)
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
	}
	candidates = append(candidates, filepath.Join(XDGConfigDir(), "config.yaml"))
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

// ParseHeaders reads "Key: Value" lines. Blank lines, lines starting with
// '#' and lines without a colon are ignored. Later keys win.
func ParseHeaders(r io.Reader) (map[string]string, error) {
	headers := make(map[string]string)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		headers[key] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read headers: %w", err)
	}
	return headers, nil
}

// LoadHeadersFile parses the headers file at path.
func LoadHeadersFile(path string) (map[string]string, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open headers file: %w", err)
	}
	defer f.Close()

	return ParseHeaders(f)
}
