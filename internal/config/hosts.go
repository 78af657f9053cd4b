package config

import (
	"maps"
	"net/http"
	"net/url"
	"strings"
)

// credentialHeaders carry per-origin secrets such as clearance cookies.
var credentialHeaders = []string{"Cookie", "Authorization", "Proxy-Authorization"}

// HostConfig holds request settings for one image host.
type HostConfig struct {
	// Cookie is sent as the Cookie header, e.g. "cf_clearance=...".
	Cookie string `yaml:"cookie,omitempty"`

	// Referer is sent as the Referer header. Some CDNs refuse hotlinks
	// without one.
	Referer string `yaml:"referer,omitempty"`

	// UserAgent overrides the global User-Agent. Clearance cookies are
	// only honored with the browser User-Agent that obtained them.
	UserAgent string `yaml:"userAgent,omitempty"`

	// Headers are extra request headers.
	Headers map[string]string `yaml:"headers,omitempty"`
}

// File is the structure of the .imgrescue.yaml configuration file.
type File struct {
	// Defaults apply to every host unless overridden.
	Defaults HostConfig `yaml:"defaults,omitempty"`

	// Hosts maps a host name to its settings. An entry for "example.com"
	// also covers its subdomains unless they have their own entry.
	Hosts map[string]HostConfig `yaml:"hosts,omitempty"`
}

// GetHostConfig merges the defaults with the most specific matching host
// entry.
func (f *File) GetHostConfig(host string) HostConfig {
	result := f.Defaults
	result.Headers = maps.Clone(f.Defaults.Headers)

	hc, ok := f.lookup(strings.ToLower(host))
	if !ok {
		return result
	}
	if hc.Cookie != "" {
		result.Cookie = hc.Cookie
	}
	if hc.Referer != "" {
		result.Referer = hc.Referer
	}
	if hc.UserAgent != "" {
		result.UserAgent = hc.UserAgent
	}
	if len(hc.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(hc.Headers))
		}
		maps.Copy(result.Headers, hc.Headers)
	}
	return result
}

// lookup finds host or its closest parent domain.
func (f *File) lookup(host string) (HostConfig, bool) {
	for host != "" {
		if hc, ok := f.Hosts[host]; ok {
			return hc, true
		}
		_, parent, found := strings.Cut(host, ".")
		if !found || !strings.Contains(parent, ".") {
			break
		}
		host = parent
	}
	return HostConfig{}, false
}

// Apply writes the host settings into h, overriding existing values.
func (hc HostConfig) Apply(h map[string]string) {
	for k, v := range hc.Headers {
		h[http.CanonicalHeaderKey(k)] = v
	}
	if hc.UserAgent != "" {
		h["User-Agent"] = hc.UserAgent
	}
	if hc.Referer != "" {
		h["Referer"] = hc.Referer
	}
	if hc.Cookie != "" {
		h["Cookie"] = hc.Cookie
	}
}

// HeadersFor returns the request headers for host, layered from weakest to
// strongest: headers file, global referer, configuration file defaults and
// host entry. The User-Agent set on the engine applies underneath all of
// them.
//
// The archive hosts never receive credential headers from the headers file
// or the defaults, since those were obtained for the image origins. A hosts
// entry naming the archive host itself still applies.
func (c *Config) HeadersFor(global map[string]string) func(host string) map[string]string {
	archive := c.archiveHosts()
	return func(host string) map[string]string {
		host = strings.ToLower(host)
		h := make(map[string]string, len(global)+2)
		for k, v := range global {
			h[http.CanonicalHeaderKey(k)] = v
		}
		if c.Referer != "" {
			h["Referer"] = c.Referer
		}
		if c.Hosts != nil {
			c.Hosts.GetHostConfig(host).Apply(h)
		}
		if !archive[host] {
			return h
		}

		for _, k := range credentialHeaders {
			delete(h, k)
		}
		if c.Hosts != nil {
			if hc, ok := c.Hosts.lookup(host); ok {
				hc.Apply(h)
			}
		}
		return h
	}
}

// archiveHosts returns the lowercase host names of the archive endpoints.
func (c *Config) archiveHosts() map[string]bool {
	hosts := make(map[string]bool, 2)
	for _, raw := range []string{c.ArchiveEndpoint, c.ArchiveBase} {
		u, err := url.Parse(raw)
		if err != nil || u.Hostname() == "" {
			continue
		}
		hosts[strings.ToLower(u.Hostname())] = true
	}
	return hosts
}
