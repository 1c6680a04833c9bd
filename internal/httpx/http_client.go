package httpx

import (
	"net/http"
	"time"
)

const (
	defaultExternalHTTPTimeout = 20 * time.Second

	// DefaultUserAgent mimics a desktop browser; the status site rejects
	// some default client identifiers.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.1 Safari/537.36"
)

type ClientConfig struct {
	Timeout         time.Duration
	UserAgent       string
	MaxConnsPerHost int
}

// NewExternalHTTPClient returns a client for calls leaving the process.
// Every request carries the configured User-Agent unless it already sets one.
func NewExternalHTTPClient(cfg ClientConfig) *http.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultExternalHTTPTimeout
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}

	base := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.MaxConnsPerHost > 0 {
		base.MaxConnsPerHost = cfg.MaxConnsPerHost
		base.MaxIdleConnsPerHost = cfg.MaxConnsPerHost
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: &userAgentTransport{base: base, userAgent: ua},
	}
}

// TimeoutFromSeconds converts a config value, falling back to def when unset.
func TimeoutFromSeconds(seconds int, def time.Duration) time.Duration {
	if seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return def
}

type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return t.base.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(clone)
}
