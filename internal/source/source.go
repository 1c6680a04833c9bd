// Package source provides the ordered master list of records to reconcile.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"rcsync/internal/domain"
)

// ErrSourceUnavailable means the master list could not be obtained. It is
// fatal to a run: no record is checked without a master list.
var ErrSourceUnavailable = errors.New("record source unavailable")

const (
	DriverHTTP  = "http"
	DriverFile  = "file"
	DriverStore = "store"

	DefaultTimeout = 20 * time.Second

	maxListBytes = 64 << 20
)

type Source interface {
	Fetch(ctx context.Context) ([]domain.Record, error)
	Describe() string
}

// SnapshotLoader is the part of the result store the store driver reads from.
type SnapshotLoader interface {
	Load(ctx context.Context) (domain.ResultSet, error)
}

type Config struct {
	Driver  string
	URL     string
	Path    string
	Timeout time.Duration
}

// New builds the configured source. snapshots is only used by the store driver.
func New(cfg Config, client *http.Client, snapshots SnapshotLoader) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverHTTP:
		if cfg.URL == "" {
			return nil, errors.New("http source: url required")
		}
		return NewHTTPSource(client, cfg.URL, cfg.Timeout), nil
	case DriverFile:
		if cfg.Path == "" {
			return nil, errors.New("file source: path required")
		}
		return &FileSource{path: cfg.Path}, nil
	case DriverStore:
		if snapshots == nil {
			return nil, errors.New("store source: result store required")
		}
		return &StoreSource{snapshots: snapshots}, nil
	default:
		return nil, fmt.Errorf("unknown source driver %q (want %s, %s or %s)", cfg.Driver, DriverHTTP, DriverFile, DriverStore)
	}
}

func unavailable(from string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, from, err)
}

func decodeRecords(data []byte) ([]domain.Record, error) {
	var records []domain.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decoding master list: %w", err)
	}
	if records == nil {
		return nil, errors.New("master list is not a JSON array")
	}
	return records, nil
}

type HTTPSource struct {
	client  *http.Client
	url     string
	timeout time.Duration
}

func NewHTTPSource(client *http.Client, url string, timeout time.Duration) *HTTPSource {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPSource{client: client, url: url, timeout: timeout}
}

func (s *HTTPSource) Describe() string { return s.url }

func (s *HTTPSource) Fetch(ctx context.Context) ([]domain.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, unavailable(s.url, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, unavailable(s.url, fmt.Errorf("executing request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, unavailable(s.url, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxListBytes))
	if err != nil {
		return nil, unavailable(s.url, fmt.Errorf("reading response: %w", err))
	}
	records, err := decodeRecords(data)
	if err != nil {
		return nil, unavailable(s.url, err)
	}
	return records, nil
}

type FileSource struct {
	path string
}

func (s *FileSource) Describe() string { return "file:" + s.path }

func (s *FileSource) Fetch(ctx context.Context) ([]domain.Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, unavailable(s.path, err)
	}
	records, err := decodeRecords(data)
	if err != nil {
		return nil, unavailable(s.path, err)
	}
	return records, nil
}

// StoreSource rechecks the previously persisted snapshot in place.
type StoreSource struct {
	snapshots SnapshotLoader
}

func (s *StoreSource) Describe() string { return "previous result snapshot" }

func (s *StoreSource) Fetch(ctx context.Context) ([]domain.Record, error) {
	rs, err := s.snapshots.Load(ctx)
	if err != nil {
		return nil, unavailable("result store", err)
	}
	if len(rs) == 0 {
		return nil, unavailable("result store", errors.New("snapshot is empty"))
	}
	return rs.Records(), nil
}
