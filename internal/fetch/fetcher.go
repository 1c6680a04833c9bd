// Package fetch retrieves the per-record status document.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultURLTemplate = "https://aepos.ap.gov.in/Qcodesearch.jsp?rcno={id}"
	DefaultTimeout     = 10 * time.Second

	idPlaceholder = "{id}"
	maxBodyBytes  = 5 << 20
)

// ErrFetchFailure marks any failure to obtain a usable status document.
var ErrFetchFailure = errors.New("status fetch failed")

// FailureError describes why a record's document could not be retrieved.
type FailureError struct {
	RecordID   string
	StatusCode int
	Err        error
}

func (e *FailureError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.RecordID, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.RecordID, e.Err)
}

func (e *FailureError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrFetchFailure}
	}
	return []error{ErrFetchFailure, e.Err}
}

// Observer receives the outcome of every fetch. It must be safe for concurrent use.
type Observer interface {
	ObserveFetch(d time.Duration, err error)
}

type Fetcher struct {
	client      *http.Client
	urlTemplate string
	timeout     time.Duration
	observer    Observer
}

type Option func(*Fetcher)

func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

func WithObserver(o Observer) Option {
	return func(f *Fetcher) { f.observer = o }
}

func New(client *http.Client, urlTemplate string, opts ...Option) (*Fetcher, error) {
	if urlTemplate == "" {
		urlTemplate = DefaultURLTemplate
	}
	if !strings.Contains(urlTemplate, idPlaceholder) {
		return nil, fmt.Errorf("status url template %q has no %s placeholder", urlTemplate, idPlaceholder)
	}
	if client == nil {
		client = http.DefaultClient
	}
	f := &Fetcher{client: client, urlTemplate: urlTemplate, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

func (f *Fetcher) URLFor(recordID string) string {
	return strings.ReplaceAll(f.urlTemplate, idPlaceholder, url.QueryEscape(recordID))
}

// Fetch performs exactly one GET for the record. It never retries; every
// failure comes back as a *FailureError.
func (f *Fetcher) Fetch(ctx context.Context, recordID string) ([]byte, error) {
	start := time.Now()
	body, err := f.fetch(ctx, recordID)
	if f.observer != nil {
		f.observer.ObserveFetch(time.Since(start), err)
	}
	return body, err
}

func (f *Fetcher) fetch(ctx context.Context, recordID string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URLFor(recordID), nil)
	if err != nil {
		return nil, &FailureError{RecordID: recordID, Err: fmt.Errorf("creating request: %w", err)}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FailureError{RecordID: recordID, Err: fmt.Errorf("executing request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &FailureError{RecordID: recordID, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &FailureError{RecordID: recordID, Err: fmt.Errorf("reading response: %w", err)}
	}
	return body, nil
}
