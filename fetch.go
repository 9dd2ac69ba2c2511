package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// FetchResult is the status and body of one HTTP round trip.
type FetchResult struct {
	Status int
	Body   []byte
}

// Fetcher performs a GET and returns the raw result. Non-2xx statuses are not errors here;
// callers decide how to treat them.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (FetchResult, error)
}

// HTTPFetcher is a Fetcher backed by net/http.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher returns a fetcher whose requests time out after timeout. Comet servers hold
// requests open, so the timeout must exceed the server's hold time.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{client: &http.Client{Timeout: timeout}}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return FetchResult{}, fmt.Errorf("build request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return FetchResult{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return FetchResult{}, fmt.Errorf("read body: %w", err)
	}
	return FetchResult{Status: resp.StatusCode, Body: body}, nil
}

// setParams merges params over the query already present in rawURL.
func setParams(rawURL string, params map[string]string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
