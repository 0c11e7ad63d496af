package racecal

import (
	"context"
	"net/http"
	"net/url"
)

// Request describes one page fetch.
type Request struct {
	// Method is GET when empty.
	Method string

	URL     string
	Referer string

	// Form is sent url-encoded as the body of a POST.
	Form url.Values

	// NoCache appends a cache-busting query parameter so intermediaries
	// cannot serve a stale copy.
	NoCache bool
}

// Get returns a GET request for rawURL.
func Get(rawURL string) *Request {
	return &Request{Method: http.MethodGet, URL: rawURL}
}

// Idempotent reports whether the request may be retried safely.
func (r *Request) Idempotent() bool {
	return r.Method == "" || r.Method == http.MethodGet || r.Method == http.MethodHead
}

// Fetcher retrieves page text over HTTP.
type Fetcher interface {
	// Fetch performs the request and returns the response body.
	// The context controls timeout and cancellation.
	Fetch(ctx context.Context, req *Request) (body string, err error)

	// Close releases idle connections.
	Close() error
}
