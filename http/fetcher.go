// Package http provides net/http implementations of racecal.Fetcher and
// racecal.ProviderClient.
package http

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/equinegpt/racecal"
)

// Default timeouts and retry policy for page fetches.
const (
	DefaultConnectTimeout = 6 * time.Second
	DefaultReadTimeout    = 12 * time.Second
	DefaultMaxAttempts    = 3
	DefaultBackoff        = 500 * time.Millisecond
)

// DefaultUserAgent is sent with every page request.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// maxRetryAfter caps how long a server may ask us to wait.
const maxRetryAfter = 30 * time.Second

// maxBodySize bounds how much of a response is read.
const maxBodySize = 16 << 20

// Ensure Fetcher implements racecal.Fetcher at compile time.
var _ racecal.Fetcher = (*Fetcher)(nil)

// Fetcher retrieves page text using plain HTTP requests. Idempotent
// requests are retried on transient statuses with exponential backoff.
type Fetcher struct {
	client         *http.Client
	connectTimeout time.Duration
	readTimeout    time.Duration
	maxAttempts    int
	backoff        time.Duration
	userAgent      string
	limiter        racecal.DomainLimiter
	now            func() time.Time
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithConnectTimeout bounds dialing and the TLS handshake.
// Defaults to DefaultConnectTimeout (6s).
func WithConnectTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.connectTimeout = d
	}
}

// WithReadTimeout bounds the wait for response headers.
// Defaults to DefaultReadTimeout (12s).
func WithReadTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.readTimeout = d
	}
}

// WithMaxAttempts sets the total attempts for idempotent requests.
func WithMaxAttempts(n int) Option {
	return func(f *Fetcher) {
		f.maxAttempts = n
	}
}

// WithBackoff sets the base retry delay; attempt n waits base*2^(n-1).
func WithBackoff(d time.Duration) Option {
	return func(f *Fetcher) {
		f.backoff = d
	}
}

// WithUserAgent overrides DefaultUserAgent.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithLimiter makes every attempt wait on a per-host rate limit.
func WithLimiter(l racecal.DomainLimiter) Option {
	return func(f *Fetcher) {
		f.limiter = l
	}
}

// NewFetcher creates a new HTTP-based Fetcher.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		connectTimeout: DefaultConnectTimeout,
		readTimeout:    DefaultReadTimeout,
		maxAttempts:    DefaultMaxAttempts,
		backoff:        DefaultBackoff,
		userAgent:      DefaultUserAgent,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.maxAttempts < 1 {
		f.maxAttempts = 1
	}

	dialer := &net.Dialer{
		Timeout:   f.connectTimeout,
		KeepAlive: 30 * time.Second,
	}
	f.client = &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dialer.DialContext,
			TLSHandshakeTimeout:   f.connectTimeout,
			ResponseHeaderTimeout: f.readTimeout,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
		},
		Timeout: f.connectTimeout + f.readTimeout,
	}

	return f
}

// Fetch performs the request and returns the response body.
func (f *Fetcher) Fetch(ctx context.Context, req *racecal.Request) (string, error) {
	target := req.URL
	if req.NoCache {
		target = CacheBust(target, f.now())
	}

	attempts := 1
	if req.Idempotent() {
		attempts = f.maxAttempts
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx, hostOf(target)); err != nil {
				return "", err
			}
		}

		body, retryAfter, err := f.do(ctx, req, target)
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		lastErr = err

		if attempt >= attempts-1 || !retryable(err) {
			break
		}

		delay := f.backoff << attempt
		if retryAfter >= 0 {
			delay = retryAfter
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}

	return "", lastErr
}

// do performs a single attempt. retryAfter is negative unless the server
// sent a usable Retry-After header.
func (f *Fetcher) do(ctx context.Context, req *racecal.Request, target string) (body string, retryAfter time.Duration, err error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var payload io.Reader
	if method == http.MethodPost {
		payload = strings.NewReader(req.Form.Encode())
	}

	hreq, err := http.NewRequestWithContext(ctx, method, target, payload)
	if err != nil {
		return "", -1, racecal.Errorf(racecal.EINVALID, "bad request %s %s: %v", method, target, err)
	}
	hreq.Header.Set("User-Agent", f.userAgent)
	hreq.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	hreq.Header.Set("Accept-Language", "en-AU,en;q=0.9")
	hreq.Header.Set("Cache-Control", "no-cache")
	hreq.Header.Set("Pragma", "no-cache")
	if req.Referer != "" {
		hreq.Header.Set("Referer", req.Referer)
	}
	if payload != nil {
		hreq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := f.client.Do(hreq)
	if err != nil {
		return "", -1, &TransportError{URL: target, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return "", parseRetryAfter(resp.Header.Get("Retry-After"), f.now()), &StatusError{StatusCode: resp.StatusCode, URL: target}
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", -1, &TransportError{URL: target, Err: err}
	}

	return string(b), -1, nil
}

// Close releases idle connections.
func (f *Fetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

// StatusError reports a non-200 response.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d for %s", e.StatusCode, e.URL)
}

// Unwrap exposes the application error code for the status.
func (e *StatusError) Unwrap() error {
	code := racecal.EINTERNAL
	switch {
	case e.StatusCode == http.StatusNotFound:
		code = racecal.ENOTFOUND
	case transientStatus(e.StatusCode):
		code = racecal.EUNAVAILABLE
	}
	return &racecal.Error{Code: code, Message: e.Error()}
}

// TransportError reports a failure below HTTP: dial, TLS, timeout, reset.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func transientStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

func retryable(err error) bool {
	switch e := err.(type) {
	case *StatusError:
		return transientStatus(e.StatusCode)
	case *TransportError:
		return true
	}
	return false
}

// parseRetryAfter reads a Retry-After header given in seconds or as an
// HTTP date. It returns -1 when the header is absent or unusable.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return -1
	}
	var d time.Duration
	if secs, err := strconv.Atoi(v); err == nil {
		d = time.Duration(secs) * time.Second
	} else if t, err := http.ParseTime(v); err == nil {
		d = t.Sub(now)
	} else {
		return -1
	}
	if d < 0 {
		d = 0
	}
	return min(d, maxRetryAfter)
}

// CacheBust appends a "_ts" query parameter holding now as Unix seconds.
func CacheBust(rawURL string, now time.Time) string {
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + "_ts=" + strconv.FormatInt(now.Unix(), 10)
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
