package http_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/equinegpt/racecal"
	rchttp "github.com/equinegpt/racecal/http"
	"github.com/equinegpt/racecal/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetcher_Fetch(t *testing.T) {
	t.Parallel()

	t.Run("returns HTML body from server", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html><body>Race 1</body></html>"))
		}))
		defer server.Close()

		fetcher := rchttp.NewFetcher()
		defer fetcher.Close()

		html, err := fetcher.Fetch(context.Background(), racecal.Get(server.URL))
		require.NoError(t, err)
		assert.Equal(t, "<html><body>Race 1</body></html>", html)
	})

	t.Run("sends browser headers and referer", func(t *testing.T) {
		t.Parallel()

		var got http.Header
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = r.Header.Clone()
			_, _ = w.Write([]byte("ok"))
		}))
		defer server.Close()

		fetcher := rchttp.NewFetcher()
		_, err := fetcher.Fetch(context.Background(), &racecal.Request{URL: server.URL, Referer: "https://example.com/home.aspx"})

		require.NoError(t, err)
		assert.Equal(t, rchttp.DefaultUserAgent, got.Get("User-Agent"))
		assert.Contains(t, got.Get("Accept-Language"), "en-AU")
		assert.Equal(t, "no-cache", got.Get("Cache-Control"))
		assert.Equal(t, "https://example.com/home.aspx", got.Get("Referer"))
	})

	t.Run("posts form fields", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.NoError(t, r.ParseForm())
			_, _ = w.Write([]byte(r.PostForm.Get("__EVENTTARGET") + "|" + r.PostForm.Get("__VIEWSTATE")))
		}))
		defer server.Close()

		fetcher := rchttp.NewFetcher()
		req := &racecal.Request{
			Method: http.MethodPost,
			URL:    server.URL,
			Form:   map[string][]string{"__EVENTTARGET": {"ctl00$next"}, "__VIEWSTATE": {"abc"}},
		}

		body, err := fetcher.Fetch(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "ctl00$next|abc", body)
	})

	t.Run("appends cache buster when no-cache is requested", func(t *testing.T) {
		t.Parallel()

		var rawQuery string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawQuery = r.URL.RawQuery
			_, _ = w.Write([]byte("ok"))
		}))
		defer server.Close()

		fetcher := rchttp.NewFetcher()
		_, err := fetcher.Fetch(context.Background(), &racecal.Request{URL: server.URL + "/p?Key=2025Sep20,VIC,Flemington", NoCache: true})

		require.NoError(t, err)
		assert.Contains(t, rawQuery, "Key=2025Sep20,VIC,Flemington")
		assert.Contains(t, rawQuery, "&_ts=")
	})

	t.Run("retries transient status then succeeds", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte("recovered"))
		}))
		defer server.Close()

		fetcher := rchttp.NewFetcher(rchttp.WithBackoff(time.Millisecond))
		body, err := fetcher.Fetch(context.Background(), racecal.Get(server.URL))

		require.NoError(t, err)
		assert.Equal(t, "recovered", body)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("honours retry-after header", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.Header().Set("Retry-After", "0")
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			_, _ = w.Write([]byte("ok"))
		}))
		defer server.Close()

		// A backoff this long would time the test out if Retry-After were ignored.
		fetcher := rchttp.NewFetcher(rchttp.WithBackoff(time.Hour))
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		body, err := fetcher.Fetch(ctx, racecal.Get(server.URL))
		require.NoError(t, err)
		assert.Equal(t, "ok", body)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		fetcher := rchttp.NewFetcher(rchttp.WithBackoff(time.Millisecond), rchttp.WithMaxAttempts(2))
		_, err := fetcher.Fetch(context.Background(), racecal.Get(server.URL))

		require.Error(t, err)
		assert.Equal(t, racecal.EUNAVAILABLE, racecal.ErrorCode(err))
		assert.Contains(t, err.Error(), "HTTP 502")
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("does not retry post requests", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		fetcher := rchttp.NewFetcher(rchttp.WithBackoff(time.Millisecond))
		_, err := fetcher.Fetch(context.Background(), &racecal.Request{Method: http.MethodPost, URL: server.URL})

		require.Error(t, err)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("does not retry not found", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			http.NotFound(w, r)
		}))
		defer server.Close()

		fetcher := rchttp.NewFetcher(rchttp.WithBackoff(time.Millisecond))
		_, err := fetcher.Fetch(context.Background(), racecal.Get(server.URL))

		require.Error(t, err)
		assert.Equal(t, racecal.ENOTFOUND, racecal.ErrorCode(err))
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("respects read timeout option", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
			_, _ = w.Write([]byte("late"))
		}))
		defer server.Close()

		fetcher := rchttp.NewFetcher(rchttp.WithReadTimeout(10*time.Millisecond), rchttp.WithMaxAttempts(1))
		_, err := fetcher.Fetch(context.Background(), racecal.Get(server.URL))
		require.Error(t, err)
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
			_, _ = w.Write([]byte("late"))
		}))
		defer server.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		fetcher := rchttp.NewFetcher()
		_, err := fetcher.Fetch(ctx, racecal.Get(server.URL))
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("waits on limiter per host", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, "ok")
		}))
		defer server.Close()

		var domains []string
		limiter := &mock.DomainLimiter{
			WaitFn: func(ctx context.Context, domain string) error {
				domains = append(domains, domain)
				return nil
			},
		}

		fetcher := rchttp.NewFetcher(rchttp.WithLimiter(limiter))
		_, err := fetcher.Fetch(context.Background(), racecal.Get(server.URL))

		require.NoError(t, err)
		require.Len(t, domains, 1)
		assert.True(t, strings.HasPrefix(server.URL, "http://"+domains[0]))
	})
}

func TestCacheBust(t *testing.T) {
	t.Parallel()

	now := time.Unix(1758326400, 0)

	assert.Equal(t, "https://x.test/p?_ts=1758326400", rchttp.CacheBust("https://x.test/p", now))
	assert.Equal(t, "https://x.test/p?Key=a&_ts=1758326400", rchttp.CacheBust("https://x.test/p?Key=a", now))
}
