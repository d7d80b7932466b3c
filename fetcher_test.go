package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFetcher(t *testing.T, mutate func(*Config)) *PageFetcher {
	t.Helper()
	cfg := DefaultConfig()
	cfg.RateLimitPerSecond = 1000
	if mutate != nil {
		mutate(&cfg)
	}
	return NewPageFetcher(cfg, testLogger())
}

func TestFetchSendsBrowserHeaders(t *testing.T) {
	var gotUA, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<p>info@acme.com</p>"))
	}))
	defer srv.Close()

	body, err := newTestFetcher(t, nil).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "<p>info@acme.com</p>", body)
	assert.Equal(t, defaultUserAgent, gotUA)
	assert.Contains(t, gotAccept, "text/html")
}

func TestFetchNon2xxIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestFetcher(t, nil).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetch)
}

func TestFetchDecodesDeclaredCharset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		// "café" in Latin-1
		w.Write([]byte{'c', 'a', 'f', 0xe9})
	}))
	defer srv.Close()

	body, err := newTestFetcher(t, nil).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "café", body)
}

func TestFetchTruncatesLargeBodies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(strings.Repeat("a", 4096)))
	}))
	defer srv.Close()

	body, err := newTestFetcher(t, func(c *Config) { c.MaxBodyBytes = 1024 }).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Len(t, body, 1024)
}

func TestFetchUnreachableHost(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestFetcher(t, nil).Fetch(context.Background(), url)
	assert.ErrorIs(t, err, ErrFetch)
}

func TestFetchCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestFetcher(t, nil).Fetch(ctx, "http://127.0.0.1:1/")
	assert.ErrorIs(t, err, ErrFetch)
}

func TestFetchGivesUpAfterTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(3 * time.Second):
		case <-r.Context().Done():
		}
		w.Write([]byte("<p>late@acme.com</p>"))
	}))
	defer srv.Close()

	start := time.Now()
	_, err := newTestFetcher(t, func(c *Config) { c.Timeout = 1 }).Fetch(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrFetch)
	assert.Less(t, time.Since(start), 3*time.Second)
}
