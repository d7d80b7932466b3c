package main

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/phuslu/log"
)

func testLogger() *log.Logger {
	return &log.Logger{Level: log.ErrorLevel, Writer: &log.IOWriter{Writer: io.Discard}}
}

// mapFetcher serves pages from memory and records every request.
type mapFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	errs  map[string]error
	calls []string
}

func (f *mapFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, pageURL)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetch, err)
	}
	if err, ok := f.errs[pageURL]; ok {
		return "", err
	}
	if body, ok := f.pages[pageURL]; ok {
		return body, nil
	}
	return "", fmt.Errorf("%w: received non-2xx response code: 404", ErrFetch)
}

func (f *mapFetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}
