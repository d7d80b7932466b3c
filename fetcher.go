/*
 * Email Extractor - Fetch Module
 *
 * Author: Dr.Anach
 * Telegram: @dranach
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/phuslu/log"
	"golang.org/x/net/html/charset"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

// ErrFetch wraps every page retrieval failure. Callers treat it as "no content".
var ErrFetch = errors.New("fetch failed")

// Fetcher retrieves the HTML of a single page.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (string, error)
}

// PageFetcher issues one GET per page with a fixed timeout and a browser identity.
type PageFetcher struct {
	client       *http.Client
	limiter      *rate.Limiter
	userAgent    string
	maxBodyBytes int64
	logger       *log.Logger
}

// NewPageFetcher builds a fetcher from configuration
func NewPageFetcher(cfg Config, logger *log.Logger) *PageFetcher {
	timeout := time.Duration(cfg.Timeout) * time.Second

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
	// Cookie persistence helps with consent/session redirects between a site's pages
	if jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List}); err == nil {
		client.Jar = jar
	} else {
		logger.Warn().Err(err).Msg("cookie jar unavailable, continuing without")
	}

	burst := int(cfg.RateLimitPerSecond)
	if burst < 1 {
		burst = 1
	}

	return &PageFetcher{
		client:       client,
		limiter:      rate.NewLimiter(rate.Limit(cfg.RateLimitPerSecond), burst),
		userAgent:    cfg.UserAgent,
		maxBodyBytes: cfg.MaxBodyBytes,
		logger:       logger,
	}
}

// Fetch performs an HTTP GET request and returns the decoded response body.
func (f *PageFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: rate limiter: %v", ErrFetch, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetch, err)
	}
	setBrowserHeaders(req, f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: received non-2xx response code: %d", ErrFetch, resp.StatusCode)
	}

	body := io.Reader(resp.Body)
	if f.maxBodyBytes > 0 {
		body = io.LimitReader(resp.Body, f.maxBodyBytes)
	}
	decoded, err := charset.NewReader(body, resp.Header.Get("Content-Type"))
	if err != nil {
		return "", fmt.Errorf("%w: failed to decode body: %v", ErrFetch, err)
	}
	data, err := io.ReadAll(decoded)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read response body: %v", ErrFetch, err)
	}

	f.logger.Trace().Str("url", pageURL).Int("status", resp.StatusCode).Int("bytes", len(data)).Msg("page fetched")
	return string(data), nil
}

// setBrowserHeaders sets enhanced browser headers to reduce bot detection
func setBrowserHeaders(req *http.Request, userAgent string) {
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Site", "none")
}

// isChallengePage detects Cloudflare-style interstitials that need JavaScript.
// Two or more indicators are required; a lone "cloudflare" string is common on normal pages.
func isChallengePage(body string) bool {
	lower := strings.ToLower(body)
	if strings.Contains(lower, "var s,t,o,p,b,r,e,a,k,i,n,g,f") {
		return true
	}

	indicators := []string{
		"challenge-platform",
		"cf-browser-verification",
		"checking your browser",
		"just a moment",
		"ddos protection by cloudflare",
		"cf-challenge",
		"cf_clearance",
	}
	matches := 0
	for _, indicator := range indicators {
		if strings.Contains(lower, indicator) {
			matches++
			if matches >= 2 {
				return true
			}
		}
	}
	return false
}
