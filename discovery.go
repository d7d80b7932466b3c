/*
 * Email Extractor - Site Discovery Module
 *
 * Author: Dr.Anach
 * Telegram: @dranach
 */

package main

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/phuslu/log"
)

// SiteState tracks where a site is in its discovery.
type SiteState string

const (
	SiteFetching SiteState = "fetching"
	SiteResolved SiteState = "resolved"
)

// PageReport describes the outcome of a single page visit.
type PageReport struct {
	URL        string
	Contact    bool
	Candidates int
	Challenge  bool
	Err        error
}

// SiteResult is the cleaned, ordered outcome for one site.
type SiteResult struct {
	Site         string
	URL          string
	Domain       string
	Emails       []string
	Pages        []PageReport
	PagesFetched int
	PagesFailed  int
	Challenges   int
	State        SiteState
}

// SiteDiscoverer visits a site's base URL and its contact paths and
// returns the cleaned union of everything the extractor found.
type SiteDiscoverer struct {
	fetcher  Fetcher
	extract  func(body string, contact bool) CandidateSet
	lists    Lists
	verifyMX MXVerifier
	logger   *log.Logger
}

// NewSiteDiscoverer wires a discoverer. verifyMX may be nil.
func NewSiteDiscoverer(fetcher Fetcher, lists Lists, verifyMX MXVerifier, logger *log.Logger) *SiteDiscoverer {
	return &SiteDiscoverer{
		fetcher:  fetcher,
		extract:  NewExtractor(lists).Extract,
		lists:    lists,
		verifyMX: verifyMX,
		logger:   logger,
	}
}

// NormalizeSiteURL prepends https:// when the input carries no http(s) scheme.
func NormalizeSiteURL(site string) string {
	site = strings.TrimSpace(site)
	lower := strings.ToLower(site)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return site
	}
	return "https://" + site
}

// Discover fetches the base page and every contact path in order. Page
// failures contribute nothing and never abort the site. A cancelled
// context stops the walk between pages.
func (d *SiteDiscoverer) Discover(ctx context.Context, site string) SiteResult {
	baseURL := NormalizeSiteURL(site)
	result := SiteResult{
		Site:   site,
		URL:    baseURL,
		Domain: RegistrableDomain(baseURL),
		State:  SiteFetching,
	}

	candidates := make(CandidateSet)
	candidates.Merge(d.visit(ctx, baseURL, false, &result))

	base, err := url.Parse(baseURL)
	if err != nil {
		d.logger.Debug().Str("site", site).Err(err).Msg("base url unparseable, skipping contact pages")
	} else {
		for _, path := range d.lists.ContactPages {
			if ctx.Err() != nil {
				break
			}
			ref, err := url.Parse(path)
			if err != nil {
				continue
			}
			contactURL := base.ResolveReference(ref).String()
			if contactURL == baseURL {
				continue
			}
			candidates.Merge(d.visit(ctx, contactURL, true, &result))
		}
	}

	emails := CleanEmails(candidates.Slice(), result.Domain, d.lists.IgnoreDomains)
	if d.verifyMX != nil {
		emails = filterEmails(emails, d.verifyMX)
	}
	result.Emails = emails
	result.State = SiteResolved

	d.logger.Info().
		Str("site", site).
		Str("domain", result.Domain).
		Int("emails", len(result.Emails)).
		Int("pages_fetched", result.PagesFetched).
		Int("pages_failed", result.PagesFailed).
		Int("challenges", result.Challenges).
		Msg("site processed")
	return result
}

func (d *SiteDiscoverer) visit(ctx context.Context, pageURL string, contact bool, result *SiteResult) CandidateSet {
	report := PageReport{URL: pageURL, Contact: contact}
	defer func() { result.Pages = append(result.Pages, report) }()

	if err := ctx.Err(); err != nil {
		report.Err = err
		result.PagesFailed++
		return nil
	}

	body, err := d.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		report.Err = err
		result.PagesFailed++
		d.logger.Debug().Str("url", pageURL).Err(err).Msg("page fetch failed")
		return nil
	}

	if isChallengePage(body) {
		report.Challenge = true
		result.Challenges++
		d.logger.Debug().Str("url", pageURL).Msg("challenge page detected")
	}

	found, err := d.safeExtract(body, contact)
	if err != nil {
		report.Err = err
		result.PagesFailed++
		d.logger.Debug().Str("url", pageURL).Err(err).Msg("page extraction failed")
		return nil
	}
	result.PagesFetched++
	report.Candidates = len(found)
	return found
}

// safeExtract turns a panic inside the extraction strategies into a page error.
func (d *SiteDiscoverer) safeExtract(body string, contact bool) (found CandidateSet, err error) {
	defer func() {
		if r := recover(); r != nil {
			found, err = nil, fmt.Errorf("extraction panicked: %v", r)
		}
	}()
	return d.extract(body, contact), nil
}

// filterEmails keeps the emails accepted by keep, preserving order.
func filterEmails(emails []string, keep func(string) bool) []string {
	out := make([]string, 0, len(emails))
	for _, e := range emails {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}
