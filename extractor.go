/*
 * Email Extractor - Extraction Module
 *
 * Author: Dr.Anach
 * Telegram: @dranach
 */

package main

import (
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// CandidateSet is an unordered set of raw, unvalidated email-like strings.
type CandidateSet map[string]struct{}

// Add inserts a candidate, ignoring blanks.
func (c CandidateSet) Add(s string) {
	if s = strings.TrimSpace(s); s != "" {
		c[s] = struct{}{}
	}
}

// AddAll inserts every candidate in the slice.
func (c CandidateSet) AddAll(items []string) {
	for _, s := range items {
		c.Add(s)
	}
}

// Merge unions other into c.
func (c CandidateSet) Merge(other CandidateSet) {
	for s := range other {
		c[s] = struct{}{}
	}
}

// Slice returns the candidates in sorted order.
func (c CandidateSet) Slice() []string {
	out := make([]string, 0, len(c))
	for s := range c {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Extractor runs every extraction strategy against a page.
type Extractor struct {
	classNames      []string
	scriptKeys      []*regexp.Regexp
	providerPattern []*regexp.Regexp
}

// NewExtractor compiles the list-driven patterns once.
func NewExtractor(lists Lists) *Extractor {
	e := &Extractor{classNames: lowerAll(lists.EmailClassNames)}
	for _, key := range lists.ScriptEmailKeys {
		e.scriptKeys = append(e.scriptKeys,
			regexp.MustCompile(`"`+regexp.QuoteMeta(key)+`"\s*:\s*"([^"]+@[^"]+\.[^"]+)"`))
	}
	for _, domain := range lists.CommonEmailDomains {
		e.providerPattern = append(e.providerPattern,
			regexp.MustCompile(`[a-zA-Z0-9._%+-]+@`+regexp.QuoteMeta(domain)))
	}
	return e
}

// Extract returns the union of every strategy's candidates for one page.
// Obfuscation and hidden form scans only run on contact-style pages.
func (e *Extractor) Extract(html string, isContactPage bool) CandidateSet {
	found := make(CandidateSet)
	if strings.TrimSpace(html) == "" {
		return found
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return found
	}

	found.Merge(scanVisibleText(doc))
	found.Merge(scanMailtoLinks(doc))
	found.Merge(scanNamedElements(doc, e.classNames))
	found.Merge(scanAllTags(doc))
	found.Merge(scanScripts(doc, e.scriptKeys))
	found.Merge(scanMetaTags(doc))
	found.Merge(scanProviderDomains(html, e.providerPattern))
	if isContactPage {
		found.Merge(scanObfuscatedScripts(doc))
		found.Merge(scanHiddenFormFields(doc))
	}
	return found
}

// findEmails returns every email-shaped substring of text.
func findEmails(text string) []string {
	if !strings.Contains(text, "@") {
		return nil
	}
	return emailPattern.FindAllString(text, -1)
}
