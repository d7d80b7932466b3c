/*
 * Email Extractor - Script Strategies
 *
 * Author: Dr.Anach
 * Telegram: @dranach
 */

package main

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/kaptinlin/jsonrepair"
)

var (
	scriptSelector = cascadia.MustCompile("script")

	// braceFragmentPattern grabs innermost {...} objects; nested objects are
	// reached one level at a time as their own fragments.
	braceFragmentPattern = regexp.MustCompile(`\{[^{}]*\}`)

	quotedFragmentPattern = regexp.MustCompile(`['"]([a-zA-Z0-9._%+,/:;<=>?@-]+)['"]`)

	obfuscationSignatures = []*regexp.Regexp{
		regexp.MustCompile(`['"]\s*\+\s*['"]`), // 'user' + '@' + 'domain.com'
		regexp.MustCompile(`\.join\(`),
		regexp.MustCompile(`\.reverse\(`),
		regexp.MustCompile(`String\.fromCharCode`),
	}
)

// inlineScripts returns the bodies of every non-empty inline script.
func inlineScripts(doc *goquery.Document) []string {
	var bodies []string
	doc.FindMatcher(scriptSelector).Each(func(_ int, s *goquery.Selection) {
		if body := s.Text(); strings.TrimSpace(body) != "" {
			bodies = append(bodies, body)
		}
	})
	return bodies
}

// scanScripts pulls addresses out of inline script payloads: key-specific
// JSON patterns, a plain regex pass, and a walk over parsed {...} fragments.
func scanScripts(doc *goquery.Document, keyPatterns []*regexp.Regexp) CandidateSet {
	found := make(CandidateSet)
	for _, body := range inlineScripts(doc) {
		for _, re := range keyPatterns {
			for _, m := range re.FindAllStringSubmatch(body, -1) {
				found.Add(m[1])
			}
		}
		found.AddAll(findEmails(body))
		for _, fragment := range braceFragmentPattern.FindAllString(body, -1) {
			value, ok := parseJSONFragment(fragment)
			if !ok {
				continue
			}
			collectJSONEmails(value, found)
		}
	}
	return found
}

// parseJSONFragment decodes a fragment as JSON. JavaScript object literals
// (unquoted keys, single quotes) get one repair attempt; anything still
// unparseable is skipped.
func parseJSONFragment(fragment string) (any, bool) {
	var value any
	if err := json.Unmarshal([]byte(fragment), &value); err == nil {
		return value, true
	}
	repaired, err := jsonrepair.JSONRepair(fragment)
	if err != nil {
		return nil, false
	}
	if err := json.Unmarshal([]byte(repaired), &value); err != nil {
		return nil, false
	}
	return value, true
}

// collectJSONEmails walks decoded JSON and captures string values stored
// under email/mail/contact keys that look like addresses.
func collectJSONEmails(value any, found CandidateSet) {
	switch v := value.(type) {
	case map[string]any:
		for key, child := range v {
			if s, ok := child.(string); ok {
				if isEmailKey(key) && strings.Contains(s, "@") && strings.Contains(s, ".") {
					found.Add(s)
				}
				continue
			}
			collectJSONEmails(child, found)
		}
	case []any:
		for _, item := range v {
			collectJSONEmails(item, found)
		}
	}
}

func isEmailKey(key string) bool {
	k := strings.ToLower(key)
	return strings.Contains(k, "email") || strings.Contains(k, "mail") || strings.Contains(k, "contact")
}

// scanProviderDomains scans raw HTML for personal-provider addresses that
// nested markup hides from the structural scans.
func scanProviderDomains(rawHTML string, patterns []*regexp.Regexp) CandidateSet {
	found := make(CandidateSet)
	if !strings.Contains(rawHTML, "@") {
		return found
	}
	for _, re := range patterns {
		found.AddAll(re.FindAllString(rawHTML, -1))
	}
	return found
}

// scanObfuscatedScripts reconstructs addresses built by simple script
// obfuscation. All quoted literals of a suspicious script are concatenated
// in source order and scanned; this is lossy and can also produce
// accidental matches from unrelated strings.
func scanObfuscatedScripts(doc *goquery.Document) CandidateSet {
	found := make(CandidateSet)
	for _, body := range inlineScripts(doc) {
		lower := strings.ToLower(body)
		if !strings.Contains(lower, "email") && !strings.Contains(lower, "mail") && !strings.Contains(lower, "contact") {
			continue
		}
		if !hasObfuscationSignature(body) {
			continue
		}

		var b strings.Builder
		for _, m := range quotedFragmentPattern.FindAllStringSubmatch(body, -1) {
			b.WriteString(m[1])
		}
		reconstructed := b.String()
		if strings.Contains(reconstructed, "@") {
			found.AddAll(findEmails(reconstructed))
		}
	}
	return found
}

func hasObfuscationSignature(script string) bool {
	for _, re := range obfuscationSignatures {
		if re.MatchString(script) {
			return true
		}
	}
	return false
}
