/*
 * Email Extractor - Validation Module
 *
 * Author: Dr.Anach
 * Telegram: @dranach
 */

package main

import (
	"regexp"
	"strings"

	"github.com/mcnijman/go-emailaddress"
)

var (
	// emailPattern finds email-shaped substrings in arbitrary text.
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	// strictEmailPattern is the full-string grammar a validated email must satisfy.
	strictEmailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	edgeNoisePattern   = regexp.MustCompile(`^[^a-zA-Z0-9]+|[^a-zA-Z0-9.]+$`)
	dimensionPattern   = regexp.MustCompile(`\d+x\d+`)
)

// imageExtensions mark a greedy match that swallowed a filename such as logo@2x.png
var imageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".ico"}

// ValidateEmail cleans a raw candidate and reports whether it is a plausible
// address. The returned string is lower-cased and stripped of edge noise.
func ValidateEmail(raw string) (string, bool) {
	email := strings.ToLower(strings.TrimSpace(raw))

	for _, ext := range imageExtensions {
		if strings.Contains(email, ext) {
			return "", false
		}
	}

	email = edgeNoisePattern.ReplaceAllString(email, "")
	if !strictEmailPattern.MatchString(email) {
		return "", false
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 || !strings.Contains(parts[1], ".") {
		return "", false
	}

	// 300x200 style domains come from CSS sizes next to an @ (retina sprites and the like)
	if dimensionPattern.MatchString(parts[1]) {
		return "", false
	}
	return email, true
}

// splitEmail returns the local part and domain of an already validated email.
func splitEmail(email string) (local, domain string) {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email, ""
	}
	return email[:at], email[at+1:]
}

// MXVerifier checks that an email's domain can receive mail.
type MXVerifier func(email string) bool

// hasMailHost resolves the MX (or fallback A) records for the email's domain.
func hasMailHost(email string) bool {
	local, domain := splitEmail(email)
	if domain == "" {
		return false
	}
	addr := emailaddress.EmailAddress{LocalPart: local, Domain: domain}
	return addr.ValidateHost() == nil
}
