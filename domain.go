/*
 * Email Extractor - Domain Module
 *
 * Author: Dr.Anach
 * Telegram: @dranach
 */

package main

import (
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// RegistrableDomain returns the organisation-level domain of a URL or bare
// host (https://mail.example.co.uk/x -> example.co.uk). It returns "" when
// the input cannot be resolved.
func RegistrableDomain(rawURL string) string {
	host := hostOf(rawURL)
	if host == "" || net.ParseIP(host) != nil {
		return ""
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return ""
	}
	return domain
}

func hostOf(rawURL string) string {
	s := strings.TrimSpace(rawURL)
	if s == "" {
		return ""
	}
	if !strings.Contains(s, "://") {
		s = "//" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return ""
	}
	return strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
}

// domainMatches reports whether an email domain belongs to the site's
// registrable domain (equal, or a subdomain of it).
func domainMatches(emailDomain, siteDomain string) bool {
	if siteDomain == "" {
		return false
	}
	return emailDomain == siteDomain || strings.HasSuffix(emailDomain, "."+siteDomain)
}
