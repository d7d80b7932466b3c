/*
 * Email Extractor - Cleanup Module
 *
 * Author: Dr.Anach
 * Telegram: @dranach
 */

package main

import (
	"sort"
	"strings"
)

// CleanEmails validates raw candidates, drops ignored domains, collapses
// nested duplicates and orders the survivors with site-domain emails first.
// The result is never nil.
func CleanEmails(candidates []string, siteDomain string, ignoreDomains []string) []string {
	clean := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		email, ok := ValidateEmail(c)
		if !ok || isIgnoredEmail(email, ignoreDomains) {
			continue
		}
		clean[email] = struct{}{}
	}

	emails := make([]string, 0, len(clean))
	for e := range clean {
		emails = append(emails, e)
	}
	return prioritizeEmails(collapseNested(emails), siteDomain)
}

func isIgnoredEmail(email string, ignoreDomains []string) bool {
	_, domain := splitEmail(email)
	for _, ignored := range ignoreDomains {
		if ignored != "" && strings.Contains(domain, ignored) {
			return true
		}
	}
	return false
}

// collapseNested removes addresses that are another address on the same
// domain with extra noise around the local part, e.g. 501-3362hello@x.com
// next to hello@x.com, or project.info@x.com next to info@x.com.
// Pairwise comparison; per-site candidate lists are small.
func collapseNested(emails []string) []string {
	remove := make(map[string]bool)
	for i := range emails {
		for j := range emails {
			if i == j || emails[i] == emails[j] {
				continue
			}
			user1, domain1 := splitEmail(emails[i])
			user2, domain2 := splitEmail(emails[j])
			if domain1 != domain2 {
				continue
			}
			switch {
			case strings.Contains(user2, user1):
				remove[emails[j]] = true
			case strings.Contains(user1, user2):
				remove[emails[i]] = true
			case lastDotSegment(user1) == user2:
				remove[emails[i]] = true
			case lastDotSegment(user2) == user1:
				remove[emails[j]] = true
			}
		}
	}

	kept := make([]string, 0, len(emails))
	for _, e := range emails {
		if !remove[e] {
			kept = append(kept, e)
		}
	}
	return kept
}

// lastDotSegment returns the part after the final "." or "" when there is none.
func lastDotSegment(user string) string {
	i := strings.LastIndex(user, ".")
	if i < 0 {
		return ""
	}
	return user[i+1:]
}

// prioritizeEmails sorts site-domain addresses ahead of everything else.
func prioritizeEmails(emails []string, siteDomain string) []string {
	var own, other []string
	for _, e := range emails {
		_, domain := splitEmail(e)
		if domainMatches(domain, siteDomain) {
			own = append(own, e)
		} else {
			other = append(other, e)
		}
	}
	sort.Strings(own)
	sort.Strings(other)

	out := make([]string, 0, len(emails))
	out = append(out, own...)
	return append(out, other...)
}
