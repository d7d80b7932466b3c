/*
 * Email Extractor - Static Lists
 *
 * Author: Dr.Anach
 * Telegram: @dranach
 */

package main

// Lists holds the fixed lookup tables used by the discovery pipeline.
// Values are read-only once handed to a component.
type Lists struct {
	// ContactPages are tried, in order, against every site's base URL.
	ContactPages []string
	// IgnoreDomains are platform/vendor domains whose addresses are never leads.
	IgnoreDomains []string
	// CommonEmailDomains are personal-mail providers scanned for in raw HTML.
	CommonEmailDomains []string
	// EmailClassNames are class/id fragments that mark contact markup.
	EmailClassNames []string
	// ScriptEmailKeys are JSON keys pulled out of inline scripts by pattern.
	ScriptEmailKeys []string
}

// DefaultLists returns fresh copies of the built-in tables.
func DefaultLists() Lists {
	return Lists{
		ContactPages: []string{
			"/contact", "/contact-us", "/contact.html", "/contact-us.html",
			"/about", "/about-us", "/about.html", "/about-us.html",
			"/get-in-touch", "/reach-us", "/connect", "/reach-out",
			"/our-team", "/team", "/support", "/help", "/info",
		},
		IgnoreDomains: []string{
			"wix.com", "domain.com", "example.com", "sentry.io",
			"wixpress.com", "squarespace.com", "wordpress.com", "shopify.com",
		},
		CommonEmailDomains: []string{
			"gmail.com", "yahoo.com", "outlook.com", "hotmail.com", "aol.com", "icloud.com",
			"protonmail.com", "mail.com", "zoho.com", "yandex.com", "gmx.com",
		},
		EmailClassNames: []string{
			"email", "mail", "e-mail", "contact", "email-address", "mail-link", "mini-contacts",
			"footer-contact", "header-contact", "contact-info", "contact-details", "contact-email",
			"footer-email", "header-email", "info",
		},
		ScriptEmailKeys: []string{
			"email", "emailAddress", "mail", "e-mail", "contactEmail", "support_email",
		},
	}
}
