/*
 * Email Extractor - Markup Strategies
 *
 * Author: Dr.Anach
 * Telegram: @dranach
 */

package main

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

var (
	linkSelector        = cascadia.MustCompile("a")
	metaSelector        = cascadia.MustCompile("meta")
	hiddenInputSelector = cascadia.MustCompile(`form input[type="hidden"]`)
)

// scanVisibleText scans the rendered text of the document. Text nodes are
// joined with spaces so adjacent blocks never glue onto an address.
func scanVisibleText(doc *goquery.Document) CandidateSet {
	found := make(CandidateSet)
	for _, n := range doc.Nodes {
		found.AddAll(findEmails(joinedText(n, true)))
	}
	return found
}

// scanMailtoLinks decodes mailto: targets and scans every other link attribute.
func scanMailtoLinks(doc *goquery.Document) CandidateSet {
	found := make(CandidateSet)
	doc.FindMatcher(linkSelector).Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok && strings.Contains(href, "mailto:") {
			found.Add(decodeMailto(href))
		}
		for _, attr := range s.Nodes[0].Attr {
			found.AddAll(findEmails(attr.Val))
		}
	})
	return found
}

// decodeMailto turns "mailto:foo%40bar.com?subject=hi" into "foo@bar.com".
func decodeMailto(href string) string {
	addr := strings.ReplaceAll(href, "mailto:", "")
	if i := strings.Index(addr, "?"); i >= 0 {
		addr = addr[:i]
	}
	addr = strings.TrimSpace(addr)
	if decoded, err := url.PathUnescape(addr); err == nil {
		addr = decoded
	}
	return addr
}

// scanNamedElements scans elements whose class or id hints at contact details.
func scanNamedElements(doc *goquery.Document, fragments []string) CandidateSet {
	found := make(CandidateSet)
	doc.Find("[class], [id]").Each(func(_ int, s *goquery.Selection) {
		class, _ := s.Attr("class")
		id, _ := s.Attr("id")
		if !containsAny(strings.ToLower(class), fragments) && !containsAny(strings.ToLower(id), fragments) {
			return
		}
		found.AddAll(findEmails(joinedText(s.Nodes[0], false)))
		for _, attr := range s.Nodes[0].Attr {
			found.AddAll(findEmails(attr.Val))
		}
	})
	return found
}

// scanAllTags scans the direct text and every attribute of every element.
func scanAllTags(doc *goquery.Document) CandidateSet {
	found := make(CandidateSet)
	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		n := s.Nodes[0]
		found.AddAll(findEmails(directText(n)))
		for _, attr := range n.Attr {
			found.AddAll(findEmails(attr.Val))
		}
	})
	return found
}

// scanMetaTags scans the content attribute of every meta element.
func scanMetaTags(doc *goquery.Document) CandidateSet {
	found := make(CandidateSet)
	doc.FindMatcher(metaSelector).Each(func(_ int, s *goquery.Selection) {
		content, _ := s.Attr("content")
		found.AddAll(findEmails(content))
	})
	return found
}

// scanHiddenFormFields scans hidden inputs inside forms; contact forms often
// carry the recipient address there.
func scanHiddenFormFields(doc *goquery.Document) CandidateSet {
	found := make(CandidateSet)
	doc.FindMatcher(hiddenInputSelector).Each(func(_ int, s *goquery.Selection) {
		value, _ := s.Attr("value")
		found.AddAll(findEmails(value))
	})
	return found
}

// joinedText concatenates all descendant text nodes with a space separator.
// With visibleOnly, script and style bodies are skipped.
func joinedText(root *html.Node, visibleOnly bool) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if visibleOnly && n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return b.String()
}

// directText returns only the element's own text children.
func directText(n *html.Node) string {
	var parts []string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			parts = append(parts, c.Data)
		}
	}
	return strings.Join(parts, " ")
}

func containsAny(s string, fragments []string) bool {
	if s == "" {
		return false
	}
	for _, f := range fragments {
		if f != "" && strings.Contains(s, f) {
			return true
		}
	}
	return false
}
