package util

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(s)
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for j := range s {
		if i == n {
			return s[:j]
		}
		i++
	}
	return s
}

// FirstText returns the cleaned text of the first selector that matches
// something non-empty inside sel.
func FirstText(sel *goquery.Selection, selectors ...string) string {
	for _, css := range selectors {
		if t := CleanText(sel.Find(css).First().Text()); t != "" {
			return t
		}
	}
	return ""
}

// FirstAttr is FirstText for an attribute.
func FirstAttr(sel *goquery.Selection, attr string, selectors ...string) string {
	for _, css := range selectors {
		if v, ok := sel.Find(css).First().Attr(attr); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

var blockTags = map[string]bool{
	"p": true, "div": true, "li": true, "ul": true, "ol": true, "br": true, "tr": true,
	"dt": true, "dd": true, "dl": true, "table": true, "section": true, "article": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// BlockText is the node's text with block elements on their own lines, so
// "Label: value" pairs in separate elements don't run together.
func BlockText(sel *goquery.Selection) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
		}
		block := n.Type == html.ElementNode && blockTags[n.Data]
		if block {
			b.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			b.WriteByte('\n')
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}

	var lines []string
	for _, l := range strings.Split(b.String(), "\n") {
		if t := CleanText(l); t != "" {
			lines = append(lines, t)
		}
	}
	return strings.Join(lines, "\n")
}

func LooksLikeJunkTitle(t string) bool {
	l := strings.ToLower(CleanText(t))
	switch l {
	case "", "view", "apply", "apply now", "read more", "more", "details":
		return true
	}
	return false
}

// FirstLink returns the text and href of the first selector matching an
// anchor that has both.
func FirstLink(sel *goquery.Selection, selectors ...string) (text, href string) {
	for _, css := range selectors {
		a := sel.Find(css).First()
		t := CleanText(a.Text())
		h, _ := a.Attr("href")
		if t != "" && strings.TrimSpace(h) != "" {
			return t, strings.TrimSpace(h)
		}
	}
	return "", ""
}
