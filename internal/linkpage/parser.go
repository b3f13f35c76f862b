package linkpage

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Page is what a link-in-bio page exposes.
type Page struct {
	// URL is the final page URL.
	URL string
	// Title is the text of the <title> element.
	Title string
	// Description is the description or og:description meta content.
	Description string
	// Links are absolute http(s) links pointing away from the page's host,
	// in document order without duplicates.
	Links []string
	// Emails are addresses taken from mailto: anchors.
	Emails []string
	// Phones are numbers taken from tel: anchors.
	Phones []string
	// Text is the visible text of the page, whitespace collapsed.
	Text string
}

// ExtraText flattens the page into lines suitable for contact extraction.
func (p *Page) ExtraText() []string {
	if p == nil {
		return nil
	}
	out := make([]string, 0, len(p.Links)+len(p.Emails)+len(p.Phones)+2)
	if p.Description != "" {
		out = append(out, p.Description)
	}
	out = append(out, p.Links...)
	out = append(out, p.Emails...)
	out = append(out, p.Phones...)
	if p.Text != "" {
		out = append(out, p.Text)
	}
	return out
}

// Parse reads an HTML document located at pageURL.
func Parse(pageURL string, r io.Reader) (*Page, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	p := &Page{URL: pageURL}
	seen := make(map[string]bool)
	var text strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "noscript", "template":
				return
			case "title":
				if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					p.Title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "meta":
				name := getAttr(n, "name")
				if name == "" {
					name = getAttr(n, "property")
				}
				if (name == "description" || name == "og:description") && p.Description == "" {
					p.Description = strings.TrimSpace(getAttr(n, "content"))
				}
			case "a":
				p.addAnchor(base, getAttr(n, "href"), seen)
			}
		case html.TextNode:
			if s := strings.TrimSpace(n.Data); s != "" {
				text.WriteString(s)
				text.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	p.Text = strings.Join(strings.Fields(text.String()), " ")
	return p, nil
}

func (p *Page) addAnchor(base *url.URL, href string, seen map[string]bool) {
	href = strings.TrimSpace(href)
	lower := strings.ToLower(href)
	switch {
	case href == "" || href == "#" || strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "data:"):
		return
	case strings.HasPrefix(lower, "mailto:"):
		addr := strings.SplitN(href[len("mailto:"):], "?", 2)[0]
		if addr, err := url.PathUnescape(addr); err == nil && addr != "" && !seen["mailto:"+addr] {
			seen["mailto:"+addr] = true
			p.Emails = append(p.Emails, addr)
		}
		return
	case strings.HasPrefix(lower, "tel:"):
		num := strings.TrimSpace(href[len("tel:"):])
		if num != "" && !seen["tel:"+num] {
			seen["tel:"+num] = true
			p.Phones = append(p.Phones, num)
		}
		return
	}

	u, err := url.Parse(href)
	if err != nil {
		return
	}
	resolved := base.ResolveReference(u)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return
	}
	if strings.EqualFold(resolved.Hostname(), base.Hostname()) {
		return
	}
	resolved.Fragment = ""
	s := resolved.String()
	if !seen[s] {
		seen[s] = true
		p.Links = append(p.Links, s)
	}
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
