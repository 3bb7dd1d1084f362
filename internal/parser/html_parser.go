// Package parser extracts hyperlinks and page metadata from HTML documents.
// It streams the document through the x/net/html tokenizer, so malformed
// markup yields whatever links precede the point where parsing gives up.
package parser

import (
	"bytes"
	"iter"
	"strings"

	"golang.org/x/net/html"
)

// Link is a raw hyperlink exactly as written in the document
type Link struct {
	Href string // Attribute value, entities decoded, not resolved
	Tag  string // Element the link was found on (a, area, link, img)
}

// Options controls which elements are treated as links
type Options struct {
	// Broad adds <area href>, <link href> and <img src> to the default <a href>
	Broad bool
}

// Meta holds document level information used when recording a page
type Meta struct {
	Title    string
	BaseHref string
}

// linkAttrs maps element names to the attribute carrying their target
var linkAttrs = map[string]string{
	"a":    "href",
	"area": "href",
	"link": "href",
	"img":  "src",
}

// Links returns the hyperlinks of content in document order. The sequence is
// lazy: the document is tokenized while the caller ranges over it, and each
// range starts over from the beginning of content.
func Links(content []byte, opts Options) iter.Seq[Link] {
	return func(yield func(Link) bool) {
		z := html.NewTokenizer(bytes.NewReader(content))
		for {
			switch z.Next() {
			case html.ErrorToken:
				// io.EOF or a tokenizer error; either way we are done
				return
			case html.StartTagToken, html.SelfClosingTagToken:
				name, hasAttr := z.TagName()
				if !hasAttr {
					continue
				}

				tag := string(name)
				if tag != "a" && !opts.Broad {
					continue
				}
				want, ok := linkAttrs[tag]
				if !ok {
					continue
				}

				if href, found := attr(z, want); found {
					if !yield(Link{Href: href, Tag: tag}) {
						return
					}
				}
			}
		}
	}
}

// Hrefs is Links reduced to the raw href strings.
func Hrefs(content []byte, opts Options) iter.Seq[string] {
	return func(yield func(string) bool) {
		for link := range Links(content, opts) {
			if !yield(link.Href) {
				return
			}
		}
	}
}

// ParseMeta extracts the page title and the first <base href> value.
func ParseMeta(content []byte) Meta {
	var meta Meta
	var inTitle, titleDone, baseDone bool

	z := html.NewTokenizer(bytes.NewReader(content))
	for !(titleDone && baseDone) {
		switch z.Next() {
		case html.ErrorToken:
			return meta
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			switch string(name) {
			case "title":
				inTitle = !titleDone
			case "base":
				if hasAttr && !baseDone {
					if href, found := attr(z, "href"); found && strings.TrimSpace(href) != "" {
						meta.BaseHref = strings.TrimSpace(href)
						baseDone = true
					}
				}
			}
		case html.TextToken:
			if inTitle {
				meta.Title = strings.Join(strings.Fields(string(z.Text())), " ")
				inTitle = false
				titleDone = true
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) == "title" && inTitle {
				inTitle = false
				titleDone = true
			}
		}
	}

	return meta
}

// BaseHref returns the first non-empty <base href> of content, or "".
func BaseHref(content []byte) string {
	return ParseMeta(content).BaseHref
}

// attr scans the remaining attributes of the current tag for key
func attr(z *html.Tokenizer, key string) (string, bool) {
	for {
		k, v, more := z.TagAttr()
		if string(k) == key {
			return string(v), true
		}
		if !more {
			return "", false
		}
	}
}
