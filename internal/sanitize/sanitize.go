// Package sanitize strips unsafe active content from rendered SVG before it
// reaches any presentation surface.
//
// The pipeline is structural: the markup is parsed into a document tree
// first and attribute/URL stripping happens on the tree, never on raw text,
// which closes the regex-bypass class of holes. Input that cannot be parsed
// into an SVG document is neutralized to the empty string: the sanitizer
// fails closed and never passes through unparsed markup. Everything it
// drops is logged; the UI effect of a sanitizer failure is an empty
// rendering, not an error.
package sanitize

import (
	"bytes"
	"context"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"diaview/internal/logging"
)

// Sanitizer removes scripts, event handlers, and unsafe references from SVG
// markup.
type Sanitizer struct {
	logger logging.Logger
}

// New creates a sanitizer.
func New(logger logging.Logger) *Sanitizer {
	return &Sanitizer{logger: logger.WithComponent("sanitizer")}
}

// Sanitize returns a safe serialization of the SVG input.
//
// Guarantees on the output: no <script> elements, no inline event handler
// attributes, no javascript-scheme or external href/xlink:href references.
// Same-document fragment references ("#id") are preserved; <use>/<symbol>
// internal reuse is a legitimate diagram idiom. All other structural and
// presentational markup passes through, including style blocks.
func (s *Sanitizer) Sanitize(ctx context.Context, svg string) string {
	if strings.TrimSpace(svg) == "" {
		return ""
	}

	doc, err := html.Parse(strings.NewReader(svg))
	if err != nil {
		s.logger.Warn(ctx, err, "SVG parse failed, dropping output")
		return ""
	}

	root := findSVG(doc)
	if root == nil {
		s.logger.Warn(ctx, nil, "no svg element in rendered output, dropping")
		return ""
	}

	s.scrub(ctx, root)

	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		s.logger.Warn(ctx, err, "SVG serialization failed, dropping output")
		return ""
	}

	return buf.String()
}

// findSVG locates the first svg element in document order.
func findSVG(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && (n.DataAtom == atom.Svg || strings.EqualFold(n.Data, "svg")) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findSVG(c); found != nil {
			return found
		}
	}
	return nil
}

// scrub removes unsafe nodes and attributes in place.
func (s *Sanitizer) scrub(ctx context.Context, n *html.Node) {
	var next *html.Node
	for c := n.FirstChild; c != nil; c = next {
		next = c.NextSibling
		if c.Type == html.ElementNode && strings.EqualFold(c.Data, "script") {
			s.logger.Debug(ctx, "removed script element")
			n.RemoveChild(c)
			continue
		}
		s.scrub(ctx, c)
	}

	if n.Type != html.ElementNode {
		return
	}

	kept := n.Attr[:0]
	for _, attr := range n.Attr {
		switch {
		case strings.HasPrefix(strings.ToLower(attr.Key), "on"):
			s.logger.Debug(ctx, "removed event handler attribute",
				"element", n.Data, "attribute", attr.Key)
		case isHref(attr) && !safeHref(attr.Val):
			s.logger.Debug(ctx, "removed unsafe reference",
				"element", n.Data, "value", attr.Val)
		default:
			kept = append(kept, attr)
		}
	}
	n.Attr = kept
}

// isHref reports whether the attribute is an href in any namespace.
func isHref(attr html.Attribute) bool {
	key := strings.ToLower(attr.Key)
	return key == "href" || key == "xlink:href" ||
		(strings.EqualFold(attr.Namespace, "xlink") && key == "href")
}

// safeHref reports whether an href value may stay. Fragment references are
// always safe; javascript-scheme, absolute, and protocol-relative external
// URLs are not. Relative same-origin paths pass.
func safeHref(val string) bool {
	trimmed := strings.TrimSpace(val)
	if trimmed == "" {
		return false
	}
	if strings.HasPrefix(trimmed, "#") {
		return true
	}
	if strings.HasPrefix(strings.ToLower(trimmed), "javascript:") {
		return false
	}
	if strings.HasPrefix(trimmed, "//") {
		return false
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return false
	}
	if u.Scheme != "" || u.Host != "" {
		return false
	}

	return true
}
