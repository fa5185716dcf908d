// Package highlight marks a single text span inside rendered lesson HTML.
//
// Text nodes are addressed by their zero-based index in document order and
// offsets are counted in UTF-16 code units, the way browser Range objects report them.
// A Document holds at most one active mark, a <span class="highlight"> element.
package highlight

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf16"

	"github.com/esllessons/backend/internal/models"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ClassName is the class attribute value of the mark element
const ClassName = "highlight"

var (
	// ErrInvalidSelection is returned for selections that cannot be highlighted
	ErrInvalidSelection = errors.New("invalid selection")
	// ErrMarkActive is returned by Mark while a previous mark has not been cleared
	ErrMarkActive = errors.New("highlight already active")
	// ErrDetached is returned by Clear when the mark is no longer part of the document
	ErrDetached = errors.New("highlight is detached from the document")
)

// Document is a parsed lesson fragment
type Document struct {
	root *html.Node
	mark *html.Node
}

// Range is a resolved span inside one text node
type Range struct {
	node  *html.Node
	start int
	end   int
}

// Text returns the selected text without trimming
func (r *Range) Text() string {
	units := utf16.Encode([]rune(r.node.Data))
	return string(utf16.Decode(units[r.start:r.end]))
}

// Parse parses an HTML fragment
func Parse(content string) (*Document, error) {
	container := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}

	nodes, err := html.ParseFragment(strings.NewReader(content), container)
	if err != nil {
		return nil, fmt.Errorf("failed to parse lesson html: %w", err)
	}

	for _, n := range nodes {
		container.AppendChild(n)
	}

	return &Document{root: container}, nil
}

// HTML renders the document including the active mark
func (d *Document) HTML() string {
	var buf bytes.Buffer
	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		// Rendering into a bytes.Buffer does not fail for parsed trees
		_ = html.Render(&buf, c)
	}
	return buf.String()
}

// HasMark reports whether a mark is active
func (d *Document) HasMark() bool {
	return d.mark != nil
}

// TextNodeCount returns the number of text nodes, whitespace-only nodes included
func (d *Document) TextNodeCount() int {
	return len(d.textNodes())
}

func (d *Document) textNodes() []*html.Node {
	var nodes []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				nodes = append(nodes, c)
				continue
			}
			walk(c)
		}
	}
	walk(d.root)
	return nodes
}

// Resolve validates a selection against the current document
func (d *Document) Resolve(sel models.Selection) (*Range, error) {
	if sel.Node != sel.EndNode {
		return nil, fmt.Errorf("%w: selection spans multiple text nodes", ErrInvalidSelection)
	}

	nodes := d.textNodes()
	if sel.Node < 0 || sel.Node >= len(nodes) {
		return nil, fmt.Errorf("%w: text node %d out of range", ErrInvalidSelection, sel.Node)
	}

	node := nodes[sel.Node]
	units := utf16.Encode([]rune(node.Data))
	if sel.Start < 0 || sel.End > len(units) || sel.Start >= sel.End {
		return nil, fmt.Errorf("%w: offsets %d..%d outside text of length %d", ErrInvalidSelection, sel.Start, sel.End, len(units))
	}
	if splitsSurrogate(units, sel.Start) || splitsSurrogate(units, sel.End) {
		return nil, fmt.Errorf("%w: offset splits a character", ErrInvalidSelection)
	}

	return &Range{node: node, start: sel.Start, end: sel.End}, nil
}

func splitsSurrogate(units []uint16, offset int) bool {
	if offset <= 0 || offset >= len(units) {
		return false
	}
	high, low := units[offset-1], units[offset]
	return high >= 0xD800 && high <= 0xDBFF && low >= 0xDC00 && low <= 0xDFFF
}

// Mark wraps the range in a highlight element and returns the trimmed selected text.
// Whitespace-only selections are rejected.
func (d *Document) Mark(r *Range) (string, error) {
	if d.mark != nil {
		return "", ErrMarkActive
	}

	parent := r.node.Parent
	if parent == nil {
		return "", fmt.Errorf("%w: text node is detached", ErrInvalidSelection)
	}

	units := utf16.Encode([]rune(r.node.Data))
	if r.start < 0 || r.end > len(units) || r.start >= r.end {
		return "", fmt.Errorf("%w: stale range", ErrInvalidSelection)
	}

	before := string(utf16.Decode(units[:r.start]))
	middle := string(utf16.Decode(units[r.start:r.end]))
	after := string(utf16.Decode(units[r.end:]))

	text := strings.TrimSpace(middle)
	if text == "" {
		return "", fmt.Errorf("%w: empty selection", ErrInvalidSelection)
	}

	span := &html.Node{
		Type:     html.ElementNode,
		Data:     "span",
		DataAtom: atom.Span,
		Attr:     []html.Attribute{{Key: "class", Val: ClassName}},
	}
	span.AppendChild(&html.Node{Type: html.TextNode, Data: middle})

	next := r.node.NextSibling
	parent.InsertBefore(span, next)
	if after != "" {
		parent.InsertBefore(&html.Node{Type: html.TextNode, Data: after}, next)
	}
	if before == "" {
		parent.RemoveChild(r.node)
	} else {
		r.node.Data = before
	}

	d.mark = span
	return text, nil
}

// Clear unwraps the active mark and merges the text around it.
// Ranges passed in keep are re-pointed so they address the same text afterwards.
// The mark is forgotten even when clearing fails.
func (d *Document) Clear(keep ...*Range) error {
	span := d.mark
	if span == nil {
		return nil
	}
	d.mark = nil

	parent := span.Parent
	if parent == nil {
		return ErrDetached
	}

	for c := span.FirstChild; c != nil; c = span.FirstChild {
		span.RemoveChild(c)
		parent.InsertBefore(c, span)
	}
	parent.RemoveChild(span)

	mergeText(parent, keep)
	return nil
}

// mergeText joins adjacent text children of parent
func mergeText(parent *html.Node, keep []*Range) {
	c := parent.FirstChild
	for c != nil {
		next := c.NextSibling
		if c.Type != html.TextNode || next == nil || next.Type != html.TextNode {
			c = next
			continue
		}

		shift := len(utf16.Encode([]rune(c.Data)))
		for _, r := range keep {
			if r != nil && r.node == next {
				r.node = c
				r.start += shift
				r.end += shift
			}
		}
		c.Data += next.Data
		parent.RemoveChild(next)
	}
}
