// Package docx converts Word (.docx) documents into lesson HTML.
//
// Only the main document part is read. Paragraph styles Title and Heading1..Heading6
// become headings, numbered paragraphs become list items, tables keep their row and
// cell structure, and bold/italic/underline runs are wrapped in strong/em/u.
package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"strings"
)

// ErrInvalidDocument is returned when the input is not a readable DOCX document
var ErrInvalidDocument = errors.New("invalid docx document")

const (
	documentPart = "word/document.xml"
	// defaultMaxPartSize bounds the decompressed size of the document part
	defaultMaxPartSize = 64 << 20
	markupCompatNS     = "http://schemas.openxmlformats.org/markup-compatibility/2006"
)

// Converter converts DOCX buffers to HTML
type Converter struct {
	maxPartSize int64
}

// NewConverter creates a new DOCX converter
func NewConverter() *Converter {
	return &Converter{maxPartSize: defaultMaxPartSize}
}

// Name returns the converter name for logging
func (c *Converter) Name() string {
	return "docx"
}

// SupportedExtensions returns the file extensions accepted by the converter
func (c *Converter) SupportedExtensions() []string {
	return []string{".docx"}
}

// Convert converts the DOCX buffer to an HTML fragment
func (c *Converter) Convert(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: not a zip container: %v", ErrInvalidDocument, err)
	}

	body, err := readZipFile(zr.File, documentPart, c.maxPartSize)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	out, err := renderDocument(body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return out, nil
}

func readZipFile(files []*zip.File, target string, maxSize int64) ([]byte, error) {
	for _, f := range files {
		if f == nil {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(f.Name), target) {
			if f.UncompressedSize64 > uint64(maxSize) {
				return nil, fmt.Errorf("%s exceeds %d bytes", target, maxSize)
			}
			rc, err := f.Open()
			if err != nil {
				return nil, err
			}
			defer rc.Close()

			// the size in the zip header is not trusted
			data, err := io.ReadAll(io.LimitReader(rc, maxSize+1))
			if err != nil {
				return nil, err
			}
			if int64(len(data)) > maxSize {
				return nil, fmt.Errorf("%s exceeds %d bytes", target, maxSize)
			}
			return data, nil
		}
	}
	return nil, fmt.Errorf("file not found: %s", target)
}

type runFormat struct {
	bold      bool
	italic    bool
	underline bool
}

type segment struct {
	format runFormat
	html   string
}

type paragraph struct {
	style    string
	list     bool
	segments []segment
	hasText  bool
}

func (p *paragraph) add(f runFormat, s string, isText bool) {
	if isText {
		p.hasText = p.hasText || strings.TrimSpace(s) != ""
	}
	if n := len(p.segments); n > 0 && p.segments[n-1].format == f {
		p.segments[n-1].html += s
		return
	}
	p.segments = append(p.segments, segment{format: f, html: s})
}

// suspended is a paragraph interrupted by a nested block such as a text box
type suspended struct {
	depth  int
	para   *paragraph
	inRun  bool
	format runFormat
}

type renderer struct {
	out      strings.Builder
	listOpen bool

	depth     int
	skipDepth int
	stack     []suspended

	para   *paragraph
	inPPr  bool
	inRun  bool
	inRPr  bool
	inText bool
	format runFormat
}

func renderDocument(body []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	r := &renderer{}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("malformed document xml: %w", err)
		}

		if r.skipDepth > 0 {
			switch tok.(type) {
			case xml.StartElement:
				r.skipDepth++
			case xml.EndElement:
				r.skipDepth--
			}
			continue
		}

		switch t := tok.(type) {
		case xml.StartElement:
			// alternate content is read from its Fallback branch only
			if t.Name.Space == markupCompatNS && t.Name.Local == "Choice" {
				r.skipDepth = 1
				continue
			}
			r.depth++
			r.start(t)
		case xml.EndElement:
			r.end(t)
			r.resume()
			r.depth--
		case xml.CharData:
			if r.para != nil && r.inText {
				r.para.add(r.format, html.EscapeString(string(t)), true)
			}
		}
	}

	r.closeList()
	return r.out.String(), nil
}

func (r *renderer) start(t xml.StartElement) {
	switch t.Name.Local {
	case "tbl":
		r.suspend()
		r.closeList()
		r.out.WriteString("<table>")
	case "tr":
		r.out.WriteString("<tr>")
	case "tc":
		r.out.WriteString("<td>")
	case "p":
		r.suspend()
		r.para = &paragraph{}
	case "pPr":
		r.inPPr = true
	case "pStyle":
		if r.para != nil && r.inPPr {
			r.para.style = attr(t, "val")
		}
	case "numPr":
		if r.para != nil && r.inPPr {
			r.para.list = true
		}
	case "r":
		r.inRun = true
		r.format = runFormat{}
	case "rPr":
		r.inRPr = r.inRun
	case "b":
		if r.inRPr {
			r.format.bold = toggleOn(t)
		}
	case "i":
		if r.inRPr {
			r.format.italic = toggleOn(t)
		}
	case "u":
		if r.inRPr {
			val := strings.ToLower(attr(t, "val"))
			r.format.underline = val != "none" && val != "0" && val != "false"
		}
	case "t":
		r.inText = r.inRun
	case "tab":
		if r.para != nil && r.inRun {
			r.para.add(r.format, "\t", true)
		}
	case "br", "cr":
		if r.para != nil && r.inRun && attr(t, "type") != "page" {
			r.para.add(r.format, "<br />", false)
		}
	}
}

func (r *renderer) end(t xml.EndElement) {
	switch t.Name.Local {
	case "tbl":
		r.closeList()
		r.out.WriteString("</table>")
	case "tr":
		r.out.WriteString("</tr>")
	case "tc":
		r.closeList()
		r.out.WriteString("</td>")
	case "p":
		if r.para != nil {
			r.flushParagraph(r.para)
		}
		r.para = nil
	case "pPr":
		r.inPPr = false
	case "r":
		r.inRun = false
		r.inRPr = false
		r.inText = false
	case "rPr":
		r.inRPr = false
	case "t":
		r.inText = false
	}
}

// suspend emits the text of an open paragraph before a nested block starts.
// The rest of the paragraph continues once the nested block ends.
func (r *renderer) suspend() {
	if r.para == nil {
		return
	}
	r.flushParagraph(r.para)
	r.stack = append(r.stack, suspended{
		depth:  r.depth,
		para:   &paragraph{style: r.para.style, list: r.para.list},
		inRun:  r.inRun,
		format: r.format,
	})
	r.para = nil
	r.inPPr, r.inRun, r.inRPr, r.inText = false, false, false, false
	r.format = runFormat{}
}

// resume restores the paragraph suspended by the element closing at the current depth
func (r *renderer) resume() {
	n := len(r.stack)
	if n == 0 || r.stack[n-1].depth != r.depth {
		return
	}
	top := r.stack[n-1]
	r.stack = r.stack[:n-1]
	r.para = top.para
	r.inRun = top.inRun
	r.format = top.format
	r.inPPr, r.inRPr, r.inText = false, false, false
}

func (r *renderer) flushParagraph(p *paragraph) {
	if !p.hasText {
		return
	}

	content := renderSegments(p.segments)

	if tag := headingTag(p.style); tag != "" {
		r.closeList()
		fmt.Fprintf(&r.out, "<%s>%s</%s>", tag, content, tag)
		return
	}

	if p.list {
		if !r.listOpen {
			r.out.WriteString("<ul>")
			r.listOpen = true
		}
		fmt.Fprintf(&r.out, "<li>%s</li>", content)
		return
	}

	r.closeList()
	fmt.Fprintf(&r.out, "<p>%s</p>", content)
}

func (r *renderer) closeList() {
	if r.listOpen {
		r.out.WriteString("</ul>")
		r.listOpen = false
	}
}

func renderSegments(segments []segment) string {
	var b strings.Builder
	for _, s := range segments {
		open, closing := "", ""
		if s.format.bold {
			open += "<strong>"
			closing = "</strong>" + closing
		}
		if s.format.italic {
			open += "<em>"
			closing = "</em>" + closing
		}
		if s.format.underline {
			open += "<u>"
			closing = "</u>" + closing
		}
		b.WriteString(open)
		b.WriteString(s.html)
		b.WriteString(closing)
	}
	return b.String()
}

// headingTag maps a paragraph style id to a heading element
func headingTag(style string) string {
	s := strings.ToLower(strings.ReplaceAll(style, " ", ""))
	if s == "title" {
		return "h1"
	}
	if strings.HasPrefix(s, "heading") && len(s) == len("heading")+1 {
		level := s[len(s)-1]
		if level >= '1' && level <= '6' {
			return "h" + string(level)
		}
	}
	return ""
}

func attr(t xml.StartElement, name string) string {
	for _, a := range t.Attr {
		if strings.EqualFold(a.Name.Local, name) {
			return strings.TrimSpace(a.Value)
		}
	}
	return ""
}

// toggleOn reads an OOXML on/off property such as <w:b/> or <w:b w:val="0"/>
func toggleOn(t xml.StartElement) bool {
	switch strings.ToLower(attr(t, "val")) {
	case "0", "false", "off":
		return false
	default:
		return true
	}
}
