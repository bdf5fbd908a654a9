// Package pom edits a project descriptor in place. Every token keeps the bytes it
// was read from, so untouched comments, whitespace and attribute order survive a save.
package pom

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// textEscaper escapes markup characters only, leaving whitespace as written
var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// ErrMalformed is returned when the descriptor cannot be tokenized into a single well-formed tree
var ErrMalformed = errors.New("malformed descriptor")

type nodeKind int

const (
	kindElement nodeKind = iota
	kindText
	kindComment
	kindOther
)

// node is one token of the descriptor. Elements hold their start tag in raw,
// their end tag in endRaw and everything in between as children.
type node struct {
	kind        nodeKind
	name        xml.Name
	raw         []byte
	endRaw      []byte
	text        string
	selfClosing bool
	children    []*node
	parent      *node
}

func (n *node) qualifiedName() string {
	if n.name.Space != "" {
		return n.name.Space + ":" + n.name.Local
	}
	return n.name.Local
}

func (n *node) isWhitespace() bool {
	return n.kind == kindText && len(bytes.TrimSpace(n.raw)) == 0
}

// child returns the first direct child element with the local name
func (n *node) child(name string) *node {
	for _, c := range n.children {
		if c.kind == kindElement && c.name.Local == name {
			return c
		}
	}
	return nil
}

// elements returns the direct child elements with the local name, or all of them for ""
func (n *node) elements(name string) []*node {
	var out []*node
	for _, c := range n.children {
		if c.kind == kindElement && (name == "" || c.name.Local == name) {
			out = append(out, c)
		}
	}
	return out
}

// rawText concatenates the decoded character data of direct children
func (n *node) rawText() string {
	var sb strings.Builder
	for _, c := range n.children {
		if c.kind == kindText {
			sb.WriteString(c.text)
		}
	}
	return sb.String()
}

func (n *node) value() string {
	return strings.TrimSpace(n.rawText())
}

// setText replaces all content with a single escaped text node
func (n *node) setText(value string) {
	n.open()
	escaped := textEscaper.Replace(value)
	n.children = []*node{{kind: kindText, raw: []byte(escaped), text: value, parent: n}}
}

// open turns a self-closing element into a start/end pair so it can take content
func (n *node) open() {
	if !n.selfClosing {
		return
	}
	start := bytes.TrimSuffix(n.raw, []byte("/>"))
	start = bytes.TrimRight(start, " \t\r\n")
	n.raw = append(append([]byte{}, start...), '>')
	n.endRaw = []byte("</" + n.qualifiedName() + ">")
	n.selfClosing = false
}

func (n *node) indexOf(c *node) int {
	for i, x := range n.children {
		if x == c {
			return i
		}
	}
	return -1
}

func (n *node) insert(at int, nodes ...*node) {
	for _, c := range nodes {
		c.parent = n
	}
	tail := append([]*node{}, n.children[at:]...)
	n.children = append(append(n.children[:at], nodes...), tail...)
}

func (n *node) write(w *bytes.Buffer) {
	w.Write(n.raw)
	if n.kind != kindElement || n.selfClosing {
		return
	}
	for _, c := range n.children {
		c.write(w)
	}
	w.Write(n.endRaw)
}

// Document is a descriptor held as a lossless token tree
type Document struct {
	prolog  []*node
	root    *node
	epilog  []*node
	newline string
	unit    string
	dirty   bool
}

// Load reads and parses the descriptor at path
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read descriptor: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Parse tokenizes data. Mismatched tags, content outside the root element and
// a missing root all fail with ErrMalformed.
func Parse(data []byte) (*Document, error) {
	doc := &Document{newline: "\n"}
	if bytes.Contains(data, []byte("\r\n")) {
		doc.newline = "\r\n"
	}

	dec := xml.NewDecoder(bytes.NewReader(data))
	// Declared encodings are passed through untouched; only offsets matter here
	dec.CharsetReader = func(label string, input io.Reader) (io.Reader, error) {
		return input, nil
	}
	var stack []*node

	attach := func(n *node) error {
		if len(stack) > 0 {
			top := stack[len(stack)-1]
			n.parent = top
			top.children = append(top.children, n)
			return nil
		}
		if n.kind == kindText && !n.isWhitespace() {
			return fmt.Errorf("%w: character data outside the root element", ErrMalformed)
		}
		if doc.root == nil {
			doc.prolog = append(doc.prolog, n)
		} else {
			doc.epilog = append(doc.epilog, n)
		}
		return nil
	}

	for {
		start := dec.InputOffset()
		tok, err := dec.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		raw := append([]byte{}, data[start:dec.InputOffset()]...)

		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{kind: kindElement, name: t.Name, raw: raw}
			if len(stack) == 0 {
				if doc.root != nil {
					return nil, fmt.Errorf("%w: more than one root element", ErrMalformed)
				}
				doc.root = n
			} else if err := attach(n); err != nil {
				return nil, err
			}
			stack = append(stack, n)

		case xml.EndElement:
			if len(stack) == 0 {
				return nil, fmt.Errorf("%w: unexpected end element </%s>", ErrMalformed, t.Name.Local)
			}
			top := stack[len(stack)-1]
			if top.name != t.Name {
				return nil, fmt.Errorf("%w: element <%s> closed by </%s>", ErrMalformed, top.qualifiedName(), t.Name.Local)
			}
			// A self-closing tag yields an end element without consuming input
			if len(raw) == 0 {
				top.selfClosing = true
			} else {
				top.endRaw = raw
			}
			stack = stack[:len(stack)-1]

		case xml.CharData:
			if err := attach(&node{kind: kindText, raw: raw, text: string(t)}); err != nil {
				return nil, err
			}

		case xml.Comment:
			if err := attach(&node{kind: kindComment, raw: raw, text: string(t)}); err != nil {
				return nil, err
			}

		default:
			if err := attach(&node{kind: kindOther, raw: raw}); err != nil {
				return nil, err
			}
		}
	}

	if len(stack) > 0 {
		return nil, fmt.Errorf("%w: element <%s> is not closed", ErrMalformed, stack[len(stack)-1].qualifiedName())
	}
	if doc.root == nil {
		return nil, fmt.Errorf("%w: no root element", ErrMalformed)
	}

	doc.unit = doc.detectIndentUnit()
	return doc, nil
}

// Bytes renders the token tree
func (d *Document) Bytes() []byte {
	var buf bytes.Buffer
	for _, n := range d.prolog {
		n.write(&buf)
	}
	d.root.write(&buf)
	for _, n := range d.epilog {
		n.write(&buf)
	}
	return buf.Bytes()
}

// Save writes the document to path. A failure leaves the in-memory edits intact.
func (d *Document) Save(path string) error {
	if err := os.WriteFile(path, d.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to save descriptor: %w", err)
	}
	return nil
}

// Modified reports whether any edit changed the tree since parsing
func (d *Document) Modified() bool {
	return d.dirty
}

// indentOf returns the indentation in front of n, taken from the whitespace sibling before it
func (d *Document) indentOf(n *node) string {
	if n.parent == nil {
		return ""
	}
	i := n.parent.indexOf(n)
	if i <= 0 {
		return ""
	}
	prev := n.parent.children[i-1]
	if !prev.isWhitespace() {
		return ""
	}
	ws := string(prev.raw)
	if j := strings.LastIndex(ws, "\n"); j >= 0 {
		return ws[j+1:]
	}
	return ""
}

func (d *Document) detectIndentUnit() string {
	for _, c := range d.root.elements("") {
		if indent := d.indentOf(c); indent != "" {
			return indent
		}
	}
	return "  "
}

func (d *Document) childIndent(parent *node) string {
	if first := parent.elements(""); len(first) > 0 {
		if indent := d.indentOf(first[0]); indent != "" {
			return indent
		}
	}
	return d.indentOf(parent) + d.unit
}

func (d *Document) whitespace(indent string) *node {
	ws := d.newline + indent
	return &node{kind: kindText, raw: []byte(ws), text: ws}
}

// appendElement adds child as the last element of parent on its own line
func (d *Document) appendElement(parent, child *node) {
	indent := d.childIndent(parent)
	parent.open()

	last := -1
	for i, c := range parent.children {
		if !c.isWhitespace() {
			last = i
		}
	}

	if last < 0 {
		parent.children = nil
		parent.insert(0, d.whitespace(indent), child, d.whitespace(d.indentOf(parent)))
	} else {
		parent.insert(last+1, d.whitespace(indent), child)
		if tail := parent.children[len(parent.children)-1]; !tail.isWhitespace() {
			parent.insert(len(parent.children), d.whitespace(d.indentOf(parent)))
		}
	}
	d.dirty = true
}

// remove drops child together with the comments and whitespace directly in front of it
func (d *Document) remove(parent, child *node) {
	i := parent.indexOf(child)
	if i < 0 {
		return
	}
	from := i
	for from > 0 {
		prev := parent.children[from-1]
		if prev.kind != kindComment && !prev.isWhitespace() {
			break
		}
		from--
	}
	parent.children = append(parent.children[:from], parent.children[i+1:]...)
	d.dirty = true
}

func newElement(name, value string) *node {
	n := &node{
		kind:   kindElement,
		name:   xml.Name{Local: name},
		raw:    []byte("<" + name + ">"),
		endRaw: []byte("</" + name + ">"),
	}
	if value != "" {
		n.setText(value)
	}
	return n
}

func newEmptyElement(name string) *node {
	return &node{
		kind:        kindElement,
		name:        xml.Name{Local: name},
		raw:         []byte("<" + name + " />"),
		selfClosing: true,
	}
}
