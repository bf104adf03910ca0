// Package dom is the in-memory document the engine operates on: an x/net/html
// tree with goquery lookups, cascadia selector matching and insertion
// notifications standing in for a browser mutation observer.
//
// A Document is not safe for concurrent mutation. Callers serialize access,
// which the page package does with a single lock.
package dom

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Rect is a rendered box size in CSS pixels
type Rect struct {
	Width  float64
	Height float64
}

// LayoutFunc measures the rendered box of an element
type LayoutFunc func(*Element) Rect

// MutationRecord lists nodes inserted under Target in one tree operation
type MutationRecord struct {
	Target *html.Node
	Added  []*html.Node
}

// Document wraps a parsed HTML tree
type Document struct {
	gq     *goquery.Document
	layout LayoutFunc

	mu        sync.Mutex
	observers map[int]func([]MutationRecord)
	nextObs   int
}

// Parse reads an HTML document
func Parse(r io.Reader) (*Document, error) {
	gq, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return &Document{
		gq:        gq,
		observers: make(map[int]func([]MutationRecord)),
	}, nil
}

// ParseString reads an HTML document from a string
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Root returns the document node
func (d *Document) Root() *html.Node {
	return d.gq.Nodes[0]
}

// Element wraps n as an Element of this document
func (d *Document) Element(n *html.Node) *Element {
	if n == nil {
		return nil
	}
	return &Element{node: n, doc: d}
}

// Find returns all elements matching selector, in document order
func (d *Document) Find(selector string) []*Element {
	return d.wrap(d.gq.Find(selector))
}

// First returns the first element matching selector, or nil
func (d *Document) First(selector string) *Element {
	s := d.gq.Find(selector).First()
	if s.Length() == 0 {
		return nil
	}
	return d.Element(s.Get(0))
}

// DocumentElement returns the <html> element
func (d *Document) DocumentElement() *Element {
	return d.First("html")
}

// Body returns the <body> element
func (d *Document) Body() *Element {
	return d.First("body")
}

// Text returns the text content of the body
func (d *Document) Text() string {
	return strings.TrimSpace(d.gq.Find("body").Text())
}

// SetLayout installs a measurement hook used by Element.Rect
func (d *Document) SetLayout(fn LayoutFunc) {
	d.layout = fn
}

// CreateElement creates a detached element
func (d *Document) CreateElement(tag string) *Element {
	n := &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
	return d.Element(n)
}

// ParseFragment parses markup in the context of parent without attaching it
func (d *Document) ParseFragment(parent *Element, markup string) ([]*Element, error) {
	ctx := parent.node
	if ctx.Type != html.ElementNode {
		ctx = &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	}
	nodes, err := html.ParseFragment(strings.NewReader(markup), ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse fragment: %w", err)
	}
	out := make([]*Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, d.Element(n))
	}
	return out, nil
}

// AppendHTML parses markup and appends the resulting nodes to parent,
// emitting one mutation record.
func (d *Document) AppendHTML(parent *Element, markup string) error {
	children, err := d.ParseFragment(parent, markup)
	if err != nil {
		return err
	}
	added := make([]*html.Node, 0, len(children))
	for _, c := range children {
		parent.node.AppendChild(c.node)
		added = append(added, c.node)
	}
	d.notify(MutationRecord{Target: parent.node, Added: added})
	return nil
}

// Observe registers fn for mutation records. The returned func unregisters it.
func (d *Document) Observe(fn func([]MutationRecord)) func() {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := d.nextObs
	d.nextObs++
	d.observers[id] = fn

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.observers, id)
	}
}

func (d *Document) notify(records ...MutationRecord) {
	d.mu.Lock()
	fns := make([]func([]MutationRecord), 0, len(d.observers))
	for _, fn := range d.observers {
		fns = append(fns, fn)
	}
	d.mu.Unlock()

	for _, fn := range fns {
		fn(records)
	}
}

// Render writes the document as HTML
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.Root())
}

// HTML returns the document as a string
func (d *Document) HTML() (string, error) {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (d *Document) wrap(s *goquery.Selection) []*Element {
	out := make([]*Element, 0, s.Length())
	for _, n := range s.Nodes {
		out = append(out, d.Element(n))
	}
	return out
}
