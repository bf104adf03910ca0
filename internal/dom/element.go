package dom

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/aymerick/douceur/parser"
	"golang.org/x/net/html"
)

// Element is a handle on one element node of a Document. Handles are cheap;
// two handles on the same node are equal by Node().
type Element struct {
	node *html.Node
	doc  *Document
}

// Node returns the underlying html node
func (e *Element) Node() *html.Node {
	return e.node
}

// Tag returns the lower-case tag name
func (e *Element) Tag() string {
	return e.node.Data
}

// Attr returns an attribute value and whether it is present
func (e *Element) Attr(name string) (string, bool) {
	for _, a := range e.node.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// AttrOr returns the attribute value or def when absent
func (e *Element) AttrOr(name, def string) string {
	if v, ok := e.Attr(name); ok {
		return v
	}
	return def
}

// SetAttr sets or replaces an attribute
func (e *Element) SetAttr(name, value string) {
	for i, a := range e.node.Attr {
		if a.Namespace == "" && a.Key == name {
			e.node.Attr[i].Val = value
			return
		}
	}
	e.node.Attr = append(e.node.Attr, html.Attribute{Key: name, Val: value})
}

// RemoveAttr deletes an attribute if present
func (e *Element) RemoveAttr(name string) {
	attrs := e.node.Attr[:0]
	for _, a := range e.node.Attr {
		if a.Namespace == "" && a.Key == name {
			continue
		}
		attrs = append(attrs, a)
	}
	e.node.Attr = attrs
}

// Classes returns the class list
func (e *Element) Classes() []string {
	return strings.Fields(e.AttrOr("class", ""))
}

// HasClass reports whether class is in the class list
func (e *Element) HasClass(class string) bool {
	for _, c := range e.Classes() {
		if c == class {
			return true
		}
	}
	return false
}

// AddClass appends class unless already present
func (e *Element) AddClass(class string) {
	if e.HasClass(class) {
		return
	}
	e.SetAttr("class", strings.TrimSpace(strings.Join(append(e.Classes(), class), " ")))
}

// RemoveClass drops class from the class list
func (e *Element) RemoveClass(class string) {
	classes := e.Classes()
	kept := classes[:0]
	for _, c := range classes {
		if c != class {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		e.RemoveAttr("class")
		return
	}
	e.SetAttr("class", strings.Join(kept, " "))
}

// DeclaredSize returns the raw width and height attributes
func (e *Element) DeclaredSize() (width, height string) {
	width, _ = e.Attr("width")
	height, _ = e.Attr("height")
	return width, height
}

// Rect returns the rendered box. Without a layout hook the inline style's
// pixel width and height are used; anything else measures as zero.
func (e *Element) Rect() Rect {
	if e.doc != nil && e.doc.layout != nil {
		return e.doc.layout(e)
	}

	style, ok := e.Attr("style")
	if !ok {
		return Rect{}
	}
	// douceur drops the value of a final declaration without a terminator
	style = strings.TrimSpace(style)
	if !strings.HasSuffix(style, ";") {
		style += ";"
	}
	decls, err := parser.ParseDeclarations(style)
	if err != nil {
		return Rect{}
	}

	var r Rect
	for _, d := range decls {
		switch strings.ToLower(d.Property) {
		case "width":
			r.Width = pixels(d.Value)
		case "height":
			r.Height = pixels(d.Value)
		}
	}
	return r
}

func pixels(v string) float64 {
	v = strings.TrimSpace(strings.ToLower(v))
	if !strings.HasSuffix(v, "px") {
		return 0
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(v, "px"), 64)
	if err != nil || f < 0 {
		return 0
	}
	return f
}

// StyleProperty returns one inline style property
func (e *Element) StyleProperty(prop string) string {
	for _, d := range splitStyle(e.AttrOr("style", "")) {
		if d[0] == prop {
			return d[1]
		}
	}
	return ""
}

// SetStyleProperty sets one inline style property, keeping the others
func (e *Element) SetStyleProperty(prop, value string) {
	decls := splitStyle(e.AttrOr("style", ""))
	found := false
	for i := range decls {
		if decls[i][0] == prop {
			decls[i][1] = value
			found = true
		}
	}
	if !found {
		decls = append(decls, [2]string{prop, value})
	}
	e.SetAttr("style", joinStyle(decls))
}

// RemoveStyleProperty drops one inline style property
func (e *Element) RemoveStyleProperty(prop string) {
	decls := splitStyle(e.AttrOr("style", ""))
	kept := decls[:0]
	for _, d := range decls {
		if d[0] != prop {
			kept = append(kept, d)
		}
	}
	if len(kept) == 0 {
		e.RemoveAttr("style")
		return
	}
	e.SetAttr("style", joinStyle(kept))
}

// splitStyle keeps declaration order and custom properties verbatim.
// Semicolons inside quotes or parentheses do not end a declaration.
func splitStyle(style string) [][2]string {
	var (
		out   [][2]string
		quote rune
		depth int
		start int
	)
	add := func(part string) {
		prop, value, ok := strings.Cut(part, ":")
		if !ok {
			return
		}
		prop = strings.TrimSpace(prop)
		if prop == "" {
			return
		}
		out = append(out, [2]string{prop, strings.TrimSpace(value)})
	}

	for i, r := range style {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '(':
			depth++
		case r == ')' && depth > 0:
			depth--
		case r == ';' && depth == 0:
			add(style[start:i])
			start = i + 1
		}
	}
	add(style[start:])
	return out
}

func joinStyle(decls [][2]string) string {
	parts := make([]string, 0, len(decls))
	for _, d := range decls {
		parts = append(parts, d[0]+": "+d[1])
	}
	return strings.Join(parts, "; ")
}

// Matches reports whether the element matches a compiled selector
func (e *Element) Matches(sel cascadia.Matcher) bool {
	return sel.Match(e.node)
}

// Is reports whether the element matches a selector string
func (e *Element) Is(selector string) bool {
	sel, err := cascadia.ParseGroup(selector)
	if err != nil {
		return false
	}
	return sel.Match(e.node)
}

// Find returns descendants matching selector
func (e *Element) Find(selector string) []*Element {
	return e.doc.wrap(goquery.NewDocumentFromNode(e.node).Find(selector))
}

// FindClass returns the first descendant carrying class, or nil
func (e *Element) FindClass(class string) *Element {
	found := e.Find("." + class)
	if len(found) == 0 {
		return nil
	}
	return found[0]
}

// Closest returns the nearest inclusive ancestor carrying class, or nil
func (e *Element) Closest(class string) *Element {
	for n := e.node; n != nil; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		if el := e.doc.Element(n); el.HasClass(class) {
			return el
		}
	}
	return nil
}

// Parent returns the parent element, or nil at the top or when detached
func (e *Element) Parent() *Element {
	if e.node.Parent == nil || e.node.Parent.Type != html.ElementNode {
		return nil
	}
	return e.doc.Element(e.node.Parent)
}

// Attached reports whether the element is connected to the document root
func (e *Element) Attached() bool {
	root := e.doc.Root()
	for n := e.node; n != nil; n = n.Parent {
		if n == root {
			return true
		}
	}
	return false
}

// AppendChild moves child to the end of e's children
func (e *Element) AppendChild(child *Element) {
	detach(child.node)
	e.node.AppendChild(child.node)
	e.doc.notify(MutationRecord{Target: e.node, Added: []*html.Node{child.node}})
}

// PrependChild moves child to the front of e's children
func (e *Element) PrependChild(child *Element) {
	detach(child.node)
	if e.node.FirstChild == nil {
		e.node.AppendChild(child.node)
	} else {
		e.node.InsertBefore(child.node, e.node.FirstChild)
	}
	e.doc.notify(MutationRecord{Target: e.node, Added: []*html.Node{child.node}})
}

// Wrap inserts wrapper where e is and moves e inside it, emitting a single
// mutation record for the wrapper.
func (e *Element) Wrap(wrapper *Element) {
	parent := e.node.Parent
	detach(wrapper.node)
	if parent != nil {
		parent.InsertBefore(wrapper.node, e.node)
		parent.RemoveChild(e.node)
	}
	wrapper.node.AppendChild(e.node)
	if parent != nil {
		e.doc.notify(MutationRecord{Target: parent, Added: []*html.Node{wrapper.node}})
	}
}

// OuterHTML renders the element and its subtree
func (e *Element) OuterHTML() string {
	var b strings.Builder
	if err := html.Render(&b, e.node); err != nil {
		return ""
	}
	return b.String()
}

func detach(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}
