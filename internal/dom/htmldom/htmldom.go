// Package htmldom is an in-memory document backend built on x/net/html
// with cascadia selectors. Documents can be mutated while a chain runs,
// which makes them the backend of choice for script tests.
package htmldom

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/kuitang/chaincmds/internal/dom"
)

// Document is a parsed HTML document guarded for concurrent mutation.
type Document struct {
	name string

	mu   sync.RWMutex
	root *html.Node
}

// Parse reads an HTML document.
func Parse(name string, r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("htmldom: parse %s: %w", name, err)
	}
	return &Document{name: name, root: root}, nil
}

// ParseString parses src as an HTML document.
func ParseString(name, src string) (*Document, error) {
	return Parse(name, strings.NewReader(src))
}

// Name returns the name the document was parsed under.
func (d *Document) Name() string {
	return d.name
}

// Query implements dom.Root.
func (d *Document) Query(ctx context.Context, selector string) (dom.Elements, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	nodes, err := d.match(selector)
	if err != nil {
		return nil, err
	}
	out := make(dom.Elements, len(nodes))
	for i, n := range nodes {
		out[i] = &element{doc: d, node: n}
	}
	return out, nil
}

func (d *Document) match(selector string) ([]*html.Node, error) {
	sel, err := cascadia.ParseGroup(selector)
	if err != nil {
		return nil, fmt.Errorf("htmldom: bad selector %q: %w", selector, err)
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return cascadia.QueryAll(d.root, sel), nil
}

// Mutate runs fn with exclusive access to every node matching selector.
func (d *Document) Mutate(selector string, fn func(n *html.Node)) (int, error) {
	sel, err := cascadia.ParseGroup(selector)
	if err != nil {
		return 0, fmt.Errorf("htmldom: bad selector %q: %w", selector, err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	nodes := cascadia.QueryAll(d.root, sel)
	for _, n := range nodes {
		fn(n)
	}
	return len(nodes), nil
}

// SetAttribute sets name=val on every element matching selector.
func (d *Document) SetAttribute(selector, name, val string) error {
	_, err := d.Mutate(selector, func(n *html.Node) {
		for i, a := range n.Attr {
			if a.Key == name {
				n.Attr[i].Val = val
				return
			}
		}
		n.Attr = append(n.Attr, html.Attribute{Key: name, Val: val})
	})
	return err
}

// RemoveAttribute deletes name from every element matching selector.
func (d *Document) RemoveAttribute(selector, name string) error {
	_, err := d.Mutate(selector, func(n *html.Node) {
		kept := n.Attr[:0]
		for _, a := range n.Attr {
			if a.Key != name {
				kept = append(kept, a)
			}
		}
		n.Attr = kept
	})
	return err
}

// SetText replaces the children of every element matching selector with a
// single text node.
func (d *Document) SetText(selector, text string) error {
	_, err := d.Mutate(selector, func(n *html.Node) {
		for c := n.FirstChild; c != nil; {
			next := c.NextSibling
			n.RemoveChild(c)
			c = next
		}
		n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	})
	return err
}

// Render writes the current document as HTML.
func (d *Document) Render(w io.Writer) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return html.Render(w, d.root)
}

type element struct {
	doc  *Document
	node *html.Node
}

func (e *element) Attribute(ctx context.Context, name string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	key := strings.ToLower(name)
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	for _, a := range e.node.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true, nil
		}
	}
	return "", false, nil
}

func (e *element) TextNodes(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	var out []string
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			out = append(out, c.Data)
		}
	}
	return out, nil
}

func (e *element) Children(ctx context.Context) ([]dom.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	var out []dom.Element
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, &element{doc: e.doc, node: c})
		}
	}
	return out, nil
}

func (e *element) Describe() string {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	var b strings.Builder
	b.WriteString(e.node.Data)
	for _, a := range e.node.Attr {
		switch a.Key {
		case "id":
			b.WriteString("#" + a.Val)
		case "class":
			for _, class := range strings.Fields(a.Val) {
				b.WriteString("." + class)
			}
		}
	}
	return b.String()
}
