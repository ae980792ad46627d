// Package dom is the element model commands read from. Backends live in
// the htmldom (parsed documents) and pwdom (live Playwright pages)
// subpackages.
package dom

import (
	"context"
	"encoding/json"
	"strings"
)

// Element is a handle to one element of a live document. Every read goes
// back to the document, so repeated reads observe changes.
type Element interface {
	// Attribute returns the attribute value and whether it is present.
	Attribute(ctx context.Context, name string) (string, bool, error)
	// TextNodes returns the raw data of the element's direct text children.
	TextNodes(ctx context.Context) ([]string, error)
	// Children returns the element's direct element children.
	Children(ctx context.Context) ([]Element, error)
	// Describe returns a short selector-like label such as "a#home.nav".
	Describe() string
}

// Elements is an ordered element collection. An empty collection does not
// exist as far as existence assertions are concerned.
type Elements []Element

// Len implements value.Sized.
func (e Elements) Len() int {
	return len(e)
}

func (e Elements) String() string {
	labels := make([]string, len(e))
	for i, el := range e {
		labels[i] = el.Describe()
	}
	return strings.Join(labels, ", ")
}

// MarshalJSON renders the collection as its element labels.
func (e Elements) MarshalJSON() ([]byte, error) {
	labels := make([]string, len(e))
	for i, el := range e {
		labels[i] = el.Describe()
	}
	return json.Marshal(labels)
}

// Root answers selector queries against a document.
type Root interface {
	Query(ctx context.Context, selector string) (Elements, error)
}

// Visitor opens documents by name or path.
type Visitor interface {
	Visit(ctx context.Context, target string) (Root, error)
}
