package htmldom

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/kuitang/chaincmds/internal/dom"
)

// Site serves named documents. Each document is parsed once, so mutations
// made through one visit are visible to the next.
type Site struct {
	mu      sync.Mutex
	sources map[string]string
	docs    map[string]*Document
}

// NewSite returns an empty site.
func NewSite() *Site {
	return &Site{
		sources: make(map[string]string),
		docs:    make(map[string]*Document),
	}
}

// Add registers src under name, replacing any previous document.
func (s *Site) Add(name, src string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name = cleanName(name)
	s.sources[name] = src
	delete(s.docs, name)
}

// Names lists the registered documents.
func (s *Site) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.sources))
	for n := range s.sources {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Document returns the parsed document registered under name.
func (s *Site) Document(name string) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name = cleanName(name)
	if doc, ok := s.docs[name]; ok {
		return doc, nil
	}
	src, ok := s.sources[name]
	if !ok {
		return nil, fmt.Errorf("htmldom: no document named %q", name)
	}
	doc, err := ParseString(name, src)
	if err != nil {
		return nil, err
	}
	s.docs[name] = doc
	return doc, nil
}

// Visit implements dom.Visitor.
func (s *Site) Visit(ctx context.Context, target string) (dom.Root, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Document(target)
}

func cleanName(name string) string {
	return strings.TrimPrefix(strings.TrimSpace(name), "/")
}
