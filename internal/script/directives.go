package script

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kuitang/chaincmds/internal/dom/htmldom"
	"github.com/kuitang/chaincmds/internal/obs"
)

// directive mutates the current document, now or after a delay.
type directive struct {
	args  int
	apply func(doc *htmldom.Document, args []string) error
}

var directives = map[string]directive{
	"set-attr": {args: 3, apply: func(doc *htmldom.Document, a []string) error {
		return doc.SetAttribute(a[0], a[1], a[2])
	}},
	"remove-attr": {args: 2, apply: func(doc *htmldom.Document, a []string) error {
		return doc.RemoveAttribute(a[0], a[1])
	}},
	"set-text": {args: 2, apply: func(doc *htmldom.Document, a []string) error {
		return doc.SetText(a[0], a[1])
	}},
}

func (s *state) directive(ctx context.Context, d directive, word string, words []string) error {
	var (
		args  []string
		after time.Duration
	)
	for _, w := range words {
		if v, ok := strings.CutPrefix(w, "after="); ok {
			dur, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: bad delay %q", word, v)
			}
			after = dur
			continue
		}
		args = append(args, w)
	}
	if len(args) != d.args {
		return fmt.Errorf("%s takes %d arguments, got %d", word, d.args, len(args))
	}
	doc, ok := s.runner.Root().(*htmldom.Document)
	if !ok {
		return errors.New(word + " needs a document from the script archive")
	}
	// Reject a bad selector now rather than inside a timer.
	if _, err := doc.Query(ctx, args[0]); err != nil {
		return err
	}
	if after <= 0 {
		return d.apply(doc, args)
	}
	log := obs.From(ctx)
	s.timers = append(s.timers, time.AfterFunc(after, func() {
		if err := d.apply(doc, args); err != nil {
			log.Error("directive_failed", "directive", word, "error", err)
		}
	}))
	return nil
}
