package commands

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kuitang/chaincmds/internal/chain"
	"github.com/kuitang/chaincmds/internal/dom/htmldom"
)

const fixture = `<html><body>
<p id="greeting">  Hello&nbsp;&nbsp;
   world </p>
<div id="nested">top <span>mid <b>deep</b></span></div>
<div id="attrs"><span class="whitespace" data-foo="bar" data-empty="" data-ws="  a
  b "></span></div>
<ul id="list">
  <li data-relation="child">a</li>
  <li data-relation="child">b</li>
  <li>c</li>
</ul>
<button id="late">Wait</button>
</body></html>`

const testTimeout = 300 * time.Millisecond

func newRunner(t *testing.T) (*chain.Runner, *htmldom.Document) {
	t.Helper()
	doc, err := htmldom.ParseString("index.html", fixture)
	require.NoError(t, err)
	r := chain.NewRunner(chain.Config{
		Root:          doc,
		Timeout:       testTimeout,
		RetryInterval: 5 * time.Millisecond,
	})
	return r, doc
}

// later runs fn after d on its own goroutine.
func later(d time.Duration, fn func()) {
	go func() {
		time.Sleep(d)
		fn()
	}()
}
