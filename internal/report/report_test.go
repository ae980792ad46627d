package report

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/kuitang/chaincmds/internal/errs"
	"github.com/kuitang/chaincmds/internal/s3client"
)

func sampleRun() *Run {
	start := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	return &Run{
		ID:       "run-abc",
		Started:  start,
		Finished: start.Add(1500 * time.Millisecond),
		Files: []File{
			{Name: "attribute.txtar", Chains: []Chain{
				{Line: 3, Source: "get a | attribute href", Passed: true, Duration: 12 * time.Millisecond},
				{Line: 7, Source: "get li | attribute data-x", Passed: false, Error: "Expected all 3 elements | <script>", Code: errs.Assertion},
			}},
			{Name: "broken.txtar", Err: "script:2: unknown command \"frob\""},
		},
	}
}

func TestRun_Counts(t *testing.T) {
	r := sampleRun()
	passed, failed := r.Counts()
	assert.Equal(t, 1, passed)
	assert.Equal(t, 2, failed)
	assert.False(t, r.Passed())
	assert.True(t, r.Files[0].Chains[0].Passed)
	assert.False(t, r.Files[1].Passed())
}

func TestRender_JSON(t *testing.T) {
	b, err := sampleRun().Render(JSON)
	require.NoError(t, err)
	var back Run
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, "run-abc", back.ID)
	require.Len(t, back.Files, 2)
	assert.Equal(t, errs.Assertion, back.Files[0].Chains[1].Code)
}

func TestRender_MarkdownEscapesCells(t *testing.T) {
	md := string(sampleRun().Markdown())
	assert.Contains(t, md, "# Chain run run-abc: FAIL")
	assert.Contains(t, md, "1 passed, 2 failed in 1.5s.")
	assert.Contains(t, md, `Expected all 3 elements \| <script>`)
	assert.Contains(t, md, "Script error:")
}

func TestRender_HTMLIsSanitized(t *testing.T) {
	out := string(sampleRun().HTML())
	assert.Contains(t, out, "<table>")
	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "attribute.txtar")
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"json": JSON, "MD": Markdown, " html ": HTML, "markdown": Markdown} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("pdf")
	assert.Equal(t, errs.InvalidArgument, errs.CodeOf(err))
	assert.Equal(t, "md", Markdown.Ext())
	assert.Equal(t, "application/json", JSON.ContentType())
}

func TestMarkdown_OneRowPerChain(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 20).Draw(t, "chains")
		f := File{Name: "f.txtar"}
		for i := 0; i < n; i++ {
			f.Chains = append(f.Chains, Chain{
				Line:   i + 1,
				Source: rapid.StringMatching(`[a-z |]{1,12}`).Draw(t, "source"),
				Passed: rapid.Bool().Draw(t, "passed"),
			})
		}
		md := string((&Run{ID: "r", Files: []File{f}}).Markdown())
		rows := 0
		for _, line := range strings.Split(md, "\n") {
			if strings.HasPrefix(line, "| ") && !strings.HasPrefix(line, "| Line") && !strings.HasPrefix(line, "| ---") {
				rows++
			}
		}
		if rows != n {
			t.Fatalf("got %d rows for %d chains:\n%s", rows, n, md)
		}
	})
}

func TestPublish_UploadsEveryFormat(t *testing.T) {
	store := s3client.NewTestClient(t, "reports", "chainrun")
	r := sampleRun()
	urls, err := Publish(context.Background(), store, "nightly", r, JSON, HTML)
	require.NoError(t, err)
	require.Len(t, urls, 2)
	assert.True(t, strings.HasSuffix(urls[0], "/chainrun/nightly/run-abc/report.json"), urls[0])

	body, err := store.GetObject(context.Background(), "nightly/run-abc/report.html")
	require.NoError(t, err)
	assert.Contains(t, string(body), "run-abc")
}
