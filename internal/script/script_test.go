package script

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/txtar"
	"pgregory.net/rapid"

	"github.com/kuitang/chaincmds/internal/errs"
)

func newAPI(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/users/1", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":1,"name":"ada"}`))
	})
	mux.HandleFunc("/api/echo", func(w http.ResponseWriter, r *http.Request) {
		var body any
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"method": r.Method, "body": body})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testParams(t *testing.T) Params {
	srv := newAPI(t)
	return Params{
		Dir:            "testdata",
		Timeout:        300 * time.Millisecond,
		RetryInterval:  5 * time.Millisecond,
		RequestBaseURL: srv.URL + "/api/",
		HTTPClient:     srv.Client(),
		Env:            map[string]string{"USER_PATH": "users/1"},
	}
}

func TestScripts(t *testing.T) {
	Run(t, testParams(t))
}

func runInline(t *testing.T, src string) (string, []bool) {
	t.Helper()
	res := RunArchive(context.Background(), "inline.txtar", txtar.Parse([]byte(src)), testParams(t))
	passed := make([]bool, len(res.Chains))
	for i, c := range res.Chains {
		passed[i] = c.Passed
	}
	return res.Err, passed
}

func TestRunArchive_RecordsEachChain(t *testing.T) {
	src := `wrap 1
should equal 1

wrap 2
should equal 3

! wrap 1
should equal 1
`
	res := RunArchive(context.Background(), "inline.txtar", txtar.Parse([]byte(src)), testParams(t))
	require.Empty(t, res.Err)
	require.Len(t, res.Chains, 3)

	assert.True(t, res.Chains[0].Passed)
	assert.Equal(t, 1, res.Chains[0].Line)
	assert.Equal(t, "wrap 1 | should equal 1", res.Chains[0].Source)

	assert.False(t, res.Chains[1].Passed)
	assert.Equal(t, 4, res.Chains[1].Line)
	assert.Equal(t, errs.Assertion, res.Chains[1].Code)
	assert.Equal(t, "expected 2 to equal 3", res.Chains[1].Error)

	assert.False(t, res.Chains[2].Passed)
	assert.True(t, res.Chains[2].ExpectFailure)
	assert.Equal(t, "chain passed but was expected to fail", res.Chains[2].Error)
	assert.False(t, res.Passed())
}

func TestRunArchive_ExpectedErrorMustMatch(t *testing.T) {
	errText, passed := runInline(t, `! wrap 2
should equal 3
error something else
`)
	require.Empty(t, errText)
	assert.Equal(t, []bool{false}, passed)
}

func TestRunArchive_ArityErrorsFailTheChain(t *testing.T) {
	errText, passed := runInline(t, `! wrap
error wrap() takes 1 argument, got 0

! get a b
error get() takes 1 argument, got 2
`)
	require.Empty(t, errText)
	assert.Equal(t, []bool{true, true}, passed)
}

func TestRunArchive_ScriptErrors(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"should exist\n", "inline.txtar:1: should outside a chain"},
		{"wrap 1\nfrobnicate\n", `inline.txtar:2: unknown command "frobnicate"`},
		{"text\n", "inline.txtar:1: text must follow a command that yields a subject"},
		{"wrap 1\nerror boom\n", "inline.txtar:2: error must follow a chain marked with '!'"},
		{"wrap 1\n! to string\n", "inline.txtar:2: '!' applies to the first command of a chain"},
		{"wrap 'oops\n", "inline.txtar:1: unterminated single quote"},
		{"set-text p hi\n", "inline.txtar:1: set-text needs a document from the script archive"},
		{"set-attr p only-two\n-- index.html --\n<p></p>\n", "inline.txtar:1: set-attr takes 3 arguments, got 2"},
	}
	for _, tt := range tests {
		errText, _ := runInline(t, tt.src)
		assert.Equal(t, tt.want, errText, tt.src)
	}
}

func TestRunArchive_VisitSwitchesDocument(t *testing.T) {
	errText, passed := runInline(t, `get h1
text
should equal Home

visit about.html
get h1
text
should equal About

set-text h1 Changed
get h1
text
should equal Changed

visit /index.html
get h1
text
should equal Home

-- index.html --
<h1>Home</h1>
-- about.html --
<h1>About</h1>
`)
	require.Empty(t, errText)
	assert.Equal(t, []bool{true, true, true, true}, passed)
}

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{"get li", []string{"get", "li"}},
		{"  text   whitespace=keep ", []string{"text", "whitespace=keep"}},
		{`should equal 'Hello world'`, []string{"should", "equal", "Hello world"}},
		{`should equal "say \"hi\""`, []string{"should", "equal", `say "hi"`}},
		{`wrap '{"a": [1, 2]}'`, []string{"wrap", `{"a": [1, 2]}`}},
		{`should equal ''`, []string{"should", "equal", ""}},
		{`a'b'"c"`, []string{"abc"}},
	}
	for _, tt := range tests {
		got, err := splitArgs(tt.line)
		require.NoError(t, err, tt.line)
		assert.Equal(t, tt.want, got, tt.line)
	}

	_, err := splitArgs(`say "hi`)
	assert.Error(t, err)
}

func TestSplitArgs_SingleQuotedWordsRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		words := rapid.SliceOfN(rapid.StringMatching(`[^']{0,12}`), 1, 6).Draw(t, "words")
		quoted := make([]string, len(words))
		for i, w := range words {
			quoted[i] = "'" + w + "'"
		}
		got, err := splitArgs(strings.Join(quoted, " "))
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != len(words) {
			t.Fatalf("got %d words, want %d", len(got), len(words))
		}
		for i := range words {
			if got[i] != words[i] {
				t.Fatalf("word %d: got %q, want %q", i, got[i], words[i])
			}
		}
	})
}

func TestDecode(t *testing.T) {
	assert.Equal(t, 5.0, decode("5"))
	assert.Equal(t, "abc", decode("abc"))
	assert.Equal(t, []any{"a"}, decode(`["a"]`))
	assert.Nil(t, decode("null"))
	assert.Equal(t, "body.name", decode("body.name"))
}

func TestGlob(t *testing.T) {
	files, err := Glob("testdata")
	require.NoError(t, err)
	assert.Len(t, files, 4)

	files, err = Glob("testdata/cast.txtar")
	require.NoError(t, err)
	assert.Equal(t, []string{"testdata/cast.txtar"}, files)

	_, err = Glob("testdata/missing")
	assert.Error(t, err)
}
