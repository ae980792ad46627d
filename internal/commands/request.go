package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/kuitang/chaincmds/internal/chain"
	"github.com/kuitang/chaincmds/internal/errs"
	"github.com/kuitang/chaincmds/internal/obs"
	"github.com/kuitang/chaincmds/internal/options"
	"github.com/kuitang/chaincmds/internal/urlutil"
	"github.com/kuitang/chaincmds/internal/value"
)

// DefaultResponseTimeout bounds a single request.
const DefaultResponseTimeout = 30 * time.Second

var requestOptions = options.NewValidator("request")

// RequestOptions describe one HTTP request.
type RequestOptions struct {
	Method string
	URL    string
	// Body is sent as-is when it is a string or []byte and as JSON
	// otherwise.
	Body    any
	Headers map[string]string
	// FailOnStatusCode fails the command on statuses outside 2xx and 3xx.
	FailOnStatusCode *bool
	Log              *bool
	Timeout          time.Duration
}

// Response is the subject yielded by a request.
type Response struct {
	Status     int               `json:"status"`
	StatusText string            `json:"statusText"`
	Headers    map[string]string `json:"headers"`
	Body       any               `json:"body"`
	Duration   time.Duration     `json:"duration"`
	URL        string            `json:"url"`
}

// StatusError reports a response whose status counts as a failure.
type StatusError struct {
	Method     string
	URL        string
	Status     int
	StatusText string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request() failed on:\n\n%s %s\n\nThe response we received from your web server was:\n\n  > %d: %s\n\n"+
		"This was considered a failure because the status code was not '2xx' or '3xx'.",
		e.Method, e.URL, e.Status, e.StatusText)
}

// ErrCode implements errs.Coded.
func (e *StatusError) ErrCode() errs.Code {
	return errs.Assertion
}

type requestCommand struct {
	opts RequestOptions
	err  error
}

// Request issues a GET to url.
func Request(url string) chain.Step {
	return RequestWithOptions(RequestOptions{URL: url})
}

// RequestMethod issues method to url.
func RequestMethod(method, url string) chain.Step {
	return RequestWithOptions(RequestOptions{Method: method, URL: url})
}

// RequestBody issues a GET to url carrying body.
func RequestBody(url string, body any) chain.Step {
	return RequestWithOptions(RequestOptions{URL: url, Body: body})
}

// RequestWith issues method to url carrying body.
func RequestWith(method, url string, body any) chain.Step {
	return RequestWithOptions(RequestOptions{Method: method, URL: url, Body: body})
}

// RequestWithOptions issues the request described by opts.
func RequestWithOptions(opts RequestOptions) chain.Step {
	return chain.Do(&requestCommand{opts: opts})
}

// RequestArgs resolves positional arguments the way the script front end
// writes them: (url), (method, url), (url, body) or (method, url, body).
// Two arguments are read as (method, url) only when the first one is a
// known HTTP method.
func RequestArgs(args ...any) chain.Step {
	opts, err := ParseRequestArgs(args...)
	return chain.Do(&requestCommand{opts: opts, err: err})
}

// ParseRequestArgs is the argument resolution behind RequestArgs.
func ParseRequestArgs(args ...any) (RequestOptions, error) {
	str := func(i int) (string, error) {
		s, ok := args[i].(string)
		if !ok {
			return "", errs.New(errs.InvalidArgument, fmt.Sprintf("request() expects argument %d to be a string, got %s", i+1, value.Stringify(args[i])))
		}
		return s, nil
	}
	var opts RequestOptions
	var err error
	switch len(args) {
	case 1:
		opts.URL, err = str(0)
	case 2:
		var first string
		if first, err = str(0); err != nil {
			break
		}
		if urlutil.IsMethod(first) {
			opts.Method = first
			opts.URL, err = str(1)
		} else {
			opts.URL = first
			opts.Body = args[1]
		}
	case 3:
		if opts.Method, err = str(0); err != nil {
			break
		}
		if opts.URL, err = str(1); err != nil {
			break
		}
		opts.Body = args[2]
	default:
		err = errs.New(errs.InvalidArgument, fmt.Sprintf("request() takes 1 to 3 arguments, got %d", len(args)))
	}
	return opts, err
}

func (c *requestCommand) Name() string { return "request" }
func (c *requestCommand) Parent() bool { return true }

func (c *requestCommand) Run(ctx context.Context, r *chain.Runner, _ any) (any, error) {
	if c.err != nil {
		return nil, c.err
	}
	opts := c.opts
	if err := checkAll(
		requestOptions.Check("log", opts.Log, options.Bools),
		requestOptions.Check("failOnStatusCode", opts.FailOnStatusCode, options.Bools),
		requestOptions.Check("timeout", opts.Timeout, options.AtLeast(0)),
	); err != nil {
		return nil, err
	}
	if strings.TrimSpace(opts.URL) == "" {
		return nil, errs.New(errs.InvalidArgument, "request() requires a url")
	}
	method := strings.ToUpper(opts.Method)
	if method == "" {
		method = http.MethodGet
	}
	url := urlutil.Resolve(r.Config().RequestBaseURL, opts.URL)
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultResponseTimeout
	}

	log := obs.Command(ctx, "request", method+" "+url, options.BoolOr(opts.Log, true))

	body, contentType, err := encodeBody(opts.Body)
	if err != nil {
		log.Fail(err)
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		err = errs.Wrap(errs.InvalidArgument, "request() could not build the request", err)
		log.Fail(err)
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := r.Config().HTTPClient.Do(req)
	if err != nil {
		code := errs.Internal
		if ctx.Err() != nil {
			code = errs.Timeout
		}
		err = errs.Wrap(code, fmt.Sprintf("request() failed trying to load:\n\n%s", url), err)
		log.Fail(err)
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		err = errs.Wrap(errs.Internal, "request() failed reading the response body", err)
		log.Fail(err)
		return nil, err
	}

	out := Response{
		Status:     resp.StatusCode,
		StatusText: http.StatusText(resp.StatusCode),
		Headers:    flattenHeaders(resp.Header),
		Body:       decodeBody(resp.Header.Get("Content-Type"), raw),
		Duration:   time.Since(start),
		URL:        url,
	}
	log.Set("Status", out.Status).Set("Yielded", out)

	if options.BoolOr(opts.FailOnStatusCode, true) && (out.Status < 200 || out.Status >= 400) {
		err := &StatusError{Method: method, URL: url, Status: out.Status, StatusText: out.StatusText}
		log.Fail(err)
		return nil, err
	}
	log.Snapshot().End()
	return out, nil
}

func encodeBody(body any) (io.Reader, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case string:
		return strings.NewReader(b), "text/plain; charset=utf-8", nil
	case []byte:
		return bytes.NewReader(b), "application/octet-stream", nil
	}
	raw, err := value.CanonicalJSON(body)
	if err != nil {
		return nil, "", errs.Wrap(errs.InvalidArgument, "request() could not encode the body as JSON", err)
	}
	return bytes.NewReader(raw), "application/json", nil
}

func decodeBody(contentType string, raw []byte) any {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType == "application/json" || strings.HasSuffix(mediaType, "+json") {
		var v any
		if err := json.Unmarshal(raw, &v); err == nil {
			return v
		}
	}
	return string(raw)
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[strings.ToLower(k)] = strings.Join(v, ", ")
	}
	return out
}
