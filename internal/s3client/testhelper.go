package s3client

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/johannesboyne/gofakes3"
	"github.com/johannesboyne/gofakes3/backend/s3mem"
)

// NewTestServer starts an in-memory gofakes3 server holding bucket and
// returns a Config pointing at it. The server stops when the test ends.
func NewTestServer(t testing.TB, bucket string) Config {
	t.Helper()

	backend := s3mem.New()
	if err := backend.CreateBucket(bucket); err != nil {
		t.Fatalf("s3client: create bucket %q: %v", bucket, err)
	}
	ts := httptest.NewServer(gofakes3.New(backend).Server())
	t.Cleanup(ts.Close)

	return Config{
		Endpoint:        ts.URL,
		AccessKeyID:     "test-key",
		SecretAccessKey: "test-secret",
		Bucket:          bucket,
		UsePathStyle:    true,
	}
}

// NewTestClient returns a client for a fresh NewTestServer.
func NewTestClient(t testing.TB, bucket, prefix string) *Client {
	t.Helper()

	cfg := NewTestServer(t, bucket)
	cfg.Prefix = prefix
	c, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("s3client: test client: %v", err)
	}
	return c
}
