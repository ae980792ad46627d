package config

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/peterbourgon/ff/v4"
	"pgregory.net/rapid"

	"github.com/kuitang/chaincmds/internal/report"
)

func TestValidate_DefaultsPass(t *testing.T) {
	t.Parallel()
	if err := Default().Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got: %v", err)
	}
}

func TestValidate_ListsEveryIssue(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.Timeout = 0
	cfg.RetryInterval = -time.Second
	cfg.RequestBaseURL = "/api"
	cfg.Headed = true
	cfg.ReportFormats = []string{"pdf"}
	cfg.LogLevel = "loud"

	err := cfg.Validate()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T: %v", err, err)
	}
	want := []string{
		"timeout must be positive",
		"retry-interval must be positive",
		"request-base-url must be an absolute URL",
		"headed only applies with --browser",
		`unknown report format "pdf" (want json, markdown or html)`,
		"format needs --report-dir or --publish",
		"log-level must be one of debug, info, warn, error",
	}
	if len(verr.Errors) != len(want) {
		t.Fatalf("expected %d issues, got %d: %v", len(want), len(verr.Errors), verr.Errors)
	}
	for i := range want {
		if verr.Errors[i] != want[i] {
			t.Fatalf("issue %d: expected %q, got %q", i, want[i], verr.Errors[i])
		}
	}
	if !strings.HasPrefix(err.Error(), "configuration validation failed:\n  - timeout must be positive") {
		t.Fatalf("unexpected error text: %q", err.Error())
	}
}

func TestValidate_RetryIntervalBoundedByTimeout(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.Timeout = 100 * time.Millisecond
	cfg.RetryInterval = time.Second
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "retry-interval must not exceed timeout") {
		t.Fatalf("expected interval error, got: %v", err)
	}
}

func TestValidate_BaseURLNeedsBrowser(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.BaseURL = "http://localhost:3000"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "base-url only applies with --browser") {
		t.Fatalf("expected base-url error, got: %v", err)
	}
	cfg.Browser = true
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected browser config to validate, got: %v", err)
	}
}

func TestValidate_PublishRequiresStorage(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.Publish = true
	err := cfg.Validate()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	for _, key := range []string{"BUCKET_NAME", "AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY"} {
		if !strings.Contains(err.Error(), key) {
			t.Fatalf("expected %s in error, got: %v", key, err)
		}
	}

	cfg.AWSBucketName = "reports"
	cfg.AWSAccessKeyID = "id"
	cfg.AWSSecretAccessKey = "secret"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected publish config to validate, got: %v", err)
	}
}

func TestLoadConfig_ReadsStorageEnv(t *testing.T) {
	t.Setenv("AWS_ENDPOINT_URL_S3", "https://fly.storage.tigris.dev/")
	t.Setenv("AWS_REGION", "")
	t.Setenv("AWS_ACCESS_KEY_ID", " id ")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")
	t.Setenv("BUCKET_NAME", "reports")
	t.Setenv("S3_PUBLIC_URL", "")

	cfg := LoadConfig()
	if cfg.AWSAccessKeyID != "id" {
		t.Fatalf("expected trimmed access key, got %q", cfg.AWSAccessKeyID)
	}
	if cfg.AWSRegion != defaultRegion {
		t.Fatalf("expected default region, got %q", cfg.AWSRegion)
	}
	if cfg.AWSPublicURL != "https://fly.storage.tigris.dev/reports" {
		t.Fatalf("unexpected public URL %q", cfg.AWSPublicURL)
	}
	sc := cfg.StorageConfig()
	if !sc.UsePathStyle || sc.Bucket != "reports" || sc.Endpoint != cfg.AWSEndpointS3 {
		t.Fatalf("unexpected storage config: %+v", sc)
	}
}

func TestRegisterFlags_ParsesFlagsAndEnv(t *testing.T) {
	t.Setenv("CHAINRUN_REQUEST_BASE_URL", "http://localhost:8080/api")

	cfg := Default()
	fs := ff.NewFlagSet("chainrun")
	cfg.RegisterFlags(fs)
	args := []string{"--timeout", "2s", "-b", "--format", "json", "--format", "md", "-o", "out"}
	if err := ff.Parse(fs, args, ff.WithEnvVarPrefix("CHAINRUN")); err != nil {
		t.Fatalf("parse: %v", err)
	}

	if cfg.Timeout != 2*time.Second {
		t.Fatalf("expected timeout 2s, got %s", cfg.Timeout)
	}
	if cfg.RetryInterval != Default().RetryInterval {
		t.Fatalf("expected default retry interval, got %s", cfg.RetryInterval)
	}
	if !cfg.Browser || cfg.ReportDir != "out" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.RequestBaseURL != "http://localhost:8080/api" {
		t.Fatalf("expected request base URL from env, got %q", cfg.RequestBaseURL)
	}
	formats := cfg.Formats()
	if len(formats) != 2 || formats[0] != report.JSON || formats[1] != report.Markdown {
		t.Fatalf("unexpected formats: %v", formats)
	}
}

func TestFormats_DefaultsToJSON(t *testing.T) {
	t.Parallel()
	formats := Default().Formats()
	if len(formats) != 1 || formats[0] != report.JSON {
		t.Fatalf("expected [json], got %v", formats)
	}
}

func testValidate_PositiveDurationsPass(t *rapid.T) {
	cfg := Default()
	cfg.Timeout = time.Duration(rapid.Int64Range(1, int64(time.Minute)).Draw(t, "timeout"))
	cfg.RetryInterval = time.Duration(rapid.Int64Range(1, int64(cfg.Timeout)).Draw(t, "interval"))
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got: %v", err)
	}
}

func TestValidate_PositiveDurationsPass(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testValidate_PositiveDurationsPass)
}
