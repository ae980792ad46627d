// Package config holds chainrun configuration. Chain and report settings
// come from flags, which ff also reads from CHAINRUN_* environment
// variables. Storage credentials use the standard AWS_ variables.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/peterbourgon/ff/v4"

	"github.com/kuitang/chaincmds/internal/chain"
	"github.com/kuitang/chaincmds/internal/report"
	"github.com/kuitang/chaincmds/internal/s3client"
	"github.com/kuitang/chaincmds/internal/urlutil"
)

const (
	defaultRegion       = "auto"
	defaultReportPrefix = "chainrun"
)

var logLevels = []string{"debug", "info", "warn", "error"}

// Config holds all chainrun configuration.
type Config struct {
	// Chain execution
	Timeout        time.Duration
	RetryInterval  time.Duration
	RequestBaseURL string

	// Browser mode
	Browser bool
	BaseURL string // prefix for relative visit targets
	Headed  bool

	// Reports
	ReportDir     string
	ReportFormats []string
	Publish       bool
	ReportPrefix  string

	LogLevel string

	// S3 storage for published reports
	AWSEndpointS3      string // AWS_ENDPOINT_URL_S3
	AWSRegion          string // AWS_REGION
	AWSAccessKeyID     string // AWS_ACCESS_KEY_ID
	AWSSecretAccessKey string // AWS_SECRET_ACCESS_KEY
	AWSBucketName      string // BUCKET_NAME
	AWSPublicURL       string // S3_PUBLIC_URL
}

// ValidationError represents a configuration validation error with multiple issues.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Timeout:       chain.DefaultTimeout,
		RetryInterval: chain.DefaultRetryInterval,
		ReportPrefix:  defaultReportPrefix,
		LogLevel:      "info",
		AWSRegion:     defaultRegion,
	}
}

// LoadConfig returns the defaults with storage settings read from the
// environment. Flags registered afterwards override the rest.
func LoadConfig() *Config {
	cfg := Default()
	cfg.AWSEndpointS3 = strings.TrimSpace(os.Getenv("AWS_ENDPOINT_URL_S3"))
	cfg.AWSRegion = getEnvOrDefault("AWS_REGION", defaultRegion)
	cfg.AWSAccessKeyID = strings.TrimSpace(os.Getenv("AWS_ACCESS_KEY_ID"))
	cfg.AWSSecretAccessKey = strings.TrimSpace(os.Getenv("AWS_SECRET_ACCESS_KEY"))
	cfg.AWSBucketName = strings.TrimSpace(os.Getenv("BUCKET_NAME"))
	cfg.AWSPublicURL = strings.TrimSpace(os.Getenv("S3_PUBLIC_URL"))
	if cfg.AWSPublicURL == "" && cfg.AWSEndpointS3 != "" && cfg.AWSBucketName != "" {
		cfg.AWSPublicURL = strings.TrimRight(cfg.AWSEndpointS3, "/") + "/" + cfg.AWSBucketName
	}
	return cfg
}

// RegisterFlags binds the chain, browser and report settings to fs, using
// the current values as defaults.
func (c *Config) RegisterFlags(fs *ff.FlagSet) {
	fs.DurationVar(&c.Timeout, 't', "timeout", c.Timeout, "how long a command retries before failing")
	fs.DurationVar(&c.RetryInterval, 0, "retry-interval", c.RetryInterval, "pause between retries")
	fs.StringVar(&c.RequestBaseURL, 0, "request-base-url", c.RequestBaseURL, "base URL for relative request URLs")
	fs.BoolVar(&c.Browser, 'b', "browser", "run scripts in Chromium instead of against the archive documents")
	fs.StringVar(&c.BaseURL, 0, "base-url", c.BaseURL, "base URL for relative visit targets in browser mode")
	fs.BoolVar(&c.Headed, 0, "headed", "show the browser window")
	fs.StringVar(&c.ReportDir, 'o', "report-dir", c.ReportDir, "write reports to this directory")
	fs.StringListVar(&c.ReportFormats, 'f', "format", "report format: json, md or html (repeatable)")
	fs.BoolVar(&c.Publish, 'p', "publish", "upload reports to S3 (BUCKET_NAME and AWS_ credentials)")
	fs.StringVar(&c.ReportPrefix, 0, "report-prefix", c.ReportPrefix, "key prefix for published reports")
	fs.StringVar(&c.LogLevel, 'l', "log-level", c.LogLevel, "debug, info, warn or error")
}

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Timeout <= 0 {
		errs = append(errs, "timeout must be positive")
	}
	if c.RetryInterval <= 0 {
		errs = append(errs, "retry-interval must be positive")
	} else if c.Timeout > 0 && c.RetryInterval > c.Timeout {
		errs = append(errs, "retry-interval must not exceed timeout")
	}
	if c.RequestBaseURL != "" && !urlutil.IsAbsolute(c.RequestBaseURL) {
		errs = append(errs, "request-base-url must be an absolute URL")
	}
	if c.BaseURL != "" {
		if !c.Browser {
			errs = append(errs, "base-url only applies with --browser")
		}
		if !urlutil.IsAbsolute(c.BaseURL) {
			errs = append(errs, "base-url must be an absolute URL")
		}
	}
	if c.Headed && !c.Browser {
		errs = append(errs, "headed only applies with --browser")
	}

	for _, f := range c.ReportFormats {
		if _, err := report.ParseFormat(f); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(c.ReportFormats) > 0 && c.ReportDir == "" && !c.Publish {
		errs = append(errs, "format needs --report-dir or --publish")
	}

	// Publishing: bucket and credentials are required
	if c.Publish {
		if c.AWSBucketName == "" {
			errs = append(errs, "BUCKET_NAME is required with --publish")
		}
		if c.AWSAccessKeyID == "" {
			errs = append(errs, "AWS_ACCESS_KEY_ID is required with --publish")
		}
		if c.AWSSecretAccessKey == "" {
			errs = append(errs, "AWS_SECRET_ACCESS_KEY is required with --publish")
		}
	}

	if !contains(logLevels, strings.ToLower(c.LogLevel)) {
		errs = append(errs, fmt.Sprintf("log-level must be one of %s", strings.Join(logLevels, ", ")))
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// Formats returns the parsed report formats, JSON when none are set.
func (c *Config) Formats() []report.Format {
	if len(c.ReportFormats) == 0 {
		return []report.Format{report.JSON}
	}
	out := make([]report.Format, 0, len(c.ReportFormats))
	for _, s := range c.ReportFormats {
		if f, err := report.ParseFormat(s); err == nil {
			out = append(out, f)
		}
	}
	return out
}

// StorageConfig returns the S3 settings for publishing reports.
func (c *Config) StorageConfig() s3client.Config {
	return s3client.Config{
		Endpoint:        c.AWSEndpointS3,
		Region:          c.AWSRegion,
		AccessKeyID:     c.AWSAccessKeyID,
		SecretAccessKey: c.AWSSecretAccessKey,
		Bucket:          c.AWSBucketName,
		PublicURL:       c.AWSPublicURL,
		UsePathStyle:    c.AWSEndpointS3 != "",
	}
}

// PrintStartupSummary prints a human-readable summary of the configuration to w.
func (c *Config) PrintStartupSummary(w io.Writer) {
	fmt.Fprintln(w, "chainrun")
	fmt.Fprintf(w, "  Timeout:  %s (retry every %s)\n", c.Timeout, c.RetryInterval)
	if c.Browser {
		mode := "headless"
		if c.Headed {
			mode = "headed"
		}
		fmt.Fprintf(w, "  DOM:      Chromium (%s, base: %s)\n", mode, orNone(c.BaseURL))
	} else {
		fmt.Fprintln(w, "  DOM:      archive documents")
	}
	fmt.Fprintf(w, "  Requests: %s\n", orNone(c.RequestBaseURL))
	if c.ReportDir != "" {
		fmt.Fprintf(w, "  Reports:  %s (%s)\n", c.ReportDir, strings.Join(formatNames(c.Formats()), ", "))
	}
	if c.Publish {
		fmt.Fprintf(w, "  Publish:  s3://%s/%s\n", c.AWSBucketName, c.ReportPrefix)
	}
}

func formatNames(formats []report.Format) []string {
	out := make([]string, len(formats))
	for i, f := range formats {
		out[i] = string(f)
	}
	return out
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
