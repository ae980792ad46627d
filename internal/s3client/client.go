// Package s3client uploads run artifacts to S3-compatible object storage.
// Tests use the in-memory gofakes3 backend from NewTestClient.
package s3client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ErrObjectNotFound is returned when a requested artifact does not exist.
var ErrObjectNotFound = errors.New("s3client: object not found")

// Config describes the artifact bucket.
type Config struct {
	// Endpoint overrides the AWS endpoint for S3-compatible services.
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	// Prefix is prepended to every key.
	Prefix string
	// PublicURL is the base URL artifacts are served from. Defaults to
	// Endpoint/Bucket.
	PublicURL    string
	UsePathStyle bool
}

// Client stores artifacts under a key prefix in one bucket.
type Client struct {
	s3        *s3.Client
	bucket    string
	prefix    string
	publicURL string
}

// New builds a client from cfg.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3client: bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	sdkConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3client: load aws config: %w", err)
	}
	api := s3.NewFromConfig(sdkConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	publicURL := cfg.PublicURL
	if publicURL == "" && cfg.Endpoint != "" {
		publicURL = strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	}
	return wrap(api, cfg.Bucket, cfg.Prefix, publicURL), nil
}

func wrap(api *s3.Client, bucket, prefix, publicURL string) *Client {
	return &Client{
		s3:        api,
		bucket:    bucket,
		prefix:    strings.Trim(prefix, "/"),
		publicURL: strings.TrimSuffix(publicURL, "/"),
	}
}

// Key returns the full object key for name.
func (c *Client) Key(name string) string {
	name = strings.TrimPrefix(name, "/")
	if c.prefix == "" {
		return name
	}
	return path.Join(c.prefix, name)
}

// PutObject stores content under name.
func (c *Client) PutObject(ctx context.Context, name string, content []byte, contentType string) error {
	key := c.Key(name)
	_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("s3client: put %q: %w", key, err)
	}
	return nil
}

// GetObject returns the content stored under name.
func (c *Client) GetObject(ctx context.Context, name string) ([]byte, error) {
	key := c.Key(name)
	out, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		var nf *types.NotFound
		if errors.As(err, &nsk) || errors.As(err, &nf) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("s3client: get %q: %w", key, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3client: read %q: %w", key, err)
	}
	return data, nil
}

// PublicURL returns where name can be fetched from.
func (c *Client) PublicURL(name string) string {
	return c.publicURL + "/" + c.Key(name)
}

// Bucket returns the configured bucket.
func (c *Client) Bucket() string {
	return c.bucket
}
