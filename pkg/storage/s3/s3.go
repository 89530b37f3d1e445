// Package s3 implements storage.ObjectStore on Amazon S3 and S3-compatible
// services (MinIO, Cloudflare R2, DigitalOcean Spaces).
//
// Objects are written with Content-Disposition "inline" so that browsers play
// segment audio instead of downloading it. When PublicBaseURL is configured
// (typically a CDN in front of the bucket) the returned URL is built from it;
// otherwise the bucket's own endpoint is used.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/MrWong99/sttdata/pkg/storage"
)

// DefaultRegion is used when Config.Region is empty.
const DefaultRegion = "us-east-1"

var _ storage.ObjectStore = (*Store)(nil)

// Config holds the bucket and credentials of an S3 store.
type Config struct {
	// Bucket is the bucket name. Required.
	Bucket string

	// Region is the AWS region. Defaults to DefaultRegion.
	Region string

	// Endpoint is a custom S3-compatible endpoint. Setting it implies
	// path-style addressing.
	Endpoint string

	// AccessKey and SecretKey select static credentials. When either is empty
	// the default AWS credential chain is used.
	AccessKey string
	SecretKey string

	// ForcePathStyle forces path-style URLs on AWS itself.
	ForcePathStyle bool

	// PublicBaseURL, if set, prefixes object keys to form returned URLs.
	PublicBaseURL string
}

// ApplyDefaults fills in zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Region == "" {
		c.Region = DefaultRegion
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []error
	if c.Bucket == "" {
		errs = append(errs, errors.New("bucket is required"))
	}
	if (c.AccessKey == "") != (c.SecretKey == "") {
		errs = append(errs, errors.New("access_key and secret_key must be set together"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("s3: invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Store uploads objects to a single bucket.
type Store struct {
	client  *awss3.Client
	bucket  string
	baseURL string
}

// New loads the AWS configuration and returns a Store for cfg.Bucket.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3: load aws config: %w", err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}
	})

	baseURL := cfg.PublicBaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL(cfg)
	}
	return &Store{client: client, bucket: cfg.Bucket, baseURL: baseURL}, nil
}

// Put uploads data under key and returns its public URL.
func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := storage.CheckKey(key); err != nil {
		return "", fmt.Errorf("s3: put %q: %w", key, err)
	}
	_, err := s.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:             aws.String(s.bucket),
		Key:                aws.String(key),
		Body:               bytes.NewReader(data),
		ContentLength:      aws.Int64(int64(len(data))),
		ContentType:        aws.String(contentType),
		ContentDisposition: aws.String("inline"),
	})
	if err != nil {
		return "", fmt.Errorf("s3: put %q: %w", key, err)
	}
	return storage.JoinURL(s.baseURL, key), nil
}

// URL returns the public URL an object stored under key would have.
func (s *Store) URL(key string) string {
	return storage.JoinURL(s.baseURL, key)
}

func defaultBaseURL(cfg Config) string {
	switch {
	case cfg.Endpoint != "":
		return storage.JoinURL(cfg.Endpoint, cfg.Bucket)
	case cfg.ForcePathStyle:
		return fmt.Sprintf("https://s3.%s.amazonaws.com/%s", cfg.Region, cfg.Bucket)
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}
}
