package upload

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ashwinrm/buildherald/iox"
)

// S3Config holds configuration for the S3 mirror backend.
type S3Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string
	// Prefix is the key prefix within the bucket (optional).
	Prefix string
	// Region is the AWS region (optional, uses default chain if empty).
	Region string
	// Endpoint is a custom S3 endpoint URL for S3-compatible providers
	// (e.g. Cloudflare R2, MinIO). Empty uses the default AWS endpoint.
	Endpoint string
	// UsePathStyle forces path-style addressing (bucket in path, not
	// subdomain). Required by most S3-compatible providers.
	UsePathStyle bool
	// URLTemplate renders the shareable link with %s replaced by the object
	// key. Empty derives a virtual-hosted AWS URL.
	URLTemplate string
}

// Validate checks that required S3 configuration is present.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("s3 bucket is required")
	}
	return nil
}

// s3API is the slice of the S3 client the backend uses. Narrowed for testing.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 mirrors artifacts to an S3-compatible bucket. Unlike the public file
// hosts it needs credentials (AWS default chain), so it is feature-flagged.
type S3 struct {
	api    s3API
	config S3Config
}

// NewS3 creates the S3 backend using the AWS SDK default credential chain
// (env vars, shared config, IAM role).
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsConfig, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3: failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return &S3{
		api:    s3.NewFromConfig(awsConfig, s3Opts...),
		config: cfg,
	}, nil
}

// Name implements Backend.
func (b *S3) Name() string { return "S3" }

// Upload implements Backend.
func (b *S3) Upload(ctx context.Context, filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("s3: open %q: %w", filePath, err)
	}
	defer iox.DiscardClose(f)

	key := b.objectKey(filePath)
	_, err = b.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.config.Bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return "", fmt.Errorf("s3: put %q: %w", key, err)
	}

	return b.objectURL(key), nil
}

// objectKey joins the configured prefix with the file's base name.
func (b *S3) objectKey(filePath string) string {
	return path.Join(b.config.Prefix, filepath.Base(filePath))
}

// objectURL renders the shareable link for an uploaded key.
func (b *S3) objectURL(key string) string {
	if b.config.URLTemplate != "" {
		return fmt.Sprintf(b.config.URLTemplate, key)
	}
	escaped := url.PathEscape(key)
	// PathEscape encodes "/" too; keys keep their separators.
	escaped = strings.ReplaceAll(escaped, "%2F", "/")
	if b.config.Region != "" {
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", b.config.Bucket, b.config.Region, escaped)
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", b.config.Bucket, escaped)
}
