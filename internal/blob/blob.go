// Package blob uploads attachment content and returns a URI for the
// attachment record.
//
// S3 stores objects in a bucket (AWS or any S3-compatible service). Local
// copies content into a cache directory and returns a file:// URI; it backs
// Fallback, which keeps attachments usable while the device is offline.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"

	"github.com/ledgerline/ledgersync/internal/logging"
)

// Uploader stores content under key and returns where it can be fetched.
type Uploader interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
}

// S3Config configures the S3 uploader.
type S3Config struct {
	Bucket   string
	Region   string
	Endpoint string // For S3-compatible services (MinIO, etc.)
	// Prefer IAM roles or the AWS_* environment variables over static keys.
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
	UsePathStyle    bool
}

// putter is the part of *s3.Client the uploader calls.
type putter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 uploads to a bucket.
type S3 struct {
	client putter
	cfg    S3Config
}

// NewS3 builds an S3 uploader from cfg using the default AWS credential
// chain unless static keys are given.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	var opts []func(*config.LoadOptions) error
	opts = append(opts, config.WithRegion(cfg.Region))
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = cfg.UsePathStyle
		})
	}

	return &S3{client: s3.NewFromConfig(awsCfg, s3Opts...), cfg: cfg}, nil
}

// Upload puts the object and returns its s3:// URI.
func (s *S3) Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	fullKey := s.cfg.Prefix + key
	in := &s3.PutObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(fullKey),
		Body:   r,
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		return "", fmt.Errorf("S3 put object failed: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", s.cfg.Bucket, fullKey), nil
}

// Local copies content into a directory.
type Local struct {
	Dir string
}

// Upload writes content to Dir/key and returns a file:// URI.
func (l Local) Upload(_ context.Context, key string, r io.Reader, _ string) (string, error) {
	clean := filepath.Clean("/" + key)
	path := filepath.Join(l.Dir, clean)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create blob directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create blob file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close blob: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve blob path: %w", err)
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return u.String(), nil
}

// Fallback tries Primary and falls back to Local when it fails. Content is
// spooled to the local copy first so the reader can be replayed.
type Fallback struct {
	Primary Uploader
	Local   Local
	Log     logrus.FieldLogger
}

func (f Fallback) Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	localURI, err := f.Local.Upload(ctx, key, r, contentType)
	if err != nil {
		return "", err
	}
	if f.Primary == nil {
		return localURI, nil
	}

	path, err := pathOf(localURI)
	if err != nil {
		return localURI, nil
	}
	spool, err := os.Open(path)
	if err != nil {
		return localURI, nil
	}
	defer spool.Close()

	uri, err := f.Primary.Upload(ctx, key, spool, contentType)
	if err != nil {
		logging.For(f.Log, "blob").WithError(err).WithField("key", key).Warn("upload failed, keeping local copy")
		return localURI, nil
	}
	return uri, nil
}

// IsLocal reports whether uri points at a local fallback copy.
func IsLocal(uri string) bool {
	return strings.HasPrefix(uri, "file://")
}

func pathOf(fileURI string) (string, error) {
	u, err := url.Parse(fileURI)
	if err != nil {
		return "", err
	}
	return filepath.FromSlash(u.Path), nil
}
