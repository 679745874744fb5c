// Package blobstore wraps S3 object storage for source artifacts and
// rendered final PDFs, exposing the read/write/delete/presign surface
// the render pipeline needs.
package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/gosom/vectorprint/internal/apperrors"
	"github.com/gosom/vectorprint/internal/config"
)

// deletablePrefixes restricts blob deletion to the final-render and
// print-copy namespaces, preventing accidental purges of immutable
// sources.
var deletablePrefixes = []string{"documents/final/", "documents/print/"}

// Store is the S3-backed blob store adapter.
type Store struct {
	client *s3.Client
	cfg    *config.S3Config
}

// New builds a Store from S3Config, using static credentials with an
// optional custom endpoint for S3-compatible local/dev backends.
func New(ctx context.Context, cfg *config.S3Config) (*Store, error) {
	creds := credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithCredentialsProvider(creds),
		awsconfig.WithRegion(cfg.Region),
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Store{client: client, cfg: cfg}, nil
}

// Upload writes body under key.
func (s *Store) Upload(ctx context.Context, key string, body io.Reader) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
		Body:   body,
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

// Download reads the full object at key into memory. Source PDFs/SVGs
// are bounded (VECTOR_MAX_PAGES caps rendered output, not source size)
// so buffering is acceptable here, matching the layout engine's
// pure-function contract of (metadata, source bytes) -> PDF bytes.
func (s *Store) Download(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", key, err)
	}
	defer out.Body.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, out.Body); err != nil {
		return nil, fmt.Errorf("read body %s: %w", key, err)
	}
	return buf.Bytes(), nil
}

// Delete removes the object at key, refusing keys outside the
// deletable-prefix allowlist so the reaper can never purge an
// immutable source.
func (s *Store) Delete(ctx context.Context, key string) error {
	if !isDeletable(key) {
		return apperrors.New(apperrors.KindValidation, fmt.Sprintf("key %q is not in a deletable prefix", key))
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// PresignURL produces a short-TTL signed GET URL for key.
func (s *Store) PresignURL(ctx context.Context, key string, ttl time.Duration) (string, time.Time, error) {
	presignClient := s3.NewPresignClient(s.client)
	req, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("presign %s: %w", key, err)
	}
	return req.URL, time.Now().Add(ttl), nil
}

// IsHealthy reports whether the configured bucket is reachable,
// mirroring the kvcache and queue adapters' own Ping-style health
// checks.
func (s *Store) IsHealthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.cfg.Bucket)})
	return err == nil
}

func isDeletable(key string) bool {
	for _, prefix := range deletablePrefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}
