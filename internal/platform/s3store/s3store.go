// Package s3store is the media object store backed by S3. Generated
// assets are uploaded under their content key; consumers read through
// short-lived signed URLs rather than a public bucket.
package s3store

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/storyloom/storyloom-api/internal/config"
)

// Variant selects which rendition of an object a signed URL points at.
type Variant string

const (
	// VariantOriginal is the object as uploaded.
	VariantOriginal Variant = "original"

	// VariantThumb is the downscaled rendition kept alongside images.
	// Vision analysis reads thumbs: the model's continuity description
	// does not improve with full resolution, but its token bill does.
	VariantThumb Variant = "thumb"
)

// Store wraps the S3 client and presigner for one bucket.
type Store struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
	signedTTL time.Duration
	logger    *slog.Logger
}

// New creates a store from configuration, using the default AWS
// credential chain.
func New(ctx context.Context, logger *slog.Logger, cfg config.StorageConfig) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)
	return &Store{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    cfg.Bucket,
		signedTTL: cfg.SignedURLTTL,
		logger:    logger.With("component", "s3store"),
	}, nil
}

// Upload writes an object under the given key.
func (s *Store) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	if key == "" {
		return fmt.Errorf("object key is required")
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: &contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload object %q: %w", key, err)
	}

	s.logger.Debug("uploaded object", "key", key, "bytes", len(data), "content_type", contentType)
	return nil
}

// SignedURL returns a short-lived GET URL for the requested variant of
// an object. A ttl of zero uses the configured default.
func (s *Store) SignedURL(ctx context.Context, key string, variant Variant, ttl time.Duration) (string, error) {
	if key == "" {
		return "", fmt.Errorf("object key is required")
	}
	if ttl <= 0 {
		ttl = s.signedTTL
	}

	objectKey := key
	if variant == VariantThumb {
		objectKey = thumbKey(key)
	}

	result, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &objectKey,
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("failed to presign object %q: %w", objectKey, err)
	}

	return result.URL, nil
}

// Delete removes an object. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("object key is required")
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %q: %w", key, err)
	}
	return nil
}

// thumbKey maps an object key to its thumbnail rendition:
// a/b/name.ext becomes a/b/thumbnails/name.jpg.
func thumbKey(key string) string {
	dir, file := path.Split(key)
	if ext := path.Ext(file); ext != "" {
		file = strings.TrimSuffix(file, ext)
	}
	return dir + "thumbnails/" + file + ".jpg"
}
