// Package s3blob implements blob.Store on Amazon S3 or any S3 compatible
// endpoint such as MinIO.
package s3blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/papercomputeco/biosearch/pkg/blob"
	"github.com/papercomputeco/biosearch/pkg/utils"
)

// partSize is the multipart chunk size used for large videos.
const partSize = 10 * 1024 * 1024

// Config holds configuration for the S3 store.
type Config struct {
	Bucket string
	Region string

	// Endpoint overrides the S3 endpoint; path-style addressing is used then.
	Endpoint string

	// AccessKeyID and SecretAccessKey select static credentials. When empty
	// the default AWS credential chain is used.
	AccessKeyID     string
	SecretAccessKey string

	// BaseURL, when set, is the prefix of returned links.
	BaseURL string

	Retry utils.RetryPolicy
}

// Store uploads objects to a bucket.
type Store struct {
	bucket   string
	region   string
	endpoint string
	baseURL  string
	uploader *manager.Uploader
	retry    utils.RetryPolicy
	logger   *slog.Logger
}

// New creates an S3 store.
func New(ctx context.Context, c Config, logger *slog.Logger) (*Store, error) {
	if c.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(c.Region)}
	if c.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, ""),
		))
	}

	sdkConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(sdkConfig, func(o *s3.Options) {
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
			o.UsePathStyle = true
		}
	})

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = partSize
	})

	logger.Info("using s3 bucket", "bucket", c.Bucket, "region", c.Region, "endpoint", c.Endpoint)

	return &Store{
		bucket:   c.Bucket,
		region:   c.Region,
		endpoint: c.Endpoint,
		baseURL:  c.BaseURL,
		uploader: uploader,
		retry:    c.Retry,
		logger:   logger,
	}, nil
}

// Put uploads body. Seekable bodies are retried on failure, others get a
// single attempt.
func (s *Store) Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	upload := func(ctx context.Context) error {
		_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(key),
			Body:        body,
			ContentType: aws.String(contentType),
		})
		return err
	}

	var err error
	if seeker, ok := body.(io.Seeker); ok {
		err = s.retry.Do(ctx, func(ctx context.Context) error {
			if _, err := seeker.Seek(0, io.SeekStart); err != nil {
				return err
			}
			if err := upload(ctx); err != nil {
				if utils.ShouldRetry(err) {
					return utils.Retryable(err)
				}
				return err
			}
			return nil
		})
	} else {
		err = upload(ctx)
	}
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", key, err)
	}

	s.logger.Debug("uploaded object", "bucket", s.bucket, "key", key, "content_type", contentType)
	return s.link(key), nil
}

func (s *Store) link(key string) string {
	switch {
	case s.baseURL != "":
		return blob.JoinLink(s.baseURL, key)
	case s.endpoint != "":
		return blob.JoinLink(blob.JoinLink(s.endpoint, s.bucket), key)
	default:
		return blob.S3Link(s.bucket, s.region, key)
	}
}

func (s *Store) Close() error {
	return nil
}

var _ blob.Store = (*Store)(nil)
