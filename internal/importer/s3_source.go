package importer

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// s3Source implements Source for reading gzipped import files from AWS S3.
type s3Source struct {
	client *s3.Client
	bucket string
	logger zerolog.Logger
}

// NewS3Source creates an S3-backed import source.
func NewS3Source(ctx context.Context, bucket, region string, logger zerolog.Logger) (Source, error) {
	logger = logger.With().Str("component", "s3-import-source").Logger()

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		logger.Error().Err(err).Msg("failed to load AWS configuration")
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	client := s3.NewFromConfig(cfg)

	logger.Info().
		Str("bucket", bucket).
		Str("region", region).
		Msg("S3 import source initialised")

	return &s3Source{
		client: client,
		bucket: bucket,
		logger: logger,
	}, nil
}

// Open streams an import object from S3. The key should be the full S3 key
// including any prefix.
func (s *s3Source) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("bucket", s.bucket).
			Str("key", key).
			Msg("failed to get object from S3")
		return nil, fmt.Errorf("failed to get object from S3 (bucket=%s, key=%s): %w", s.bucket, key, err)
	}

	s.logger.Info().
		Str("bucket", s.bucket).
		Str("key", key).
		Msg("streaming import file from S3")

	return result.Body, nil
}

// fallbackSource tries S3 first, then falls back to the local file system.
type fallbackSource struct {
	s3Source   Source
	fileSource Source
	s3Prefix   string
	logger     zerolog.Logger
}

// NewFallbackSource creates a source that tries S3 first, then falls back to
// the local file system. If s3Source is nil only the file source is used.
func NewFallbackSource(s3Src, fileSrc Source, s3Prefix string, logger zerolog.Logger) Source {
	return &fallbackSource{
		s3Source:   s3Src,
		fileSource: fileSrc,
		s3Prefix:   s3Prefix,
		logger:     logger.With().Str("component", "fallback-import-source").Logger(),
	}
}

// Open attempts S3 (with the configured prefix prepended) before the local
// file system.
func (s *fallbackSource) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if s.s3Source != nil {
		s3Key := s.s3Prefix + path

		reader, err := s.s3Source.Open(ctx, s3Key)
		if err == nil {
			return reader, nil
		}

		s.logger.Warn().
			Err(err).
			Str("s3_key", s3Key).
			Msg("failed to open from S3, falling back to local file system")
	}

	return s.fileSource.Open(ctx, path)
}
