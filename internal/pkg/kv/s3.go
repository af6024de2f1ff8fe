package kv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gofiber/fiber/v2/log"

	"github.com/hfactor/hfactor-site/internal/pkg/config"
)

// S3Store keeps each record as one JSON object under a key prefix. Record
// metadata becomes S3 user metadata.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Store creates a store writing to cfg.BucketName under prefix.
func NewS3Store(ctx context.Context, cfg config.S3Config, prefix string) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			// S3-compatible services (R2, B2, MinIO) need path-style addressing
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true
		}
	})

	return &S3Store{client: client, bucket: cfg.BucketName, prefix: prefix}, nil
}

// ObjectKey maps a record key to its object key.
func (s *S3Store) ObjectKey(key string) string {
	return s.prefix + key
}

// Ping checks that the bucket is reachable.
func (s *S3Store) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		log.Warnf("[Store] Bucket %s not accessible: %v", s.bucket, err)
		return fmt.Errorf("bucket %s not accessible: %w", s.bucket, err)
	}
	log.Infof("[Store] Using bucket %s with prefix %q", s.bucket, s.prefix)
	return nil
}

func (s *S3Store) Put(ctx context.Context, key string, value []byte, metadata map[string]string) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.ObjectKey(key)),
		Body:        bytes.NewReader(value),
		ContentType: aws.String("application/json"),
	}
	if len(metadata) > 0 {
		input.Metadata = metadata
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("s3 put %s: %w", key, err)
	}
	return nil
}

func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.ObjectKey(key)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("s3 get %s: %w", key, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}
