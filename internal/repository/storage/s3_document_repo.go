package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	cfg "github.com/proyecty/proyecty-backend/internal/config"
)

// S3DocumentRepository implements DocumentRepository using AWS S3
type S3DocumentRepository struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
}

// NewS3DocumentRepository creates a new S3 document repository
func NewS3DocumentRepository(ctx context.Context, s3cfg cfg.S3Config) (*S3DocumentRepository, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(s3cfg.Region),
	}

	if s3cfg.AccessKeyID != "" && s3cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				s3cfg.AccessKeyID,
				s3cfg.SecretAccessKey,
				"",
			),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Endpoint override supports MinIO/LocalStack in development
	var client *s3.Client
	if s3cfg.Endpoint != "" {
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(s3cfg.Endpoint)
			o.UsePathStyle = true
		})
	} else {
		client = s3.NewFromConfig(awsCfg)
	}

	repo := &S3DocumentRepository{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    s3cfg.Bucket,
	}

	if err := repo.ensureBucket(ctx); err != nil {
		return nil, err
	}

	return repo, nil
}

// ensureBucket creates the bucket if it doesn't exist. The bucket stays
// private; receipts and photos are served through presigned URLs only.
func (r *S3DocumentRepository) ensureBucket(ctx context.Context) error {
	_, err := r.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(r.bucket),
	})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	if !errors.As(err, &notFound) {
		var noSuchBucket *types.NoSuchBucket
		if !errors.As(err, &noSuchBucket) {
			return fmt.Errorf("failed to check bucket (may be permission denied): %w", err)
		}
	}

	_, err = r.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(r.bucket),
	})
	if err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}

	return nil
}

// Upload uploads data to S3 storage and returns the object path (not URL)
func (r *S3DocumentRepository) Upload(ctx context.Context, objectPath string, data io.Reader, contentType string, size int64) (string, error) {
	var body io.Reader = data
	if size < 0 {
		buf, err := io.ReadAll(data)
		if err != nil {
			return "", fmt.Errorf("failed to read data: %w", err)
		}
		size = int64(len(buf))
		body = bytes.NewReader(buf)
	}

	_, err := r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(r.bucket),
		Key:           aws.String(objectPath),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload object: %w", err)
	}

	return objectPath, nil
}

// Delete removes an object from S3 storage
func (r *S3DocumentRepository) Delete(ctx context.Context, objectPath string) error {
	_, err := r.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(objectPath),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// GeneratePresignedURL generates a presigned GET URL for temporary access
func (r *S3DocumentRepository) GeneratePresignedURL(ctx context.Context, objectPath string, expiry time.Duration) (string, error) {
	presignedReq, err := r.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(objectPath),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return presignedReq.URL, nil
}
