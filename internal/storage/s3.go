package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"go.uber.org/zap"

	"github.com/balkashynov/whisp/internal/config"
)

// S3 uploads to a bucket and returns a presigned GET URL, so the bucket
// itself can stay private.
type S3 struct {
	bucket     string
	prefix     string
	presignTTL time.Duration
	client     *s3.S3
	uploader   *s3manager.Uploader
	log        *zap.SugaredLogger
}

// NewS3 builds an uploader from static credentials when given, otherwise
// from the default AWS credential chain. A custom endpoint switches to
// path-style addressing for S3-compatible stores.
func NewS3(cfg config.S3Config, presignTTL time.Duration, log *zap.SugaredLogger) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if presignTTL <= 0 {
		presignTTL = 10 * time.Minute
	}

	awsCfg := aws.NewConfig().WithRegion(cfg.Region)
	if cfg.Endpoint != "" {
		awsCfg = awsCfg.WithEndpoint(cfg.Endpoint).WithS3ForcePathStyle(true)
	}
	if cfg.AccessKeyID != "" {
		awsCfg = awsCfg.WithCredentials(credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, ""))
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}

	return &S3{
		bucket:     cfg.Bucket,
		prefix:     cfg.Prefix,
		presignTTL: presignTTL,
		client:     s3.New(sess),
		uploader:   s3manager.NewUploader(sess),
		log:        log,
	}, nil
}

func (s *S3) Upload(ctx context.Context, name string, data []byte, mimeType string) (string, error) {
	key := path.Join(s.prefix, name)

	out, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(mimeType),
	})
	if err != nil {
		return "", fmt.Errorf("put s3://%s/%s: %w", s.bucket, key, err)
	}
	s.log.Debugw("uploaded recording", "location", out.Location, "bytes", len(data))

	req, _ := s.client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	url, err := req.Presign(s.presignTTL)
	if err != nil {
		return "", fmt.Errorf("presign s3://%s/%s: %w", s.bucket, key, err)
	}
	return url, nil
}
