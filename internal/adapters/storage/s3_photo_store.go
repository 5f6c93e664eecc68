package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/viralforge/users-service/internal/domain"
)

// Config points the photo store at an S3-compatible endpoint (MinIO in development).
type Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	// PublicBaseURL prefixes returned object URLs as <base>/<bucket>/<key>.
	PublicBaseURL string
	UsePathStyle  bool
	MaxAttempts   int
	HTTPClient    *http.Client
}

// S3PhotoStore uploads profile photos with PutObject.
type S3PhotoStore struct {
	client  *s3.Client
	bucket  string
	baseURL string
}

func NewS3PhotoStore(ctx context.Context, cfg Config) (*S3PhotoStore, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("%w: bucket is required", domain.ErrStorageMisconfigured)
	}
	if strings.TrimSpace(cfg.AccessKey) == "" || strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, fmt.Errorf("%w: access key and secret key are required", domain.ErrStorageMisconfigured)
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, config.WithHTTPClient(cfg.HTTPClient))
	}
	if cfg.MaxAttempts > 0 {
		opts = append(opts, config.WithRetryMaxAttempts(cfg.MaxAttempts))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: load aws config: %v", domain.ErrStorageMisconfigured, err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(strings.TrimRight(cfg.Endpoint, "/"))
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	baseURL := cfg.PublicBaseURL
	if baseURL == "" {
		baseURL = cfg.Endpoint
	}
	return &S3PhotoStore{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// Put uploads body under key and returns its public URL.
func (s *S3PhotoStore) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error) {
	// The signer needs a seekable payload on plain-HTTP endpoints; uploads are small.
	payload, err := io.ReadAll(io.LimitReader(body, size))
	if err != nil {
		return "", fmt.Errorf("%w: read payload: %v", domain.ErrStorageInvalidRequest, err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(payload),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(payload))),
	})
	if err != nil {
		return "", classifyError(s.bucket, key, err)
	}
	return s.PublicURL(key), nil
}

func (s *S3PhotoStore) PublicURL(key string) string {
	return s.baseURL + "/" + s.bucket + "/" + strings.TrimLeft(key, "/")
}

// Ping checks the bucket is reachable with the configured credentials.
func (s *S3PhotoStore) Ping(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return classifyError(s.bucket, "", err)
	}
	return nil
}

func classifyError(bucket, key string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		switch code {
		case "NoSuchBucket", "InvalidBucketName", "AllAccessDisabled", "NotFound":
			return fmt.Errorf("%w: bucket=%s", domain.ErrBucketNotFound, bucket)
		case "AccessDenied", "UnauthorizedOperation", "Forbidden":
			return fmt.Errorf("%w: bucket=%s object=%s", domain.ErrStorageAccessDenied, bucket, key)
		case "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return fmt.Errorf("%w: bucket=%s code=%s", domain.ErrStorageMisconfigured, bucket, code)
		case "InvalidRequest", "InvalidArgument", "EntityTooLarge":
			return fmt.Errorf("%w: bucket=%s object=%s code=%s", domain.ErrStorageInvalidRequest, bucket, key, code)
		case "ServiceUnavailable", "SlowDown", "RequestTimeout":
			return fmt.Errorf("%w: bucket=%s code=%s", domain.ErrStorageUnavailable, bucket, code)
		}
		return fmt.Errorf("%w: bucket=%s object=%s s3_code=%s", domain.ErrStorageUploadFailed, bucket, key, code)
	}

	var paramErr smithy.InvalidParamsError
	if errors.As(err, &paramErr) {
		return fmt.Errorf("%w: bucket=%s object=%s: %v", domain.ErrStorageInvalidRequest, bucket, key, err)
	}
	var sendErr *smithyhttp.RequestSendError
	var netErr net.Error
	if errors.As(err, &sendErr) || errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: bucket=%s: %v", domain.ErrStorageUnavailable, bucket, err)
	}
	return fmt.Errorf("%w: bucket=%s object=%s: %v", domain.ErrStorageUploadFailed, bucket, key, err)
}
