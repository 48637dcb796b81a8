// Package s3 implements S3-backed content storage, including presigned
// upload URLs for direct-to-blob uploads.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/bimhub/bimhub/pkg/content"
	"github.com/bimhub/bimhub/pkg/content/keys"
)

// Store is an S3-backed implementation of content.Store.
//
// Objects are write-once: Put refuses keys that already hold data. The
// existence check and the write are separate requests, so a concurrent
// writer can slip between them; callers that need hard immutability pick
// collision-free keys (the keys package embeds 128-bit random ids).
type Store struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
	keyPrefix string
}

// Config contains configuration for the S3 content store.
type Config struct {
	// Client is the configured S3 client.
	Client *s3.Client

	// Bucket is the S3 bucket name. The bucket must already exist.
	Bucket string

	// KeyPrefix is an optional prefix for all object keys.
	KeyPrefix string
}

// NewClientFromConfig creates an S3 client from configuration parameters.
// This is a helper for creating S3 clients from YAML configuration.
func NewClientFromConfig(
	ctx context.Context,
	endpoint,
	region,
	accessKeyID,
	secretAccessKey string,
	forcePathStyle bool,
) (*s3.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKeyID,
			secretAccessKey,
			"", // session token (empty for static credentials)
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = &endpoint
		}
		o.UsePathStyle = forcePathStyle
	})

	return client, nil
}

// New creates a new S3-backed content store and verifies bucket access.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	_, err := cfg.Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}

	return &Store{
		client:    cfg.Client,
		presigner: s3.NewPresignClient(cfg.Client),
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
	}, nil
}

// objectKey validates the key and applies the optional prefix.
func (s *Store) objectKey(key string) (string, error) {
	if err := keys.Validate(key); err != nil {
		return "", err
	}
	if s.keyPrefix != "" {
		return s.keyPrefix + key, nil
	}
	return key, nil
}

// Put stores the reader's bytes at key. A HeadObject probe enforces the
// write-once contract before the PutObject request.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	objKey, err := s.objectKey(key)
	if err != nil {
		return err
	}

	_, err = s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objKey),
	})
	if err == nil {
		return content.ErrAlreadyExists
	}
	if !isNotFoundError(err) {
		return classify(fmt.Errorf("head object %q: %w", key, err))
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objKey),
		Body:   r,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return classify(fmt.Errorf("put object %q: %w", key, err))
	}
	return nil
}

// OpenRead streams the object body. Returns (nil, nil) when the key does
// not exist.
func (s *Store) OpenRead(ctx context.Context, key string) (io.ReadCloser, error) {
	objKey, err := s.objectKey(key)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objKey),
	})
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil
		}
		return nil, classify(fmt.Errorf("get object %q: %w", key, err))
	}
	return out.Body, nil
}

// Delete removes the object at key. S3 deletes are idempotent, so a prior
// existence probe decides the returned bool.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	objKey, err := s.objectKey(key)
	if err != nil {
		return false, err
	}

	existed, err := s.Exists(ctx, key)
	if err != nil {
		return false, err
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objKey),
	})
	if err != nil {
		return false, classify(fmt.Errorf("delete object %q: %w", key, err))
	}
	return existed, nil
}

// DeletePrefix removes every object under the given key prefix in batches
// of up to 1000, the DeleteObjects request limit.
func (s *Store) DeletePrefix(ctx context.Context, prefix string) error {
	objPrefix, err := s.objectKey(strings.TrimSuffix(prefix, "/"))
	if err != nil {
		return err
	}
	objPrefix += "/"

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(objPrefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return classify(fmt.Errorf("list prefix %q: %w", prefix, err))
		}
		if len(page.Contents) == 0 {
			continue
		}

		objects := make([]types.ObjectIdentifier, len(page.Contents))
		for i, obj := range page.Contents {
			objects[i] = types.ObjectIdentifier{Key: obj.Key}
		}
		_, err = s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{
				Objects: objects,
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			return classify(fmt.Errorf("delete prefix %q: %w", prefix, err))
		}
	}
	return nil
}

// Exists reports whether the key holds data.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	size, err := s.Size(ctx, key)
	if err != nil {
		return false, err
	}
	return size >= 0, nil
}

// Size returns the object size, or -1 when the key does not exist.
func (s *Store) Size(ctx context.Context, key string) (int64, error) {
	objKey, err := s.objectKey(key)
	if err != nil {
		return 0, err
	}

	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objKey),
	})
	if err != nil {
		if isNotFoundError(err) {
			return -1, nil
		}
		return 0, classify(fmt.Errorf("head object %q: %w", key, err))
	}
	if out.ContentLength == nil {
		return 0, nil
	}
	return *out.ContentLength, nil
}

// GenerateUploadURL mints a presigned PUT URL restricted to the key and
// content type, valid until expiresAt.
func (s *Store) GenerateUploadURL(ctx context.Context, key, contentType string, expiresAt time.Time) (string, error) {
	objKey, err := s.objectKey(key)
	if err != nil {
		return "", err
	}

	expiry := time.Until(expiresAt)
	if expiry <= 0 {
		return "", fmt.Errorf("upload URL expiry is in the past")
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objKey),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	result, err := s.presigner.PresignPutObject(ctx, input, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", classify(fmt.Errorf("presign put %q: %w", key, err))
	}
	return result.URL, nil
}

// CheckHealth probes bucket access with HeadBucket.
func (s *Store) CheckHealth(ctx context.Context) content.Health {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return content.Health{Detail: fmt.Sprintf("head bucket: %v", err), AvailableBytes: -1}
	}
	// Object storage reports no meaningful capacity.
	return content.Health{Healthy: true, AvailableBytes: -1}
}

// Close releases nothing; the S3 client owns no local resources.
func (s *Store) Close() error {
	return nil
}

// classify wraps transient S3 failures with content.ErrTransient so
// callers can decide to retry.
func classify(err error) error {
	if isRetryableError(err) {
		return fmt.Errorf("%w: %v", content.ErrTransient, err)
	}
	return err
}

// isRetryableError returns true if the error is transient and the operation should be retried.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// Context errors are not retryable
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// Network errors are retryable
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	// Check for AWS API errors
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()

		// Throttling errors - retryable
		if code == "Throttling" || code == "ThrottlingException" ||
			code == "RequestThrottled" || code == "SlowDown" ||
			code == "ProvisionedThroughputExceededException" {
			return true
		}

		// Server errors (5xx) - retryable
		if code == "InternalError" || code == "ServiceUnavailable" ||
			code == "ServiceException" || code == "InternalServiceException" {
			return true
		}

		// Not found, access denied, invalid request - not retryable
		if code == "NoSuchKey" || code == "NotFound" ||
			code == "AccessDenied" || code == "Forbidden" ||
			code == "InvalidRange" || code == "InvalidRequest" {
			return false
		}
	}

	// Check error message for common patterns
	errStr := err.Error()
	if strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "i/o timeout") ||
		strings.Contains(errStr, "temporary failure") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "500") {
		return true
	}

	return false
}

// isNotFoundError returns true if the error indicates the object doesn't exist.
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}

	// Check typed errors
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return true
	}

	// Check AWS API error code
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		if code == "NoSuchKey" || code == "NotFound" || code == "404" {
			return true
		}
	}

	// Check error message for 404 patterns
	errStr := err.Error()
	return strings.Contains(errStr, "StatusCode: 404") ||
		strings.Contains(errStr, "NotFound") ||
		strings.Contains(errStr, "NoSuchKey")
}

// Ensure Store implements content.Store.
var _ content.Store = (*Store)(nil)
