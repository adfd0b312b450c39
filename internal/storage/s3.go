package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// S3Config configures the s3 backend. Credentials fall back to the
// standard AWS environment when AccessKeyID is empty.
type S3Config struct {
	Bucket string `yaml:"bucket"`

	// Prefix is prepended to object keys. Default: "users/".
	Prefix string `yaml:"prefix"`

	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`

	// PathStyle is required by most S3-compatible services such as MinIO
	// or Yandex Object Storage.
	PathStyle bool `yaml:"path_style"`
}

// DefaultS3Prefix is the default key prefix of the s3 backend.
const DefaultS3Prefix = "users/"

// S3 keeps one JSON object per user in a bucket.
type S3 struct {
	client s3iface.S3API
	bucket string
	prefix string
}

var _ Store = (*S3)(nil)

// OpenS3 creates an S3 client from cfg.
func OpenS3(cfg S3Config) (*S3, error) {
	awsCfg := aws.NewConfig().WithS3ForcePathStyle(cfg.PathStyle)
	if cfg.Region != "" {
		awsCfg = awsCfg.WithRegion(cfg.Region)
	}
	if cfg.Endpoint != "" {
		awsCfg = awsCfg.WithEndpoint(cfg.Endpoint)
	}
	if cfg.AccessKeyID != "" {
		awsCfg = awsCfg.WithCredentials(credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, ""))
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("storage: s3: create session: %w", err)
	}
	return NewS3(s3.New(sess), cfg.Bucket, cfg.Prefix), nil
}

// NewS3 wraps an existing client.
func NewS3(client s3iface.S3API, bucket, prefix string) *S3 {
	if prefix == "" {
		prefix = DefaultS3Prefix
	}
	return &S3{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3) key(id string) string { return s.prefix + id + ".json" }

// Get implements [Store].
func (s *S3) Get(ctx context.Context, id string) (map[string]any, error) {
	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if isNotFound(err) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: s3 get %q: %w", id, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("storage: s3 read %q: %w", id, err)
	}
	return decode(data)
}

// Set implements [Store].
func (s *S3) Set(ctx context.Context, id string, obj map[string]any) error {
	data, err := encode(obj)
	if err != nil {
		return err
	}
	_, err = s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(id)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("storage: s3 put %q: %w", id, err)
	}
	return nil
}

// Ping implements [Pinger].
func (s *S3) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	return err
}

func isNotFound(err error) bool {
	var aerr awserr.Error
	if !errors.As(err, &aerr) {
		return false
	}
	return aerr.Code() == s3.ErrCodeNoSuchKey || aerr.Code() == "NotFound"
}
