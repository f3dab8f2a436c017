package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// BlobStore keeps uploaded images. Upload returns the URL clients should use.
type BlobStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`

	// PublicBaseURL prefixes object keys in returned URLs. Defaults to the
	// endpoint's path-style bucket URL.
	PublicBaseURL string `yaml:"public_base_url"`
}

func (c S3Config) Validate() error {
	if c.Endpoint == "" || c.Bucket == "" || c.AccessKey == "" || c.SecretKey == "" {
		return errors.New("missing required S3 settings: S3_ENDPOINT, S3_BUCKET, S3_ACCESS_KEY, S3_SECRET_KEY")
	}
	return nil
}

type S3Storage struct {
	client  *minio.Client
	bucket  string
	baseURL string
}

func NewS3Storage(cfg S3Config) (*S3Storage, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	// Region can be empty for MinIO.
	cl, err := minio.New(strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "http://"), "https://"), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, err
	}

	base := strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/")
	if base == "" {
		base = cl.EndpointURL().String() + "/" + cfg.Bucket
	}
	return &S3Storage{client: cl, bucket: cfg.Bucket, baseURL: base}, nil
}

func (s *S3Storage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if !exists {
		return s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
	}
	return nil
}

func (s *S3Storage) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	key, err := SafeKey(key)
	if err != nil {
		return "", err
	}
	if _, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	}); err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	return PublicURL(s.baseURL, key)
}

func (s *S3Storage) Delete(ctx context.Context, key string) error {
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}

// SafeKey rejects keys that could escape their prefix and strips leading slashes.
func SafeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("empty key")
	}
	if strings.Contains(key, "..") || strings.ContainsAny(key, "\\") {
		return "", errors.New("invalid key")
	}
	key = strings.TrimLeft(key, "/")
	for strings.Contains(key, "//") {
		key = strings.ReplaceAll(key, "//", "/")
	}
	return key, nil
}

// PublicURL joins base and key into an absolute URL.
func PublicURL(base, key string) (string, error) {
	u, err := url.JoinPath(base, key)
	if err != nil {
		return "", fmt.Errorf("build object url: %w", err)
	}
	return u, nil
}
