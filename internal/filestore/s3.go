package filestore

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	commons3 "github.com/xxxsen/common/s3"

	appErr "github.com/xxxsen/mdesk/internal/pkg/errors"
)

type s3Config struct {
	Endpoint  string `json:"endpoint"`
	SecretID  string `json:"secret_id"`
	SecretKey string `json:"secret_key"`
	Bucket    string `json:"bucket"`
	Region    string `json:"region"`
	Prefix    string `json:"prefix"`
	PublicURL string `json:"public_url"`
	UseSSL    bool   `json:"use_ssl"`
}

// s3Store uploads into a bucket. Images are served by the bucket itself, so
// Open is not supported.
type s3Store struct {
	client  *commons3.S3Client
	prefix  string
	baseURL string
}

func init() {
	Register("s3", createS3Store)
}

func createS3Store(args interface{}) (Store, error) {
	c := &s3Config{}
	if err := decodeConfig(args, c); err != nil {
		return nil, err
	}
	if c.Endpoint == "" || c.Bucket == "" || c.SecretID == "" || c.SecretKey == "" {
		return nil, fmt.Errorf("s3 endpoint, bucket, secret_id and secret_key are required: %w", appErr.ErrInvalid)
	}
	if c.Region == "" {
		c.Region = "us-east-1"
	}
	client, err := commons3.New(
		commons3.WithEndpoint(c.Endpoint),
		commons3.WithSecret(c.SecretID, c.SecretKey),
		commons3.WithBucket(c.Bucket),
		commons3.WithRegion(c.Region),
		commons3.WithSSL(c.UseSSL),
	)
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	base := strings.TrimSuffix(c.PublicURL, "/")
	if base == "" {
		base = bucketURL(c.Endpoint, c.Bucket, c.UseSSL)
	}
	return &s3Store{client: client, prefix: strings.Trim(c.Prefix, "/"), baseURL: base}, nil
}

func (s *s3Store) Type() string {
	return "s3"
}

func (s *s3Store) objectKey(key string) string {
	key = strings.TrimPrefix(key, "/")
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

func (s *s3Store) URL(key, _ string) string {
	return s.baseURL + "/" + s.objectKey(key)
}

func (s *s3Store) Save(ctx context.Context, key string, r ReadSeekCloser, size int64) error {
	if !ValidKey(key) {
		return fmt.Errorf("file key %q: %w", key, appErr.ErrInvalid)
	}
	if _, err := s.client.Upload(ctx, s.objectKey(key), r, size); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

func (s *s3Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return nil, fmt.Errorf("s3 store serves %s from the bucket: %w", key, appErr.ErrNotFound)
}

func bucketURL(endpoint, bucket string, useSSL bool) string {
	ep := endpoint
	if !strings.HasPrefix(ep, "http://") && !strings.HasPrefix(ep, "https://") {
		scheme := "http"
		if useSSL {
			scheme = "https"
		}
		ep = scheme + "://" + ep
	}
	u, err := url.Parse(ep)
	if err != nil {
		return strings.TrimSuffix(ep, "/") + "/" + bucket
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + bucket
	return strings.TrimSuffix(u.String(), "/")
}
