package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"slices"
	"strings"
	"time"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config controls the S3 archive store.
type S3Config struct {
	Endpoint       string
	Region         string
	Bucket         string
	Prefix         string
	Insecure       bool
	ForcePathStyle bool
	// CustomCreds replaces the environment/file/IAM credential chain.
	CustomCreds *credentials.Credentials
	Transport   http.RoundTripper
}

// S3 stores records as objects in an S3-compatible bucket.
type S3 struct {
	client *minio.Client
	cfg    S3Config
}

// NewS3 constructs an S3 store. The bucket must already exist.
func NewS3(cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("archive: s3 bucket is required")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		if cfg.Region != "" {
			endpoint = fmt.Sprintf("s3.%s.amazonaws.com", cfg.Region)
		} else {
			endpoint = "s3.amazonaws.com"
		}
	}
	if cfg.Transport == nil {
		cfg.Transport = s3Transport()
	}
	creds := cfg.CustomCreds
	if creds == nil {
		creds = credentials.NewChainCredentials([]credentials.Provider{
			&credentials.EnvAWS{},
			&credentials.EnvMinio{},
			&credentials.FileAWSCredentials{},
			&credentials.IAM{},
		})
	}
	options := &minio.Options{
		Creds:     creds,
		Secure:    !cfg.Insecure,
		Region:    cfg.Region,
		Transport: cfg.Transport,
	}
	if cfg.ForcePathStyle {
		options.BucketLookup = minio.BucketLookupPath
	}
	client, err := minio.New(endpoint, options)
	if err != nil {
		return nil, fmt.Errorf("archive: create s3 client: %w", err)
	}
	cfg.Prefix = strings.Trim(cfg.Prefix, "/")
	return &S3{client: client, cfg: cfg}, nil
}

func s3Transport() http.RoundTripper {
	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return http.DefaultTransport
	}
	clone := base.Clone()
	if clone.MaxIdleConnsPerHost == 0 {
		clone.MaxIdleConnsPerHost = 16
	}
	if clone.IdleConnTimeout == 0 {
		clone.IdleConnTimeout = 90 * time.Second
	}
	return clone
}

func (s *S3) object(key string) string {
	if s.cfg.Prefix == "" {
		return key
	}
	return path.Join(s.cfg.Prefix, key)
}

func (s *S3) Put(ctx context.Context, key string, doc []byte) error {
	_, err := s.client.PutObject(ctx, s.cfg.Bucket, s.object(key), bytes.NewReader(doc), int64(len(doc)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("archive: s3 put %s: %w", key, err)
	}
	return nil
}

func (s *S3) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.cfg.Bucket, s.object(key), minio.GetObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("archive: s3 get %s: %w", key, err)
	}
	defer obj.Close()
	doc, err := io.ReadAll(obj)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("archive: s3 read %s: %w", key, err)
	}
	return doc, nil
}

func (s *S3) List(ctx context.Context, prefix string) ([]string, error) {
	root := ""
	if s.cfg.Prefix != "" {
		root = s.cfg.Prefix + "/"
	}
	var keys []string
	for info := range s.client.ListObjects(ctx, s.cfg.Bucket, minio.ListObjectsOptions{Prefix: root + prefix, Recursive: true}) {
		if info.Err != nil {
			return nil, fmt.Errorf("archive: s3 list %s: %w", prefix, info.Err)
		}
		keys = append(keys, strings.TrimPrefix(info.Key, root))
	}
	slices.Sort(keys)
	return keys, nil
}

func (s *S3) Close() error { return nil }

func isNotFound(err error) bool {
	errResp := minio.ErrorResponse{}
	if errors.As(err, &errResp) {
		return errResp.StatusCode == http.StatusNotFound || errResp.Code == "NoSuchKey"
	}
	return false
}
