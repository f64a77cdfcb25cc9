package delta

import (
	"bytes"
	"context"
	"io"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	perr "awardarchive/internal/platform/errors"
)

// S3Config configures the S3-compatible object store backend
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Prefix    string
	Secure    bool
}

// S3Store is an ObjectStore over an S3-compatible bucket.
// PutIfAbsent uses a conditional put (If-None-Match: *), which S3 and minio
// reject with 412 when the key exists
type S3Store struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewS3 builds the backend and its minio client
func NewS3(cfg S3Config) (*S3Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "create s3 client")
	}
	return &S3Store{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (s *S3Store) key(key string) string {
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

// Get implements ObjectStore
func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.key(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, s3Err(err, key)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, s3Err(err, key)
	}
	return data, nil
}

// Put implements ObjectStore
func (s *S3Store) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, s.key(key), bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	if err != nil {
		return s3Err(err, key)
	}
	return nil
}

// PutIfAbsent implements ObjectStore
func (s *S3Store) PutIfAbsent(ctx context.Context, key string, data []byte) error {
	opts := minio.PutObjectOptions{ContentType: "application/octet-stream"}
	opts.SetMatchETagExcept("*")
	_, err := s.client.PutObject(ctx, s.bucket, s.key(key), bytes.NewReader(data), int64(len(data)), opts)
	if err != nil {
		return s3Err(err, key)
	}
	return nil
}

// List implements ObjectStore
func (s *S3Store) List(ctx context.Context, prefix string) ([]string, error) {
	full := s.key(prefix)
	var keys []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: full, Recursive: true}) {
		if obj.Err != nil {
			return nil, s3Err(obj.Err, prefix)
		}
		k := obj.Key
		if s.prefix != "" {
			k = k[len(s.prefix)+1:]
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// Delete implements ObjectStore
func (s *S3Store) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, s.key(key), minio.RemoveObjectOptions{}); err != nil {
		return s3Err(err, key)
	}
	return nil
}

// s3Err maps minio error responses onto the adapter's error codes
func s3Err(err error, key string) error {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NoSuchBucket":
		return perr.NotFoundf("object %s does not exist", key)
	case "PreconditionFailed":
		return perr.Conflictf("object %s already exists", key)
	case "SlowDown", "ServiceUnavailable":
		return perr.Wrap(err, perr.ErrorCodeUnavailable, "s3 throttled")
	}
	return perr.Wrap(err, perr.ErrorCodeDB, "s3 request failed")
}
