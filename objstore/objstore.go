/*
Package objstore is a thin S3 client used to read versioned datasets from a DVC remote
and to store run artifacts in a bucket.
*/
package objstore

import (
	"context"
	"github.com/go-http-utils/headers"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go-ml.dev/pkg/zorros"
	"io"
	"net/url"
	"strings"
	"time"
)

// Scheme of object storage urls, eg: s3://bucket/key
const Scheme = "s3"

const defaultEndpoint = "s3.amazonaws.com"

/*
Config describes how to reach an S3 compatible storage
*/
type Config struct {
	// Endpoint is host[:port] or an url like http://localhost:9000,
	// the scheme of an url decides whether TLS is used
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	Secure    bool
}

// ObjectMetadata provides metadata of object.
type ObjectMetadata struct {
	// Key is object key.
	Key string

	// ContentLength is Content-Length header.
	ContentLength int64

	// ContentType is Content-Type header.
	ContentType string

	// ETag is ETag header.
	ETag string

	// LastModified is the object modification time.
	LastModified time.Time
}

/*
Storage is an S3 bucket client
*/
type Storage struct {
	client *minio.Client
	region string
}

/*
New creates a storage client, it does not touch the network
*/
func New(cfg Config) (*Storage, error) {
	endpoint, secure, err := endpointOf(cfg)
	if err != nil {
		return nil, err
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, zorros.Errorf("new minio client failed: %v", err)
	}
	return &Storage{client: client, region: cfg.Region}, nil
}

func endpointOf(cfg Config) (string, bool, error) {
	if cfg.Endpoint == "" {
		return defaultEndpoint, true, nil
	}
	if !strings.Contains(cfg.Endpoint, "://") {
		return cfg.Endpoint, cfg.Secure, nil
	}
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return "", false, zorros.Wrapf(err, "invalid s3 endpoint %q", cfg.Endpoint)
	}
	if u.Host == "" {
		return "", false, zorros.Errorf("invalid s3 endpoint %q: empty host", cfg.Endpoint)
	}
	return u.Host, u.Scheme == "https", nil
}

/*
ParseURL splits s3://bucket/key into bucket and key, the key can be empty
*/
func ParseURL(rawURL string) (bucket, key string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", zorros.Wrapf(err, "invalid object storage url %q", rawURL)
	}
	if u.Scheme != Scheme {
		return "", "", zorros.Errorf("invalid scheme, e.g. %s://bucket_name/object_key", Scheme)
	}
	if u.Host == "" {
		return "", "", zorros.Errorf("empty bucket name in %q", rawURL)
	}
	return u.Host, strings.Trim(u.Path, "/"), nil
}

// GetObjectMetadata returns metadata of object.
func (s *Storage) GetObjectMetadata(ctx context.Context, bucketName, objectKey string) (*ObjectMetadata, bool, error) {
	resp, err := s.client.StatObject(ctx, bucketName, objectKey, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, false, nil
		}
		return nil, false, err
	}

	return &ObjectMetadata{
		Key:           objectKey,
		ContentLength: resp.Size,
		ContentType:   resp.Metadata.Get(headers.ContentType),
		ETag:          resp.ETag,
		LastModified:  resp.LastModified,
	}, true, nil
}

// GetObject returns data of object, a missing object is reported here rather than on first read.
func (s *Storage) GetObject(ctx context.Context, bucketName, objectKey string) (io.ReadCloser, error) {
	_, ok, err := s.GetObjectMetadata(ctx, bucketName, objectKey)
	if err != nil {
		return nil, zorros.Wrapf(err, "failed to stat %s://%s/%s", Scheme, bucketName, objectKey)
	}
	if !ok {
		return nil, zorros.Errorf("object %s://%s/%s does not exist", Scheme, bucketName, objectKey)
	}
	obj, err := s.client.GetObject(ctx, bucketName, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, zorros.Wrapf(err, "failed to get %s://%s/%s", Scheme, bucketName, objectKey)
	}
	return obj, nil
}

// Open returns data of object addressed by s3 url.
func (s *Storage) Open(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	bucket, key, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, zorros.Errorf("empty object key in %q", rawURL)
	}
	return s.GetObject(ctx, bucket, key)
}

// PutFile uploads a local file as object.
func (s *Storage) PutFile(ctx context.Context, bucketName, objectKey, filePath string) error {
	_, err := s.client.FPutObject(ctx, bucketName, objectKey, filePath, minio.PutObjectOptions{})
	return err
}

// ListFolderObjects returns objects under prefix, direct children only unless recursive is set.
func (s *Storage) ListFolderObjects(ctx context.Context, bucketName, prefix string, recursive bool) ([]*ObjectMetadata, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var metadatas []*ObjectMetadata
	for object := range s.client.ListObjects(ctx, bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: recursive,
	}) {
		if object.Err != nil {
			return nil, object.Err
		}

		metadatas = append(metadatas, &ObjectMetadata{
			Key:           object.Key,
			ETag:          object.ETag,
			ContentLength: object.Size,
			LastModified:  object.LastModified,
		})
	}

	return metadatas, nil
}
