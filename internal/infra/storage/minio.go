package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	domain "github.com/skinsight/review-console/internal/domain/analysis"
)

// Options for the scan image bucket.
type Options struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	// PublicURL, when set, is the base the browser loads images from
	// (e.g. a CDN in front of the bucket). Empty means the API's /uploads route.
	PublicURL string
}

type Store struct {
	client     *minio.Client
	bucketName string
	region     string
	publicURL  string
}

// New buat koneksi MinIO
func New(ctx context.Context, opt Options) (*Store, error) {
	cli, err := minio.New(opt.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opt.AccessKey, opt.SecretKey, ""),
		Secure: opt.UseSSL,
		Region: opt.Region,
	})
	if err != nil {
		return nil, err
	}

	// pastikan bucket ada
	exists, err := cli.BucketExists(ctx, opt.Bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := cli.MakeBucket(ctx, opt.Bucket, minio.MakeBucketOptions{Region: opt.Region}); err != nil {
			return nil, err
		}
	}

	return &Store{
		client:     cli,
		bucketName: opt.Bucket,
		region:     opt.Region,
		publicURL:  strings.TrimRight(opt.PublicURL, "/"),
	}, nil
}

// Open implementasi ImageStore. Missing objects yield domain.ErrImageNotFound.
func (s *Store) Open(ctx context.Context, filename string) (io.ReadCloser, string, error) {
	info, err := s.client.StatObject(ctx, s.bucketName, filename, minio.StatObjectOptions{})
	if err != nil {
		if isMissing(err) {
			return nil, "", fmt.Errorf("%s: %w", filename, domain.ErrImageNotFound)
		}
		return nil, "", err
	}
	obj, err := s.client.GetObject(ctx, s.bucketName, filename, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", err
	}
	ct := info.ContentType
	if ct == "" || ct == "application/octet-stream" {
		ct = contentType(filename)
	}
	return obj, ct, nil
}

// URL where the viewer loads filename from.
func (s *Store) URL(filename string) string {
	if filename == "" {
		return ""
	}
	if s.publicURL != "" {
		return s.publicURL + "/" + url.PathEscape(filename)
	}
	return "/uploads/" + url.PathEscape(filename)
}

// Ping checks the bucket is reachable (used by readiness).
func (s *Store) Ping(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("bucket %s missing", s.bucketName)
	}
	return nil
}

func isMissing(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" || resp.StatusCode == http.StatusNotFound
}
