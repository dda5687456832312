package kv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioOptions configures NewMinioStore.
type MinioOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Prefix    string
}

// MinioStore keeps each entry as one small object in a MinIO/S3 bucket.
type MinioStore struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewMinioStore connects to MinIO and ensures the bucket exists.
func NewMinioStore(opts MinioOptions) (*MinioStore, error) {
	if strings.TrimSpace(opts.Endpoint) == "" || strings.TrimSpace(opts.Bucket) == "" {
		return nil, errors.New("kv: minio endpoint and bucket are required")
	}
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("kv: init minio client: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("kv: check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("kv: create bucket: %w", err)
		}
	}
	prefix := strings.Trim(strings.TrimSpace(opts.Prefix), "/")
	return &MinioStore{client: client, bucket: opts.Bucket, prefix: prefix}, nil
}

func (m *MinioStore) objectName(key string) string {
	if m.prefix == "" {
		return key
	}
	return m.prefix + "/" + key
}

func (m *MinioStore) Get(ctx context.Context, key string) (string, bool, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, m.objectName(key), minio.GetObjectOptions{})
	if err != nil {
		if isMissingObject(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("kv: get object: %w", err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		if isMissingObject(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("kv: read object: %w", err)
	}
	return string(data), true, nil
}

func (m *MinioStore) Set(ctx context.Context, key, value string) error {
	_, err := m.client.PutObject(ctx, m.bucket, m.objectName(key), strings.NewReader(value), int64(len(value)),
		minio.PutObjectOptions{ContentType: "text/plain; charset=utf-8"})
	if err != nil {
		return fmt.Errorf("kv: put object: %w", err)
	}
	return nil
}

func (m *MinioStore) Remove(ctx context.Context, key string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, m.objectName(key), minio.RemoveObjectOptions{}); err != nil && !isMissingObject(err) {
		return fmt.Errorf("kv: delete object: %w", err)
	}
	return nil
}

func isMissingObject(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}
