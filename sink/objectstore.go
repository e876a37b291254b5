package sink

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	log "github.com/sirupsen/logrus"

	"vector-viz/config"
	"vector-viz/pipeline"
)

// objectClient is the part of the minio client the sink uses
type objectClient interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, key string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

/*
ObjectSink uploads exported tables to S3-compatible object storage
*/
type ObjectSink struct {
	client    objectClient
	bucket    string
	prefix    string
	delimiter rune
}

/*
NewObjectSink connects to the configured endpoint
*/
func NewObjectSink(cfg config.StorageConfig, delimiter string) (*ObjectSink, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object storage client for %s: %w", cfg.Endpoint, err)
	}
	return newObjectSink(client, cfg.Bucket, cfg.Prefix, delimiter), nil
}

func newObjectSink(client objectClient, bucket, prefix, delimiter string) *ObjectSink {
	delim := ','
	if delimiter != "" {
		delim = []rune(delimiter)[0]
	}
	return &ObjectSink{client: client, bucket: bucket, prefix: prefix, delimiter: delim}
}

/*
Upload writes table as delimited text under name and returns the object key.

The bucket is created when it does not exist yet.
*/
func (s *ObjectSink) Upload(ctx context.Context, name string, table *pipeline.Table) (string, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, table, s.delimiter); err != nil {
		return "", err
	}

	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return "", fmt.Errorf("failed to check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return "", fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
		}
		log.WithField("bucket", s.bucket).Info("Created bucket")
	}

	key := path.Join(s.prefix, name)
	info, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(buf.Bytes()), int64(buf.Len()), minio.PutObjectOptions{
		ContentType:  "text/csv",
		UserMetadata: map[string]string{"exported-at": time.Now().UTC().Format(time.RFC3339)},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	log.WithFields(log.Fields{"bucket": s.bucket, "key": key, "size": info.Size}).Info("Uploaded table")
	return key, nil
}
