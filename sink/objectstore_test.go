package sink

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vector-viz/config"
)

type fakeObjectClient struct {
	buckets map[string]bool
	objects map[string]string
	putErr  error
}

func newFakeObjectClient() *fakeObjectClient {
	return &fakeObjectClient{buckets: map[string]bool{}, objects: map[string]string{}}
}

func (f *fakeObjectClient) BucketExists(ctx context.Context, bucket string) (bool, error) {
	return f.buckets[bucket], nil
}

func (f *fakeObjectClient) MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error {
	f.buckets[bucket] = true
	return nil
}

func (f *fakeObjectClient) PutObject(ctx context.Context, bucket, key string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.putErr != nil {
		return minio.UploadInfo{}, f.putErr
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	if int64(len(data)) != size {
		return minio.UploadInfo{}, errors.New("size mismatch")
	}
	f.objects[bucket+"/"+key] = string(data)
	return minio.UploadInfo{Bucket: bucket, Key: key, Size: size}, nil
}

func TestObjectSinkUpload(t *testing.T) {
	client := newFakeObjectClient()
	s := newObjectSink(client, "exports", "viz", ",")

	key, err := s.Upload(context.Background(), "embedding.csv", sampleTable(2))
	require.NoError(t, err)
	assert.Equal(t, "viz/embedding.csv", key)
	assert.True(t, client.buckets["exports"])
	assert.Contains(t, client.objects["exports/viz/embedding.csv"], "id,x,y,category,score,draft\n")
}

func TestObjectSinkUploadError(t *testing.T) {
	client := newFakeObjectClient()
	client.putErr = errors.New("access denied")
	s := newObjectSink(client, "exports", "", ",")

	_, err := s.Upload(context.Background(), "embedding.csv", sampleTable(2))
	assert.ErrorContains(t, err, "access denied")

	_, err = s.Upload(context.Background(), "embedding.csv", nil)
	assert.ErrorIs(t, err, ErrEmptyTable)
}

func TestNewObjectSink(t *testing.T) {
	s, err := NewObjectSink(config.StorageConfig{
		Endpoint:  "localhost:9000",
		AccessKey: "minio",
		SecretKey: "minio123",
		Bucket:    "exports",
	}, ";")
	require.NoError(t, err)
	assert.Equal(t, ';', s.delimiter)
	assert.Equal(t, "exports", s.bucket)
}
