package archive

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// BlobStore uploads the full final session document to S3-compatible
// object storage, one object per game code.
type BlobStore struct {
	client *minio.Client
	bucket string
}

// NewBlobStore connects to the object store and ensures the bucket
// exists.
func NewBlobStore(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*BlobStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to object store: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}

	return &BlobStore{client: client, bucket: bucket}, nil
}

// Put stores the document JSON under {code}.json, overwriting any
// previous archive of the same code.
func (b *BlobStore) Put(ctx context.Context, code string, doc []byte) error {
	_, err := b.client.PutObject(ctx, b.bucket, code+".json",
		bytes.NewReader(doc), int64(len(doc)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("put %s: %w", code, err)
	}
	return nil
}

// Get fetches an archived document.
func (b *BlobStore) Get(ctx context.Context, code string) ([]byte, error) {
	obj, err := b.client.GetObject(ctx, b.bucket, code+".json", minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", code, err)
	}
	defer obj.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(obj); err != nil {
		return nil, fmt.Errorf("read %s: %w", code, err)
	}
	return buf.Bytes(), nil
}
