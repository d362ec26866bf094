package publish

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"tankai/internal/config"
)

// Object is one artifact to upload.
type Object struct {
	Name        string // file name, e.g. tank1_rush_20250101_000000.tflite
	Data        []byte
	ContentType string
}

// S3Publisher copies run artifacts to an S3-compatible bucket.
type S3Publisher struct {
	client *minio.Client
	bucket string
}

func NewS3Publisher(cfg config.PublishConfig) (*S3Publisher, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	return &S3Publisher{client: client, bucket: cfg.Bucket}, nil
}

// Key places an artifact under <project>/<stamp>/<name>.
func Key(project, stamp, name string) string {
	return path.Join(project, stamp, name)
}

// Publish uploads objects and returns the keys written before any failure.
func (p *S3Publisher) Publish(ctx context.Context, project, stamp string, objs []Object) ([]string, error) {
	if p == nil || p.client == nil {
		return nil, fmt.Errorf("s3 client not initialized")
	}
	var keys []string
	for _, o := range objs {
		key := Key(project, stamp, o.Name)
		ct := o.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		_, err := p.client.PutObject(ctx, p.bucket, key, bytes.NewReader(o.Data), int64(len(o.Data)),
			minio.PutObjectOptions{ContentType: ct})
		if err != nil {
			return keys, fmt.Errorf("s3 put object %s: %w", key, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}
