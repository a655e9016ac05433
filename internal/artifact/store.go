// Package artifact is the Artifact Store (spec.md §2): opaque blob storage
// for packaged deployment code, keyed by session id and never overwritten.
package artifact

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Uploader is the subset of *manager.Uploader the store needs.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// Downloader is the subset of *s3.Client the store needs to fetch a blob
// back (used by tests and by any future read path; packaging only writes).
type Downloader interface {
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Store puts and gets deployment artifacts in ARTIFACTS_BUCKET. Retention
// (spec.md §4: 7 days) is a bucket lifecycle policy configured outside this
// code, not enforced here.
type Store struct {
	bucket   string
	uploader Uploader
	client   Downloader
}

func New(bucket string, uploader Uploader, client Downloader) *Store {
	return &Store{bucket: bucket, uploader: uploader, client: client}
}

// FunctionKey is the blob key for a simple-lambda archive: §6's
// "deployments/<session-id>/function.<ext>".
func FunctionKey(sessionID, ext string) string {
	return fmt.Sprintf("deployments/%s/function.%s", sessionID, ext)
}

// FunctionsKey is the blob key for one SAM function's archive: §6's
// "deployments/<session-id>/functions/<logical-id>.<ext>".
func FunctionsKey(sessionID, logicalID, ext string) string {
	return fmt.Sprintf("deployments/%s/functions/%s.%s", sessionID, logicalID, ext)
}

// Put uploads content under key, returning the object's S3 URI.
func (s *Store) Put(ctx context.Context, key string, content []byte) (string, error) {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
		Body:   bytes.NewReader(content),
	})
	if err != nil {
		return "", fmt.Errorf("artifact: put %s: %w", key, err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

// Get fetches the blob at key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, fmt.Errorf("artifact: get %s: %w", key, err)
	}
	defer out.Body.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(out.Body); err != nil {
		return nil, fmt.Errorf("artifact: read %s: %w", key, err)
	}
	return buf.Bytes(), nil
}
