package archive

import (
	"context"
	"fmt"
	"io"
	"os"

	"gocloud.dev/blob"
)

// Uploader copies finished outputs into a blob bucket. The bucket URL
// decides the backend (file://, s3://, mem:// in tests) via the
// gocloud.dev driver registered by the importer.
type Uploader struct {
	bucketURL string
}

// New creates an Uploader for bucketURL.
func New(bucketURL string) *Uploader {
	return &Uploader{bucketURL: bucketURL}
}

// Store uploads the file at localPath under key.
func (u *Uploader) Store(ctx context.Context, localPath, key string) error {
	bkt, err := blob.OpenBucket(ctx, u.bucketURL)
	if err != nil {
		return fmt.Errorf("open bucket: %w", err)
	}
	defer bkt.Close()

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open local file: %w", err)
	}
	defer f.Close()

	w, err := bkt.NewWriter(ctx, key, nil)
	if err != nil {
		return fmt.Errorf("create bucket writer: %w", err)
	}

	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return fmt.Errorf("upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish upload: %w", err)
	}
	return nil
}
