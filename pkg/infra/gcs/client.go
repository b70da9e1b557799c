package gcs

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/drover/pkg/domain/interfaces"
	"github.com/m-mizutani/goerr/v2"
)

// Client uploads packaging artifacts to a Cloud Storage bucket
type Client struct {
	bucket string
	client *storage.Client
}

var _ interfaces.ArtifactStore = (*Client)(nil)

// New creates an artifact store backed by one bucket
func New(ctx context.Context, bucket string) (*Client, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client")
	}

	return &Client{bucket: bucket, client: client}, nil
}

// Close releases the underlying client
func (c *Client) Close() error {
	return c.client.Close()
}

// Upload stores an object and returns its gs:// URL
func (c *Client) Upload(ctx context.Context, name string, r io.Reader) (string, error) {
	w := c.client.Bucket(c.bucket).Object(name).NewWriter(ctx)

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", goerr.Wrap(err, "failed to write artifact",
			goerr.V("bucket", c.bucket), goerr.V("name", name))
	}

	if err := w.Close(); err != nil {
		return "", goerr.Wrap(err, "failed to finalize artifact upload",
			goerr.V("bucket", c.bucket), goerr.V("name", name))
	}

	return fmt.Sprintf("gs://%s/%s", c.bucket, name), nil
}
