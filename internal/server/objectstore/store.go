// Package objectstore uploads processed images to remote object storage and
// deletes them again. Backends exist for S3 (aws-sdk-go-v2), MinIO
// (minio-go) and process memory.
package objectstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/mediavault/internal/server/models"
)

// Backend is the raw object storage used by Client.
type Backend interface {
	// Put stores data under key, overwriting any existing object.
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// Remove deletes key. Removing a missing key reports false and no error.
	Remove(ctx context.Context, key string) (bool, error)
	// URL returns the public location of key.
	URL(key string) string
}

// UploadOptions carries the per-upload parameters.
type UploadOptions struct {
	UserID    string
	Category  models.Category
	Transform Transform
}

// OptionsFor returns the options used for an upload of the given category.
func OptionsFor(userID string, c models.Category) UploadOptions {
	return UploadOptions{UserID: userID, Category: c, Transform: TransformFor(c)}
}

// Client processes payloads and stores them through a Backend.
type Client struct {
	backend Backend
}

func NewClient(b Backend) *Client {
	return &Client{backend: b}
}

// Upload transforms payload for its category, stores it under a content
// addressed key and returns the resulting descriptor.
func (c *Client) Upload(ctx context.Context, payload []byte, opts UploadOptions) (models.StorageDescriptor, error) {
	if len(payload) == 0 {
		return models.StorageDescriptor{}, fmt.Errorf("%w: empty payload", ErrUnsupportedImage)
	}

	p, err := prepare(payload, opts.Transform)
	if err != nil {
		return models.StorageDescriptor{}, err
	}

	key := ContentKey(opts.Category, opts.UserID, p.data, p.format)
	if err := c.backend.Put(ctx, key, p.data, p.contentType); err != nil {
		return models.StorageDescriptor{}, fmt.Errorf("put object %s: %w", key, err)
	}

	return models.StorageDescriptor{
		RemoteID: key,
		URL:      c.backend.URL(key),
		Width:    p.width,
		Height:   p.height,
		Format:   p.format,
		Bytes:    int64(len(p.data)),
	}, nil
}

// Delete removes the object. It is idempotent: an already deleted id
// returns (false, nil).
func (c *Client) Delete(ctx context.Context, remoteID string) (bool, error) {
	ok, err := c.backend.Remove(ctx, remoteID)
	if err != nil {
		return false, fmt.Errorf("remove object %s: %w", remoteID, err)
	}
	return ok, nil
}

func joinURL(base string, parts ...string) string {
	out := strings.TrimRight(base, "/")
	for _, p := range parts {
		out += "/" + strings.Trim(p, "/")
	}
	return out
}
