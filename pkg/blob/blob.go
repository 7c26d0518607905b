// Package blob persists uploaded media in object storage and hands back a
// link to the stored object.
package blob

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Store writes objects.
type Store interface {
	// Put stores body under key and returns the object's public link.
	// Stores that persist nothing return "".
	Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error)

	// Close releases any resources held by the store.
	Close() error
}

// S3Link is the virtual-hosted style URL of an S3 object.
func S3Link(bucket, region, key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, region, key)
}

// JoinLink appends key to a base URL.
func JoinLink(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
