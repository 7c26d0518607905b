// Package blobutils builds blob stores from configuration.
package blobutils

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/biosearch/pkg/blob"
	"github.com/papercomputeco/biosearch/pkg/blob/afsblob"
	"github.com/papercomputeco/biosearch/pkg/blob/nop"
	"github.com/papercomputeco/biosearch/pkg/blob/s3blob"
)

// Providers lists the blob store names NewStore understands.
var Providers = []string{"s3", "afs", "nop"}

type NewStoreOpts struct {
	ProviderType string

	// Bucket is the S3 bucket, or the afs base URL.
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BaseURL         string

	Logger *slog.Logger
}

func NewStore(ctx context.Context, o *NewStoreOpts) (blob.Store, error) {
	switch o.ProviderType {
	case "s3":
		return s3blob.New(ctx, s3blob.Config{
			Bucket:          o.Bucket,
			Region:          o.Region,
			Endpoint:        o.Endpoint,
			AccessKeyID:     o.AccessKeyID,
			SecretAccessKey: o.SecretAccessKey,
			BaseURL:         o.BaseURL,
		}, o.Logger)
	case "afs":
		return afsblob.New(afsblob.Config{
			BaseURL:     o.Bucket,
			LinkBaseURL: o.BaseURL,
		}, o.Logger)
	case "nop", "":
		return nop.New(), nil
	default:
		return nil, fmt.Errorf("unsupported blob provider: %s", o.ProviderType)
	}
}
