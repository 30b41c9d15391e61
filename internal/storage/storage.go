// Package storage is the boundary behind which image bytes land. The
// download pipeline only sees Provider; whether the bytes end up on local
// disk or a CDN-style remote is a startup configuration decision.
package storage

import (
	"context"
	"fmt"
)

// UploadParams addresses one stored object.
type UploadParams struct {
	Folder   string   // relative folder under the provider root, e.g. "one-piece/chapter-1"
	Filename string   // final file name, e.g. "3.jpg"
	Tags     []string // optional labels, providers may ignore them
}

// UploadResult reports where the object ended up.
type UploadResult struct {
	URL string // provider-local path or remote URL of the stored object
}

// Provider stores and deletes image objects.
type Provider interface {
	Upload(ctx context.Context, data []byte, p UploadParams) (UploadResult, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// FromConfig selects a concrete provider by name. Only "local" is built
// in; remote providers register here when they are linked in.
func FromConfig(provider, root string) (Provider, error) {
	switch provider {
	case "", "local":
		return NewLocalDisk(root), nil
	default:
		return nil, fmt.Errorf("storage: unknown provider %q", provider)
	}
}
