package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalDisk writes objects under Root using the
// <root>/<folder>/<filename> layout.
type LocalDisk struct {
	Root string
}

func NewLocalDisk(root string) *LocalDisk {
	return &LocalDisk{Root: root}
}

func (l *LocalDisk) Upload(ctx context.Context, data []byte, p UploadParams) (UploadResult, error) {
	if err := ctx.Err(); err != nil {
		return UploadResult{}, err
	}
	if p.Filename == "" {
		return UploadResult{}, fmt.Errorf("local storage: filename is required")
	}

	dir := filepath.Join(l.Root, filepath.FromSlash(p.Folder))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return UploadResult{}, fmt.Errorf("local storage: mkdir %s: %w", dir, err)
	}

	path := filepath.Join(dir, p.Filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return UploadResult{}, fmt.Errorf("local storage: write %s: %w", path, err)
	}

	return UploadResult{URL: path}, nil
}

// Delete removes a previously stored object. The id is the path returned
// by Upload; anything outside Root is refused.
func (l *LocalDisk) Delete(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	rel, err := filepath.Rel(l.Root, id)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false, fmt.Errorf("local storage: %s is outside root", id)
	}

	if err := os.Remove(id); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("local storage: remove %s: %w", id, err)
	}
	return true, nil
}
