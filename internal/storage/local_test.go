package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalDiskUploadLayout(t *testing.T) {
	root := t.TempDir()
	l := NewLocalDisk(root)

	res, err := l.Upload(context.Background(), []byte("page bytes"), UploadParams{
		Folder:   "one-piece/chapter-1",
		Filename: "3.jpg",
	})
	require.NoError(t, err)

	want := filepath.Join(root, "one-piece", "chapter-1", "3.jpg")
	assert.Equal(t, want, res.URL)

	b, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Equal(t, []byte("page bytes"), b)
}

func TestLocalDiskUploadRequiresFilename(t *testing.T) {
	l := NewLocalDisk(t.TempDir())
	_, err := l.Upload(context.Background(), []byte("x"), UploadParams{Folder: "a"})
	assert.Error(t, err)
}

func TestLocalDiskDelete(t *testing.T) {
	root := t.TempDir()
	l := NewLocalDisk(root)

	res, err := l.Upload(context.Background(), []byte("x"), UploadParams{Folder: "a", Filename: "1.jpg"})
	require.NoError(t, err)

	ok, err := l.Delete(context.Background(), res.URL)
	require.NoError(t, err)
	assert.True(t, ok)

	// already gone
	ok, err = l.Delete(context.Background(), res.URL)
	require.NoError(t, err)
	assert.False(t, ok)

	// refuses paths outside root
	_, err = l.Delete(context.Background(), "/etc/passwd")
	assert.Error(t, err)
}

func TestFromConfig(t *testing.T) {
	p, err := FromConfig("local", t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &LocalDisk{}, p)

	_, err = FromConfig("cdn-magic", "")
	assert.Error(t, err)
}
