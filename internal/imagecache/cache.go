// Package imagecache prevents redundant image fetches and redundant file
// writes within one seed run. Three layers:
//
//  1. a session map from URL hash to resolved local path
//  2. a memoized filesystem existence set, primed per target directory
//  3. a content-hash index that detects byte-identical downloads from
//     different URLs into the same directory
//
// The cache is shared by the download worker pool and must stay safe for
// concurrent use.
package imagecache

import (
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	gocache "github.com/patrickmn/go-cache"
)

type Cache struct {
	urls *gocache.Cache // url hash -> local path

	mu      sync.Mutex
	fsSeen  map[string]bool   // absolute-ish path -> exists (memoized stat)
	primed  map[string]bool   // directory -> already walked
	content map[string]string // dir + "\x00" + content hash -> local path
}

func New() *Cache {
	return &Cache{
		urls:    gocache.New(gocache.NoExpiration, 0),
		fsSeen:  make(map[string]bool),
		primed:  make(map[string]bool),
		content: make(map[string]string),
	}
}

// urlKey hashes the URL so map keys have fixed size and the cache never
// holds raw URLs (which can embed tokens).
func urlKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

// HashBytes returns the content hash used by the content-identity layer.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// IsProcessed reports whether the URL was already resolved this run.
func (c *Cache) IsProcessed(url string) bool {
	_, ok := c.urls.Get(urlKey(url))
	return ok
}

// MarkProcessed records the resolved local path for a URL.
func (c *Cache) MarkProcessed(url, localPath string) {
	c.urls.Set(urlKey(url), localPath, gocache.NoExpiration)
}

// LocalPath returns the resolved path for a processed URL.
func (c *Cache) LocalPath(url string) (string, bool) {
	v, ok := c.urls.Get(urlKey(url))
	if !ok {
		return "", false
	}
	return v.(string), true
}

// ExistsOnDisk reports whether path exists, memoizing the stat result.
// Negative results are memoized too; within a run the only writer of the
// image tree is the pipeline itself, which updates the set on store.
func (c *Cache) ExistsOnDisk(path string) bool {
	c.mu.Lock()
	if seen, ok := c.fsSeen[path]; ok {
		c.mu.Unlock()
		return seen
	}
	c.mu.Unlock()

	_, err := os.Stat(path)
	exists := err == nil

	c.mu.Lock()
	c.fsSeen[path] = exists
	c.mu.Unlock()
	return exists
}

// MarkOnDisk records that path now exists, without a stat.
func (c *Cache) MarkOnDisk(path string) {
	c.mu.Lock()
	c.fsSeen[path] = true
	c.mu.Unlock()
}

// PrimeFromDirectory walks dir once and loads every regular file into the
// existence set, so the run starts with full knowledge of prior output.
// Subsequent calls for the same directory are no-ops. Returns the number
// of files recorded on the first walk.
func (c *Cache) PrimeFromDirectory(dir string) (int, error) {
	c.mu.Lock()
	if c.primed[dir] {
		c.mu.Unlock()
		return 0, nil
	}
	c.primed[dir] = true
	c.mu.Unlock()

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return 0, nil
	}

	count := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		c.mu.Lock()
		c.fsSeen[path] = true
		c.mu.Unlock()
		count++
		return nil
	})
	if err != nil {
		return count, err
	}
	return count, nil
}

// ContentSeen returns the path of a previously stored file with identical
// bytes in the same target directory, if any.
func (c *Cache) ContentSeen(dir, contentHash string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.content[dir+"\x00"+contentHash]
	return p, ok
}

// RememberContent indexes stored bytes so later identical downloads into
// dir reuse localPath instead of writing a duplicate.
func (c *Cache) RememberContent(dir, contentHash, localPath string) {
	c.mu.Lock()
	c.content[dir+"\x00"+contentHash] = localPath
	c.mu.Unlock()
}
