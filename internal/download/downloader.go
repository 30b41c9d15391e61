// Package download fetches remote images under a bounded worker pool and
// hands the bytes to a storage provider. Failures are contained per image:
// after the retry budget is spent (or on a non-retryable response) the
// image resolves to the fallback asset instead of failing its owning
// record.
package download

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"mangaseed/internal/imagecache"
	"mangaseed/internal/retry"
	"mangaseed/internal/storage"
)

// Result is the terminal state of one image resolution.
type Result struct {
	URL       string
	LocalPath string
	Success   bool  // false only on internal invariant violations, never on fetch failure
	Cached    bool  // resolved without a network fetch
	Fallback  bool  // resolved to the placeholder asset
	Err       error // the original failure when Fallback is set
}

// Options tune one Downloader. Zero values get sane defaults.
type Options struct {
	Client         *http.Client
	Policy         retry.Policy
	AttemptTimeout time.Duration // per-fetch hard timeout
	StoreInterval  time.Duration // minimum spacing between store operations
	Verbose        bool
}

type Downloader struct {
	client   *http.Client
	store    storage.Provider
	cache    *imagecache.Cache
	root     string // image root, used to predict local paths for the existence check
	fallback string
	policy   retry.Policy
	timeout  time.Duration
	limiter  *rate.Limiter
	verbose  bool
	flight   singleflight.Group
}

func New(store storage.Provider, cache *imagecache.Cache, root, fallbackAsset string, opts Options) *Downloader {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	policy := opts.Policy
	if policy.MaxAttempts == 0 {
		policy = retry.DownloadPolicy
	}
	timeout := opts.AttemptTimeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	interval := opts.StoreInterval
	if interval == 0 {
		interval = 50 * time.Millisecond
	}

	return &Downloader{
		client:   client,
		store:    store,
		cache:    cache,
		root:     root,
		fallback: fallbackAsset,
		policy:   policy,
		timeout:  timeout,
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		verbose:  opts.Verbose,
	}
}

// DownloadOne resolves a single image URL into targetDir, naming the file
// after the URL's base name.
func (d *Downloader) DownloadOne(ctx context.Context, rawURL, targetDir string) Result {
	return d.DownloadAs(ctx, rawURL, targetDir, stemFromURL(rawURL))
}

// DownloadAs is DownloadOne with an explicit file name stem; the extension
// still comes from the URL.
func (d *Downloader) DownloadAs(ctx context.Context, rawURL, targetDir, stem string) Result {
	// local-style path: already resolved, trusted as-is
	if !isRemote(rawURL) {
		if d.verbose {
			log.Printf("[download] pass-through local path %s", rawURL)
		}
		return Result{URL: rawURL, LocalPath: rawURL, Success: true, Cached: true}
	}

	// collapse concurrent workers hitting the same URL into one resolution,
	// so a URL referenced twice in one batch is still fetched once
	v, _, shared := d.flight.Do(targetDir+"\x00"+rawURL, func() (any, error) {
		return d.resolve(ctx, rawURL, targetDir, stem), nil
	})
	res := v.(Result)
	if shared {
		res.Cached = true
	}
	return res
}

func (d *Downloader) resolve(ctx context.Context, rawURL, targetDir, stem string) Result {
	// layer 1: this URL was already resolved this run
	if p, ok := d.cache.LocalPath(rawURL); ok {
		return Result{URL: rawURL, LocalPath: p, Success: true, Cached: true}
	}

	// layer 2: the slot already exists on disk from a previous run
	filename := stem + extFromURL(rawURL)
	candidate := filepath.Join(d.root, filepath.FromSlash(targetDir), filename)
	if d.cache.ExistsOnDisk(candidate) {
		d.cache.MarkProcessed(rawURL, candidate)
		return Result{URL: rawURL, LocalPath: candidate, Success: true, Cached: true}
	}

	body, err := d.fetch(ctx, rawURL)
	if err != nil {
		d.cache.MarkProcessed(rawURL, d.fallback)
		if d.verbose {
			log.Printf("[download] %s -> fallback: %v", rawURL, err)
		}
		return Result{URL: rawURL, LocalPath: d.fallback, Success: true, Fallback: true, Err: err}
	}

	// layer 3: different URL, identical bytes already stored in this directory
	contentHash := imagecache.HashBytes(body)
	if existing, ok := d.cache.ContentSeen(targetDir, contentHash); ok {
		d.cache.MarkProcessed(rawURL, existing)
		if d.verbose {
			log.Printf("[download] %s is byte-identical to %s, reusing", rawURL, existing)
		}
		return Result{URL: rawURL, LocalPath: existing, Success: true, Cached: true}
	}

	localPath, err := d.storeBytes(ctx, body, targetDir, filename)
	if err != nil {
		d.cache.MarkProcessed(rawURL, d.fallback)
		if d.verbose {
			log.Printf("[download] store %s -> fallback: %v", rawURL, err)
		}
		return Result{URL: rawURL, LocalPath: d.fallback, Success: true, Fallback: true, Err: err}
	}

	d.cache.MarkProcessed(rawURL, localPath)
	d.cache.MarkOnDisk(localPath)
	d.cache.RememberContent(targetDir, contentHash, localPath)
	return Result{URL: rawURL, LocalPath: localPath, Success: true}
}

// DownloadMany resolves urls into targetDir with at most concurrency
// fetches in flight. Results map 1:1 by index to urls; page files are
// named by 1-based ordinal.
func (d *Downloader) DownloadMany(ctx context.Context, urls []string, targetDir string, concurrency int) []Result {
	if concurrency < 1 {
		concurrency = 1
	}

	results := make([]Result, len(urls))
	for start := 0; start < len(urls); start += concurrency {
		end := min(start+concurrency, len(urls))

		// each batch runs to completion before the next starts, so no
		// more than `concurrency` fetches are ever in flight
		g := new(errgroup.Group)
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				results[i] = d.DownloadAs(ctx, urls[i], targetDir, strconv.Itoa(i+1))
				return nil
			})
		}
		_ = g.Wait() // workers never return errors; failures land in results
	}
	return results
}

// fetch retrieves the URL under the retry policy. Not-found-class statuses
// are permanent and skip the remaining budget.
func (d *Downloader) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	return retry.DoValue(ctx, d.policy, func() ([]byte, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, retry.Permanent(fmt.Errorf("build request: %w", err))
		}

		resp, err := d.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
		case resp.StatusCode == http.StatusNotFound,
			resp.StatusCode == http.StatusForbidden,
			resp.StatusCode == http.StatusUnauthorized,
			resp.StatusCode == http.StatusGone:
			return nil, retry.Permanent(fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode))
		default:
			return nil, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read body %s: %w", rawURL, err)
		}
		if len(body) == 0 {
			return nil, fmt.Errorf("fetch %s: empty body", rawURL)
		}
		return body, nil
	})
}

// storeBytes uploads under the same retry policy, spaced by the rate
// limiter so the provider is not hammered.
func (d *Downloader) storeBytes(ctx context.Context, body []byte, targetDir, filename string) (string, error) {
	return retry.DoValue(ctx, d.policy, func() (string, error) {
		if err := d.limiter.Wait(ctx); err != nil {
			return "", retry.Permanent(err)
		}
		res, err := d.store.Upload(ctx, body, storage.UploadParams{
			Folder:   targetDir,
			Filename: filename,
		})
		if err != nil {
			return "", fmt.Errorf("upload %s/%s: %w", targetDir, filename, err)
		}
		return res.URL, nil
	})
}

func isRemote(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true, ".avif": true,
}

func extFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ".jpg"
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if imageExts[ext] {
		return ext
	}
	return ".jpg"
}

func stemFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "image"
	}
	base := path.Base(u.Path)
	stem := strings.TrimSuffix(base, path.Ext(base))
	if stem == "" || stem == "." || stem == "/" {
		return "image"
	}
	return stem
}
