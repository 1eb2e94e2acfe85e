// Package fetcher downloads remote datasets over HTTP and FTP, caches them
// on disk, and unpacks zip bundles down to the ingestible payload file.
package fetcher

import (
	"context"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/hazardmaps/floodrisk-cli/internal/dataset"
)

// Options configures the dataset fetch client.
type Options struct {
	Dir         string  // download root (default "data")
	UserAgent   string
	Timeout     time.Duration
	Rate        float64 // requests per second
	Burst       int
	Concurrency int // parallel downloads in FetchAll (default 3)
}

// Client downloads manifest sources and resolves each to a local payload file.
type Client struct {
	opts Options
	http *HTTPFetcher
	ftp  *FTPFetcher
}

// New creates a fetch client.
func New(opts Options) *Client {
	if opts.Dir == "" {
		opts.Dir = "data"
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 3
	}
	return &Client{
		opts: opts,
		http: NewHTTPFetcher(HTTPOptions{
			UserAgent: opts.UserAgent,
			Timeout:   opts.Timeout,
			Rate:      rate.Limit(opts.Rate),
			Burst:     opts.Burst,
		}),
		ftp: NewFTPFetcher(FTPOptions{Timeout: opts.Timeout}),
	}
}

// Result describes one fetched dataset.
type Result struct {
	Source dataset.Source
	Path   string // local payload file, ready for ingest
	Bytes  int64
	Cached bool // server reported the cached copy still current
}

// Fetch downloads one source into <dir>/<name>/ and returns the path of the
// ingestible payload. Zip archives are unpacked and the payload located by
// extension according to the source format.
func (c *Client) Fetch(ctx context.Context, src dataset.Source) (*Result, error) {
	dir := filepath.Join(c.opts.Dir, src.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "fetch: create directory for %s", src.Name)
	}

	u, err := url.Parse(src.URL)
	if err != nil {
		return nil, eris.Wrapf(err, "fetch: parse url for %s", src.Name)
	}
	base := path.Base(u.Path)
	if base == "" || base == "." || base == "/" {
		return nil, eris.Errorf("fetch: cannot derive a file name from %s", src.URL)
	}
	dest := filepath.Join(dir, base)

	var (
		bytes  int64
		cached bool
	)
	switch u.Scheme {
	case "http", "https":
		bytes, cached, err = c.fetchHTTP(ctx, src.URL, dest)
	case "ftp":
		var rc io.ReadCloser
		rc, err = c.ftp.Download(ctx, src.URL)
		if err == nil {
			bytes, err = writeFile(dest, rc)
			_ = rc.Close()
		}
	default:
		return nil, eris.Errorf("fetch: unsupported scheme %q in %s", u.Scheme, src.URL)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "fetch: %s", src.Name)
	}

	payload := dest
	if strings.EqualFold(filepath.Ext(dest), ".zip") {
		extracted, err := ExtractZIP(dest, dir)
		if err != nil {
			return nil, eris.Wrapf(err, "fetch: unpack %s", src.Name)
		}
		exts := []string{".geojson", ".json"}
		if src.Format == dataset.FormatShapefile {
			exts = []string{".shp"}
		}
		found, ok := findByExt(extracted, exts...)
		if !ok {
			return nil, eris.Errorf("fetch: archive %s contains no %s payload", base, src.Format)
		}
		payload = found
	}

	if cached {
		zap.L().Info("dataset unchanged, using cached file",
			zap.String("name", src.Name),
			zap.String("path", payload),
		)
	} else {
		zap.L().Info("dataset downloaded",
			zap.String("name", src.Name),
			zap.String("path", payload),
			zap.Int64("bytes", bytes),
		)
	}

	return &Result{Source: src, Path: payload, Bytes: bytes, Cached: cached}, nil
}

// fetchHTTP downloads rawURL to dest, skipping the transfer when a sidecar
// ETag from a previous run still matches.
func (c *Client) fetchHTTP(ctx context.Context, rawURL, dest string) (int64, bool, error) {
	etagPath := dest + ".etag"
	etag := ""
	if _, err := os.Stat(dest); err == nil {
		if b, err := os.ReadFile(etagPath); err == nil {
			etag = strings.TrimSpace(string(b))
		}
	}

	body, newETag, changed, err := c.http.Download(ctx, rawURL, etag)
	if err != nil {
		return 0, false, err
	}
	if !changed {
		var size int64
		if fi, err := os.Stat(dest); err == nil {
			size = fi.Size()
		}
		return size, true, nil
	}
	defer body.Close() //nolint:errcheck

	n, err := writeFile(dest, body)
	if err != nil {
		return n, false, err
	}

	if newETag != "" {
		if err := os.WriteFile(etagPath, []byte(newETag), 0o644); err != nil {
			zap.L().Warn("fetch: could not record etag", zap.String("path", etagPath), zap.Error(err))
		}
	}

	return n, false, nil
}

// writeFile streams r into path. Returns bytes written.
func writeFile(path string, r io.Reader) (int64, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, eris.Wrap(err, "create file")
	}
	defer file.Close() //nolint:errcheck

	n, err := io.Copy(file, r)
	if err != nil {
		return n, eris.Wrap(err, "write file")
	}

	return n, nil
}

// FetchAll downloads every source with bounded concurrency. The first
// failure cancels the remaining downloads.
func (c *Client) FetchAll(ctx context.Context, sources []dataset.Source) ([]Result, error) {
	results := make([]Result, len(sources))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)

	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			res, err := c.Fetch(ctx, src)
			if err != nil {
				return err
			}
			results[i] = *res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}
