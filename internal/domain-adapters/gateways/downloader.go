package gateways

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ochairo/kiln/internal/domain/entities"
	"github.com/ochairo/kiln/internal/domain/interfaces"
	"github.com/schollz/progressbar/v3"
)

// ObjectFetcher streams an object from a bucket store (s3:// URLs)
type ObjectFetcher interface {
	Fetch(ctx context.Context, bucket, key string, w io.Writer) (int64, error)
}

// Downloader acquires the source archive from a local path, HTTP(S) or a bucket store
type Downloader struct {
	httpClient   *http.Client
	objects      ObjectFetcher
	reporter     interfaces.Reporter
	userAgent    string
	showProgress bool
	progressOut  io.Writer
}

// DownloaderOption configures a Downloader
type DownloaderOption func(*Downloader)

// WithObjectFetcher enables s3:// sources
func WithObjectFetcher(f ObjectFetcher) DownloaderOption {
	return func(d *Downloader) { d.objects = f }
}

// WithProgress renders a byte progress bar on w during HTTP downloads
func WithProgress(w io.Writer) DownloaderOption {
	return func(d *Downloader) {
		d.showProgress = true
		d.progressOut = w
	}
}

// WithHTTPClient replaces the default client
func WithHTTPClient(c *http.Client) DownloaderOption {
	return func(d *Downloader) { d.httpClient = c }
}

// WithUserAgent sets the User-Agent header sent with HTTP requests
func WithUserAgent(ua string) DownloaderOption {
	return func(d *Downloader) { d.userAgent = ua }
}

// NewDownloader creates a new downloader
func NewDownloader(reporter interfaces.Reporter, opts ...DownloaderOption) *Downloader {
	if reporter == nil {
		reporter = interfaces.NoOpReporter{}
	}
	d := &Downloader{
		httpClient: &http.Client{
			Timeout: 5 * time.Minute, // Long timeout for large downloads
		},
		reporter:  reporter,
		userAgent: "kiln/dev",
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// FetchSource places the configured archive in srcDir and returns its path.
// A configured local path wins over the URL.
func (d *Downloader) FetchSource(ctx context.Context, cfg *entities.BuildConfig, srcDir string) (string, error) {
	src := cfg.Source
	dest := filepath.Join(srcDir, src.ArchiveName())

	if src.LocalPath != "" {
		return dest, d.copyLocal(cfg.Resolve(src.LocalPath), dest)
	}

	u, err := url.Parse(src.URL)
	if err != nil {
		return "", fmt.Errorf("invalid source url %q: %w", src.URL, err)
	}

	switch u.Scheme {
	case "http", "https":
		d.reporter.Step("Downloading %s", src.URL)
		if err := d.downloadFile(ctx, src.URL, dest); err != nil {
			return "", fmt.Errorf("download failed: %w", err)
		}
	case "s3":
		if d.objects == nil {
			return "", fmt.Errorf("s3 source %s requires an object fetcher", src.URL)
		}
		d.reporter.Step("Downloading %s", src.URL)
		if err := d.fetchObject(ctx, u, dest); err != nil {
			return "", fmt.Errorf("download failed: %w", err)
		}
	case "file":
		return dest, d.copyLocal(cfg.Resolve(u.Path), dest)
	default:
		return "", fmt.Errorf("unsupported source url scheme %q", u.Scheme)
	}

	return dest, nil
}

func (d *Downloader) copyLocal(src, dest string) error {
	d.reporter.Step("Copying %s", src)
	if err := copyFile(src, dest, 0600); err != nil {
		return fmt.Errorf("copy failed: %w", err)
	}
	return nil
}

// downloadFile downloads a file from URL to destination
func (d *Downloader) downloadFile(ctx context.Context, rawURL, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	//nolint:errcheck // Defer close on HTTP response body
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: HTTP %d: %s", rawURL, resp.StatusCode, resp.Status)
	}

	//nolint:gosec // G304: File path dest is inside the run's source directory
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	var w io.Writer = out
	if d.showProgress {
		bar := progressbar.NewOptions64(resp.ContentLength,
			progressbar.OptionSetWriter(d.progressOut),
			progressbar.OptionSetDescription(filepath.Base(dest)),
			progressbar.OptionShowBytes(true),
			progressbar.OptionShowCount(),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
		w = io.MultiWriter(out, bar)
	}

	written, err := io.Copy(w, resp.Body)
	if err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}

	d.reporter.Detail("Downloaded %s (%d bytes)", filepath.Base(dest), written)
	return nil
}

func (d *Downloader) fetchObject(ctx context.Context, u *url.URL, dest string) error {
	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return fmt.Errorf("s3 url %s must be s3://bucket/key", u.String())
	}

	//nolint:gosec // G304: File path dest is inside the run's source directory
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	written, err := d.objects.Fetch(ctx, bucket, key, out)
	if err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}

	d.reporter.Detail("Downloaded %s (%d bytes)", filepath.Base(dest), written)
	return nil
}
