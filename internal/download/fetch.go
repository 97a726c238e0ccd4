// Package download installs speech models from the whisper catalog.
package download

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/fmueller/voxtype/internal/version"
	"github.com/fmueller/voxtype/internal/whisper"
)

var (
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrNotDownloadable  = errors.New("model has no download source")
)

const (
	defaultRetries    = 3
	defaultRetryDelay = 300 * time.Millisecond
)

// Fetcher installs catalog models at their resolved path.
type Fetcher struct {
	Client     *http.Client
	Retries    int
	RetryDelay time.Duration
	// Progress receives a byte progress bar; nil disables it.
	Progress io.Writer
	Logger   *zap.Logger
}

func NewFetcher(logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		Client:     &http.Client{Timeout: 30 * time.Minute},
		Retries:    defaultRetries,
		RetryDelay: defaultRetryDelay,
		Logger:     logger,
	}
}

// Fetch downloads model to model.Path. A pinned model is hashed while it
// streams and only renamed into place on a match; an unpinned one is
// installed with a warning.
func (f *Fetcher) Fetch(ctx context.Context, model whisper.ResolvedModel) error {
	if model.IsCustomPath || strings.TrimSpace(model.URL) == "" {
		return fmt.Errorf("%w: %s", ErrNotDownloadable, model.Path)
	}

	expected, err := f.expectedChecksum(ctx, model)
	if err != nil {
		return err
	}
	if expected == "" {
		f.log().Warn("model has no pinned checksum; installing unverified", zap.String("model", model.Name))
	}

	if err := os.MkdirAll(filepath.Dir(model.Path), 0o755); err != nil {
		return fmt.Errorf("create model directory: %w", err)
	}

	retries := f.Retries
	if retries <= 0 {
		retries = defaultRetries
	}

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		if attempt > 1 {
			f.log().Warn("retrying model download", zap.String("model", model.Name), zap.Int("attempt", attempt), zap.Int("max", retries), zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt-1) * f.RetryDelay):
			}
		}

		lastErr = f.fetchOnce(ctx, model, expected)
		if lastErr == nil {
			f.log().Info("model installed", zap.String("model", model.Name), zap.String("path", model.Path), zap.Bool("verified", expected != ""))
			return nil
		}
		if ctx.Err() != nil {
			return lastErr
		}
	}

	return fmt.Errorf("download model %s: %w", model.Name, lastErr)
}

// Verify hashes an installed model and compares it with the catalog. It
// reports false with a nil error when the catalog pins no checksum.
func (f *Fetcher) Verify(ctx context.Context, model whisper.ResolvedModel) (bool, error) {
	expected, err := f.expectedChecksum(ctx, model)
	if err != nil {
		return false, err
	}
	if expected == "" {
		return false, nil
	}

	actual, err := fileSHA256(model.Path)
	if err != nil {
		return false, err
	}
	if actual != expected {
		return false, fmt.Errorf("%w: %s: expected %s, got %s", ErrChecksumMismatch, model.Path, expected, actual)
	}
	return true, nil
}

func (f *Fetcher) expectedChecksum(ctx context.Context, model whisper.ResolvedModel) (string, error) {
	if pinned := strings.TrimSpace(model.SHA256); pinned != "" {
		return strings.ToLower(pinned), nil
	}
	if strings.TrimSpace(model.SHA256URL) == "" {
		return "", nil
	}

	listing, err := f.get(ctx, model.SHA256URL)
	if err != nil {
		return "", fmt.Errorf("fetch checksum for model %s: %w", model.Name, err)
	}
	sum, err := checksumFor(listing, filepath.Base(model.Path))
	if err != nil {
		return "", fmt.Errorf("fetch checksum for model %s: %w", model.Name, err)
	}
	return sum, nil
}

func (f *Fetcher) get(ctx context.Context, url string) ([]byte, error) {
	resp, err := f.do(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
}

func (f *Fetcher) do(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "voxtype/"+version.Version)

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: unexpected status %d", url, resp.StatusCode)
	}
	return resp, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, model whisper.ResolvedModel, expected string) error {
	part, err := os.CreateTemp(filepath.Dir(model.Path), filepath.Base(model.Path)+".*.part")
	if err != nil {
		return fmt.Errorf("create partial file: %w", err)
	}
	installed := false
	defer func() {
		_ = part.Close()
		if !installed {
			_ = os.Remove(part.Name())
		}
	}()

	resp, err := f.do(ctx, model.URL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	hash := sha256.New()
	sink := io.MultiWriter(part, hash)
	var bar *progressbar.ProgressBar
	if f.Progress != nil && resp.ContentLength > 0 {
		bar = progressbar.NewOptions64(
			resp.ContentLength,
			progressbar.OptionSetDescription(model.Name),
			progressbar.OptionSetWidth(20),
			progressbar.OptionShowBytes(true),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionSetWriter(f.Progress),
			progressbar.OptionClearOnFinish(),
		)
		sink = io.MultiWriter(part, hash, bar)
	}

	if _, err := io.Copy(sink, resp.Body); err != nil {
		return fmt.Errorf("download body: %w", err)
	}
	if bar != nil {
		_ = bar.Finish()
	}

	actual := hex.EncodeToString(hash.Sum(nil))
	if expected != "" && actual != expected {
		return fmt.Errorf("%w: expected %s, got %s", ErrChecksumMismatch, expected, actual)
	}

	if err := part.Sync(); err != nil {
		return fmt.Errorf("sync partial file: %w", err)
	}
	if err := part.Close(); err != nil {
		return fmt.Errorf("close partial file: %w", err)
	}
	if err := os.Rename(part.Name(), model.Path); err != nil {
		return fmt.Errorf("install model: %w", err)
	}
	installed = true
	return nil
}

func (f *Fetcher) log() *zap.Logger {
	if f.Logger == nil {
		return zap.NewNop()
	}
	return f.Logger
}

// checksumFor picks the digest for fileName out of a sha256sum listing,
// falling back to the first digest when no line names the file.
func checksumFor(listing []byte, fileName string) (string, error) {
	var first string
	scanner := bufio.NewScanner(bytes.NewReader(listing))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || !isSHA256(fields[0]) {
			continue
		}
		sum := strings.ToLower(fields[0])
		if len(fields) > 1 && strings.TrimPrefix(fields[len(fields)-1], "*") == fileName {
			return sum, nil
		}
		if first == "" {
			first = sum
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	if first == "" {
		return "", errors.New("sha256 checksum not found")
	}
	return first, nil
}

func isSHA256(value string) bool {
	decoded, err := hex.DecodeString(value)
	return err == nil && len(decoded) == sha256.Size
}

func fileSHA256(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open model for checksum: %w", err)
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", fmt.Errorf("hash model: %w", err)
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
