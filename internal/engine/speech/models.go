package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/singleflight"

	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/anatolykoptev/go_transcript/internal/engine/transcript"
)

// ErrModelMissing is returned when a model file is absent and auto-download is off.
var ErrModelMissing = errors.New("speech model not installed")

const modelDownloadTimeout = 30 * time.Minute

// ModelStoreOptions configures a ModelStore.
type ModelStoreOptions struct {
	AutoDownload bool
	// BaseURL replaces the catalog download host. Files are fetched from BaseURL + "/" + FileName.
	BaseURL    string
	HTTPClient *http.Client
}

// ModelStore resolves model sizes to ggml files on disk, downloading them on first use.
// Resolved paths are kept for the life of the process. Safe for concurrent use.
type ModelStore struct {
	dir    string
	opts   ModelStoreOptions
	client *http.Client

	mu    sync.RWMutex
	paths map[transcript.ModelSize]string
	group singleflight.Group

	// life bounds downloads. They outlive callers but not the store.
	life context.Context
	stop context.CancelFunc
}

// NewModelStore returns a store rooted at dir.
func NewModelStore(dir string, opts ModelStoreOptions) *ModelStore {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Transport: http.DefaultTransport}
	}
	life, stop := context.WithCancel(context.Background())
	return &ModelStore{
		dir:    dir,
		opts:   opts,
		client: client,
		paths:  make(map[transcript.ModelSize]string),
		life:   life,
		stop:   stop,
	}
}

// DefaultModelDir returns ~/.go_transcript/models.
func DefaultModelDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "go_transcript", "models")
	}
	return filepath.Join(home, ".go_transcript", "models")
}

// Installed reports whether the file for size is present on disk.
func (s *ModelStore) Installed(size transcript.ModelSize) bool {
	if _, ok := s.cached(size); ok {
		return true
	}
	info, ok := size.Info()
	if !ok {
		return false
	}
	return fileReady(filepath.Join(s.dir, info.FileName))
}

// Path returns the local model file for size. Concurrent first calls for the same
// size share one download. The download outlives a caller that gives up waiting,
// and is aborted by Close.
func (s *ModelStore) Path(ctx context.Context, size transcript.ModelSize) (string, error) {
	if p, ok := s.cached(size); ok {
		return p, nil
	}
	info, ok := size.Info()
	if !ok {
		return "", fmt.Errorf("%w: %q", transcript.ErrInvalidModel, size)
	}

	ch := s.group.DoChan(string(size), func() (any, error) {
		p, err := s.resolve(s.life, info)
		if err != nil {
			return "", err
		}
		s.mu.Lock()
		s.paths[size] = p
		s.mu.Unlock()
		return p, nil
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return "", r.Err
		}
		return r.Val.(string), nil
	}
}

// Close aborts downloads in flight. Partial files are removed and later
// Path calls for missing models fail.
func (s *ModelStore) Close() error {
	s.stop()
	return nil
}

func (s *ModelStore) cached(size transcript.ModelSize) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.paths[size]
	return p, ok
}

func (s *ModelStore) resolve(ctx context.Context, info transcript.ModelInfo) (string, error) {
	path := filepath.Join(s.dir, info.FileName)
	if fileReady(path) {
		return path, nil
	}
	if !s.opts.AutoDownload {
		return "", fmt.Errorf("%w: %s (expected %s)", ErrModelMissing, info.Name, path)
	}

	ctx, cancel := context.WithTimeout(ctx, modelDownloadTimeout)
	defer cancel()

	url := info.URL
	if s.opts.BaseURL != "" {
		url = strings.TrimRight(s.opts.BaseURL, "/") + "/" + info.FileName
	}
	slog.Info("speech: downloading model",
		slog.String("model", string(info.Size)), slog.String("size", info.SizeLabel), slog.String("url", url))

	start := time.Now()
	if err := s.download(ctx, url, path); err != nil {
		return "", fmt.Errorf("download model %s: %w", info.Name, err)
	}
	engine.IncrModelDownloads()
	slog.Info("speech: model ready",
		slog.String("model", string(info.Size)), slog.Duration("elapsed", time.Since(start)))
	return path, nil
}

// download fetches url into path with retries. The file appears only when complete.
func (s *ModelStore) download(ctx context.Context, url, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	operation := func() (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", engine.UserAgentBot)
		resp, err := s.client.Do(req)
		if err != nil {
			return struct{}{}, err
		}
		defer resp.Body.Close()

		if retryableStatus(resp.StatusCode) {
			return struct{}{}, fmt.Errorf("status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return struct{}{}, backoff.Permanent(fmt.Errorf("status %d", resp.StatusCode))
		}
		return struct{}{}, writeAtomic(path, resp.Body)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 1 * time.Second
	bo.MaxInterval = 30 * time.Second

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(4),
		backoff.WithNotify(func(err error, d time.Duration) {
			slog.Warn("speech: model download retry", slog.String("url", url), slog.Any("error", err), slog.Duration("wait", d))
		}))
	return err
}

func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// writeAtomic streams r into a temp file next to path and renames it into place.
func writeAtomic(path string, r io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".part-*")
	if err != nil {
		return backoff.Permanent(err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	if n == 0 {
		return backoff.Permanent(errors.New("empty model file"))
	}
	if err := os.Rename(tmpName, path); err != nil {
		return backoff.Permanent(err)
	}
	return nil
}

func fileReady(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir() && fi.Size() > 0
}
