package speech

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_transcript/internal/engine/transcript"
)

func TestModelStore_UsesExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ggml-base.bin")
	require.NoError(t, os.WriteFile(path, []byte("ggml"), 0o600))

	s := NewModelStore(dir, ModelStoreOptions{})
	assert.True(t, s.Installed(transcript.ModelBase))
	assert.False(t, s.Installed(transcript.ModelSmall))

	got, err := s.Path(context.Background(), transcript.ModelBase)
	require.NoError(t, err)
	assert.Equal(t, path, got)
}

func TestModelStore_MissingWithoutAutoDownload(t *testing.T) {
	s := NewModelStore(t.TempDir(), ModelStoreOptions{AutoDownload: false})
	_, err := s.Path(context.Background(), transcript.ModelTiny)
	assert.ErrorIs(t, err, ErrModelMissing)
}

func TestModelStore_InvalidSize(t *testing.T) {
	s := NewModelStore(t.TempDir(), ModelStoreOptions{})
	_, err := s.Path(context.Background(), transcript.ModelSize("huge"))
	assert.ErrorIs(t, err, transcript.ErrInvalidModel)
}

func TestModelStore_ConcurrentFirstUseDownloadsOnce(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		assert.Equal(t, "/ggml-tiny.bin", r.URL.Path)
		w.Write([]byte("fake ggml weights"))
	}))
	defer srv.Close()

	dir := filepath.Join(t.TempDir(), "models")
	s := NewModelStore(dir, ModelStoreOptions{AutoDownload: true, BaseURL: srv.URL + "/", HTTPClient: srv.Client()})

	const callers = 5
	var wg sync.WaitGroup
	paths := make([]string, callers)
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			paths[i], errs[i] = s.Path(context.Background(), transcript.ModelTiny)
		}()
	}
	// Give every caller time to join the in-flight download.
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := range callers {
		require.NoError(t, errs[i])
		assert.Equal(t, filepath.Join(dir, "ggml-tiny.bin"), paths[i])
	}
	assert.Equal(t, int32(1), hits.Load())

	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, "fake ggml weights", string(data))

	// Cached: no further request.
	_, err = s.Path(context.Background(), transcript.ModelTiny)
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestModelStore_DownloadFailureLeavesNothing(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	dir := t.TempDir()
	s := NewModelStore(dir, ModelStoreOptions{AutoDownload: true, BaseURL: srv.URL, HTTPClient: srv.Client()})

	_, err := s.Path(context.Background(), transcript.ModelSmall)
	require.ErrorContains(t, err, "status 404")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.False(t, s.Installed(transcript.ModelSmall))
}

func TestModelStore_CallerCancelDoesNotBlock(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		w.Write([]byte("weights"))
	}))
	defer srv.Close()

	s := NewModelStore(t.TempDir(), ModelStoreOptions{AutoDownload: true, BaseURL: srv.URL, HTTPClient: srv.Client()})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := s.Path(ctx, transcript.ModelMedium)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The download kept going; a later caller gets its result.
	close(release)
	path, err := s.Path(context.Background(), transcript.ModelMedium)
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestModelStore_CloseAbortsDownload(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	dir := t.TempDir()
	s := NewModelStore(dir, ModelStoreOptions{AutoDownload: true, BaseURL: srv.URL, HTTPClient: srv.Client()})

	errc := make(chan error, 1)
	go func() {
		_, err := s.Path(context.Background(), transcript.ModelTiny)
		errc <- err
	}()
	<-started
	require.NoError(t, s.Close())

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("download not aborted by Close")
	}
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.False(t, s.Installed(transcript.ModelTiny))
}
