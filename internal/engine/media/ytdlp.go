// Package media downloads the audio track of a YouTube video with yt-dlp.
package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/anatolykoptev/go_transcript/internal/engine/transcript"
)

const (
	audioBaseName = "audio"
	slowDownload  = 2 * time.Minute
)

// YtDlp implements transcript.AudioExtractor with the yt-dlp binary.
type YtDlp struct {
	binary  string
	ffmpeg  string
	tempDir string // parent of per-run directories; "" = os.TempDir()
	runner  engine.CommandRunner
}

var _ transcript.AudioExtractor = (*YtDlp)(nil)

// NewYtDlp returns an extractor using binary, or the best local yt-dlp when empty.
// ffmpeg is passed to yt-dlp as --ffmpeg-location when set.
func NewYtDlp(binary, ffmpeg string) *YtDlp {
	if binary == "" {
		binary = defaultBinary()
	}
	return &YtDlp{binary: binary, ffmpeg: ffmpeg, runner: engine.ExecRunner{}}
}

// defaultBinary prefers a yt-dlp shipped next to the working directory.
func defaultBinary() string {
	for _, name := range []string{"yt-dlp.exe", "yt-dlp"} {
		if fi, err := os.Stat(name); err == nil && !fi.IsDir() {
			abs, err := filepath.Abs(name)
			if err == nil {
				return abs
			}
		}
	}
	return "yt-dlp"
}

// ExtractAudio downloads the audio of ref into a new directory as a WAV file.
// On error nothing is left on disk.
func (y *YtDlp) ExtractAudio(ctx context.Context, ref transcript.VideoRef) (*transcript.AudioArtifact, error) {
	engine.IncrAudioDownloads()
	dir, err := os.MkdirTemp(y.tempDir, "go_transcript-"+ref.ID+"-")
	if err != nil {
		engine.IncrAudioErrors()
		return nil, fmt.Errorf("create audio dir: %w", err)
	}

	path, err := y.download(ctx, ref, dir)
	if err != nil {
		engine.IncrAudioErrors()
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			slog.Warn("ytdlp: cleanup failed", slog.String("dir", dir), slog.Any("error", rmErr))
		}
		return nil, err
	}
	slog.Info("ytdlp: audio ready", slog.String("video", ref.ID), slog.String("path", path))
	return transcript.NewAudioArtifact(dir, path), nil
}

func (y *YtDlp) download(ctx context.Context, ref transcript.VideoRef, dir string) (string, error) {
	args := y.args(ref, dir)
	err := engine.TrackOperation(ctx, "ytdlp:"+ref.ID, slowDownload, func(ctx context.Context) error {
		res, err := y.runner.Run(ctx, y.binary, args...)
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("yt-dlp: %w", ctx.Err())
			}
			return engine.CommandError("yt-dlp", res, err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return findAudio(dir)
}

func (y *YtDlp) args(ref transcript.VideoRef, dir string) []string {
	args := []string{
		"-f", "bestaudio/best",
		"-x", "--audio-format", "wav",
		"--no-playlist",
		"--no-progress",
		"--no-warnings",
		"-o", filepath.Join(dir, audioBaseName+".%(ext)s"),
	}
	if y.ffmpeg != "" && y.ffmpeg != "ffmpeg" {
		args = append(args, "--ffmpeg-location", y.ffmpeg)
	}
	return append(args, ref.WatchURL())
}

// findAudio returns the finished audio file yt-dlp left in dir.
func findAudio(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read audio dir: %w", err)
	}
	var fallback string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, audioBaseName+".") || isPartial(name) {
			continue
		}
		if filepath.Ext(name) == ".wav" {
			return filepath.Join(dir, name), nil
		}
		if fallback == "" {
			fallback = filepath.Join(dir, name)
		}
	}
	if fallback == "" {
		return "", errors.New("yt-dlp produced no audio file")
	}
	return fallback, nil
}

func isPartial(name string) bool {
	return strings.HasSuffix(name, ".part") || strings.HasSuffix(name, ".ytdl") || strings.Contains(name, ".temp.")
}
