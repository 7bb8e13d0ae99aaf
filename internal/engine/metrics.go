package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// Metrics tracks operational counters across the engine.
var metrics struct {
	CaptionRequests     atomic.Int64
	CaptionsUnavailable atomic.Int64
	CaptionErrors       atomic.Int64
	AudioDownloads      atomic.Int64
	AudioErrors         atomic.Int64
	Transcriptions      atomic.Int64
	TranscriptionErrors atomic.Int64
	ModelDownloads      atomic.Int64
	CaptionResults      atomic.Int64
	SpeechResults       atomic.Int64
	FailedRuns          atomic.Int64
	LLMCalls            atomic.Int64
	LLMErrors           atomic.Int64
	HistorySaves        atomic.Int64
	RateLimited         atomic.Int64
}

// metricKeys fixes the output order of FormatMetrics.
var metricKeys = []string{
	"caption_requests", "captions_unavailable", "caption_errors",
	"audio_downloads", "audio_errors",
	"transcriptions", "transcription_errors", "model_downloads",
	"results_captions", "results_speech", "failed_runs",
	"llm_calls", "llm_errors",
	"history_saves", "rate_limited",
	"cache_hits", "cache_misses",
}

// GetMetrics returns a snapshot of all metrics including cache stats.
func GetMetrics() map[string]int64 {
	hits, misses := CacheStats()
	return map[string]int64{
		"caption_requests":     metrics.CaptionRequests.Load(),
		"captions_unavailable": metrics.CaptionsUnavailable.Load(),
		"caption_errors":       metrics.CaptionErrors.Load(),
		"audio_downloads":      metrics.AudioDownloads.Load(),
		"audio_errors":         metrics.AudioErrors.Load(),
		"transcriptions":       metrics.Transcriptions.Load(),
		"transcription_errors": metrics.TranscriptionErrors.Load(),
		"model_downloads":      metrics.ModelDownloads.Load(),
		"results_captions":     metrics.CaptionResults.Load(),
		"results_speech":       metrics.SpeechResults.Load(),
		"failed_runs":          metrics.FailedRuns.Load(),
		"llm_calls":            metrics.LLMCalls.Load(),
		"llm_errors":           metrics.LLMErrors.Load(),
		"history_saves":        metrics.HistorySaves.Load(),
		"rate_limited":         metrics.RateLimited.Load(),
		"cache_hits":           hits,
		"cache_misses":         misses,
	}
}

// FormatMetrics returns metrics as a simple text format for HTTP endpoint.
func FormatMetrics() string {
	m := GetMetrics()
	var sb strings.Builder
	for _, k := range metricKeys {
		fmt.Fprintf(&sb, "%s %d\n", k, m[k])
	}
	return sb.String()
}

// Incrementors for sources/ sub-package.
func IncrCaptionRequests()     { metrics.CaptionRequests.Add(1) }
func IncrCaptionsUnavailable() { metrics.CaptionsUnavailable.Add(1) }
func IncrCaptionErrors()       { metrics.CaptionErrors.Add(1) }

// Incrementors for media/ and speech/ sub-packages.
func IncrAudioDownloads()      { metrics.AudioDownloads.Add(1) }
func IncrAudioErrors()         { metrics.AudioErrors.Add(1) }
func IncrTranscriptions()      { metrics.Transcriptions.Add(1) }
func IncrTranscriptionErrors() { metrics.TranscriptionErrors.Add(1) }
func IncrModelDownloads()      { metrics.ModelDownloads.Add(1) }

// Incrementors for transcript/ sub-package.
func IncrCaptionResults() { metrics.CaptionResults.Add(1) }
func IncrSpeechResults()  { metrics.SpeechResults.Add(1) }
func IncrFailedRuns()     { metrics.FailedRuns.Add(1) }
func IncrHistorySaves()   { metrics.HistorySaves.Add(1) }

// IncrRateLimited counts requests rejected by the HTTP rate limiter.
func IncrRateLimited() { metrics.RateLimited.Add(1) }

// TrackOperation logs a warning if an operation takes longer than threshold.
func TrackOperation(ctx context.Context, name string, threshold time.Duration, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	if elapsed > threshold {
		slog.Warn("slow operation", slog.String("op", name), slog.Duration("elapsed", elapsed))
	}
	return err
}
