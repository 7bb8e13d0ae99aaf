// Package toolutil holds the transcript service shared by the MCP tools and the HTTP API:
// input parsing, the result cache and history recording around the orchestrator.
package toolutil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/anatolykoptev/go_transcript/internal/engine/transcript"
)

// ErrHistoryDisabled is returned by history operations when no store is configured.
var ErrHistoryDisabled = errors.New("transcript history is not configured")

// CacheLoadJSON tries to load a cached value of type T from the engine cache.
// Returns the decoded value and true on hit; zero value and false on miss or decode error.
func CacheLoadJSON[T any](ctx context.Context, key string) (T, bool) {
	var out T
	cached, ok := engine.CacheGet(ctx, key)
	if !ok {
		return out, false
	}
	if err := json.Unmarshal(cached, &out); err != nil {
		var zero T
		return zero, false
	}
	return out, true
}

// CacheStoreJSON marshals v and stores it in the engine cache.
func CacheStoreJSON[T any](ctx context.Context, key string, v T) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	engine.CacheSet(ctx, key, data)
}

// Transcriber is the orchestrator as seen by the presentation layers.
type Transcriber interface {
	Transcribe(ctx context.Context, ref transcript.VideoRef, model transcript.ModelSize) (*transcript.Result, error)
}

// ModelChecker reports whether a model file is already on disk.
type ModelChecker interface {
	Installed(size transcript.ModelSize) bool
}

// Service wraps the orchestrator with caching and history. Optional fields may be nil.
type Service struct {
	Transcriber  Transcriber
	History      transcript.HistoryStore
	Explainer    *transcript.Explainer
	Models       ModelChecker
	DefaultModel transcript.ModelSize
}

// Run is the outcome of one transcript request.
type Run struct {
	Result    *transcript.Result
	HistoryID string
	Cached    bool
}

// ParseModel resolves a user-supplied model name, falling back to the service default.
func (s *Service) ParseModel(raw string) (transcript.ModelSize, error) {
	if strings.TrimSpace(raw) == "" && s.DefaultModel.Valid() {
		return s.DefaultModel, nil
	}
	return transcript.ParseModelSize(raw)
}

// Transcribe parses input, serves cached results, runs the orchestrator and records history.
// Captions do not depend on the model, so they are cached once per video.
func (s *Service) Transcribe(ctx context.Context, rawURL, rawModel string) (*Run, error) {
	ref, err := transcript.ParseVideoRef(rawURL)
	if err != nil {
		return nil, &transcript.Error{Kind: transcript.KindInvalidVideo, Err: err}
	}
	model, err := s.ParseModel(rawModel)
	if err != nil {
		return nil, &transcript.Error{Kind: transcript.KindInvalidModel, VideoID: ref.ID, Err: err}
	}

	captionsKey := engine.CacheKey("transcript", ref.ID, string(transcript.ProvenanceCaptions))
	modelKey := engine.CacheKey("transcript", ref.ID, string(model))
	for _, key := range []string{captionsKey, modelKey} {
		if res, ok := CacheLoadJSON[transcript.Result](ctx, key); ok && len(res.Segments) > 0 {
			return &Run{Result: &res, Cached: true}, nil
		}
	}

	res, err := s.Transcriber.Transcribe(ctx, ref, model)
	if err != nil {
		return nil, err
	}
	key := modelKey
	if res.Provenance == transcript.ProvenanceCaptions {
		key = captionsKey
	}
	CacheStoreJSON(ctx, key, res)

	run := &Run{Result: res}
	if s.History != nil {
		id, err := s.History.Save(ctx, res)
		if err != nil {
			slog.Warn("history: save failed", slog.String("video", res.VideoID), slog.Any("error", err))
		} else {
			run.HistoryID = id
		}
	}
	return run, nil
}

// ModelStatus is a capability table row plus local availability.
type ModelStatus struct {
	transcript.ModelInfo
	Default   bool `json:"default"`
	Installed bool `json:"installed"`
}

// ModelTable returns the model sizes with their install state.
func (s *Service) ModelTable() []ModelStatus {
	infos := transcript.Models()
	out := make([]ModelStatus, 0, len(infos))
	def := s.DefaultModel
	if !def.Valid() {
		def = transcript.DefaultModel
	}
	for _, info := range infos {
		st := ModelStatus{ModelInfo: info, Default: info.Size == def}
		if s.Models != nil {
			st.Installed = s.Models.Installed(info.Size)
		}
		out = append(out, st)
	}
	return out
}

// Explain explains text, or the transcript of rawURL when text is empty.
func (s *Service) Explain(ctx context.Context, rawURL, text, rawModel string) (*transcript.Explanation, error) {
	if !s.Explainer.Enabled() {
		return nil, engine.ErrNoLLM
	}
	videoID := ""
	if strings.TrimSpace(text) == "" {
		if strings.TrimSpace(rawURL) == "" {
			return nil, errors.New("url or text is required")
		}
		run, err := s.Transcribe(ctx, rawURL, rawModel)
		if err != nil {
			return nil, err
		}
		videoID, text = run.Result.VideoID, run.Result.Text()
	}
	return s.Explainer.Explain(ctx, videoID, text)
}

// HistoryList returns recent transcripts, newest first.
func (s *Service) HistoryList(ctx context.Context, limit int) ([]transcript.HistorySummary, error) {
	if s.History == nil {
		return nil, ErrHistoryDisabled
	}
	return s.History.List(ctx, limit)
}

// HistoryGet returns one stored transcript.
func (s *Service) HistoryGet(ctx context.Context, id string) (*transcript.HistoryRecord, error) {
	if s.History == nil {
		return nil, ErrHistoryDisabled
	}
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("id is required")
	}
	return s.History.Get(ctx, id)
}
