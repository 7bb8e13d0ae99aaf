package transcript

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/anatolykoptev/go_transcript/internal/engine"
)

// CaptionFetcher returns the published captions of a video.
// It returns an error matching ErrCaptionsUnavailable when the video has none.
type CaptionFetcher interface {
	FetchCaptions(ctx context.Context, ref VideoRef) ([]Segment, error)
}

// AudioExtractor downloads the audio track of a video into a fresh AudioArtifact.
// The caller owns the artifact and must Release it.
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, ref VideoRef) (*AudioArtifact, error)
}

// Transcriber runs speech recognition on a downloaded artifact.
type Transcriber interface {
	Transcribe(ctx context.Context, audio *AudioArtifact, model ModelSize) ([]Segment, error)
}

// Stage names the step a run is in.
type Stage string

const (
	StageCheckingCaptions Stage = "checking_captions"
	StageDownloadingAudio Stage = "downloading_audio"
	StageTranscribing     Stage = "transcribing"
	StageDone             Stage = "done"
)

// StageFunc observes stage changes of one run.
type StageFunc func(ref VideoRef, stage Stage)

type stageKey struct{}

// WithStageFunc attaches a progress observer to ctx.
func WithStageFunc(ctx context.Context, fn StageFunc) context.Context {
	return context.WithValue(ctx, stageKey{}, fn)
}

func reportStage(ctx context.Context, ref VideoRef, stage Stage) {
	slog.Debug("transcript: stage", slog.String("video", ref.ID), slog.String("stage", string(stage)))
	if fn, ok := ctx.Value(stageKey{}).(StageFunc); ok && fn != nil {
		fn(ref, stage)
	}
}

// Timeouts bounds each step of a run. Zero means no step-level limit.
type Timeouts struct {
	Captions   time.Duration
	// Queue bounds the wait for a free speech recognition slot.
	Queue      time.Duration
	Download   time.Duration
	Transcribe time.Duration
}

// Total is the longest a run can take, or false when any step is unbounded.
func (t Timeouts) Total() (time.Duration, bool) {
	if t.Captions <= 0 || t.Queue <= 0 || t.Download <= 0 || t.Transcribe <= 0 {
		return 0, false
	}
	return t.Captions + t.Queue + t.Download + t.Transcribe, true
}

// Options configures an Orchestrator.
type Options struct {
	Timeouts Timeouts
	// MaxConcurrentTranscriptions bounds concurrent speech recognition runs. Zero means 1.
	MaxConcurrentTranscriptions int
}

// Orchestrator produces transcripts: captions first, speech recognition only
// when the video has no captions. Safe for concurrent use.
type Orchestrator struct {
	captions    CaptionFetcher
	extractor   AudioExtractor
	transcriber Transcriber
	timeouts    Timeouts
	slots       chan struct{}
	now         func() time.Time
}

// NewOrchestrator wires the three collaborators.
func NewOrchestrator(captions CaptionFetcher, extractor AudioExtractor, transcriber Transcriber, opts Options) *Orchestrator {
	n := opts.MaxConcurrentTranscriptions
	if n <= 0 {
		n = 1
	}
	return &Orchestrator{
		captions:    captions,
		extractor:   extractor,
		transcriber: transcriber,
		timeouts:    opts.Timeouts,
		slots:       make(chan struct{}, n),
		now:         time.Now,
	}
}

// Transcribe returns the transcript of ref. Errors are *Error values; no partial
// result is returned with an error.
func (o *Orchestrator) Transcribe(ctx context.Context, ref VideoRef, model ModelSize) (*Result, error) {
	if ref.ID == "" {
		return nil, newError(KindInvalidVideo, "", ErrInvalidVideo)
	}
	if !model.Valid() {
		return nil, newError(KindInvalidModel, ref.ID, fmt.Errorf("%w: %q", ErrInvalidModel, model))
	}

	start := o.now()
	reportStage(ctx, ref, StageCheckingCaptions)
	segs, err := o.fetchCaptions(ctx, ref)
	switch {
	case err == nil && hasText(segs):
		engine.IncrCaptionResults()
		slog.Info("transcript: captions found",
			slog.String("video", ref.ID),
			slog.Int("segments", len(segs)),
			slog.Duration("elapsed", time.Since(start)))
		reportStage(ctx, ref, StageDone)
		return &Result{
			VideoID:    ref.ID,
			Segments:   compact(segs),
			Provenance: ProvenanceCaptions,
			CreatedAt:  o.now().UTC(),
		}, nil
	case err == nil, errors.Is(err, ErrCaptionsUnavailable):
		slog.Info("transcript: no captions, falling back to speech recognition",
			slog.String("video", ref.ID), slog.String("model", string(model)))
	case errors.Is(err, ErrInvalidVideo):
		engine.IncrFailedRuns()
		return nil, newError(KindInvalidVideo, ref.ID, err)
	default:
		engine.IncrFailedRuns()
		return nil, newError(KindFetch, ref.ID, err)
	}

	res, err := o.recognize(ctx, ref, model)
	if err != nil {
		engine.IncrFailedRuns()
		slog.Warn("transcript: speech recognition failed",
			slog.String("video", ref.ID), slog.Any("error", err))
		return nil, err
	}
	engine.IncrSpeechResults()
	slog.Info("transcript: speech recognition done",
		slog.String("video", ref.ID),
		slog.String("model", string(model)),
		slog.Int("segments", len(res.Segments)),
		slog.Duration("elapsed", time.Since(start)))
	return res, nil
}

// recognize runs the slow path. The artifact is released on every return.
func (o *Orchestrator) recognize(ctx context.Context, ref VideoRef, model ModelSize) (*Result, error) {
	if err := o.acquire(ctx); err != nil {
		return nil, newError(KindExtract, ref.ID, err)
	}
	defer func() { <-o.slots }()

	reportStage(ctx, ref, StageDownloadingAudio)
	audio, err := o.extractAudio(ctx, ref)
	if err != nil {
		audio.Release()
		return nil, newError(KindExtract, ref.ID, err)
	}
	if audio == nil {
		return nil, newError(KindExtract, ref.ID, errors.New("extractor returned no audio"))
	}
	defer audio.Release()

	reportStage(ctx, ref, StageTranscribing)
	segs, err := o.transcribe(ctx, audio, model)
	if err != nil {
		return nil, newError(KindTranscribe, ref.ID, err)
	}
	segs = compact(segs)
	if len(segs) == 0 {
		return nil, newError(KindTranscribe, ref.ID, ErrEmptyTranscript)
	}

	reportStage(ctx, ref, StageDone)
	return &Result{
		VideoID:    ref.ID,
		Segments:   segs,
		Provenance: ProvenanceSpeechRecognition,
		Model:      model,
		CreatedAt:  o.now().UTC(),
	}, nil
}

// acquire waits for a speech recognition slot, at most timeouts.Queue.
func (o *Orchestrator) acquire(ctx context.Context) error {
	var expired <-chan time.Time
	if o.timeouts.Queue > 0 {
		timer := time.NewTimer(o.timeouts.Queue)
		defer timer.Stop()
		expired = timer.C
	}
	select {
	case o.slots <- struct{}{}:
		return nil
	case <-expired:
		return ErrBusy
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) fetchCaptions(ctx context.Context, ref VideoRef) ([]Segment, error) {
	ctx, cancel := withStepTimeout(ctx, o.timeouts.Captions)
	defer cancel()
	return o.captions.FetchCaptions(ctx, ref)
}

func (o *Orchestrator) extractAudio(ctx context.Context, ref VideoRef) (*AudioArtifact, error) {
	ctx, cancel := withStepTimeout(ctx, o.timeouts.Download)
	defer cancel()
	return o.extractor.ExtractAudio(ctx, ref)
}

func (o *Orchestrator) transcribe(ctx context.Context, audio *AudioArtifact, model ModelSize) ([]Segment, error) {
	ctx, cancel := withStepTimeout(ctx, o.timeouts.Transcribe)
	defer cancel()
	return o.transcriber.Transcribe(ctx, audio, model)
}

func withStepTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
