package speech

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/anatolykoptev/go_transcript/internal/engine/transcript"
)

const slowTranscription = 10 * time.Minute

// WhisperCLI runs a local whisper.cpp binary against ggml models from a ModelStore.
type WhisperCLI struct {
	binary   string
	language string
	models   *ModelStore
	conv     converter
	runner   engine.CommandRunner
}

var _ transcript.Transcriber = (*WhisperCLI)(nil)

// NewWhisperCLI returns a transcriber using binary (default "whisper-cli").
func NewWhisperCLI(binary, ffmpeg, language string, models *ModelStore) *WhisperCLI {
	if binary == "" {
		binary = "whisper-cli"
	}
	return &WhisperCLI{
		binary:   binary,
		language: language,
		models:   models,
		conv:     newConverter(ffmpeg),
		runner:   engine.ExecRunner{},
	}
}

// Transcribe converts the audio, runs whisper-cli and parses its JSON output.
// Intermediate files are written inside the artifact directory.
func (w *WhisperCLI) Transcribe(ctx context.Context, audio *transcript.AudioArtifact, model transcript.ModelSize) ([]transcript.Segment, error) {
	engine.IncrTranscriptions()
	segs, err := w.transcribe(ctx, audio, model)
	if err != nil {
		engine.IncrTranscriptionErrors()
		return nil, err
	}
	return segs, nil
}

func (w *WhisperCLI) transcribe(ctx context.Context, audio *transcript.AudioArtifact, model transcript.ModelSize) ([]transcript.Segment, error) {
	modelPath, err := w.models.Path(ctx, model)
	if err != nil {
		return nil, err
	}
	wav, err := w.conv.wav16k(ctx, audio)
	if err != nil {
		return nil, err
	}

	outBase := filepath.Join(audio.Dir, "whisper")
	args := buildWhisperArgs(modelPath, wav, outBase, w.language)
	slog.Info("whisper: transcribing", slog.String("model", string(model)), slog.String("audio", wav))

	err = engine.TrackOperation(ctx, "whisper-cli:"+string(model), slowTranscription, func(ctx context.Context) error {
		res, err := w.runner.Run(ctx, w.binary, args...)
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("whisper-cli: %w", ctx.Err())
			}
			return engine.CommandError("whisper-cli", res, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	data, err := readOutput(outBase + ".json")
	if err != nil {
		return nil, err
	}
	return parseWhisperCppJSON(data)
}

// buildWhisperArgs builds whisper.cpp args for JSON transcript export to outBase.json.
func buildWhisperArgs(modelPath, audioPath, outBase, language string) []string {
	args := []string{
		"-m", modelPath,
		"-f", audioPath,
		"-oj",
		"-of", outBase,
		"-np",
	}
	// whisper.cpp assumes English without -l, so auto detection must be explicit.
	lang := normalizeLanguage(language)
	if lang == "" {
		lang = "auto"
	}
	return append(args, "-l", lang)
}
