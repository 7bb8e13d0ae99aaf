// Package speech implements transcript.Transcriber with whisper.cpp (CLI or server)
// and OpenAI-compatible transcription APIs.
package speech

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/anatolykoptev/go_transcript/internal/engine/transcript"
)

// Backend names accepted by New.
const (
	BackendWhisperCLI    = "whisper-cli"
	BackendWhisperServer = "whisper-server"
	BackendOpenAI        = "openai"
)

// New builds the transcriber selected by c.SpeechBackend. models is used by the
// whisper-cli backend only.
func New(c *engine.Config, models *ModelStore) (transcript.Transcriber, error) {
	switch strings.ToLower(strings.TrimSpace(c.SpeechBackend)) {
	case "", BackendWhisperCLI:
		if models == nil {
			return nil, fmt.Errorf("%s backend needs a model store", BackendWhisperCLI)
		}
		return NewWhisperCLI(c.WhisperCLIPath, c.FFmpegPath, c.WhisperLanguage, models), nil
	case BackendWhisperServer:
		if c.WhisperServerURL == "" {
			return nil, fmt.Errorf("%s backend needs WHISPER_SERVER_URL", BackendWhisperServer)
		}
		return NewWhisperServer(c.WhisperServerURL, c.FFmpegPath, c.WhisperLanguage), nil
	case BackendOpenAI:
		if c.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("%s backend needs OPENAI_API_KEY", BackendOpenAI)
		}
		return NewOpenAI(c.OpenAIBaseURL, c.OpenAIAPIKey, c.OpenAITranscribeModel, c.FFmpegPath, c.WhisperLanguage), nil
	default:
		return nil, fmt.Errorf("unknown speech backend %q (want %s, %s or %s)",
			c.SpeechBackend, BackendWhisperCLI, BackendWhisperServer, BackendOpenAI)
	}
}

// normalizeLanguage maps "auto" and empty language to no override.
func normalizeLanguage(raw string) string {
	lang := strings.TrimSpace(raw)
	if lang == "" || strings.EqualFold(lang, "auto") {
		return ""
	}
	return lang
}

// converter turns downloaded audio into what a backend accepts, inside the artifact dir.
type converter struct {
	ffmpeg string
	runner engine.CommandRunner
}

func newConverter(ffmpeg string) converter {
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	return converter{ffmpeg: ffmpeg, runner: engine.ExecRunner{}}
}

// wav16k writes 16 kHz mono PCM, the input whisper.cpp expects.
func (c converter) wav16k(ctx context.Context, audio *transcript.AudioArtifact) (string, error) {
	out := filepath.Join(audio.Dir, "speech-16k.wav")
	return out, c.run(ctx, audio.Path, out, "-c:a", "pcm_s16le")
}

// mp3 writes a compact mono MP3 for upload size limits.
func (c converter) mp3(ctx context.Context, audio *transcript.AudioArtifact) (string, error) {
	out := filepath.Join(audio.Dir, "speech.mp3")
	return out, c.run(ctx, audio.Path, out, "-c:a", "libmp3lame", "-q:a", "4")
}

func (c converter) run(ctx context.Context, in, out string, codec ...string) error {
	args := []string{"-hide_banner", "-loglevel", "error", "-nostdin", "-y", "-i", in, "-vn", "-ac", "1", "-ar", "16000"}
	args = append(append(args, codec...), out)
	res, err := c.runner.Run(ctx, c.ffmpeg, args...)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg: %w", ctx.Err())
		}
		return engine.CommandError("ffmpeg", res, err)
	}
	if !fileReady(out) {
		return fmt.Errorf("ffmpeg completed but %s is missing", filepath.Base(out))
	}
	return nil
}

// whisperCppJSON is the file whisper-cli writes with -oj.
type whisperCppJSON struct {
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

func parseWhisperCppJSON(data []byte) ([]transcript.Segment, error) {
	var out whisperCppJSON
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode whisper output: %w", err)
	}
	segs := make([]transcript.Segment, 0, len(out.Transcription))
	for _, t := range out.Transcription {
		text := strings.TrimSpace(t.Text)
		if text == "" {
			continue
		}
		s := transcript.Segment{Text: text, Start: time.Duration(t.Offsets.From) * time.Millisecond}
		if t.Offsets.To > t.Offsets.From {
			s.Duration = time.Duration(t.Offsets.To-t.Offsets.From) * time.Millisecond
		}
		segs = append(segs, s)
	}
	return segs, nil
}

// verboseJSON is the OpenAI verbose_json shape, also served by whisper.cpp's server.
type verboseJSON struct {
	Text     string `json:"text"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

func parseVerboseJSON(data []byte) ([]transcript.Segment, error) {
	var out verboseJSON
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode transcription response: %w", err)
	}
	segs := make([]transcript.Segment, 0, len(out.Segments))
	for _, s := range out.Segments {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		seg := transcript.Segment{Text: text, Start: seconds(s.Start)}
		if s.End > s.Start {
			seg.Duration = seconds(s.End - s.Start)
		}
		segs = append(segs, seg)
	}
	if len(segs) == 0 {
		if text := strings.TrimSpace(out.Text); text != "" {
			segs = append(segs, transcript.Segment{Text: text})
		}
	}
	return segs, nil
}

func seconds(f float64) time.Duration {
	if f <= 0 || math.IsNaN(f) {
		return 0
	}
	return time.Duration(math.Round(f * float64(time.Second)))
}

// readOutput reads a file whisper wrote, reporting a missing file clearly.
func readOutput(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("whisper completed but %s is missing", filepath.Base(path))
	}
	return data, err
}
