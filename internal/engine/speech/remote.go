package speech

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/anatolykoptev/go_transcript/internal/engine/transcript"
)

const (
	maxResponseBytes  = 32 * 1024 * 1024
	maxOpenAIFileSize = 25 * 1024 * 1024
)

// WhisperServer posts audio to a whisper.cpp server (/inference). The model is the
// one the server was started with; the requested size is only logged.
type WhisperServer struct {
	baseURL  string
	language string
	conv     converter
	client   *http.Client
}

var _ transcript.Transcriber = (*WhisperServer)(nil)

// NewWhisperServer returns a client for the whisper.cpp server at baseURL.
func NewWhisperServer(baseURL, ffmpeg, language string) *WhisperServer {
	return &WhisperServer{
		baseURL:  strings.TrimRight(baseURL, "/"),
		language: language,
		conv:     newConverter(ffmpeg),
		client:   &http.Client{Transport: http.DefaultTransport}, // bounded by ctx
	}
}

func (w *WhisperServer) Transcribe(ctx context.Context, audio *transcript.AudioArtifact, model transcript.ModelSize) ([]transcript.Segment, error) {
	engine.IncrTranscriptions()
	segs, err := w.transcribe(ctx, audio, model)
	if err != nil {
		engine.IncrTranscriptionErrors()
		return nil, err
	}
	return segs, nil
}

func (w *WhisperServer) transcribe(ctx context.Context, audio *transcript.AudioArtifact, model transcript.ModelSize) ([]transcript.Segment, error) {
	wav, err := w.conv.wav16k(ctx, audio)
	if err != nil {
		return nil, err
	}
	fields := map[string]string{
		"response_format": "verbose_json",
		"temperature":     "0.0",
	}
	if lang := normalizeLanguage(w.language); lang != "" {
		fields["language"] = lang
	}
	slog.Info("whisper-server: transcribing", slog.String("requested_model", string(model)), slog.String("url", w.baseURL))

	body, err := postAudio(ctx, w.client, w.baseURL+"/inference", wav, fields, nil)
	if err != nil {
		return nil, fmt.Errorf("whisper-server: %w", err)
	}
	return parseVerboseJSON(body)
}

// OpenAI posts audio to an OpenAI-compatible /v1/audio/transcriptions endpoint.
// Every model size maps to the one configured remote model.
type OpenAI struct {
	baseURL  string
	apiKey   string
	model    string
	language string
	conv     converter
	client   *http.Client
}

var _ transcript.Transcriber = (*OpenAI)(nil)

// NewOpenAI returns a client. baseURL defaults to https://api.openai.com/v1 and
// model to whisper-1.
func NewOpenAI(baseURL, apiKey, model, ffmpeg, language string) *OpenAI {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "whisper-1"
	}
	return &OpenAI{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		model:    model,
		language: language,
		conv:     newConverter(ffmpeg),
		client:   &http.Client{Transport: http.DefaultTransport},
	}
}

func (o *OpenAI) Transcribe(ctx context.Context, audio *transcript.AudioArtifact, model transcript.ModelSize) ([]transcript.Segment, error) {
	engine.IncrTranscriptions()
	segs, err := o.transcribe(ctx, audio, model)
	if err != nil {
		engine.IncrTranscriptionErrors()
		return nil, err
	}
	return segs, nil
}

func (o *OpenAI) transcribe(ctx context.Context, audio *transcript.AudioArtifact, model transcript.ModelSize) ([]transcript.Segment, error) {
	mp3, err := o.conv.mp3(ctx, audio)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(mp3)
	if err != nil {
		return nil, err
	}
	if fi.Size() > maxOpenAIFileSize {
		return nil, fmt.Errorf("openai: audio is %d MB, over the %d MB upload limit",
			fi.Size()>>20, maxOpenAIFileSize>>20)
	}

	fields := map[string]string{
		"model":           o.model,
		"response_format": "verbose_json",
	}
	if lang := normalizeLanguage(o.language); lang != "" {
		fields["language"] = lang
	}
	slog.Info("openai: transcribing", slog.String("requested_model", string(model)), slog.String("remote_model", o.model))

	body, err := postAudio(ctx, o.client, o.baseURL+"/audio/transcriptions", mp3, fields,
		map[string]string{"Authorization": "Bearer " + o.apiKey})
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	return parseVerboseJSON(body)
}

// postAudio sends path as the multipart "file" field plus fields, retrying transient failures.
func postAudio(ctx context.Context, client *http.Client, endpoint, path string, fields, headers map[string]string) ([]byte, error) {
	payload, contentType, err := multipartBody(path, fields)
	if err != nil {
		return nil, err
	}

	resp, err := engine.RetryHTTP(ctx, engine.DefaultRetryConfig, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return client.Do(req)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, engine.TruncateRunes(strings.TrimSpace(string(body)), 300, "..."))
	}
	return body, nil
}

func multipartBody(path string, fields map[string]string) ([]byte, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("copy audio: %w", err)
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}
