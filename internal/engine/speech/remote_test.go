package speech

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/anatolykoptev/go_transcript/internal/engine/transcript"
)

const verboseResponse = `{
  "task": "transcribe",
  "language": "english",
  "text": " Test transcript second line",
  "segments": [
    {"id": 0, "start": 0.0, "end": 1.25, "text": " Test transcript"},
    {"id": 1, "start": 1.25, "end": 2.5, "text": " second line"}
  ]
}`

func convertingRunner(t *testing.T) *fakeRunner {
	r := &fakeRunner{}
	r.run = func(_ context.Context, _ string, args ...string) (engine.CommandResult, error) {
		ffmpegOK(t, args)
		return engine.CommandResult{}, nil
	}
	return r
}

func TestWhisperServer_Transcribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/inference", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "verbose_json", r.FormValue("response_format"))
		assert.Equal(t, "0.0", r.FormValue("temperature"))
		assert.Equal(t, "fr", r.FormValue("language"))
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "speech-16k.wav", hdr.Filename)
		assert.Equal(t, "RIFF", string(data))
		w.Write([]byte(verboseResponse))
	}))
	defer srv.Close()

	ws := NewWhisperServer(srv.URL+"/", "ffmpeg", "fr")
	ws.conv.runner = convertingRunner(t)

	segs, err := ws.Transcribe(context.Background(), newTestArtifact(t), transcript.ModelBase)
	require.NoError(t, err)
	assert.Equal(t, []transcript.Segment{
		{Text: "Test transcript", Duration: 1250 * time.Millisecond},
		{Text: "second line", Start: 1250 * time.Millisecond, Duration: 1250 * time.Millisecond},
	}, segs)
}

func TestWhisperServer_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad audio", http.StatusBadRequest)
	}))
	defer srv.Close()

	ws := NewWhisperServer(srv.URL, "ffmpeg", "auto")
	ws.conv.runner = convertingRunner(t)

	_, err := ws.Transcribe(context.Background(), newTestArtifact(t), transcript.ModelBase)
	require.ErrorContains(t, err, "HTTP 400")
	assert.ErrorContains(t, err, "bad audio")
}

func TestOpenAI_Transcribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/transcriptions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))
		assert.Empty(t, r.FormValue("language"), "auto sends no language")
		_, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		assert.Equal(t, "speech.mp3", hdr.Filename)
		w.Write([]byte(`{"text": "  Test transcript  "}`))
	}))
	defer srv.Close()

	o := NewOpenAI(srv.URL+"/v1", "sk-test", "", "ffmpeg", "auto")
	o.conv.runner = convertingRunner(t)

	segs, err := o.Transcribe(context.Background(), newTestArtifact(t), transcript.ModelMedium)
	require.NoError(t, err)
	assert.Equal(t, []transcript.Segment{{Text: "Test transcript"}}, segs)
}

func TestParseVerboseJSON_Empty(t *testing.T) {
	segs, err := parseVerboseJSON([]byte(`{"text": "   ", "segments": []}`))
	require.NoError(t, err)
	assert.Empty(t, segs)
}

func TestNew_SelectsBackend(t *testing.T) {
	models := NewModelStore(t.TempDir(), ModelStoreOptions{})
	tests := []struct {
		name    string
		cfg     engine.Config
		want    any
		wantErr bool
	}{
		{"default is whisper-cli", engine.Config{}, &WhisperCLI{}, false},
		{"whisper-server", engine.Config{SpeechBackend: "whisper-server", WhisperServerURL: "http://127.0.0.1:8080"}, &WhisperServer{}, false},
		{"whisper-server without url", engine.Config{SpeechBackend: "whisper-server"}, nil, true},
		{"openai", engine.Config{SpeechBackend: "OpenAI", OpenAIAPIKey: "k"}, &OpenAI{}, false},
		{"openai without key", engine.Config{SpeechBackend: "openai"}, nil, true},
		{"unknown", engine.Config{SpeechBackend: "vosk"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := New(&tt.cfg, models)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, got)
		})
	}
}
