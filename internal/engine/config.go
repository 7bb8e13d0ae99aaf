package engine

import (
	"net/http"
	"time"
)

// Config holds all engine configuration, injected from main.
type Config struct {
	YouTubeBaseURL              string   // https://www.youtube.com unless overridden in tests
	CaptionLanguages            []string // preferred caption languages, best first
	CaptionTimeout              time.Duration
	QueueTimeout                time.Duration
	DownloadTimeout             time.Duration
	TranscribeTimeout           time.Duration
	MaxConcurrentTranscriptions int

	YtDlpPath  string
	FFmpegPath string

	SpeechBackend         string // whisper-cli, whisper-server, openai
	WhisperCLIPath        string
	WhisperServerURL      string
	WhisperLanguage       string
	OpenAIAPIKey          string
	OpenAIBaseURL         string
	OpenAITranscribeModel string
	ModelDir              string
	ModelAutoDownload     bool
	DefaultModel          string

	LLMAPIKey          string
	LLMAPIKeyFallbacks []string
	LLMAPIBase         string
	LLMModels          []string
	LLMTemperature     float64
	LLMMaxTokens       int

	CacheMaxEntries      int
	CacheCleanupInterval time.Duration
	DatabaseURL          string
	HistoryDBPath        string

	HTTPClient    *http.Client
	BrowserClient *BrowserClient // nil = watch page fetched with HTTPClient
}

var cfg Config

// Cfg exposes the engine configuration for sub-packages (sources, media, speech).
// Always points to the current cfg value.
var Cfg = &cfg

// Init initializes the engine with the given configuration.
func Init(c Config) {
	if c.YouTubeBaseURL == "" {
		c.YouTubeBaseURL = "https://www.youtube.com"
	}
	if len(c.CaptionLanguages) == 0 {
		c.CaptionLanguages = []string{"en"}
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	cfg = c
	Cfg = &cfg
}
