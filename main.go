// go_transcript — YouTube transcript MCP server.
//
// Exposes five MCP tools: youtube_transcript, transcript_models, transcript_explain,
// transcript_history, transcript_history_get. Captions are used when a video has
// them; otherwise the audio is downloaded with yt-dlp and run through whisper.
// An optional JSON HTTP API is served on HTTP_PORT.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/anatolykoptev/go-mcpserver"
	stealth "github.com/anatolykoptev/go-stealth"
	"github.com/anatolykoptev/go-stealth/proxypool"
	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/anatolykoptev/go_transcript/internal/engine/media"
	"github.com/anatolykoptev/go_transcript/internal/engine/sources"
	"github.com/anatolykoptev/go_transcript/internal/engine/speech"
	"github.com/anatolykoptev/go_transcript/internal/engine/transcript"
	"github.com/anatolykoptev/go_transcript/internal/toolutil"
	"github.com/anatolykoptev/go_transcript/internal/transcriptserver"
	"github.com/anatolykoptev/go_transcript/internal/webapi"
)

var version = "dev"

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", slog.Any("error", err))
	}
	mcpPort := env.Str("MCP_PORT", "8893")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := initEngine()
	svc, closeAll, err := buildService(ctx, c)
	if err != nil {
		slog.Error("service init failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeAll()

	slog.Info("starting go_transcript",
		slog.String("port", mcpPort),
		slog.String("speech_backend", c.SpeechBackend),
	)

	if httpPort := env.Str("HTTP_PORT", ""); httpPort != "" {
		router := webapi.NewRouter(svc, webapi.Options{
			CORSOrigins:        env.List("CORS_ORIGINS", "*"),
			RateLimitPerMinute: env.Int("RATE_LIMIT_PER_MINUTE", 30),
			Version:            version,
		})
		go func() {
			if err := webapi.Serve(ctx, ":"+httpPort, router); err != nil {
				slog.Error("http api failed", slog.Any("error", err))
			}
		}()
	}

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "go_transcript",
		Version: version,
	}, nil)

	transcriptserver.RegisterTools(server, svc)
	slog.Info("tools registered", slog.Int("count", transcriptserver.ToolCount))

	if err := mcpserver.Run(server, mcpserver.Config{
		Name:         "go_transcript",
		Version:      version,
		Port:         mcpPort,
		WriteTimeout: writeTimeout(stepTimeouts(c)),
		Metrics:      engine.FormatMetrics,
	}); err != nil {
		slog.Error("server failed", slog.Any("error", err))
	}
}

func initEngine() engine.Config {
	c := engine.Config{
		YouTubeBaseURL:              env.Str("YOUTUBE_BASE_URL", "https://www.youtube.com"),
		CaptionLanguages:            env.List("CAPTION_LANGS", "en"),
		CaptionTimeout:              env.Duration("CAPTION_TIMEOUT", 45*time.Second),
		QueueTimeout:                env.Duration("QUEUE_TIMEOUT", 30*time.Minute),
		DownloadTimeout:             env.Duration("DOWNLOAD_TIMEOUT", 15*time.Minute),
		TranscribeTimeout:           env.Duration("TRANSCRIBE_TIMEOUT", 60*time.Minute),
		MaxConcurrentTranscriptions: env.Int("MAX_CONCURRENT_TRANSCRIPTIONS", 1),
		YtDlpPath:                   env.Str("YTDLP_PATH", ""),
		FFmpegPath:                  env.Str("FFMPEG_PATH", "ffmpeg"),
		SpeechBackend:               env.Str("SPEECH_BACKEND", speech.BackendWhisperCLI),
		WhisperCLIPath:              env.Str("WHISPER_CLI_PATH", "whisper-cli"),
		WhisperServerURL:            env.Str("WHISPER_SERVER_URL", ""),
		WhisperLanguage:             env.Str("WHISPER_LANGUAGE", "auto"),
		OpenAIAPIKey:                env.Str("OPENAI_API_KEY", ""),
		OpenAIBaseURL:               env.Str("OPENAI_BASE_URL", ""),
		OpenAITranscribeModel:       env.Str("OPENAI_TRANSCRIBE_MODEL", "whisper-1"),
		ModelDir:                    env.Str("MODEL_DIR", speech.DefaultModelDir()),
		ModelAutoDownload:           envBool("MODEL_AUTO_DOWNLOAD", true),
		DefaultModel:                env.Str("DEFAULT_MODEL", string(transcript.DefaultModel)),
		LLMAPIKey:                   env.Str("LLM_API_KEY", ""),
		LLMAPIKeyFallbacks:          env.List("LLM_API_KEY_FALLBACKS", ""),
		LLMAPIBase:                  env.Str("LLM_API_BASE", "https://generativelanguage.googleapis.com/v1beta/openai"),
		LLMModels:                   env.List("LLM_MODELS", "gemini-2.5-flash-lite,gemini-2.5-flash,gemini-2.0-flash,gemini-2.5-pro"),
		LLMTemperature:              env.Float("LLM_TEMPERATURE", 0.7),
		LLMMaxTokens:                env.Int("LLM_MAX_TOKENS", 1500),
		CacheMaxEntries:             env.Int("CACHE_MAX_ENTRIES", 500),
		CacheCleanupInterval:        env.Duration("CACHE_CLEANUP_INTERVAL", 5*time.Minute),
		DatabaseURL:                 env.Str("DATABASE_URL", ""),
		HistoryDBPath:               env.Str("HISTORY_DB", ""),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     60 * time.Second,
			},
		},
	}

	var opts []stealth.ClientOption
	opts = append(opts, stealth.WithTimeout(15))

	if apiKey := env.Str("WEBSHARE_API_KEY", ""); apiKey != "" {
		pool, err := proxypool.NewWebshare(apiKey)
		if err != nil {
			slog.Warn("proxy pool init failed, running without proxy", slog.Any("error", err))
		} else {
			opts = append(opts, stealth.WithProxyPool(pool))
			slog.Info("proxy pool initialized", slog.Int("proxies", pool.Len()))
		}
	}

	bc, err := stealth.NewClient(opts...)
	if err != nil {
		slog.Error("stealth client init failed", slog.Any("error", err))
	} else {
		c.BrowserClient = bc
		slog.Info("stealth browser client initialized")
	}

	engine.Init(c)

	cacheTTL := env.Duration("CACHE_TTL", 6*time.Hour)
	engine.InitCache(env.Str("REDIS_URL", ""), cacheTTL, c.CacheMaxEntries, c.CacheCleanupInterval)
	return *engine.Cfg
}

// buildService wires the orchestrator, history and explainer. The returned func
// releases the model store and the history store.
func buildService(ctx context.Context, c engine.Config) (*toolutil.Service, func(), error) {
	defaultModel, err := transcript.ParseModelSize(c.DefaultModel)
	if err != nil {
		return nil, nil, err
	}

	models := speech.NewModelStore(c.ModelDir, speech.ModelStoreOptions{
		AutoDownload: c.ModelAutoDownload,
		BaseURL:      env.Str("MODEL_BASE_URL", ""),
	})
	transcriber, err := speech.New(&c, models)
	if err != nil {
		return nil, nil, err
	}

	orch := transcript.NewOrchestrator(
		&sources.YouTubeCaptions{},
		media.NewYtDlp(c.YtDlpPath, c.FFmpegPath),
		transcriber,
		transcript.Options{
			Timeouts:                    stepTimeouts(c),
			MaxConcurrentTranscriptions: c.MaxConcurrentTranscriptions,
		},
	)

	svc := &toolutil.Service{
		Transcriber:  orch,
		Models:       models,
		DefaultModel: defaultModel,
		Explainer: transcript.NewExplainer(engine.NewLLMModels(engine.LLMSettings{
			APIBase:      c.LLMAPIBase,
			APIKey:       c.LLMAPIKey,
			FallbackKeys: c.LLMAPIKeyFallbacks,
			Models:       c.LLMModels,
			Temperature:  c.LLMTemperature,
			MaxTokens:    c.LLMMaxTokens,
		})),
	}
	if svc.Explainer.Enabled() {
		slog.Info("concept explanation enabled", slog.Int("models", len(c.LLMModels)))
	}

	history := openHistory(ctx, c)
	if history != nil {
		svc.History = history
	}
	return svc, func() {
		if err := models.Close(); err != nil {
			slog.Warn("model store close failed", slog.Any("error", err))
		}
		if history != nil {
			if err := history.Close(); err != nil {
				slog.Warn("history close failed", slog.Any("error", err))
			}
		}
	}, nil
}

func stepTimeouts(c engine.Config) transcript.Timeouts {
	return transcript.Timeouts{
		Captions:   c.CaptionTimeout,
		Queue:      c.QueueTimeout,
		Download:   c.DownloadTimeout,
		Transcribe: c.TranscribeTimeout,
	}
}

// writeTimeout outlasts the longest possible run so a finished transcript is
// never cut off. Unbounded steps fall back to a day.
func writeTimeout(t transcript.Timeouts) time.Duration {
	total, ok := t.Total()
	if !ok {
		return 24 * time.Hour
	}
	return total + time.Minute
}

// openHistory prefers PostgreSQL when DATABASE_URL is set and falls back to a local
// SQLite file. History is optional: failures are logged and nil is returned.
func openHistory(ctx context.Context, c engine.Config) transcript.HistoryStore {
	if c.DatabaseURL != "" {
		pg, err := transcript.ConnectPGHistory(ctx, c.DatabaseURL)
		if err == nil {
			slog.Info("history: postgres")
			return pg
		}
		slog.Warn("history: postgres init failed, using sqlite", slog.Any("error", err))
	}
	path := c.HistoryDBPath
	if path == "" {
		path = transcript.DefaultHistoryPath()
	}
	h, err := transcript.OpenSQLiteHistory(path)
	if err != nil {
		slog.Warn("history disabled", slog.Any("error", err))
		return nil
	}
	slog.Info("history: sqlite", slog.String("path", path))
	return h
}

func envBool(key string, def bool) bool {
	raw := env.Str(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		slog.Warn("invalid boolean, using default", slog.String("key", key), slog.String("value", raw))
		return def
	}
	return v
}
