package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/anatolykoptev/go-kit/llm"
)

// LLMModel is one completion backend in a fallback chain.
type LLMModel struct {
	Name     string
	Complete func(ctx context.Context, prompt string) (string, error)
}

// LLMSettings configures NewLLMModels.
type LLMSettings struct {
	APIBase      string
	APIKey       string
	FallbackKeys []string
	Models       []string
	Temperature  float64
	MaxTokens    int
	Timeout      time.Duration
}

// NewLLMModels builds one client per configured model name, in priority order.
// Returns nil when no API key is configured.
func NewLLMModels(s LLMSettings) []LLMModel {
	if s.APIKey == "" {
		return nil
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	out := make([]LLMModel, 0, len(s.Models))
	for _, name := range s.Models {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		client := llm.NewClient(s.APIBase, s.APIKey, name,
			llm.WithFallbackKeys(s.FallbackKeys),
			llm.WithMaxTokens(s.MaxTokens),
			llm.WithTemperature(s.Temperature),
			llm.WithHTTPClient(&http.Client{Timeout: timeout}),
		)
		out = append(out, LLMModel{
			Name: name,
			Complete: func(ctx context.Context, prompt string) (string, error) {
				return client.Complete(ctx, "", prompt)
			},
		})
	}
	return out
}

// ErrNoLLM is returned when no completion backend is configured.
var ErrNoLLM = errors.New("no LLM configured")

// CompleteWithFallback tries models in order and returns the first non-empty answer
// together with the name of the model that produced it.
func CompleteWithFallback(ctx context.Context, models []LLMModel, prompt string) (string, string, error) {
	if len(models) == 0 {
		return "", "", ErrNoLLM
	}
	var errs []error
	for _, m := range models {
		if ctx.Err() != nil {
			return "", "", ctx.Err()
		}
		metrics.LLMCalls.Add(1)
		raw, err := m.Complete(ctx, prompt)
		if err == nil {
			if text := stripFences(raw); text != "" {
				return text, m.Name, nil
			}
			err = errors.New("empty response")
		}
		metrics.LLMErrors.Add(1)
		slog.Warn("llm: model failed, trying next", slog.String("model", m.Name), slog.Any("error", err))
		errs = append(errs, fmt.Errorf("%s: %w", m.Name, err))
	}
	return "", "", fmt.Errorf("all models failed: %w", errors.Join(errs...))
}

// stripFences removes markdown code fences from LLM output.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```markdown")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
