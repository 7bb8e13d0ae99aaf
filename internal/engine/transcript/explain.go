package transcript

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/anatolykoptev/go_transcript/internal/engine"
)

const (
	minExplainChars = 50
	maxExplainRunes = 4000
)

// ErrTranscriptTooShort means the transcript is too short to analyse.
var ErrTranscriptTooShort = errors.New("transcript too short for meaningful analysis")

// Explanation is an LLM-written breakdown of the concepts in a transcript.
type Explanation struct {
	VideoID string `json:"video_id,omitempty"`
	Model   string `json:"model"`
	Text    string `json:"text"`
}

// Explainer asks a chain of LLM models to explain a transcript.
type Explainer struct {
	models []engine.LLMModel
}

// NewExplainer returns an Explainer that tries models in order.
func NewExplainer(models []engine.LLMModel) *Explainer {
	return &Explainer{models: models}
}

// Enabled reports whether at least one model is configured.
func (e *Explainer) Enabled() bool { return e != nil && len(e.models) > 0 }

// Explain analyses text. The first model that answers wins.
func (e *Explainer) Explain(ctx context.Context, videoID, text string) (*Explanation, error) {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < minExplainChars {
		return nil, ErrTranscriptTooShort
	}
	if !e.Enabled() {
		return nil, engine.ErrNoLLM
	}
	prompt := fmt.Sprintf(engine.ExplainConceptsPrompt, engine.TruncateRunes(text, maxExplainRunes, ""))
	answer, model, err := engine.CompleteWithFallback(ctx, e.models, prompt)
	if err != nil {
		return nil, fmt.Errorf("explain: %w", err)
	}
	return &Explanation{VideoID: videoID, Model: model, Text: answer}, nil
}
