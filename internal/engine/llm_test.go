package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedModel(name, answer string, err error, calls *int) LLMModel {
	return LLMModel{
		Name: name,
		Complete: func(_ context.Context, _ string) (string, error) {
			*calls++
			return answer, err
		},
	}
}

func TestCompleteWithFallback(t *testing.T) {
	tests := []struct {
		name      string
		models    func(calls []int) []LLMModel
		wantText  string
		wantModel string
		wantErr   bool
		wantCalls []int
	}{
		{
			name: "first model answers",
			models: func(c []int) []LLMModel {
				return []LLMModel{
					fixedModel("a", "answer a", nil, &c[0]),
					fixedModel("b", "answer b", nil, &c[1]),
				}
			},
			wantText:  "answer a",
			wantModel: "a",
			wantCalls: []int{1, 0},
		},
		{
			name: "quota error falls through",
			models: func(c []int) []LLMModel {
				return []LLMModel{
					fixedModel("a", "", errors.New("429 quota exceeded"), &c[0]),
					fixedModel("b", "answer b", nil, &c[1]),
				}
			},
			wantText:  "answer b",
			wantModel: "b",
			wantCalls: []int{1, 1},
		},
		{
			name: "empty answer falls through",
			models: func(c []int) []LLMModel {
				return []LLMModel{
					fixedModel("a", "   ", nil, &c[0]),
					fixedModel("b", "```\nfenced\n```", nil, &c[1]),
				}
			},
			wantText:  "fenced",
			wantModel: "b",
			wantCalls: []int{1, 1},
		},
		{
			name: "all fail",
			models: func(c []int) []LLMModel {
				return []LLMModel{
					fixedModel("a", "", errors.New("boom"), &c[0]),
					fixedModel("b", "", errors.New("boom"), &c[1]),
				}
			},
			wantErr:   true,
			wantCalls: []int{1, 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := make([]int, 2)
			text, model, err := CompleteWithFallback(context.Background(), tt.models(calls), "prompt")
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantText, text)
			assert.Equal(t, tt.wantModel, model)
			assert.Equal(t, tt.wantCalls, calls)
		})
	}
}

func TestCompleteWithFallback_NoModels(t *testing.T) {
	_, _, err := CompleteWithFallback(context.Background(), nil, "prompt")
	assert.ErrorIs(t, err, ErrNoLLM)
}

func TestNewLLMModels(t *testing.T) {
	assert.Nil(t, NewLLMModels(LLMSettings{Models: []string{"m"}}), "no key, no models")

	models := NewLLMModels(LLMSettings{
		APIBase: "http://127.0.0.1:1",
		APIKey:  "k",
		Models:  []string{"gemini-2.5-flash-lite", " ", "gemini-2.5-flash"},
	})
	require.Len(t, models, 2)
	assert.Equal(t, "gemini-2.5-flash-lite", models[0].Name)
	assert.Equal(t, "gemini-2.5-flash", models[1].Name)
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{in: "plain", want: "plain"},
		{in: "```\nbody\n```", want: "body"},
		{in: "```markdown\n## Title\n```", want: "## Title"},
		{in: "  spaced  ", want: "spaced"},
	}
	for _, tt := range tests {
		if got := stripFences(tt.in); got != tt.want {
			t.Errorf("stripFences(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
