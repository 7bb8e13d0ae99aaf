package transcript

import (
	"context"
	"errors"
	"time"

	"github.com/anatolykoptev/go_transcript/internal/engine"
)

// ErrNotFound is returned by HistoryStore.Get for unknown ids.
var ErrNotFound = errors.New("transcript not found")

// HistoryRecord is a stored transcript.
type HistoryRecord struct {
	ID         string     `json:"id"`
	VideoID    string     `json:"video_id"`
	Provenance Provenance `json:"provenance"`
	Model      ModelSize  `json:"model,omitempty"`
	Segments   []Segment  `json:"segments"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Result converts the record back into a Result.
func (h *HistoryRecord) Result() *Result {
	return &Result{
		VideoID:    h.VideoID,
		Segments:   h.Segments,
		Provenance: h.Provenance,
		Model:      h.Model,
		CreatedAt:  h.CreatedAt,
	}
}

// HistorySummary is one row of a history listing.
type HistorySummary struct {
	ID         string     `json:"id"`
	VideoID    string     `json:"video_id"`
	Provenance Provenance `json:"provenance"`
	Model      ModelSize  `json:"model,omitempty"`
	Preview    string     `json:"preview"`
	CreatedAt  time.Time  `json:"created_at"`
}

// HistoryStore keeps finished transcripts for the presentation layers.
type HistoryStore interface {
	Save(ctx context.Context, r *Result) (string, error)
	Get(ctx context.Context, id string) (*HistoryRecord, error)
	List(ctx context.Context, limit int) ([]HistorySummary, error)
	Close() error
}

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
	previewRunes        = 120
)

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultHistoryLimit
	case limit > maxHistoryLimit:
		return maxHistoryLimit
	}
	return limit
}

func previewOf(text string) string {
	return engine.TruncateAtWord(text, previewRunes)
}
