package transcript

import (
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// Provenance records which path produced a Result.
type Provenance string

const (
	ProvenanceCaptions          Provenance = "captions"
	ProvenanceSpeechRecognition Provenance = "speech_recognition"
)

// Segment is one line of transcript text. Start and Duration are zero when unknown.
type Segment struct {
	Text     string        `json:"text"`
	Start    time.Duration `json:"start,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

// Result is a finished transcript. Segments is never empty on success.
type Result struct {
	VideoID    string     `json:"video_id"`
	Segments   []Segment  `json:"segments"`
	Provenance Provenance `json:"provenance"`
	Model      ModelSize  `json:"model,omitempty"` // speech recognition only
	CreatedAt  time.Time  `json:"created_at"`
}

// Text joins segment text with newlines.
func (r *Result) Text() string {
	lines := make([]string, 0, len(r.Segments))
	for _, s := range r.Segments {
		lines = append(lines, s.Text)
	}
	return strings.Join(lines, "\n")
}

// AudioArtifact is a downloaded audio file living in a directory owned by one run.
type AudioArtifact struct {
	Dir  string
	Path string

	once sync.Once
}

// NewAudioArtifact wraps an existing directory and the audio file inside it.
func NewAudioArtifact(dir, path string) *AudioArtifact {
	return &AudioArtifact{Dir: dir, Path: path}
}

// Release removes the artifact directory. Safe to call more than once.
func (a *AudioArtifact) Release() {
	if a == nil {
		return
	}
	a.once.Do(func() {
		if a.Dir == "" {
			return
		}
		if err := os.RemoveAll(a.Dir); err != nil {
			slog.Warn("transcript: release audio artifact", slog.String("dir", a.Dir), slog.Any("error", err))
		}
	})
}

// hasText reports whether any segment carries non-blank text.
func hasText(segs []Segment) bool {
	for _, s := range segs {
		if strings.TrimSpace(s.Text) != "" {
			return true
		}
	}
	return false
}

// compact drops blank segments and trims the rest.
func compact(segs []Segment) []Segment {
	out := make([]Segment, 0, len(segs))
	for _, s := range segs {
		s.Text = strings.TrimSpace(s.Text)
		if s.Text == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}
