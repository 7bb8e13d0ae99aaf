package transcriptserver

import (
	"github.com/anatolykoptev/go_transcript/internal/engine/transcript"
	"github.com/anatolykoptev/go_transcript/internal/toolutil"
)

// TranscriptInput is the input for youtube_transcript.
type TranscriptInput struct {
	URL        string `json:"url" jsonschema:"YouTube video URL (watch, youtu.be, shorts, embed, live) or 11-character video ID"`
	Model      string `json:"model,omitempty" jsonschema:"Speech model used only when the video has no captions: tiny, base (default), small, medium"`
	Timestamps bool   `json:"timestamps,omitempty" jsonschema:"Prefix each line with [mm:ss]"`
}

// TranscriptOutput is the result of youtube_transcript.
type TranscriptOutput struct {
	VideoID       string                `json:"video_id"`
	Provenance    transcript.Provenance `json:"provenance"`
	Model         transcript.ModelSize  `json:"model,omitempty"`
	SegmentsCount int                   `json:"segments_count"`
	Cached        bool                  `json:"cached,omitempty"`
	Filename      string                `json:"filename"`
	HistoryID     string                `json:"history_id,omitempty"`
	Text          string                `json:"text"`
}

// ModelsInput is the (empty) input for transcript_models.
type ModelsInput struct{}

// ModelsOutput lists the selectable speech models.
type ModelsOutput struct {
	Models []toolutil.ModelStatus `json:"models"`
}

// ExplainInput is the input for transcript_explain.
type ExplainInput struct {
	URL   string `json:"url,omitempty" jsonschema:"YouTube video to transcribe and explain"`
	Text  string `json:"text,omitempty" jsonschema:"Transcript text to explain instead of fetching one"`
	Model string `json:"model,omitempty" jsonschema:"Speech model if the video has no captions"`
}

// HistoryInput is the input for transcript_history.
type HistoryInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum entries to return (default 20, max 200)"`
}

// HistoryOutput lists stored transcripts, newest first.
type HistoryOutput struct {
	Items []transcript.HistorySummary `json:"items"`
}

// HistoryGetInput is the input for transcript_history_get.
type HistoryGetInput struct {
	ID         string `json:"id" jsonschema:"History id returned by youtube_transcript or transcript_history"`
	Timestamps bool   `json:"timestamps,omitempty" jsonschema:"Prefix each line with [mm:ss]"`
}
