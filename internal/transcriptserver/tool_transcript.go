package transcriptserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_transcript/internal/engine/transcript"
)

func registerTranscript(server *mcp.Server, h *handlers) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "youtube_transcript",
		Description: "Get the transcript of a YouTube video. Uses the video's captions when it has any (fast); otherwise downloads the audio and runs Whisper speech recognition with the chosen model size (slow, minutes for long videos). Returns the text plus its provenance: captions or speech_recognition.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, h.transcript)
}

func (h *handlers) transcript(ctx context.Context, _ *mcp.CallToolRequest, input TranscriptInput) (*mcp.CallToolResult, TranscriptOutput, error) {
	if input.URL == "" {
		return nil, TranscriptOutput{}, errors.New("url is required")
	}
	ctx = transcript.WithStageFunc(ctx, func(ref transcript.VideoRef, stage transcript.Stage) {
		slog.Info("youtube_transcript: stage", slog.String("video", ref.ID), slog.String("stage", string(stage)))
	})

	run, err := h.svc.Transcribe(ctx, input.URL, input.Model)
	if err != nil {
		return nil, TranscriptOutput{}, toolError(err)
	}
	res := run.Result
	return nil, TranscriptOutput{
		VideoID:       res.VideoID,
		Provenance:    res.Provenance,
		Model:         res.Model,
		SegmentsCount: len(res.Segments),
		Cached:        run.Cached,
		Filename:      transcript.ExportFilename(res),
		HistoryID:     run.HistoryID,
		Text:          transcript.Export(res, transcript.ExportOptions{Timestamps: input.Timestamps}),
	}, nil
}

// toolError pairs the user-facing message with the underlying cause.
func toolError(err error) error {
	msg := transcript.UserMessage(err)
	if msg == "" {
		return err
	}
	return fmt.Errorf("%s (%w)", msg, err)
}
