package transcriptserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_transcript/internal/engine/transcript"
)

func registerHistory(server *mcp.Server, h *handlers) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "transcript_history",
		Description: "List previously produced transcripts, newest first, with a short preview. Use transcript_history_get to read one in full.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, h.history)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "transcript_history_get",
		Description: "Get a stored transcript by history id.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, h.historyGet)
}

func (h *handlers) history(ctx context.Context, _ *mcp.CallToolRequest, input HistoryInput) (*mcp.CallToolResult, HistoryOutput, error) {
	items, err := h.svc.HistoryList(ctx, input.Limit)
	if err != nil {
		return nil, HistoryOutput{}, err
	}
	if items == nil {
		items = []transcript.HistorySummary{}
	}
	return nil, HistoryOutput{Items: items}, nil
}

func (h *handlers) historyGet(ctx context.Context, _ *mcp.CallToolRequest, input HistoryGetInput) (*mcp.CallToolResult, TranscriptOutput, error) {
	rec, err := h.svc.HistoryGet(ctx, input.ID)
	if err != nil {
		return nil, TranscriptOutput{}, err
	}
	res := rec.Result()
	return nil, TranscriptOutput{
		VideoID:       res.VideoID,
		Provenance:    res.Provenance,
		Model:         res.Model,
		SegmentsCount: len(res.Segments),
		Filename:      transcript.ExportFilename(res),
		HistoryID:     rec.ID,
		Text:          transcript.Export(res, transcript.ExportOptions{Timestamps: input.Timestamps}),
	}, nil
}
