package transcriptserver

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_transcript/internal/engine/transcript"
)

func registerExplain(server *mcp.Server, h *handlers) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "transcript_explain",
		Description: "Explain the key concepts of a YouTube video transcript with an LLM. Pass a video url (the transcript is fetched first) or the transcript text itself. Needs at least 50 characters of transcript.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, h.explain)
}

func (h *handlers) explain(ctx context.Context, _ *mcp.CallToolRequest, input ExplainInput) (*mcp.CallToolResult, *transcript.Explanation, error) {
	if input.URL == "" && input.Text == "" {
		return nil, nil, errors.New("url or text is required")
	}
	exp, err := h.svc.Explain(ctx, input.URL, input.Text, input.Model)
	if err != nil {
		var te *transcript.Error
		if errors.As(err, &te) {
			return nil, nil, toolError(err)
		}
		return nil, nil, err
	}
	return nil, exp, nil
}
