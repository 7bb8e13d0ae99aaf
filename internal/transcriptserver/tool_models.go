package transcriptserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func registerModels(server *mcp.Server, h *handlers) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "transcript_models",
		Description: "List the Whisper model sizes youtube_transcript accepts, with speed, accuracy, download size and whether the model is already installed.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, h.models)
}

func (h *handlers) models(_ context.Context, _ *mcp.CallToolRequest, _ ModelsInput) (*mcp.CallToolResult, ModelsOutput, error) {
	return nil, ModelsOutput{Models: h.svc.ModelTable()}, nil
}
