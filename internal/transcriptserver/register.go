// Package transcriptserver exposes the transcript service as MCP tools.
package transcriptserver

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_transcript/internal/toolutil"
)

// ToolCount is the number of tools RegisterTools adds.
const ToolCount = 5

// RegisterTools registers all transcript tools on the given MCP server:
// youtube_transcript, transcript_models, transcript_explain, transcript_history,
// transcript_history_get.
func RegisterTools(server *mcp.Server, svc *toolutil.Service) {
	h := &handlers{svc: svc}
	registerTranscript(server, h)
	registerModels(server, h)
	registerExplain(server, h)
	registerHistory(server, h)
}

type handlers struct {
	svc *toolutil.Service
}
