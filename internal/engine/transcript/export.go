package transcript

import (
	"fmt"
	"strings"
	"time"
)

// ExportOptions controls plain text rendering.
type ExportOptions struct {
	Timestamps bool
}

// Export renders r as UTF-8 plain text: one segment per line, LF endings,
// trailing newline.
func Export(r *Result, opts ExportOptions) string {
	var sb strings.Builder
	for _, s := range r.Segments {
		if opts.Timestamps {
			sb.WriteString("[")
			sb.WriteString(FormatTimestamp(s.Start))
			sb.WriteString("] ")
		}
		sb.WriteString(strings.ReplaceAll(s.Text, "\r\n", "\n"))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// ExportFilename names the download file for r.
func ExportFilename(r *Result) string {
	if r.Provenance == ProvenanceSpeechRecognition {
		return fmt.Sprintf("ai_transcript_%s.txt", r.VideoID)
	}
	return fmt.Sprintf("transcript_%s.txt", r.VideoID)
}

// FormatTimestamp renders d as mm:ss, or h:mm:ss from one hour on.
func FormatTimestamp(d time.Duration) string {
	total := int(d / time.Second)
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
