// Package sources fetches published captions from video hosts.
//
// The YouTube implementation is split across three files by responsibility:
//
//	youtube_innertube.go  Innertube API types, constants, and low-level HTTP primitives
//	youtube_captions.go   caption strategies, track selection, and result classification
//	youtube_timedtext.go  timedtext XML parsing into timed segments
package sources

import "github.com/anatolykoptev/go_transcript/internal/engine/transcript"

var _ transcript.CaptionFetcher = (*YouTubeCaptions)(nil)
