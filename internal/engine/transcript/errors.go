package transcript

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrCaptionsUnavailable means the video definitively has no usable captions.
	// It triggers the speech recognition fallback and never escapes Orchestrator.Transcribe.
	ErrCaptionsUnavailable = errors.New("captions unavailable")

	// ErrInvalidVideo means the input does not identify a reachable video.
	ErrInvalidVideo = errors.New("invalid video reference")

	// ErrInvalidModel means the requested model size is not offered.
	ErrInvalidModel = errors.New("invalid model size")

	// ErrEmptyTranscript means speech recognition finished without any text.
	ErrEmptyTranscript = errors.New("empty transcript")

	// ErrBusy means no speech recognition slot freed up within the queue timeout.
	ErrBusy = errors.New("too many transcriptions in progress")
)

// Kind classifies a failed run.
type Kind string

const (
	KindInvalidVideo Kind = "invalid_video"
	KindInvalidModel Kind = "invalid_model"
	KindFetch        Kind = "fetch"
	KindExtract      Kind = "extract"
	KindTranscribe   Kind = "transcribe"
)

// Error is the classified error returned by Orchestrator.Transcribe.
type Error struct {
	Kind    Kind
	VideoID string
	Err     error
}

func (e *Error) Error() string {
	if e.VideoID == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %v", e.Kind, e.VideoID, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, videoID string, err error) *Error {
	return &Error{Kind: kind, VideoID: videoID, Err: err}
}

// KindOf classifies err. Unclassified errors are reported as KindFetch.
func KindOf(err error) Kind {
	var te *Error
	switch {
	case err == nil:
		return ""
	case errors.As(err, &te):
		return te.Kind
	case errors.Is(err, ErrInvalidVideo):
		return KindInvalidVideo
	case errors.Is(err, ErrInvalidModel):
		return KindInvalidModel
	}
	return KindFetch
}

// UserMessage returns a short explanation of err suitable for end users.
func UserMessage(err error) string {
	if errors.Is(err, context.Canceled) {
		return "The request was canceled."
	}
	if errors.Is(err, ErrBusy) {
		return "No captions were found and the server is busy with other transcriptions. Try again later."
	}
	switch KindOf(err) {
	case "":
		return ""
	case KindInvalidVideo:
		return "That does not look like a valid, available YouTube video."
	case KindInvalidModel:
		return "Unknown model size. Choose tiny, base, small or medium."
	case KindFetch:
		return "Could not reach YouTube to check for captions. Try again later."
	case KindExtract:
		return "No captions were found and the audio could not be downloaded."
	case KindTranscribe:
		return "No captions were found and speech recognition failed."
	}
	return err.Error()
}
