package transcript

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// VideoRef identifies one YouTube video. Build it with ParseVideoRef.
type VideoRef struct {
	Input string `json:"input"`
	ID    string `json:"id"`
}

// WatchURL returns the canonical watch page URL.
func (v VideoRef) WatchURL() string {
	return "https://www.youtube.com/watch?v=" + v.ID
}

func (v VideoRef) String() string { return v.ID }

var (
	videoIDRe = regexp.MustCompile(`^[0-9A-Za-z_-]{11}$`)

	// Path forms that carry a video ID. Other paths (channels, hashtags) never do.
	videoPathRe = regexp.MustCompile(`^/(?:shorts|live|embed|v|e)/([0-9A-Za-z_-]{11})/?$`)
	shortPathRe = regexp.MustCompile(`^/([0-9A-Za-z_-]{11})/?$`)
)

var youtubeHosts = map[string]bool{
	"youtube.com":              true,
	"www.youtube.com":          true,
	"m.youtube.com":            true,
	"music.youtube.com":        true,
	"youtu.be":                 true,
	"www.youtube-nocookie.com": true,
}

// ParseVideoRef extracts the 11-character video ID from a URL or a bare ID.
func ParseVideoRef(input string) (VideoRef, error) {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return VideoRef{}, fmt.Errorf("%w: empty input", ErrInvalidVideo)
	}
	if videoIDRe.MatchString(raw) {
		return VideoRef{Input: input, ID: raw}, nil
	}

	withScheme := raw
	if !strings.Contains(withScheme, "://") {
		withScheme = "https://" + withScheme
	}
	u, err := url.Parse(withScheme)
	if err != nil {
		return VideoRef{}, fmt.Errorf("%w: %q", ErrInvalidVideo, input)
	}
	if !youtubeHosts[strings.ToLower(u.Hostname())] {
		return VideoRef{}, fmt.Errorf("%w: not a youtube url %q", ErrInvalidVideo, input)
	}

	if id := u.Query().Get("v"); videoIDRe.MatchString(id) {
		return VideoRef{Input: input, ID: id}, nil
	}
	re := videoPathRe
	if strings.EqualFold(u.Hostname(), "youtu.be") {
		re = shortPathRe
	}
	if m := re.FindStringSubmatch(u.Path); len(m) == 2 {
		return VideoRef{Input: input, ID: m[1]}, nil
	}
	return VideoRef{}, fmt.Errorf("%w: no video id in %q", ErrInvalidVideo, input)
}
