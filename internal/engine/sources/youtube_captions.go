package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/anatolykoptev/go_transcript/internal/engine/transcript"
)

// YouTube caption fetching. Strategies, in order:
//  1. watch page ytInitialPlayerResponse → caption track XML (works from most IPs)
//  2. WEB /next → engagement panel → /get_transcript (works where /player needs login)
//  3. ANDROID Innertube /player → caption track XML
//
// A strategy that proves the video has no captions, or does not exist, ends the chain.

var (
	errPoTokenOnly    = errors.New("all caption tracks require PoToken")
	errEmptyTimedText = errors.New("empty timedtext response")
)

// YouTubeCaptions implements transcript.CaptionFetcher against youtube.com.
type YouTubeCaptions struct {
	// Languages lists preferred caption languages, best first.
	// Empty uses engine.Cfg.CaptionLanguages.
	Languages []string
}

type captionStrategy struct {
	name string
	run  func(ctx context.Context, videoID string, langs []string) ([]transcript.Segment, error)
}

var captionStrategies = []captionStrategy{
	{"watch_page", fetchCaptionsViaPageScrape},
	{"engagement_panel", fetchCaptionsViaEngagementPanel},
	{"android_player", fetchCaptionsViaPlayer},
}

// FetchCaptions returns the caption segments of ref.
// Errors match transcript.ErrCaptionsUnavailable or transcript.ErrInvalidVideo when
// YouTube gave a definitive answer; anything else is a fetch failure.
func (y *YouTubeCaptions) FetchCaptions(ctx context.Context, ref transcript.VideoRef) ([]transcript.Segment, error) {
	engine.IncrCaptionRequests()
	langs := y.Languages
	if len(langs) == 0 {
		langs = engine.Cfg.CaptionLanguages
	}

	var errs []error
	for _, s := range captionStrategies {
		segs, err := s.run(ctx, ref.ID, langs)
		if err == nil && len(segs) == 0 {
			err = fmt.Errorf("%w: caption track has no text", transcript.ErrCaptionsUnavailable)
		}
		switch {
		case err == nil:
			slog.Info("youtube: captions fetched",
				slog.String("id", ref.ID), slog.String("via", s.name), slog.Int("segments", len(segs)))
			return segs, nil
		case errors.Is(err, transcript.ErrCaptionsUnavailable):
			engine.IncrCaptionsUnavailable()
			slog.Info("youtube: no captions", slog.String("id", ref.ID), slog.String("via", s.name))
			return nil, err
		case errors.Is(err, transcript.ErrInvalidVideo):
			return nil, err
		case ctx.Err() != nil:
			engine.IncrCaptionErrors()
			return nil, ctx.Err()
		}
		slog.Warn("youtube: caption strategy failed",
			slog.String("id", ref.ID), slog.String("via", s.name), slog.Any("err", err))
		errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
	}
	engine.IncrCaptionErrors()
	return nil, fmt.Errorf("fetch captions: %w", errors.Join(errs...))
}

// classifyPlayer turns a player response into the track list or a classified error.
func classifyPlayer(p *innertubePlayerResp) ([]captionTrack, error) {
	status, reason := "", ""
	if p.PlayabilityStatus != nil {
		status, reason = p.PlayabilityStatus.Status, p.PlayabilityStatus.Reason
	}
	switch status {
	case "ERROR":
		return nil, fmt.Errorf("%w: %s", transcript.ErrInvalidVideo, reasonOr(reason, "video unavailable"))
	case "OK":
	default:
		if p.Captions == nil {
			return nil, fmt.Errorf("playability %s: %s", reasonOr(status, "unknown"), reason)
		}
	}
	if p.Captions == nil {
		return nil, fmt.Errorf("%w: no captions in player response", transcript.ErrCaptionsUnavailable)
	}
	tracks := p.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks
	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w: no caption tracks", transcript.ErrCaptionsUnavailable)
	}
	return tracks, nil
}

func reasonOr(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// needsPoToken reports whether a caption track URL requires a PoToken (browser-only).
// Tracks with &exp=xpe cannot be fetched server-side.
func needsPoToken(baseURL string) bool {
	return strings.Contains(baseURL, "&exp=xpe")
}

// pickBestTrack selects the best usable caption track for the given language preferences.
// Skips tracks that require PoToken.
func pickBestTrack(tracks []captionTrack, langs []string) (captionTrack, bool) {
	usable := make([]captionTrack, 0, len(tracks))
	for _, t := range tracks {
		if t.BaseURL != "" && !needsPoToken(t.BaseURL) {
			usable = append(usable, t)
		}
	}
	if len(usable) == 0 {
		return captionTrack{}, false
	}
	// 1. Manual track in preferred language
	for _, lang := range langs {
		for _, t := range usable {
			if t.LanguageCode == lang && t.Kind != "asr" {
				return t, true
			}
		}
	}
	// 2. Auto-generated track in preferred language
	for _, lang := range langs {
		for _, t := range usable {
			if t.LanguageCode == lang {
				return t, true
			}
		}
	}
	// 3. Any English track
	for _, t := range usable {
		if strings.HasPrefix(t.LanguageCode, "en") {
			return t, true
		}
	}
	return usable[0], true
}

func fetchTrack(ctx context.Context, tracks []captionTrack, langs []string) ([]transcript.Segment, error) {
	track, ok := pickBestTrack(tracks, langs)
	if !ok {
		return nil, errPoTokenOnly
	}
	return fetchTimedText(ctx, track.BaseURL)
}

// ytInitialPlayerResponseMarker marks the start of the player response JSON in watch page HTML.
const ytInitialPlayerResponseMarker = "ytInitialPlayerResponse = "

// fetchCaptionsViaPageScrape reads ytInitialPlayerResponse from the watch page scripts.
func fetchCaptionsViaPageScrape(ctx context.Context, videoID string, langs []string) ([]transcript.Segment, error) {
	body, err := engine.GetPage(ctx, ytURL("/watch?v="+url.QueryEscape(videoID)+"&hl=en"), 6*1024*1024)
	if err != nil {
		return nil, fmt.Errorf("watch page: %w", err)
	}
	playerJSON, err := findPlayerResponse(body)
	if err != nil {
		return nil, err
	}
	var player innertubePlayerResp
	if err := json.Unmarshal(playerJSON, &player); err != nil {
		return nil, fmt.Errorf("decode ytInitialPlayerResponse: %w", err)
	}
	tracks, err := classifyPlayer(&player)
	if err != nil {
		return nil, err
	}
	return fetchTrack(ctx, tracks, langs)
}

// findPlayerResponse locates the ytInitialPlayerResponse object inside the page's script tags.
func findPlayerResponse(page []byte) ([]byte, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse watch page: %w", err)
	}
	var found []byte
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		idx := strings.Index(text, ytInitialPlayerResponseMarker)
		if idx < 0 {
			return true
		}
		found = extractJSON([]byte(text[idx+len(ytInitialPlayerResponseMarker):]))
		return found == nil
	})
	if found == nil {
		return nil, errors.New("ytInitialPlayerResponse not found in watch page")
	}
	return found, nil
}

// getTranscriptRE extracts the continuation token from a raw /next JSON response.
var getTranscriptRE = regexp.MustCompile(`"getTranscriptEndpoint":\{"params":"([^"]+)"`)

func extractTranscriptToken(data []byte) (string, error) {
	if m := getTranscriptRE.FindSubmatch(data); len(m) >= 2 {
		// The params value in the /next response is URL-encoded; /get_transcript wants it raw.
		decoded, err := url.QueryUnescape(string(m[1]))
		if err != nil {
			return string(m[1]), nil
		}
		return decoded, nil
	}
	return "", errors.New("getTranscriptEndpoint not found in engagement panels")
}

// parseTranscriptSegments extracts timed segments from a /get_transcript response.
func parseTranscriptSegments(resp ytGetTranscriptResp) []transcript.Segment {
	var segs []transcript.Segment
	for _, action := range resp.Actions {
		if action.UpdateEngagementPanelAction == nil {
			continue
		}
		list := action.UpdateEngagementPanelAction.Content.
			TranscriptRenderer.Content.
			TranscriptSearchPanelRenderer.Body.
			TranscriptSegmentListRenderer.InitialSegments
		for _, item := range list {
			seg := item.TranscriptSegmentRenderer
			if seg == nil {
				continue
			}
			var sb strings.Builder
			for _, run := range seg.Snippet.Runs {
				sb.WriteString(run.Text)
			}
			text := engine.CleanCaption(sb.String())
			if text == "" {
				continue
			}
			start, end := parseMillis(seg.StartMs), parseMillis(seg.EndMs)
			s := transcript.Segment{Text: text, Start: start}
			if end > start {
				s.Duration = end - start
			}
			segs = append(segs, s)
		}
	}
	return segs
}

// fetchCaptionsViaEngagementPanel fetches captions via:
//  1. POST /next → engagementPanels containing the transcript continuation token
//  2. POST /get_transcript with the token → JSON segments
func fetchCaptionsViaEngagementPanel(ctx context.Context, videoID string, _ []string) ([]transcript.Segment, error) {
	visitorData := generateVisitorData()

	nextData, err := postInnerTube(ctx, ytURL(ytNextPath), map[string]any{
		"videoId": videoID,
		"context": ytWebContext(visitorData),
	}, webHeaders(visitorData))
	if err != nil {
		return nil, fmt.Errorf("/next: %w", err)
	}

	token, err := extractTranscriptToken(nextData)
	if err != nil {
		return nil, fmt.Errorf("token: %w", err)
	}

	transcriptData, err := postInnerTube(ctx, ytURL(ytGetTranscriptPath), map[string]any{
		"params":  token,
		"context": ytWebContext(visitorData),
	}, webHeaders(visitorData))
	if err != nil {
		return nil, fmt.Errorf("/get_transcript: %w", err)
	}

	var resp ytGetTranscriptResp
	if err := json.Unmarshal(transcriptData, &resp); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}
	segs := parseTranscriptSegments(resp)
	if len(segs) == 0 {
		return nil, errors.New("empty transcript segments")
	}
	return segs, nil
}

// fetchCaptionsViaPlayer uses the ANDROID Innertube /player endpoint.
func fetchCaptionsViaPlayer(ctx context.Context, videoID string, langs []string) ([]transcript.Segment, error) {
	data, err := postInnerTube(ctx, ytURL(ytPlayerPath), innertubeReq{
		VideoID: videoID,
		Context: innertubeCtx{
			Client: innertubeClient{
				ClientName:        "ANDROID",
				ClientVersion:     ytAndroidVersion,
				AndroidSdkVersion: 30,
				Hl:                "en",
				Gl:                "US",
			},
		},
		RacyCheckOk:    true,
		ContentCheckOk: true,
	}, androidHeaders())
	if err != nil {
		return nil, fmt.Errorf("android innertube: %w", err)
	}

	var player innertubePlayerResp
	if err := json.Unmarshal(data, &player); err != nil {
		return nil, fmt.Errorf("decode player: %w", err)
	}
	tracks, err := classifyPlayer(&player)
	if err != nil {
		return nil, err
	}
	return fetchTrack(ctx, tracks, langs)
}
