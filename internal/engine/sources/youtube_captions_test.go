package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/anatolykoptev/go_transcript/internal/engine/transcript"
)

const classicXML = `<?xml version="1.0" encoding="utf-8" ?><transcript>` +
	`<text start="0.5" dur="2.25">Hello world</text>` +
	`<text start="3" dur="1">it&amp;#39;s   fine</text>` +
	`<text start="4" dur="1">   </text>` +
	`</transcript>`

const format3XML = `<?xml version="1.0" encoding="utf-8" ?><timedtext format="3"><body>` +
	`<p t="1200" d="800">plain cue</p>` +
	`<p t="2500" d="1000"><s>word</s><s t="300"> by</s><s t="600"> word</s></p>` +
	`</body></timedtext>`

// fakeYouTube serves the subset of youtube.com the caption strategies use.
type fakeYouTube struct {
	srv    *httptest.Server
	watch  func(base string) (int, string)
	next   func() (int, string)
	get    func() (int, string)
	player func(base string) (int, string)
	timed  string
	hits   map[string]*atomic.Int32
}

func newFakeYouTube(t *testing.T) *fakeYouTube {
	t.Helper()
	f := &fakeYouTube{
		timed: classicXML,
		hits:  map[string]*atomic.Int32{},
	}
	for _, p := range []string{"/watch", ytNextPath, ytGetTranscriptPath, ytPlayerPath, "/api/timedtext"} {
		f.hits[p] = &atomic.Int32{}
	}
	notFound := func() (int, string) { return http.StatusNotFound, "" }
	f.watch = func(string) (int, string) { return notFound() }
	f.next, f.get = notFound, notFound
	f.player = func(string) (int, string) { return notFound() }

	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, ok := f.hits[r.URL.Path]; ok {
			c.Add(1)
		}
		base := f.srv.URL
		var status int
		var body string
		switch r.URL.Path {
		case "/watch":
			status, body = f.watch(base)
		case ytNextPath:
			status, body = f.next()
		case ytGetTranscriptPath:
			status, body = f.get()
		case ytPlayerPath:
			status, body = f.player(base)
		case "/api/timedtext":
			status, body = http.StatusOK, f.timed
		default:
			status = http.StatusNotFound
		}
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(f.srv.Close)

	engine.Init(engine.Config{
		YouTubeBaseURL:   f.srv.URL,
		HTTPClient:       f.srv.Client(),
		CaptionLanguages: []string{"en"},
	})
	return f
}

func watchPage(player string) string {
	return `<!DOCTYPE html><html><head><title>video</title></head><body>` +
		`<script>var ytcfg = {"a":1};</script>` +
		`<script>var ytInitialPlayerResponse = ` + player + `;var meta = {};</script>` +
		`</body></html>`
}

func playerWithTracks(tracks ...string) string {
	return `{"playabilityStatus":{"status":"OK"},"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[` +
		strings.Join(tracks, ",") + `]}}}`
}

func track(base, lang, kind, extra string) string {
	return fmt.Sprintf(`{"baseUrl":"%s/api/timedtext?v=x&lang=%s%s","languageCode":"%s","kind":"%s"}`, base, lang, extra, lang, kind)
}

var videoRef = transcript.VideoRef{Input: "dQw4w9WgXcQ", ID: "dQw4w9WgXcQ"}

func TestFetchCaptions_WatchPage(t *testing.T) {
	f := newFakeYouTube(t)
	f.watch = func(base string) (int, string) {
		return http.StatusOK, watchPage(playerWithTracks(track(base, "en", "", "")))
	}

	segs, err := (&YouTubeCaptions{}).FetchCaptions(context.Background(), videoRef)
	if err != nil {
		t.Fatalf("FetchCaptions error: %v", err)
	}
	want := []transcript.Segment{
		{Text: "Hello world", Start: 500 * time.Millisecond, Duration: 2250 * time.Millisecond},
		{Text: "it's fine", Start: 3 * time.Second, Duration: time.Second},
	}
	if len(segs) != len(want) {
		t.Fatalf("got %d segments, want %d: %+v", len(segs), len(want), segs)
	}
	for i := range want {
		if segs[i] != want[i] {
			t.Errorf("segment %d = %+v, want %+v", i, segs[i], want[i])
		}
	}
	if n := f.hits[ytPlayerPath].Load(); n != 0 {
		t.Errorf("player endpoint hit %d times, want 0", n)
	}
}

func TestFetchCaptions_NoCaptionsIsDefinitive(t *testing.T) {
	f := newFakeYouTube(t)
	f.watch = func(string) (int, string) {
		return http.StatusOK, watchPage(`{"playabilityStatus":{"status":"OK"},"videoDetails":{"title":"x"}}`)
	}

	_, err := (&YouTubeCaptions{}).FetchCaptions(context.Background(), videoRef)
	if !errors.Is(err, transcript.ErrCaptionsUnavailable) {
		t.Fatalf("err = %v, want ErrCaptionsUnavailable", err)
	}
	if f.hits[ytNextPath].Load() != 0 || f.hits[ytPlayerPath].Load() != 0 {
		t.Error("definitive answer must stop the strategy chain")
	}
}

func TestFetchCaptions_UnavailableVideo(t *testing.T) {
	f := newFakeYouTube(t)
	f.watch = func(string) (int, string) {
		return http.StatusOK, watchPage(`{"playabilityStatus":{"status":"ERROR","reason":"Video unavailable"}}`)
	}

	_, err := (&YouTubeCaptions{}).FetchCaptions(context.Background(), videoRef)
	if !errors.Is(err, transcript.ErrInvalidVideo) {
		t.Fatalf("err = %v, want ErrInvalidVideo", err)
	}
}

func TestFetchCaptions_EngagementPanelFallback(t *testing.T) {
	f := newFakeYouTube(t)
	f.watch = func(string) (int, string) { return http.StatusOK, "<html><body>consent wall</body></html>" }
	f.next = func() (int, string) {
		return http.StatusOK, `{"engagementPanels":[{"x":{"getTranscriptEndpoint":{"params":"Cg%3D%3D"}}}]}`
	}
	f.get = func() (int, string) {
		return http.StatusOK, `{"actions":[{"updateEngagementPanelAction":{"content":{"transcriptRenderer":{"content":{"transcriptSearchPanelRenderer":{"body":{"transcriptSegmentListRenderer":{"initialSegments":[` +
			`{"transcriptSegmentRenderer":{"startMs":"0","endMs":"1500","snippet":{"runs":[{"text":"from "},{"text":"panel"}]}}},` +
			`{"transcriptSectionHeaderRenderer":{}}` +
			`]}}}}}}}}]}`
	}

	segs, err := (&YouTubeCaptions{}).FetchCaptions(context.Background(), videoRef)
	if err != nil {
		t.Fatalf("FetchCaptions error: %v", err)
	}
	if len(segs) != 1 || segs[0].Text != "from panel" || segs[0].Duration != 1500*time.Millisecond {
		t.Errorf("segments = %+v", segs)
	}
}

func TestFetchCaptions_AndroidPlayerFallback(t *testing.T) {
	f := newFakeYouTube(t)
	f.timed = format3XML
	f.watch = func(base string) (int, string) {
		// Only PoToken tracks on the watch page: not usable server-side.
		return http.StatusOK, watchPage(playerWithTracks(track(base, "en", "", "&exp=xpe")))
	}
	f.player = func(base string) (int, string) {
		return http.StatusOK, playerWithTracks(track(base, "en", "asr", "&fmt=srv3"))
	}

	segs, err := (&YouTubeCaptions{}).FetchCaptions(context.Background(), videoRef)
	if err != nil {
		t.Fatalf("FetchCaptions error: %v", err)
	}
	if len(segs) != 2 {
		t.Fatalf("got %d segments: %+v", len(segs), segs)
	}
	if segs[0].Text != "plain cue" || segs[0].Start != 1200*time.Millisecond {
		t.Errorf("segment 0 = %+v", segs[0])
	}
	if segs[1].Text != "word by word" {
		t.Errorf("segment 1 = %+v", segs[1])
	}
}

func TestFetchCaptions_AllStrategiesFail(t *testing.T) {
	newFakeYouTube(t)

	_, err := (&YouTubeCaptions{}).FetchCaptions(context.Background(), videoRef)
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, transcript.ErrCaptionsUnavailable) || errors.Is(err, transcript.ErrInvalidVideo) {
		t.Fatalf("transport failures must not be classified as definitive: %v", err)
	}
	for _, name := range []string{"watch_page", "engagement_panel", "android_player"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error %q does not mention %s", err, name)
		}
	}
}

func TestPickBestTrack(t *testing.T) {
	tracks := []captionTrack{
		{BaseURL: "u1&exp=xpe", LanguageCode: "en"},
		{BaseURL: "u2", LanguageCode: "de"},
		{BaseURL: "u3", LanguageCode: "en", Kind: "asr"},
		{BaseURL: "u4", LanguageCode: "en-GB"},
		{BaseURL: "u5", LanguageCode: "fr"},
	}
	tests := []struct {
		name  string
		langs []string
		want  string
	}{
		{"manual preferred over asr", []string{"fr"}, "u5"},
		{"asr in preferred language", []string{"en"}, "u3"},
		{"first preference wins", []string{"de", "en"}, "u2"},
		{"english fallback", []string{"ja"}, "u3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := pickBestTrack(tracks, tt.langs)
			if !ok || got.BaseURL != tt.want {
				t.Errorf("pickBestTrack(%v) = %q, %v; want %q", tt.langs, got.BaseURL, ok, tt.want)
			}
		})
	}

	if _, ok := pickBestTrack([]captionTrack{{BaseURL: "x&exp=xpe"}}, []string{"en"}); ok {
		t.Error("PoToken-only tracks must not be usable")
	}
}

func TestClassifyPlayer(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		wantErr error
		tracks  int
	}{
		{"ok with tracks", `{"playabilityStatus":{"status":"OK"},"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[{"baseUrl":"u"}]}}}`, nil, 1},
		{"ok without captions", `{"playabilityStatus":{"status":"OK"}}`, transcript.ErrCaptionsUnavailable, 0},
		{"ok with empty track list", `{"playabilityStatus":{"status":"OK"},"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[]}}}`, transcript.ErrCaptionsUnavailable, 0},
		{"error status", `{"playabilityStatus":{"status":"ERROR","reason":"Video unavailable"}}`, transcript.ErrInvalidVideo, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p innertubePlayerResp
			if err := json.Unmarshal([]byte(tt.json), &p); err != nil {
				t.Fatal(err)
			}
			tracks, err := classifyPlayer(&p)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil || len(tracks) != tt.tracks {
				t.Fatalf("tracks = %d, err = %v", len(tracks), err)
			}
		})
	}

	t.Run("login required is not definitive", func(t *testing.T) {
		var p innertubePlayerResp
		if err := json.Unmarshal([]byte(`{"playabilityStatus":{"status":"LOGIN_REQUIRED","reason":"Sign in to confirm you're not a bot"}}`), &p); err != nil {
			t.Fatal(err)
		}
		_, err := classifyPlayer(&p)
		if err == nil || errors.Is(err, transcript.ErrCaptionsUnavailable) || errors.Is(err, transcript.ErrInvalidVideo) {
			t.Fatalf("err = %v, want unclassified error", err)
		}
	})
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`{"a":1};var x = 2;`, `{"a":1}`},
		{`{"a":"}\"{"};rest`, `{"a":"}\"{"}`},
		{`{"a":"back\\"};rest`, `{"a":"back\\"}`},
		{`{"a":{"b":{}}} trailing`, `{"a":{"b":{}}}`},
		{`not json`, ``},
		{`{"unterminated":`, ``},
	}
	for _, tt := range tests {
		if got := string(extractJSON([]byte(tt.in))); got != tt.want {
			t.Errorf("extractJSON(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExtractTranscriptToken(t *testing.T) {
	tok, err := extractTranscriptToken([]byte(`{"getTranscriptEndpoint":{"params":"CgtkUXc%3D"}}`))
	if err != nil || tok != "CgtkUXc=" {
		t.Errorf("token = %q, err = %v", tok, err)
	}
	if _, err := extractTranscriptToken([]byte(`{}`)); err == nil {
		t.Error("expected error when token is missing")
	}
}
