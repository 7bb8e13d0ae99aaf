package sources

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/anatolykoptev/go_transcript/internal/engine/transcript"
)

// Timedtext XML comes in two shapes:
//
//	classic:  <transcript><text start="1.2" dur="3.4">line</text></transcript>
//	format 3: <timedtext format="3"><body><p t="1200" d="3400">line</p></body></timedtext>
type ytTimedText struct {
	Lines []ytLine `xml:"text"`
	Paras []ytPara `xml:"body>p"`
}

type ytLine struct {
	Start string `xml:"start,attr"`
	Dur   string `xml:"dur,attr"`
	Text  string `xml:",chardata"`
}

type ytPara struct {
	T     int64  `xml:"t,attr"`
	D     int64  `xml:"d,attr"`
	Inner string `xml:",innerxml"` // may hold <s> word spans
}

const maxTimedTextBytes = 2 * 1024 * 1024

// parseTimedText turns timedtext XML into segments, dropping blank cues.
func parseTimedText(body []byte) ([]transcript.Segment, error) {
	var tt ytTimedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return nil, fmt.Errorf("parse timedtext XML: %w", err)
	}

	segs := make([]transcript.Segment, 0, len(tt.Lines)+len(tt.Paras))
	for _, l := range tt.Lines {
		text := engine.CleanCaption(l.Text)
		if text == "" {
			continue
		}
		segs = append(segs, transcript.Segment{
			Text:     text,
			Start:    parseSeconds(l.Start),
			Duration: parseSeconds(l.Dur),
		})
	}
	for _, p := range tt.Paras {
		text := engine.CleanCaption(paraText(p.Inner))
		if text == "" {
			continue
		}
		segs = append(segs, transcript.Segment{
			Text:     text,
			Start:    time.Duration(p.T) * time.Millisecond,
			Duration: time.Duration(p.D) * time.Millisecond,
		})
	}
	return segs, nil
}

// paraText returns the XML-decoded character data of a format 3 cue,
// dropping the <s> span markup.
func paraText(inner string) string {
	dec := xml.NewDecoder(strings.NewReader(inner))
	var sb strings.Builder
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return sb.String()
		}
		if err != nil {
			return inner
		}
		if cd, ok := tok.(xml.CharData); ok {
			sb.Write(cd)
		}
	}
}

func parseSeconds(s string) time.Duration {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0
	}
	return time.Duration(f * float64(time.Second))
}

func parseMillis(s string) time.Duration {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return time.Duration(n) * time.Millisecond
}

// fetchTimedText fetches and parses a caption track URL.
func fetchTimedText(ctx context.Context, baseURL string) ([]transcript.Segment, error) {
	resp, err := engine.RetryHTTP(ctx, engine.DefaultRetryConfig, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", engine.UserAgentBot)
		return engine.Cfg.HTTPClient.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch timedtext: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch timedtext: HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTimedTextBytes))
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		// YouTube answers 200 with an empty body when the URL needs a PoToken.
		return nil, errEmptyTimedText
	}
	return parseTimedText(body)
}
