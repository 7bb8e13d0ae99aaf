package sources

import (
	"testing"
	"time"
)

func TestParseTimedText(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantTexts []string
		wantStart []time.Duration
	}{
		{
			name:      "classic",
			body:      classicXML,
			wantTexts: []string{"Hello world", "it's fine"},
			wantStart: []time.Duration{500 * time.Millisecond, 3 * time.Second},
		},
		{
			name:      "format 3 with word spans",
			body:      format3XML,
			wantTexts: []string{"plain cue", "word by word"},
			wantStart: []time.Duration{1200 * time.Millisecond, 2500 * time.Millisecond},
		},
		{
			name:      "tags and entities",
			body:      `<transcript><text start="1" dur="1">&lt;i&gt;quiet&lt;/i&gt; &amp;amp; calm</text></transcript>`,
			wantTexts: []string{"quiet & calm"},
			wantStart: []time.Duration{time.Second},
		},
		{
			name:      "format 3 entities",
			body:      `<timedtext format="3"><body><p t="0" d="1000">&amp;amp; <s>fish</s><s> &amp;#39;n&amp;#39;</s> chips &lt;b&gt;hot&lt;/b&gt;</p></body></timedtext>`,
			wantTexts: []string{"& fish 'n' chips hot"},
			wantStart: []time.Duration{0},
		},
		{
			name:      "no cues",
			body:      `<transcript></transcript>`,
			wantTexts: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segs, err := parseTimedText([]byte(tt.body))
			if err != nil {
				t.Fatalf("parseTimedText error: %v", err)
			}
			if len(segs) != len(tt.wantTexts) {
				t.Fatalf("got %d segments, want %d: %+v", len(segs), len(tt.wantTexts), segs)
			}
			for i, s := range segs {
				if s.Text != tt.wantTexts[i] {
					t.Errorf("segment %d text = %q, want %q", i, s.Text, tt.wantTexts[i])
				}
				if s.Start != tt.wantStart[i] {
					t.Errorf("segment %d start = %v, want %v", i, s.Start, tt.wantStart[i])
				}
			}
		})
	}
}

func TestParseTimedText_Malformed(t *testing.T) {
	if _, err := parseTimedText([]byte("<transcript><text")); err == nil {
		t.Error("expected error for truncated XML")
	}
}

func TestParseSecondsAndMillis(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"1.5", 1500 * time.Millisecond},
		{"0", 0},
		{"", 0},
		{"-2", 0},
		{"abc", 0},
	}
	for _, tt := range tests {
		if got := parseSeconds(tt.in); got != tt.want {
			t.Errorf("parseSeconds(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if got := parseMillis("2500"); got != 2500*time.Millisecond {
		t.Errorf("parseMillis = %v", got)
	}
	if got := parseMillis("x"); got != 0 {
		t.Errorf("parseMillis(x) = %v", got)
	}
}
