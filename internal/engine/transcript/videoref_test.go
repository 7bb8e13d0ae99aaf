package transcript

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVideoRef(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "https://www.youtube.com/watch?v=dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{input: "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42s&list=PL123", want: "dQw4w9WgXcQ"},
		{input: "https://www.youtube.com/watch?feature=share&v=dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{input: "https://youtu.be/dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{input: "https://youtu.be/dQw4w9WgXcQ?si=abc", want: "dQw4w9WgXcQ"},
		{input: "youtu.be/dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{input: "https://www.youtube.com/embed/dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{input: "https://www.youtube-nocookie.com/embed/dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{input: "https://www.youtube.com/shorts/dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{input: "https://www.youtube.com/v/dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{input: "https://m.youtube.com/watch?v=dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{input: "https://music.youtube.com/watch?v=dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{input: "https://www.youtube.com/live/dQw4w9WgXcQ?feature=shared", want: "dQw4w9WgXcQ"},
		{input: "  dQw4w9WgXcQ  ", want: "dQw4w9WgXcQ"},
		{input: "", wantErr: true},
		{input: "not a url", wantErr: true},
		{input: "https://vimeo.com/123456789", wantErr: true},
		{input: "https://www.youtube.com/watch?v=short", wantErr: true},
		{input: "https://www.youtube.com/channel/UCuAXFkgsw1L7xaCfnd5JJOw", wantErr: true},
		{input: "https://www.youtube.com/hashtag/programming", wantErr: true},
		{input: "https://www.youtube.com/programming", wantErr: true},
		{input: "https://www.youtube.com/c/programming/videos", wantErr: true},
		{input: "https://youtu.be/hashtag/programming", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseVideoRef(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidVideo)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.ID)
			assert.Equal(t, tt.input, got.Input)
		})
	}
}

func TestVideoRefWatchURL(t *testing.T) {
	ref, err := ParseVideoRef("https://youtu.be/dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", ref.WatchURL())
}
