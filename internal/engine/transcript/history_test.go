package transcript

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestHistory(t *testing.T) *SQLiteHistory {
	t.Helper()
	h, err := OpenSQLiteHistory(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func TestSQLiteHistory_SaveGet(t *testing.T) {
	h := openTestHistory(t)
	ctx := context.Background()

	res := &Result{
		VideoID:    "videoB",
		Provenance: ProvenanceSpeechRecognition,
		Model:      ModelSmall,
		Segments:   []Segment{{Text: "Test transcript", Start: 2 * time.Second, Duration: time.Second}},
		CreatedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	id, err := h.Save(ctx, res)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	rec, err := h.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, rec.ID)
	assert.Equal(t, "videoB", rec.VideoID)
	assert.Equal(t, ProvenanceSpeechRecognition, rec.Provenance)
	assert.Equal(t, ModelSmall, rec.Model)
	assert.Equal(t, res.Segments, rec.Segments)
	assert.True(t, rec.CreatedAt.Equal(res.CreatedAt))
	assert.Equal(t, "Test transcript", rec.Result().Text())
}

func TestSQLiteHistory_GetMissing(t *testing.T) {
	h := openTestHistory(t)
	_, err := h.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteHistory_ListNewestFirst(t *testing.T) {
	h := openTestHistory(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"aaaaaaaaaaa", "bbbbbbbbbbb", "ccccccccccc"} {
		_, err := h.Save(ctx, &Result{
			VideoID:    id,
			Provenance: ProvenanceCaptions,
			Segments:   []Segment{{Text: strings.Repeat("word ", 60)}},
			CreatedAt:  base.Add(time.Duration(i) * 500 * time.Millisecond),
		})
		require.NoError(t, err)
	}

	list, err := h.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "ccccccccccc", list[0].VideoID)
	assert.Equal(t, "bbbbbbbbbbb", list[1].VideoID)
	assert.LessOrEqual(t, len([]rune(list[0].Preview)), previewRunes+3)

	all, err := h.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestDefaultHistoryPath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	assert.Equal(t, filepath.Join(dir, ".go_transcript", "history.db"), DefaultHistoryPath())
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, defaultHistoryLimit, clampLimit(0))
	assert.Equal(t, 5, clampLimit(5))
	assert.Equal(t, maxHistoryLimit, clampLimit(10_000))
}
