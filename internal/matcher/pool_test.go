package matcher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"djutils-srv/internal/models"
)

type fakeTitles struct {
	tracks    []models.TrackRecord
	fragments []string
}

func (f *fakeTitles) FindTracksByTitleFragment(_ context.Context, fragment string) ([]models.TrackRecord, error) {
	f.fragments = append(f.fragments, fragment)
	return f.tracks, nil
}

func TestTitleOverlap(t *testing.T) {
	assert.InDelta(t, 1.0, TitleOverlap("Blue Mile", "Blue Mile (Radio Edit)"), 1e-9)
	assert.InDelta(t, 1.0, TitleOverlap("blue mile (radio edit)", "BLUE MILE"), 1e-9)
	assert.InDelta(t, 0.0, TitleOverlap("", "Blue Mile"), 1e-9)
	assert.Less(t, TitleOverlap("Blue Mile", "Red Velvet"), 0.8)
}

func TestPoolSelectorFiltersByOverlap(t *testing.T) {
	titles := &fakeTitles{tracks: []models.TrackRecord{
		{URL: "a", Title: "Blue Mile (Radio Edit)"},
		{URL: "b", Title: "Mile High"},
		{URL: "self", Title: "Blue Mile"},
		{URL: "c", Title: "The Blue Mile"},
	}}
	p := NewPoolSelector(titles, 0.8)

	pool, err := p.Select(context.Background(), models.TrackRecord{URL: "self", Title: "Blue Mile"})
	require.NoError(t, err)

	var urls []string
	for _, tr := range pool {
		urls = append(urls, tr.URL)
	}
	assert.Equal(t, []string{"a", "c"}, urls)
	assert.Equal(t, []string{"blue"}, titles.fragments)
}

func TestPoolSelectorBlankTitle(t *testing.T) {
	titles := &fakeTitles{}
	pool, err := NewPoolSelector(titles, 0.8).Select(context.Background(), models.TrackRecord{Title: "  ()  "})
	require.NoError(t, err)
	assert.Empty(t, pool)
	assert.Empty(t, titles.fragments)
}

func TestLongestWord(t *testing.T) {
	assert.Equal(t, "blue", longestWord("Blue Mile"))
	assert.Equal(t, "anjunadeep", longestWord("Anjunadeep Sessions"))
	assert.Equal(t, "extended", longestWord("Sabali (Extended)"))
	assert.Equal(t, "", longestWord("!!"))
}
