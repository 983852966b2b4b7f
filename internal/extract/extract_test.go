package extract

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"djutils-srv/internal/models"
)

func TestNormalizeBeatportShape(t *testing.T) {
	raw := map[string]any{
		"title": map[string]any{
			"title":   "  Blue Mile ",
			"mixData": "Original Mix\n",
		},
		"length":   "6:12",
		"released": "2023-09-29",
		"bpm":      "124",
		"key":      " A min ",
		"genre":    "Melodic House & Techno",
		"labels":   "Anjunadeep",
		"artist": []any{
			map[string]any{"name": " DJ X ", "url": "https://www.beatport.com/artist/dj-x/1"},
			map[string]any{"name": "Someone Else", "url": "https://www.beatport.com/artist/someone-else/2"},
		},
		"unexpected": "dropped",
	}

	track, err := Normalize(raw)
	require.NoError(t, err)

	assert.Equal(t, "Blue Mile", track.Title)
	assert.Equal(t, "Original Mix", track.Version)
	assert.Equal(t, "A min", track.Key)
	assert.Equal(t, "Anjunadeep", track.Label)
	assert.Equal(t, "Melodic House & Techno", track.Genre)
	assert.Equal(t, "6:12", track.Length)
	assert.Equal(t, "2023-09-29", track.Released)
	require.NotNil(t, track.BPM)
	assert.InDelta(t, 124.0, *track.BPM, 0)
	require.Len(t, track.Artists, 2)
	assert.Equal(t, "DJ X", track.Artists[0].Name)
	assert.Equal(t, "https://www.beatport.com/artist/dj-x/1", track.Artists[0].URL)
	assert.Equal(t, "Someone Else", track.Artists[1].Name)
}

func TestNormalizeTraxsourceShape(t *testing.T) {
	raw := map[string]any{
		"title":   "Sabali",
		"mixData": "Extended Mix",
		"Label:":  "Soulful Sessions",
		"Genre:":  "Afro House",
		"BPM:":    "122",
		"Key:":    "Dmaj",
		"Length:": "7:01",
	}

	track, err := Normalize(raw)
	require.NoError(t, err)

	assert.Equal(t, "Sabali", track.Title)
	assert.Equal(t, "Extended Mix", track.Version)
	assert.Equal(t, "Soulful Sessions", track.Label)
	assert.Equal(t, "Afro House", track.Genre)
	assert.Equal(t, "Dmaj", track.Key)
	assert.Equal(t, "7:01", track.Length)
	require.NotNil(t, track.BPM)
	assert.InDelta(t, 122.0, *track.BPM, 0)
}

func TestNormalizeMissingArtistsIsEmptyNotNil(t *testing.T) {
	track, err := Normalize(map[string]any{"title": "x"})
	require.NoError(t, err)
	assert.NotNil(t, track.Artists)
	assert.Empty(t, track.Artists)
}

func TestParseBPM(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		want    *float64
		wantErr bool
	}{
		{name: "float", input: 120.0, want: models.Float(120)},
		{name: "int", input: 128, want: models.Float(128)},
		{name: "numeric string", input: " 124 ", want: models.Float(124)},
		{name: "decimal string", input: "120.5", want: models.Float(120.5)},
		{name: "json number", input: json.Number("126"), want: models.Float(126)},
		{name: "blank string", input: "", want: nil},
		{name: "nil", input: nil, want: nil},
		{name: "word", input: "fast", wantErr: true},
		{name: "negative", input: -1, wantErr: true},
		{name: "bool", input: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBPM(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, models.ErrInvalidField)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeInvalidBPM(t *testing.T) {
	_, err := Normalize(map[string]any{"title": "x", "bpm": "n/a"})
	require.ErrorIs(t, err, models.ErrInvalidField)

	var fe *models.FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "bpm", fe.Field)
}

func TestParseArtists(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  []string
	}{
		{name: "names", input: []any{"A", " B "}, want: []string{"A", "B"}},
		{name: "string slice", input: []string{"A", "", "C"}, want: []string{"A", "C"}},
		{name: "single", input: "Solo", want: []string{"Solo"}},
		{name: "pairs", input: []any{map[string]any{"name": "A", "url": "u"}}, want: []string{"A"}},
		{name: "nil", input: nil, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseArtists(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ArtistNames(got))
		})
	}

	_, err := ParseArtists(42)
	require.ErrorIs(t, err, models.ErrInvalidField)
}

func TestClassifyPlatform(t *testing.T) {
	tests := []struct {
		url  string
		want models.PlatformName
		ok   bool
	}{
		{"https://www.beatport.com/track/x/1", models.PlatformBeatport, true},
		{"https://www.traxsource.com/track/12172154/sabali", models.PlatformTraxsource, true},
		{"https://soundcloud.com/someone/track", models.PlatformSoundcloud, true},
		{"https://artist.bandcamp.com/track/x", models.PlatformBandcamp, true},
		{"HTTPS://WWW.BEATPORT.COM/track/x/1", models.PlatformBeatport, true},
		// priority order decides when several names appear
		{"https://soundcloud.com/beatport/x", models.PlatformBeatport, true},
		{"https://example.com/x", models.PlatformUnrecognized, false},
		{"", models.PlatformUnrecognized, false},
	}

	for _, tt := range tests {
		got, ok := ClassifyPlatform(tt.url)
		assert.Equal(t, tt.want, got, tt.url)
		assert.Equal(t, tt.ok, ok, tt.url)
	}
}

func TestResolvePlatform(t *testing.T) {
	p, err := ResolvePlatform("https://www.beatport.com/track/x/1")
	require.NoError(t, err)
	assert.Equal(t, models.PlatformBeatport, p)

	_, err = ResolvePlatform("https://example.com/x")
	require.ErrorIs(t, err, models.ErrUnrecognizedPlatform)
}

func TestComments(t *testing.T) {
	assert.Equal(t, "warm up tool", Comments("warm up tool"))
	assert.Equal(t, "warm up tool", Comments("<b>warm up</b> tool"))
	assert.Equal(t, "drums & bass", Comments("drums &amp; bass"))
}

func TestParseArtistsFromScraperMaps(t *testing.T) {
	got, err := ParseArtists([]map[string]any{
		{"name": " Lane 8 ", "url": "https://www.beatport.com/artist/lane-8/1"},
		{"name": ""},
	})
	require.NoError(t, err)
	assert.Equal(t, []models.ArtistRef{{Name: "Lane 8", URL: "https://www.beatport.com/artist/lane-8/1"}}, got)
}

func TestParseArtistsIDs(t *testing.T) {
	got, err := ParseArtists([]any{json.Number("3"), float64(1), map[string]any{"id": json.Number("7"), "name": "Yotto"}})
	require.NoError(t, err)
	assert.Equal(t, []models.ArtistRef{{ID: 3}, {ID: 1}, {ID: 7, Name: "Yotto"}}, got)

	_, err = ParseArtists([]any{json.Number("-2")})
	assert.ErrorIs(t, err, models.ErrInvalidField)
	_, err = ParseArtists([]any{1.5})
	assert.ErrorIs(t, err, models.ErrInvalidField)
}

func TestNormalizeAliasCollisionsAreDeterministic(t *testing.T) {
	raw := map[string]any{
		"title":   "Blue Mile",
		"name":    "Lane 8",
		"track":   "Other",
		"label":   "A",
		"labels":  "B",
		"artists": []any{"Lane 8"},
		"artist":  "Yotto",
		"link":    "https://www.beatport.com/track/link/2",
		"url":     "https://www.beatport.com/track/url/1",
		"mixData": "Extended Mix",
		"mix":     "Club Mix",
		"Version": "Original Mix",
		"version": "Radio Edit",
	}

	for i := 0; i < 100; i++ {
		track, err := Normalize(raw)
		require.NoError(t, err)
		assert.Equal(t, "Blue Mile", track.Title)
		assert.Equal(t, "A", track.Label)
		assert.Equal(t, []models.ArtistRef{{Name: "Lane 8"}}, track.Artists)
		assert.Equal(t, "https://www.beatport.com/track/url/1", track.URL)
		assert.Equal(t, "Radio Edit", track.Version)
	}
}

func TestNormalizeAliasOrderWithoutCanonicalKey(t *testing.T) {
	raw := map[string]any{
		"track":    "Sabali",
		"name":     "Not this",
		"mix":      "Extended Mix",
		"mixData":  "Not this",
		"Labels":   "Soulful Sessions",
		"duration": "7:01",
		"title":    nil,
	}

	for i := 0; i < 100; i++ {
		track, err := Normalize(raw)
		require.NoError(t, err)
		assert.Equal(t, "Sabali", track.Title)
		assert.Equal(t, "Extended Mix", track.Version)
		assert.Equal(t, "Soulful Sessions", track.Label)
		assert.Equal(t, "7:01", track.Length)
	}
}

func TestFold(t *testing.T) {
	assert.Equal(t, "strasse", Fold(" Straße "))
	assert.Equal(t, Fold("STRASSE"), Fold("straße"))
	assert.Equal(t, "été", Fold("ÉTÉ"))
	assert.Equal(t, "blue mile", Fold("Blue MILE"))
}
