package matcher

import (
	"context"
	"fmt"
	"strings"

	"djutils-srv/internal/models"
)

// componentCount is the number of equally weighted fields in the mean.
const componentCount = 7

// Entry is a stored track together with its resolved artists.
type Entry struct {
	Track   models.TrackRecord
	Artists []models.ArtistRecord
}

// ArtistLister resolves the artist IDs stored on a track.
type ArtistLister interface {
	FindArtistsByIDs(ctx context.Context, ids []int64) ([]models.ArtistRecord, error)
}

type Matcher struct {
	artists ArtistLister
}

func New(artists ArtistLister) *Matcher {
	return &Matcher{artists: artists}
}

// Match resolves every pooled track's artists and scores the pool against the
// candidate. See Score.
func (m *Matcher) Match(ctx context.Context, candidate models.TrackRecord, candidateArtists []models.ArtistRecord, pool []models.TrackRecord) ([]models.ScoredMatch, error) {
	entries := make([]Entry, 0, len(pool))
	for _, t := range pool {
		if isSelf(candidate, t) {
			continue
		}
		artists, err := m.artists.FindArtistsByIDs(ctx, t.ArtistIDs())
		if err != nil {
			return nil, fmt.Errorf("resolve artists for %s: %w", t.URL, err)
		}
		entries = append(entries, Entry{Track: t, Artists: artists})
	}
	return Score(candidate, candidateArtists, entries), nil
}

// Score returns one ScoredMatch per pool entry, in pool order. Entries sharing
// the candidate's URL are skipped. The aggregate is the unweighted mean of the
// seven component scores.
func Score(candidate models.TrackRecord, candidateArtists []models.ArtistRecord, pool []Entry) []models.ScoredMatch {
	matches := make([]models.ScoredMatch, 0, len(pool))
	cand := newFields(candidate, candidateArtists)

	for _, e := range pool {
		if isSelf(candidate, e.Track) {
			continue
		}
		c := compare(cand, newFields(e.Track, e.Artists))
		matches = append(matches, models.ScoredMatch{
			TrackRecord: e.Track,
			Score:       mean(c),
			Components:  c,
		})
	}
	return matches
}

func isSelf(candidate, stored models.TrackRecord) bool {
	return candidate.URL != "" && candidate.URL == stored.URL
}

// fields holds the folded comparison inputs of one track.
type fields struct {
	title, artists, version, label, genre, key string
	bpm                                        *float64
}

func newFields(t models.TrackRecord, artists []models.ArtistRecord) fields {
	return fields{
		title:   fold(t.Title),
		artists: fold(joinArtists(t, artists)),
		version: fold(t.Version),
		label:   fold(t.Label),
		genre:   fold(t.Genre),
		key:     fold(t.Key),
		bpm:     t.BPM,
	}
}

// joinArtists joins names with a single space in source order. Resolved
// records win; raw references on the track are the fallback.
func joinArtists(t models.TrackRecord, artists []models.ArtistRecord) string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		names = append(names, a.Name)
	}
	if len(names) == 0 {
		for _, a := range t.Artists {
			if a.Name != "" {
				names = append(names, a.Name)
			}
		}
	}
	return strings.Join(names, " ")
}

func compare(a, b fields) models.Components {
	return models.Components{
		Title:   ratio(a.title, b.title),
		Artist:  tokenSortRatio(a.artists, b.artists),
		Version: partialTokenSortRatio(a.version, b.version),
		Label:   ratio(a.label, b.label),
		Genre:   ratio(a.genre, b.genre),
		Key:     ratio(a.key, b.key),
		BPM:     bpmScore(a.bpm, b.bpm),
	}
}

// bpmScore is strict equality. A missing value only equals another missing one.
func bpmScore(a, b *float64) float64 {
	switch {
	case a == nil && b == nil:
		return 100
	case a == nil || b == nil:
		return 0
	case *a == *b:
		return 100
	}
	return 0
}

func mean(c models.Components) float64 {
	sum := c.Title + c.Artist + c.Version + c.Label + c.Genre + c.Key + c.BPM
	return sum / componentCount
}
