package matcher

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"djutils-srv/internal/models"
)

// TitleSearcher narrows stored tracks by a title substring.
type TitleSearcher interface {
	FindTracksByTitleFragment(ctx context.Context, fragment string) ([]models.TrackRecord, error)
}

// PoolSelector picks the stored tracks whose title approximately contains,
// or is contained in, the candidate's title.
type PoolSelector struct {
	tracks     TitleSearcher
	minOverlap float64
}

func NewPoolSelector(tracks TitleSearcher, minOverlap float64) *PoolSelector {
	return &PoolSelector{tracks: tracks, minOverlap: minOverlap}
}

// Select never returns the candidate itself.
func (p *PoolSelector) Select(ctx context.Context, candidate models.TrackRecord) ([]models.TrackRecord, error) {
	fragment := longestWord(candidate.Title)
	if fragment == "" {
		return []models.TrackRecord{}, nil
	}

	stored, err := p.tracks.FindTracksByTitleFragment(ctx, fragment)
	if err != nil {
		return nil, fmt.Errorf("search titles for %q: %w", fragment, err)
	}

	pool := make([]models.TrackRecord, 0, len(stored))
	for _, t := range stored {
		if isSelf(candidate, t) {
			continue
		}
		if TitleOverlap(candidate.Title, t.Title) >= p.minOverlap {
			pool = append(pool, t)
		}
	}
	return pool, nil
}

// TitleOverlap is the Smith-Waterman-Gotoh local alignment similarity of two
// titles in [0,1]. 1 means the shorter title occurs verbatim in the longer.
func TitleOverlap(a, b string) float64 {
	a, b = fold(a), fold(b)
	if a == "" || b == "" {
		return 0
	}
	swg := metrics.NewSmithWatermanGotoh()
	swg.CaseSensitive = true // already folded
	return strutil.Similarity(a, b, swg)
}

func longestWord(title string) string {
	words := strings.FieldsFunc(fold(title), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	longest := ""
	for _, w := range words {
		if utf8.RuneCountInString(w) > utf8.RuneCountInString(longest) {
			longest = w
		}
	}
	return longest
}
