// Package library stores scraped tracks with their artists and platforms and
// answers similar-track searches over them.
package library

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"djutils-srv/internal/database"
	"djutils-srv/internal/extract"
	"djutils-srv/internal/matcher"
	"djutils-srv/internal/metrics"
	"djutils-srv/internal/models"
)

type Config struct {
	// MinTitleOverlap is the title alignment similarity in [0,1] a stored
	// track needs to enter the scoring pool.
	MinTitleOverlap float64
	// MinScore drops matches scoring below it. Zero keeps everything.
	MinScore float64
	// Limit caps the number of matches returned. Zero means no cap.
	Limit    int
	CacheTTL time.Duration
}

func DefaultConfig() Config {
	return Config{
		MinTitleOverlap: 0.8,
		CacheTTL:        10 * time.Minute,
	}
}

type Service struct {
	store     database.Store
	pool      *matcher.PoolSelector
	matcher   *matcher.Matcher
	platforms *cache.Cache
	metrics   *metrics.Metrics
	logger    *slog.Logger
	cfg       Config
}

func New(store database.Store, cfg Config, m *metrics.Metrics, logger *slog.Logger) *Service {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultConfig().CacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		pool:      matcher.NewPoolSelector(store, cfg.MinTitleOverlap),
		matcher:   matcher.New(store),
		platforms: cache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		metrics:   m,
		logger:    logger.With("component", "library"),
		cfg:       cfg,
	}
}

// AddTrack resolves the track's raw artist references to stored artists and
// upserts the track by URL. The returned track carries its id and the
// resolved artist ids.
func (s *Service) AddTrack(ctx context.Context, t models.TrackRecord) (models.TrackRecord, error) {
	t.URL = strings.TrimSpace(t.URL)
	if t.URL == "" {
		return t, models.InvalidField("url", t.URL, nil)
	}
	platform, err := extract.ResolvePlatform(t.URL)
	if err != nil {
		return t, err
	}

	refs := make([]models.ArtistRef, 0, len(t.Artists))
	for _, ref := range t.Artists {
		if ref.ID > 0 {
			refs = append(refs, ref)
			continue
		}
		resolved, err := s.resolveArtist(ctx, ref, platform)
		if err != nil {
			return t, err
		}
		refs = append(refs, resolved)
	}
	t.Artists = refs
	t.Comments = extract.Comments(t.Comments)

	saved, err := s.store.UpsertTrack(ctx, t)
	s.metrics.ObserveUpsert("track", err)
	if err != nil {
		return t, fmt.Errorf("add track: %w", err)
	}
	s.logger.Info("track stored", "id", saved.ID, "url", saved.URL, "artists", len(saved.Artists))
	return saved, nil
}

// resolveArtist upserts a raw name/url reference. The artist's platform comes
// from its own URL, or from the track's when that URL is unclassifiable.
func (s *Service) resolveArtist(ctx context.Context, ref models.ArtistRef, trackPlatform models.PlatformName) (models.ArtistRef, error) {
	name := strings.TrimSpace(ref.Name)
	if name == "" {
		return ref, models.InvalidField("artists", ref, fmt.Errorf("artist without id or name"))
	}

	platform, ok := extract.ClassifyPlatform(ref.URL)
	if !ok {
		platform = trackPlatform
	}
	platformID, err := s.platformID(ctx, platform)
	if err != nil {
		return ref, err
	}

	a, err := s.store.UpsertArtist(ctx, name, strings.TrimSpace(ref.URL), platformID)
	s.metrics.ObserveUpsert("artist", err)
	if err != nil {
		return ref, fmt.Errorf("resolve artist %q: %w", name, err)
	}
	return models.ArtistRef{ID: a.ID, Name: a.Name, URL: a.URL}, nil
}

// platformID returns the stored id of p, creating the platform row on first use.
func (s *Service) platformID(ctx context.Context, p models.PlatformName) (int64, error) {
	if id, ok := s.platforms.Get(string(p)); ok {
		s.metrics.ObserveCache(true)
		return id.(int64), nil
	}
	s.metrics.ObserveCache(false)

	rec, err := s.store.UpsertPlatform(ctx, p, extract.PlatformHome(p))
	s.metrics.ObserveUpsert("platform", err)
	if err != nil {
		return 0, fmt.Errorf("resolve platform %s: %w", p, err)
	}
	s.platforms.SetDefault(string(p), rec.ID)
	return rec.ID, nil
}

// GetTrack looks a track up by URL and fills in its artists' names.
func (s *Service) GetTrack(ctx context.Context, url string) (models.TrackRecord, error) {
	t, err := s.store.FindTrackByURL(ctx, strings.TrimSpace(url))
	if err != nil {
		return t, err
	}
	artists, err := s.store.FindArtistsByIDs(ctx, t.ArtistIDs())
	if err != nil {
		return t, fmt.Errorf("artists of %s: %w", t.URL, err)
	}
	byID := make(map[int64]models.ArtistRecord, len(artists))
	for _, a := range artists {
		byID[a.ID] = a
	}
	for i, ref := range t.Artists {
		if a, ok := byID[ref.ID]; ok {
			t.Artists[i] = models.ArtistRef{ID: a.ID, Name: a.Name, URL: a.URL}
		}
	}
	return t, nil
}

func (s *Service) GetArtist(ctx context.Context, id int64) (models.ArtistRecord, error) {
	if id <= 0 {
		return models.ArtistRecord{}, models.InvalidField("id", id, nil)
	}
	return s.store.FindArtistByID(ctx, id)
}

// AddArtist upserts an artist on an existing platform.
func (s *Service) AddArtist(ctx context.Context, name, url string, platformID int64) (models.ArtistRecord, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.ArtistRecord{}, models.InvalidField("name", name, nil)
	}
	if platformID <= 0 {
		return models.ArtistRecord{}, models.InvalidField("platform_id", platformID, nil)
	}
	if _, err := s.store.FindPlatformByID(ctx, platformID); err != nil {
		return models.ArtistRecord{}, models.InvalidField("platform_id", platformID, err)
	}

	a, err := s.store.UpsertArtist(ctx, name, strings.TrimSpace(url), platformID)
	s.metrics.ObserveUpsert("artist", err)
	if err != nil {
		return a, fmt.Errorf("add artist: %w", err)
	}
	return a, nil
}

// AddPlatform upserts one of the known platforms. A blank url stores the
// platform's home page.
func (s *Service) AddPlatform(ctx context.Context, name, url string) (models.PlatformRecord, error) {
	p := models.PlatformName(strings.ToLower(strings.TrimSpace(name)))
	if !p.Known() {
		return models.PlatformRecord{}, models.InvalidField("name", name, models.ErrUnrecognizedPlatform)
	}
	url = strings.TrimSpace(url)
	if url == "" {
		url = extract.PlatformHome(p)
	}

	rec, err := s.store.UpsertPlatform(ctx, p, url)
	s.metrics.ObserveUpsert("platform", err)
	if err != nil {
		return rec, fmt.Errorf("add platform: %w", err)
	}
	s.platforms.SetDefault(string(p), rec.ID)
	return rec, nil
}

// SimilarTracks scores stored tracks with a similar title against candidate
// and returns them best first. When artists is empty the candidate's own
// artist references are used instead.
func (s *Service) SimilarTracks(ctx context.Context, candidate models.TrackRecord, artists []models.ArtistRecord) ([]models.ScoredMatch, error) {
	if len(artists) == 0 {
		var err error
		if artists, err = s.candidateArtists(ctx, candidate.Artists); err != nil {
			return nil, err
		}
	}

	pool, err := s.pool.Select(ctx, candidate)
	if err != nil {
		return nil, err
	}
	matches, err := s.matcher.Match(ctx, candidate, artists, pool)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	out := matches[:0]
	for _, m := range matches {
		if m.Score < s.cfg.MinScore {
			break
		}
		out = append(out, m)
	}
	if s.cfg.Limit > 0 && len(out) > s.cfg.Limit {
		out = out[:s.cfg.Limit]
	}

	scores := make([]float64, len(out))
	for i, m := range out {
		scores[i] = m.Score
	}
	s.metrics.ObserveMatch(len(pool), scores)
	s.logger.Debug("similar tracks", "title", candidate.Title, "pool", len(pool), "returned", len(out))
	return out, nil
}

// candidateArtists turns references into artist records in source order.
// Stored ids are resolved; named references are taken as given. An unknown id
// keeps its name when the reference carries one and is dropped otherwise.
func (s *Service) candidateArtists(ctx context.Context, refs []models.ArtistRef) ([]models.ArtistRecord, error) {
	byID := map[int64]models.ArtistRecord{}
	if ids := (models.TrackRecord{Artists: refs}).ArtistIDs(); len(ids) > 0 {
		found, err := s.store.FindArtistsByIDs(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("candidate artists: %w", err)
		}
		for _, a := range found {
			byID[a.ID] = a
		}
	}

	out := make([]models.ArtistRecord, 0, len(refs))
	for _, r := range refs {
		if a, ok := byID[r.ID]; ok && r.ID > 0 {
			out = append(out, a)
			continue
		}
		if r.Name != "" {
			out = append(out, models.ArtistRecord{Name: r.Name, URL: r.URL})
		}
	}
	return out, nil
}
