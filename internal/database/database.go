package database

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"djutils-srv/internal/extract"
	"djutils-srv/internal/models"
)

// Store persists tracks, artists and platforms. Every Upsert is one atomic
// read-check-write keyed on the record's identity: url for tracks,
// (name, platform) for artists, name for platforms.
type Store interface {
	FindTrackByURL(ctx context.Context, url string) (models.TrackRecord, error)
	FindTrackByID(ctx context.Context, id int64) (models.TrackRecord, error)
	FindTracksByTitleFragment(ctx context.Context, fragment string) ([]models.TrackRecord, error)
	FindArtistsByIDs(ctx context.Context, ids []int64) ([]models.ArtistRecord, error)
	FindArtistByID(ctx context.Context, id int64) (models.ArtistRecord, error)
	FindPlatformByID(ctx context.Context, id int64) (models.PlatformRecord, error)
	UpsertTrack(ctx context.Context, t models.TrackRecord) (models.TrackRecord, error)
	UpsertArtist(ctx context.Context, name, url string, platformID int64) (models.ArtistRecord, error)
	UpsertPlatform(ctx context.Context, name models.PlatformName, url string) (models.PlatformRecord, error)
	Close() error
}

// foldedTitle pairs a track id with its folded title during a backfill.
type foldedTitle struct {
	id    int64
	title string
}

type Config struct {
	Driver string // sqlite or postgres
	Path   string
	DSN    string
}

func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", "sqlite", "sqlite3":
		return OpenSQLite(cfg.Path)
	case "postgres", "postgresql", "pgx":
		return OpenPostgres(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

// single picks the only element of ids or classifies the lookup failure.
func single(ids []int64, what string) (int64, error) {
	switch len(ids) {
	case 0:
		return 0, fmt.Errorf("%s: %w", what, models.ErrNotFound)
	case 1:
		return ids[0], nil
	default:
		return 0, fmt.Errorf("%s: %d rows: %w", what, len(ids), models.ErrMultipleMatches)
	}
}

// orderArtists returns the found artists in the order the IDs were requested,
// dropping unknown IDs.
func orderArtists(ids []int64, found map[int64]models.ArtistRecord) []models.ArtistRecord {
	out := make([]models.ArtistRecord, 0, len(ids))
	for _, id := range ids {
		if a, ok := found[id]; ok {
			out = append(out, a)
		}
	}
	return out
}

func artistRefs(ids []int64) []models.ArtistRef {
	refs := make([]models.ArtistRef, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, models.ArtistRef{ID: id})
	}
	return refs
}

func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// likePattern builds a containment pattern over folded titles, escaping LIKE
// metacharacters with a backslash.
func likePattern(fragment string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(extract.Fold(fragment)) + "%"
}
