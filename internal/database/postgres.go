package database

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"djutils-srv/internal/extract"
	"djutils-srv/internal/models"
)

//go:embed postgres_schema.sql
var postgresSchema string

const pgTrackColumns = `id, url, title, version, label, released, genre, "key", bpm, length, comments, tags, artists`

// PostgresStore serializes upserts of the same key with a transaction-scoped
// advisory lock on the key, since the identity columns carry no unique index.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is empty")
	}

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init postgres schema: %w", err)
	}
	s := &PostgresStore{pool: pool}
	if err := s.backfillFoldedTitles(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("backfill folded titles: %w", err)
	}
	return s, nil
}

// backfillFoldedTitles fills title_folded for rows written before the column
// existed.
func (s *PostgresStore) backfillFoldedTitles(ctx context.Context) error {
	rows, err := s.pool.Query(ctx, "SELECT id, title FROM tracks WHERE title_folded = '' AND title <> ''")
	if err != nil {
		return err
	}
	pending, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (foldedTitle, error) {
		var ft foldedTitle
		err := row.Scan(&ft.id, &ft.title)
		ft.title = extract.Fold(ft.title)
		return ft, err
	})
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, ft := range pending {
		batch.Queue("UPDATE tracks SET title_folded = $1 WHERE id = $2", ft.title, ft.id)
	}
	if batch.Len() == 0 {
		return nil
	}
	return s.pool.SendBatch(ctx, batch).Close()
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Pool exposes the pool for tests and maintenance.
func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

func lockKey(ctx context.Context, tx pgx.Tx, key string) error {
	_, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", key)
	return err
}

func pgIDs(ctx context.Context, tx pgx.Tx, query string, args ...any) ([]int64, error) {
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

func scanPgTrack(row pgx.CollectableRow) (models.TrackRecord, error) {
	var (
		t   models.TrackRecord
		ids []int64
	)
	err := row.Scan(&t.ID, &t.URL, &t.Title, &t.Version, &t.Label, &t.Released,
		&t.Genre, &t.Key, &t.BPM, &t.Length, &t.Comments, &t.Tags, &ids)
	if err != nil {
		return t, err
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
	t.Artists = artistRefs(ids)
	return t, nil
}

func (s *PostgresStore) queryTracks(ctx context.Context, where string, args ...any) ([]models.TrackRecord, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+pgTrackColumns+" FROM tracks WHERE "+where, args...)
	if err != nil {
		return nil, err
	}
	tracks, err := pgx.CollectRows(rows, scanPgTrack)
	if err != nil {
		return nil, err
	}
	if tracks == nil {
		tracks = []models.TrackRecord{}
	}
	return tracks, nil
}

func (s *PostgresStore) FindTrackByURL(ctx context.Context, url string) (models.TrackRecord, error) {
	tracks, err := s.queryTracks(ctx, "url = $1", url)
	return oneTrack(tracks, err, "track "+url)
}

func (s *PostgresStore) FindTrackByID(ctx context.Context, id int64) (models.TrackRecord, error) {
	tracks, err := s.queryTracks(ctx, "id = $1", id)
	return oneTrack(tracks, err, fmt.Sprintf("track %d", id))
}

func (s *PostgresStore) FindTracksByTitleFragment(ctx context.Context, fragment string) ([]models.TrackRecord, error) {
	return s.queryTracks(ctx, `title_folded LIKE $1 ESCAPE '\' ORDER BY id`, likePattern(fragment))
}

func (s *PostgresStore) UpsertTrack(ctx context.Context, t models.TrackRecord) (models.TrackRecord, error) {
	if t.URL == "" {
		return t, models.InvalidField("url", t.URL, nil)
	}
	tags := t.Tags
	if tags == nil {
		tags = []string{}
	}
	artistIDs := t.ArtistIDs()
	folded := extract.Fold(t.Title)

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := lockKey(ctx, tx, "track:"+t.URL); err != nil {
			return err
		}
		ids, err := pgIDs(ctx, tx, "SELECT id FROM tracks WHERE url = $1", t.URL)
		if err != nil {
			return fmt.Errorf("lookup track %s: %w", t.URL, err)
		}

		switch len(ids) {
		case 0:
			return tx.QueryRow(ctx, `
			INSERT INTO tracks (url, title, title_folded, version, label, released, genre, "key", bpm, length, comments, tags, artists)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			RETURNING id`,
				t.URL, t.Title, folded, t.Version, t.Label, t.Released, t.Genre, t.Key, t.BPM, t.Length, t.Comments, tags, artistIDs).
				Scan(&t.ID)
		case 1:
			t.ID = ids[0]
			_, err := tx.Exec(ctx, `
			UPDATE tracks SET title = $1, title_folded = $2, version = $3, label = $4, released = $5, genre = $6,
				"key" = $7, bpm = $8, length = $9, comments = $10, tags = $11, artists = $12, last_updated = now()
			WHERE id = $13`,
				t.Title, folded, t.Version, t.Label, t.Released, t.Genre, t.Key, t.BPM, t.Length, t.Comments, tags, artistIDs, t.ID)
			return err
		default:
			return fmt.Errorf("track %s: %d rows: %w", t.URL, len(ids), models.ErrMultipleMatches)
		}
	})
	if err != nil {
		return t, fmt.Errorf("upsert track %s: %w", t.URL, err)
	}
	return t, nil
}

func (s *PostgresStore) FindArtistsByIDs(ctx context.Context, ids []int64) ([]models.ArtistRecord, error) {
	if len(ids) == 0 {
		return []models.ArtistRecord{}, nil
	}
	rows, err := s.pool.Query(ctx,
		"SELECT id, name, url, platform_id FROM artists WHERE id = ANY($1)", ids)
	if err != nil {
		return nil, fmt.Errorf("list artists: %w", err)
	}
	list, err := pgx.CollectRows(rows, pgx.RowToStructByPos[models.ArtistRecord])
	if err != nil {
		return nil, fmt.Errorf("list artists: %w", err)
	}

	found := make(map[int64]models.ArtistRecord, len(list))
	for _, a := range list {
		found[a.ID] = a
	}
	return orderArtists(ids, found), nil
}

func (s *PostgresStore) FindArtistByID(ctx context.Context, id int64) (models.ArtistRecord, error) {
	var a models.ArtistRecord
	err := s.pool.QueryRow(ctx, "SELECT id, name, url, platform_id FROM artists WHERE id = $1", id).
		Scan(&a.ID, &a.Name, &a.URL, &a.PlatformID)
	if errors.Is(err, pgx.ErrNoRows) {
		return a, fmt.Errorf("artist %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return a, fmt.Errorf("artist %d: %w", id, err)
	}
	return a, nil
}

func (s *PostgresStore) UpsertArtist(ctx context.Context, name, url string, platformID int64) (models.ArtistRecord, error) {
	a := models.ArtistRecord{Name: name, URL: url, PlatformID: platformID}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := lockKey(ctx, tx, fmt.Sprintf("artist:%d:%s", platformID, name)); err != nil {
			return err
		}
		ids, err := pgIDs(ctx, tx, "SELECT id FROM artists WHERE name = $1 AND platform_id = $2", name, platformID)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return tx.QueryRow(ctx,
				"INSERT INTO artists (name, platform_id, url) VALUES ($1, $2, $3) RETURNING id",
				name, platformID, url).Scan(&a.ID)
		}
		if a.ID, err = single(ids, fmt.Sprintf("artist %q on platform %d", name, platformID)); err != nil {
			return err
		}
		return tx.QueryRow(ctx,
			"UPDATE artists SET url = COALESCE(NULLIF($1, ''), url) WHERE id = $2 RETURNING url", url, a.ID).
			Scan(&a.URL)
	})
	if err != nil {
		return a, fmt.Errorf("upsert artist %q: %w", name, err)
	}
	return a, nil
}

func (s *PostgresStore) FindPlatformByID(ctx context.Context, id int64) (models.PlatformRecord, error) {
	var p models.PlatformRecord
	err := s.pool.QueryRow(ctx, "SELECT id, name, url FROM platform WHERE id = $1", id).
		Scan(&p.ID, &p.Name, &p.URL)
	if errors.Is(err, pgx.ErrNoRows) {
		return p, fmt.Errorf("platform %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return p, fmt.Errorf("platform %d: %w", id, err)
	}
	return p, nil
}

func (s *PostgresStore) UpsertPlatform(ctx context.Context, name models.PlatformName, url string) (models.PlatformRecord, error) {
	p := models.PlatformRecord{Name: name, URL: url}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := lockKey(ctx, tx, "platform:"+string(name)); err != nil {
			return err
		}
		ids, err := pgIDs(ctx, tx, "SELECT id FROM platform WHERE name = $1", string(name))
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return tx.QueryRow(ctx,
				"INSERT INTO platform (name, url) VALUES ($1, $2) RETURNING id", string(name), url).Scan(&p.ID)
		}
		if p.ID, err = single(ids, "platform "+string(name)); err != nil {
			return err
		}
		return tx.QueryRow(ctx,
			"UPDATE platform SET url = COALESCE(NULLIF($1, ''), url) WHERE id = $2 RETURNING url", url, p.ID).
			Scan(&p.URL)
	})
	if err != nil {
		return p, fmt.Errorf("upsert platform %s: %w", name, err)
	}
	return p, nil
}
