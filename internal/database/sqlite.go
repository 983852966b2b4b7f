package database

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"djutils-srv/internal/extract"
	"djutils-srv/internal/models"
)

//go:embed sqlite_schema.sql
var sqliteSchema string

// _txlock=immediate makes BEGIN take the write lock, so the read-check-insert
// inside an upsert cannot interleave with another writer.
const sqliteParams = "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_txlock=immediate&_foreign_keys=on"

const sqliteTrackColumns = `id, url, title, version, label, released, genre, "key", bpm, length, comments, tags, artists`

type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}

	db, err := sql.Open("sqlite3", "file:"+path+sqliteParams)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := InitDatabase(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// InitDatabase runs the embedded schema and brings older track tables up to
// date.
func InitDatabase(db *sql.DB) error {
	if _, err := db.Exec(sqliteSchema); err != nil {
		return err
	}
	return migrateFoldedTitles(db)
}

// migrateFoldedTitles adds the title_folded column to tables created before it
// existed and fills it for rows that still lack it.
func migrateFoldedTitles(db *sql.DB) error {
	var n int
	if err := db.QueryRow(
		"SELECT COUNT(*) FROM pragma_table_info('tracks') WHERE name = 'title_folded'").Scan(&n); err != nil {
		return fmt.Errorf("inspect tracks table: %w", err)
	}
	if n == 0 {
		if _, err := db.Exec("ALTER TABLE tracks ADD COLUMN title_folded TEXT NOT NULL DEFAULT ''"); err != nil {
			return fmt.Errorf("add title_folded: %w", err)
		}
	}
	if _, err := db.Exec("CREATE INDEX IF NOT EXISTS idx_tracks_title_folded ON tracks(title_folded)"); err != nil {
		return err
	}

	rows, err := db.Query("SELECT id, title FROM tracks WHERE title_folded = '' AND title <> ''")
	if err != nil {
		return err
	}
	var pending []foldedTitle
	for rows.Next() {
		var ft foldedTitle
		if err := rows.Scan(&ft.id, &ft.title); err != nil {
			rows.Close()
			return err
		}
		ft.title = extract.Fold(ft.title)
		pending = append(pending, ft)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, ft := range pending {
		if _, err := db.Exec("UPDATE tracks SET title_folded = ? WHERE id = ?", ft.title, ft.id); err != nil {
			return fmt.Errorf("backfill title_folded of track %d: %w", ft.id, err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// DB exposes the handle for tests and maintenance.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryIDs(ctx context.Context, q queryer, query string, args ...any) ([]int64, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanSQLiteTrack(rows *sql.Rows) (models.TrackRecord, error) {
	var (
		t                 models.TrackRecord
		bpm               sql.NullFloat64
		tagsJSON, artJSON string
	)
	err := rows.Scan(&t.ID, &t.URL, &t.Title, &t.Version, &t.Label, &t.Released,
		&t.Genre, &t.Key, &bpm, &t.Length, &t.Comments, &tagsJSON, &artJSON)
	if err != nil {
		return t, err
	}
	if bpm.Valid {
		t.BPM = models.Float(bpm.Float64)
	}
	if err := json.Unmarshal([]byte(tagsJSON), &t.Tags); err != nil {
		return t, fmt.Errorf("decode tags of track %d: %w", t.ID, err)
	}
	var ids []int64
	if err := json.Unmarshal([]byte(artJSON), &ids); err != nil {
		return t, fmt.Errorf("decode artists of track %d: %w", t.ID, err)
	}
	t.Artists = artistRefs(ids)
	return t, nil
}

func (s *SQLiteStore) queryTracks(ctx context.Context, where string, args ...any) ([]models.TrackRecord, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+sqliteTrackColumns+" FROM tracks WHERE "+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tracks := []models.TrackRecord{}
	for rows.Next() {
		t, err := scanSQLiteTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}

func oneTrack(tracks []models.TrackRecord, err error, what string) (models.TrackRecord, error) {
	if err != nil {
		return models.TrackRecord{}, fmt.Errorf("%s: %w", what, err)
	}
	switch len(tracks) {
	case 0:
		return models.TrackRecord{}, fmt.Errorf("%s: %w", what, models.ErrNotFound)
	case 1:
		return tracks[0], nil
	default:
		return models.TrackRecord{}, fmt.Errorf("%s: %d rows: %w", what, len(tracks), models.ErrMultipleMatches)
	}
}

func (s *SQLiteStore) FindTrackByURL(ctx context.Context, url string) (models.TrackRecord, error) {
	tracks, err := s.queryTracks(ctx, "url = ?", url)
	return oneTrack(tracks, err, "track "+url)
}

func (s *SQLiteStore) FindTrackByID(ctx context.Context, id int64) (models.TrackRecord, error) {
	tracks, err := s.queryTracks(ctx, "id = ?", id)
	return oneTrack(tracks, err, fmt.Sprintf("track %d", id))
}

func (s *SQLiteStore) FindTracksByTitleFragment(ctx context.Context, fragment string) ([]models.TrackRecord, error) {
	return s.queryTracks(ctx, `title_folded LIKE ? ESCAPE '\' ORDER BY id`, likePattern(fragment))
}

func (s *SQLiteStore) UpsertTrack(ctx context.Context, t models.TrackRecord) (models.TrackRecord, error) {
	if t.URL == "" {
		return t, models.InvalidField("url", t.URL, nil)
	}

	tags := t.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := encodeJSON(tags)
	if err != nil {
		return t, err
	}
	artJSON, err := encodeJSON(t.ArtistIDs())
	if err != nil {
		return t, err
	}
	var bpm sql.NullFloat64
	if t.BPM != nil {
		bpm = sql.NullFloat64{Float64: *t.BPM, Valid: true}
	}
	folded := extract.Fold(t.Title)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return t, fmt.Errorf("begin track upsert: %w", err)
	}
	defer tx.Rollback()

	ids, err := queryIDs(ctx, tx, "SELECT id FROM tracks WHERE url = ?", t.URL)
	if err != nil {
		return t, fmt.Errorf("lookup track %s: %w", t.URL, err)
	}

	switch len(ids) {
	case 0:
		res, err := tx.ExecContext(ctx, `
		INSERT INTO tracks (url, title, title_folded, version, label, released, genre, "key", bpm, length, comments, tags, artists)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.URL, t.Title, folded, t.Version, t.Label, t.Released, t.Genre, t.Key, bpm, t.Length, t.Comments, tagsJSON, artJSON)
		if err != nil {
			return t, fmt.Errorf("insert track %s: %w", t.URL, err)
		}
		if t.ID, err = res.LastInsertId(); err != nil {
			return t, err
		}
	case 1:
		t.ID = ids[0]
		_, err := tx.ExecContext(ctx, `
		UPDATE tracks SET title = ?, title_folded = ?, version = ?, label = ?, released = ?, genre = ?, "key" = ?,
			bpm = ?, length = ?, comments = ?, tags = ?, artists = ?, last_updated = CURRENT_TIMESTAMP
		WHERE id = ?`,
			t.Title, folded, t.Version, t.Label, t.Released, t.Genre, t.Key, bpm, t.Length, t.Comments, tagsJSON, artJSON, t.ID)
		if err != nil {
			return t, fmt.Errorf("update track %s: %w", t.URL, err)
		}
	default:
		return t, fmt.Errorf("track %s: %d rows: %w", t.URL, len(ids), models.ErrMultipleMatches)
	}

	if err := tx.Commit(); err != nil {
		return t, fmt.Errorf("commit track upsert: %w", err)
	}
	return t, nil
}

func (s *SQLiteStore) FindArtistsByIDs(ctx context.Context, ids []int64) ([]models.ArtistRecord, error) {
	if len(ids) == 0 {
		return []models.ArtistRecord{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, url, platform_id FROM artists WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, fmt.Errorf("list artists: %w", err)
	}
	defer rows.Close()

	found := make(map[int64]models.ArtistRecord, len(ids))
	for rows.Next() {
		var a models.ArtistRecord
		if err := rows.Scan(&a.ID, &a.Name, &a.URL, &a.PlatformID); err != nil {
			return nil, err
		}
		found[a.ID] = a
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orderArtists(ids, found), nil
}

func (s *SQLiteStore) FindArtistByID(ctx context.Context, id int64) (models.ArtistRecord, error) {
	var a models.ArtistRecord
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, url, platform_id FROM artists WHERE id = ?", id).
		Scan(&a.ID, &a.Name, &a.URL, &a.PlatformID)
	if errors.Is(err, sql.ErrNoRows) {
		return a, fmt.Errorf("artist %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return a, fmt.Errorf("artist %d: %w", id, err)
	}
	return a, nil
}

func (s *SQLiteStore) UpsertArtist(ctx context.Context, name, url string, platformID int64) (models.ArtistRecord, error) {
	a := models.ArtistRecord{Name: name, URL: url, PlatformID: platformID}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return a, fmt.Errorf("begin artist upsert: %w", err)
	}
	defer tx.Rollback()

	ids, err := queryIDs(ctx, tx, "SELECT id FROM artists WHERE name = ? AND platform_id = ?", name, platformID)
	if err != nil {
		return a, fmt.Errorf("lookup artist %q: %w", name, err)
	}

	switch len(ids) {
	case 0:
		res, err := tx.ExecContext(ctx,
			"INSERT INTO artists (name, platform_id, url) VALUES (?, ?, ?)", name, platformID, url)
		if err != nil {
			return a, fmt.Errorf("insert artist %q: %w", name, err)
		}
		if a.ID, err = res.LastInsertId(); err != nil {
			return a, err
		}
	case 1:
		a.ID = ids[0]
		// an empty url never wipes a known profile link
		if err := tx.QueryRowContext(ctx,
			"UPDATE artists SET url = COALESCE(NULLIF(?, ''), url) WHERE id = ? RETURNING url", url, a.ID).
			Scan(&a.URL); err != nil {
			return a, fmt.Errorf("update artist %q: %w", name, err)
		}
	default:
		return a, fmt.Errorf("artist %q on platform %d: %d rows: %w", name, platformID, len(ids), models.ErrMultipleMatches)
	}

	if err := tx.Commit(); err != nil {
		return a, fmt.Errorf("commit artist upsert: %w", err)
	}
	return a, nil
}

func (s *SQLiteStore) FindPlatformByID(ctx context.Context, id int64) (models.PlatformRecord, error) {
	var p models.PlatformRecord
	err := s.db.QueryRowContext(ctx, "SELECT id, name, url FROM platform WHERE id = ?", id).
		Scan(&p.ID, &p.Name, &p.URL)
	if errors.Is(err, sql.ErrNoRows) {
		return p, fmt.Errorf("platform %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return p, fmt.Errorf("platform %d: %w", id, err)
	}
	return p, nil
}

func (s *SQLiteStore) UpsertPlatform(ctx context.Context, name models.PlatformName, url string) (models.PlatformRecord, error) {
	p := models.PlatformRecord{Name: name, URL: url}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return p, fmt.Errorf("begin platform upsert: %w", err)
	}
	defer tx.Rollback()

	ids, err := queryIDs(ctx, tx, "SELECT id FROM platform WHERE name = ?", string(name))
	if err != nil {
		return p, fmt.Errorf("lookup platform %s: %w", name, err)
	}

	switch len(ids) {
	case 0:
		res, err := tx.ExecContext(ctx, "INSERT INTO platform (name, url) VALUES (?, ?)", string(name), url)
		if err != nil {
			return p, fmt.Errorf("insert platform %s: %w", name, err)
		}
		if p.ID, err = res.LastInsertId(); err != nil {
			return p, err
		}
	case 1:
		p.ID = ids[0]
		if err := tx.QueryRowContext(ctx,
			"UPDATE platform SET url = COALESCE(NULLIF(?, ''), url) WHERE id = ? RETURNING url", url, p.ID).
			Scan(&p.URL); err != nil {
			return p, fmt.Errorf("update platform %s: %w", name, err)
		}
	default:
		return p, fmt.Errorf("platform %s: %d rows: %w", name, len(ids), models.ErrMultipleMatches)
	}

	if err := tx.Commit(); err != nil {
		return p, fmt.Errorf("commit platform upsert: %w", err)
	}
	return p, nil
}
