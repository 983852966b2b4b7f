package database

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"djutils-srv/internal/models"
)

func newSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "data", "tracks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleTrack(url string) models.TrackRecord {
	return models.TrackRecord{
		URL:      url,
		Title:    "Blue Mile",
		Version:  "Original Mix",
		Label:    "Anjunadeep",
		Genre:    "Melodic House",
		Key:      "A min",
		BPM:      models.Float(124),
		Length:   "6:12",
		Released: "2023-04-14",
		Artists:  []models.ArtistRef{{ID: 3}, {ID: 1}},
		Tags:     []string{"warmup"},
	}
}

// storeSuite runs against any Store so the SQLite and Postgres backends share
// one behavioural contract.
func storeSuite(t *testing.T, s Store) {
	ctx := context.Background()

	t.Run("track upsert is idempotent and overwrites", func(t *testing.T) {
		first, err := s.UpsertTrack(ctx, sampleTrack("https://www.beatport.com/track/blue-mile/1"))
		require.NoError(t, err)
		require.NotZero(t, first.ID)

		changed := sampleTrack("https://www.beatport.com/track/blue-mile/1")
		changed.Title = "Blue Mile (Extended)"
		changed.BPM = nil
		changed.Artists = []models.ArtistRef{{ID: 7}}
		changed.Tags = nil

		second, err := s.UpsertTrack(ctx, changed)
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)

		got, err := s.FindTrackByURL(ctx, changed.URL)
		require.NoError(t, err)
		assert.Equal(t, first.ID, got.ID)
		assert.Equal(t, "Blue Mile (Extended)", got.Title)
		assert.Nil(t, got.BPM)
		assert.Equal(t, []int64{7}, got.ArtistIDs())
		assert.Empty(t, got.Tags)

		byID, err := s.FindTrackByID(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, got, byID)
	})

	t.Run("track round trip keeps fields", func(t *testing.T) {
		in := sampleTrack("https://www.traxsource.com/track/99/round-trip")
		saved, err := s.UpsertTrack(ctx, in)
		require.NoError(t, err)

		got, err := s.FindTrackByURL(ctx, in.URL)
		require.NoError(t, err)
		in.ID = saved.ID
		in.Artists = []models.ArtistRef{{ID: 3}, {ID: 1}}
		assert.Equal(t, in, got)
	})

	t.Run("missing track is not found", func(t *testing.T) {
		_, err := s.FindTrackByURL(ctx, "https://nowhere.example/track")
		assert.ErrorIs(t, err, models.ErrNotFound)
		_, err = s.FindTrackByID(ctx, 999999)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("empty url is rejected", func(t *testing.T) {
		_, err := s.UpsertTrack(ctx, models.TrackRecord{Title: "x"})
		assert.ErrorIs(t, err, models.ErrInvalidField)
	})

	t.Run("title fragment is case insensitive and escapes wildcards", func(t *testing.T) {
		_, err := s.UpsertTrack(ctx, models.TrackRecord{URL: "frag-1", Title: "Sunrise 100% Mix"})
		require.NoError(t, err)
		_, err = s.UpsertTrack(ctx, models.TrackRecord{URL: "frag-2", Title: "Sunrise 1000 Mix"})
		require.NoError(t, err)

		got, err := s.FindTracksByTitleFragment(ctx, "SUNRISE")
		require.NoError(t, err)
		assert.Len(t, got, 2)

		got, err = s.FindTracksByTitleFragment(ctx, "100%")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "frag-1", got[0].URL)

		got, err = s.FindTracksByTitleFragment(ctx, "no such words here")
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("title fragment folds non-ascii titles", func(t *testing.T) {
		_, err := s.UpsertTrack(ctx, models.TrackRecord{URL: "fold-1", Title: "Straße"})
		require.NoError(t, err)
		_, err = s.UpsertTrack(ctx, models.TrackRecord{URL: "fold-2", Title: "ÉTÉ"})
		require.NoError(t, err)

		for fragment, url := range map[string]string{
			"straße":  "fold-1",
			"STRASSE": "fold-1",
			"été":     "fold-2",
			"ÉTÉ":     "fold-2",
		} {
			got, err := s.FindTracksByTitleFragment(ctx, fragment)
			require.NoError(t, err, fragment)
			require.Len(t, got, 1, fragment)
			assert.Equal(t, url, got[0].URL, fragment)
		}
	})

	t.Run("platform and artist upserts", func(t *testing.T) {
		p1, err := s.UpsertPlatform(ctx, models.PlatformBeatport, "https://www.beatport.com")
		require.NoError(t, err)
		p2, err := s.UpsertPlatform(ctx, models.PlatformBeatport, "")
		require.NoError(t, err)
		assert.Equal(t, p1.ID, p2.ID)
		assert.Equal(t, "https://www.beatport.com", p2.URL)

		gotP, err := s.FindPlatformByID(ctx, p1.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PlatformBeatport, gotP.Name)

		a1, err := s.UpsertArtist(ctx, "Lane 8", "", p1.ID)
		require.NoError(t, err)
		a2, err := s.UpsertArtist(ctx, "Lane 8", "https://www.beatport.com/artist/lane-8/1", p1.ID)
		require.NoError(t, err)
		assert.Equal(t, a1.ID, a2.ID)

		b, err := s.UpsertArtist(ctx, "Yotto", "https://www.beatport.com/artist/yotto/2", p1.ID)
		require.NoError(t, err)

		gotA, err := s.FindArtistByID(ctx, a1.ID)
		require.NoError(t, err)
		assert.Equal(t, "https://www.beatport.com/artist/lane-8/1", gotA.URL)
		assert.Equal(t, p1.ID, gotA.PlatformID)

		list, err := s.FindArtistsByIDs(ctx, []int64{b.ID, 424242, a1.ID})
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "Yotto", list[0].Name)
		assert.Equal(t, "Lane 8", list[1].Name)

		empty, err := s.FindArtistsByIDs(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("missing artist and platform are not found", func(t *testing.T) {
		_, err := s.FindArtistByID(ctx, 999999)
		assert.ErrorIs(t, err, models.ErrNotFound)
		_, err = s.FindPlatformByID(ctx, 999999)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("concurrent upserts of one url leave one row", func(t *testing.T) {
		const url = "https://www.beatport.com/track/race/5"
		var wg sync.WaitGroup
		errs := make(chan error, 8)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.UpsertTrack(ctx, sampleTrack(url))
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		_, err := s.FindTrackByURL(ctx, url)
		assert.NoError(t, err)
	})
}

func TestSQLiteStore(t *testing.T) {
	storeSuite(t, newSQLite(t))
}

func TestSQLiteDuplicateRowsAreMultipleMatches(t *testing.T) {
	s := newSQLite(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := s.DB().Exec("INSERT INTO tracks (url, title) VALUES (?, ?)", "dup", "Dup")
		require.NoError(t, err)
	}

	_, err := s.FindTrackByURL(ctx, "dup")
	assert.ErrorIs(t, err, models.ErrMultipleMatches)

	_, err = s.UpsertTrack(ctx, models.TrackRecord{URL: "dup", Title: "Dup"})
	assert.ErrorIs(t, err, models.ErrMultipleMatches)
}

func TestSQLiteLookupErrorsAreWrapped(t *testing.T) {
	s := newSQLite(t)
	require.NoError(t, s.Close())
	ctx := context.Background()

	_, err := s.FindArtistByID(ctx, 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, models.ErrNotFound)
	assert.ErrorContains(t, err, "artist 1")

	_, err = s.FindPlatformByID(ctx, 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, models.ErrNotFound)
	assert.ErrorContains(t, err, "platform 1")
}

func TestSQLiteBackfillsFoldedTitles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")

	db, err := sql.Open("sqlite3", "file:"+path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE tracks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		version TEXT NOT NULL DEFAULT '',
		label TEXT NOT NULL DEFAULT '',
		released TEXT NOT NULL DEFAULT '',
		genre TEXT NOT NULL DEFAULT '',
		"key" TEXT NOT NULL DEFAULT '',
		bpm REAL,
		length TEXT NOT NULL DEFAULT '',
		comments TEXT NOT NULL DEFAULT '',
		tags TEXT NOT NULL DEFAULT '[]',
		artists TEXT NOT NULL DEFAULT '[]',
		last_updated TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`)
	require.NoError(t, err)
	_, err = db.Exec("INSERT INTO tracks (url, title) VALUES (?, ?)", "old-1", "Straße")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	got, err := s.FindTracksByTitleFragment(context.Background(), "STRASSE")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "old-1", got[0].URL)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "mysql"})
	assert.Error(t, err)
}

func TestOpenDefaultsToSQLite(t *testing.T) {
	s, err := Open(context.Background(), Config{Path: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	defer s.Close()
	assert.IsType(t, &SQLiteStore{}, s)
}

func TestLikePattern(t *testing.T) {
	assert.Equal(t, "%blue%", likePattern("Blue"))
	assert.Equal(t, "%strasse%", likePattern("Straße"))
	assert.Equal(t, `%100\%\_a\\b%`, likePattern(`100%_a\b`))
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("DJUTILS_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("DJUTILS_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	s, err := OpenPostgres(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = s.Pool().Exec(ctx, "TRUNCATE tracks, artists, platform RESTART IDENTITY")
	require.NoError(t, err)

	storeSuite(t, s)
}
