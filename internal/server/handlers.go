package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"djutils-srv/internal/extract"
	"djutils-srv/internal/models"
)

type artistRequest struct {
	Name       string `json:"name"`
	URL        string `json:"url"`
	PlatformID int64  `json:"platform_id"`
}

type platformRequest struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// statusOf maps the error taxonomy onto HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidField), errors.Is(err, models.ErrUnrecognizedPlatform):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c echo.Context, err error) error {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request error", "path", c.Path(), "error", err,
			"request_id", c.Response().Header().Get(echo.HeaderXRequestID))
		return echo.NewHTTPError(status, http.StatusText(status)).SetInternal(err)
	}
	return echo.NewHTTPError(status, err.Error())
}

// decodeTrack runs a JSON track document through the same field mapping
// scraped pages go through.
func decodeTrack(r io.Reader) (models.TrackRecord, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return models.TrackRecord{}, models.InvalidField("track", "body", err)
	}
	return extract.Normalize(raw)
}

// decodeArtists reads the similarTracks artist list: names, {name,url}
// objects or stored artist ids.
func decodeArtists(s string) ([]models.ArtistRef, error) {
	if strings.TrimSpace(s) == "" {
		return []models.ArtistRef{}, nil
	}
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, models.InvalidField("artists", s, err)
	}
	return extract.ParseArtists(raw)
}

func (s *Server) handleAddTrack(c echo.Context) error {
	t, err := decodeTrack(c.Request().Body)
	if err != nil {
		return s.fail(c, err)
	}
	saved, err := s.lib.AddTrack(c.Request().Context(), t)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, saved)
}

func (s *Server) handleGetTrack(c echo.Context) error {
	url := c.QueryParam("url")
	if strings.TrimSpace(url) == "" {
		return s.fail(c, models.InvalidField("url", url, nil))
	}
	t, err := s.lib.GetTrack(c.Request().Context(), url)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

func (s *Server) handleAddArtist(c echo.Context) error {
	var req artistRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return s.fail(c, models.InvalidField("artist", "body", err))
	}
	a, err := s.lib.AddArtist(c.Request().Context(), req.Name, req.URL, req.PlatformID)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

func (s *Server) handleGetArtist(c echo.Context) error {
	raw := c.QueryParam("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return s.fail(c, models.InvalidField("id", raw, err))
	}
	a, err := s.lib.GetArtist(c.Request().Context(), id)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

func (s *Server) handleAddPlatform(c echo.Context) error {
	var req platformRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return s.fail(c, models.InvalidField("platform", "body", err))
	}
	p, err := s.lib.AddPlatform(c.Request().Context(), req.Name, req.URL)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) handleSimilarTracks(c echo.Context) error {
	rawTrack := c.QueryParam("track")
	if strings.TrimSpace(rawTrack) == "" {
		return s.fail(c, models.InvalidField("track", rawTrack, nil))
	}
	candidate, err := decodeTrack(bytes.NewBufferString(rawTrack))
	if err != nil {
		return s.fail(c, err)
	}

	refs, err := decodeArtists(c.QueryParam("artists"))
	if err != nil {
		return s.fail(c, err)
	}

	// a list of names is compared as given; any stored id sends the whole
	// list through the candidate so the library resolves it in order
	var artists []models.ArtistRecord
	for _, r := range refs {
		if r.ID > 0 {
			artists = nil
			candidate.Artists = refs
			break
		}
		artists = append(artists, models.ArtistRecord{Name: r.Name, URL: r.URL})
	}

	matches, err := s.lib.SimilarTracks(c.Request().Context(), candidate, artists)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, matches)
}
