// Package server is the HTTP boundary of the library service.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"djutils-srv/internal/metrics"
	"djutils-srv/internal/models"
)

// Library is the service surface the handlers call.
type Library interface {
	AddTrack(ctx context.Context, t models.TrackRecord) (models.TrackRecord, error)
	GetTrack(ctx context.Context, url string) (models.TrackRecord, error)
	AddArtist(ctx context.Context, name, url string, platformID int64) (models.ArtistRecord, error)
	GetArtist(ctx context.Context, id int64) (models.ArtistRecord, error)
	AddPlatform(ctx context.Context, name, url string) (models.PlatformRecord, error)
	SimilarTracks(ctx context.Context, candidate models.TrackRecord, artists []models.ArtistRecord) ([]models.ScoredMatch, error)
}

type Config struct {
	Addr        string
	CORSOrigins []string
	BodyLimit   string
}

type Server struct {
	Echo    *echo.Echo
	lib     Library
	metrics *metrics.Metrics
	logger  *slog.Logger
	cfg     Config
}

func New(lib Library, m *metrics.Metrics, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}
	if cfg.BodyLimit == "" {
		cfg.BodyLimit = "1M"
	}

	s := &Server{
		Echo:    echo.New(),
		lib:     lib,
		metrics: m,
		logger:  logger.With("component", "server"),
		cfg:     cfg,
	}
	s.Echo.HideBanner = true
	s.Echo.HidePort = true

	s.configureMiddleware()
	s.routes()
	return s
}

func (s *Server) configureMiddleware() {
	s.Echo.Use(middleware.Recover())
	s.Echo.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	s.Echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: s.cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPut, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))
	s.Echo.Use(middleware.BodyLimit(s.cfg.BodyLimit))
	s.Echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURIPath:   true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"path", v.URIPath,
				"status", v.Status,
				"latency", v.Latency,
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				s.logger.Warn("request failed", append(attrs, "error", v.Error)...)
				return nil
			}
			s.logger.Debug("request", attrs...)
			return nil
		},
	}))
}

func (s *Server) routes() {
	s.Echo.PUT("/addTrack", s.handleAddTrack)
	s.Echo.GET("/getTrack", s.handleGetTrack)
	s.Echo.PUT("/addArtist", s.handleAddArtist)
	s.Echo.GET("/getArtist", s.handleGetArtist)
	s.Echo.PUT("/addPlatform", s.handleAddPlatform)
	s.Echo.GET("/similarTracks", s.handleSimilarTracks)
	s.Echo.GET("/healthcheck", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})
	if s.metrics != nil {
		s.Echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.cfg.Addr)
		if err := s.Echo.Start(s.cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Echo.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-serverErr
	case err := <-serverErr:
		return err
	}
}
