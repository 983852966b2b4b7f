package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"djutils-srv/internal/config"
	"djutils-srv/internal/database"
	"djutils-srv/internal/library"
	"djutils-srv/internal/metrics"
	"djutils-srv/internal/scraper"
)

// app carries what every subcommand shares once flags are parsed.
type app struct {
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
}

func NewRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "djutils",
		Short: "DJ library metadata service",
		Long: `djutils scrapes track metadata from Beatport and Traxsource pages, keeps a
library of tracks, artists and platforms, and finds stored tracks that are
likely the same recording as a new one.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			logger, err := config.NewLogger(cfg.Log, os.Stderr)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			a.cfg, a.logger = cfg, logger
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to a YAML config file (default ./djutils.yaml if present)")

	cmd.AddCommand(newServeCmd(a))
	cmd.AddCommand(newFetchCmd(a))
	cmd.AddCommand(newBatchCmd(a))

	return cmd
}

func (a *app) openStore(ctx context.Context) (database.Store, error) {
	store, err := database.Open(ctx, database.Config{
		Driver: a.cfg.Database.Driver,
		Path:   a.cfg.Database.Path,
		DSN:    a.cfg.Database.DSN,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return store, nil
}

func (a *app) newLibrary(store database.Store, m *metrics.Metrics) *library.Service {
	return library.New(store, library.Config{
		MinTitleOverlap: a.cfg.Match.MinTitleOverlap,
		MinScore:        a.cfg.Match.MinScore,
		Limit:           a.cfg.Match.Limit,
		CacheTTL:        a.cfg.Cache.TTL,
	}, m, a.logger)
}

func (a *app) newScrapers(m *metrics.Metrics) *scraper.Registry {
	f := scraper.NewFetcher(scraper.FetcherConfig{
		RequestsPerSecond: a.cfg.Scraper.RequestsPerSecond,
		Timeout:           a.cfg.Scraper.Timeout,
		UserAgent:         a.cfg.Scraper.UserAgent,
	})
	return scraper.NewRegistry(f, m, a.logger)
}
