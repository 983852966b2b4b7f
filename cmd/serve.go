package cmd

import (
	"github.com/spf13/cobra"

	"djutils-srv/internal/metrics"
	"djutils-srv/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the library HTTP API",
		Example: `  # Start on the configured address (default :8000)
  djutils serve

  # Start on a custom address
  djutils serve --addr 127.0.0.1:9000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if addr != "" {
				a.cfg.Server.Addr = addr
			}

			m, err := metrics.New()
			if err != nil {
				return err
			}
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			srv := server.New(a.newLibrary(store, m), m, server.Config{
				Addr:        a.cfg.Server.Addr,
				CORSOrigins: a.cfg.Server.CORSOrigins,
			}, a.logger)

			a.logger.Info("djutils api available", "addr", a.cfg.Server.Addr, "database", a.cfg.Database.Driver)
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Address to listen on (overrides server.addr)")

	return cmd
}
