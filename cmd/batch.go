package cmd

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"djutils-srv/internal/batch"
)

func newBatchCmd(a *app) *cobra.Command {
	var (
		output   string
		workers  int
		doImport bool
	)

	cmd := &cobra.Command{
		Use:   "batch <input.csv>",
		Short: "Enrich a CSV of track links with scraped metadata",
		Long: `Reads a CSV with a Link column, scrapes every link and writes the enriched
sheet with title, mix, artists, bpm, genre and key next to the copied
Category, DownloadPreference, PersonalLikenessFactor, VocalsPresent, Notes
and Keywords columns. A failing row aborts the run.`,
		Args: cobra.ExactArgs(1),
		Example: `  djutils batch songs.csv
  djutils batch songs.csv --output enriched.csv --workers 2 --import`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			in, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer in.Close()

			if workers <= 0 {
				workers = a.cfg.Batch.Workers
			}
			r := &batch.Runner{
				Source:  a.newScrapers(nil),
				Workers: workers,
				Logger:  a.logger,
			}
			if doImport {
				store, err := a.openStore(ctx)
				if err != nil {
					return err
				}
				defer store.Close()
				r.Sink = a.newLibrary(store, nil)
			}

			var buf bytes.Buffer
			summary, err := r.Run(ctx, in, &buf)
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			a.logger.Info("batch finished", "rows", summary.Rows, "imported", summary.Imported, "output", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "songs_metadata_filled.csv", "Where to write the enriched CSV")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Concurrent scrapes (default batch.workers)")
	cmd.Flags().BoolVar(&doImport, "import", false, "Also store every scraped track in the library")

	return cmd
}
