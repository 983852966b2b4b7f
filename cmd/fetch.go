package cmd

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

func newFetchCmd(a *app) *cobra.Command {
	var (
		save    bool
		similar bool
	)

	cmd := &cobra.Command{
		Use:   "fetch <url>",
		Short: "Scrape one track page and print its metadata",
		Args:  cobra.ExactArgs(1),
		Example: `  # Print the normalized metadata of a Beatport track
  djutils fetch https://www.beatport.com/track/blue-mile/18367412

  # Store it and list similar stored tracks
  djutils fetch --save --similar https://www.traxsource.com/track/12172154/sabali`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			t, err := a.newScrapers(nil).Track(ctx, args[0])
			if err != nil {
				return err
			}

			out := map[string]any{"track": t}
			if save || similar {
				store, err := a.openStore(ctx)
				if err != nil {
					return err
				}
				defer store.Close()
				lib := a.newLibrary(store, nil)

				if similar {
					matches, err := lib.SimilarTracks(ctx, t, nil)
					if err != nil {
						return err
					}
					out["similar"] = matches
				}
				if save {
					if t, err = lib.AddTrack(ctx, t); err != nil {
						return err
					}
					out["track"] = t
				}
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	cmd.Flags().BoolVar(&save, "save", false, "Store the track in the library")
	cmd.Flags().BoolVar(&similar, "similar", false, "List stored tracks similar to the fetched one")

	return cmd
}
