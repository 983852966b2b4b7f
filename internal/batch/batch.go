// Package batch enriches a spreadsheet of track links with scraped metadata.
package batch

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"djutils-srv/internal/models"
)

// TrackSource scrapes and normalizes one track page.
type TrackSource interface {
	Track(ctx context.Context, url string) (models.TrackRecord, error)
}

// TrackSink stores a scraped track.
type TrackSink interface {
	AddTrack(ctx context.Context, t models.TrackRecord) (models.TrackRecord, error)
}

type Runner struct {
	Source  TrackSource
	Sink    TrackSink // optional
	Workers int
	Logger  *slog.Logger
}

type Summary struct {
	Rows     int
	Imported int
}

// Run reads rows from in, scrapes every link and writes the enriched sheet to
// out in input order. The first failing row aborts the run and nothing is
// written.
func (r *Runner) Run(ctx context.Context, in io.Reader, out io.Writer) (Summary, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workers := r.Workers
	if workers < 1 {
		workers = 1
	}

	rows, err := ReadRows(in)
	if err != nil {
		return Summary{}, err
	}

	records := make([][]string, len(rows))
	imported := make([]bool, len(rows))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, row := range rows {
		g.Go(func() error {
			logger.Info("processing song", "line", row.Line, "n", i+1, "of", len(rows), "url", row.Link)

			t, err := r.Source.Track(ctx, row.Link)
			if err != nil {
				return fmt.Errorf("line %d: %w", row.Line, err)
			}
			records[i] = Record(row, t)

			if r.Sink != nil {
				if _, err := r.Sink.AddTrack(ctx, t); err != nil {
					return fmt.Errorf("line %d: import: %w", row.Line, err)
				}
				imported[i] = true
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	w := csv.NewWriter(out)
	if err := w.Write(OutputHeader); err != nil {
		return Summary{}, err
	}
	if err := w.WriteAll(records); err != nil {
		return Summary{}, err
	}

	s := Summary{Rows: len(rows)}
	for _, ok := range imported {
		if ok {
			s.Imported++
		}
	}
	return s, nil
}
