package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"
	_ "time/tzdata"

	"github.com/WessleyAI/vaarweggraph/engine/cache"
	"github.com/WessleyAI/vaarweggraph/engine/domain"
	"github.com/WessleyAI/vaarweggraph/engine/export"
	"github.com/WessleyAI/vaarweggraph/engine/loader"
	"github.com/WessleyAI/vaarweggraph/engine/memgraph"
	"github.com/WessleyAI/vaarweggraph/engine/source"
	"github.com/WessleyAI/vaarweggraph/pkg/config"
	"github.com/WessleyAI/vaarweggraph/pkg/metrics"
	"github.com/WessleyAI/vaarweggraph/pkg/natsutil"
)

// stampLayout names the output files of a run.
const stampLayout = "2006-01-02-15-04-05"

var amsterdam = mustLocation("Europe/Amsterdam")

func mustLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

type fetcher interface {
	FetchAll(ctx context.Context, types []domain.ObjectType) (domain.Dataset, error)
}

// app runs one fetch and load cycle per call to run.
type app struct {
	cfg     *config.Config
	types   []domain.ObjectType
	source  fetcher
	store   func() loader.Store
	dryRun  bool
	met     *metrics.Registry
	events  *natsutil.Announcer[loader.Report]
	log     *slog.Logger
	out     io.Writer
	now     func() time.Time
	refresh bool
}

// prefix is the path prefix of the CSV files written at t.
func (a *app) prefix(t time.Time) string {
	return filepath.Join(a.cfg.Output.Dir, t.In(amsterdam).Format(stampLayout))
}

func (a *app) run(ctx context.Context) (loader.Report, error) {
	start := time.Now()
	report, err := a.cycle(ctx)
	a.met.RecordRun(time.Since(start), err)
	if err != nil {
		return report, err
	}
	// Scheduled cycles after the first always fetch fresh data.
	a.refresh = true

	printSummary(a.out, report, a.dryRun)
	if err := a.events.Announce(ctx, report); err != nil {
		a.log.Warn("load event not published", "error", err)
	}
	return report, nil
}

func (a *app) cycle(ctx context.Context) (loader.Report, error) {
	data, err := a.dataset(ctx)
	if err != nil {
		return loader.Report{}, err
	}

	layers := domain.SpatialLayers
	if !a.cfg.Neo4j.Spatial {
		layers = []domain.SpatialLayer{}
	}
	ld, err := loader.New(a.store(), loader.Options{
		Truncate: a.cfg.Neo4j.Truncate,
		Layers:   layers,
		Logger:   a.log,
		Metrics:  a.met,
	})
	if err != nil {
		return loader.Report{}, err
	}
	return ld.Run(ctx, data)
}

// dataset reads the cache when enabled and present; otherwise it fetches,
// exports and caches. A partial fetch is loaded but not cached.
func (a *app) dataset(ctx context.Context) (domain.Dataset, error) {
	path := a.cfg.Output.CachePath
	if a.cfg.Output.Cache && !a.refresh {
		data, savedAt, err := cache.Load(path)
		switch {
		case err == nil:
			a.log.Info("using cached dataset", "path", path, "saved_at", savedAt)
			return data, nil
		case errors.Is(err, domain.ErrCacheMiss):
			a.log.Info("no cached dataset, fetching", "path", path)
		default:
			a.log.Warn("cache unreadable, fetching", "path", path, "error", err)
		}
	}

	data, err := a.source.FetchAll(ctx, a.types)
	var partial *source.PartialError
	switch {
	case errors.As(err, &partial):
		a.log.Warn("loading partial dataset", "error", err)
	case err != nil:
		return nil, fmt.Errorf("fetch: %w", err)
	}

	if a.cfg.Output.Export {
		files, err := export.WriteAll(a.prefix(a.now()), data)
		if err != nil {
			a.log.Warn("csv export failed", "error", err)
		} else {
			a.log.Info("exported csv", "files", len(files))
		}
	}
	// An incomplete dataset is never cached, so the next run fetches again.
	if a.cfg.Output.Cache && partial == nil {
		if err := cache.Save(path, data); err != nil {
			a.log.Warn("cache not saved", "path", path, "error", err)
		}
	}
	return data, nil
}

// memoryStore gives each dry run an empty in-memory graph.
func memoryStore() loader.Store { return memgraph.New() }
