// Command vaarweggraph fetches the Dutch waterway network from
// vaarweginformatie.nl and loads it into a Neo4j graph.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/robfig/cron/v3"

	"github.com/WessleyAI/vaarweggraph/engine/domain"
	"github.com/WessleyAI/vaarweggraph/engine/graph"
	"github.com/WessleyAI/vaarweggraph/engine/loader"
	"github.com/WessleyAI/vaarweggraph/engine/source"
	"github.com/WessleyAI/vaarweggraph/pkg/config"
	"github.com/WessleyAI/vaarweggraph/pkg/metrics"
	"github.com/WessleyAI/vaarweggraph/pkg/natsutil"
	"github.com/WessleyAI/vaarweggraph/pkg/resilience"
)

type flags struct {
	configPath  string
	neo4jURL    string
	neo4jUser   string
	neo4jPass   string
	truncate    bool
	spatial     bool
	cache       bool
	store       bool
	output      string
	schedule    string
	dryRun      bool
	metricsPort int
	natsURL     string
	types       string
}

func parseFlags(fs *flag.FlagSet, args []string) (*flags, error) {
	f := &flags{}
	fs.StringVar(&f.configPath, "config", "", "YAML config file (default $VAARWEG_CONFIG)")
	fs.StringVar(&f.neo4jURL, "neo4j", "", "Neo4j bolt URL")
	fs.StringVar(&f.neo4jUser, "neo4j-user", "", "Neo4j username")
	fs.StringVar(&f.neo4jPass, "neo4j-pass", "", "Neo4j password")
	fs.BoolVar(&f.truncate, "truncate", true, "delete the graph before loading")
	fs.BoolVar(&f.spatial, "spatial", true, "build the spatial layers (needs neo4j-spatial)")
	fs.BoolVar(&f.cache, "cache", true, "reuse the cached dataset instead of fetching")
	fs.BoolVar(&f.store, "store", true, "export fetched records as CSV")
	fs.StringVar(&f.output, "output", "", "output directory for CSV exports")
	fs.StringVar(&f.schedule, "schedule", "", "cron expression; repeat the load until interrupted")
	fs.BoolVar(&f.dryRun, "dry-run", false, "load into memory instead of Neo4j")
	fs.IntVar(&f.metricsPort, "metrics-port", 0, "serve Prometheus metrics on this port (0 disables)")
	fs.StringVar(&f.natsURL, "nats", "", "NATS URL for load events")
	fs.StringVar(&f.types, "types", "", "comma separated object types to fetch (default all)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return f, nil
}

// apply overrides cfg with the flags set on the command line.
func (f *flags) apply(fs *flag.FlagSet, cfg *config.Config) {
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "neo4j":
			cfg.Neo4j.URI = f.neo4jURL
		case "neo4j-user":
			cfg.Neo4j.User = f.neo4jUser
		case "neo4j-pass":
			cfg.Neo4j.Password = f.neo4jPass
		case "truncate":
			cfg.Neo4j.Truncate = f.truncate
		case "spatial":
			cfg.Neo4j.Spatial = f.spatial
		case "cache":
			cfg.Output.Cache = f.cache
		case "store":
			cfg.Output.Export = f.store
		case "output":
			cfg.Output.Dir = f.output
		case "schedule":
			cfg.Schedule = f.schedule
		case "metrics-port":
			cfg.Metrics.Port = f.metricsPort
		case "nats":
			cfg.NATS.URL = f.natsURL
		case "types":
			cfg.Source.ObjectTypes = f.types
		}
	})
}

func main() {
	os.Exit(run(os.Args[1:], os.Stderr, os.Stdout))
}

func run(args []string, stderr, stdout io.Writer) int {
	fs := flag.NewFlagSet("vaarweggraph", flag.ContinueOnError)
	fs.SetOutput(stderr)
	f, err := parseFlags(fs, args)
	if err != nil {
		return 2
	}

	cfg, err := config.Load(f.configPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	f.apply(fs, cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	types, err := domain.ParseObjectTypes(cfg.Source.ObjectTypes)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	log, closeLog, err := setupLogging(stderr, cfg.SlogLevel(), cfg.Output.WarningsLog)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer closeLog()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	met := metrics.New()
	if cfg.Metrics.Port > 0 {
		met.ServeAsync(cfg.Metrics.Port)
		log.Info("serving metrics", "port", cfg.Metrics.Port)
	}

	a := &app{
		cfg:   cfg,
		types: types,
		source: source.New(source.Options{
			BaseURL:           cfg.Source.BaseURL,
			PageSize:          cfg.Source.PageSize,
			MaxPages:          cfg.Source.MaxPages,
			Timeout:           cfg.Source.Timeout,
			RequestsPerSecond: cfg.Source.RequestsPerSecond,
			Breaker:           resilience.NewBreaker(resilience.BreakerOpts{Trips: source.Retryable}),
			Logger:            log,
			Metrics:           met,
		}),
		store:  memoryStore,
		dryRun: f.dryRun,
		met:    met,
		log:    log,
		out:    stdout,
		now:    time.Now,
	}

	if !f.dryRun {
		driver, err := neo4j.NewDriverWithContext(cfg.Neo4j.URI, auth(cfg.Neo4j))
		if err != nil {
			log.Error("neo4j connect failed", "error", err)
			return 1
		}
		defer driver.Close(context.Background())
		if err := driver.VerifyConnectivity(ctx); err != nil {
			log.Error("neo4j verify failed", "uri", cfg.Neo4j.URI, "error", err)
			return 1
		}
		log.Info("connected to Neo4j", "uri", cfg.Neo4j.URI)
		gs := graph.New(driver, graph.Options{Database: cfg.Neo4j.Database, Logger: log})
		a.store = func() loader.Store { return gs }
	}

	if cfg.NATS.URL != "" {
		nc, err := natsutil.Connect(cfg.NATS.URL, "vaarweggraph", log)
		if err != nil {
			log.Warn("load events disabled", "error", err)
		} else {
			defer nc.Close()
			a.events = natsutil.NewAnnouncer[loader.Report](nc, cfg.NATS.Subject)
		}
	}

	if _, err := a.run(ctx); err != nil {
		log.Error("load failed", "error", err)
		return 1
	}
	if cfg.Schedule == "" {
		return 0
	}
	if err := schedule(ctx, a, cfg.Schedule); err != nil {
		log.Error("schedule failed", "schedule", cfg.Schedule, "error", err)
		return 1
	}
	return 0
}

// schedule repeats a.run on spec until ctx is cancelled. Overlapping runs
// are skipped.
func schedule(ctx context.Context, a *app, spec string) error {
	c := cron.New(
		cron.WithLocation(amsterdam),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := c.AddFunc(spec, func() {
		if _, err := a.run(ctx); err != nil {
			a.log.Error("scheduled load failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("cron %q: %w", spec, err)
	}
	a.log.Info("waiting for next run", "schedule", spec)
	c.Start()
	<-ctx.Done()
	a.log.Info("shutting down")
	<-c.Stop().Done()
	return nil
}

func auth(c config.Neo4jConfig) neo4j.AuthToken {
	if c.User == "" {
		return neo4j.NoAuth()
	}
	return neo4j.BasicAuth(c.User, c.Password, "")
}
