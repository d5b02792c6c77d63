// Package loader turns a fetched dataset into the waterway graph. It writes
// the nodes of each label in fixed-size chunks, then derives the STREAMS and
// NEXT relationships and finally registers the spatial layers, as a staged
// pipeline whose order is checked against each stage's declared needs.
package loader

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/WessleyAI/vaarweggraph/engine/domain"
	"github.com/WessleyAI/vaarweggraph/pkg/fn"
	"github.com/WessleyAI/vaarweggraph/pkg/metrics"
)

// ChunkSize bounds the number of nodes sent to the store in one write.
const ChunkSize = 1000

// Store is a labeled property graph the loader can build into.
type Store interface {
	// Reset removes every node and relationship and ensures the Id index of
	// each label.
	Reset(ctx context.Context) error
	// CreateNodes creates one node per entity and the foreign key edges of
	// the label towards nodes that already exist.
	CreateNodes(ctx context.Context, label domain.Label, batch []domain.Node) error
	// ChainFairways derives STREAMS and returns how many edges it matched.
	ChainFairways(ctx context.Context) (int64, error)
	// ChainObstructions derives NEXT and returns how many edges it matched.
	ChainObstructions(ctx context.Context) (int64, error)
	BuildSpatialIndex(ctx context.Context, layers []domain.SpatialLayer) error
	Stats(ctx context.Context) (domain.Stats, error)
}

// Options configures a Loader.
type Options struct {
	// Truncate resets the store before loading.
	Truncate bool
	// ChunkSize defaults to the package ChunkSize.
	ChunkSize int
	// Layers defaults to domain.SpatialLayers.
	Layers  []domain.SpatialLayer
	Logger  *slog.Logger
	Metrics *metrics.Registry
}

// Loader builds the graph into a Store.
type Loader struct {
	store Store
	opts  Options
	steps []step
}

// StageError reports the stage a load failed in.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("stage %s: %v", e.Stage, e.Err) }

func (e *StageError) Unwrap() error { return e.Err }

// Report summarises one load.
type Report struct {
	RunID      uuid.UUID            `json:"run_id"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt time.Time            `json:"finished_at"`
	Truncated  bool                 `json:"truncated"`
	Nodes      map[domain.Label]int `json:"nodes"`
	Streams    int64                `json:"streams"`
	Next       int64                `json:"next"`
	Stages     []string             `json:"stages"`
	Stats      domain.Stats         `json:"stats"`
	Durations  map[string]Duration  `json:"durations,omitempty"`
}

// Duration marshals as seconds.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%.3f", time.Duration(d).Seconds())), nil
}

type state struct {
	data   domain.Dataset
	report *Report
}

// New creates a Loader and checks its stage plan.
func New(store Store, opts Options) (*Loader, error) {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = ChunkSize
	}
	if opts.Layers == nil {
		opts.Layers = domain.SpatialLayers
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	l := &Loader{store: store, opts: opts}
	l.steps = l.plan()
	if err := validatePlan(l.steps); err != nil {
		return nil, err
	}
	return l, nil
}

// Stages returns the stage names in run order.
func (l *Loader) Stages() []string {
	return fn.Map(l.steps, func(s step) string { return s.name })
}

// Run loads data into the store. Dangling foreign keys and incomplete
// numbering are not errors; any store failure aborts the run.
func (l *Loader) Run(ctx context.Context, data domain.Dataset) (Report, error) {
	report := &Report{
		RunID:     uuid.New(),
		StartedAt: time.Now().UTC(),
		Truncated: l.opts.Truncate,
		Nodes:     make(map[domain.Label]int),
		Durations: make(map[string]Duration),
	}
	log := l.opts.Logger.With("run_id", report.RunID.String())
	log.Info("load starting", "truncate", l.opts.Truncate, "stages", len(l.steps))

	stages := fn.Map(l.steps, func(s step) fn.Stage[*state, *state] {
		return fn.TracedStage(s.name, l.wrap(log, s))
	})
	res := fn.Pipeline(stages...)(ctx, &state{data: data, report: report})
	report.FinishedAt = time.Now().UTC()

	if _, err := res.Unwrap(); err != nil {
		log.Error("load failed", "error", err)
		return *report, err
	}

	stats, err := l.store.Stats(ctx)
	if err != nil {
		return *report, fmt.Errorf("stats: %w", err)
	}
	report.Stats = stats
	log.Info("load complete",
		"nodes", stats.Nodes,
		"relationships", stats.Relationships,
		"duration", report.FinishedAt.Sub(report.StartedAt))
	return *report, nil
}

func (l *Loader) wrap(log *slog.Logger, s step) fn.Stage[*state, *state] {
	return func(ctx context.Context, st *state) fn.Result[*state] {
		start := time.Now()
		err := s.run(ctx, st)
		elapsed := time.Since(start)
		l.opts.Metrics.ObserveStage(s.name, elapsed, err)
		st.report.Durations[s.name] = Duration(elapsed)
		if err != nil {
			return fn.Err[*state](&StageError{Stage: s.name, Err: err})
		}
		st.report.Stages = append(st.report.Stages, s.name)
		log.Debug("stage done", "stage", s.name, "duration", elapsed)
		return fn.Ok(st)
	}
}

func (l *Loader) reset(ctx context.Context, _ *state) error {
	return l.store.Reset(ctx)
}

// nodes returns the stage that writes every entity of a label.
func (l *Loader) nodes(label domain.Label) func(context.Context, *state) error {
	return func(ctx context.Context, st *state) error {
		entities := entitiesOf(st.data, label)
		chunks := fn.Chunk(entities, l.opts.ChunkSize)
		for i, batch := range chunks {
			if err := l.store.CreateNodes(ctx, label, batch); err != nil {
				return fmt.Errorf("chunk %d/%d of %s: %w", i+1, len(chunks), label, err)
			}
		}
		st.report.Nodes[label] = len(entities)
		l.opts.Metrics.RecordNodes(string(label), len(entities))
		l.opts.Logger.Info("nodes created", "label", label, "count", len(entities), "chunks", len(chunks))
		return nil
	}
}

func (l *Loader) chainFairways(ctx context.Context, st *state) error {
	n, err := l.store.ChainFairways(ctx)
	if err != nil {
		return err
	}
	st.report.Streams = n
	l.opts.Metrics.RecordEdges(string(domain.RelStreams), n)
	l.opts.Logger.Info("fairways chained", "streams", n)
	return nil
}

func (l *Loader) chainObstructions(ctx context.Context, st *state) error {
	n, err := l.store.ChainObstructions(ctx)
	if err != nil {
		return err
	}
	st.report.Next = n
	l.opts.Metrics.RecordEdges(string(domain.RelNext), n)
	l.opts.Logger.Info("obstructions chained", "next", n)
	return nil
}

func (l *Loader) spatialTree(ctx context.Context, _ *state) error {
	return l.store.BuildSpatialIndex(ctx, l.opts.Layers)
}

// entitiesOf maps the records of the object type behind label.
func entitiesOf(data domain.Dataset, label domain.Label) []domain.Node {
	switch label {
	case domain.LabelRoute:
		return asNodes(data.Routes())
	case domain.LabelFairway:
		return asNodes(data.Fairways())
	case domain.LabelISRS:
		return asNodes(data.ISRS())
	case domain.LabelBridge:
		return asNodes(data.Bridges())
	case domain.LabelLock:
		return asNodes(data.Locks())
	}
	return nil
}

func asNodes[T domain.Node](items []T) []domain.Node {
	return fn.Map(items, func(v T) domain.Node { return v })
}
