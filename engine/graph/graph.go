// Package graph stores the waterway graph in Neo4j and derives its
// sequential relationships with Cypher.
package graph

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/WessleyAI/vaarweggraph/engine/domain"
	"github.com/WessleyAI/vaarweggraph/pkg/fn"
)

// Options configures a GraphStore.
type Options struct {
	// Database is the Neo4j database name; empty selects the default.
	Database string
	Logger   *slog.Logger
}

// GraphStore writes the waterway graph to Neo4j.
type GraphStore struct {
	opener SessionOpener
	log    *slog.Logger
}

// New creates a GraphStore on a driver.
func New(driver neo4j.DriverWithContext, opts Options) *GraphStore {
	return NewWithOpener(driverOpener{driver: driver, database: opts.Database}, opts)
}

// NewWithOpener creates a GraphStore on a custom session opener.
func NewWithOpener(opener SessionOpener, opts Options) *GraphStore {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &GraphStore{opener: opener, log: log.With("store", "neo4j")}
}

// Reset deletes every node and relationship and ensures the Id index of
// each label.
func (g *GraphStore) Reset(ctx context.Context) error {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	res, err := sess.Run(ctx, cypherTruncate, nil)
	if err != nil {
		return fmt.Errorf("truncate: %w", err)
	}
	if err := drain(ctx, res); err != nil {
		return fmt.Errorf("truncate: %w", err)
	}
	for _, label := range domain.Labels {
		res, err := sess.Run(ctx, cypherIndex(label), nil)
		if err == nil {
			err = drain(ctx, res)
		}
		if err != nil {
			return fmt.Errorf("index %s: %w", label, err)
		}
	}
	g.log.Info("graph truncated", "indexes", len(domain.Labels))
	return nil
}

// CreateNodes writes one batch of a label in a single transaction together
// with the batch's foreign key edges.
func (g *GraphStore) CreateNodes(ctx context.Context, label domain.Label, batch []domain.Node) error {
	if _, err := domain.SchemaFor(label); err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}
	rows := fn.Map(batch, func(n domain.Node) any { return n.Props() })

	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	created, err := sess.ExecuteWrite(ctx, func(tx CypherRunner) (any, error) {
		res, err := tx.Run(ctx, cypherCreate(label), map[string]any{"rows": rows})
		if err != nil {
			return nil, err
		}
		return single(ctx, res, "nodes")
	})
	if err != nil {
		return fmt.Errorf("create %s: %w", label, err)
	}
	g.log.Debug("batch written", "label", label, "rows", len(rows), "created", created)
	return nil
}

// ChainFairways merges STREAMS between consecutive fairways.
func (g *GraphStore) ChainFairways(ctx context.Context) (int64, error) {
	return g.derive(ctx, "STREAMS", cypherStreams)
}

// ChainObstructions merges NEXT between each obstruction and its nearest
// successors.
func (g *GraphStore) ChainObstructions(ctx context.Context) (int64, error) {
	return g.derive(ctx, "NEXT", cypherNext)
}

func (g *GraphStore) derive(ctx context.Context, name, cypher string) (int64, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	n, err := sess.ExecuteWrite(ctx, func(tx CypherRunner) (any, error) {
		res, err := tx.Run(ctx, cypher, nil)
		if err != nil {
			return nil, err
		}
		return single(ctx, res, "edges")
	})
	if err != nil {
		return 0, fmt.Errorf("derive %s: %w", name, err)
	}
	edges, _ := n.(int64)
	return edges, nil
}

// BuildSpatialIndex creates each WKT layer if missing and adds the
// geometries of its label. Requires the neo4j-spatial procedures.
func (g *GraphStore) BuildSpatialIndex(ctx context.Context, layers []domain.SpatialLayer) error {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	for _, layer := range layers {
		params := map[string]any{"layer": layer.Name, "property": domain.AttrGeometry}
		res, err := sess.Run(ctx, cypherLayerExists, params)
		if err != nil {
			return fmt.Errorf("layer %s: %w", layer.Name, err)
		}
		existing, err := single(ctx, res, "layers")
		if err != nil {
			return fmt.Errorf("layer %s: %w", layer.Name, err)
		}
		if existing == 0 {
			res, err := sess.Run(ctx, cypherAddLayer, params)
			if err == nil {
				err = drain(ctx, res)
			}
			if err != nil {
				return fmt.Errorf("add layer %s: %w", layer.Name, err)
			}
		}

		added, err := sess.ExecuteWrite(ctx, func(tx CypherRunner) (any, error) {
			res, err := tx.Run(ctx, cypherAddToLayer(layer.Label), map[string]any{"layer": layer.Name})
			if err != nil {
				return nil, err
			}
			return single(ctx, res, "added")
		})
		if err != nil {
			return fmt.Errorf("index layer %s: %w", layer.Name, err)
		}
		g.log.Info("spatial layer built", "layer", layer.Name, "label", layer.Label, "added", added)
	}
	return nil
}

// Stats counts the loader's nodes by label and relationships by type.
func (g *GraphStore) Stats(ctx context.Context) (domain.Stats, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	labels := fn.Map(domain.Labels, func(l domain.Label) any { return string(l) })
	nodes, err := counts(ctx, sess, cypherNodeCounts, map[string]any{"labels": labels}, "label")
	if err != nil {
		return domain.Stats{}, fmt.Errorf("node counts: %w", err)
	}
	types := fn.Map(domain.RelTypes, func(r domain.RelType) any { return string(r) })
	rels, err := counts(ctx, sess, cypherRelCounts, map[string]any{"types": types}, "type")
	if err != nil {
		return domain.Stats{}, fmt.Errorf("relationship counts: %w", err)
	}

	s := domain.Stats{
		Nodes:         make(map[domain.Label]int64, len(nodes)),
		Relationships: make(map[domain.RelType]int64, len(rels)),
	}
	for k, v := range nodes {
		s.Nodes[domain.Label(k)] = v
	}
	for k, v := range rels {
		s.Relationships[domain.RelType(k)] = v
	}
	return s, nil
}

func counts(ctx context.Context, r CypherRunner, cypher string, params map[string]any, key string) (map[string]int64, error) {
	result, err := r.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64)
	for result.Next(ctx) {
		rec := result.Record()
		name, _ := rec.Get(key)
		cnt, _ := rec.Get("count")
		if n, ok := name.(string); ok {
			if c, ok := cnt.(int64); ok {
				out[n] = c
			}
		}
	}
	return out, result.Err()
}
