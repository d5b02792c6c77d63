//go:build integration

package graph

import (
	"context"
	"os"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WessleyAI/vaarweggraph/engine/domain"
	"github.com/WessleyAI/vaarweggraph/engine/loader"
)

func testDriver(t *testing.T) neo4j.DriverWithContext {
	t.Helper()
	url := envOr("NEO4J_URL", "neo4j://localhost:7687")
	auth := neo4j.NoAuth()
	if user := os.Getenv("NEO4J_USER"); user != "" {
		auth = neo4j.BasicAuth(user, os.Getenv("NEO4J_PASSWORD"), "")
	}
	driver, err := neo4j.NewDriverWithContext(url, auth)
	require.NoError(t, err, "neo4j connect")
	ctx := context.Background()
	require.NoError(t, driver.VerifyConnectivity(ctx), "neo4j verify")
	t.Cleanup(func() {
		sess := driver.NewSession(ctx, neo4j.SessionConfig{})
		sess.Run(ctx, "MATCH (n) DETACH DELETE n", nil)
		sess.Close(ctx)
		driver.Close(ctx)
	})
	return driver
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// layers skips the spatial stage unless the server has neo4j-spatial.
func layers() []domain.SpatialLayer {
	if os.Getenv("NEO4J_SPATIAL") != "" {
		return domain.SpatialLayers
	}
	return []domain.SpatialLayer{}
}

func dataset() domain.Dataset {
	return domain.Dataset{
		domain.ObjectRoute: {
			{"Id": float64(1), "Name": "A", "Geometry": "LINESTRING (4.0 52.0, 4.1 52.1)"},
			{"Id": float64(2), "Name": "B", "Geometry": "LINESTRING (5.0 52.0, 5.1 52.1)"},
		},
		domain.ObjectFairway: {
			{"Id": float64(11), "RouteId": float64(1), "FairwayNumber": float64(1), "RouteKmBegin": 0.0, "RouteKmEnd": 10.0, "Geometry": "LINESTRING (4.0 52.0, 4.05 52.05)"},
			{"Id": float64(12), "RouteId": float64(1), "FairwayNumber": float64(2), "RouteKmBegin": 10.0, "RouteKmEnd": 20.0},
			{"Id": float64(13), "RouteId": float64(1), "FairwayNumber": float64(3), "RouteKmBegin": 20.0, "RouteKmEnd": 30.0},
		},
		domain.ObjectBridge: {
			{"Id": float64(101), "RouteId": float64(1), "RouteKmBegin": 5.0},
			{"Id": float64(102), "RouteId": float64(1), "RouteKmBegin": 15.0},
			{"Id": float64(103), "RouteId": float64(99), "RouteKmBegin": 1.0},
		},
	}
}

func TestNeo4j_LoadWaterway(t *testing.T) {
	store := New(testDriver(t), Options{Database: os.Getenv("NEO4J_DATABASE")})
	l, err := loader.New(store, loader.Options{Truncate: true, Layers: layers()})
	require.NoError(t, err)
	ctx := context.Background()

	first, err := l.Run(ctx, dataset())
	require.NoError(t, err, "first run")
	assert.Equal(t, int64(3), first.Stats.Nodes[domain.LabelBridge])
	assert.Equal(t, int64(2), first.Stats.Relationships[domain.RelStreams])
	assert.Equal(t, int64(1), first.Stats.Relationships[domain.RelNext])
	assert.Equal(t, int64(2), first.Stats.Relationships[domain.RelLinkedTo], "dangling route key skipped")

	second, err := l.Run(ctx, dataset())
	require.NoError(t, err, "second run")
	for _, label := range domain.Labels {
		assert.Equal(t, first.Stats.Nodes[label], second.Stats.Nodes[label], "%s nodes after rerun", label)
	}
	for _, rel := range domain.RelTypes {
		assert.Equal(t, first.Stats.Relationships[rel], second.Stats.Relationships[rel], "%s edges after rerun", rel)
	}
}

func TestNeo4j_NextKm(t *testing.T) {
	driver := testDriver(t)
	store := New(driver, Options{})
	l, err := loader.New(store, loader.Options{Truncate: true, Layers: layers()})
	require.NoError(t, err)
	ctx := context.Background()
	_, err = l.Run(ctx, dataset())
	require.NoError(t, err)

	sess := driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)
	res, err := sess.Run(ctx, `MATCH (a:Bridge)-[n:NEXT]->(b:Bridge) RETURN a.Id AS a, b.Id AS b, n.km AS km`, nil)
	require.NoError(t, err)
	require.True(t, res.Next(ctx), "no NEXT edge")
	rec := res.Record()
	a, _ := rec.Get("a")
	b, _ := rec.Get("b")
	km, _ := rec.Get("km")
	assert.Equal(t, int64(101), a)
	assert.Equal(t, int64(102), b)
	assert.Equal(t, 10.0, km)
}
