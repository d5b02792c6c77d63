package main

import (
	"bytes"
	"flag"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WessleyAI/vaarweggraph/pkg/config"
)

func TestFlagsOverrideOnlyWhenSet(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	f, err := parseFlags(fs, []string{"-neo4j", "bolt://graph:7687", "-truncate=false", "-types", "bridge,lock", "-metrics-port", "9102"})
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Output.Dir = "from-yaml"
	f.apply(fs, cfg)

	assert.Equal(t, "bolt://graph:7687", cfg.Neo4j.URI)
	assert.False(t, cfg.Neo4j.Truncate)
	assert.Equal(t, "bridge,lock", cfg.Source.ObjectTypes)
	assert.Equal(t, 9102, cfg.Metrics.Port)
	assert.Equal(t, "from-yaml", cfg.Output.Dir)
	assert.True(t, cfg.Output.Cache)
}

func TestRunRejectsUnknownType(t *testing.T) {
	t.Setenv(config.FileEnv, "")
	stderr := &bytes.Buffer{}
	code := run([]string{"-dry-run", "-types", "ferry"}, stderr, io.Discard)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "ferry")
}

func TestRunRejectsBadFlag(t *testing.T) {
	assert.Equal(t, 2, run([]string{"-no-such-flag"}, io.Discard, io.Discard))
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	t.Setenv(config.FileEnv, "")
	stderr := &bytes.Buffer{}
	code := run([]string{"-dry-run", "-neo4j", ""}, stderr, io.Discard)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "Neo4j.URI")
}
