package main

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/WessleyAI/vaarweggraph/engine/domain"
	"github.com/WessleyAI/vaarweggraph/engine/loader"
)

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	labelColor  = color.New(color.FgYellow)
	okColor     = color.New(color.FgGreen, color.Bold)
)

// printSummary writes the node and relationship counts of a finished load.
func printSummary(w io.Writer, r loader.Report, dryRun bool) {
	target := "neo4j"
	if dryRun {
		target = "memory (dry run)"
	}
	headerColor.Fprintf(w, "\nvaarweggraph run %s\n", r.RunID)
	fmt.Fprintf(w, "  target     %s\n", target)
	fmt.Fprintf(w, "  truncated  %t\n", r.Truncated)
	fmt.Fprintf(w, "  duration   %s\n\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))

	headerColor.Fprintln(w, "  nodes")
	for _, l := range domain.Labels {
		labelColor.Fprintf(w, "    %-10s", l)
		fmt.Fprintf(w, " %8d\n", r.Stats.Nodes[l])
	}
	headerColor.Fprintln(w, "  relationships")
	for _, t := range domain.RelTypes {
		labelColor.Fprintf(w, "    %-10s", t)
		fmt.Fprintf(w, " %8d\n", r.Stats.Relationships[t])
	}
	okColor.Fprintln(w, "\ndone")
}
