// Package chain derives the sequential relationships of the waterway graph
// without a query language: consecutive fairways along a route and the
// nearest next obstruction along a route.
package chain

import (
	"cmp"
	"slices"

	"github.com/WessleyAI/vaarweggraph/pkg/fn"
)

// Member is a fairway reduced to what STREAMS needs. Node is an opaque
// store handle.
type Member struct {
	Node   int64
	Route  int64
	Number int64
}

// Point is an obstruction placed on a route at chainage Km.
type Point struct {
	Node  int64
	Route int64
	Km    float64
}

// Link is a derived directed edge. Km is the distance for NEXT links and
// zero for STREAMS.
type Link struct {
	From int64
	To   int64
	Km   float64
}

type pair struct{ from, to int64 }

// Streams links every member numbered n to every member numbered n+1 on the
// same route. Gaps produce nothing; repeated numbers produce one link per
// matching pair. A member listed under several routes is joined on each.
func Streams(members []Member) []Link {
	var out []Link
	seen := make(map[pair]bool)
	for _, group := range sortedGroups(members, func(m Member) int64 { return m.Route }) {
		byNumber := fn.GroupBy(group, func(m Member) int64 { return m.Number })
		for _, f1 := range group {
			for _, f2 := range byNumber[f1.Number+1] {
				p := pair{f1.Node, f2.Node}
				if seen[p] {
					continue
				}
				seen[p] = true
				out = append(out, Link{From: f1.Node, To: f2.Node})
			}
		}
	}
	return out
}

// Successors links each eligible point to every point at the smallest
// chainage strictly greater than its own across all routes it shares. Ties
// at that chainage are all linked. Points with nothing further along get no
// link. A nil eligible admits every point.
func Successors(points []Point, eligible func(node int64) bool) []Link {
	groups := sortedGroups(points, func(p Point) int64 { return p.Route })
	for _, group := range groups {
		slices.SortStableFunc(group, func(a, b Point) int { return cmp.Compare(a.Km, b.Km) })
	}

	nearest := make(map[int64]float64)
	for _, group := range groups {
		for i, b := range group {
			if eligible != nil && !eligible(b.Node) {
				continue
			}
			j := after(group, i)
			if j == len(group) {
				continue
			}
			if km, ok := nearest[b.Node]; !ok || group[j].Km < km {
				nearest[b.Node] = group[j].Km
			}
		}
	}

	var out []Link
	seen := make(map[pair]bool)
	for _, group := range groups {
		for i, b := range group {
			next, ok := nearest[b.Node]
			if !ok {
				continue
			}
			for j := after(group, i); j < len(group) && group[j].Km == next; j++ {
				bo := group[j]
				p := pair{b.Node, bo.Node}
				if bo.Node == b.Node || seen[p] {
					continue
				}
				seen[p] = true
				out = append(out, Link{From: b.Node, To: bo.Node, Km: bo.Km - b.Km})
			}
		}
	}
	return out
}

// after returns the index of the first point in a sorted group that lies
// strictly beyond group[i].
func after(group []Point, i int) int {
	j := i + 1
	for j < len(group) && group[j].Km <= group[i].Km {
		j++
	}
	return j
}

// sortedGroups groups items by route and returns the groups in route order
// so results are deterministic.
func sortedGroups[T any](items []T, route func(T) int64) [][]T {
	groups := fn.GroupBy(items, route)
	keys := make([]int64, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make([][]T, 0, len(keys))
	for _, k := range keys {
		out = append(out, groups[k])
	}
	return out
}
