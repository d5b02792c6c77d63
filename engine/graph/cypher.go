package graph

import (
	"fmt"
	"strings"

	"github.com/WessleyAI/vaarweggraph/engine/domain"
)

const cypherTruncate = `CALL { MATCH (n) DETACH DELETE n } IN TRANSACTIONS OF 10000 ROWS`

// cypherIndex creates the Id index of one label.
func cypherIndex(label domain.Label) string {
	return fmt.Sprintf(
		`CREATE INDEX %s_id IF NOT EXISTS FOR (n:%s) ON (n.%s)`,
		strings.ToLower(string(label)), label, domain.AttrID)
}

// cypherCreate creates one node per row and merges each foreign key edge in
// its own subquery, so a missing target only skips that edge.
func cypherCreate(label domain.Label) string {
	var b strings.Builder
	fmt.Fprintf(&b, "UNWIND $rows AS row\nCREATE (n:%s)\nSET n = row", label)
	for _, fk := range domain.ForeignKeys[label] {
		fmt.Fprintf(&b,
			"\nWITH n\nCALL {\n  WITH n\n  MATCH (t:%s {%s: n.%s})\n  MERGE (n)-[:%s]->(t)\n}",
			fk.Target, domain.AttrID, fk.Attr, fk.Rel)
	}
	b.WriteString("\nRETURN count(n) AS nodes")
	return b.String()
}

// cypherStreams links fairway n to fairway n+1 of the same route.
const cypherStreams = `
MATCH (f1:Fairway)-[:PART_OF]->(:Route)<-[:PART_OF]-(f2:Fairway)
WHERE f2.FairwayNumber = f1.FairwayNumber + 1
MERGE (f1)-[s:STREAMS]->(f2)
RETURN count(DISTINCT s) AS edges`

// cypherNext links every obstruction that has no outgoing NEXT yet to all
// obstructions at the nearest greater RouteKmBegin on a shared route.
const cypherNext = `
MATCH (b)
WHERE (b:Bridge OR b:Lock)
  AND NOT EXISTS { MATCH (b)-[:NEXT]->(o) WHERE o:Bridge OR o:Lock }
MATCH (b)-[:LINKED_TO]->(:Route)<-[:LINKED_TO]-(bo)
WHERE (bo:Bridge OR bo:Lock) AND bo.RouteKmBegin > b.RouteKmBegin
WITH b, min(bo.RouteKmBegin) AS nextKm
MATCH (b)-[:LINKED_TO]->(:Route)<-[:LINKED_TO]-(bo)
WHERE (bo:Bridge OR bo:Lock) AND bo.RouteKmBegin = nextKm
MERGE (b)-[n:NEXT]->(bo)
SET n.km = bo.RouteKmBegin - b.RouteKmBegin
RETURN count(DISTINCT n) AS edges`

const cypherLayerExists = `
CALL spatial.layers() YIELD name
WITH name WHERE name = $layer
RETURN count(*) AS layers`

const cypherAddLayer = `CALL spatial.addWKTLayer($layer, $property)`

// cypherAddToLayer registers geometries that are not yet in an R-tree.
func cypherAddToLayer(label domain.Label) string {
	return fmt.Sprintf(`
MATCH (n:%s)
WHERE n.%s IS NOT NULL AND NOT ()-[:RTREE_REFERENCE]->(n)
CALL spatial.addNode($layer, n) YIELD node
RETURN count(node) AS added`, label, domain.AttrGeometry)
}

const cypherNodeCounts = `
MATCH (n)
UNWIND labels(n) AS label
WITH label WHERE label IN $labels
RETURN label, count(*) AS count`

const cypherRelCounts = `
MATCH ()-[r]->()
WHERE type(r) IN $types
RETURN type(r) AS type, count(*) AS count`
