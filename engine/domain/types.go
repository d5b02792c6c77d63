// Package domain defines the waterway object types, graph labels and the
// fixed record-to-node schema shared by the fetch, cache and load stages.
package domain

// ObjectType names a collection in the vaarweginformatie data service.
type ObjectType string

const (
	ObjectRoute          ObjectType = "route"
	ObjectFairway        ObjectType = "fairway"
	ObjectISRS           ObjectType = "isrs"
	ObjectBridge         ObjectType = "bridge"
	ObjectLock           ObjectType = "lock"
	ObjectOperatingTimes ObjectType = "operatingtimes"
)

// AllObjectTypes lists every collection fetched by default, in fetch order.
var AllObjectTypes = []ObjectType{
	ObjectISRS, ObjectFairway, ObjectBridge, ObjectLock, ObjectRoute, ObjectOperatingTimes,
}

// Label is a graph node label.
type Label string

const (
	LabelRoute   Label = "Route"
	LabelFairway Label = "Fairway"
	LabelISRS    Label = "ISRS"
	LabelBridge  Label = "Bridge"
	LabelLock    Label = "Lock"
)

// Labels lists the node labels in load order.
var Labels = []Label{LabelRoute, LabelFairway, LabelISRS, LabelBridge, LabelLock}

// RelType is a graph relationship type.
type RelType string

const (
	RelPartOf   RelType = "PART_OF"
	RelLinkedTo RelType = "LINKED_TO"
	RelStreams  RelType = "STREAMS"
	RelNext     RelType = "NEXT"
)

// RelTypes lists every relationship type the loader produces.
var RelTypes = []RelType{RelPartOf, RelLinkedTo, RelStreams, RelNext}

// Graph attribute names used by the loader itself.
const (
	AttrID            = "Id"
	AttrRouteID       = "RouteId"
	AttrFairwayID     = "FairwayId"
	AttrIsrsID        = "IsrsId"
	AttrFairwayNumber = "FairwayNumber"
	AttrRouteKmBegin  = "RouteKmBegin"
	AttrRouteKmEnd    = "RouteKmEnd"
	AttrGeometry      = "geometry"
	AttrKm            = "km"
)

// Record is one flat object as delivered by the data service.
type Record map[string]any

// Dataset holds the fetched records per object type.
type Dataset map[ObjectType][]Record

// Count returns the number of records of the given type.
func (d Dataset) Count(t ObjectType) int { return len(d[t]) }

// SpatialLayer registers the WKT geometry of one label under a layer name.
type SpatialLayer struct {
	Name  string
	Label Label
}

// SpatialLayers are the layers built after every load.
var SpatialLayers = []SpatialLayer{
	{Name: "dwg", Label: LabelFairway},
	{Name: "dwg-route", Label: LabelRoute},
}

// Stats summarises a loaded graph.
type Stats struct {
	Nodes         map[Label]int64   `json:"nodes"`
	Relationships map[RelType]int64 `json:"relationships"`
}

// ForeignKey connects a node to the node of Target whose Id equals the
// value of Attr.
type ForeignKey struct {
	Attr   string
	Rel    RelType
	Target Label
}

// ForeignKeys lists the key-derived edges per source label.
var ForeignKeys = map[Label][]ForeignKey{
	LabelFairway: {
		{Attr: AttrRouteID, Rel: RelPartOf, Target: LabelRoute},
	},
	LabelBridge: obstructionKeys,
	LabelLock:   obstructionKeys,
}

var obstructionKeys = []ForeignKey{
	{Attr: AttrRouteID, Rel: RelLinkedTo, Target: LabelRoute},
	{Attr: AttrFairwayID, Rel: RelLinkedTo, Target: LabelFairway},
	{Attr: AttrIsrsID, Rel: RelLinkedTo, Target: LabelISRS},
}

// IsObstruction reports whether l is a Bridge or Lock label.
func IsObstruction(l Label) bool { return l == LabelBridge || l == LabelLock }
