package domain

import (
	"maps"

	"github.com/WessleyAI/vaarweggraph/pkg/fn"
)

// Attrs are the graph attributes of one node, keyed by graph name.
type Attrs map[string]any

// Int returns an integer attribute.
func (a Attrs) Int(key string) (int64, bool) {
	v, ok := a[key]
	if !ok {
		return 0, false
	}
	return toInt(v)
}

// Float returns a numeric attribute as float64.
func (a Attrs) Float(key string) (float64, bool) {
	v, ok := a[key]
	if !ok {
		return 0, false
	}
	return toFloat(v)
}

// String returns a string attribute.
func (a Attrs) String(key string) (string, bool) {
	s, ok := a[key].(string)
	return s, ok
}

func (a Attrs) intPtr(key string) *int64 {
	if v, ok := a.Int(key); ok {
		return &v
	}
	return nil
}

func (a Attrs) floatPtr(key string) *float64 {
	if v, ok := a.Float(key); ok {
		return &v
	}
	return nil
}

func (a Attrs) stringPtr(key string) *string {
	if v, ok := a.String(key); ok {
		return &v
	}
	return nil
}

// Node is implemented by every entity the loader writes.
type Node interface {
	NodeLabel() Label
	// Props returns the attributes to store, derived ones included.
	Props() map[string]any
}

// Route is a waterway route.
type Route struct {
	ID           *int64
	Code         *string
	Name         *string
	WaterName    *string
	RouteKmBegin *float64
	RouteKmEnd   *float64
	Geometry     *string
	Attrs        Attrs
}

// RouteFromRecord maps a source record onto a Route.
func RouteFromRecord(rec Record) Route {
	a := RouteSchema.Map(rec)
	return Route{
		ID:           a.intPtr(AttrID),
		Code:         a.stringPtr("Code"),
		Name:         a.stringPtr("Name"),
		WaterName:    a.stringPtr("WaterName"),
		RouteKmBegin: a.floatPtr(AttrRouteKmBegin),
		RouteKmEnd:   a.floatPtr(AttrRouteKmEnd),
		Geometry:     a.stringPtr(AttrGeometry),
		Attrs:        a,
	}
}

func (Route) NodeLabel() Label { return LabelRoute }

func (r Route) Props() map[string]any { return maps.Clone(r.Attrs) }

// Fairway is a numbered navigable segment of a route.
type Fairway struct {
	ID            *int64
	FairwayNumber *int64
	RouteID       *int64
	RouteKmBegin  *float64
	RouteKmEnd    *float64
	Geometry      *string
	Attrs         Attrs
}

// FairwayFromRecord maps a source record onto a Fairway.
func FairwayFromRecord(rec Record) Fairway {
	a := FairwaySchema.Map(rec)
	return Fairway{
		ID:            a.intPtr(AttrID),
		FairwayNumber: a.intPtr(AttrFairwayNumber),
		RouteID:       a.intPtr(AttrRouteID),
		RouteKmBegin:  a.floatPtr(AttrRouteKmBegin),
		RouteKmEnd:    a.floatPtr(AttrRouteKmEnd),
		Geometry:      a.stringPtr(AttrGeometry),
		Attrs:         a,
	}
}

// Km is the fairway length along its route, nil when either chainage
// marker is missing.
func (f Fairway) Km() *float64 {
	if f.RouteKmBegin == nil || f.RouteKmEnd == nil {
		return nil
	}
	km := *f.RouteKmEnd - *f.RouteKmBegin
	return &km
}

func (Fairway) NodeLabel() Label { return LabelFairway }

func (f Fairway) Props() map[string]any {
	p := maps.Clone(f.Attrs)
	if p == nil {
		p = make(map[string]any, 1)
	}
	if km := f.Km(); km != nil {
		p[AttrKm] = *km
	}
	return p
}

// ISRS is an ISRS location code.
type ISRS struct {
	ID           *int64
	Code         *string
	CountryCode  *string
	Function     *string
	PositionCode *string
	Geometry     *string
	Attrs        Attrs
}

// ISRSFromRecord maps a source record onto an ISRS node.
func ISRSFromRecord(rec Record) ISRS {
	a := ISRSSchema.Map(rec)
	return ISRS{
		ID:           a.intPtr(AttrID),
		Code:         a.stringPtr("Code"),
		CountryCode:  a.stringPtr("CountryCode"),
		Function:     a.stringPtr("Function"),
		PositionCode: a.stringPtr("PositionCode"),
		Geometry:     a.stringPtr(AttrGeometry),
		Attrs:        a,
	}
}

func (ISRS) NodeLabel() Label { return LabelISRS }

func (i ISRS) Props() map[string]any { return maps.Clone(i.Attrs) }

// Obstruction holds what bridges and locks share: their position on a
// route and their foreign keys.
type Obstruction struct {
	ID           *int64
	RouteID      *int64
	FairwayID    *int64
	IsrsID       *int64
	RouteKmBegin *float64
	RouteKmEnd   *float64
	Geometry     *string
	Attrs        Attrs
}

func obstructionFrom(a Attrs) Obstruction {
	return Obstruction{
		ID:           a.intPtr(AttrID),
		RouteID:      a.intPtr(AttrRouteID),
		FairwayID:    a.intPtr(AttrFairwayID),
		IsrsID:       a.intPtr(AttrIsrsID),
		RouteKmBegin: a.floatPtr(AttrRouteKmBegin),
		RouteKmEnd:   a.floatPtr(AttrRouteKmEnd),
		Geometry:     a.stringPtr(AttrGeometry),
		Attrs:        a,
	}
}

// Bridge is a fixed or movable bridge.
type Bridge struct {
	Obstruction
	NumberOfOpenings *int64
}

// BridgeFromRecord maps a source record onto a Bridge.
func BridgeFromRecord(rec Record) Bridge {
	a := BridgeSchema.Map(rec)
	return Bridge{Obstruction: obstructionFrom(a), NumberOfOpenings: a.intPtr("NumberOfOpenings")}
}

func (Bridge) NodeLabel() Label { return LabelBridge }

func (b Bridge) Props() map[string]any { return maps.Clone(b.Attrs) }

// Lock is a lock complex.
type Lock struct {
	Obstruction
	NumberOfChambers *int64
}

// LockFromRecord maps a source record onto a Lock.
func LockFromRecord(rec Record) Lock {
	a := LockSchema.Map(rec)
	return Lock{Obstruction: obstructionFrom(a), NumberOfChambers: a.intPtr("NumberOfChambers")}
}

func (Lock) NodeLabel() Label { return LabelLock }

func (l Lock) Props() map[string]any { return maps.Clone(l.Attrs) }

// Routes maps the route records of a dataset.
func (d Dataset) Routes() []Route { return fn.Map(d[ObjectRoute], RouteFromRecord) }

// Fairways maps the fairway records of a dataset.
func (d Dataset) Fairways() []Fairway { return fn.Map(d[ObjectFairway], FairwayFromRecord) }

// ISRS maps the ISRS records of a dataset.
func (d Dataset) ISRS() []ISRS { return fn.Map(d[ObjectISRS], ISRSFromRecord) }

// Bridges maps the bridge records of a dataset.
func (d Dataset) Bridges() []Bridge { return fn.Map(d[ObjectBridge], BridgeFromRecord) }

// Locks maps the lock records of a dataset.
func (d Dataset) Locks() []Lock { return fn.Map(d[ObjectLock], LockFromRecord) }
