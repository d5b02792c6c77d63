package domain

import (
	"encoding/json"
	"math"
)

// Kind tells the mapper how to normalise a source value.
type Kind int

const (
	KindAny   Kind = iota // passed through; nested values become JSON text
	KindInt               // identifiers and counters
	KindFloat             // chainage and dimensions
)

// Field maps one source attribute onto one graph attribute.
type Field struct {
	Source string
	Attr   string
	Kind   Kind
}

// Schema is the fixed rename table of one node label.
type Schema struct {
	Label  Label
	Object ObjectType
	Fields []Field
}

func plain(name string) Field { return Field{Source: name, Attr: name} }

func intField(name string) Field { return Field{Source: name, Attr: name, Kind: KindInt} }

func floatField(name string) Field { return Field{Source: name, Attr: name, Kind: KindFloat} }

func renamed(src, attr string) Field { return Field{Source: src, Attr: attr} }

// geometryField carries the WKT text under the lower-case attribute the
// spatial layers index.
var geometryField = renamed("Geometry", AttrGeometry)

// RouteSchema is the Route rename table.
var RouteSchema = Schema{Label: LabelRoute, Object: ObjectRoute, Fields: []Field{
	plain("Code"),
	plain("Description"),
	plain("ForeignCode"),
	intField("GeoGeneration"),
	plain("GeoType"),
	geometryField,
	intField(AttrID),
	plain("Name"),
	floatField(AttrRouteKmBegin),
	floatField(AttrRouteKmEnd),
	plain("VinCode"),
	plain("WaterName"),
}}

// FairwaySchema is the Fairway rename table.
var FairwaySchema = Schema{Label: LabelFairway, Object: ObjectFairway, Fields: []Field{
	plain("Direction"),
	intField(AttrFairwayNumber),
	plain("ForeignCode"),
	intField("GeoGeneration"),
	plain("GeoType"),
	geometryField,
	intField(AttrID),
	plain("Name"),
	intField(AttrRouteID),
	floatField(AttrRouteKmBegin),
	floatField(AttrRouteKmEnd),
	plain("VinCode"),
}}

// ISRSSchema is the ISRS rename table. The service spells two attributes
// differently from the other collections.
var ISRSSchema = Schema{Label: LabelISRS, Object: ObjectISRS, Fields: []Field{
	plain("Code"),
	plain("CountryCode"),
	intField("FairwayRouteId"),
	plain("Function"),
	Field{Source: "Geogeneration", Attr: "GeoGeneration", Kind: KindInt},
	plain("GeoType"),
	geometryField,
	floatField("Hectometer"),
	intField(AttrID),
	plain("Name"),
	plain("ObjectName"),
	plain("PositionCode"),
	plain("SectionNode"),
	plain("TerminalCode"),
	renamed("UnlocationCode", "UnLocationCode"),
}}

// BridgeSchema is the Bridge rename table, including the corrections of
// misspelled source attributes.
var BridgeSchema = Schema{Label: LabelBridge, Object: ObjectBridge, Fields: []Field{
	intField("AdministrationId"),
	plain("CanOpen"),
	plain("City"),
	plain("Condition"),
	intField(AttrFairwayID),
	intField("FairwaySectionId"),
	plain("ForeignCode"),
	intField("GeoGeneration"),
	plain("GeoType"),
	geometryField,
	renamed("HasOpeningsOnOtherFairway", "HasOpeningOnOtherFairway"),
	intField(AttrID),
	plain("IsRemoteControlled"),
	intField(AttrIsrsID),
	floatField("Length"),
	floatField("MhwOffset"),
	plain("MhwReferenceLevel"),
	plain("Name"),
	intField("NumberOfOpenings"),
	intField("OperatingTimesId"),
	plain("PhoneNumber"),
	renamed("ReferenceLevel", "Referencelevel"),
	renamed("ReletedBuildingComplexName", "RelatedBuildingComplexName"),
	floatField("Rotation"),
	intField(AttrRouteID),
	floatField(AttrRouteKmBegin),
	floatField(AttrRouteKmEnd),
	plain("VinCode"),
	floatField("Width"),
}}

// LockSchema is the Lock rename table.
var LockSchema = Schema{Label: LabelLock, Object: ObjectLock, Fields: []Field{
	plain("Address"),
	intField("AdministrationId"),
	plain("City"),
	plain("Condition"),
	intField(AttrFairwayID),
	intField("FairwaySectionId"),
	plain("ForeignCode"),
	intField("GeoGeneration"),
	plain("GeoType"),
	geometryField,
	intField(AttrID),
	plain("IsRemoteControlled"),
	intField(AttrIsrsID),
	floatField("Length"),
	plain("Name"),
	intField("NumberOfChambers"),
	intField("OperatingTimesId"),
	plain("PhoneNumber"),
	plain("PostalCode"),
	plain("ReferenceLevelBeBu"),
	plain("ReferenceLevelBoBi"),
	plain("RelatedBuildingComplexName"),
	intField(AttrRouteID),
	floatField(AttrRouteKmBegin),
	floatField(AttrRouteKmEnd),
	plain("VinCode"),
}}

// SchemaFor returns the rename table of a label.
func SchemaFor(l Label) (Schema, error) {
	switch l {
	case LabelRoute:
		return RouteSchema, nil
	case LabelFairway:
		return FairwaySchema, nil
	case LabelISRS:
		return ISRSSchema, nil
	case LabelBridge:
		return BridgeSchema, nil
	case LabelLock:
		return LockSchema, nil
	}
	return Schema{}, NewValidationError("label", string(l), ErrUnknownLabel)
}

// Map copies the declared fields of rec under their graph names. Absent and
// null source values are left out.
func (s Schema) Map(rec Record) Attrs {
	out := make(Attrs, len(s.Fields))
	for _, f := range s.Fields {
		v, ok := rec[f.Source]
		if !ok || v == nil {
			continue
		}
		out[f.Attr] = normalize(v, f.Kind)
	}
	return out
}

func normalize(v any, k Kind) any {
	switch k {
	case KindInt:
		if i, ok := toInt(v); ok {
			return i
		}
	case KindFloat:
		if f, ok := toFloat(v); ok {
			return f
		}
	}
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return nil
		}
		return string(b)
	}
	return v
}

func toInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) {
			return int64(x), true
		}
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, true
		}
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f, true
		}
	}
	return 0, false
}
