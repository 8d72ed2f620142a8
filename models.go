// Package converter turns KML documents into render-ready GeoJSON feature
// collections and derives summary and per-feature reports from them.
package converter

import (
	"encoding/json"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Kind is the GeoJSON type name of a geometry.
type Kind string

// Geometry kinds produced by the extractors.
const (
	KindPoint              Kind = "Point"
	KindLineString         Kind = "LineString"
	KindPolygon            Kind = "Polygon"
	KindMultiPoint         Kind = "MultiPoint"
	KindMultiLineString    Kind = "MultiLineString"
	KindMultiPolygon       Kind = "MultiPolygon"
	KindGeometryCollection Kind = "GeometryCollection"
)

// TrackedKinds are the kinds counted by Summarize, in report order.
var TrackedKinds = []Kind{
	KindPoint,
	KindLineString,
	KindPolygon,
	KindMultiPoint,
	KindMultiLineString,
	KindMultiPolygon,
}

// KindOf returns the kind of g. A nil geometry has the empty kind.
func KindOf(g orb.Geometry) Kind {
	if g == nil {
		return ""
	}
	return Kind(g.GeoJSONType())
}

// Properties is the fixed property record carried by every feature.
type Properties struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Feature is one geometry with its name and description.
type Feature struct {
	Geometry   orb.Geometry
	Properties Properties
}

// Kind returns the kind of the feature's geometry.
func (f Feature) Kind() Kind {
	return KindOf(f.Geometry)
}

// FeatureCollection is an ordered list of features. Order is discovery order.
type FeatureCollection []Feature

// GeoJSON converts the collection to the standard interchange structure.
func (fc FeatureCollection) GeoJSON() *geojson.FeatureCollection {
	out := geojson.NewFeatureCollection()
	for _, f := range fc {
		gf := geojson.NewFeature(f.Geometry)
		gf.Properties = geojson.Properties{
			"name":        f.Properties.Name,
			"description": f.Properties.Description,
		}
		out.Append(gf)
	}
	return out
}

// MarshalJSON encodes the collection as a GeoJSON FeatureCollection.
func (fc FeatureCollection) MarshalJSON() ([]byte, error) {
	return json.Marshal(fc.GeoJSON())
}

// newPoint builds a point, rejecting non-finite components.
func newPoint(lon, lat float64) (orb.Point, bool) {
	if !isFinite(lon) || !isFinite(lat) {
		return orb.Point{}, false
	}
	return orb.Point{lon, lat}, true
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
