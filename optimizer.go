package converter

import (
	"github.com/paulmach/orb"
)

// DefaultMaxPoints is the largest line or ring left untouched by the optimizer.
const DefaultMaxPoints = 1000

// Optimizer decimates long coordinate sequences so a map can render them
// cheaply. It is uniform-stride subsampling, not shape-preserving
// simplification: endpoints are kept and the output of each line or ring is
// at most MaxPoints long.
type Optimizer struct {
	MaxPoints int
}

// NewOptimizer returns an optimizer with the given limit. Values below 2
// select DefaultMaxPoints.
func NewOptimizer(maxPoints int) *Optimizer {
	if maxPoints < 2 {
		maxPoints = DefaultMaxPoints
	}
	return &Optimizer{MaxPoints: maxPoints}
}

// Optimize returns a new collection with the same features in the same order,
// each line and polygon ring decimated. The input is not modified and the
// output shares no coordinate storage with it.
func (o *Optimizer) Optimize(fc FeatureCollection) FeatureCollection {
	out := make(FeatureCollection, len(fc))
	for i, f := range fc {
		out[i] = Feature{
			Geometry:   o.optimizeGeometry(f.Geometry),
			Properties: f.Properties,
		}
	}
	return out
}

func (o *Optimizer) maxPoints() int {
	if o == nil || o.MaxPoints < 2 {
		return DefaultMaxPoints
	}
	return o.MaxPoints
}

func (o *Optimizer) optimizeGeometry(g orb.Geometry) orb.Geometry {
	limit := o.maxPoints()

	switch g := g.(type) {
	case orb.Point:
		return g
	case orb.MultiPoint:
		return append(orb.MultiPoint(nil), g...)
	case orb.LineString:
		return orb.LineString(decimate(g, limit))
	case orb.Polygon:
		return decimatePolygon(g, limit)
	case orb.MultiLineString:
		out := make(orb.MultiLineString, len(g))
		for i, ls := range g {
			out[i] = orb.LineString(decimate(ls, limit))
		}
		return out
	case orb.MultiPolygon:
		out := make(orb.MultiPolygon, len(g))
		for i, poly := range g {
			out[i] = decimatePolygon(poly, limit)
		}
		return out
	case orb.Collection:
		out := make(orb.Collection, len(g))
		for i, c := range g {
			out[i] = o.optimizeGeometry(c)
		}
		return out
	default:
		return g
	}
}

func decimatePolygon(poly orb.Polygon, limit int) orb.Polygon {
	out := make(orb.Polygon, len(poly))
	for i, ring := range poly {
		out[i] = orb.Ring(decimate(ring, limit))
	}
	return out
}

// decimate keeps points 0 and n-1 plus every step-th point strictly before
// n-step, where step = ceil(n/limit). Sequences of at most limit points are
// copied unchanged.
func decimate(pts []orb.Point, limit int) []orb.Point {
	n := len(pts)
	if n <= limit {
		return append([]orb.Point(nil), pts...)
	}

	step := (n + limit - 1) / limit
	out := make([]orb.Point, 0, n/step+2)
	out = append(out, pts[0])
	for i := step; i < n-step; i += step {
		out = append(out, pts[i])
	}
	out = append(out, pts[n-1])
	return out
}
