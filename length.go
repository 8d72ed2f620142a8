package converter

import (
	"math"

	"github.com/paulmach/orb"
)

// earthRadiusMeters is the mean Earth radius used by the haversine formula.
const earthRadiusMeters = 6371000.0

// haversineDistance returns the great-circle distance in meters between two
// points given in degrees.
func haversineDistance(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)

	return 2 * earthRadiusMeters * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// LineStringLength returns the length of ls in meters. Fewer than two points
// have length 0.
func LineStringLength(ls orb.LineString) float64 {
	var total float64
	for i := 1; i < len(ls); i++ {
		total += haversineDistance(ls[i-1].Lat(), ls[i-1].Lon(), ls[i].Lat(), ls[i].Lon())
	}
	return total
}

// GeometryLength returns the length in meters of a LineString, or the sum of
// its lines' lengths for a MultiLineString. No distance is added between
// disjoint lines. Other kinds report false.
func GeometryLength(g orb.Geometry) (float64, bool) {
	switch g := g.(type) {
	case orb.LineString:
		return LineStringLength(g), true
	case orb.MultiLineString:
		var total float64
		for _, ls := range g {
			total += LineStringLength(ls)
		}
		return total, true
	default:
		return 0, false
	}
}
