package converter

import (
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// parseKMLCoordinates parses a KML coordinate block into points.
// KML format: "lng,lat[,alt] lng,lat[,alt] ..." (whitespace-separated tuples).
// Tuples that do not yield two finite numbers are skipped; skipped is their count.
func parseKMLCoordinates(coordString string) (points []orb.Point, skipped int) {
	for _, tuple := range strings.Fields(coordString) {
		p, ok := parseKMLTuple(tuple)
		if !ok {
			skipped++
			continue
		}
		points = append(points, p)
	}
	return points, skipped
}

// parseKMLTuple parses a single "lng,lat[,alt]" tuple. Altitude is ignored.
func parseKMLTuple(tuple string) (orb.Point, bool) {
	values := strings.Split(tuple, ",")
	if len(values) < 2 {
		return orb.Point{}, false
	}

	lng, err1 := strconv.ParseFloat(strings.TrimSpace(values[0]), 64)
	lat, err2 := strconv.ParseFloat(strings.TrimSpace(values[1]), 64)
	if err1 != nil || err2 != nil {
		return orb.Point{}, false
	}

	return newPoint(lng, lat)
}

// parseFirstKMLTuple parses the first tuple of a coordinate block.
func parseFirstKMLTuple(coordString string) (orb.Point, bool) {
	fields := strings.Fields(coordString)
	if len(fields) == 0 {
		return orb.Point{}, false
	}
	return parseKMLTuple(fields[0])
}

// parseTrackCoord parses a gx:coord value, "lng lat [alt]" separated by spaces.
func parseTrackCoord(s string) (orb.Point, bool) {
	fields := strings.Fields(s)
	if len(fields) < 2 {
		return orb.Point{}, false
	}

	lng, err1 := strconv.ParseFloat(fields[0], 64)
	lat, err2 := strconv.ParseFloat(fields[1], 64)
	if err1 != nil || err2 != nil {
		return orb.Point{}, false
	}

	return newPoint(lng, lat)
}
