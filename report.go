package converter

import (
	"fmt"
	"math"

	"github.com/mmcloughlin/geohash"
	"github.com/paulmach/orb"
)

// geohashPrecision gives cells of roughly 150m, enough to tell features apart
// on a map.
const geohashPrecision = 7

// SummaryReport counts features per tracked geometry kind. It always holds an
// entry for every kind in TrackedKinds.
type SummaryReport map[Kind]int

// Summarize counts the features of fc by kind. Kinds outside TrackedKinds,
// such as GeometryCollection, are not counted.
func Summarize(fc FeatureCollection) SummaryReport {
	report := make(SummaryReport, len(TrackedKinds))
	for _, k := range TrackedKinds {
		report[k] = 0
	}

	for _, f := range fc {
		if _, tracked := report[f.Kind()]; tracked {
			report[f.Kind()]++
		}
	}

	return report
}

// Total returns the number of counted features.
func (r SummaryReport) Total() int {
	total := 0
	for _, n := range r {
		total += n
	}
	return total
}

// DetailRow describes one feature.
type DetailRow struct {
	ID          int      `json:"id" yaml:"id"`
	Type        Kind     `json:"type" yaml:"type"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	LengthKm    *float64 `json:"length_km,omitempty" yaml:"length_km,omitempty"` // LineString and MultiLineString only
	Geohash     string   `json:"geohash,omitempty" yaml:"geohash,omitempty"`
}

// DetailReport lists one row per feature in collection order.
type DetailReport []DetailRow

// Detail builds a row for every feature of fc. Row IDs are the features'
// positions in fc.
func Detail(fc FeatureCollection) DetailReport {
	rows := make(DetailReport, 0, len(fc))
	for i, f := range fc {
		row := DetailRow{
			ID:          i,
			Type:        f.Kind(),
			Name:        f.Properties.Name,
			Description: f.Properties.Description,
		}
		if row.Name == "" {
			row.Name = fmt.Sprintf("Placemark %d", i)
		}

		if meters, ok := GeometryLength(f.Geometry); ok {
			km := math.Round(meters/1000*100) / 100
			row.LengthKm = &km
		}

		if f.Geometry != nil {
			row.Geohash = geohashOf(f.Geometry.Bound().Center())
		}

		rows = append(rows, row)
	}
	return rows
}

// geohashOf encodes p, or returns "" when p lies outside the valid
// latitude/longitude range.
func geohashOf(p orb.Point) string {
	if math.Abs(p.Lat()) > 90 || math.Abs(p.Lon()) > 180 {
		return ""
	}
	return geohash.EncodeWithPrecision(p.Lat(), p.Lon(), geohashPrecision)
}
