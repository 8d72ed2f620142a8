package converter

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func TestHaversineDistance(t *testing.T) {
	testCases := []struct {
		name           string
		lat1, lng1     float64
		lat2, lng2     float64
		expectedMeters float64
		tolerance      float64
	}{
		{
			name:           "Seattle to Portland (~234 km)",
			lat1:           47.6062,
			lng1:           -122.3321,
			lat2:           45.5152,
			lng2:           -122.6784,
			expectedMeters: 234000,
			tolerance:      3000,
		},
		{
			name:           "Zero distance",
			lat1:           45.0,
			lng1:           -122.0,
			lat2:           45.0,
			lng2:           -122.0,
			expectedMeters: 0,
			tolerance:      1,
		},
		{
			name:           "1 degree latitude at the equator",
			lat1:           0,
			lng1:           0,
			lat2:           1,
			lng2:           0,
			expectedMeters: 111194.93,
			tolerance:      1,
		},
		{
			name:           "Short distance (~111m)",
			lat1:           45.0,
			lng1:           -122.0,
			lat2:           45.001,
			lng2:           -122.0,
			expectedMeters: 111,
			tolerance:      10,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			distance := haversineDistance(tc.lat1, tc.lng1, tc.lat2, tc.lng2)
			diff := math.Abs(distance - tc.expectedMeters)

			if diff > tc.tolerance {
				t.Errorf("Distance mismatch: got %.2fm, expected %.2fm (±%.0fm), diff=%.2fm",
					distance, tc.expectedMeters, tc.tolerance, diff)
			}
		})
	}
}

func TestLineStringLength(t *testing.T) {
	testCases := []struct {
		name     string
		coords   orb.LineString
		expected float64
		minLen   float64
		maxLen   float64
	}{
		{
			name: "Simple straight line (2 degrees latitude)",
			coords: orb.LineString{
				{-122.0, 45.0},
				{-122.0, 46.0},
				{-122.0, 47.0},
			},
			minLen: 220000,
			maxLen: 224000,
		},
		{
			name:     "Empty coordinates",
			coords:   orb.LineString{},
			expected: 0,
		},
		{
			name:     "Nil coordinates",
			coords:   nil,
			expected: 0,
		},
		{
			name: "Single point",
			coords: orb.LineString{
				{-122.0, 45.0},
			},
			expected: 0,
		},
		{
			name: "Two identical points",
			coords: orb.LineString{
				{-122.0, 45.0},
				{-122.0, 45.0},
			},
			expected: 0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			length := LineStringLength(tc.coords)

			if tc.minLen > 0 || tc.maxLen > 0 {
				if length < tc.minLen || length > tc.maxLen {
					t.Errorf("Length out of range: got %.0fm, expected between %.0fm and %.0fm",
						length, tc.minLen, tc.maxLen)
				}
			} else if math.Abs(length-tc.expected) > 1e-9 {
				t.Errorf("Length mismatch: got %fm, expected %fm", length, tc.expected)
			}
		})
	}
}

func TestLineStringLengthIsSymmetric(t *testing.T) {
	ls := orb.LineString{
		{-122.4194, 37.7749},
		{-121.8863, 37.3382},
		{-119.7871, 36.7378},
		{-118.2437, 34.0522},
	}

	reversed := make(orb.LineString, len(ls))
	for i, p := range ls {
		reversed[len(ls)-1-i] = p
	}

	forward := LineStringLength(ls)
	backward := LineStringLength(reversed)
	if math.Abs(forward-backward) > 1e-6 {
		t.Errorf("length not symmetric: forward %.6f, backward %.6f", forward, backward)
	}
}

func TestGeometryLength(t *testing.T) {
	testCases := []struct {
		name     string
		geometry orb.Geometry
		minLen   float64
		maxLen   float64
		ok       bool
	}{
		{
			name:     "LineString",
			geometry: orb.LineString{{-122.0, 45.0}, {-122.0, 46.0}},
			minLen:   110000,
			maxLen:   112000,
			ok:       true,
		},
		{
			name: "MultiLineString sums parts",
			geometry: orb.MultiLineString{
				{{-122.0, 45.0}, {-122.0, 45.5}},
				{{-122.0, 45.5}, {-122.0, 46.0}},
			},
			minLen: 110000,
			maxLen: 112000,
			ok:     true,
		},
		{
			name: "MultiLineString adds nothing between disjoint lines",
			geometry: orb.MultiLineString{
				{{0, 0}, {0, 1}},
				{{50, 0}, {50, 1}},
			},
			minLen: 2 * 111194,
			maxLen: 2 * 111196,
			ok:     true,
		},
		{
			name:     "Point has no length",
			geometry: orb.Point{-122.0, 45.0},
			ok:       false,
		},
		{
			name:     "Polygon has no length",
			geometry: orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}},
			ok:       false,
		},
		{
			name:     "Nil geometry",
			geometry: nil,
			ok:       false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			length, ok := GeometryLength(tc.geometry)

			if ok != tc.ok {
				t.Fatalf("OK mismatch: got %v, expected %v", ok, tc.ok)
			}
			if length < tc.minLen || length > tc.maxLen {
				t.Errorf("Length out of range: got %.0fm, expected between %.0fm and %.0fm",
					length, tc.minLen, tc.maxLen)
			}
		})
	}
}
