package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	converter "github.com/mumuon/drivefinder/kml-service"
)

// profile summarizes one GeoJSON feature collection.
type profile struct {
	Features    int
	Coordinates int
	LengthKm    float64
	Kinds       map[converter.Kind]int
	Names       map[string]bool
	Properties  map[string]int
}

func main() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: compare-geojson <old-geojson> <new-geojson>")
		fmt.Println("Example: compare-geojson old/delaware.geojson new/delaware.geojson")
		os.Exit(1)
	}

	oldPath := os.Args[1]
	newPath := os.Args[2]

	oldFC, err := load(oldPath)
	if err != nil {
		fmt.Printf("Error loading old GeoJSON: %v\n", err)
		os.Exit(1)
	}

	newFC, err := load(newPath)
	if err != nil {
		fmt.Printf("Error loading new GeoJSON: %v\n", err)
		os.Exit(1)
	}

	report(profileOf(oldFC), profileOf(newFC), oldPath, newPath)
}

func load(path string) (*geojson.FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return geojson.UnmarshalFeatureCollection(data)
}

func profileOf(fc *geojson.FeatureCollection) profile {
	p := profile{
		Features:   len(fc.Features),
		Kinds:      map[converter.Kind]int{},
		Names:      map[string]bool{},
		Properties: map[string]int{},
	}

	for _, f := range fc.Features {
		p.Kinds[converter.KindOf(f.Geometry)]++
		p.Coordinates += countPoints(f.Geometry)
		if meters, ok := converter.GeometryLength(f.Geometry); ok {
			p.LengthKm += meters / 1000
		}
		if name := f.Properties.MustString("name", ""); name != "" {
			p.Names[name] = true
		}
		for key := range f.Properties {
			p.Properties[key]++
		}
	}

	return p
}

// countPoints returns the number of positions in g.
func countPoints(g orb.Geometry) int {
	switch g := g.(type) {
	case orb.Point:
		return 1
	case orb.MultiPoint:
		return len(g)
	case orb.LineString:
		return len(g)
	case orb.Ring:
		return len(g)
	case orb.MultiLineString:
		n := 0
		for _, ls := range g {
			n += len(ls)
		}
		return n
	case orb.Polygon:
		n := 0
		for _, r := range g {
			n += len(r)
		}
		return n
	case orb.MultiPolygon:
		n := 0
		for _, p := range g {
			n += countPoints(p)
		}
		return n
	case orb.Collection:
		n := 0
		for _, c := range g {
			n += countPoints(c)
		}
		return n
	default:
		return 0
	}
}

// missing returns the names in a that are not in b, sorted.
func missing(a, b map[string]bool) []string {
	var out []string
	for name := range a {
		if !b[name] {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func report(old, new profile, oldPath, newPath string) {
	rule := strings.Repeat("=", 71)
	fmt.Println(rule)
	fmt.Println("GeoJSON Comparison")
	fmt.Println(rule)
	fmt.Printf("OLD: %s\n", oldPath)
	fmt.Printf("NEW: %s\n", newPath)
	fmt.Println()

	fmt.Println("Totals:")
	fmt.Printf("  %-18s %10s %10s %10s\n", "", "OLD", "NEW", "DIFF")
	fmt.Printf("  %-18s %10d %10d %+10d\n", "Features", old.Features, new.Features, new.Features-old.Features)
	fmt.Printf("  %-18s %10d %10d %+10d\n", "Coordinates", old.Coordinates, new.Coordinates, new.Coordinates-old.Coordinates)
	fmt.Printf("  %-18s %10.2f %10.2f %+10.2f\n", "Line length (km)", old.LengthKm, new.LengthKm, new.LengthKm-old.LengthKm)
	fmt.Println()

	fmt.Println("Geometry Types:")
	kinds := append([]converter.Kind{}, converter.TrackedKinds...)
	for _, k := range append(kinds, converter.KindGeometryCollection) {
		if old.Kinds[k] == 0 && new.Kinds[k] == 0 {
			continue
		}
		fmt.Printf("  %-18s %10d %10d\n", k, old.Kinds[k], new.Kinds[k])
	}
	fmt.Println()

	fmt.Println("Names:")
	fmt.Printf("  OLD unique names: %d\n", len(old.Names))
	fmt.Printf("  NEW unique names: %d\n", len(new.Names))
	lost := missing(old.Names, new.Names)
	if len(lost) == 0 {
		fmt.Println("  All OLD names found in NEW")
	} else {
		fmt.Printf("  Names in OLD but not NEW: %d\n", len(lost))
		for i, name := range lost {
			if i == 10 {
				fmt.Printf("    ... and %d more\n", len(lost)-10)
				break
			}
			fmt.Printf("    - %s\n", name)
		}
	}
	if extra := missing(new.Names, old.Names); len(extra) > 0 {
		fmt.Printf("  Names in NEW but not OLD: %d\n", len(extra))
	}
	fmt.Println()

	fmt.Println("Properties:")
	printProperties("OLD", old)
	printProperties("NEW", new)

	fmt.Println(rule)
	if new.Coordinates < old.Coordinates {
		fmt.Printf("NEW has %d fewer coordinates. Expected when long lines were decimated.\n", old.Coordinates-new.Coordinates)
	}
	if len(lost) > 0 {
		fmt.Printf("WARNING: %d names missing from NEW\n", len(lost))
	}
	fmt.Println(rule)
}

func printProperties(label string, p profile) {
	keys := make([]string, 0, len(p.Properties))
	for k := range p.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Printf("  %s:\n", label)
	for _, k := range keys {
		fmt.Printf("    %s: %d features (%.1f%%)\n", k, p.Properties[k], float64(p.Properties[k])/float64(p.Features)*100)
	}
}
