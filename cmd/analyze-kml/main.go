package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	converter "github.com/mumuon/drivefinder/kml-service"
	"github.com/mumuon/drivefinder/kml-service/internal/render"
	"github.com/mumuon/drivefinder/kml-service/internal/source"
)

// stats describes the raw structure of a document.
type stats struct {
	Folders     int
	Placemarks  int
	Coordinates int
	Elements    map[string]int // Geometry element name to count
	Namespaces  map[string]int
}

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7C3AED")).Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#6B7280"})
)

var geometryElements = map[string]bool{
	"Point":         true,
	"LineString":    true,
	"LinearRing":    true,
	"Polygon":       true,
	"MultiGeometry": true,
	"Track":         true,
	"MultiTrack":    true,
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: analyze-kml <path-or-uri>")
		fmt.Println("Example: analyze-kml ~/data/df/curvature-data/delaware.kmz")
		os.Exit(1)
	}

	uri := os.Args[1]

	doc, err := source.NewResolver().Fetch(context.Background(), uri)
	if err != nil {
		fmt.Printf("Error reading %s: %v\n", uri, err)
		os.Exit(1)
	}

	parsed, err := converter.ParseDocument(doc.Data)
	if err != nil {
		fmt.Printf("Error parsing KML: %v\n", err)
		os.Exit(1)
	}

	analyze(doc, parsed)
}

func collect(doc *converter.Document) stats {
	s := stats{Elements: map[string]int{}, Namespaces: map[string]int{}}

	doc.Root.Walk(func(n *converter.Node) bool {
		s.Namespaces[n.Space]++
		switch {
		case strings.EqualFold(n.Local, "Folder"):
			s.Folders++
		case strings.EqualFold(n.Local, "Placemark"):
			s.Placemarks++
		case strings.EqualFold(n.Local, "coordinates"):
			s.Coordinates += len(strings.Fields(n.TextContent()))
		case n.Local == "coord":
			s.Coordinates++
		}
		if geometryElements[n.Local] {
			s.Elements[n.Local]++
		}
		return true
	})

	return s
}

func analyze(doc *source.Document, parsed *converter.Document) {
	s := collect(parsed)

	name := doc.Name
	if doc.Entry != "" {
		name += " (" + doc.Entry + ")"
	}

	rule := strings.Repeat("=", 71)
	fmt.Println(rule)
	fmt.Println(titleStyle.Render("KML/KMZ Analysis: " + name))
	fmt.Println(rule)
	fmt.Println()

	fmt.Println("Structure:")
	fmt.Printf("  Folders:                      %d\n", s.Folders)
	fmt.Printf("  Placemarks:                   %d\n", s.Placemarks)
	fmt.Printf("  Total coordinate points:      %d\n", s.Coordinates)
	if s.Placemarks > 0 {
		fmt.Printf("  Avg coordinates per placemark: %.2f\n", float64(s.Coordinates)/float64(s.Placemarks))
	}
	fmt.Println()

	fmt.Println("Geometry elements:")
	for _, k := range sortedKeys(s.Elements) {
		fmt.Printf("  %-14s %6d\n", k, s.Elements[k])
	}
	fmt.Println()

	fmt.Println("Namespaces:")
	for _, k := range sortedKeys(s.Namespaces) {
		label := k
		if label == "" {
			label = "(none)"
		}
		fmt.Printf("  %6d  %s\n", s.Namespaces[k], dimStyle.Render(label))
	}
	fmt.Println()

	primary, primaryErr := converter.ExtractPrimary(parsed)
	fallback, fallbackErr := converter.ExtractFallback(parsed)

	fmt.Println("Extraction:")
	printMethod("primary", primary, primaryErr)
	printMethod("fallback", fallback, fallbackErr)
	fmt.Println()

	result, err := converter.Convert(doc.Data)
	if err != nil {
		fmt.Printf("Conversion failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Converted with the %s extractor:\n", result.Method)
	if err := render.Summary(os.Stdout, render.FormatTable, result.Summary()); err != nil {
		fmt.Printf("Error rendering summary: %v\n", err)
	}
	fmt.Println(rule)
}

func printMethod(method string, fc converter.FeatureCollection, err error) {
	if err != nil {
		fmt.Printf("  %-9s error: %v\n", method, err)
		return
	}
	fmt.Printf("  %-9s %d features\n", method, len(fc))
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
