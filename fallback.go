package converter

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/paulmach/orb"
)

// ExtractFallback walks every placemark-like element (any namespace, any
// letter case) and extracts its first point, path and outer polygon ring
// directly. Each geometry found becomes its own feature, so one placemark may
// contribute up to three features sharing a name and description.
//
// It returns a *NoFeaturesError if nothing could be extracted.
func ExtractFallback(doc *Document) (FeatureCollection, error) {
	return extractFallback(doc, slog.Default())
}

func extractFallback(doc *Document, logger *slog.Logger) (FeatureCollection, error) {
	if doc == nil || doc.Root == nil {
		return nil, &NoFeaturesError{}
	}

	var placemarks []*Node
	doc.Root.Walk(func(n *Node) bool {
		if strings.EqualFold(n.Local, "placemark") {
			placemarks = append(placemarks, n)
		}
		return true
	})

	var fc FeatureCollection
	for i, pm := range placemarks {
		props := Properties{Name: fmt.Sprintf("Placemark %d", i)}
		if name := pm.ChildFold("name"); name != nil {
			if text := name.TextContent(); text != "" {
				props.Name = text
			}
		}
		if desc := pm.ChildFold("description"); desc != nil {
			props.Description = desc.TextContent()
		}

		if p, ok := fallbackPoint(pm); ok {
			fc = append(fc, Feature{Geometry: p, Properties: props})
		}

		if pts, skipped := fallbackCoordinates(pm, "linestring"); len(pts) >= 2 {
			fc = append(fc, Feature{Geometry: orb.LineString(pts), Properties: props})
		} else if skipped > 0 || len(pts) == 1 {
			logger.Debug("dropped short line", "placemark", i, "points", len(pts), "skipped", skipped)
		}

		if pts, skipped := fallbackRing(pm); len(pts) >= 3 {
			fc = append(fc, Feature{Geometry: orb.Polygon{orb.Ring(pts)}, Properties: props})
		} else if skipped > 0 || len(pts) > 0 {
			logger.Debug("dropped short polygon ring", "placemark", i, "points", len(pts), "skipped", skipped)
		}
	}

	if len(fc) == 0 {
		return nil, &NoFeaturesError{Placemarks: len(placemarks)}
	}

	return fc, nil
}

func named(local string) func(*Node) bool {
	return func(n *Node) bool {
		return strings.EqualFold(n.Local, local)
	}
}

func fallbackPoint(pm *Node) (orb.Point, bool) {
	point := pm.Find(named("point"))
	if point == nil {
		return orb.Point{}, false
	}
	coords := point.Find(named("coordinates"))
	if coords == nil {
		return orb.Point{}, false
	}
	return parseFirstKMLTuple(coords.TextContent())
}

func fallbackCoordinates(pm *Node, geometry string) ([]orb.Point, int) {
	g := pm.Find(named(geometry))
	if g == nil {
		return nil, 0
	}
	coords := g.Find(named("coordinates"))
	if coords == nil {
		return nil, 0
	}
	return parseKMLCoordinates(coords.TextContent())
}

func fallbackRing(pm *Node) ([]orb.Point, int) {
	poly := pm.Find(named("polygon"))
	if poly == nil {
		return nil, 0
	}
	outer := poly.Find(named("outerboundaryis"))
	if outer == nil {
		return nil, 0
	}
	ring := outer.Find(named("linearring"))
	if ring == nil {
		return nil, 0
	}
	coords := ring.Find(named("coordinates"))
	if coords == nil {
		return nil, 0
	}
	return parseKMLCoordinates(coords.TextContent())
}
