package converter

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/paulmach/orb"
)

// KML namespaces accepted by the primary extractor. The empty namespace covers
// documents that omit the xmlns declaration.
var kmlNamespaces = map[string]bool{
	"":                                true,
	"http://www.opengis.net/kml/2.2":  true,
	"http://earth.google.com/kml/2.0": true,
	"http://earth.google.com/kml/2.1": true,
	"http://earth.google.com/kml/2.2": true,
}

// Google extension namespace, also matched by its bare prefix when undeclared.
var gxNamespaces = map[string]bool{
	"http://www.google.com/kml/ext/2.2": true,
	"gx":                                true,
}

func isKML(n *Node, local string) bool {
	return n.Local == local && kmlNamespaces[n.Space]
}

func isGX(n *Node, local string) bool {
	return n.Local == local && gxNamespaces[n.Space]
}

// ExtractPrimary converts every KML Placemark in doc using the general KML
// rule set. An empty collection with a nil error means nothing was found.
func ExtractPrimary(doc *Document) (FeatureCollection, error) {
	return extractPrimary(doc, slog.Default())
}

func extractPrimary(doc *Document, logger *slog.Logger) (fc FeatureCollection, err error) {
	defer func() {
		if r := recover(); r != nil {
			fc = nil
			err = fmt.Errorf("primary extraction panicked: %v", r)
		}
	}()

	if doc == nil || doc.Root == nil {
		return nil, errors.New("primary extraction: nil document")
	}

	var placemarks []*Node
	doc.Root.Walk(func(n *Node) bool {
		if isKML(n, "Placemark") {
			placemarks = append(placemarks, n)
			return false
		}
		return true
	})

	fc = make(FeatureCollection, 0, len(placemarks))
	for i, pm := range placemarks {
		skipped := 0
		geoms := placemarkGeometries(pm, &skipped)
		if skipped > 0 {
			logger.Debug("discarded malformed coordinates", "placemark", i, "count", skipped)
		}

		geom := combineGeometries(geoms)
		if geom == nil {
			logger.Debug("placemark has no usable geometry", "placemark", i)
			continue
		}

		props := Properties{}
		if name := pm.Child("name"); name != nil {
			props.Name = name.TextContent()
		}
		if desc := pm.Child("description"); desc != nil {
			props.Description = desc.TextContent()
		}
		if props.Name == "" {
			props.Name = fmt.Sprintf("Element %d", len(fc)+1)
		}

		fc = append(fc, Feature{Geometry: geom, Properties: props})
	}

	return fc, nil
}

// placemarkGeometries collects the geometries directly under n, descending
// into MultiGeometry containers.
func placemarkGeometries(n *Node, skipped *int) []orb.Geometry {
	var geoms []orb.Geometry

	for _, c := range n.Children {
		switch {
		case isKML(c, "Point"):
			if coords := c.Child("coordinates"); coords != nil {
				if p, ok := parseFirstKMLTuple(coords.Text); ok {
					geoms = append(geoms, p)
				} else {
					*skipped++
				}
			}

		case isKML(c, "LineString"):
			if pts := coordinatesOf(c, skipped); len(pts) >= 2 {
				geoms = append(geoms, orb.LineString(pts))
			}

		case isKML(c, "LinearRing"):
			if pts := coordinatesOf(c, skipped); len(pts) >= 3 {
				geoms = append(geoms, orb.Polygon{orb.Ring(pts)})
			}

		case isKML(c, "Polygon"):
			if poly := polygonOf(c, skipped); poly != nil {
				geoms = append(geoms, poly)
			}

		case isKML(c, "MultiGeometry"):
			geoms = append(geoms, placemarkGeometries(c, skipped)...)

		case isGX(c, "Track"):
			if ls := trackOf(c, skipped); ls != nil {
				geoms = append(geoms, ls)
			}

		case isGX(c, "MultiTrack"):
			var mls orb.MultiLineString
			for _, t := range c.Children {
				if !isGX(t, "Track") {
					continue
				}
				if ls := trackOf(t, skipped); ls != nil {
					mls = append(mls, ls)
				}
			}
			if len(mls) > 0 {
				geoms = append(geoms, mls)
			}
		}
	}

	return geoms
}

func coordinatesOf(n *Node, skipped *int) []orb.Point {
	coords := n.Child("coordinates")
	if coords == nil {
		return nil
	}
	pts, bad := parseKMLCoordinates(coords.Text)
	*skipped += bad
	return pts
}

// polygonOf returns the polygon's outer ring followed by its usable inner
// rings, or nil if the outer ring has fewer than 3 points.
func polygonOf(n *Node, skipped *int) orb.Polygon {
	outer := n.Child("outerBoundaryIs")
	if outer == nil {
		return nil
	}
	ring := outer.Child("LinearRing")
	if ring == nil {
		return nil
	}
	pts := coordinatesOf(ring, skipped)
	if len(pts) < 3 {
		return nil
	}

	poly := orb.Polygon{orb.Ring(pts)}
	for _, c := range n.Children {
		if !isKML(c, "innerBoundaryIs") {
			continue
		}
		for _, r := range c.Children {
			if !isKML(r, "LinearRing") {
				continue
			}
			if hole := coordinatesOf(r, skipped); len(hole) >= 3 {
				poly = append(poly, orb.Ring(hole))
			}
		}
	}
	return poly
}

func trackOf(n *Node, skipped *int) orb.LineString {
	var ls orb.LineString
	for _, c := range n.Children {
		if !isGX(c, "coord") {
			continue
		}
		p, ok := parseTrackCoord(c.Text)
		if !ok {
			*skipped++
			continue
		}
		ls = append(ls, p)
	}
	if len(ls) < 2 {
		return nil
	}
	return ls
}

// combineGeometries folds a placemark's geometries into one: a single
// geometry as is, same-typed simple geometries into the matching Multi*
// variant, anything else into a GeometryCollection.
func combineGeometries(geoms []orb.Geometry) orb.Geometry {
	switch len(geoms) {
	case 0:
		return nil
	case 1:
		return geoms[0]
	}

	switch KindOf(geoms[0]) {
	case KindPoint:
		mp := make(orb.MultiPoint, 0, len(geoms))
		for _, g := range geoms {
			p, ok := g.(orb.Point)
			if !ok {
				return orb.Collection(geoms)
			}
			mp = append(mp, p)
		}
		return mp

	case KindLineString:
		mls := make(orb.MultiLineString, 0, len(geoms))
		for _, g := range geoms {
			ls, ok := g.(orb.LineString)
			if !ok {
				return orb.Collection(geoms)
			}
			mls = append(mls, ls)
		}
		return mls

	case KindPolygon:
		mp := make(orb.MultiPolygon, 0, len(geoms))
		for _, g := range geoms {
			poly, ok := g.(orb.Polygon)
			if !ok {
				return orb.Collection(geoms)
			}
			mp = append(mp, poly)
		}
		return mp
	}

	return orb.Collection(geoms)
}
