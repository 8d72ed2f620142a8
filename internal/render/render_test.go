package render

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	converter "github.com/mumuon/drivefinder/kml-service"
)

func sampleSummary() converter.SummaryReport {
	return converter.SummaryReport{
		converter.KindPoint:           3,
		converter.KindLineString:      2,
		converter.KindPolygon:         0,
		converter.KindMultiPoint:      0,
		converter.KindMultiLineString: 1,
		converter.KindMultiPolygon:    0,
	}
}

func sampleDetails() converter.DetailReport {
	km := 111.19
	return converter.DetailReport{
		{ID: 0, Type: converter.KindLineString, Name: "Ridge Road", Description: "twisty", LengthKm: &km, Geohash: "s00twy0"},
		{ID: 1, Type: converter.KindPoint, Name: "Summit", Geohash: "s00twy1"},
	}
}

func TestParseFormat(t *testing.T) {
	testCases := map[string]Format{
		"table": FormatTable,
		"JSON":  FormatJSON,
		"yaml":  FormatYAML,
		"yml":   FormatYAML,
	}
	for in, expected := range testCases {
		got, err := ParseFormat(in)
		if err != nil || got != expected {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q", in, got, err, expected)
		}
	}

	if _, err := ParseFormat("csv"); err == nil {
		t.Error("expected an error for an unknown format")
	}
}

func TestSummary_Table(t *testing.T) {
	var buf bytes.Buffer
	if err := Summary(&buf, FormatTable, sampleSummary()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	for _, k := range converter.TrackedKinds {
		if !strings.Contains(out, string(k)) {
			t.Errorf("table missing %s:\n%s", k, out)
		}
	}
	if !strings.Contains(out, "Total") || !strings.Contains(out, "6") {
		t.Errorf("table missing total:\n%s", out)
	}

	// Rows follow TrackedKinds order.
	if strings.Index(out, "Point") > strings.Index(out, "Polygon") {
		t.Errorf("unexpected row order:\n%s", out)
	}
}

func TestSummary_Encoded(t *testing.T) {
	var buf bytes.Buffer
	if err := Summary(&buf, FormatJSON, sampleSummary()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var fromJSON map[string]int
	if err := json.Unmarshal(buf.Bytes(), &fromJSON); err != nil {
		t.Fatalf("invalid JSON %q: %v", buf.String(), err)
	}
	if len(fromJSON) != 6 || fromJSON["Point"] != 3 || fromJSON["MultiLineString"] != 1 {
		t.Errorf("unexpected JSON summary %v", fromJSON)
	}

	buf.Reset()
	if err := Summary(&buf, FormatYAML, sampleSummary()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var fromYAML map[string]int
	if err := yaml.Unmarshal(buf.Bytes(), &fromYAML); err != nil {
		t.Fatalf("invalid YAML %q: %v", buf.String(), err)
	}
	if fromYAML["LineString"] != 2 || fromYAML["Polygon"] != 0 {
		t.Errorf("unexpected YAML summary %v", fromYAML)
	}
}

func TestDetails_Table(t *testing.T) {
	var buf bytes.Buffer
	if err := Details(&buf, FormatTable, sampleDetails()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"Ridge Road", "Summit", "111.19", "s00twy0", "Length (km)"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
	if !strings.Contains(out, "-") {
		t.Errorf("points should show a placeholder length:\n%s", out)
	}
}

func TestDetails_YAML(t *testing.T) {
	var buf bytes.Buffer
	if err := Details(&buf, FormatYAML, sampleDetails()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var rows []map[string]interface{}
	if err := yaml.Unmarshal(buf.Bytes(), &rows); err != nil {
		t.Fatalf("invalid YAML %q: %v", buf.String(), err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0]["length_km"] != 111.19 || rows[0]["name"] != "Ridge Road" {
		t.Errorf("unexpected first row %v", rows[0])
	}
	if _, ok := rows[1]["length_km"]; ok {
		t.Error("points must not carry a length")
	}
}

func TestTruncate(t *testing.T) {
	testCases := []struct {
		in       string
		width    int
		expected string
	}{
		{in: "short", width: 10, expected: "short"},
		{in: "  spaced \n out  ", width: 20, expected: "spaced out"},
		{in: "abcdefghij", width: 5, expected: "abcd…"},
	}
	for _, tc := range testCases {
		if got := truncate(tc.in, tc.width); got != tc.expected {
			t.Errorf("truncate(%q, %d) = %q, want %q", tc.in, tc.width, got, tc.expected)
		}
	}
}
