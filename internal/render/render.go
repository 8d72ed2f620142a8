// Package render writes conversion reports as terminal tables, JSON or YAML.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	converter "github.com/mumuon/drivefinder/kml-service"
)

// Format selects an output encoding.
type Format string

// Supported formats.
const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown format %q (want table, json or yaml)", s)
	}
}

const maxDescriptionWidth = 40

var (
	accentFg  = lipgloss.Color("#7C3AED")
	baseDimFg = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#6B7280"}
	borderCol = lipgloss.Color("#243141")

	headerStyle = lipgloss.NewStyle().Foreground(accentFg).Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	numberStyle = cellStyle.Align(lipgloss.Right)
	dimStyle    = cellStyle.Foreground(baseDimFg)
	borderStyle = lipgloss.NewStyle().Foreground(borderCol)
)

// Summary writes the per-kind feature counts.
func Summary(w io.Writer, f Format, s converter.SummaryReport) error {
	switch f {
	case FormatJSON:
		return writeJSON(w, s)
	case FormatYAML:
		return writeYAML(w, s)
	}

	rows := make([][]string, 0, len(converter.TrackedKinds)+1)
	for _, k := range converter.TrackedKinds {
		rows = append(rows, []string{string(k), strconv.Itoa(s[k])})
	}
	totalRow := len(rows)
	rows = append(rows, []string{"Total", strconv.Itoa(s.Total())})

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("Type", "Count").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row == totalRow && col == 0:
				return headerStyle
			case col == 1:
				return numberStyle
			default:
				return cellStyle
			}
		})

	_, err := fmt.Fprintln(w, t.Render())
	return err
}

// Details writes one row per feature.
func Details(w io.Writer, f Format, d converter.DetailReport) error {
	switch f {
	case FormatJSON:
		return writeJSON(w, d)
	case FormatYAML:
		return writeYAML(w, d)
	}

	rows := make([][]string, 0, len(d))
	for _, r := range d {
		length := "-"
		if r.LengthKm != nil {
			length = strconv.FormatFloat(*r.LengthKm, 'f', 2, 64)
		}
		rows = append(rows, []string{
			strconv.Itoa(r.ID),
			string(r.Type),
			r.Name,
			truncate(r.Description, maxDescriptionWidth),
			length,
			r.Geohash,
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("ID", "Type", "Name", "Description", "Length (km)", "Geohash").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 0 || col == 4:
				return numberStyle
			case col == 3 || col == 5:
				return dimStyle
			default:
				return cellStyle
			}
		})

	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func truncate(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(w io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
