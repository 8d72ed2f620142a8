package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	converter "github.com/mumuon/drivefinder/kml-service"
	"github.com/mumuon/drivefinder/kml-service/internal/source"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: convert-kml <kml-or-kmz> <output-geojson>")
		fmt.Println("Example: convert-kml input.kmz output.geojson")
		os.Exit(1)
	}

	inputPath := os.Args[1]
	outputPath := os.Args[2]

	doc, err := source.NewResolver().Fetch(context.Background(), inputPath)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	result, err := converter.Convert(doc.Data)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	data, err := json.Marshal(result.GeoJSON())
	if err != nil {
		fmt.Printf("Error encoding GeoJSON: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		fmt.Printf("Error writing output file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Converted to GeoJSON: %d features (%s)\n", len(result.Collection), result.Method)
	fmt.Printf("   Output: %s\n", outputPath)
}
