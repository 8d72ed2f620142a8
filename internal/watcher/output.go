package watcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mumuon/drivefinder/kml-service/internal/service"
)

// Converter converts the document at a URI.
type Converter interface {
	Convert(ctx context.Context, uri string) (*service.Conversion, error)
}

// GeoJSONWriter returns a handler that writes <file>.geojson for every
// created or modified file and removes it when the source is deleted. An
// empty outputDir writes next to the source file.
func GeoJSONWriter(conv Converter, outputDir string, logger *slog.Logger) Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return func(ctx context.Context, e Event) error {
		out := OutputPath(e.Path, outputDir)

		if e.Operation == OpDelete {
			if err := os.Remove(out); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("failed to remove %s: %w", out, err)
			}
			logger.Info("removed output", "path", out)
			return nil
		}

		c, err := conv.Convert(ctx, e.Path)
		if err != nil {
			return err
		}

		data, err := json.Marshal(c.Result.GeoJSON())
		if err != nil {
			return fmt.Errorf("failed to encode GeoJSON: %w", err)
		}

		if err := writeFileAtomic(out, data); err != nil {
			return err
		}

		logger.Info("wrote output",
			"path", out,
			"features", len(c.Result.Collection),
			"method", c.Result.Method,
		)
		return nil
	}
}

// OutputPath maps a source file to its GeoJSON output path. The source
// extension is kept, so roads.kml and roads.kmz never share an output.
func OutputPath(src, outputDir string) string {
	name := filepath.Base(src) + ".geojson"
	if outputDir == "" {
		return filepath.Join(filepath.Dir(src), name)
	}
	return filepath.Join(outputDir, name)
}

// writeFileAtomic writes through a temporary file so readers never see a
// partial document.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".kmlsvc-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set output permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close output: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move output into place: %w", err)
	}
	return nil
}
