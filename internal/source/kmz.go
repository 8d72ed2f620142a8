package source

import (
	"archive/zip"
	"bytes"
	"fmt"
	"path"
	"strings"
)

var zipMagic = []byte("PK\x03\x04")

// IsKMZ reports whether data looks like a zip archive.
func IsKMZ(data []byte) bool {
	return bytes.HasPrefix(data, zipMagic)
}

// ExtractKML returns the KML entry of a KMZ archive and its name. doc.kml is
// preferred at any depth; otherwise the first .kml entry in archive order is
// used. Entries larger than limit once decompressed are rejected.
func ExtractKML(data []byte, limit int64) ([]byte, string, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, "", fmt.Errorf("failed to open KMZ archive: %w", err)
	}

	entry := findKMLEntry(reader.File)
	if entry == nil {
		return nil, "", ErrNoKML
	}

	if entry.UncompressedSize64 > uint64(limit) {
		return nil, "", ErrTooLarge
	}

	src, err := entry.Open()
	if err != nil {
		return nil, "", fmt.Errorf("failed to open %s: %w", entry.Name, err)
	}
	defer src.Close()

	kml, err := readLimited(src, limit)
	if err != nil {
		return nil, "", fmt.Errorf("failed to extract %s: %w", entry.Name, err)
	}
	return kml, entry.Name, nil
}

func findKMLEntry(files []*zip.File) *zip.File {
	var first *zip.File
	for _, f := range files {
		if f.FileInfo().IsDir() {
			continue
		}
		base := path.Base(f.Name)
		if strings.EqualFold(base, "doc.kml") {
			return f
		}
		if first == nil && strings.EqualFold(path.Ext(base), ".kml") {
			first = f
		}
	}
	return first
}
