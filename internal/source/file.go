package source

import (
	"context"
	"errors"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
)

// FileBackend reads from the local filesystem.
type FileBackend struct{}

// Read implements Backend.
func (FileBackend) Read(ctx context.Context, loc *url.URL, limit int64) ([]byte, error) {
	p := loc.Path
	if loc.Host != "" && loc.Host != "localhost" {
		// file://relative/path parses "relative" as the host.
		p = filepath.Join(loc.Host, p)
	}

	f, err := os.Open(filepath.Clean(p))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, errors.New("path is a directory")
	}
	if info.Size() > limit {
		return nil, ErrTooLarge
	}

	return readLimited(f, limit)
}
