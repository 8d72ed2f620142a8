// Package source fetches KML and KMZ documents from local files, S3-compatible
// buckets, Azure Blob Storage and HTTP servers.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/mumuon/drivefinder/kml-service/internal/config"
)

// Errors reported by Fetch. They are wrapped in *FetchError.
var (
	ErrNotFound          = errors.New("document not found")
	ErrTooLarge          = errors.New("document exceeds size limit")
	ErrUnsupportedScheme = errors.New("unsupported source scheme")
	ErrNoKML             = errors.New("archive contains no .kml file")
)

// DefaultMaxBytes caps documents when no limit is configured.
const DefaultMaxBytes int64 = 256 << 20

// FetchError reports a failure to obtain a document.
type FetchError struct {
	URI string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch %s: %v", e.URI, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Document is a fetched KML payload.
type Document struct {
	URI   string // Location it was fetched from
	Name  string // Base name of the fetched object
	Data  []byte // KML bytes, unpacked when the object was a KMZ
	Entry string // Archive entry the KML came from, empty for plain KML
}

// Backend reads whole objects for one URI scheme.
type Backend interface {
	Read(ctx context.Context, loc *url.URL, limit int64) ([]byte, error)
}

// Resolver dispatches URIs to backends by scheme.
type Resolver struct {
	backends map[string]Backend
	maxBytes int64
	logger   *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithBackend registers b for scheme, replacing any existing backend.
func WithBackend(scheme string, b Backend) Option {
	return func(r *Resolver) {
		r.backends[strings.ToLower(scheme)] = b
	}
}

// WithMaxBytes caps the size of fetched objects and unpacked archive entries.
func WithMaxBytes(n int64) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxBytes = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewResolver creates a resolver with the local file backend only.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		backends: map[string]Backend{"file": FileBackend{}},
		maxBytes: DefaultMaxBytes,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// New creates a resolver with every backend the configuration supports. S3
// and HTTP are always available; Azure needs an account or connection string.
func New(cfg config.SourcesConfig, opts ...Option) (*Resolver, error) {
	httpBackend := NewHTTPBackend(cfg.HTTP)

	base := []Option{
		WithMaxBytes(cfg.MaxBytes),
		WithBackend("s3", NewS3Backend(cfg.S3)),
		WithBackend("http", httpBackend),
		WithBackend("https", httpBackend),
	}

	if cfg.Azure.Configured() {
		azure, err := NewAzureBackend(cfg.Azure)
		if err != nil {
			return nil, fmt.Errorf("failed to create azure backend: %w", err)
		}
		base = append(base, WithBackend("azblob", azure))
	}

	return NewResolver(append(base, opts...)...), nil
}

// MaxBytes returns the configured size cap.
func (r *Resolver) MaxBytes() int64 {
	return r.maxBytes
}

// Fetch reads the document at uri. Plain paths and file:// URIs are read from
// disk. KMZ archives are unpacked in memory.
func (r *Resolver) Fetch(ctx context.Context, uri string) (*Document, error) {
	loc, err := parseURI(uri)
	if err != nil {
		return nil, &FetchError{URI: uri, Err: err}
	}

	backend, ok := r.backends[loc.Scheme]
	if !ok {
		return nil, &FetchError{URI: uri, Err: fmt.Errorf("%w: %s", ErrUnsupportedScheme, loc.Scheme)}
	}

	logger := r.logger.With("uri", uri, "scheme", loc.Scheme)
	logger.Debug("fetching document")

	data, err := backend.Read(ctx, loc, r.maxBytes)
	if err != nil {
		return nil, &FetchError{URI: uri, Err: err}
	}

	doc, err := r.FromBytes(objectName(loc), data)
	if err != nil {
		return nil, &FetchError{URI: uri, Err: err}
	}
	doc.URI = uri

	logger.Debug("document fetched", "bytes", len(doc.Data), "entry", doc.Entry)
	return doc, nil
}

// FromBytes wraps data that is already in memory, unpacking it if it is a KMZ.
func (r *Resolver) FromBytes(name string, data []byte) (*Document, error) {
	if int64(len(data)) > r.maxBytes {
		return nil, ErrTooLarge
	}

	doc := &Document{Name: name, Data: data}
	if !IsKMZ(data) {
		return doc, nil
	}

	kml, entry, err := ExtractKML(data, r.maxBytes)
	if err != nil {
		return nil, err
	}
	doc.Data = kml
	doc.Entry = entry
	return doc, nil
}

// Scheme returns the lower-cased scheme of uri. Bare paths are "file".
func Scheme(uri string) string {
	if i := strings.Index(uri, "://"); i > 0 {
		return strings.ToLower(uri[:i])
	}
	return "file"
}

// parseURI accepts URIs and bare filesystem paths. Windows drive letters are
// not mistaken for schemes.
func parseURI(uri string) (*url.URL, error) {
	if uri == "" {
		return nil, errors.New("empty uri")
	}
	if !strings.Contains(uri, "://") {
		return &url.URL{Scheme: "file", Path: uri}, nil
	}

	loc, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid uri: %w", err)
	}
	loc.Scheme = strings.ToLower(loc.Scheme)
	return loc, nil
}

func objectName(loc *url.URL) string {
	if loc.Scheme == "file" {
		return filepath.Base(loc.Path)
	}
	return path.Base(loc.Path)
}

// bucketAndKey splits s3://bucket/key and azblob://container/blob.
func bucketAndKey(loc *url.URL) (string, string, error) {
	key := strings.TrimPrefix(loc.Path, "/")
	if loc.Host == "" || key == "" {
		return "", "", fmt.Errorf("expected %s://<bucket>/<key>, got %s", loc.Scheme, loc.String())
	}
	return loc.Host, key, nil
}

// readLimited reads r fully, failing with ErrTooLarge past limit bytes.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, ErrTooLarge
	}
	return data, nil
}
