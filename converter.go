package converter

import (
	"log/slog"

	"github.com/paulmach/orb/geojson"
)

// ExtractionMethod names the extractor that produced a result.
type ExtractionMethod string

// Extraction methods.
const (
	MethodPrimary  ExtractionMethod = "primary"
	MethodFallback ExtractionMethod = "fallback"
)

// Result is the output of a successful conversion.
type Result struct {
	Collection FeatureCollection // Optimized, non-empty
	Method     ExtractionMethod
}

// GeoJSON returns the collection in GeoJSON interchange form.
func (r *Result) GeoJSON() *geojson.FeatureCollection {
	return r.Collection.GeoJSON()
}

// Summary counts the result's features by kind.
func (r *Result) Summary() SummaryReport {
	return Summarize(r.Collection)
}

// Detail lists the result's features.
func (r *Result) Detail() DetailReport {
	return Detail(r.Collection)
}

// Converter runs the KML to GeoJSON pipeline. It holds no per-call state and
// is safe for concurrent use.
type Converter struct {
	optimizer *Optimizer
	logger    *slog.Logger
}

// Option configures a Converter.
type Option func(*Converter)

// WithMaxPoints sets the longest line or ring left undecimated.
func WithMaxPoints(n int) Option {
	return func(c *Converter) {
		c.optimizer = NewOptimizer(n)
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Converter) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewConverter creates a converter.
func NewConverter(opts ...Option) *Converter {
	c := &Converter{
		optimizer: NewOptimizer(DefaultMaxPoints),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Convert parses data, extracts its features and decimates oversized
// coordinate sequences. It fails with ErrMalformedDocument or
// ErrNoFeaturesExtracted; no partial result is returned on error.
func (c *Converter) Convert(data []byte) (*Result, error) {
	doc, err := ParseDocument(data)
	if err != nil {
		return nil, err
	}

	fc, method, err := c.extract(doc)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("features extracted", "count", len(fc), "method", method)

	return &Result{
		Collection: c.optimizer.Optimize(fc),
		Method:     method,
	}, nil
}

// extract tries the primary extractor and falls back to the manual traversal
// when it fails or finds nothing.
func (c *Converter) extract(doc *Document) (FeatureCollection, ExtractionMethod, error) {
	fc, err := extractPrimary(doc, c.logger)
	switch {
	case err != nil:
		c.logger.Warn("primary extraction failed, using fallback", "error", err)
	case len(fc) > 0:
		return fc, MethodPrimary, nil
	default:
		c.logger.Debug("primary extraction found no features, using fallback")
	}

	fc, err = extractFallback(doc, c.logger)
	if err != nil {
		return nil, "", err
	}
	return fc, MethodFallback, nil
}

// Convert runs the pipeline with default settings.
func Convert(data []byte) (*Result, error) {
	return NewConverter().Convert(data)
}
