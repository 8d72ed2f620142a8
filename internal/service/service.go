// Package service orchestrates fetching, converting and reporting on KML
// documents.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	converter "github.com/mumuon/drivefinder/kml-service"
	"github.com/mumuon/drivefinder/kml-service/internal/source"
)

// Error codes for fetch failures, alongside the converter's codes.
const (
	CodeNotFound          = "not_found"
	CodeTooLarge          = "too_large"
	CodeUnsupportedSource = "unsupported_source"
	CodeFetchFailed       = "fetch_failed"
	CodeCanceled          = "canceled"
)

// Fetcher obtains documents by URI or from memory.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) (*source.Document, error)
	FromBytes(name string, data []byte) (*source.Document, error)
}

// Observer receives conversion and fetch measurements.
type Observer interface {
	ObserveConversion(method, status string, features int, duration time.Duration)
	ObserveFetch(scheme string, success bool, duration time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveConversion(string, string, int, time.Duration) {}
func (nopObserver) ObserveFetch(string, bool, time.Duration)             {}

// Conversion is a completed conversion with its reports.
type Conversion struct {
	ID        string
	Source    string // URI or upload name
	Entry     string // KMZ entry, empty for plain KML
	Result    *converter.Result
	Summary   converter.SummaryReport
	Detail    converter.DetailReport
	Duration  time.Duration
	CreatedAt time.Time
}

// ConversionService runs conversions end to end.
type ConversionService struct {
	fetcher   Fetcher
	converter *converter.Converter
	observer  Observer
	logger    *slog.Logger
}

// Option configures a ConversionService.
type Option func(*ConversionService)

// WithObserver sets the metrics observer.
func WithObserver(o Observer) Option {
	return func(s *ConversionService) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *ConversionService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewConversionService creates a conversion service.
func NewConversionService(fetcher Fetcher, conv *converter.Converter, opts ...Option) *ConversionService {
	s := &ConversionService{
		fetcher:   fetcher,
		converter: conv,
		observer:  nopObserver{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Convert fetches the document at uri and converts it.
func (s *ConversionService) Convert(ctx context.Context, uri string) (*Conversion, error) {
	logger := s.logger.With("source", uri)
	logger.Info("converting document")

	start := time.Now()
	doc, err := s.fetcher.Fetch(ctx, uri)
	s.observer.ObserveFetch(source.Scheme(uri), err == nil, time.Since(start))
	if err != nil {
		logger.Warn("fetch failed", "error", err)
		s.observer.ObserveConversion("", ErrorCode(err), 0, time.Since(start))
		return nil, err
	}

	return s.convert(ctx, logger, uri, doc, start)
}

// ConvertBytes converts an in-memory KML or KMZ payload.
func (s *ConversionService) ConvertBytes(ctx context.Context, name string, data []byte) (*Conversion, error) {
	logger := s.logger.With("source", name)
	logger.Info("converting upload", "bytes", len(data))

	start := time.Now()
	doc, err := s.fetcher.FromBytes(name, data)
	if err != nil {
		err = &source.FetchError{URI: name, Err: err}
		logger.Warn("failed to read upload", "error", err)
		s.observer.ObserveConversion("", ErrorCode(err), 0, time.Since(start))
		return nil, err
	}

	return s.convert(ctx, logger, name, doc, start)
}

func (s *ConversionService) convert(ctx context.Context, logger *slog.Logger, src string, doc *source.Document, start time.Time) (*Conversion, error) {
	if err := ctx.Err(); err != nil {
		s.observer.ObserveConversion("", CodeCanceled, 0, time.Since(start))
		return nil, err
	}

	result, err := s.converter.Convert(doc.Data)
	if err != nil {
		logger.Warn("conversion failed", "error", err, "code", converter.ErrorCode(err))
		s.observer.ObserveConversion("", converter.ErrorCode(err), 0, time.Since(start))
		return nil, fmt.Errorf("failed to convert %s: %w", src, err)
	}

	c := &Conversion{
		ID:        uuid.New().String(),
		Source:    src,
		Entry:     doc.Entry,
		Result:    result,
		Summary:   result.Summary(),
		Detail:    result.Detail(),
		Duration:  time.Since(start),
		CreatedAt: time.Now(),
	}

	s.observer.ObserveConversion(string(result.Method), "success", len(result.Collection), c.Duration)
	logger.Info("conversion complete",
		"id", c.ID,
		"method", result.Method,
		"features", len(result.Collection),
		"duration", c.Duration,
	)
	return c, nil
}

// ErrorCode maps a service error to its machine-readable kind.
func ErrorCode(err error) string {
	var fetchErr *source.FetchError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CodeCanceled
	case errors.As(err, &fetchErr):
		switch {
		case errors.Is(err, source.ErrNotFound):
			return CodeNotFound
		case errors.Is(err, source.ErrTooLarge):
			return CodeTooLarge
		case errors.Is(err, source.ErrUnsupportedScheme):
			return CodeUnsupportedSource
		default:
			return CodeFetchFailed
		}
	default:
		return converter.ErrorCode(err)
	}
}
