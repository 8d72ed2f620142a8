package converter

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the conversion pipeline. Only these two cross the
// pipeline boundary; coordinate-level problems are resolved by omission.
var (
	ErrMalformedDocument   = errors.New("malformed document")
	ErrNoFeaturesExtracted = errors.New("no features extracted")
)

// Error codes reported to callers that need a machine-readable kind.
const (
	CodeMalformedDocument   = "malformed_document"
	CodeNoFeaturesExtracted = "no_features_extracted"
	CodeInternal            = "internal"
)

// MalformedDocumentError reports input that is not well-formed XML.
type MalformedDocumentError struct {
	Line int   // Line of the syntax error, 0 if unknown
	Err  error // Underlying decoder error
}

// Error implements the error interface.
func (e *MalformedDocumentError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed document at line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("malformed document: %v", e.Err)
}

// Unwrap returns the sentinel so errors.Is(err, ErrMalformedDocument) holds.
func (e *MalformedDocumentError) Unwrap() error {
	return ErrMalformedDocument
}

// NoFeaturesError reports that neither extractor produced a feature.
type NoFeaturesError struct {
	Placemarks int // Placemark-like elements seen by the fallback traversal
}

// Error implements the error interface.
func (e *NoFeaturesError) Error() string {
	if e.Placemarks == 0 {
		return "no features extracted: document contains no placemarks"
	}
	return fmt.Sprintf("no features extracted: none of %d placemarks has a usable point, path or polygon", e.Placemarks)
}

// Unwrap returns the sentinel so errors.Is(err, ErrNoFeaturesExtracted) holds.
func (e *NoFeaturesError) Unwrap() error {
	return ErrNoFeaturesExtracted
}

// ErrorCode maps an error to its machine-readable kind. A nil error has no
// code.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMalformedDocument):
		return CodeMalformedDocument
	case errors.Is(err, ErrNoFeaturesExtracted):
		return CodeNoFeaturesExtracted
	default:
		return CodeInternal
	}
}
