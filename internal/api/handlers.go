package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/paulmach/orb/geojson"

	converter "github.com/mumuon/drivefinder/kml-service"
	"github.com/mumuon/drivefinder/kml-service/internal/service"
	"github.com/mumuon/drivefinder/kml-service/internal/source"
)

// Codes for request errors that never reach the service.
const (
	CodeInvalidRequest = "invalid_request"
	CodeNotFound       = "not_found"
)

// ConvertRequest asks the service to fetch and convert a remote document.
type ConvertRequest struct {
	URI string `json:"uri"`
}

// ConversionResponse is returned when a conversion is created.
type ConversionResponse struct {
	ID         string                     `json:"id"`
	Source     string                     `json:"source"`
	Entry      string                     `json:"entry,omitempty"`
	Method     converter.ExtractionMethod `json:"method"`
	Features   int                        `json:"features"`
	DurationMs int64                      `json:"duration_ms"`
	GeoJSON    *geojson.FeatureCollection `json:"geojson"`
}

// ConversionInfo describes a stored conversion without its geometry.
type ConversionInfo struct {
	ID        string                     `json:"id"`
	Source    string                     `json:"source"`
	Method    converter.ExtractionMethod `json:"method"`
	Features  int                        `json:"features"`
	CreatedAt string                     `json:"created_at"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// handleCreateConversion handles POST /api/v1/conversions. A JSON body names
// a URI to fetch, limited to the configured schemes; any other body is
// treated as a KML or KMZ upload.
func (s *Server) handleCreateConversion(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "request body too large", service.CodeTooLarge)
			return
		}
		s.writeError(w, http.StatusBadRequest, "failed to read request body", CodeInvalidRequest)
		return
	}

	var conv *service.Conversion
	if isJSON(r.Header.Get("Content-Type")) {
		var req ConvertRequest
		if err := json.Unmarshal(body, &req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request: "+err.Error(), CodeInvalidRequest)
			return
		}
		if req.URI == "" {
			s.writeError(w, http.StatusBadRequest, "uri is required", CodeInvalidRequest)
			return
		}
		if scheme := source.Scheme(req.URI); !s.schemes[scheme] {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("uri scheme %q is not allowed", scheme), service.CodeUnsupportedSource)
			return
		}
		conv, err = s.converter.Convert(r.Context(), req.URI)
	} else {
		if len(body) == 0 {
			s.writeError(w, http.StatusBadRequest, "request body is empty", CodeInvalidRequest)
			return
		}
		name := r.URL.Query().Get("name")
		if name == "" {
			name = "upload"
		}
		conv, err = s.converter.ConvertBytes(r.Context(), name, body)
	}
	if err != nil {
		s.handleServiceError(w, err)
		return
	}

	s.store.Put(conv)

	w.Header().Set("Location", "/api/v1/conversions/"+conv.ID)
	s.writeJSON(w, http.StatusCreated, ConversionResponse{
		ID:         conv.ID,
		Source:     conv.Source,
		Entry:      conv.Entry,
		Method:     conv.Result.Method,
		Features:   len(conv.Result.Collection),
		DurationMs: conv.Duration.Milliseconds(),
		GeoJSON:    conv.Result.GeoJSON(),
	})
}

// handleListConversions handles GET /api/v1/conversions
func (s *Server) handleListConversions(w http.ResponseWriter, r *http.Request) {
	conversions := s.store.List()

	infos := make([]ConversionInfo, 0, len(conversions))
	for _, c := range conversions {
		infos = append(infos, ConversionInfo{
			ID:        c.ID,
			Source:    c.Source,
			Method:    c.Result.Method,
			Features:  len(c.Result.Collection),
			CreatedAt: c.CreatedAt.Format(time.RFC3339),
		})
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"conversions": infos,
		"count":       len(infos),
	})
}

// handleGetConversion handles GET /api/v1/conversions/{id} and returns the
// GeoJSON feature collection.
func (s *Server) handleGetConversion(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.lookup(w, r)
	if !ok {
		return
	}

	data, err := json.Marshal(conv.Result.GeoJSON())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to encode GeoJSON", converter.CodeInternal)
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleDeleteConversion handles DELETE /api/v1/conversions/{id}
func (s *Server) handleDeleteConversion(w http.ResponseWriter, r *http.Request) {
	if !s.store.Delete(mux.Vars(r)["id"]) {
		s.writeError(w, http.StatusNotFound, "conversion not found", CodeNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetSummary handles GET /api/v1/conversions/{id}/summary
func (s *Server) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, conv.Summary)
}

// handleGetDetails handles GET /api/v1/conversions/{id}/details
func (s *Server) handleGetDetails(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, conv.Detail)
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"version":     s.version,
		"conversions": s.store.Len(),
		"uptime":      time.Since(s.started).Round(time.Second).String(),
		"time":        time.Now().Format(time.RFC3339),
	})
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*service.Conversion, bool) {
	conv, ok := s.store.Get(mux.Vars(r)["id"])
	if !ok {
		s.writeError(w, http.StatusNotFound, "conversion not found", CodeNotFound)
	}
	return conv, ok
}

func (s *Server) handleServiceError(w http.ResponseWriter, err error) {
	code := service.ErrorCode(err)
	status := statusForCode(code)
	if status >= http.StatusInternalServerError {
		s.logger.Error("conversion failed", "error", err, "code", code)
	}
	s.writeError(w, status, err.Error(), code)
}

// statusForCode maps error codes to HTTP status codes.
func statusForCode(code string) int {
	switch code {
	case converter.CodeMalformedDocument, service.CodeUnsupportedSource:
		return http.StatusBadRequest
	case converter.CodeNoFeaturesExtracted:
		return http.StatusUnprocessableEntity
	case service.CodeNotFound:
		return http.StatusNotFound
	case service.CodeTooLarge:
		return http.StatusRequestEntityTooLarge
	case service.CodeFetchFailed:
		return http.StatusBadGateway
	case service.CodeCanceled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "application/json"
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// writeError writes an error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message, code string) {
	s.writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}
