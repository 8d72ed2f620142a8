package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	converter "github.com/mumuon/drivefinder/kml-service"
	"github.com/mumuon/drivefinder/kml-service/internal/source"
)

const roadsKML = `<kml xmlns="http://www.opengis.net/kml/2.2"><Document>
<Placemark><name>A</name><LineString><coordinates>0,0 0,1</coordinates></LineString></Placemark>
<Placemark><name>B</name><Point><coordinates>1,1</coordinates></Point></Placemark>
</Document></kml>`

type recordingObserver struct {
	mu          sync.Mutex
	conversions []string
	fetches     []string
}

func (o *recordingObserver) ObserveConversion(method, status string, features int, d time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.conversions = append(o.conversions, fmt.Sprintf("%s/%s/%d", method, status, features))
}

func (o *recordingObserver) ObserveFetch(scheme string, success bool, d time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fetches = append(o.fetches, fmt.Sprintf("%s/%v", scheme, success))
}

func newTestService(obs Observer) *ConversionService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewConversionService(
		source.NewResolver(source.WithLogger(logger)),
		converter.NewConverter(converter.WithLogger(logger)),
		WithObserver(obs),
		WithLogger(logger),
	)
}

func TestConvert_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roads.kml")
	if err := os.WriteFile(path, []byte(roadsKML), 0644); err != nil {
		t.Fatal(err)
	}

	obs := &recordingObserver{}
	c, err := newTestService(obs).Convert(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if c.ID == "" || c.Source != path {
		t.Errorf("unexpected conversion identity %q %q", c.ID, c.Source)
	}
	if c.Result.Method != converter.MethodPrimary {
		t.Errorf("expected primary method, got %s", c.Result.Method)
	}
	if c.Summary[converter.KindLineString] != 1 || c.Summary[converter.KindPoint] != 1 {
		t.Errorf("unexpected summary %v", c.Summary)
	}
	if len(c.Detail) != 2 || c.Detail[0].LengthKm == nil {
		t.Errorf("unexpected detail %+v", c.Detail)
	}

	if len(obs.fetches) != 1 || obs.fetches[0] != "file/true" {
		t.Errorf("unexpected fetch observations %v", obs.fetches)
	}
	if len(obs.conversions) != 1 || obs.conversions[0] != "primary/success/2" {
		t.Errorf("unexpected conversion observations %v", obs.conversions)
	}
}

func TestConvert_Errors(t *testing.T) {
	dir := t.TempDir()
	malformed := filepath.Join(dir, "bad.kml")
	empty := filepath.Join(dir, "empty.kml")
	if err := os.WriteFile(malformed, []byte("<kml><Placemark>"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(empty, []byte("<kml><Document/></kml>"), 0644); err != nil {
		t.Fatal(err)
	}

	testCases := []struct {
		name string
		uri  string
		code string
	}{
		{name: "Missing file", uri: filepath.Join(dir, "missing.kml"), code: CodeNotFound},
		{name: "Unsupported scheme", uri: "ftp://host/a.kml", code: CodeUnsupportedSource},
		{name: "Malformed", uri: malformed, code: converter.CodeMalformedDocument},
		{name: "No features", uri: empty, code: converter.CodeNoFeaturesExtracted},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			obs := &recordingObserver{}
			_, err := newTestService(obs).Convert(context.Background(), tc.uri)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := ErrorCode(err); got != tc.code {
				t.Errorf("expected code %s, got %s (%v)", tc.code, got, err)
			}
			if len(obs.conversions) != 1 || obs.conversions[0] != "/"+tc.code+"/0" {
				t.Errorf("unexpected conversion observations %v", obs.conversions)
			}
		})
	}
}

func TestConvertBytes(t *testing.T) {
	svc := newTestService(nil)

	c, err := svc.ConvertBytes(context.Background(), "upload.kml", []byte(roadsKML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(c.Result.Collection) != 2 {
		t.Errorf("expected 2 features, got %d", len(c.Result.Collection))
	}

	_, err = svc.ConvertBytes(context.Background(), "broken.kmz", []byte("PK\x03\x04broken"))
	if ErrorCode(err) != CodeFetchFailed {
		t.Errorf("expected %s for a corrupt archive, got %s (%v)", CodeFetchFailed, ErrorCode(err), err)
	}
}

func TestConvertBytes_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestService(nil).ConvertBytes(ctx, "upload.kml", []byte(roadsKML))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if ErrorCode(err) != CodeCanceled {
		t.Errorf("expected %s, got %s", CodeCanceled, ErrorCode(err))
	}
}
