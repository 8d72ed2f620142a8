package watcher

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	converter "github.com/mumuon/drivefinder/kml-service"
	"github.com/mumuon/drivefinder/kml-service/internal/service"
	"github.com/mumuon/drivefinder/kml-service/internal/source"
)

const watchKML = `<kml xmlns="http://www.opengis.net/kml/2.2"><Placemark><name>Pass</name><LineString><coordinates>0,0 0,1 1,1</coordinates></LineString></Placemark></kml>`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newConverter() *service.ConversionService {
	logger := discardLogger()
	return service.NewConversionService(
		source.NewResolver(source.WithLogger(logger)),
		converter.NewConverter(converter.WithLogger(logger)),
		service.WithLogger(logger),
	)
}

func TestFsnotifyOpToOperation(t *testing.T) {
	tests := []struct {
		name     string
		op       fsnotify.Op
		expected Operation
	}{
		{name: "Remove returns OpDelete", op: fsnotify.Remove, expected: OpDelete},
		{name: "Rename returns OpDelete", op: fsnotify.Rename, expected: OpDelete},
		{name: "Create returns OpCreate", op: fsnotify.Create, expected: OpCreate},
		{name: "Write returns OpModify", op: fsnotify.Write, expected: OpModify},
		{name: "Chmod returns OpModify", op: fsnotify.Chmod, expected: OpModify},
		{name: "Remove takes precedence over Write", op: fsnotify.Remove | fsnotify.Write, expected: OpDelete},
		{name: "Create takes precedence over Write", op: fsnotify.Create | fsnotify.Write, expected: OpCreate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := fsnotifyOpToOperation(tt.op); result != tt.expected {
				t.Errorf("fsnotifyOpToOperation(%v) = %v, want %v", tt.op, result, tt.expected)
			}
		})
	}
}

func TestIsKMLFile(t *testing.T) {
	tests := map[string]bool{
		"roads.kml":        true,
		"ROADS.KMZ":        true,
		"/a/b/c.kmz":       true,
		"roads.geojson":    false,
		"kml":              false,
		".kmlsvc-1234.tmp": false,
	}
	for path, expected := range tests {
		if got := IsKMLFile(path); got != expected {
			t.Errorf("IsKMLFile(%q) = %v, want %v", path, got, expected)
		}
	}
}

func TestDebounce(t *testing.T) {
	w := &Watcher{debounce: time.Second, pending: make(map[string]*pendingEvent)}
	t0 := time.Now()

	w.record("/d/a.kml", OpCreate, t0)
	w.record("/d/a.kml", OpModify, t0.Add(500*time.Millisecond))
	w.record("/d/b.kml", OpDelete, t0)
	w.record("/d/b.kml", OpCreate, t0.Add(100*time.Millisecond))
	w.record("/d/c.kml", OpModify, t0)
	w.record("/d/c.kml", OpDelete, t0.Add(100*time.Millisecond))

	if got := w.due(t0.Add(900 * time.Millisecond)); len(got) != 0 {
		t.Fatalf("expected nothing due yet, got %v", got)
	}

	got := w.due(t0.Add(1200 * time.Millisecond))
	expected := []Event{
		{Path: "/d/b.kml", Operation: OpCreate},
		{Path: "/d/c.kml", Operation: OpDelete},
	}
	if len(got) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, got)
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("event %d: expected %v, got %v", i, expected[i], got[i])
		}
	}

	got = w.due(t0.Add(2 * time.Second))
	if len(got) != 1 || got[0] != (Event{Path: "/d/a.kml", Operation: OpCreate}) {
		t.Errorf("expected the merged create for a.kml, got %v", got)
	}
}

func TestOutputPath(t *testing.T) {
	if got := OutputPath("/in/us-oregon.kmz", "/out"); got != filepath.Join("/out", "us-oregon.kmz.geojson") {
		t.Errorf("unexpected output path %s", got)
	}
	if got := OutputPath("/in/roads.kml", ""); got != filepath.Join("/in", "roads.kml.geojson") {
		t.Errorf("unexpected output path %s", got)
	}
	if OutputPath("/in/roads.kml", "/out") == OutputPath("/in/roads.kmz", "/out") {
		t.Error("roads.kml and roads.kmz must not share an output file")
	}
}

func TestGeoJSONWriter(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "nested")
	src := filepath.Join(in, "pass.kml")
	if err := os.WriteFile(src, []byte(watchKML), 0644); err != nil {
		t.Fatal(err)
	}

	handler := GeoJSONWriter(newConverter(), out, discardLogger())

	if err := handler(context.Background(), Event{Path: src, Operation: OpCreate}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(out, "pass.kml.geojson"))
	if err != nil {
		t.Fatalf("output not written: %v", err)
	}
	var fc struct {
		Type     string `json:"type"`
		Features []any  `json:"features"`
	}
	if err := json.Unmarshal(data, &fc); err != nil {
		t.Fatalf("invalid output: %v", err)
	}
	if fc.Type != "FeatureCollection" || len(fc.Features) != 1 {
		t.Errorf("unexpected output %s", data)
	}

	if err := handler(context.Background(), Event{Path: src, Operation: OpDelete}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "pass.kml.geojson")); !os.IsNotExist(err) {
		t.Errorf("expected output to be removed, got %v", err)
	}

	// Removing an output that never existed is not an error.
	if err := handler(context.Background(), Event{Path: filepath.Join(in, "ghost.kml"), Operation: OpDelete}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestGeoJSONWriter_ConversionError(t *testing.T) {
	src := filepath.Join(t.TempDir(), "broken.kml")
	if err := os.WriteFile(src, []byte("<kml>"), 0644); err != nil {
		t.Fatal(err)
	}

	err := GeoJSONWriter(newConverter(), "", discardLogger())(context.Background(), Event{Path: src, Operation: OpModify})
	if service.ErrorCode(err) != converter.CodeMalformedDocument {
		t.Errorf("expected malformed document error, got %v", err)
	}
	if _, statErr := os.Stat(OutputPath(src, "")); !os.IsNotExist(statErr) {
		t.Error("no output should be written for a failed conversion")
	}
}

type recordingHandler struct {
	mu     sync.Mutex
	events []Event
}

func (h *recordingHandler) handle(ctx context.Context, e Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, e)
	return nil
}

func (h *recordingHandler) snapshot() []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Event(nil), h.events...)
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.kmz", "a.kml", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	h := &recordingHandler{}
	w, err := New(dir, 0, h.handle, discardLogger())
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	defer w.Close()

	if err := w.Scan(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	events := h.snapshot()
	if len(events) != 2 || filepath.Base(events[0].Path) != "a.kml" || filepath.Base(events[1].Path) != "b.kmz" {
		t.Errorf("unexpected scan events %v", events)
	}
}

func TestRun_ConvertsNewFiles(t *testing.T) {
	dir := t.TempDir()
	h := &recordingHandler{}

	w, err := New(dir, 50*time.Millisecond, h.handle, discardLogger())
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	// Give the watcher a moment to register the directory.
	time.Sleep(100 * time.Millisecond)

	src := filepath.Join(dir, "new.kml")
	if err := os.WriteFile(src, []byte(watchKML), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if events := h.snapshot(); len(events) > 0 {
			if len(events) != 1 || events[0].Path != src || events[0].Operation != OpCreate {
				t.Errorf("unexpected events %v", events)
			}
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("timed out waiting for the file event")
}
