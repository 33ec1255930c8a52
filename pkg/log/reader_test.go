package log

import (
	"io"
	"path/filepath"
	"testing"
	"time"
)

// writeEvents writes a fixed mix of events and returns the file path.
func writeEvents(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mixed.plog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatal(err)
	}
	defer logger.Close()

	base := time.Now()
	events := []Event{
		{Timestamp: base, ConnectionID: "conn-1", Direction: DirectionIn, Layer: LayerTransport, Category: CategoryMessage},
		{Timestamp: base.Add(time.Second), ConnectionID: "conn-1", Direction: DirectionOut, Layer: LayerWire, Category: CategoryControl},
		{Timestamp: base.Add(2 * time.Second), ConnectionID: "conn-2", Direction: DirectionIn, Layer: LayerSession, Category: CategoryState},
		{Timestamp: base.Add(3 * time.Second), ConnectionID: "conn-2", Direction: DirectionIn, Layer: LayerTransport, Category: CategoryError},
	}
	for _, e := range events {
		logger.Log(e)
	}
	return path
}

func countEvents(t *testing.T, path string, filter Filter) int {
	t.Helper()
	reader, err := NewFilteredReader(path, filter)
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()

	count := 0
	for {
		if _, err := reader.Next(); err == io.EOF {
			break
		} else if err != nil {
			t.Fatal(err)
		}
		count++
	}
	return count
}

func TestReaderNoFilter(t *testing.T) {
	path := writeEvents(t)
	if got := countEvents(t, path, Filter{}); got != 4 {
		t.Errorf("unfiltered count = %d, want 4", got)
	}
}

func TestReaderFilters(t *testing.T) {
	path := writeEvents(t)

	dirIn := DirectionIn
	layerTransport := LayerTransport
	catControl := CategoryControl

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"by connection", Filter{ConnectionID: "conn-1"}, 2},
		{"by direction", Filter{Direction: &dirIn}, 3},
		{"by layer", Filter{Layer: &layerTransport}, 2},
		{"by category", Filter{Category: &catControl}, 1},
		{"combined", Filter{ConnectionID: "conn-2", Layer: &layerTransport}, 1},
		{"no match", Filter{ConnectionID: "conn-9"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := countEvents(t, path, tt.filter); got != tt.want {
				t.Errorf("count = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestReaderTimeWindow(t *testing.T) {
	path := writeEvents(t)

	reader, err := NewReader(path)
	if err != nil {
		t.Fatal(err)
	}
	first, err := reader.Next()
	if err != nil {
		t.Fatal(err)
	}
	reader.Close()

	// Window covering only the second and third event
	start := first.Timestamp.Add(500 * time.Millisecond)
	end := first.Timestamp.Add(2500 * time.Millisecond)
	if got := countEvents(t, path, Filter{TimeStart: &start, TimeEnd: &end}); got != 2 {
		t.Errorf("windowed count = %d, want 2", got)
	}
}

func TestReaderMissingFile(t *testing.T) {
	if _, err := NewReader(filepath.Join(t.TempDir(), "nope.plog")); err == nil {
		t.Error("expected error for missing file")
	}
}
