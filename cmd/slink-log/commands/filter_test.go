package commands

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/slink-protocol/slink-go/pkg/log"
)

// readAllEvents reads every event from a log file.
func readAllEvents(t *testing.T, path string) []log.Event {
	t.Helper()

	reader, err := log.NewReader(path)
	if err != nil {
		t.Fatalf("failed to open %s: %v", path, err)
	}
	defer reader.Close()

	var events []log.Event
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("failed to read event: %v", err)
		}
		events = append(events, event)
	}
	return events
}

func TestFilterByConnID(t *testing.T) {
	ts := time.Now()
	events := []log.Event{
		{Timestamp: ts, ConnectionID: "conn-keep", Frame: &log.FrameEvent{Size: 1}},
		{Timestamp: ts, ConnectionID: "conn-drop", Frame: &log.FrameEvent{Size: 2}},
		{Timestamp: ts, ConnectionID: "conn-keep", Frame: &log.FrameEvent{Size: 3}},
	}

	path := createTestLogFile(t, events)
	out := filepath.Join(t.TempDir(), "filtered.plog")

	err := RunFilter(path, FilterOptions{Output: out, ConnID: "conn-keep"})
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}

	kept := readAllEvents(t, out)
	if len(kept) != 2 {
		t.Fatalf("kept %d events, want 2", len(kept))
	}
	for _, e := range kept {
		if e.ConnectionID != "conn-keep" {
			t.Errorf("unexpected connection: %s", e.ConnectionID)
		}
	}
}

func TestFilterByLayer(t *testing.T) {
	ts := time.Now()
	events := []log.Event{
		{Timestamp: ts, Layer: log.LayerTransport, Frame: &log.FrameEvent{Size: 1}},
		{Timestamp: ts, Layer: log.LayerWire, ControlMsg: &log.ControlMsgEvent{Type: log.ControlMsgPing}},
	}

	path := createTestLogFile(t, events)
	out := filepath.Join(t.TempDir(), "filtered.plog")

	if err := RunFilter(path, FilterOptions{Output: out, Layer: "wire"}); err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}

	kept := readAllEvents(t, out)
	if len(kept) != 1 || kept[0].Layer != log.LayerWire {
		t.Errorf("kept = %+v, want single wire event", kept)
	}
}

func TestFilterByTimeRange(t *testing.T) {
	base := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: base, Frame: &log.FrameEvent{Size: 1}},
		{Timestamp: base.Add(time.Hour), Frame: &log.FrameEvent{Size: 2}},
		{Timestamp: base.Add(2 * time.Hour), Frame: &log.FrameEvent{Size: 3}},
	}

	path := createTestLogFile(t, events)
	out := filepath.Join(t.TempDir(), "filtered.plog")

	opts := FilterOptions{
		Output:    out,
		TimeStart: base.Add(30 * time.Minute).Format(time.RFC3339),
		TimeEnd:   base.Add(90 * time.Minute).Format(time.RFC3339),
	}
	if err := RunFilter(path, opts); err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}

	kept := readAllEvents(t, out)
	if len(kept) != 1 || kept[0].Frame.Size != 2 {
		t.Errorf("kept = %+v, want single middle event", kept)
	}
}

func TestFilterInvalidTime(t *testing.T) {
	path := createTestLogFile(t, []log.Event{{Timestamp: time.Now()}})
	out := filepath.Join(t.TempDir(), "filtered.plog")

	err := RunFilter(path, FilterOptions{Output: out, TimeStart: "yesterday"})
	if err == nil {
		t.Error("expected error for invalid time format")
	}
}

func TestFilterInvalidLayer(t *testing.T) {
	path := createTestLogFile(t, []log.Event{{Timestamp: time.Now()}})
	out := filepath.Join(t.TempDir(), "filtered.plog")

	if err := RunFilter(path, FilterOptions{Output: out, Layer: "application"}); err == nil {
		t.Error("expected error for invalid layer")
	}
}
