package app

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSlHandler_Handle(t *testing.T) {
	ts := time.Date(2024, 6, 15, 14, 30, 45, 0, time.UTC)

	tests := []struct {
		name    string
		opID    string
		level   slog.Level
		message string
		attrs   []slog.Attr
		want    string
	}{
		{
			name:    "basic info message",
			opID:    "op-123",
			level:   slog.LevelInfo,
			message: "volume synced",
			want:    "2024-06-15T14:30:45Z\tINFO\top-123\tvolume synced\n",
		},
		{
			name:    "debug level",
			opID:    "op-456",
			level:   slog.LevelDebug,
			message: "scan report archived",
			want:    "2024-06-15T14:30:45Z\tDEBUG\top-456\tscan report archived\n",
		},
		{
			name:    "with record attrs",
			opID:    "op-789",
			level:   slog.LevelInfo,
			message: "scan report queued",
			attrs:   []slog.Attr{slog.String("volume", "NXT 01"), slog.Int("pending", 2)},
			want:    "2024-06-15T14:30:45Z\tINFO\top-789\tscan report queued\tvolume=NXT 01\tpending=2\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := &slHandler{w: &buf, opID: tt.opID, min: slog.LevelDebug}

			r := slog.NewRecord(ts, tt.level, tt.message, 0)
			for _, a := range tt.attrs {
				r.AddAttrs(a)
			}

			if err := h.Handle(context.Background(), r); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}

			if got := buf.String(); got != tt.want {
				t.Errorf("Handle() output =\n%q\nwant:\n%q", got, tt.want)
			}
		})
	}
}

func TestSlHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := &slHandler{w: &buf, opID: "op-1"}

	h2 := h.WithAttrs([]slog.Attr{slog.String("component", "store")}).(*slHandler)

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := slog.NewRecord(ts, slog.LevelInfo, "query", 0)
	r.AddAttrs(slog.String("relation", "volumes"))

	if err := h2.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	got := buf.String()
	if !strings.Contains(got, "component=store") {
		t.Errorf("expected pre-set attr component=store, got: %q", got)
	}
	if !strings.Contains(got, "relation=volumes") {
		t.Errorf("expected record attr relation=volumes, got: %q", got)
	}
}

func TestSlHandler_WithAttrs_doesNotMutateOriginal(t *testing.T) {
	var buf bytes.Buffer
	h := &slHandler{w: &buf, opID: "op-1", attrs: []slog.Attr{slog.String("a", "1")}}

	h2 := h.WithAttrs([]slog.Attr{slog.String("b", "2")}).(*slHandler)

	if len(h.attrs) != 1 {
		t.Errorf("original handler attrs modified: got %d, want 1", len(h.attrs))
	}
	if len(h2.attrs) != 2 {
		t.Errorf("new handler attrs: got %d, want 2", len(h2.attrs))
	}
}

func TestSlHandler_Enabled(t *testing.T) {
	h := &slHandler{min: slog.LevelInfo}
	tests := []struct {
		level slog.Level
		want  bool
	}{
		{slog.LevelDebug, false},
		{slog.LevelInfo, true},
		{slog.LevelWarn, true},
		{slog.LevelError, true},
	}
	for _, tt := range tests {
		if got := h.Enabled(context.Background(), tt.level); got != tt.want {
			t.Errorf("Enabled(%v) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestFanout(t *testing.T) {
	var file, console bytes.Buffer
	logger := slog.New(fanout{
		&slHandler{w: &file, opID: "op", min: slog.LevelDebug},
		&slHandler{w: &console, opID: "op", min: slog.LevelInfo},
	})

	logger.Debug("details")
	logger.With("volume", "NXT 01").Info("synced")

	if got := strings.Count(file.String(), "\n"); got != 2 {
		t.Errorf("file lines = %d, want 2: %q", got, file.String())
	}
	if strings.Contains(console.String(), "details") {
		t.Errorf("console received debug record: %q", console.String())
	}
	if !strings.Contains(console.String(), "synced\tvolume=NXT 01") {
		t.Errorf("console = %q, want synced record with volume attr", console.String())
	}
}

func TestNewLogger(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "log")

	logger, f, err := newLogger(dir, "test-op", false)
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	defer f.Close()

	if logger == nil {
		t.Fatal("newLogger() returned nil logger")
	}
	logger.Debug("only in file")

	data, err := os.ReadFile(filepath.Join(dir, LogFileName))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "test-op\tonly in file") {
		t.Errorf("log file = %q, want debug record", data)
	}
}
