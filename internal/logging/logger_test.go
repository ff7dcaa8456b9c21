package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"voiceforge/internal/services"
)

func newBufferLogger(format string) (*slog.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelDebug)
	var handler slog.Handler
	if format == "json" {
		handler = newJSONHandler(buf, levelVar, false)
	} else {
		handler = newConsoleHandler(buf, levelVar, false)
	}
	return slog.New(handler), buf
}

func TestConsoleHandlerFormatsKeyValues(t *testing.T) {
	logger, buf := newBufferLogger("console")
	logger.Info("stage complete", String("stage", "train"), Int("clips", 120))

	line := buf.String()
	if !strings.Contains(line, "INFO") {
		t.Errorf("level missing: %q", line)
	}
	if !strings.Contains(line, "stage complete") {
		t.Errorf("message missing: %q", line)
	}
	if !strings.Contains(line, "stage=train") || !strings.Contains(line, "clips=120") {
		t.Errorf("attrs missing: %q", line)
	}
}

func TestConsoleHandlerLiftsComponentPrefix(t *testing.T) {
	logger, buf := newBufferLogger("console")
	NewComponentLogger(logger, "workflow").Info("lane started")

	line := buf.String()
	if !strings.Contains(line, "workflow: lane started") {
		t.Errorf("component prefix missing: %q", line)
	}
	if strings.Contains(line, "component=") {
		t.Errorf("component should not repeat as attr: %q", line)
	}
}

func TestConsoleHandlerQuotesValuesWithSpaces(t *testing.T) {
	logger, buf := newBufferLogger("console")
	logger.Info("msg", String("detail", "two words"))

	if !strings.Contains(buf.String(), `detail="two words"`) {
		t.Errorf("quoting missing: %q", buf.String())
	}
}

func TestConsoleHandlerOrdersPipelineFields(t *testing.T) {
	logger, buf := newBufferLogger("console")
	logger.Info("stage started",
		String("detail", "segmenting"),
		String(FieldLane, "background"),
		String(FieldVoice, "narrator"),
		Int64(FieldItemID, 7))

	line := buf.String()
	itemIdx := strings.Index(line, "item_id=7")
	voiceIdx := strings.Index(line, "voice=narrator")
	laneIdx := strings.Index(line, "lane=background")
	detailIdx := strings.Index(line, "detail=segmenting")
	if itemIdx < 0 || voiceIdx < 0 || laneIdx < 0 || detailIdx < 0 {
		t.Fatalf("fields missing: %q", line)
	}
	if !(itemIdx < voiceIdx && voiceIdx < laneIdx && laneIdx < detailIdx) {
		t.Errorf("pipeline fields not ordered first: %q", line)
	}
}

func TestJSONHandlerEmitsStandardKeys(t *testing.T) {
	logger, buf := newBufferLogger("json")
	logger.Warn("low disk", String("path", "/staging"))

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if record["level"] != "warn" {
		t.Errorf("level = %v", record["level"])
	}
	if record["msg"] != "low disk" {
		t.Errorf("msg = %v", record["msg"])
	}
	if _, ok := record["ts"]; !ok {
		t.Error("ts missing")
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWithContextAddsFields(t *testing.T) {
	logger, buf := newBufferLogger("console")

	ctx := services.WithItemID(context.Background(), 7)
	ctx = services.WithStage(ctx, "export")
	WithContext(ctx, logger).Info("publishing")

	line := buf.String()
	if !strings.Contains(line, "item_id=7") || !strings.Contains(line, "stage=export") {
		t.Errorf("context fields missing: %q", line)
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	// Must not panic and must report disabled at every level.
	logger := NewNop()
	logger.Error("dropped")
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Error("nop logger should be disabled")
	}
}
