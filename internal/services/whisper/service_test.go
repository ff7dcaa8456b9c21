package whisper

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"voiceforge/internal/logging"
	"voiceforge/internal/services"
)

const sampleJSON = `{
	"text": "  Hello   world. ",
	"language": "en",
	"segments": [
		{"start": 0.0, "end": 2.34, "text": " Hello"},
		{"start": 2.34, "end": 4.5, "text": " world."}
	]
}`

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	defer os.Exit(0)

	switch os.Getenv("WHISPER_HELPER_MODE") {
	case "success":
		outDir := os.Getenv("WHISPER_HELPER_OUTDIR")
		name := os.Getenv("WHISPER_HELPER_NAME")
		os.WriteFile(filepath.Join(outDir, name+".json"), []byte(sampleJSON), 0o644)
	case "failure":
		fmt.Fprintln(os.Stderr, "RuntimeError: CUDA out of memory")
		os.Exit(1)
	}
}

func stubCommand(t *testing.T, mode, outDir, name string) {
	t.Helper()
	original := commandContext
	commandContext = func(ctx context.Context, bin string, args ...string) *exec.Cmd {
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(),
			"GO_WANT_HELPER_PROCESS=1",
			"WHISPER_HELPER_MODE="+mode,
			"WHISPER_HELPER_OUTDIR="+outDir,
			"WHISPER_HELPER_NAME="+name,
		)
		return cmd
	}
	t.Cleanup(func() { commandContext = original })
}

func TestBuildArgs(t *testing.T) {
	svc := New(Config{Binary: "whisper", Model: "medium.en", Language: "en", Device: "cpu"}, logging.NewNop())
	args := svc.buildArgs("clip.wav", "/out")
	joined := strings.Join(args, " ")
	for _, want := range []string{"--model medium.en", "--output_format json", "--language en", "--device cpu", "--fp16 False"} {
		if !strings.Contains(joined, want) {
			t.Errorf("missing %q in %s", want, joined)
		}
	}
}

func TestBuildArgsAutoDeviceOmitsFlag(t *testing.T) {
	svc := New(Config{Binary: "whisper", Model: "medium.en", Device: "auto"}, logging.NewNop())
	joined := strings.Join(svc.buildArgs("clip.wav", "/out"), " ")
	if strings.Contains(joined, "--device") {
		t.Errorf("auto device should omit flag: %s", joined)
	}
}

func TestTranscribeParsesResult(t *testing.T) {
	outDir := t.TempDir()
	stubCommand(t, "success", outDir, "clip_0001")

	svc := New(Config{Binary: "whisper", Model: "medium.en"}, logging.NewNop())
	result, err := svc.Transcribe(context.Background(), "/clips/clip_0001.wav", outDir)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if result.CleanText() != "Hello world." {
		t.Errorf("clean text = %q", result.CleanText())
	}
	if len(result.Segments) != 2 {
		t.Fatalf("segments = %d", len(result.Segments))
	}
	if !result.Segments[1].End.Equal(decimal.NewFromFloat(4.5)) {
		t.Errorf("segment end = %s", result.Segments[1].End)
	}
}

func TestTranscribeWrapsToolFailure(t *testing.T) {
	outDir := t.TempDir()
	stubCommand(t, "failure", outDir, "clip_0001")

	svc := New(Config{Binary: "whisper", Model: "medium.en"}, logging.NewNop())
	_, err := svc.Transcribe(context.Background(), "/clips/clip_0001.wav", outDir)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("err = %v, want ErrExternalTool", err)
	}
	if !strings.Contains(err.Error(), "CUDA out of memory") {
		t.Errorf("tool output not surfaced: %v", err)
	}
}

func TestSpeechDurationSumsSegments(t *testing.T) {
	result := Result{Segments: []Segment{
		{Start: decimal.RequireFromString("0.0"), End: decimal.RequireFromString("1.1")},
		{Start: decimal.RequireFromString("2.2"), End: decimal.RequireFromString("3.305")},
		// Backwards span from a decoder glitch; must not subtract.
		{Start: decimal.RequireFromString("5.0"), End: decimal.RequireFromString("4.0")},
	}}

	if !result.SpeechDuration().Equal(decimal.RequireFromString("2.205")) {
		t.Errorf("speech duration = %s, want 2.205", result.SpeechDuration())
	}
	if got := result.SpeechMilliseconds(); got != 2205 {
		t.Errorf("speech ms = %d, want 2205", got)
	}
}

func TestSpeechDurationEmptyResult(t *testing.T) {
	if got := (Result{}).SpeechMilliseconds(); got != 0 {
		t.Errorf("speech ms = %d, want 0", got)
	}
}

func TestLoadResultMissingFile(t *testing.T) {
	if _, err := LoadResult(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
