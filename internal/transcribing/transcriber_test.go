package transcribing

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"voiceforge/internal/dataset"
	"voiceforge/internal/logging"
	"voiceforge/internal/notifications"
	"voiceforge/internal/queue"
	"voiceforge/internal/services"
	"voiceforge/internal/services/whisper"
	"voiceforge/internal/testsupport"
)

type nopNotifier struct{}

func (nopNotifier) Publish(context.Context, notifications.Event, string, string) error { return nil }

type fakeSTT struct {
	calls   []string
	results map[string]whisper.Result
}

func (f *fakeSTT) Transcribe(_ context.Context, wavPath, _ string) (whisper.Result, error) {
	base := strings.TrimSuffix(filepath.Base(wavPath), ".wav")
	f.calls = append(f.calls, base)
	result, ok := f.results[base]
	if !ok {
		return whisper.Result{}, services.Wrap(services.ErrExternalTool, "transcribe", "whisper",
			"no canned result for "+base, nil)
	}
	return result, nil
}

func resultWithSpeech(text, endSeconds string) whisper.Result {
	return whisper.Result{Text: text, Segments: []whisper.Segment{
		{Start: decimal.Zero, End: decimal.RequireFromString(endSeconds), Text: text},
	}}
}

func newTestHandler(t *testing.T) (*Handler, *queue.Item) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	item, err := store.NewLocal(context.Background(), "narrator", "/data/narrator.wav")
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	layout := dataset.NewLayout(cfg.Paths.StagingDir, item.ID)
	if err := layout.EnsureTree(); err != nil {
		t.Fatalf("EnsureTree: %v", err)
	}
	item.StagingDir = layout.Root
	item.DatasetDir = layout.ClipsDir()

	return NewHandler(cfg, store, nopNotifier{}, logging.NewNop()), item
}

func TestPrepareRequiresDataset(t *testing.T) {
	handler, item := newTestHandler(t)
	item.DatasetDir = ""

	err := handler.Prepare(context.Background(), item)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestPrepareRequiresClips(t *testing.T) {
	handler, item := newTestHandler(t)

	err := handler.Prepare(context.Background(), item)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestPreparePassesWithClips(t *testing.T) {
	handler, item := newTestHandler(t)
	layout := dataset.Layout{Root: item.StagingDir}
	testsupport.WriteFile(t, filepath.Join(layout.WavDir(), "narrator_0001_ab12cd34.wav"), []byte("pcm"))

	if err := handler.Prepare(context.Background(), item); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
}

func TestListClipsSorted(t *testing.T) {
	handler, item := newTestHandler(t)
	layout := dataset.Layout{Root: item.StagingDir}
	for _, name := range []string{"narrator_0002_b.wav", "narrator_0001_a.wav"} {
		testsupport.WriteFile(t, filepath.Join(layout.WavDir(), name), []byte("pcm"))
	}

	clips, err := handler.listClips(item)
	if err != nil {
		t.Fatalf("listClips: %v", err)
	}
	if len(clips) != 2 {
		t.Fatalf("clips = %d, want 2", len(clips))
	}
	if filepath.Base(clips[0]) != "narrator_0001_a.wav" {
		t.Errorf("clips not sorted: %v", clips)
	}
}

func TestExecuteReusesExistingTranscripts(t *testing.T) {
	handler, item := newTestHandler(t)
	layout := dataset.Layout{Root: item.StagingDir}
	testsupport.WriteFile(t, filepath.Join(layout.WavDir(), "narrator_0001_aaaa1111.wav"), []byte("pcm-a"))
	testsupport.WriteFile(t, filepath.Join(layout.WavDir(), "narrator_0002_bbbb2222.wav"), []byte("pcm-b"))

	// Sidecar left by an interrupted earlier pass. The clip id carries a
	// content digest, so the transcript is still valid for the same bytes.
	sidecar := `{"text":"from the sidecar","segments":[{"start":0,"end":3.2,"text":"from the sidecar"}]}`
	testsupport.WriteFile(t,
		filepath.Join(layout.ClipsDir(), "transcripts", "narrator_0001_aaaa1111.json"), []byte(sidecar))

	fake := &fakeSTT{results: map[string]whisper.Result{
		"narrator_0002_bbbb2222": resultWithSpeech("fresh transcription", "2.5"),
	}}
	handler.stt = fake

	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(fake.calls) != 1 || fake.calls[0] != "narrator_0002_bbbb2222" {
		t.Errorf("whisper invoked for %v, want only the clip without a sidecar", fake.calls)
	}

	entries, err := dataset.ReadManifest(layout.ManifestPath())
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Text != "from the sidecar" {
		t.Errorf("reused transcript text = %q", entries[0].Text)
	}
}

func TestExecuteDropsClipsWithTooLittleSpeech(t *testing.T) {
	handler, item := newTestHandler(t)
	handler.cfg.Transcription.MinSpeechSeconds = 1.0
	layout := dataset.Layout{Root: item.StagingDir}
	testsupport.WriteFile(t, filepath.Join(layout.WavDir(), "narrator_0001_aaaa1111.wav"), []byte("pcm-a"))
	testsupport.WriteFile(t, filepath.Join(layout.WavDir(), "narrator_0002_bbbb2222.wav"), []byte("pcm-b"))

	handler.stt = &fakeSTT{results: map[string]whisper.Result{
		// Whisper hallucinated text over a fraction of a second of audio.
		"narrator_0001_aaaa1111": resultWithSpeech("thanks for watching", "0.3"),
		"narrator_0002_bbbb2222": resultWithSpeech("a full sentence of narration", "4.1"),
	}}

	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	entries, err := dataset.ReadManifest(layout.ManifestPath())
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "narrator_0002_bbbb2222" {
		t.Errorf("entries = %+v, want only the clip with enough speech", entries)
	}
	if item.ClipCount != 1 {
		t.Errorf("clip count = %d, want 1", item.ClipCount)
	}
}

func TestHealthCheck(t *testing.T) {
	handler, _ := newTestHandler(t)

	handler.cfg.Transcription.WhisperBinary = "voiceforge-missing-whisper"
	if health := handler.HealthCheck(context.Background()); health.Ready {
		t.Error("missing whisper should be unhealthy")
	}

	testsupport.WithStubbedBinaries(t, "whisper")
	handler.cfg.Transcription.WhisperBinary = "whisper"
	if health := handler.HealthCheck(context.Background()); !health.Ready {
		t.Errorf("stubbed whisper should be healthy: %s", health.Detail)
	}
}
