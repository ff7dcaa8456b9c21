package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"voiceforge/internal/logging"
	"voiceforge/internal/services"
)

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	defer os.Exit(0)

	switch os.Getenv("YTDLP_HELPER_MODE") {
	case "success":
		fmt.Println("[download] Destination: source.wav")
		fmt.Println("[download]  25.0% of 10.00MiB at 2.00MiB/s ETA 00:04")
		fmt.Println("[download] 100.0% of 10.00MiB in 00:05")
		dest := os.Getenv("YTDLP_HELPER_DEST")
		os.WriteFile(filepath.Join(dest, "source.wav"), []byte("audio"), 0o644)
	case "failure":
		fmt.Println("ERROR: [generic] Unable to download webpage")
		os.Exit(1)
	}
}

func stubCommand(t *testing.T, mode, dest string) {
	t.Helper()
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(),
			"GO_WANT_HELPER_PROCESS=1",
			"YTDLP_HELPER_MODE="+mode,
			"YTDLP_HELPER_DEST="+dest,
		)
		return cmd
	}
	t.Cleanup(func() { commandContext = original })
}

func TestFetchReportsProgressAndResult(t *testing.T) {
	dest := t.TempDir()
	stubCommand(t, "success", dest)

	client := New("yt-dlp", "wav", logging.NewNop())
	var percents []float64
	path, err := client.Fetch(context.Background(), "https://example.com/v", dest, func(p Progress) {
		percents = append(percents, p.Percent)
	})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if filepath.Base(path) != "source.wav" {
		t.Errorf("result path = %s", path)
	}
	if len(percents) < 2 || percents[len(percents)-1] != 100 {
		t.Errorf("progress percents = %v", percents)
	}
}

func TestFetchWrapsFailure(t *testing.T) {
	dest := t.TempDir()
	stubCommand(t, "failure", dest)

	client := New("yt-dlp", "wav", logging.NewNop())
	_, err := client.Fetch(context.Background(), "https://example.com/v", dest, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Errorf("err = %v, want ErrExternalTool", err)
	}
}
