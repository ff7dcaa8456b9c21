package ipc

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"voiceforge/internal/logging"
	"voiceforge/internal/stage"
	"voiceforge/internal/testsupport"
)

type staticState struct{}

func (staticState) Health(context.Context) []stage.Health {
	return []stage.Health{
		stage.Healthy("fetch"),
		stage.Unhealthy("train", "trainer not found"),
	}
}

func startTestServer(t *testing.T) (string, chan struct{}) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	if _, err := store.NewRemote(context.Background(), "narrator", "https://example.com/v"); err != nil {
		t.Fatalf("seed queue: %v", err)
	}

	// Unix socket paths have a short length limit; keep it tight.
	socket := filepath.Join(os.TempDir(), "vf-test.sock")
	os.Remove(socket)

	shutdown := make(chan struct{}, 1)
	server := NewServer(socket, "test", store, staticState{}, shutdown, logging.NewNop())
	if err := server.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(server.Stop)
	return socket, shutdown
}

func TestPingAndStatus(t *testing.T) {
	socket, _ := startTestServer(t)

	client, err := Dial(socket, time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	ping, err := client.Ping()
	if err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if ping.PID != os.Getpid() || ping.Version != "test" {
		t.Errorf("ping = %+v", ping)
	}

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.QueueCounts["pending"] != 1 {
		t.Errorf("queue counts = %v", status.QueueCounts)
	}
	if len(status.StageHealths) != 2 {
		t.Fatalf("stage healths = %d, want 2", len(status.StageHealths))
	}
	if status.StageHealths[1].Ready {
		t.Error("unhealthy stage reported ready")
	}
}

func TestShutdownSignals(t *testing.T) {
	socket, shutdown := startTestServer(t)

	client, err := Dial(socket, time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	if err := client.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	select {
	case <-shutdown:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown signal not delivered")
	}
}

func TestDialMissingSocket(t *testing.T) {
	if _, err := Dial(filepath.Join(t.TempDir(), "absent.sock"), 200*time.Millisecond); err == nil {
		t.Fatal("expected error for missing socket")
	}
}
