//go:build !windows

package proc

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSpawn_missing_binary(t *testing.T) {
	_, err := Spawn("/nonexistent/ffmpeg-binary", nil)
	if err == nil {
		t.Fatal("expected spawn error for missing binary")
	}
}

func TestWait_returns_exit_code(t *testing.T) {
	h, err := Spawn("sh", []string{"-c", "exit 3"})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	code, err := h.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if code != 3 {
		t.Errorf("exit code = %d, want 3", code)
	}
	if !h.Exited() {
		t.Error("Exited() = false after exit")
	}
}

func TestWait_cancellation_leaves_process_running(t *testing.T) {
	h, err := Spawn("sleep", []string{"30"})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	defer h.Terminate(2 * time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = h.Wait(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Wait after cancel: %v", err)
	}
	if h.Exited() {
		t.Error("cancelling Wait must not kill the process")
	}
}

func TestTerminate(t *testing.T) {
	h, err := Spawn("sleep", []string{"30"})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	h.Terminate(2 * time.Second)
	if !h.Exited() {
		t.Error("process still alive after Terminate")
	}
	// Idempotent on an exited handle.
	h.Terminate(time.Millisecond)
}

func TestSuspendResume(t *testing.T) {
	h, err := Spawn("sleep", []string{"30"})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	defer h.Terminate(2 * time.Second)

	if err := h.Suspend(); err != nil {
		t.Fatalf("Suspend: %v", err)
	}
	if err := h.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
}
