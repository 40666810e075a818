// Package proc manages external encoder processes: detached spawn, async
// exit collection, graceful termination, and best-effort suspend/resume.
package proc

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"
)

// ErrUnsupported is returned by Suspend/Resume on platforms without
// stop/continue semantics for process groups.
var ErrUnsupported = errors.New("proc: suspend/resume not supported on this platform")

// Handle owns one running external process. The process runs in its own
// group so terminating it does not affect the parent or sibling sessions.
type Handle struct {
	cmd  *exec.Cmd
	done chan struct{}

	mu       sync.Mutex
	exited   bool
	exitCode int
}

// Spawn starts bin with args in a new process group and begins collecting
// its exit status in the background.
func Spawn(bin string, args []string) (*Handle, error) {
	cmd := exec.Command(bin, args...)
	setProcessGroup(cmd)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawn %s: %w", bin, err)
	}
	h := &Handle{cmd: cmd, done: make(chan struct{})}
	go h.reap()
	return h, nil
}

// reap collects the exit status exactly once and releases waiters.
func (h *Handle) reap() {
	err := h.cmd.Wait()
	code := 0
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	} else if err != nil {
		code = -1
	}
	h.mu.Lock()
	h.exited = true
	h.exitCode = code
	h.mu.Unlock()
	close(h.done)
}

// PID returns the OS process id.
func (h *Handle) PID() int { return h.cmd.Process.Pid }

// Exited reports whether the process has terminated.
func (h *Handle) Exited() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exited
}

// Wait blocks until the process exits or ctx is cancelled. Cancellation
// returns ctx.Err() and leaves the process running.
func (h *Handle) Wait(ctx context.Context) (int, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.exitCode, nil
	}
}

// Terminate requests graceful termination of the whole process group and
// escalates to a forced kill if the process is still alive after timeout.
// Calling it on an exited handle is a no-op.
func (h *Handle) Terminate(timeout time.Duration) {
	if h.Exited() {
		return
	}
	h.signalTerm()
	select {
	case <-h.done:
		return
	case <-time.After(timeout):
	}
	h.signalKill()
	<-h.done
}
