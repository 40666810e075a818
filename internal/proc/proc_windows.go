//go:build windows

package proc

import "os/exec"

func setProcessGroup(cmd *exec.Cmd) {
	// Windows has no process groups in the POSIX sense; Kill below takes the
	// process down directly.
}

func (h *Handle) signalTerm() { _ = h.cmd.Process.Kill() }
func (h *Handle) signalKill() { _ = h.cmd.Process.Kill() }

// Suspend is not available on Windows.
func (h *Handle) Suspend() error { return ErrUnsupported }

// Resume is not available on Windows.
func (h *Handle) Resume() error { return ErrUnsupported }
