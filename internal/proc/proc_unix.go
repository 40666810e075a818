//go:build !windows

package proc

import (
	"os/exec"
	"syscall"
)

// setProcessGroup makes the child the leader of a new process group, so
// group signals reach the encoder and everything it forks without touching
// the supervisor.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func (h *Handle) signalGroup(sig syscall.Signal) error {
	// Negative pid addresses the whole group.
	return syscall.Kill(-h.cmd.Process.Pid, sig)
}

func (h *Handle) signalTerm() {
	// A suspended group cannot act on SIGTERM; continue it first.
	_ = h.signalGroup(syscall.SIGCONT)
	_ = h.signalGroup(syscall.SIGTERM)
}

func (h *Handle) signalKill() { _ = h.signalGroup(syscall.SIGKILL) }

// Suspend stops the process group without terminating it.
func (h *Handle) Suspend() error {
	return h.signalGroup(syscall.SIGSTOP)
}

// Resume continues a suspended process group.
func (h *Handle) Resume() error {
	return h.signalGroup(syscall.SIGCONT)
}
