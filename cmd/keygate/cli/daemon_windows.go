//go:build windows

package cli

import (
	"os"
	"os/exec"
)

// setSysProcAttr is a no-op on Windows; there is no session detach.
// Run under a service wrapper (NSSM, sc.exe) for background operation.
func setSysProcAttr(cmd *exec.Cmd) {}

// isProcessRunning reports whether the PID refers to a live process.
// On Windows FindProcess opens a real handle, so it fails for PIDs that
// no longer exist.
func isProcessRunning(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	proc.Release()
	return true
}

// stopProcess terminates the server. Windows offers no SIGTERM, so the
// shutdown is not graceful.
func stopProcess(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Kill()
}
