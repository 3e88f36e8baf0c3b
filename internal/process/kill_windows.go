//go:build windows

package process

import (
	"os/exec"
	"strconv"
	"strings"
)

// KillGroup terminates pid and its children with taskkill.
// /F = force kill, /T = terminate child processes (tree kill).
func KillGroup(pid int) error {
	if pid <= 0 {
		return ErrInvalidPID
	}
	// taskkill exits non-zero when the tree is already gone
	if err := exec.Command("taskkill", "/F", "/T", "/PID", strconv.Itoa(pid)).Run(); err != nil && Alive(pid) {
		return err
	}
	return nil
}

// Alive reports whether a process with pid is listed by tasklist.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	out, err := exec.Command("tasklist", "/NH", "/FI", "PID eq "+strconv.Itoa(pid)).Output()
	if err != nil {
		return false
	}
	return strings.Contains(string(out), " "+strconv.Itoa(pid)+" ")
}
