//go:build windows

package process

import "os/exec"

func setProcessGroup(cmd *exec.Cmd) {}
