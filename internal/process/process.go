// Package process terminates browser process trees left behind by a run.
package process

import "errors"

// ErrInvalidPID guards against signalling our own process group (pid 0)
// or every process we can reach (negative pids).
var ErrInvalidPID = errors.New("invalid pid")
