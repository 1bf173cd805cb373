//go:build windows

package utils

import (
	"errors"
	"os/exec"
)

// Daemon supervision needs process-group signal delivery, which has no
// direct equivalent here short of job objects. The build compiles so the
// CLI and tunnel listing remain usable, but spawn-side operations refuse
// to run.
var ErrGroupSignalingUnsupported = errors.New("process-group signaling is not supported on windows")

func SetNewPG(cmd *exec.Cmd) {
}

func TerminateGroup(pid int) error {
	return ErrGroupSignalingUnsupported
}

func KillGroup(pid int) error {
	return ErrGroupSignalingUnsupported
}

func GroupSignalingSupported() bool {
	return false
}
