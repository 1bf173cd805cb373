//go:build unix || linux || darwin

package utils

import (
	"os/exec"
	"syscall"
)

// SetNewPG arranges for the command to start as the leader of a new process
// group, so one signal delivered to the group reaches the whole subtree.
func SetNewPG(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func signalGroup(pid int, sig syscall.Signal) error {
	// Negative pid addresses the whole process group
	err := syscall.Kill(-pid, sig)
	if err == syscall.ESRCH {
		// Nobody left to signal; stopping the already-dead is a success
		return nil
	}
	return err
}

// TerminateGroup delivers SIGTERM to the process group led by pid.
func TerminateGroup(pid int) error {
	return signalGroup(pid, syscall.SIGTERM)
}

// KillGroup delivers SIGKILL to the process group led by pid.
func KillGroup(pid int) error {
	return signalGroup(pid, syscall.SIGKILL)
}

// GroupSignalingSupported reports whether this platform can deliver signals
// to a whole process group.
func GroupSignalingSupported() bool {
	return true
}
