//go:build !windows

// Package process terminates headless browser process trees.
package process

import "syscall"

// KillProcessGroup sends SIGKILL to the process group led by pid, taking
// Chrome's renderer and GPU children down with it.
func KillProcessGroup(pid int) {
	if pid <= 0 {
		return
	}
	// Best effort: the launcher kill that follows covers a missed group
	_ = syscall.Kill(-pid, syscall.SIGKILL)
}
