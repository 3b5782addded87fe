//go:build !windows

package supervisor

import "syscall"

// detachedProcAttr starts the child in its own session so it survives the
// supervisor exiting and never shares our process group.
func detachedProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}
