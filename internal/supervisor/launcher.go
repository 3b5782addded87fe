package supervisor

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ProcessLauncher starts detached process instances. The launched child is
// not tracked; liveness is re-derived by the checker on the next poll.
type ProcessLauncher struct{}

// NewProcessLauncher creates a process launcher
func NewProcessLauncher() *ProcessLauncher {
	return &ProcessLauncher{}
}

// Launch starts a new process instance. An empty workdir resolves to the
// executable's containing directory, which must exist. All failure modes
// (bad path, permissions, missing directory) surface as a single wrapped
// error.
func (l *ProcessLauncher) Launch(path, args, workdir string) error {
	if path == "" {
		return fmt.Errorf("launch failed: executable path is empty")
	}
	if workdir == "" {
		workdir = filepath.Dir(path)
	}
	if info, err := os.Stat(workdir); err != nil {
		return fmt.Errorf("launch failed: working directory %s: %w", workdir, err)
	} else if !info.IsDir() {
		return fmt.Errorf("launch failed: working directory %s is not a directory", workdir)
	}

	cmd := exec.Command(path, splitArgs(args)...)
	cmd.Dir = workdir
	cmd.SysProcAttr = detachedProcAttr()

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch failed: %s: %w", path, err)
	}

	// Reap the child when it exits so it never lingers as a zombie
	go func() {
		_ = cmd.Wait()
	}()

	return nil
}

// splitArgs breaks an argument string on whitespace
func splitArgs(args string) []string {
	return strings.Fields(args)
}
