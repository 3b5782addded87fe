package supervisor

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/psantana5/procwatch/pkg/models"
	"github.com/shirou/gopsutil/v3/process"
)

// ProcessChecker determines target liveness by scanning the process table.
// A target counts as running when a process matches its executable's base
// name and resolves to the same full path (both case-insensitive).
type ProcessChecker struct{}

// NewProcessChecker creates a process-table liveness checker
func NewProcessChecker() *ProcessChecker {
	return &ProcessChecker{}
}

// IsRunning reports whether the target's process is currently alive.
// Individual processes that cannot be inspected (exited mid-scan, access
// denied) are skipped rather than failing the whole check; only a failure
// to enumerate the process table at all is returned as an error.
func (c *ProcessChecker) IsRunning(t *models.Target) (bool, error) {
	procs, err := process.Processes()
	if err != nil {
		return false, fmt.Errorf("failed to enumerate processes: %w", err)
	}

	base := filepath.Base(t.ExecutablePath)
	noExt := strings.TrimSuffix(base, filepath.Ext(base))

	for _, p := range procs {
		name, err := p.Name()
		if err != nil {
			continue
		}
		if !matchesName(name, base, noExt) {
			continue
		}
		exe, err := p.Exe()
		if err != nil {
			// Candidate we cannot resolve is non-matching, not an error
			continue
		}
		if strings.EqualFold(exe, t.ExecutablePath) {
			return true, nil
		}
	}
	return false, nil
}

// matchesName compares a process name against the executable base name,
// with and without extension. The kernel may truncate long process names,
// so a truncated prefix match is also accepted before the path comparison
// settles it.
func matchesName(procName, base, noExt string) bool {
	if strings.EqualFold(procName, base) || strings.EqualFold(procName, noExt) {
		return true
	}
	// /proc comm names are capped at 15 characters on Linux
	if len(procName) == 15 && len(noExt) > 15 {
		return strings.EqualFold(procName, noExt[:15])
	}
	return false
}
