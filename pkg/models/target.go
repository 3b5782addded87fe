package models

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// TargetStatus represents the supervision status of a target
type TargetStatus string

const (
	StatusStopped    TargetStatus = "stopped"
	StatusRunning    TargetStatus = "running"
	StatusRestarting TargetStatus = "restarting"
	StatusFailed     TargetStatus = "failed"
	StatusDisabled   TargetStatus = "disabled"
)

// MinCheckInterval is the floor applied when clamping invalid intervals
const MinCheckInterval = time.Second

// Target describes one monitored program. Configuration fields are
// immutable once the target is handed to the registry; Status and
// LastRestart are written only by the target's own watch loop and are
// guarded by a mutex so API readers can take consistent snapshots.
type Target struct {
	ID             string
	Name           string
	ExecutablePath string
	Arguments      string
	WorkingDir     string
	CheckInterval  time.Duration
	RestartDelay   time.Duration

	mu          sync.RWMutex
	enabled     bool
	status      TargetStatus
	lastRestart *time.Time
}

// TargetInfo is an immutable snapshot of a target, safe to marshal
type TargetInfo struct {
	ID                   string     `json:"id"`
	Name                 string     `json:"name"`
	ExecutablePath       string     `json:"executable_path"`
	Arguments            string     `json:"arguments,omitempty"`
	WorkingDir           string     `json:"working_dir,omitempty"`
	CheckIntervalSeconds int        `json:"check_interval_seconds"`
	RestartDelaySeconds  int        `json:"restart_delay_seconds"`
	Enabled              bool       `json:"enabled"`
	Status               string     `json:"status"`
	LastRestart          *time.Time `json:"last_restart,omitempty"`
}

// NewTarget builds a target with its status initialized from the enabled flag
func NewTarget(id, name, path, args, workdir string, checkInterval, restartDelay time.Duration, enabled bool) *Target {
	status := StatusStopped
	if !enabled {
		status = StatusDisabled
	}
	return &Target{
		ID:             id,
		Name:           name,
		ExecutablePath: path,
		Arguments:      args,
		WorkingDir:     workdir,
		CheckInterval:  checkInterval,
		RestartDelay:   restartDelay,
		enabled:        enabled,
		status:         status,
	}
}

// Validate checks the configuration fields. The supervision core assumes
// descriptors passed its way have already gone through this.
func (t *Target) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return errors.New("target name is required")
	}
	if strings.TrimSpace(t.ExecutablePath) == "" {
		return errors.New("executable path is required")
	}
	if !filepath.IsAbs(t.ExecutablePath) {
		return fmt.Errorf("executable path must be absolute: %s", t.ExecutablePath)
	}
	if t.CheckInterval < MinCheckInterval {
		return fmt.Errorf("check interval must be at least %s", MinCheckInterval)
	}
	if t.RestartDelay < 0 {
		return errors.New("restart delay must not be negative")
	}
	return nil
}

// Clamp forces interval fields into their valid ranges. Used when loading
// config files, where a bad value should degrade rather than abort startup.
func (t *Target) Clamp() {
	if t.CheckInterval < MinCheckInterval {
		t.CheckInterval = MinCheckInterval
	}
	if t.RestartDelay < 0 {
		t.RestartDelay = 0
	}
}

// ResolvedWorkingDir returns the configured working directory, falling
// back to the executable's containing directory.
func (t *Target) ResolvedWorkingDir() string {
	if t.WorkingDir != "" {
		return t.WorkingDir
	}
	return filepath.Dir(t.ExecutablePath)
}

// Status returns the last status observed by the watch loop
func (t *Target) Status() TargetStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// SetStatus records a status transition. Callers are the target's own
// watch loop, plus the registry when disabling the target.
func (t *Target) SetStatus(s TargetStatus) {
	t.mu.Lock()
	t.status = s
	t.mu.Unlock()
}

// LastRestart returns the timestamp of the last successful relaunch, if any
func (t *Target) LastRestart() *time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.lastRestart == nil {
		return nil
	}
	ts := *t.lastRestart
	return &ts
}

// SetLastRestart records a successful relaunch timestamp
func (t *Target) SetLastRestart(ts time.Time) {
	t.mu.Lock()
	t.lastRestart = &ts
	t.mu.Unlock()
}

// Enabled reports whether the target should be supervised
func (t *Target) Enabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

// SetEnabled flips the enabled flag. The flag is owned by the config/API
// layer; the registry reacts to changes via OnTargetEnabledChanged.
func (t *Target) SetEnabled(enabled bool) {
	t.mu.Lock()
	t.enabled = enabled
	t.mu.Unlock()
}

// Snapshot returns a consistent copy for serialization
func (t *Target) Snapshot() TargetInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var last *time.Time
	if t.lastRestart != nil {
		ts := *t.lastRestart
		last = &ts
	}
	return TargetInfo{
		ID:                   t.ID,
		Name:                 t.Name,
		ExecutablePath:       t.ExecutablePath,
		Arguments:            t.Arguments,
		WorkingDir:           t.WorkingDir,
		CheckIntervalSeconds: int(t.CheckInterval / time.Second),
		RestartDelaySeconds:  int(t.RestartDelay / time.Second),
		Enabled:              t.enabled,
		Status:               string(t.status),
		LastRestart:          last,
	}
}
