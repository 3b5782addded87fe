package models

import (
	"testing"
	"time"
)

func validTarget() *Target {
	return NewTarget("id-1", "worker", "/usr/bin/worker", "--verbose", "",
		5*time.Second, 2*time.Second, true)
}

func TestValidate(t *testing.T) {
	if err := validTarget().Validate(); err != nil {
		t.Errorf("Valid target should pass validation: %v", err)
	}

	noName := validTarget()
	noName.Name = "  "
	if noName.Validate() == nil {
		t.Error("Blank name should fail validation")
	}

	relPath := validTarget()
	relPath.ExecutablePath = "bin/worker"
	if relPath.Validate() == nil {
		t.Error("Relative executable path should fail validation")
	}

	shortInterval := validTarget()
	shortInterval.CheckInterval = 500 * time.Millisecond
	if shortInterval.Validate() == nil {
		t.Error("Sub-second check interval should fail validation")
	}

	negativeDelay := validTarget()
	negativeDelay.RestartDelay = -time.Second
	if negativeDelay.Validate() == nil {
		t.Error("Negative restart delay should fail validation")
	}

	zeroDelay := validTarget()
	zeroDelay.RestartDelay = 0
	if err := zeroDelay.Validate(); err != nil {
		t.Errorf("Zero restart delay should be valid: %v", err)
	}
}

func TestClamp(t *testing.T) {
	tgt := validTarget()
	tgt.CheckInterval = 0
	tgt.RestartDelay = -5 * time.Second

	tgt.Clamp()

	if tgt.CheckInterval != MinCheckInterval {
		t.Errorf("Expected check interval clamped to %s, got %s", MinCheckInterval, tgt.CheckInterval)
	}
	if tgt.RestartDelay != 0 {
		t.Errorf("Expected restart delay clamped to 0, got %s", tgt.RestartDelay)
	}
}

func TestNewTargetInitialStatus(t *testing.T) {
	enabled := NewTarget("a", "a", "/bin/a", "", "", time.Second, 0, true)
	if enabled.Status() != StatusStopped {
		t.Errorf("Enabled target should start as stopped, got %s", enabled.Status())
	}

	disabled := NewTarget("b", "b", "/bin/b", "", "", time.Second, 0, false)
	if disabled.Status() != StatusDisabled {
		t.Errorf("Disabled target should start as disabled, got %s", disabled.Status())
	}
}

func TestResolvedWorkingDir(t *testing.T) {
	tgt := validTarget()
	if got := tgt.ResolvedWorkingDir(); got != "/usr/bin" {
		t.Errorf("Expected executable's directory, got %s", got)
	}

	tgt.WorkingDir = "/var/lib/worker"
	if got := tgt.ResolvedWorkingDir(); got != "/var/lib/worker" {
		t.Errorf("Expected configured working dir, got %s", got)
	}
}

func TestSnapshot(t *testing.T) {
	tgt := validTarget()
	tgt.SetStatus(StatusRunning)
	ts := time.Now()
	tgt.SetLastRestart(ts)

	info := tgt.Snapshot()

	if info.ID != "id-1" || info.Name != "worker" {
		t.Errorf("Snapshot identity mismatch: %+v", info)
	}
	if info.CheckIntervalSeconds != 5 || info.RestartDelaySeconds != 2 {
		t.Errorf("Snapshot interval mismatch: %+v", info)
	}
	if info.Status != string(StatusRunning) {
		t.Errorf("Expected running status, got %s", info.Status)
	}
	if info.LastRestart == nil || !info.LastRestart.Equal(ts) {
		t.Errorf("Snapshot last restart mismatch: %v", info.LastRestart)
	}

	// The snapshot must not alias the target's own timestamp
	*info.LastRestart = time.Time{}
	if lr := tgt.LastRestart(); lr == nil || !lr.Equal(ts) {
		t.Error("Mutating the snapshot should not affect the target")
	}
}
