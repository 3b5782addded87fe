package supervisor

import (
	"sync"
	"testing"
	"time"

	"github.com/psantana5/procwatch/pkg/models"
)

func newTestRegistry(checker Checker, launcher Launcher) (*Registry, *[]bool, *sync.Mutex) {
	var mu sync.Mutex
	var states []bool
	r := New(Config{
		Checker:  checker,
		Launcher: launcher,
		Logger:   testLogger(),
		OnStateChange: func(running bool) {
			mu.Lock()
			states = append(states, running)
			mu.Unlock()
		},
		StopTimeout: 2 * time.Second,
	})
	return r, &states, &mu
}

func TestRegistryStartStopLifecycle(t *testing.T) {
	r, states, mu := newTestRegistry(&fakeChecker{answers: []bool{true}}, &fakeLauncher{})

	if r.IsRunning() {
		t.Error("New registry should not be running")
	}

	if err := r.Start(nil); err != nil {
		t.Fatalf("Start with no targets should succeed: %v", err)
	}
	if !r.IsRunning() {
		t.Error("Registry should report running after Start")
	}

	if err := r.Start(nil); err == nil {
		t.Error("Second Start should fail while running")
	}

	r.Stop()
	if r.IsRunning() {
		t.Error("Registry should not report running after Stop")
	}

	// Stop on a stopped registry is a no-op
	r.Stop()

	mu.Lock()
	got := append([]bool(nil), *states...)
	mu.Unlock()
	if len(got) != 2 || !got[0] || got[1] {
		t.Errorf("Expected state events [true false], got %v", got)
	}

	if err := r.Start(nil); err != nil {
		t.Errorf("Registry should be restartable after Stop: %v", err)
	}
	r.Stop()
}

func TestRegistrySpawnsOnlyEnabledTargets(t *testing.T) {
	r, _, _ := newTestRegistry(&fakeChecker{answers: []bool{true}}, &fakeLauncher{})

	enabled := models.NewTarget("a", "a", "/bin/a", "", "", 10*time.Millisecond, 0, true)
	disabled := models.NewTarget("b", "b", "/bin/b", "", "", 10*time.Millisecond, 0, false)

	if err := r.Start([]*models.Target{enabled, disabled}); err != nil {
		t.Fatal(err)
	}
	defer r.Stop()

	active := r.ActiveTargets()
	if len(active) != 1 || active[0] != "a" {
		t.Errorf("Expected only the enabled target supervised, got %v", active)
	}
}

func TestRegistryDynamicAddRemove(t *testing.T) {
	checker := &fakeChecker{answers: []bool{true}}
	r, _, _ := newTestRegistry(checker, &fakeLauncher{})

	if err := r.Start(nil); err != nil {
		t.Fatal(err)
	}
	defer r.Stop()

	tgt := models.NewTarget("x", "x", "/bin/x", "", "", 10*time.Millisecond, 0, true)
	r.OnTargetAdded(tgt)

	if active := r.ActiveTargets(); len(active) != 1 {
		t.Fatalf("Expected one active loop after add, got %v", active)
	}

	// Adding the same target again must not spawn a second loop
	r.OnTargetAdded(tgt)
	if active := r.ActiveTargets(); len(active) != 1 {
		t.Errorf("Duplicate add should be a no-op, got %v", active)
	}

	r.OnTargetRemoved(tgt.ID)
	if active := r.ActiveTargets(); len(active) != 0 {
		t.Errorf("Expected no active loops after removal, got %v", active)
	}

	// Removing an unknown target is a no-op
	r.OnTargetRemoved("missing")
}

func TestRegistryAddWhileStopped(t *testing.T) {
	r, _, _ := newTestRegistry(&fakeChecker{answers: []bool{true}}, &fakeLauncher{})

	tgt := models.NewTarget("x", "x", "/bin/x", "", "", 10*time.Millisecond, 0, true)
	r.OnTargetAdded(tgt)

	if active := r.ActiveTargets(); len(active) != 0 {
		t.Errorf("Add while stopped should not spawn a loop, got %v", active)
	}
}

func TestRegistryEnableDisable(t *testing.T) {
	checker := &fakeChecker{answers: []bool{true}}
	r, _, _ := newTestRegistry(checker, &fakeLauncher{})

	tgt := models.NewTarget("x", "x", "/bin/x", "", "", 10*time.Millisecond, 0, false)
	if err := r.Start([]*models.Target{tgt}); err != nil {
		t.Fatal(err)
	}
	defer r.Stop()

	tgt.SetEnabled(true)
	r.OnTargetEnabledChanged(tgt)
	if active := r.ActiveTargets(); len(active) != 1 {
		t.Fatalf("Enable should spawn a loop, got %v", active)
	}

	tgt.SetEnabled(false)
	r.OnTargetEnabledChanged(tgt)
	if active := r.ActiveTargets(); len(active) != 0 {
		t.Errorf("Disable should stop the loop, got %v", active)
	}
	if tgt.Status() != models.StatusDisabled {
		t.Errorf("Disabled target should report disabled status, got %s", tgt.Status())
	}

	// Re-enable spawns a fresh loop for the same target
	tgt.SetEnabled(true)
	r.OnTargetEnabledChanged(tgt)
	waitFor(t, "respawned loop", func() bool { return len(r.ActiveTargets()) == 1 })
}

func TestRegistryStopCancelsRestartDelay(t *testing.T) {
	checker := &fakeChecker{answers: []bool{false}}
	launcher := &fakeLauncher{}
	r, _, _ := newTestRegistry(checker, launcher)

	tgt := models.NewTarget("x", "x", "/bin/x", "", "", 10*time.Millisecond, 10*time.Second, true)
	if err := r.Start([]*models.Target{tgt}); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "stopped status", func() bool { return tgt.Status() == models.StatusStopped })

	done := make(chan struct{})
	go func() {
		r.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop should not wait out a 10s restart delay")
	}

	if launcher.callCount() != 0 {
		t.Errorf("Stop during the restart delay must prevent the launch, got %d", launcher.callCount())
	}
}

func TestRegistryIndependentTargets(t *testing.T) {
	// One target stuck in a long restart delay must not block the other's
	// supervision.
	stuckChecker := &fakeChecker{answers: []bool{false}}
	healthyChecker := &fakeChecker{answers: []bool{true}}

	r := New(Config{
		Checker: checkerFunc(func(t *models.Target) (bool, error) {
			if t.ID == "stuck" {
				return stuckChecker.IsRunning(t)
			}
			return healthyChecker.IsRunning(t)
		}),
		Launcher:    &fakeLauncher{},
		Logger:      testLogger(),
		StopTimeout: 2 * time.Second,
	})

	stuck := models.NewTarget("stuck", "stuck", "/bin/stuck", "", "", 10*time.Millisecond, time.Hour, true)
	healthy := models.NewTarget("ok", "ok", "/bin/ok", "", "", 10*time.Millisecond, 0, true)

	if err := r.Start([]*models.Target{stuck, healthy}); err != nil {
		t.Fatal(err)
	}
	defer r.Stop()

	waitFor(t, "stuck target in delay", func() bool { return stuck.Status() == models.StatusStopped })
	waitFor(t, "healthy target polled repeatedly", func() bool { return healthyChecker.callCount() >= 3 })

	if healthy.Status() != models.StatusRunning {
		t.Errorf("Healthy target should be running, got %s", healthy.Status())
	}
}

// checkerFunc adapts a function to the Checker interface
type checkerFunc func(*models.Target) (bool, error)

func (f checkerFunc) IsRunning(t *models.Target) (bool, error) { return f(t) }
