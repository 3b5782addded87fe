package api

import (
	"testing"
	"time"

	"github.com/psantana5/procwatch/pkg/models"
)

func staticTarget(id, name string, enabled bool) *models.Target {
	return models.NewTarget(id, name, "/usr/bin/"+name, "", "",
		10*time.Second, time.Second, enabled)
}

func TestSyncStaticTargetsAddAndRemove(t *testing.T) {
	h, reg, st := newTestHandler(t)
	if err := reg.Start(nil); err != nil {
		t.Fatal(err)
	}

	h.SyncStaticTargets([]*models.Target{
		staticTarget("s1", "one", true),
		staticTarget("s2", "two", true),
	})

	if got := len(h.Targets()); got != 2 {
		t.Fatalf("Expected 2 targets after sync, got %d", got)
	}
	if active := reg.ActiveTargets(); len(active) != 2 {
		t.Fatalf("Expected 2 loops after sync, got %v", active)
	}
	if _, err := st.GetTarget("s1"); err != nil {
		t.Errorf("Static target should be persisted: %v", err)
	}

	// A reload without s2 removes it and stops its loop
	h.SyncStaticTargets([]*models.Target{staticTarget("s1", "one", true)})

	if got := len(h.Targets()); got != 1 {
		t.Errorf("Expected 1 target after removal, got %d", got)
	}
	if active := reg.ActiveTargets(); len(active) != 1 || active[0] != "s1" {
		t.Errorf("Expected only s1 supervised, got %v", active)
	}
	if _, err := st.GetTarget("s2"); err == nil {
		t.Error("Removed static target should be gone from the store")
	}
}

func TestSyncStaticTargetsEnableFlip(t *testing.T) {
	h, reg, _ := newTestHandler(t)
	if err := reg.Start(nil); err != nil {
		t.Fatal(err)
	}

	h.SyncStaticTargets([]*models.Target{staticTarget("s1", "one", true)})
	if active := reg.ActiveTargets(); len(active) != 1 {
		t.Fatalf("Expected loop for enabled target, got %v", active)
	}

	h.SyncStaticTargets([]*models.Target{staticTarget("s1", "one", false)})
	if active := reg.ActiveTargets(); len(active) != 0 {
		t.Errorf("Disable via reload should stop the loop, got %v", active)
	}

	h.SyncStaticTargets([]*models.Target{staticTarget("s1", "one", true)})
	if active := reg.ActiveTargets(); len(active) != 1 {
		t.Errorf("Re-enable via reload should respawn the loop, got %v", active)
	}
}

func TestSyncStaticTargetsDefinitionChange(t *testing.T) {
	h, reg, _ := newTestHandler(t)
	if err := reg.Start(nil); err != nil {
		t.Fatal(err)
	}

	h.SyncStaticTargets([]*models.Target{staticTarget("s1", "one", true)})

	changed := staticTarget("s1", "one", true)
	changed.Arguments = "--new-flag"
	h.SyncStaticTargets([]*models.Target{changed})

	targets := h.Targets()
	if len(targets) != 1 {
		t.Fatalf("Expected 1 target, got %d", len(targets))
	}
	if targets[0].Arguments != "--new-flag" {
		t.Errorf("Definition change should replace the descriptor, got %q", targets[0].Arguments)
	}
	if active := reg.ActiveTargets(); len(active) != 1 {
		t.Errorf("Replaced target should stay supervised, got %v", active)
	}
}

func TestSyncStaticTargetsLeavesAPITargetsAlone(t *testing.T) {
	h, reg, _ := newTestHandler(t)
	if err := reg.Start(nil); err != nil {
		t.Fatal(err)
	}

	r := newTestRouter(h)
	apiTarget := createTarget(t, r, "api-owned")

	h.SyncStaticTargets([]*models.Target{staticTarget("s1", "one", true)})
	h.SyncStaticTargets(nil)

	if _, ok := h.lookup(apiTarget.ID); !ok {
		t.Error("Config reload must never remove API-created targets")
	}
	if active := reg.ActiveTargets(); len(active) != 1 || active[0] != apiTarget.ID {
		t.Errorf("Expected only the API target supervised, got %v", active)
	}
}
