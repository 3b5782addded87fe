package api

import (
	"errors"

	"github.com/psantana5/procwatch/pkg/models"
	"github.com/psantana5/procwatch/pkg/store"
)

// SyncStaticTargets reconciles the config-file portion of the catalog with
// a freshly loaded set, typically after a config reload. Targets created
// through the API are never touched; unrelated watch loops keep running
// undisturbed.
func (h *Handler) SyncStaticTargets(desired []*models.Target) {
	desiredByID := make(map[string]*models.Target, len(desired))
	for _, d := range desired {
		d.Clamp()
		desiredByID[d.ID] = d
	}

	h.mu.RLock()
	current := make(map[string]*models.Target, len(h.staticIDs))
	for id := range h.staticIDs {
		if t, ok := h.targets[id]; ok {
			current[id] = t
		}
	}
	h.mu.RUnlock()

	// Drop static targets that disappeared from the config
	for id, t := range current {
		if _, keep := desiredByID[id]; keep {
			continue
		}
		h.registry.OnTargetRemoved(id)
		h.mu.Lock()
		delete(h.targets, id)
		delete(h.staticIDs, id)
		h.mu.Unlock()
		if err := h.store.DeleteTarget(id); err != nil && !errors.Is(err, store.ErrNotFound) {
			h.logger.Error("failed to delete target from store", map[string]interface{}{"error": err.Error()})
		}
		h.logger.Info("config target removed", map[string]interface{}{"target": t.Name})
	}

	for _, d := range desired {
		existing, ok := current[d.ID]
		switch {
		case !ok:
			h.addStatic(d)
		case definitionChanged(existing, d):
			// A changed definition restarts supervision under the new
			// descriptor; the old loop is stopped first.
			h.registry.OnTargetRemoved(d.ID)
			h.mu.Lock()
			delete(h.targets, d.ID)
			h.mu.Unlock()
			h.addStatic(d)
			h.logger.Info("config target updated", map[string]interface{}{"target": d.Name})
		case existing.Enabled() != d.Enabled():
			existing.SetEnabled(d.Enabled())
			if err := h.store.SaveTarget(existing); err != nil {
				h.logger.Error("failed to persist target", map[string]interface{}{"error": err.Error()})
			}
			h.registry.OnTargetEnabledChanged(existing)
		}
	}
}

func (h *Handler) addStatic(t *models.Target) {
	if err := h.store.SaveTarget(t); err != nil {
		h.logger.Error("failed to persist target", map[string]interface{}{"error": err.Error()})
	}
	h.mu.Lock()
	h.targets[t.ID] = t
	h.staticIDs[t.ID] = true
	h.mu.Unlock()
	h.registry.OnTargetAdded(t)
	h.logger.Info("config target added", map[string]interface{}{"target": t.Name})
}

func definitionChanged(a, b *models.Target) bool {
	return a.Name != b.Name ||
		a.ExecutablePath != b.ExecutablePath ||
		a.Arguments != b.Arguments ||
		a.WorkingDir != b.WorkingDir ||
		a.CheckInterval != b.CheckInterval ||
		a.RestartDelay != b.RestartDelay
}
