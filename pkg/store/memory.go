package store

import (
	"sort"
	"sync"
	"time"

	"github.com/psantana5/procwatch/pkg/models"
)

// MemoryStore is an in-memory implementation of the data store, used when
// no database path is configured and in tests
type MemoryStore struct {
	mu      sync.RWMutex
	targets map[string]models.TargetInfo
	order   []string
	events  []models.RestartEvent
	nextID  int64
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		targets: make(map[string]models.TargetInfo),
		nextID:  1,
	}
}

// SaveTarget inserts or updates a target definition
func (m *MemoryStore) SaveTarget(t *models.Target) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.targets[t.ID]; !ok {
		m.order = append(m.order, t.ID)
	}
	m.targets[t.ID] = t.Snapshot()
	return nil
}

// GetTarget retrieves a target by ID
func (m *MemoryStore) GetTarget(id string) (*models.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, ok := m.targets[id]
	if !ok {
		return nil, ErrNotFound
	}
	return fromInfo(info), nil
}

// GetAllTargets retrieves every stored target definition in insertion order
func (m *MemoryStore) GetAllTargets() ([]*models.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	targets := make([]*models.Target, 0, len(m.targets))
	for _, id := range m.order {
		if info, ok := m.targets[id]; ok {
			targets = append(targets, fromInfo(info))
		}
	}
	return targets, nil
}

// DeleteTarget removes a target and its restart history
func (m *MemoryStore) DeleteTarget(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.targets[id]; !ok {
		return ErrNotFound
	}
	delete(m.targets, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	kept := m.events[:0]
	for _, ev := range m.events {
		if ev.TargetID != id {
			kept = append(kept, ev)
		}
	}
	m.events = kept
	return nil
}

// RecordRestart appends a restart attempt outcome
func (m *MemoryStore) RecordRestart(ev *models.RestartEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *ev
	stored.ID = m.nextID
	m.nextID++
	m.events = append(m.events, stored)
	return nil
}

// GetRestartHistory returns the most recent restart events for a target,
// newest first
func (m *MemoryStore) GetRestartHistory(targetID string, limit int) ([]models.RestartEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var events []models.RestartEvent
	for _, ev := range m.events {
		if ev.TargetID == targetID {
			events = append(events, ev)
		}
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].Timestamp.After(events[j].Timestamp)
	})
	if len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

// Close is a no-op for the memory store
func (m *MemoryStore) Close() error {
	return nil
}

// HealthCheck always succeeds for the memory store
func (m *MemoryStore) HealthCheck() error {
	return nil
}

func fromInfo(info models.TargetInfo) *models.Target {
	return models.NewTarget(info.ID, info.Name, info.ExecutablePath, info.Arguments,
		info.WorkingDir, secs(info.CheckIntervalSeconds), secs(info.RestartDelaySeconds),
		info.Enabled)
}

func secs(n int) time.Duration {
	return time.Duration(n) * time.Second
}
