package store

import (
	"errors"

	"github.com/psantana5/procwatch/pkg/models"
)

// Store defines the interface for target and restart-history persistence.
// Both the SQLite and in-memory implementations satisfy it. Stores return
// fresh Target instances; live runtime status is never persisted.
type Store interface {
	// Target operations
	SaveTarget(t *models.Target) error
	GetTarget(id string) (*models.Target, error)
	GetAllTargets() ([]*models.Target, error)
	DeleteTarget(id string) error

	// Restart history
	RecordRestart(ev *models.RestartEvent) error
	GetRestartHistory(targetID string, limit int) ([]models.RestartEvent, error)

	// Lifecycle
	Close() error
	HealthCheck() error
}

// ErrNotFound is returned when a target does not exist
var ErrNotFound = errors.New("target not found")

// Config holds persistence configuration
type Config struct {
	// Path to the SQLite database file. Empty selects the in-memory store.
	Path string
}

// NewStore creates a store based on configuration
func NewStore(config Config) (Store, error) {
	if config.Path == "" {
		return NewMemoryStore(), nil
	}
	return NewSQLiteStore(config.Path)
}
