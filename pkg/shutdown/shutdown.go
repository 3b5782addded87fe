package shutdown

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// Manager coordinates graceful shutdown of the daemon. Hooks registered
// with Register run in reverse order once a termination signal arrives.
type Manager struct {
	hooks    []func(context.Context) error
	mu       sync.Mutex
	timeout  time.Duration
	doneChan chan struct{}
	once     sync.Once
}

// New creates a shutdown manager with the given per-shutdown timeout
func New(timeout time.Duration) *Manager {
	return &Manager{
		timeout:  timeout,
		doneChan: make(chan struct{}),
	}
}

// Register adds a shutdown hook. Hooks are called in reverse order (LIFO).
func (m *Manager) Register(fn func(context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, fn)
}

// Wait blocks until SIGINT or SIGTERM is received
func (m *Manager) Wait() os.Signal {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	m.once.Do(func() {
		close(m.doneChan)
	})
	return sig
}

// Done returns a channel closed when shutdown has been initiated
func (m *Manager) Done() <-chan struct{} {
	return m.doneChan
}

// Shutdown executes all registered hooks, newest first. Hook errors are
// reported but do not stop the remaining hooks.
func (m *Manager) Shutdown() []error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	var errs []error
	for i := len(m.hooks) - 1; i >= 0; i-- {
		if err := m.hooks[i](ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown hook %d: %w", i, err))
		}
	}
	return errs
}

// StopHTTPServer wraps an http.Server-style Shutdown into a hook
func StopHTTPServer(server interface{ Shutdown(context.Context) error }, name string) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to stop %s server: %w", name, err)
		}
		return nil
	}
}

// CloseResource wraps an io.Closer into a hook
func CloseResource(closer interface{ Close() error }, name string) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("failed to close %s: %w", name, err)
		}
		return nil
	}
}
