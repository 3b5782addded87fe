package supervisor

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/psantana5/procwatch/pkg/logging"
	"github.com/psantana5/procwatch/pkg/models"
)

// DefaultStopTimeout bounds how long Stop waits for loops to acknowledge
// cancellation before giving up on them.
const DefaultStopTimeout = 10 * time.Second

// Config wires the registry's collaborators. Zero fields get production
// defaults (real checker/launcher) or no-op fallbacks (notifier, metrics),
// which keeps tests free to inject doubles.
type Config struct {
	Checker  Checker
	Launcher Launcher
	Notifier Notifier
	Metrics  MetricsRecorder
	Logger   *logging.Logger

	// OnStateChange fires whenever the registry transitions between
	// running and stopped, for external observers such as the API layer.
	OnStateChange func(running bool)

	// OnRestart fires after every restart attempt, successful or not,
	// so the daemon can persist history. Must be safe for concurrent
	// calls from multiple watch loops.
	OnRestart func(t *models.Target, err error)

	StopTimeout time.Duration
}

// watchHandle associates a target with the cancellation control of its
// active watch loop. Owned exclusively by the registry.
type watchHandle struct {
	target *models.Target
	cancel context.CancelFunc
	done   chan struct{}
}

// Registry owns the dynamic set of active watch loops and reacts to
// targets being added, removed, enabled, or disabled at runtime.
type Registry struct {
	cfg Config

	mu       sync.Mutex
	watchers map[string]*watchHandle
	running  bool
}

// New creates a registry
func New(cfg Config) *Registry {
	if cfg.Checker == nil {
		cfg.Checker = NewProcessChecker()
	}
	if cfg.Launcher == nil {
		cfg.Launcher = NewProcessLauncher()
	}
	if cfg.Notifier == nil {
		cfg.Notifier = NoopNotifier{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NoopMetrics{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewLogger(logging.INFO, false)
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = DefaultStopTimeout
	}
	return &Registry{
		cfg:      cfg,
		watchers: make(map[string]*watchHandle),
	}
}

// Start spawns a watch loop for every enabled target and begins reacting
// to membership changes. It fails if the registry is already running.
func (r *Registry) Start(targets []*models.Target) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return errors.New("supervisor is already running")
	}
	r.running = true
	started := 0
	for _, t := range targets {
		if t.Enabled() {
			r.spawnLocked(t)
			started++
		}
	}
	r.mu.Unlock()

	r.cfg.Metrics.SetRunning(true)
	r.cfg.Logger.Info("supervision started", map[string]interface{}{"targets": started})
	r.notifyState(true)
	return nil
}

// Stop cancels every active watch loop and waits, up to StopTimeout in
// total, for acknowledgement. Loops that fail to stop in time are
// abandoned rather than blocking shutdown indefinitely.
func (r *Registry) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	handles := make([]*watchHandle, 0, len(r.watchers))
	for _, h := range r.watchers {
		handles = append(handles, h)
	}
	r.watchers = make(map[string]*watchHandle)
	r.mu.Unlock()

	for _, h := range handles {
		h.cancel()
	}

	timeout := time.NewTimer(r.cfg.StopTimeout)
	defer timeout.Stop()
	for _, h := range handles {
		select {
		case <-h.done:
		case <-timeout.C:
			r.cfg.Logger.Warn("timed out waiting for watch loops to stop")
			goto done
		}
	}
done:
	r.cfg.Metrics.SetActiveLoops(0)
	r.cfg.Metrics.SetRunning(false)
	r.cfg.Logger.Info("supervision stopped")
	r.notifyState(false)
}

// IsRunning reports whether the registry has been started and not stopped
func (r *Registry) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// ActiveTargets returns the IDs of targets with a live watch loop
func (r *Registry) ActiveTargets() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.watchers))
	for id := range r.watchers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// OnTargetAdded reacts to a new target. A watch loop is spawned only when
// the registry is running and the target is enabled.
func (r *Registry) OnTargetAdded(t *models.Target) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running || !t.Enabled() {
		return
	}
	r.spawnLocked(t)
}

// OnTargetRemoved stops and discards the target's watch loop, if any,
// before the descriptor is dropped by the caller.
func (r *Registry) OnTargetRemoved(id string) {
	r.mu.Lock()
	h := r.watchers[id]
	delete(r.watchers, id)
	n := len(r.watchers)
	r.mu.Unlock()

	if h == nil {
		return
	}
	h.cancel()
	r.waitHandle(h)
	r.cfg.Metrics.SetActiveLoops(n)
}

// OnTargetEnabledChanged reacts to the enabled flag flipping. Enabling
// spawns a loop (when running); disabling cancels the loop and marks the
// target disabled.
func (r *Registry) OnTargetEnabledChanged(t *models.Target) {
	if t.Enabled() {
		r.mu.Lock()
		if r.running {
			r.spawnLocked(t)
		}
		r.mu.Unlock()
		return
	}

	r.mu.Lock()
	h := r.watchers[t.ID]
	delete(r.watchers, t.ID)
	n := len(r.watchers)
	r.mu.Unlock()

	if h != nil {
		h.cancel()
		r.waitHandle(h)
		r.cfg.Metrics.SetActiveLoops(n)
	}
	t.SetStatus(models.StatusDisabled)
}

// spawnLocked starts a watch loop for the target unless one already
// exists. Callers must hold r.mu: the map is the sole guard against two
// loops ever supervising the same target.
func (r *Registry) spawnLocked(t *models.Target) {
	if _, exists := r.watchers[t.ID]; exists {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &watchHandle{
		target: t,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	r.watchers[t.ID] = h
	r.cfg.Metrics.SetActiveLoops(len(r.watchers))

	loop := &watchLoop{
		target:    t,
		checker:   r.cfg.Checker,
		launcher:  r.cfg.Launcher,
		notifier:  r.cfg.Notifier,
		metrics:   r.cfg.Metrics,
		logger:    r.cfg.Logger,
		onRestart: r.cfg.OnRestart,
	}

	go func() {
		loop.run(ctx)
		close(h.done)
		r.reapHandle(t.ID, h)
	}()
}

// reapHandle removes a handle after its loop exited on its own (enabled
// flag turned false). Pointer equality protects against removing a newer
// handle for the same target.
func (r *Registry) reapHandle(id string, h *watchHandle) {
	r.mu.Lock()
	if r.watchers[id] == h {
		delete(r.watchers, id)
		r.cfg.Metrics.SetActiveLoops(len(r.watchers))
	}
	r.mu.Unlock()
}

func (r *Registry) waitHandle(h *watchHandle) {
	select {
	case <-h.done:
	case <-time.After(r.cfg.StopTimeout):
		r.cfg.Logger.Warn("timed out waiting for watch loop to stop", map[string]interface{}{
			"target": h.target.Name,
		})
	}
}

func (r *Registry) notifyState(running bool) {
	if r.cfg.OnStateChange != nil {
		r.cfg.OnStateChange(running)
	}
}
