// Package supervisor implements the per-target process supervision engine:
// one watch loop goroutine per enabled target polls liveness, relaunches
// stopped targets after a configurable delay, and reports outcomes through
// the injected log, notification, and metrics collaborators.
package supervisor

import (
	"context"
	"time"

	"github.com/psantana5/procwatch/pkg/models"
)

// Checker determines whether a target's process is currently running
type Checker interface {
	IsRunning(t *models.Target) (bool, error)
}

// Launcher starts a new detached process instance for a target
type Launcher interface {
	Launch(path, args, workdir string) error
}

// Notifier receives restart outcome signals. The supervisor offers every
// outcome exactly once; filtering (on-restart/on-failure policy) is the
// notifier's job.
type Notifier interface {
	NotifyRestart(target string, at time.Time)
	NotifyFailure(target string, err error)
}

// MetricsRecorder receives supervision metrics
type MetricsRecorder interface {
	RecordCheck(target string, running bool)
	RecordRestart(target string, success bool)
	SetActiveLoops(n int)
	SetRunning(running bool)
}

// NoopNotifier discards all notifications
type NoopNotifier struct{}

func (NoopNotifier) NotifyRestart(string, time.Time) {}
func (NoopNotifier) NotifyFailure(string, error)     {}

// NoopMetrics discards all metrics
type NoopMetrics struct{}

func (NoopMetrics) RecordCheck(string, bool)   {}
func (NoopMetrics) RecordRestart(string, bool) {}
func (NoopMetrics) SetActiveLoops(int)         {}
func (NoopMetrics) SetRunning(bool)            {}

// sleepCtx sleeps for d unless the context is canceled first. Returns
// false on cancellation. A non-positive duration returns immediately.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
