package supervisor

import (
	"context"
	"fmt"
	"time"

	"github.com/psantana5/procwatch/pkg/logging"
	"github.com/psantana5/procwatch/pkg/models"
)

// watchLoop is the per-target state machine: poll liveness, detect a stop,
// wait the restart delay, relaunch, repeat. One goroutine runs one loop;
// iterations for a target are strictly sequential.
type watchLoop struct {
	target    *models.Target
	checker   Checker
	launcher  Launcher
	notifier  Notifier
	metrics   MetricsRecorder
	logger    *logging.Logger
	onRestart func(t *models.Target, err error)
}

// run executes the loop until the context is canceled or the target's
// enabled flag turns false. Nothing escapes this function: every failure
// is terminal only to its own iteration.
func (w *watchLoop) run(ctx context.Context) {
	fields := map[string]interface{}{"target": w.target.Name}
	w.logger.Debug("watch loop started", fields)

	for {
		if ctx.Err() != nil {
			break
		}
		if !w.target.Enabled() {
			w.target.SetStatus(models.StatusDisabled)
			break
		}
		if exit := w.iterate(ctx); exit {
			break
		}
		if !sleepCtx(ctx, w.target.CheckInterval) {
			break
		}
	}

	w.logger.Debug("monitoring stopped for target", fields)
}

// iterate performs one poll/restart cycle. It returns true only when
// cancellation interrupted the restart-delay sleep, meaning the loop must
// exit without attempting a launch. Panics are recovered at this boundary
// so one misbehaving iteration cannot kill supervision of the target.
func (w *watchLoop) iterate(ctx context.Context) (exit bool) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("unexpected error supervising target", map[string]interface{}{
				"target": w.target.Name,
				"error":  fmt.Sprint(r),
			})
			exit = false
		}
	}()

	name := w.target.Name

	running, err := w.checker.IsRunning(w.target)
	if err != nil {
		// Transient check error: assume not running for this iteration
		w.logger.Error("liveness check failed", map[string]interface{}{
			"target": name,
			"error":  err.Error(),
		})
		running = false
	}
	w.metrics.RecordCheck(name, running)

	if running {
		w.target.SetStatus(models.StatusRunning)
		return false
	}

	w.target.SetStatus(models.StatusStopped)
	w.logger.Info("target not running, restarting after delay", map[string]interface{}{
		"target": name,
		"delay":  w.target.RestartDelay.String(),
	})

	// The delay sleep is cancellable: a disable/remove/stop arriving here
	// exits without ever invoking the launcher.
	if !sleepCtx(ctx, w.target.RestartDelay) {
		return true
	}

	w.target.SetStatus(models.StatusRestarting)

	err = w.launcher.Launch(w.target.ExecutablePath, w.target.Arguments, w.target.ResolvedWorkingDir())
	now := time.Now()
	if err != nil {
		w.target.SetStatus(models.StatusFailed)
		w.logger.Error("failed to restart target", map[string]interface{}{
			"target": name,
			"error":  err.Error(),
		})
		w.notifier.NotifyFailure(name, err)
		w.metrics.RecordRestart(name, false)
		w.recordOutcome(err)
		// No immediate retry: the target is re-polled on the normal cadence
		return false
	}

	w.target.SetLastRestart(now)
	w.target.SetStatus(models.StatusRunning)
	w.logger.Info("target restarted", map[string]interface{}{"target": name})
	w.notifier.NotifyRestart(name, now)
	w.metrics.RecordRestart(name, true)
	w.recordOutcome(nil)
	return false
}

func (w *watchLoop) recordOutcome(err error) {
	if w.onRestart != nil {
		w.onRestart(w.target, err)
	}
}
