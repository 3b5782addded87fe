package notify

import (
	"fmt"
	"time"

	"github.com/psantana5/procwatch/pkg/logging"
)

// Sender delivers a rendered notification out-of-band
type Sender interface {
	Send(subject, body string) error
}

// Config holds notification policy and delivery settings
type Config struct {
	Enabled   bool
	OnRestart bool
	OnFailure bool

	WebhookURL string
	SMTP       SMTPConfig
}

// Dispatcher applies notification policy and fans events out to the
// configured senders. The supervision core offers every restart outcome;
// this is where the on-restart/on-failure filtering happens. Delivery is
// fire-and-forget: sender errors are logged, never propagated.
type Dispatcher struct {
	onRestart bool
	onFailure bool
	senders   []Sender
	logger    *logging.Logger
}

// NewDispatcher builds a dispatcher from config. A disabled config or one
// with no reachable senders yields a dispatcher that drops everything.
func NewDispatcher(cfg Config, logger *logging.Logger) *Dispatcher {
	d := &Dispatcher{
		onRestart: cfg.Enabled && cfg.OnRestart,
		onFailure: cfg.Enabled && cfg.OnFailure,
		logger:    logger,
	}
	if !cfg.Enabled {
		return d
	}
	if cfg.WebhookURL != "" {
		d.senders = append(d.senders, NewWebhookSender(cfg.WebhookURL))
	}
	if cfg.SMTP.Host != "" {
		d.senders = append(d.senders, NewSMTPSender(cfg.SMTP))
	}
	return d
}

// NotifyRestart reports a successful relaunch
func (d *Dispatcher) NotifyRestart(target string, at time.Time) {
	if !d.onRestart {
		return
	}
	subject := fmt.Sprintf("procwatch: restarted %s", target)
	body := fmt.Sprintf("Target %q was not running and has been restarted at %s.",
		target, at.Format(time.RFC3339))
	d.dispatch(subject, body)
}

// NotifyFailure reports a failed relaunch attempt
func (d *Dispatcher) NotifyFailure(target string, err error) {
	if !d.onFailure {
		return
	}
	subject := fmt.Sprintf("procwatch: failed to restart %s", target)
	body := fmt.Sprintf("Target %q was not running and the restart attempt failed: %v", target, err)
	d.dispatch(subject, body)
}

func (d *Dispatcher) dispatch(subject, body string) {
	for _, sender := range d.senders {
		go func(s Sender) {
			if err := s.Send(subject, body); err != nil {
				d.logger.Error("notification delivery failed", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}(sender)
	}
}
