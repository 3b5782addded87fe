package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "listen: \":9999\"\n")

	cfg, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Listen != ":9999" {
		t.Errorf("Expected listen override, got %s", cfg.Listen)
	}
	if cfg.MetricsListen != ":9187" {
		t.Errorf("Expected default metrics listen, got %s", cfg.MetricsListen)
	}
	if cfg.DatabasePath != "procwatch.db" {
		t.Errorf("Expected default database path, got %s", cfg.DatabasePath)
	}
	if cfg.DefaultCheckInterval() != 10*time.Second {
		t.Errorf("Expected 10s default check interval, got %s", cfg.DefaultCheckInterval())
	}
	if cfg.DefaultRestartDelay() != 5*time.Second {
		t.Errorf("Expected 5s default restart delay, got %s", cfg.DefaultRestartDelay())
	}
	if !cfg.Notify.OnRestart || !cfg.Notify.OnFailure {
		t.Error("Notification policy should default to on")
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Explicit missing config file should be an error")
	}
}

func TestStaticTargets(t *testing.T) {
	path := writeConfig(t, `
default_check_interval_seconds: 7
default_restart_delay_seconds: 3
targets:
  - name: nginx
    executable_path: /usr/sbin/nginx
    arguments: "-g 'daemon off;'"
  - name: worker
    executable_path: /usr/bin/worker
    check_interval_seconds: 30
    restart_delay_seconds: 10
    enabled: false
  - name: nginx
    executable_path: /usr/sbin/nginx-dup
  - name: ""
    executable_path: /usr/bin/ignored
  - name: broken
    executable_path: /usr/bin/broken
    check_interval_seconds: -5
`)

	cfg, _, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	targets := cfg.StaticTargets()
	if len(targets) != 3 {
		t.Fatalf("Expected 3 targets (duplicate and nameless dropped), got %d", len(targets))
	}

	nginx := targets[0]
	if nginx.Name != "nginx" || nginx.ExecutablePath != "/usr/sbin/nginx" {
		t.Errorf("First definition should win for duplicates: %+v", nginx)
	}
	if nginx.CheckInterval != 7*time.Second || nginx.RestartDelay != 3*time.Second {
		t.Errorf("Daemon defaults not applied: %s/%s", nginx.CheckInterval, nginx.RestartDelay)
	}
	if !nginx.Enabled() {
		t.Error("Targets default to enabled")
	}

	worker := targets[1]
	if worker.CheckInterval != 30*time.Second || worker.RestartDelay != 10*time.Second {
		t.Errorf("Per-target intervals not applied: %s/%s", worker.CheckInterval, worker.RestartDelay)
	}
	if worker.Enabled() {
		t.Error("enabled: false should be honored")
	}

	broken := targets[2]
	if broken.CheckInterval < time.Second {
		t.Errorf("Invalid interval should be clamped, got %s", broken.CheckInterval)
	}
}

func TestStaticTargetIDsAreDeterministic(t *testing.T) {
	content := `
targets:
  - name: svc
    executable_path: /usr/bin/svc
`
	cfgA, _, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatal(err)
	}
	cfgB, _, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatal(err)
	}

	idA := cfgA.StaticTargets()[0].ID
	idB := cfgB.StaticTargets()[0].ID
	if idA != idB {
		t.Errorf("Same target name should yield the same ID across loads: %s vs %s", idA, idB)
	}

	other, _, err := Load(writeConfig(t, `
targets:
  - name: other
    executable_path: /usr/bin/other
`))
	if err != nil {
		t.Fatal(err)
	}
	if other.StaticTargets()[0].ID == idA {
		t.Error("Different target names should yield different IDs")
	}
}

func TestNotifySettings(t *testing.T) {
	path := writeConfig(t, `
notifications:
  enabled: true
  on_restart: false
  webhook_url: https://hooks.example.com/x
  smtp_host: mail.example.com
  smtp_port: 2525
  mail_from: procwatch@example.com
  mail_to:
    - ops@example.com
`)

	cfg, _, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	n := cfg.NotifySettings()
	if !n.Enabled || n.OnRestart || !n.OnFailure {
		t.Errorf("Notification policy mismatch: %+v", n)
	}
	if n.WebhookURL != "https://hooks.example.com/x" {
		t.Errorf("Webhook URL mismatch: %s", n.WebhookURL)
	}
	if n.SMTP.Host != "mail.example.com" || n.SMTP.Port != 2525 {
		t.Errorf("SMTP settings mismatch: %+v", n.SMTP)
	}
	if len(n.SMTP.To) != 1 || n.SMTP.To[0] != "ops@example.com" {
		t.Errorf("Recipients mismatch: %v", n.SMTP.To)
	}
}
