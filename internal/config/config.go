// Package config loads the daemon configuration from YAML (viper) with
// PROCWATCH_* environment overrides, and exposes live reload of the
// static target list.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/psantana5/procwatch/pkg/models"
	"github.com/psantana5/procwatch/pkg/notify"
)

// staticTargetNamespace makes config-file target IDs deterministic across
// reloads and restarts, keyed by target name.
var staticTargetNamespace = uuid.MustParse("9af1c4a7-5a60-4d8f-9a62-2f15c7d6b2d1")

// TargetConfig is one static target definition in the config file
type TargetConfig struct {
	Name                 string `mapstructure:"name"`
	ExecutablePath       string `mapstructure:"executable_path"`
	Arguments            string `mapstructure:"arguments"`
	WorkingDir           string `mapstructure:"working_dir"`
	CheckIntervalSeconds int    `mapstructure:"check_interval_seconds"`
	RestartDelaySeconds  int    `mapstructure:"restart_delay_seconds"`
	Enabled              *bool  `mapstructure:"enabled"`
}

// NotifyConfig holds notification settings
type NotifyConfig struct {
	Enabled    bool     `mapstructure:"enabled"`
	OnRestart  bool     `mapstructure:"on_restart"`
	OnFailure  bool     `mapstructure:"on_failure"`
	WebhookURL string   `mapstructure:"webhook_url"`
	SMTPHost   string   `mapstructure:"smtp_host"`
	SMTPPort   int      `mapstructure:"smtp_port"`
	SMTPUser   string   `mapstructure:"smtp_user"`
	SMTPPass   string   `mapstructure:"smtp_pass"`
	MailFrom   string   `mapstructure:"mail_from"`
	MailTo     []string `mapstructure:"mail_to"`
}

// Config aggregates the daemon settings
type Config struct {
	Listen        string `mapstructure:"listen"`
	MetricsListen string `mapstructure:"metrics_listen"`
	DatabasePath  string `mapstructure:"database"`
	APIKey        string `mapstructure:"api_key"`

	LogLevel string `mapstructure:"log_level"`
	LogJSON  bool   `mapstructure:"log_json"`
	LogFile  string `mapstructure:"log_file"`

	DefaultCheckIntervalSeconds int `mapstructure:"default_check_interval_seconds"`
	DefaultRestartDelaySeconds  int `mapstructure:"default_restart_delay_seconds"`

	Notify  NotifyConfig   `mapstructure:"notifications"`
	Targets []TargetConfig `mapstructure:"targets"`
}

// Loader wraps the viper instance so the caller can re-read the static
// target list on file change.
type Loader struct {
	v *viper.Viper
}

// Load reads configuration. An explicit path wins; otherwise the usual
// locations are searched. A missing config file is not an error - every
// setting has a default.
func Load(path string) (*Config, *Loader, error) {
	v := viper.New()

	v.SetDefault("listen", ":8787")
	v.SetDefault("metrics_listen", ":9187")
	v.SetDefault("database", "procwatch.db")
	v.SetDefault("log_level", "info")
	v.SetDefault("default_check_interval_seconds", 10)
	v.SetDefault("default_restart_delay_seconds", 5)
	v.SetDefault("notifications.on_restart", true)
	v.SetDefault("notifications.on_failure", true)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/procwatch")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".procwatch"))
		}
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("PROCWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg, err := unmarshal(v)
	if err != nil {
		return nil, nil, err
	}
	return cfg, &Loader{v: v}, nil
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// Watch re-reads the config file whenever it changes on disk and hands
// the fresh config to onChange. Parse errors keep the previous config.
func (l *Loader) Watch(onChange func(*Config)) {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			return
		}
		cfg, err := unmarshal(l.v)
		if err != nil {
			return
		}
		onChange(cfg)
	})
	l.v.WatchConfig()
}

// DefaultCheckInterval returns the default poll cadence
func (c *Config) DefaultCheckInterval() time.Duration {
	return time.Duration(c.DefaultCheckIntervalSeconds) * time.Second
}

// DefaultRestartDelay returns the default restart delay
func (c *Config) DefaultRestartDelay() time.Duration {
	return time.Duration(c.DefaultRestartDelaySeconds) * time.Second
}

// NotifySettings converts the notification section for pkg/notify
func (c *Config) NotifySettings() notify.Config {
	return notify.Config{
		Enabled:    c.Notify.Enabled,
		OnRestart:  c.Notify.OnRestart,
		OnFailure:  c.Notify.OnFailure,
		WebhookURL: c.Notify.WebhookURL,
		SMTP: notify.SMTPConfig{
			Host:     c.Notify.SMTPHost,
			Port:     c.Notify.SMTPPort,
			Username: c.Notify.SMTPUser,
			Password: c.Notify.SMTPPass,
			From:     c.Notify.MailFrom,
			To:       c.Notify.MailTo,
		},
	}
}

// StaticTargets builds target descriptors from the config file's targets
// section. Interval fields fall back to the daemon defaults, then get
// clamped rather than rejected so one bad entry cannot block startup.
func (c *Config) StaticTargets() []*models.Target {
	out := make([]*models.Target, 0, len(c.Targets))
	seen := make(map[string]bool, len(c.Targets))
	for _, tc := range c.Targets {
		if tc.Name == "" || tc.ExecutablePath == "" {
			continue
		}
		if seen[tc.Name] {
			continue
		}
		seen[tc.Name] = true

		checkInterval := c.DefaultCheckInterval()
		if tc.CheckIntervalSeconds != 0 {
			checkInterval = time.Duration(tc.CheckIntervalSeconds) * time.Second
		}
		restartDelay := c.DefaultRestartDelay()
		if tc.RestartDelaySeconds != 0 {
			restartDelay = time.Duration(tc.RestartDelaySeconds) * time.Second
		}
		enabled := true
		if tc.Enabled != nil {
			enabled = *tc.Enabled
		}

		id := uuid.NewSHA1(staticTargetNamespace, []byte(tc.Name)).String()
		t := models.NewTarget(id, tc.Name, tc.ExecutablePath, tc.Arguments,
			tc.WorkingDir, checkInterval, restartDelay, enabled)
		t.Clamp()
		out = append(out, t)
	}
	return out
}
