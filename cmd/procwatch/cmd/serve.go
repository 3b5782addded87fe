package cmd

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/psantana5/procwatch/internal/config"
	"github.com/psantana5/procwatch/internal/supervisor"
	"github.com/psantana5/procwatch/pkg/api"
	"github.com/psantana5/procwatch/pkg/auth"
	"github.com/psantana5/procwatch/pkg/logging"
	"github.com/psantana5/procwatch/pkg/metrics"
	"github.com/psantana5/procwatch/pkg/models"
	"github.com/psantana5/procwatch/pkg/notify"
	"github.com/psantana5/procwatch/pkg/shutdown"
	"github.com/psantana5/procwatch/pkg/store"
)

var (
	serveListen  string
	serveDB      string
	serveNoStart bool
)

// serveCmd runs the supervision daemon
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the supervision daemon",
	Long: `Start the procwatch daemon: load the target catalog from the config
file and the database, begin supervising enabled targets, and serve the
management API and Prometheus metrics.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(generateKeyCmd)

	serveCmd.Flags().StringVar(&serveListen, "listen", "", "API listen address (overrides config)")
	serveCmd.Flags().StringVar(&serveDB, "db", "", "SQLite database path (overrides config, empty string in config means in-memory)")
	serveCmd.Flags().BoolVar(&serveNoStart, "no-start", false, "load targets but do not start supervising until POST /supervisor/start")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, loader, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if serveListen != "" {
		cfg.Listen = serveListen
	}
	if serveDB != "" {
		cfg.DatabasePath = serveDB
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		return err
	}

	logger.Info("starting procwatch daemon", map[string]interface{}{
		"listen":         cfg.Listen,
		"metrics_listen": cfg.MetricsListen,
		"database":       cfg.DatabasePath,
	})

	shut := shutdown.New(30 * time.Second)
	shut.Register(shutdown.CloseResource(logger, "logger"))

	dataStore, err := store.NewStore(store.Config{Path: cfg.DatabasePath})
	if err != nil {
		return err
	}
	shut.Register(shutdown.CloseResource(dataStore, "store"))
	if cfg.DatabasePath == "" {
		logger.Warn("using in-memory store, targets will not survive restarts")
	}

	recorder := metrics.New(nil)
	dispatcher := notify.NewDispatcher(cfg.NotifySettings(), logger)

	registry := supervisor.New(supervisor.Config{
		Checker:  supervisor.NewProcessChecker(),
		Launcher: supervisor.NewProcessLauncher(),
		Notifier: dispatcher,
		Metrics:  recorder,
		Logger:   logger,
		OnStateChange: func(running bool) {
			logger.Info("supervisor state changed", map[string]interface{}{"running": running})
		},
		OnRestart: func(t *models.Target, restartErr error) {
			event := &models.RestartEvent{
				TargetID:   t.ID,
				TargetName: t.Name,
				Timestamp:  time.Now().UTC(),
				Success:    restartErr == nil,
			}
			if restartErr != nil {
				event.Error = restartErr.Error()
			}
			if err := dataStore.RecordRestart(event); err != nil {
				logger.Error("failed to record restart event", map[string]interface{}{
					"target": t.Name, "error": err.Error(),
				})
			}
		},
	})

	handler, err := api.NewHandler(dataStore, registry, logger,
		cfg.DefaultCheckInterval(), cfg.DefaultRestartDelay())
	if err != nil {
		return err
	}

	handler.SyncStaticTargets(cfg.StaticTargets())
	loader.Watch(func(fresh *config.Config) {
		logger.Info("config file changed, reconciling static targets")
		handler.SyncStaticTargets(fresh.StaticTargets())
	})

	router := mux.NewRouter()
	if cfg.APIKey != "" {
		logger.Info("API authentication enabled")
		router.Use(auth.Middleware(cfg.APIKey))
	} else {
		logger.Warn("API authentication disabled, set api_key to require a bearer token")
	}
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:         cfg.Listen,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("API server listening", map[string]interface{}{"addr": cfg.Listen})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("API server failed", map[string]interface{}{"error": err.Error()})
		}
	}()
	shut.Register(shutdown.StopHTTPServer(srv, "api server"))

	if cfg.MetricsListen != "" {
		metricsRouter := mux.NewRouter()
		metricsRouter.Handle("/metrics", promhttp.Handler()).Methods("GET")
		metricsSrv := &http.Server{
			Addr:         cfg.MetricsListen,
			Handler:      metricsRouter,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", map[string]interface{}{"addr": cfg.MetricsListen})
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", map[string]interface{}{"error": err.Error()})
			}
		}()
		shut.Register(shutdown.StopHTTPServer(metricsSrv, "metrics server"))
	}

	if !serveNoStart {
		if err := registry.Start(handler.Targets()); err != nil {
			return err
		}
	}
	shut.Register(func(ctx context.Context) error {
		registry.Stop()
		return nil
	})

	sig := shut.Wait()
	logger.Info("shutting down", map[string]interface{}{"signal": sig.String()})
	for _, err := range shut.Shutdown() {
		logger.Error("shutdown error", map[string]interface{}{"error": err.Error()})
	}
	logger.Info("daemon stopped")
	return nil
}

func buildLogger(cfg *config.Config) (*logging.Logger, error) {
	level := logging.ParseLevel(cfg.LogLevel)
	if cfg.LogFile != "" {
		return logging.NewFileLogger(cfg.LogFile, level, cfg.LogJSON)
	}
	return logging.NewLogger(level, cfg.LogJSON), nil
}

// generateKeyCmd prints a fresh API key
var generateKeyCmd = &cobra.Command{
	Use:   "generate-key",
	Short: "Generate a random API key",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := auth.GenerateAPIKey()
		if err != nil {
			return err
		}
		cmd.Println(key)
		return nil
	},
}
