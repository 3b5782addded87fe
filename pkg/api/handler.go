package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/psantana5/procwatch/internal/supervisor"
	"github.com/psantana5/procwatch/pkg/logging"
	"github.com/psantana5/procwatch/pkg/models"
	"github.com/psantana5/procwatch/pkg/store"
)

// Handler owns the live target catalog and serves the REST control
// surface. It is the "config layer" the supervision core reacts to: every
// mutation is persisted and then fed to the registry's membership hooks.
type Handler struct {
	mu        sync.RWMutex
	targets   map[string]*models.Target
	staticIDs map[string]bool

	store     store.Store
	registry  *supervisor.Registry
	logger    *logging.Logger
	startTime time.Time

	defaultCheckInterval time.Duration
	defaultRestartDelay  time.Duration
}

// NewHandler creates a handler and loads the persisted target catalog
func NewHandler(st store.Store, reg *supervisor.Registry, logger *logging.Logger,
	defaultCheckInterval, defaultRestartDelay time.Duration) (*Handler, error) {

	if defaultCheckInterval <= 0 {
		defaultCheckInterval = 10 * time.Second
	}
	if defaultRestartDelay < 0 {
		defaultRestartDelay = 0
	}

	persisted, err := st.GetAllTargets()
	if err != nil {
		return nil, fmt.Errorf("failed to load targets: %w", err)
	}

	targets := make(map[string]*models.Target, len(persisted))
	for _, t := range persisted {
		t.Clamp()
		targets[t.ID] = t
	}

	return &Handler{
		targets:              targets,
		staticIDs:            make(map[string]bool),
		store:                st,
		registry:             reg,
		logger:               logger,
		startTime:            time.Now(),
		defaultCheckInterval: defaultCheckInterval,
		defaultRestartDelay:  defaultRestartDelay,
	}, nil
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/targets", h.CreateTarget).Methods("POST")
	r.HandleFunc("/targets", h.ListTargets).Methods("GET")
	r.HandleFunc("/targets/{id}", h.GetTarget).Methods("GET")
	r.HandleFunc("/targets/{id}", h.DeleteTarget).Methods("DELETE")
	r.HandleFunc("/targets/{id}/enable", h.EnableTarget).Methods("POST")
	r.HandleFunc("/targets/{id}/disable", h.DisableTarget).Methods("POST")
	r.HandleFunc("/targets/{id}/history", h.GetHistory).Methods("GET")

	r.HandleFunc("/supervisor/start", h.StartSupervisor).Methods("POST")
	r.HandleFunc("/supervisor/stop", h.StopSupervisor).Methods("POST")

	r.HandleFunc("/status", h.Status).Methods("GET")
	r.HandleFunc("/health", h.Health).Methods("GET")
}

// Targets returns the live target descriptors, sorted by name
func (h *Handler) Targets() []*models.Target {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*models.Target, 0, len(h.targets))
	for _, t := range h.targets {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// TargetRequest is the request body for creating a target
type TargetRequest struct {
	Name                 string `json:"name"`
	ExecutablePath       string `json:"executable_path"`
	Arguments            string `json:"arguments,omitempty"`
	WorkingDir           string `json:"working_dir,omitempty"`
	CheckIntervalSeconds int    `json:"check_interval_seconds,omitempty"`
	RestartDelaySeconds  int    `json:"restart_delay_seconds,omitempty"`
	Enabled              *bool  `json:"enabled,omitempty"`
}

// CreateTarget handles POST /targets
func (h *Handler) CreateTarget(w http.ResponseWriter, r *http.Request) {
	var req TargetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	checkInterval := h.defaultCheckInterval
	if req.CheckIntervalSeconds != 0 {
		checkInterval = time.Duration(req.CheckIntervalSeconds) * time.Second
	}
	restartDelay := h.defaultRestartDelay
	if req.RestartDelaySeconds != 0 {
		restartDelay = time.Duration(req.RestartDelaySeconds) * time.Second
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	t := models.NewTarget(uuid.New().String(), req.Name, req.ExecutablePath,
		req.Arguments, req.WorkingDir, checkInterval, restartDelay, enabled)
	if err := t.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.store.SaveTarget(t); err != nil {
		h.logger.Error("failed to persist target", map[string]interface{}{"error": err.Error()})
		http.Error(w, "Failed to persist target", http.StatusInternalServerError)
		return
	}

	h.mu.Lock()
	h.targets[t.ID] = t
	h.mu.Unlock()

	h.registry.OnTargetAdded(t)
	h.logger.Info("target added", map[string]interface{}{"target": t.Name, "id": t.ID})

	writeJSON(w, http.StatusCreated, t.Snapshot())
}

// ListTargets handles GET /targets
func (h *Handler) ListTargets(w http.ResponseWriter, r *http.Request) {
	targets := h.Targets()
	infos := make([]models.TargetInfo, 0, len(targets))
	for _, t := range targets {
		infos = append(infos, t.Snapshot())
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"targets": infos,
		"count":   len(infos),
	})
}

// GetTarget handles GET /targets/{id}
func (h *Handler) GetTarget(w http.ResponseWriter, r *http.Request) {
	t, ok := h.lookup(mux.Vars(r)["id"])
	if !ok {
		http.Error(w, "Target not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, t.Snapshot())
}

// DeleteTarget handles DELETE /targets/{id}. The watch loop is stopped
// before the descriptor leaves the catalog.
func (h *Handler) DeleteTarget(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	t, ok := h.lookup(id)
	if !ok {
		http.Error(w, "Target not found", http.StatusNotFound)
		return
	}

	h.registry.OnTargetRemoved(id)

	h.mu.Lock()
	delete(h.targets, id)
	delete(h.staticIDs, id)
	h.mu.Unlock()

	if err := h.store.DeleteTarget(id); err != nil && !errors.Is(err, store.ErrNotFound) {
		h.logger.Error("failed to delete target from store", map[string]interface{}{"error": err.Error()})
	}

	h.logger.Info("target removed", map[string]interface{}{"target": t.Name, "id": id})
	w.WriteHeader(http.StatusNoContent)
}

// EnableTarget handles POST /targets/{id}/enable
func (h *Handler) EnableTarget(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, true)
}

// DisableTarget handles POST /targets/{id}/disable
func (h *Handler) DisableTarget(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, false)
}

func (h *Handler) setEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	t, ok := h.lookup(mux.Vars(r)["id"])
	if !ok {
		http.Error(w, "Target not found", http.StatusNotFound)
		return
	}

	if t.Enabled() != enabled {
		t.SetEnabled(enabled)
		if err := h.store.SaveTarget(t); err != nil {
			h.logger.Error("failed to persist target", map[string]interface{}{"error": err.Error()})
		}
		h.registry.OnTargetEnabledChanged(t)
	}

	writeJSON(w, http.StatusOK, t.Snapshot())
}

// GetHistory handles GET /targets/{id}/history
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, ok := h.lookup(id); !ok {
		http.Error(w, "Target not found", http.StatusNotFound)
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	events, err := h.store.GetRestartHistory(id, limit)
	if err != nil {
		h.logger.Error("failed to load restart history", map[string]interface{}{"error": err.Error()})
		http.Error(w, "Failed to load history", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}

// StartSupervisor handles POST /supervisor/start
func (h *Handler) StartSupervisor(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Start(h.Targets()); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"running": true})
}

// StopSupervisor handles POST /supervisor/stop
func (h *Handler) StopSupervisor(w http.ResponseWriter, r *http.Request) {
	h.registry.Stop()
	writeJSON(w, http.StatusOK, map[string]interface{}{"running": false})
}

// Status handles GET /status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	targets := h.Targets()
	infos := make([]models.TargetInfo, 0, len(targets))
	for _, t := range targets {
		infos = append(infos, t.Snapshot())
	}

	status := map[string]interface{}{
		"supervisor_running": h.registry.IsRunning(),
		"active_loops":       h.registry.ActiveTargets(),
		"targets":            infos,
		"target_count":       len(infos),
		"uptime_seconds":     int64(time.Since(h.startTime).Seconds()),
	}

	host := map[string]interface{}{}
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		host["cpu_percent"] = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		host["memory_used_percent"] = vm.UsedPercent
		host["memory_total_bytes"] = vm.Total
	}
	if len(host) > 0 {
		status["host"] = host
	}

	writeJSON(w, http.StatusOK, status)
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.store.HealthCheck(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}

func (h *Handler) lookup(id string) (*models.Target, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	t, ok := h.targets[id]
	return t, ok
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
