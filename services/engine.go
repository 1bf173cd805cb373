package services

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"upkeeper/internal/config"
	"upkeeper/internal/env"
	"upkeeper/internal/events"
	"upkeeper/internal/logger"
	"upkeeper/internal/models"
	"upkeeper/internal/provider"
)

// How long each monitor loop gets to drain during shutdown.
const loopJoinTimeout = 5 * time.Second

/**
 * Engine owns the two supervisors and the engine-wide lifecycle
 * @description
 * - Holds an exclusive file lock on the state root so a second engine
 *   instance cannot corrupt the per-entity JSON stores
 * - The supervisors are fully independent: no shared lock, coordination
 *   happens only through callers sequencing (start daemon, then tunnel)
 * - Shutdown signals both monitor loops, joins them with a bounded wait,
 *   then best-effort stops every tracked entity so no OS process or
 *   provider session is orphaned
 */
type Engine struct {
	cfg       *config.AppConfig
	bus       *events.Bus
	daemons   *ProcessSupervisor
	tunnels   *TunnelSupervisor
	lock      *flock.Flock
	startTime time.Time
}

/**
 * NewEngine constructs the supervision engine
 * @param {Registry} registry - Tunnel providers; nil uses the default set
 * @returns {(*Engine, error)} Ready engine with both monitor loops running
 */
func NewEngine(cfg *config.AppConfig, registry provider.Registry) (*Engine, error) {
	if err := os.MkdirAll(env.UpkeeperDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state root: %w", err)
	}
	lock := flock.New(filepath.Join(env.UpkeeperDir, "engine.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire engine lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("another engine instance already owns %s", env.UpkeeperDir)
	}

	bus := events.NewBus()
	subscribeMetrics(bus)

	daemons, err := NewProcessSupervisor(cfg, bus)
	if err != nil {
		lock.Unlock()
		return nil, err
	}
	tunnels, err := NewTunnelSupervisor(cfg, bus, registry)
	if err != nil {
		daemons.Close(loopJoinTimeout)
		lock.Unlock()
		return nil, err
	}

	e := &Engine{
		cfg:       cfg,
		bus:       bus,
		daemons:   daemons,
		tunnels:   tunnels,
		lock:      lock,
		startTime: time.Now(),
	}
	activeDaemons.Set(float64(len(daemons.ListActive())))
	activeTunnels.Set(float64(len(tunnels.ListActive())))
	return e, nil
}

// subscribeMetrics feeds the prometheus counters from lifecycle events.
func subscribeMetrics(bus *events.Bus) {
	bus.Subscribe(events.DaemonCrashed, func(ev events.Event) error {
		daemonCrashes.Inc()
		return nil
	})
	bus.Subscribe(events.DaemonRestarted, func(ev events.Event) error {
		daemonRestarts.Inc()
		return nil
	})
	bus.Subscribe(events.DaemonStarted, func(ev events.Event) error {
		activeDaemons.Inc()
		return nil
	})
	bus.Subscribe(events.DaemonStopped, func(ev events.Event) error {
		activeDaemons.Dec()
		return nil
	})
	bus.Subscribe(events.TunnelReconnecting, func(ev events.Event) error {
		tunnelReconnects.Inc()
		return nil
	})
	bus.Subscribe(events.TunnelCreated, func(ev events.Event) error {
		activeTunnels.Inc()
		return nil
	})
	bus.Subscribe(events.TunnelClosed, func(ev events.Event) error {
		activeTunnels.Dec()
		return nil
	})
}

// Daemons returns the process supervisor.
func (e *Engine) Daemons() *ProcessSupervisor {
	return e.daemons
}

// Tunnels returns the tunnel supervisor.
func (e *Engine) Tunnels() *TunnelSupervisor {
	return e.tunnels
}

// Bus returns the engine's event bus for external subscribers.
func (e *Engine) Bus() *events.Bus {
	return e.bus
}

/**
 * Shutdown stops monitoring, then all supervised entities, then releases
 * the engine lock
 */
func (e *Engine) Shutdown() {
	logger.Info("Engine shutting down")
	e.daemons.Close(loopJoinTimeout)
	e.tunnels.Close(loopJoinTimeout)
	if err := e.lock.Unlock(); err != nil {
		logger.Errorf("Failed to release engine lock: %v", err)
	}
	logger.Info("Engine shutdown complete")
}

/**
 * GetHealthz summarizes the engine for the /healthz endpoint
 */
func (e *Engine) GetHealthz() models.HealthResponse {
	uptime := time.Since(e.startTime)

	running := 0
	for _, d := range e.daemons.ListActive() {
		if d.Status == models.DaemonRunning {
			running++
		}
	}
	online := 0
	for _, t := range e.tunnels.ListActive() {
		if t.Status == models.TunnelOnline {
			online++
		}
	}

	return models.HealthResponse{
		Version:   env.Version,
		StartTime: e.startTime.Format(time.RFC3339),
		Status:    "UP",
		Uptime:    uptime.String(),
		Metrics: models.Metrics{
			TotalRequests: GetTotalRequestCount(),
			ErrorRequests: GetTotalErrorCount(),
			ActiveDaemons: running,
			ActiveTunnels: online,
		},
	}
}
