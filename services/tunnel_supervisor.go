package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"upkeeper/internal/config"
	"upkeeper/internal/env"
	"upkeeper/internal/events"
	"upkeeper/internal/logger"
	"upkeeper/internal/models"
	"upkeeper/internal/monitor"
	"upkeeper/internal/provider"
	"upkeeper/internal/retry"
	"upkeeper/internal/store"
	"upkeeper/internal/utils"
)

const (
	// Auto mode sentinel accepted by CreateTunnel
	ProviderAuto = "auto"

	establishTimeout = 30 * time.Second
	probeHTTPTimeout = 3 * time.Second
)

// ErrTunnelNotFound is returned when the given ID maps to no tracked tunnel.
var ErrTunnelNotFound = errors.New("tunnel not found")

/**
 * TunnelOptions carries optional per-tunnel settings
 * @property {int} maxReconnects - Reconnect budget; 0 uses the provider's cap
 * @property {string} authToken - Credential passed through to the provider
 */
type TunnelOptions struct {
	Name           string
	Protocol       string
	Subdomain      string
	Region         string
	AuthToken      string
	MaxReconnects  int
	HealthInterval time.Duration
}

// tunnelInstance pairs the persisted record with the live provider session.
type tunnelInstance struct {
	models.Tunnel
	prov    provider.Provider
	handle  *provider.Handle
	spec    provider.Spec
	lastURL string
}

/**
 * TunnelSupervisor owns tunnel lifecycle across providers
 * @description
 * - Creation supports an explicit provider (with bounded retry) or auto
 *   mode falling through an ordered provider list
 * - One background monitor loop probes health and drives bounded
 *   reconnection; no lock is shared with the process supervisor
 * - State persists one JSON file per tunnel; reloaded records are
 *   re-validated with a health probe on construction
 */
type TunnelSupervisor struct {
	mutex    sync.Mutex
	tunnels  map[string]*tunnelInstance
	store    *store.Store[models.Tunnel]
	registry provider.Registry
	bus      *events.Bus
	loop     *monitor.Loop
	cfg      config.TunnelConfig
}

/**
 * NewTunnelSupervisor creates the supervisor and starts its monitor loop
 * @param {Registry} registry - Provider set; nil builds the default one
 */
func NewTunnelSupervisor(cfg *config.AppConfig, bus *events.Bus, registry provider.Registry) (*TunnelSupervisor, error) {
	st, err := store.New[models.Tunnel](env.StateDir("tunnels"))
	if err != nil {
		return nil, err
	}
	if registry == nil {
		registry = provider.DefaultRegistry(&cfg.Tunnel)
	}
	ts := &TunnelSupervisor{
		tunnels:  make(map[string]*tunnelInstance),
		store:    st,
		registry: registry,
		bus:      bus,
		cfg:      cfg.Tunnel,
	}
	ts.reload()
	ts.loop = monitor.NewLoop("tunnels", cfg.Monitor.Tick, cfg.Monitor.ProbeTimeout, ts)
	ts.loop.Start()
	return ts, nil
}

func (ts *TunnelSupervisor) reload() {
	for id, rec := range ts.store.Load() {
		prov, ok := ts.registry[rec.Provider]
		if !ok {
			logger.Warnf("Tunnel [%s] uses unknown provider %s, dropping state", id, rec.Provider)
			ts.store.Delete(id)
			continue
		}
		inst := &tunnelInstance{
			Tunnel: *rec,
			prov:   prov,
			handle: provider.Reattach(rec.PublicURL, rec.Pid),
			spec: provider.Spec{
				LocalPort: rec.LocalPort,
				Protocol:  rec.Protocol,
			},
		}
		ctx, cancel := context.WithTimeout(context.Background(), probeHTTPTimeout)
		err := ts.probe(ctx, inst)
		cancel()
		if err != nil {
			logger.Warnf("Tunnel [%s] failed re-validation: %v", id, err)
			inst.Status = models.TunnelOffline
			inst.lastURL = inst.PublicURL
			inst.PublicURL = ""
		} else {
			inst.Status = models.TunnelOnline
			logger.Infof("Re-attached tunnel [%s] %s -> %s", id, inst.Name, inst.PublicURL)
		}
		ts.tunnels[id] = inst
		ts.persist(inst)
	}
}

// Close stops the monitor loop and tears down every active session.
func (ts *TunnelSupervisor) Close(loopTimeout time.Duration) {
	ts.loop.Stop(loopTimeout)
	for _, t := range ts.snapshot() {
		switch t.Status {
		case models.TunnelOnline, models.TunnelOffline, models.TunnelReconnecting:
			ts.CloseTunnel(t.ID)
		}
	}
}

/**
 * CreateTunnel exposes a local port through a provider
 * @param {int} localPort - Port to forward to
 * @param {string} providerName - Provider name, or "auto" for the ordered
 *        fallback list
 * @returns {(*models.Tunnel, error)} The online tunnel on success
 * @description
 * - Explicit mode retries that one provider with a bounded fixed-delay
 *   policy; configuration failures (missing binary, bad template) are
 *   fail-fast and never retried
 * - Auto mode tries each configured provider once in order and returns the
 *   first success; when all fail the error enumerates every provider's
 *   individual failure reason
 * - At most one active tunnel may map a given (localPort, provider) pair
 */
func (ts *TunnelSupervisor) CreateTunnel(localPort int, providerName string, opts TunnelOptions) (*models.Tunnel, error) {
	if localPort <= 0 {
		return nil, fmt.Errorf("local port must be positive")
	}
	if providerName == "" {
		providerName = ProviderAuto
	}
	if !utils.CheckPortConnectable(localPort) {
		// The tunnel can still come up; the target service may bind later
		logger.Warnf("Nothing is listening on localhost:%d yet", localPort)
	}

	if providerName != ProviderAuto {
		prov, ok := ts.registry[providerName]
		if !ok {
			return nil, fmt.Errorf("%w: %s", config.ErrProviderNotFound, providerName)
		}
		if err := ts.checkDuplicate(localPort, providerName); err != nil {
			return nil, err
		}
		var handle *provider.Handle
		spec := ts.buildSpec(localPort, opts)
		policy := retry.Fixed(3, 2*time.Second)
		err := retry.Do(context.Background(), policy, func() error {
			var attemptErr error
			handle, attemptErr = ts.establish(prov, spec)
			return attemptErr
		})
		if err != nil {
			return nil, fmt.Errorf("provider %s failed: %w", providerName, err)
		}
		return ts.register(prov, spec, handle, opts)
	}

	var failures []error
	for _, name := range ts.cfg.ProviderOrder {
		prov, ok := ts.registry[name]
		if !ok {
			failures = append(failures, fmt.Errorf("%s: not configured", name))
			continue
		}
		if err := ts.checkDuplicate(localPort, name); err != nil {
			return nil, err
		}
		spec := ts.buildSpec(localPort, opts)
		handle, err := ts.establish(prov, spec)
		if err != nil {
			logger.Warnf("Provider [%s] failed for port %d: %v", name, localPort, err)
			failures = append(failures, fmt.Errorf("%s: %w", name, err))
			continue
		}
		return ts.register(prov, spec, handle, opts)
	}
	return nil, fmt.Errorf("all providers failed for port %d: %w", localPort, errors.Join(failures...))
}

func (ts *TunnelSupervisor) buildSpec(localPort int, opts TunnelOptions) provider.Spec {
	protocol := opts.Protocol
	if protocol == "" {
		protocol = "http"
	}
	return provider.Spec{
		LocalPort: localPort,
		Protocol:  protocol,
		Subdomain: opts.Subdomain,
		Region:    opts.Region,
		AuthToken: opts.AuthToken,
	}
}

func (ts *TunnelSupervisor) checkDuplicate(localPort int, providerName string) error {
	ts.mutex.Lock()
	defer ts.mutex.Unlock()
	for _, t := range ts.tunnels {
		if t.LocalPort != localPort || t.Provider != providerName {
			continue
		}
		switch t.Status {
		case models.TunnelOnline, models.TunnelOffline, models.TunnelReconnecting, models.TunnelStarting:
			return fmt.Errorf("tunnel [%s] already maps port %d via %s", t.ID, localPort, providerName)
		}
	}
	return nil
}

func (ts *TunnelSupervisor) establish(prov provider.Provider, spec provider.Spec) (*provider.Handle, error) {
	ctx, cancel := context.WithTimeout(context.Background(), establishTimeout)
	defer cancel()
	return prov.Establish(ctx, spec)
}

func (ts *TunnelSupervisor) register(prov provider.Provider, spec provider.Spec, handle *provider.Handle, opts TunnelOptions) (*models.Tunnel, error) {
	maxReconnects := opts.MaxReconnects
	if maxReconnects <= 0 {
		if pc, ok := ts.cfg.Providers[prov.Name()]; ok && pc.MaxReconnects > 0 {
			maxReconnects = pc.MaxReconnects
		} else {
			maxReconnects = 3
		}
	}
	healthInterval := opts.HealthInterval
	if healthInterval <= 0 {
		healthInterval = ts.cfg.HealthInterval
	}
	name := opts.Name
	if name == "" {
		name = fmt.Sprintf("%s-%d", prov.Name(), spec.LocalPort)
	}

	inst := &tunnelInstance{
		Tunnel: models.Tunnel{
			ID:             uuid.NewString(),
			Name:           name,
			LocalPort:      spec.LocalPort,
			Provider:       prov.Name(),
			Protocol:       spec.Protocol,
			PublicURL:      handle.PublicURL,
			Pid:            handle.Pid,
			Status:         models.TunnelOnline,
			MaxReconnects:  maxReconnects,
			HealthInterval: healthInterval,
			CreatedAt:      time.Now(),
		},
		prov:   prov,
		handle: handle,
		spec:   spec,
	}
	ts.mutex.Lock()
	ts.tunnels[inst.ID] = inst
	ts.mutex.Unlock()
	ts.persist(inst)

	logger.Infof("Tunnel [%s] online: %s -> localhost:%d via %s",
		inst.ID, inst.PublicURL, inst.LocalPort, inst.Provider)
	ts.bus.Publish(events.Event{Type: events.TunnelCreated, EntityID: inst.ID,
		Detail: inst.PublicURL})
	return ts.detail(inst), nil
}

/**
 * CloseTunnel tears down a tunnel and deletes its persisted state
 * @returns {bool} True when the tunnel was tracked; tearing down an
 *          already-dead session is a success
 */
func (ts *TunnelSupervisor) CloseTunnel(id string) bool {
	ts.mutex.Lock()
	inst, ok := ts.tunnels[id]
	if !ok {
		ts.mutex.Unlock()
		return false
	}
	ts.mutex.Unlock()

	if err := inst.prov.Teardown(inst.handle); err != nil {
		logger.Errorf("Tunnel [%s] teardown failed: %v", id, err)
	}

	ts.mutex.Lock()
	inst.Status = models.TunnelStopped
	inst.PublicURL = ""
	delete(ts.tunnels, id)
	ts.mutex.Unlock()
	if err := ts.store.Delete(id); err != nil {
		logger.Errorf("Failed to delete state of tunnel [%s]: %v", id, err)
	}
	logger.Infof("Tunnel [%s] closed", id)
	ts.bus.Publish(events.Event{Type: events.TunnelClosed, EntityID: id})
	return true
}

/**
 * CheckHealth probes one tunnel and reports the status the probe implies
 * @description
 * - Prefers the provider's native liveness query; falls back to an HTTP
 *   probe of the public URL, where any response under 500 counts healthy
 * - Does not mutate supervisor state; recovery belongs to the monitor loop
 */
func (ts *TunnelSupervisor) CheckHealth(id string) (models.TunnelStatus, error) {
	ts.mutex.Lock()
	inst, ok := ts.tunnels[id]
	ts.mutex.Unlock()
	if !ok {
		return models.TunnelStopped, fmt.Errorf("tunnel %s: %w", id, ErrTunnelNotFound)
	}
	ctx, cancel := context.WithTimeout(context.Background(), probeHTTPTimeout)
	defer cancel()
	if err := ts.probe(ctx, inst); err != nil {
		return models.TunnelOffline, nil
	}
	return models.TunnelOnline, nil
}

func (ts *TunnelSupervisor) probe(ctx context.Context, inst *tunnelInstance) error {
	err := inst.prov.Check(ctx, inst.handle)
	if err == nil {
		return nil
	}
	if !errors.Is(err, provider.ErrNativeCheckUnavailable) {
		return err
	}
	url := inst.PublicURL
	if url == "" {
		url = inst.lastURL
	}
	if url == "" {
		return fmt.Errorf("tunnel has no public URL to probe")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build probe request: %w", err)
	}
	client := &http.Client{Timeout: probeHTTPTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("probe of %s failed: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("probe of %s returned %d", url, resp.StatusCode)
	}
	return nil
}

/**
 * Reconnect tears down and re-establishes a tunnel, consuming budget
 * @returns {bool} True when the tunnel is online again
 * @description
 * - Fails immediately and marks the tunnel terminally errored when the
 *   reconnect budget is exhausted
 * - A reconnect already in flight is not entered twice; concurrent callers
 *   report false without consuming budget or touching the session
 * - Re-establishes with the identical port, protocol and provider config;
 *   the public URL may change and is re-persisted
 */
func (ts *TunnelSupervisor) Reconnect(id string) bool {
	ts.mutex.Lock()
	inst, ok := ts.tunnels[id]
	if !ok {
		ts.mutex.Unlock()
		return false
	}
	if inst.Status == models.TunnelReconnecting {
		ts.mutex.Unlock()
		logger.Debugf("Tunnel [%s] reconnect skipped, already reconnecting", id)
		return false
	}
	if inst.ReconnectCount >= inst.MaxReconnects {
		inst.Status = models.TunnelError
		inst.PublicURL = ""
		inst.ErrorMessage = fmt.Sprintf("reconnect budget %d exhausted", inst.MaxReconnects)
		ts.mutex.Unlock()
		ts.persist(inst)
		logger.Warnf("Tunnel [%s] reached maximum reconnect count (%d), marking errored",
			id, inst.MaxReconnects)
		ts.bus.Publish(events.Event{Type: events.TunnelError, EntityID: id,
			Detail: inst.ErrorMessage})
		return false
	}
	inst.Status = models.TunnelReconnecting
	if inst.PublicURL == "" {
		// Keep the last known URL visible while the session is rebuilt
		inst.PublicURL = inst.lastURL
	}
	ts.mutex.Unlock()
	ts.persist(inst)
	ts.bus.Publish(events.Event{Type: events.TunnelReconnecting, EntityID: id,
		Detail: fmt.Sprintf("reconnect %d/%d", inst.ReconnectCount+1, inst.MaxReconnects)})

	if err := inst.prov.Teardown(inst.handle); err != nil {
		logger.Warnf("Tunnel [%s] teardown before reconnect failed: %v", id, err)
	}
	time.Sleep(500 * time.Millisecond)

	handle, err := ts.establish(inst.prov, inst.spec)

	ts.mutex.Lock()
	inst.ReconnectCount++
	if err != nil {
		inst.Status = models.TunnelOffline
		inst.lastURL = inst.PublicURL
		inst.PublicURL = ""
		inst.ErrorMessage = err.Error()
		ts.mutex.Unlock()
		ts.persist(inst)
		logger.Errorf("Tunnel [%s] reconnect failed (%d/%d): %v",
			id, inst.ReconnectCount, inst.MaxReconnects, err)
		return false
	}
	inst.handle = handle
	inst.Status = models.TunnelOnline
	inst.PublicURL = handle.PublicURL
	inst.Pid = handle.Pid
	inst.ErrorMessage = ""
	inst.lastURL = ""
	ts.mutex.Unlock()
	ts.persist(inst)
	logger.Infof("Tunnel [%s] reconnected: %s (reconnect: %d/%d)",
		id, handle.PublicURL, inst.ReconnectCount, inst.MaxReconnects)
	ts.bus.Publish(events.Event{Type: events.TunnelReconnected, EntityID: id,
		Detail: handle.PublicURL})
	return true
}

// ListActive returns the tracked tunnels.
func (ts *TunnelSupervisor) ListActive() []*models.Tunnel {
	return ts.snapshot()
}

// GetTunnel returns one tunnel record.
func (ts *TunnelSupervisor) GetTunnel(id string) (*models.Tunnel, error) {
	ts.mutex.Lock()
	defer ts.mutex.Unlock()
	inst, ok := ts.tunnels[id]
	if !ok {
		return nil, fmt.Errorf("tunnel %s: %w", id, ErrTunnelNotFound)
	}
	return ts.detail(inst), nil
}

// Due implements monitor.Source.
func (ts *TunnelSupervisor) Due(now time.Time) []string {
	ts.mutex.Lock()
	defer ts.mutex.Unlock()
	var due []string
	for id, inst := range ts.tunnels {
		switch inst.Status {
		case models.TunnelOnline, models.TunnelOffline:
		default:
			continue
		}
		if now.Sub(inst.LastCheck) >= inst.HealthInterval {
			due = append(due, id)
		}
	}
	return due
}

/**
 * Check implements monitor.Source: probe one tunnel and apply the policy
 * @description
 * - Online with a failed probe moves to offline exactly once per failure
 *   episode (no duplicate offline events while still offline) and then
 *   triggers the bounded reconnect path inline
 */
func (ts *TunnelSupervisor) Check(ctx context.Context, id string) {
	ts.mutex.Lock()
	inst, ok := ts.tunnels[id]
	if !ok {
		ts.mutex.Unlock()
		return
	}
	inst.LastCheck = time.Now()
	status := inst.Status
	ts.mutex.Unlock()

	if status == models.TunnelOnline {
		if err := ts.probe(ctx, inst); err == nil {
			ts.persist(inst)
			return
		} else {
			ts.mutex.Lock()
			inst.Status = models.TunnelOffline
			inst.lastURL = inst.PublicURL
			inst.PublicURL = ""
			inst.ErrorMessage = err.Error()
			ts.mutex.Unlock()
			ts.persist(inst)
			logger.Warnf("Tunnel [%s] went offline: %v", id, err)
			ts.bus.Publish(events.Event{Type: events.TunnelOffline, EntityID: id, Err: err})
		}
	}

	ts.Reconnect(id)
}

func (ts *TunnelSupervisor) persist(inst *tunnelInstance) {
	ts.mutex.Lock()
	rec := inst.Tunnel
	ts.mutex.Unlock()
	if err := ts.store.Put(rec.ID, &rec); err != nil {
		logger.Errorf("Failed to persist tunnel [%s]: %v", rec.ID, err)
	}
}

func (ts *TunnelSupervisor) detail(inst *tunnelInstance) *models.Tunnel {
	rec := inst.Tunnel
	return &rec
}

func (ts *TunnelSupervisor) snapshot() []*models.Tunnel {
	ts.mutex.Lock()
	defer ts.mutex.Unlock()
	var out []*models.Tunnel
	for _, inst := range ts.tunnels {
		rec := inst.Tunnel
		out = append(out, &rec)
	}
	return out
}
