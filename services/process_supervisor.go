package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"upkeeper/internal/config"
	"upkeeper/internal/env"
	"upkeeper/internal/events"
	"upkeeper/internal/logger"
	"upkeeper/internal/models"
	"upkeeper/internal/monitor"
	"upkeeper/internal/store"
	"upkeeper/internal/tail"
	"upkeeper/internal/utils"
)

const stderrTailLines = 50

// ErrDaemonNotFound is returned when the given ID maps to no tracked daemon.
var ErrDaemonNotFound = errors.New("daemon not found")

/**
 * DaemonPolicy is the auto-recovery policy supplied per StartDaemon call
 * @property {int} maxRestarts - Restart budget; 0 uses the configured default
 * @property {duration} healthInterval - Per-daemon check interval; 0 uses the default
 * @property {bool} autoRestart - Whether crashes trigger automatic restarts
 */
type DaemonPolicy struct {
	MaxRestarts    int
	HealthInterval time.Duration
	AutoRestart    bool
}

// daemonInstance pairs the persisted record with the live process handle.
// cmd is nil for daemons re-attached after an engine restart; their
// liveness is then polled instead of reaped.
type daemonInstance struct {
	models.Daemon
	cmd    *exec.Cmd
	exited chan struct{}
	exitErr error
}

func (d *daemonInstance) alive() bool {
	if d.cmd != nil {
		select {
		case <-d.exited:
			return false
		default:
			return true
		}
	}
	return utils.IsProcessAlive(d.Pid) && !utils.IsProcessZombie(d.Pid)
}

/**
 * ProcessSupervisor owns daemon lifecycle, health monitoring and recovery
 * @description
 * - One background monitor loop, started at construction, stopped by Close
 * - The entity map is guarded by a single mutex; blocking work (spawn,
 *   signal-and-wait) happens outside the critical section so a slow stop
 *   never blocks the monitor loop's next tick
 * - State persists as one JSON file per daemon; on construction only the
 *   records whose pid is still alive are kept, the rest are deleted
 */
type ProcessSupervisor struct {
	mutex   sync.Mutex
	daemons map[string]*daemonInstance
	store   *store.Store[models.Daemon]
	bus     *events.Bus
	loop    *monitor.Loop
	cfg     config.DaemonConfig
	logDir  string
}

/**
 * NewProcessSupervisor creates the supervisor and starts its monitor loop
 * @param {AppConfig} cfg - Daemon defaults and monitor cadence
 * @param {Bus} bus - Event sink for lifecycle notifications
 * @description
 * - Reloads persisted daemons, keeping only those whose pid survived the
 *   engine restart; stale JSON files are removed from disk
 */
func NewProcessSupervisor(cfg *config.AppConfig, bus *events.Bus) (*ProcessSupervisor, error) {
	st, err := store.New[models.Daemon](env.StateDir("daemons"))
	if err != nil {
		return nil, err
	}
	logDir := env.LogDir("daemons")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create daemon log directory: %w", err)
	}
	ps := &ProcessSupervisor{
		daemons: make(map[string]*daemonInstance),
		store:   st,
		bus:     bus,
		cfg:     cfg.Daemon,
		logDir:  logDir,
	}
	ps.reload()
	ps.loop = monitor.NewLoop("daemons", cfg.Monitor.Tick, cfg.Monitor.ProbeTimeout, ps)
	ps.loop.Start()
	return ps, nil
}

func (ps *ProcessSupervisor) reload() {
	for id, rec := range ps.store.Load() {
		if rec.Status == models.DaemonFailed {
			// Terminal records stay on disk for inspection
			ps.daemons[id] = &daemonInstance{Daemon: *rec}
			continue
		}
		if !utils.IsProcessAlive(rec.Pid) {
			logger.Infof("Daemon [%s] (PID: %d) did not survive restart, dropping state", id, rec.Pid)
			ps.store.Delete(id)
			continue
		}
		inst := &daemonInstance{Daemon: *rec}
		inst.Status = models.DaemonRunning
		ps.daemons[id] = inst
		logger.Infof("Re-attached daemon [%s] (PID: %d)", id, rec.Pid)
	}
}

// Close stops the monitor loop and gracefully stops every tracked daemon.
func (ps *ProcessSupervisor) Close(loopTimeout time.Duration) {
	ps.loop.Stop(loopTimeout)
	for _, d := range ps.snapshot() {
		if d.Status == models.DaemonRunning || d.Status == models.DaemonCrashed {
			ps.StopDaemon(d.ID, false)
		}
	}
}

/**
 * StartDaemon spawns and registers a new supervised daemon
 * @param {string} command - Command line, run via the shell
 * @param {string} workDir - Working directory, empty for inherited
 * @param {map} envOverrides - Environment overrides on top of the parent env
 * @param {DaemonPolicy} policy - Restart budget and check cadence
 * @returns {(*models.Daemon, error)} The registered daemon on success
 * @description
 * - The process starts detached in its own process group with stdout and
 *   stderr redirected to dedicated files
 * - Liveness is confirmed after a fixed verification window; a daemon that
 *   dies inside the window is reported as an error and leaves no entity
 *   behind, only its log files for diagnosis
 */
func (ps *ProcessSupervisor) StartDaemon(command, workDir string, envOverrides map[string]string, policy DaemonPolicy) (*models.Daemon, error) {
	if !utils.GroupSignalingSupported() {
		return nil, fmt.Errorf("daemon supervision is unsupported on this platform")
	}
	if command == "" {
		return nil, fmt.Errorf("command must not be empty")
	}
	if policy.MaxRestarts <= 0 {
		policy.MaxRestarts = ps.cfg.MaxRestarts
	}
	if policy.HealthInterval <= 0 {
		policy.HealthInterval = ps.cfg.HealthInterval
	}

	id := uuid.NewString()
	inst := &daemonInstance{
		Daemon: models.Daemon{
			ID:             id,
			Command:        command,
			WorkDir:        workDir,
			Env:            envOverrides,
			Status:         models.DaemonStarting,
			Health:         models.Unknown,
			AutoRestart:    policy.AutoRestart,
			MaxRestarts:    policy.MaxRestarts,
			HealthInterval: policy.HealthInterval,
			StdoutPath:     filepath.Join(ps.logDir, id+".stdout.log"),
			StderrPath:     filepath.Join(ps.logDir, id+".stderr.log"),
		},
	}

	if err := ps.spawn(inst); err != nil {
		return nil, err
	}
	if err := ps.verify(inst); err != nil {
		return nil, err
	}

	inst.Status = models.DaemonRunning
	inst.Health = models.Healthy
	ps.mutex.Lock()
	ps.daemons[id] = inst
	ps.mutex.Unlock()
	ps.persist(inst)

	logger.Infof("Daemon [%s] started (PID: %d): %s", id, inst.Pid, command)
	ps.bus.Publish(events.Event{Type: events.DaemonStarted, EntityID: id,
		Detail: fmt.Sprintf("pid %d", inst.Pid)})
	return ps.detail(inst), nil
}

// spawn launches the daemon process group and its reaper goroutine.
func (ps *ProcessSupervisor) spawn(inst *daemonInstance) error {
	stdout, err := os.OpenFile(inst.StdoutPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open stdout log: %w", err)
	}
	stderr, err := os.OpenFile(inst.StderrPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		stdout.Close()
		return fmt.Errorf("failed to open stderr log: %w", err)
	}

	cmd := exec.Command("/bin/sh", "-c", inst.Command)
	cmd.Dir = inst.WorkDir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.Env = os.Environ()
	for k, v := range inst.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	utils.SetNewPG(cmd)

	if err := cmd.Start(); err != nil {
		stdout.Close()
		stderr.Close()
		return fmt.Errorf("failed to start daemon: %w", err)
	}
	// Handle fields are read by Check and StopDaemon, so respawns must
	// publish them under the supervisor lock
	ps.mutex.Lock()
	inst.cmd = cmd
	inst.Pid = cmd.Process.Pid
	inst.StartedAt = time.Now()
	inst.exitErr = nil
	inst.exited = make(chan struct{})
	exited := inst.exited
	ps.mutex.Unlock()
	go func() {
		err := cmd.Wait()
		stdout.Close()
		stderr.Close()
		inst.exitErr = err
		close(exited)
	}()
	return nil
}

// verify waits out the verification window and confirms the process is
// still alive afterwards.
func (ps *ProcessSupervisor) verify(inst *daemonInstance) error {
	select {
	case <-inst.exited:
	case <-time.After(ps.cfg.VerifyWindow):
		if inst.alive() {
			return nil
		}
	}
	reason := "exited during verification window"
	if inst.exitErr != nil {
		reason = fmt.Sprintf("exited during verification window: %v", inst.exitErr)
	}
	logger.Errorf("Daemon [%s] %s", inst.ID, reason)
	return fmt.Errorf("daemon did not survive the verification window: %s", reason)
}

/**
 * StopDaemon stops a daemon and removes it from supervision
 * @param {string} id - Daemon id
 * @param {bool} force - Skip the graceful window and kill immediately
 * @returns {bool} True when the daemon is gone afterwards
 * @description
 * - Graceful path terminates the process group, polls liveness for the
 *   configured stop window and only then escalates to a kill signal
 * - Stopping an already-dead daemon is a success
 */
func (ps *ProcessSupervisor) StopDaemon(id string, force bool) bool {
	ps.mutex.Lock()
	inst, ok := ps.daemons[id]
	if !ok {
		ps.mutex.Unlock()
		return false
	}
	inst.Status = models.DaemonStopping
	ps.mutex.Unlock()

	ps.terminate(inst, force)

	ps.mutex.Lock()
	inst.Status = models.DaemonStopped
	delete(ps.daemons, id)
	ps.mutex.Unlock()
	if err := ps.store.Delete(id); err != nil {
		logger.Errorf("Failed to delete state of daemon [%s]: %v", id, err)
	}
	logger.Infof("Daemon [%s] stopped", id)
	ps.bus.Publish(events.Event{Type: events.DaemonStopped, EntityID: id})
	return true
}

func (ps *ProcessSupervisor) terminate(inst *daemonInstance, force bool) {
	if !inst.alive() {
		return
	}
	if force {
		if err := utils.KillGroup(inst.Pid); err != nil {
			logger.Errorf("Failed to kill daemon [%s] group (PID: %d): %v", inst.ID, inst.Pid, err)
		}
		ps.waitGone(inst, 2*time.Second)
		return
	}
	if err := utils.TerminateGroup(inst.Pid); err != nil {
		logger.Warnf("Failed to terminate daemon [%s] group (PID: %d): %v", inst.ID, inst.Pid, err)
	}
	if ps.waitGone(inst, ps.cfg.StopTimeout) {
		return
	}
	logger.Warnf("Daemon [%s] ignored the terminate signal, escalating to kill", inst.ID)
	if err := utils.KillGroup(inst.Pid); err != nil {
		logger.Errorf("Failed to kill daemon [%s] group (PID: %d): %v", inst.ID, inst.Pid, err)
	}
	ps.waitGone(inst, 2*time.Second)
}

func (ps *ProcessSupervisor) waitGone(inst *daemonInstance, timeout time.Duration) bool {
	if inst.cmd != nil {
		select {
		case <-inst.exited:
			return true
		case <-time.After(timeout):
			return !inst.alive()
		}
	}
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !utils.IsProcessAlive(inst.Pid) {
			return true
		}
		time.Sleep(100 * time.Millisecond)
	}
	return !utils.IsProcessAlive(inst.Pid)
}

/**
 * RestartDaemon force-stops and respawns a daemon, consuming restart budget
 * @returns {bool} True when the new process is confirmed running
 * @description
 * - Fails and marks the daemon failed when the budget is exhausted
 * - Every attempt consumes budget whether or not the new process survives
 *   the verification window, so a command that can no longer start still
 *   converges to the failed state instead of respawning forever
 * - A restart already in flight is not entered twice; concurrent callers
 *   report false without consuming budget
 * - The new process reuses the same command, environment and log paths
 */
func (ps *ProcessSupervisor) RestartDaemon(id string) bool {
	ps.mutex.Lock()
	inst, ok := ps.daemons[id]
	if !ok {
		ps.mutex.Unlock()
		return false
	}
	switch inst.Status {
	case models.DaemonRestarting, models.DaemonStopping, models.DaemonStopped:
		ps.mutex.Unlock()
		logger.Debugf("Daemon [%s] restart skipped, currently %s", id, inst.Status)
		return false
	}
	if inst.RestartCount >= inst.MaxRestarts {
		inst.Status = models.DaemonFailed
		ps.mutex.Unlock()
		ps.persist(inst)
		logger.Warnf("Daemon [%s] reached maximum restart count (%d), marking failed",
			id, inst.MaxRestarts)
		ps.bus.Publish(events.Event{Type: events.DaemonFailed, EntityID: id,
			Detail: fmt.Sprintf("restart budget %d exhausted", inst.MaxRestarts)})
		return false
	}
	inst.RestartCount++
	inst.Status = models.DaemonRestarting
	attempt := inst.RestartCount
	ps.mutex.Unlock()
	ps.persist(inst)
	ps.bus.Publish(events.Event{Type: events.DaemonRestarting, EntityID: id,
		Detail: fmt.Sprintf("restart %d/%d", attempt, inst.MaxRestarts)})

	ps.terminate(inst, true)
	time.Sleep(500 * time.Millisecond)

	if err := ps.spawn(inst); err != nil {
		ps.failRestart(inst, err)
		return false
	}
	if err := ps.verify(inst); err != nil {
		ps.failRestart(inst, err)
		return false
	}

	ps.mutex.Lock()
	inst.Status = models.DaemonRunning
	inst.Health = models.Healthy
	inst.LastRecovery = time.Now()
	ps.mutex.Unlock()
	ps.persist(inst)
	logger.Infof("Daemon [%s] restarted (PID: %d, restart: %d/%d)",
		id, inst.Pid, attempt, inst.MaxRestarts)
	ps.bus.Publish(events.Event{Type: events.DaemonRestarted, EntityID: id,
		Detail: fmt.Sprintf("pid %d", inst.Pid)})
	return true
}

func (ps *ProcessSupervisor) failRestart(inst *daemonInstance, err error) {
	ps.mutex.Lock()
	inst.Status = models.DaemonCrashed
	inst.LastExitReason = err.Error()
	ps.mutex.Unlock()
	ps.persist(inst)
	logger.Errorf("Daemon [%s] restart failed: %v", inst.ID, err)
}

/**
 * GetHealth recomputes a daemon's health from liveness, resource usage and
 * the stderr tail
 * @returns {HealthState} The worst finding across all checks
 * @description
 * - Dead or zombie process: critical
 * - Memory above 95%: critical; memory above 80% or CPU above 95%: degraded
 * - Error-keyword lines in the last 50 stderr lines: >10 critical,
 *   >5 degraded, >0 unhealthy
 */
func (ps *ProcessSupervisor) GetHealth(id string) (models.HealthState, error) {
	ps.mutex.Lock()
	inst, ok := ps.daemons[id]
	ps.mutex.Unlock()
	if !ok {
		return models.Unknown, fmt.Errorf("daemon %s: %w", id, ErrDaemonNotFound)
	}
	return ps.computeHealth(inst), nil
}

func (ps *ProcessSupervisor) computeHealth(inst *daemonInstance) models.HealthState {
	if !inst.alive() {
		return models.Critical
	}
	health := models.Healthy

	memPct, cpuPct, err := utils.ProcessUsage(inst.Pid)
	if err != nil {
		logger.Debugf("Daemon [%s] usage probe failed: %v", inst.ID, err)
	} else {
		if memPct > 95 {
			health = models.WorstHealth(health, models.Critical)
		} else if memPct > 80 || cpuPct > 95 {
			health = models.WorstHealth(health, models.Degraded)
		}
	}

	lines, err := tail.Lines(inst.StderrPath, stderrTailLines)
	if err != nil {
		logger.Debugf("Daemon [%s] stderr tail failed: %v", inst.ID, err)
		return health
	}
	switch n := tail.CountErrorLines(lines); {
	case n > 10:
		health = models.WorstHealth(health, models.Critical)
	case n > 5:
		health = models.WorstHealth(health, models.Degraded)
	case n > 0:
		health = models.WorstHealth(health, models.Unhealthy)
	}
	return health
}

// ListActive returns the tracked daemons.
func (ps *ProcessSupervisor) ListActive() []*models.Daemon {
	return ps.snapshot()
}

// GetDaemon returns one daemon record.
func (ps *ProcessSupervisor) GetDaemon(id string) (*models.Daemon, error) {
	ps.mutex.Lock()
	defer ps.mutex.Unlock()
	inst, ok := ps.daemons[id]
	if !ok {
		return nil, fmt.Errorf("daemon %s: %w", id, ErrDaemonNotFound)
	}
	return ps.detail(inst), nil
}

// GetLogs returns the last n lines of the daemon's stdout and stderr.
func (ps *ProcessSupervisor) GetLogs(id string, n int) (*models.DaemonLogs, error) {
	ps.mutex.Lock()
	inst, ok := ps.daemons[id]
	ps.mutex.Unlock()
	if !ok {
		return nil, fmt.Errorf("daemon %s: %w", id, ErrDaemonNotFound)
	}
	stdout, err := tail.Lines(inst.StdoutPath, n)
	if err != nil {
		return nil, fmt.Errorf("failed to read stdout log: %w", err)
	}
	stderr, err := tail.Lines(inst.StderrPath, n)
	if err != nil {
		return nil, fmt.Errorf("failed to read stderr log: %w", err)
	}
	return &models.DaemonLogs{ID: id, Stdout: stdout, Stderr: stderr}, nil
}

// Due implements monitor.Source.
func (ps *ProcessSupervisor) Due(now time.Time) []string {
	ps.mutex.Lock()
	defer ps.mutex.Unlock()
	var due []string
	for id, inst := range ps.daemons {
		switch inst.Status {
		case models.DaemonRunning, models.DaemonCrashed:
		default:
			continue
		}
		if now.Sub(inst.LastHealthCheck) >= inst.HealthInterval {
			due = append(due, id)
		}
	}
	return due
}

/**
 * Check implements monitor.Source: probe one daemon and apply the policy
 * @description
 * - Liveness lost while running moves the daemon to crashed and, with
 *   auto-restart enabled, triggers the bounded recovery path inline
 * - A sustained healthy period refills the restart budget, so one crash
 *   long ago does not permanently shrink a daemon's headroom
 */
func (ps *ProcessSupervisor) Check(ctx context.Context, id string) {
	ps.mutex.Lock()
	inst, ok := ps.daemons[id]
	if !ok {
		ps.mutex.Unlock()
		return
	}
	inst.LastHealthCheck = time.Now()
	status := inst.Status
	ps.mutex.Unlock()

	if status == models.DaemonRunning && !inst.alive() {
		ps.mutex.Lock()
		inst.Status = models.DaemonCrashed
		inst.Health = models.Critical
		if inst.exitErr != nil {
			inst.LastExitReason = inst.exitErr.Error()
		} else {
			inst.LastExitReason = "process disappeared"
		}
		ps.mutex.Unlock()
		ps.persist(inst)
		logger.Warnf("Daemon [%s] (PID: %d) crashed: %s", id, inst.Pid, inst.LastExitReason)
		ps.bus.Publish(events.Event{Type: events.DaemonCrashed, EntityID: id,
			Detail: inst.LastExitReason})
		status = models.DaemonCrashed
	}

	if status == models.DaemonCrashed {
		if inst.AutoRestart {
			ps.RestartDaemon(id)
		}
		return
	}

	health := ps.computeHealth(inst)
	ps.mutex.Lock()
	changed := inst.Health != health
	inst.Health = health
	reset := false
	if health == models.Healthy && inst.RestartCount > 0 &&
		!inst.LastRecovery.IsZero() &&
		time.Since(inst.LastRecovery) >= ps.cfg.HealthyResetAfter {
		inst.RestartCount = 0
		reset = true
	}
	ps.mutex.Unlock()
	ps.persist(inst)
	if reset {
		logger.Infof("Daemon [%s] healthy for %v, restart budget refilled", id, ps.cfg.HealthyResetAfter)
	}
	if changed {
		ps.bus.Publish(events.Event{Type: events.DaemonHealthChanged, EntityID: id,
			Detail: string(health)})
	}
}

func (ps *ProcessSupervisor) persist(inst *daemonInstance) {
	ps.mutex.Lock()
	rec := inst.Daemon
	ps.mutex.Unlock()
	if err := ps.store.Put(rec.ID, &rec); err != nil {
		logger.Errorf("Failed to persist daemon [%s]: %v", rec.ID, err)
	}
}

func (ps *ProcessSupervisor) detail(inst *daemonInstance) *models.Daemon {
	rec := inst.Daemon
	return &rec
}

func (ps *ProcessSupervisor) snapshot() []*models.Daemon {
	ps.mutex.Lock()
	defer ps.mutex.Unlock()
	var out []*models.Daemon
	for _, inst := range ps.daemons {
		rec := inst.Daemon
		out = append(out, &rec)
	}
	return out
}
