package services

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"

	"upkeeper/internal/config"
	"upkeeper/internal/env"
	"upkeeper/internal/events"
	"upkeeper/internal/models"
	"upkeeper/internal/store"
	"upkeeper/internal/utils"
)

/**
 * Build a config with intervals short enough for tests
 * @returns {*config.AppConfig} Test configuration
 */
func daemonTestConfig() *config.AppConfig {
	return &config.AppConfig{
		Daemon: config.DaemonConfig{
			MaxRestarts:       2,
			HealthInterval:    200 * time.Millisecond,
			VerifyWindow:      300 * time.Millisecond,
			StopTimeout:       2 * time.Second,
			HealthyResetAfter: time.Hour,
		},
		Monitor: config.MonitorConfig{
			Tick:         100 * time.Millisecond,
			ProbeTimeout: 50 * time.Millisecond,
		},
	}
}

// eventRecorder collects bus events for assertions.
type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) record(ev events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *eventRecorder) count(t events.Type) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

func newDaemonSupervisor(t *testing.T, cfg *config.AppConfig) (*ProcessSupervisor, *events.Bus) {
	t.Helper()
	env.UpkeeperDir = t.TempDir()
	bus := events.NewBus()
	ps, err := NewProcessSupervisor(cfg, bus)
	if err != nil {
		t.Fatalf("Failed to create supervisor: %v", err)
	}
	t.Cleanup(func() { ps.Close(2 * time.Second) })
	return ps, bus
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatal(msg)
}

/**
 * Test that a started daemon comes up running and healthy
 * @param {*testing.T} t - Testing framework instance
 */
func TestStartDaemonRunsHealthy(t *testing.T) {
	ps, _ := newDaemonSupervisor(t, daemonTestConfig())

	dmn, err := ps.StartDaemon("sleep 30", "", nil, DaemonPolicy{AutoRestart: true})
	if err != nil {
		t.Fatalf("StartDaemon failed: %v", err)
	}
	if dmn.Status != models.DaemonRunning {
		t.Errorf("Expected running status, got %s", dmn.Status)
	}
	if dmn.Health != models.Healthy {
		t.Errorf("Expected healthy state, got %s", dmn.Health)
	}
	if dmn.Pid <= 0 {
		t.Errorf("Expected a real pid, got %d", dmn.Pid)
	}
	if !utils.IsProcessAlive(dmn.Pid) {
		t.Error("Daemon process should be alive")
	}
}

/**
 * Test that a command dying inside the verification window is rejected
 * @param {*testing.T} t - Testing framework instance
 */
func TestStartDaemonFailsVerification(t *testing.T) {
	ps, _ := newDaemonSupervisor(t, daemonTestConfig())

	_, err := ps.StartDaemon("exit 1", "", nil, DaemonPolicy{})
	if err == nil {
		t.Fatal("StartDaemon should fail for a command that exits immediately")
	}
	if len(ps.ListActive()) != 0 {
		t.Error("A failed start should leave no tracked daemon behind")
	}
}

/**
 * Test the crash detection and automatic restart path
 * @param {*testing.T} t - Testing framework instance
 * @description
 * - Kills the daemon process externally and waits for the monitor loop
 *   to notice, restart it and report a fresh pid
 */
func TestCrashTriggersAutoRestart(t *testing.T) {
	ps, bus := newDaemonSupervisor(t, daemonTestConfig())
	rec := &eventRecorder{}
	bus.Subscribe(events.DaemonCrashed, rec.record)
	bus.Subscribe(events.DaemonRestarted, rec.record)

	dmn, err := ps.StartDaemon("sleep 30", "", nil, DaemonPolicy{AutoRestart: true})
	if err != nil {
		t.Fatalf("StartDaemon failed: %v", err)
	}
	oldPid := dmn.Pid

	if err := syscall.Kill(oldPid, syscall.SIGKILL); err != nil {
		t.Fatalf("Failed to kill daemon process: %v", err)
	}

	waitFor(t, 10*time.Second, func() bool {
		cur, err := ps.GetDaemon(dmn.ID)
		return err == nil && cur.Status == models.DaemonRunning && cur.RestartCount == 1
	}, "Daemon was not restarted after the crash")

	cur, err := ps.GetDaemon(dmn.ID)
	if err != nil {
		t.Fatalf("GetDaemon failed: %v", err)
	}
	if cur.Pid == oldPid {
		t.Error("Restarted daemon should have a new pid")
	}
	if rec.count(events.DaemonCrashed) == 0 {
		t.Error("Expected a daemon_crashed event")
	}
	if rec.count(events.DaemonRestarted) == 0 {
		t.Error("Expected a daemon_restarted event")
	}
}

/**
 * Test that an exhausted restart budget marks the daemon failed
 * @param {*testing.T} t - Testing framework instance
 */
func TestRestartBudgetExhausted(t *testing.T) {
	ps, bus := newDaemonSupervisor(t, daemonTestConfig())
	rec := &eventRecorder{}
	bus.Subscribe(events.DaemonFailed, rec.record)

	dmn, err := ps.StartDaemon("sleep 30", "", nil, DaemonPolicy{MaxRestarts: 1, AutoRestart: true})
	if err != nil {
		t.Fatalf("StartDaemon failed: %v", err)
	}

	// First crash consumes the only restart
	if err := syscall.Kill(dmn.Pid, syscall.SIGKILL); err != nil {
		t.Fatalf("Failed to kill daemon process: %v", err)
	}
	waitFor(t, 10*time.Second, func() bool {
		cur, err := ps.GetDaemon(dmn.ID)
		return err == nil && cur.Status == models.DaemonRunning && cur.RestartCount == 1
	}, "Daemon was not restarted after the first crash")

	// Second crash exceeds the budget
	cur, _ := ps.GetDaemon(dmn.ID)
	if err := syscall.Kill(cur.Pid, syscall.SIGKILL); err != nil {
		t.Fatalf("Failed to kill restarted process: %v", err)
	}
	waitFor(t, 10*time.Second, func() bool {
		cur, err := ps.GetDaemon(dmn.ID)
		return err == nil && cur.Status == models.DaemonFailed
	}, "Daemon should be marked failed once the budget is exhausted")

	if rec.count(events.DaemonFailed) == 0 {
		t.Error("Expected a daemon_failed event")
	}
}

/**
 * Test that failed restart attempts also consume the budget
 * @param {*testing.T} t - Testing framework instance
 * @description
 * - The command survives only its first run; every respawn exits inside
 *   the verification window
 * - The daemon must converge to the failed state after the budgeted number
 *   of attempts rather than respawning indefinitely
 */
func TestFailedRestartConsumesBudget(t *testing.T) {
	ps, bus := newDaemonSupervisor(t, daemonTestConfig())
	rec := &eventRecorder{}
	bus.Subscribe(events.DaemonFailed, rec.record)

	marker := filepath.Join(t.TempDir(), "ran-once")
	command := fmt.Sprintf("test -e %s && exit 1; touch %s; exec sleep 30", marker, marker)
	dmn, err := ps.StartDaemon(command, "", nil, DaemonPolicy{MaxRestarts: 2, AutoRestart: true})
	if err != nil {
		t.Fatalf("StartDaemon failed: %v", err)
	}

	if err := syscall.Kill(dmn.Pid, syscall.SIGKILL); err != nil {
		t.Fatalf("Failed to kill daemon process: %v", err)
	}

	waitFor(t, 20*time.Second, func() bool {
		cur, err := ps.GetDaemon(dmn.ID)
		return err == nil && cur.Status == models.DaemonFailed
	}, "Daemon whose respawns keep dying should converge to failed")

	cur, err := ps.GetDaemon(dmn.ID)
	if err != nil {
		t.Fatalf("GetDaemon failed: %v", err)
	}
	if cur.RestartCount != 2 {
		t.Errorf("Expected the full budget of 2 attempts consumed, got %d", cur.RestartCount)
	}
	if rec.count(events.DaemonFailed) != 1 {
		t.Errorf("Expected exactly one daemon_failed event, got %d", rec.count(events.DaemonFailed))
	}
}

/**
 * Test that a restart in flight is not entered a second time
 * @param {*testing.T} t - Testing framework instance
 */
func TestRestartSkippedWhileRestarting(t *testing.T) {
	ps, bus := newDaemonSupervisor(t, daemonTestConfig())
	rec := &eventRecorder{}
	bus.Subscribe(events.DaemonRestarting, rec.record)

	dmn, err := ps.StartDaemon("sleep 30", "", nil, DaemonPolicy{MaxRestarts: 3})
	if err != nil {
		t.Fatalf("StartDaemon failed: %v", err)
	}

	ps.mutex.Lock()
	ps.daemons[dmn.ID].Status = models.DaemonRestarting
	ps.mutex.Unlock()

	if ps.RestartDaemon(dmn.ID) {
		t.Error("A restart in progress must not be entered twice")
	}
	cur, err := ps.GetDaemon(dmn.ID)
	if err != nil {
		t.Fatalf("GetDaemon failed: %v", err)
	}
	if cur.RestartCount != 0 {
		t.Errorf("A skipped restart must not consume budget, got %d", cur.RestartCount)
	}
	if rec.count(events.DaemonRestarting) != 0 {
		t.Error("A skipped restart must not publish a restarting event")
	}

	ps.mutex.Lock()
	ps.daemons[dmn.ID].Status = models.DaemonRunning
	ps.mutex.Unlock()
}

/**
 * Test that a sustained healthy period refills the restart budget
 * @param {*testing.T} t - Testing framework instance
 */
func TestSustainedHealthRefillsBudget(t *testing.T) {
	cfg := daemonTestConfig()
	cfg.Daemon.HealthyResetAfter = 300 * time.Millisecond
	ps, _ := newDaemonSupervisor(t, cfg)

	dmn, err := ps.StartDaemon("sleep 30", "", nil, DaemonPolicy{AutoRestart: true})
	if err != nil {
		t.Fatalf("StartDaemon failed: %v", err)
	}

	if err := syscall.Kill(dmn.Pid, syscall.SIGKILL); err != nil {
		t.Fatalf("Failed to kill daemon process: %v", err)
	}
	waitFor(t, 10*time.Second, func() bool {
		cur, err := ps.GetDaemon(dmn.ID)
		return err == nil && cur.Status == models.DaemonRunning && cur.RestartCount == 1
	}, "Daemon was not restarted after the crash")

	waitFor(t, 10*time.Second, func() bool {
		cur, err := ps.GetDaemon(dmn.ID)
		return err == nil && cur.RestartCount == 0
	}, "Restart budget should refill after a sustained healthy period")

	cur, _ := ps.GetDaemon(dmn.ID)
	if cur.Status != models.DaemonRunning {
		t.Errorf("Refilled daemon should still be running, got %s", cur.Status)
	}
}

/**
 * Test that a graceful stop terminates the process and removes the record
 * @param {*testing.T} t - Testing framework instance
 */
func TestStopDaemonGraceful(t *testing.T) {
	ps, _ := newDaemonSupervisor(t, daemonTestConfig())

	dmn, err := ps.StartDaemon("sleep 30", "", nil, DaemonPolicy{})
	if err != nil {
		t.Fatalf("StartDaemon failed: %v", err)
	}

	if !ps.StopDaemon(dmn.ID, false) {
		t.Fatal("StopDaemon should succeed for a tracked daemon")
	}
	if utils.IsProcessAlive(dmn.Pid) && !utils.IsProcessZombie(dmn.Pid) {
		t.Errorf("Process %d should be gone after stop", dmn.Pid)
	}
	if _, err := ps.GetDaemon(dmn.ID); err == nil {
		t.Error("Stopped daemon should no longer be tracked")
	}
	if len(ps.ListActive()) != 0 {
		t.Error("No daemons should remain tracked")
	}
}

/**
 * Test that stopping an unknown daemon reports false
 * @param {*testing.T} t - Testing framework instance
 */
func TestStopDaemonUnknown(t *testing.T) {
	ps, _ := newDaemonSupervisor(t, daemonTestConfig())

	if ps.StopDaemon("no-such-id", false) {
		t.Error("StopDaemon should report false for an unknown id")
	}
}

/**
 * Test that stderr error lines degrade the reported health
 * @param {*testing.T} t - Testing framework instance
 */
func TestHealthDegradedByStderr(t *testing.T) {
	ps, _ := newDaemonSupervisor(t, daemonTestConfig())

	command := `for i in 1 2 3 4 5 6 7; do echo "error $i" >&2; done; sleep 30`
	dmn, err := ps.StartDaemon(command, "", nil, DaemonPolicy{})
	if err != nil {
		t.Fatalf("StartDaemon failed: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		health, err := ps.GetHealth(dmn.ID)
		return err == nil && health == models.Degraded
	}, "Expected degraded health from 7 stderr error lines")
}

/**
 * Test state recovery across a supervisor restart
 * @param {*testing.T} t - Testing framework instance
 * @description
 * - Persists one record pointing at a live process and one at a dead pid
 * - A fresh supervisor must re-attach the live one and delete the stale
 *   record from disk
 */
func TestReloadKeepsLiveDropsStale(t *testing.T) {
	env.UpkeeperDir = t.TempDir()
	cfg := daemonTestConfig()

	// A real process to re-attach to, outside supervisor ownership
	cmd := exec.Command("sleep", "30")
	if err := cmd.Start(); err != nil {
		t.Fatalf("Failed to start helper process: %v", err)
	}
	defer func() {
		cmd.Process.Kill()
		cmd.Wait()
	}()

	st, err := store.New[models.Daemon](env.StateDir("daemons"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	live := &models.Daemon{
		ID: "live", Command: "sleep 30", Pid: cmd.Process.Pid,
		Status: models.DaemonRunning, MaxRestarts: 3,
		HealthInterval: time.Hour,
	}
	stale := &models.Daemon{
		ID: "stale", Command: "sleep 30", Pid: 4000000,
		Status: models.DaemonRunning, MaxRestarts: 3,
		HealthInterval: time.Hour,
	}
	if err := st.Put("live", live); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := st.Put("stale", stale); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	bus := events.NewBus()
	ps, err := NewProcessSupervisor(cfg, bus)
	if err != nil {
		t.Fatalf("Failed to create supervisor: %v", err)
	}
	defer ps.loop.Stop(2 * time.Second)

	if _, err := ps.GetDaemon("live"); err != nil {
		t.Error("Live daemon should be re-attached after restart")
	}
	if _, err := ps.GetDaemon("stale"); err == nil {
		t.Error("Stale daemon should be dropped")
	}
	if _, err := st.Get("stale"); err == nil {
		t.Error("Stale state file should be deleted from disk")
	}
}

/**
 * Test that environment overrides reach the spawned process
 * @param {*testing.T} t - Testing framework instance
 */
func TestStartDaemonEnvOverrides(t *testing.T) {
	ps, _ := newDaemonSupervisor(t, daemonTestConfig())

	command := `echo "marker=$UPKEEPER_TEST_MARKER"; sleep 30`
	dmn, err := ps.StartDaemon(command, "", map[string]string{"UPKEEPER_TEST_MARKER": "present"}, DaemonPolicy{})
	if err != nil {
		t.Fatalf("StartDaemon failed: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		logs, err := ps.GetLogs(dmn.ID, 10)
		if err != nil {
			return false
		}
		for _, line := range logs.Stdout {
			if line == "marker=present" {
				return true
			}
		}
		return false
	}, fmt.Sprintf("Environment override did not reach daemon %s", dmn.ID))
}
