package models

import "time"

type DaemonStatus string

const (
	// Process spawned, liveness not yet confirmed
	DaemonStarting DaemonStatus = "starting"
	// Liveness confirmed, exactly one OS process is associated
	DaemonRunning DaemonStatus = "running"
	// Graceful stop in progress
	DaemonStopping DaemonStatus = "stopping"
	// Stopped by the caller, can be restarted manually
	DaemonStopped DaemonStatus = "stopped"
	// Liveness lost outside of a caller-initiated stop
	DaemonCrashed DaemonStatus = "crashed"
	// Automatic recovery in progress
	DaemonRestarting DaemonStatus = "restarting"
	// Restart budget exhausted; terminal, record kept for inspection
	DaemonFailed DaemonStatus = "failed"
)

type HealthState string

const (
	Healthy   HealthState = "healthy"
	Degraded  HealthState = "degraded"
	Unhealthy HealthState = "unhealthy"
	Critical  HealthState = "critical"
	Unknown   HealthState = "unknown"
)

// healthRank orders health states worst-last so worst-of aggregation is a max.
var healthRank = map[HealthState]int{
	Unknown:   0,
	Healthy:   1,
	Degraded:  2,
	Unhealthy: 3,
	Critical:  4,
}

// WorstHealth returns the worse of two health states.
func WorstHealth(a, b HealthState) HealthState {
	if healthRank[b] > healthRank[a] {
		return b
	}
	return a
}

/**
 * Daemon describes one supervised long-running process
 * @property {string} id - Immutable unique identifier
 * @property {string} command - Shell command line used to spawn the process
 * @property {string} workDir - Working directory
 * @property {map} env - Environment overrides applied on top of the parent env
 * @property {int} pid - OS process id of the leader of the process group
 * @property {int} restartCount - Restarts consumed from the budget
 * @property {int} maxRestarts - Restart budget before status becomes failed
 */
type Daemon struct {
	ID              string            `json:"id"`
	Command         string            `json:"command"`
	WorkDir         string            `json:"workDir"`
	Env             map[string]string `json:"env,omitempty"`
	Pid             int               `json:"pid"`
	Status          DaemonStatus      `json:"status"`
	Health          HealthState       `json:"health"`
	AutoRestart     bool              `json:"autoRestart"`
	RestartCount    int               `json:"restartCount"`
	MaxRestarts     int               `json:"maxRestarts"`
	HealthInterval  time.Duration     `json:"healthInterval"`
	StartedAt       time.Time         `json:"startedAt"`
	LastHealthCheck time.Time         `json:"lastHealthCheck"`
	LastRecovery    time.Time         `json:"lastRecovery,omitempty"`
	StdoutPath      string            `json:"stdoutPath"`
	StderrPath      string            `json:"stderrPath"`
	LastExitReason  string            `json:"lastExitReason,omitempty"`
}
