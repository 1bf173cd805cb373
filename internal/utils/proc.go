package utils

import (
	"github.com/shirou/gopsutil/v3/process"
)

/**
 * IsProcessAlive reports whether a process with the given pid exists
 * @description
 * - Zombies count as alive here; zombie detection is a health concern and
 *   handled separately via IsProcessZombie
 */
func IsProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	ok, err := process.PidExists(int32(pid))
	return err == nil && ok
}

// IsProcessZombie reports whether the process exists but is a zombie.
func IsProcessZombie(pid int) bool {
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return false
	}
	statuses, err := proc.Status()
	if err != nil {
		return false
	}
	for _, s := range statuses {
		if s == process.Zombie {
			return true
		}
	}
	return false
}

/**
 * ProcessUsage returns memory and CPU usage percentages for a pid
 * @returns {(float64, float64, error)} memory percent, cpu percent, error
 */
func ProcessUsage(pid int) (float64, float64, error) {
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return 0, 0, err
	}
	memPct, err := proc.MemoryPercent()
	if err != nil {
		return 0, 0, err
	}
	cpuPct, err := proc.CPUPercent()
	if err != nil {
		return float64(memPct), 0, err
	}
	return float64(memPct), cpuPct, nil
}
