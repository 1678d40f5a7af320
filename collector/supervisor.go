package collector

import "github.com/shirou/gopsutil/process"

// supervisorAlive reports whether the supervising process still exists.
// Errors from the platform probe are treated as "alive": a transient
// failure to inspect the process table must not kill the collector.
func supervisorAlive(pid int32) bool {
	exists, err := process.PidExists(pid)
	if err != nil {
		return true
	}
	return exists
}
