//go:build linux

// File: affinity/affinity_linux.go
// Author: momentics <momentics@gmail.com>

package affinity

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// setAffinityPlatform restricts the current thread (tid 0) to cpuID and
// returns a func that reinstates the previous set.
func setAffinityPlatform(cpuID int) (func(), error) {
	var prev unix.CPUSet
	if err := unix.SchedGetaffinity(0, &prev); err != nil {
		return nil, fmt.Errorf("affinity: sched_getaffinity: %w", err)
	}
	var set unix.CPUSet
	set.Zero()
	set.Set(cpuID)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return nil, fmt.Errorf("affinity: sched_setaffinity cpu %d: %w", cpuID, err)
	}
	return func() { _ = unix.SchedSetaffinity(0, &prev) }, nil
}

// Current returns the CPUs the calling thread may run on.
func Current() ([]int, error) {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return nil, fmt.Errorf("affinity: sched_getaffinity: %w", err)
	}
	var cpus []int
	for i := 0; i < len(set)*64 && len(cpus) < set.Count(); i++ {
		if set.IsSet(i) {
			cpus = append(cpus, i)
		}
	}
	return cpus, nil
}
