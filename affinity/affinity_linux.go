//go:build linux
// +build linux

// File: affinity/affinity_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux thread affinity and identity via golang.org/x/sys/unix. No cgo
// dependency.

package affinity

import "golang.org/x/sys/unix"

func setAffinityPlatform(cpuID int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpuID)
	return unix.SchedSetaffinity(0, &set)
}

func currentThreadIDPlatform() uint64 {
	return uint64(unix.Gettid())
}
