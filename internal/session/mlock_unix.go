//go:build !windows

package session

import (
	"golang.org/x/sys/unix"
)

// mlock pins the pages holding data so they are never swapped.
// Returns false when the platform refuses (RLIMIT_MEMLOCK, containers).
func mlock(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	return unix.Mlock(data) == nil
}

// munlock releases pages pinned by mlock.
func munlock(data []byte) {
	if len(data) == 0 {
		return
	}
	_ = unix.Munlock(data)
}
