//go:build linux

// Package fsio holds small OS-level file helpers.
package fsio

import (
	"os"

	"golang.org/x/sys/unix"
)

// AdviseSequential tells the kernel that f will be read front to back so it
// can read ahead aggressively. Errors are ignored; the hint is optional.
func AdviseSequential(f *os.File) {
	if f == nil {
		return
	}
	_ = unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_SEQUENTIAL)
	_ = unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_WILLNEED)
}
