//go:build !linux

// Package fsio holds small OS-level file helpers.
package fsio

import "os"

// AdviseSequential is a no-op where posix_fadvise is unavailable.
func AdviseSequential(f *os.File) {}
