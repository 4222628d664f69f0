//go:build !deadlock

// Package syncx re-exports the mutex types internal/concore locks its
// registry and per-container state with, swapped at build-tag time
// between plain sync and a deadlock-detecting implementation. Grounded
// verbatim on the teacher's scon/syncx/mutex_deadlock.go pattern.
package syncx

import "sync"

type Mutex = sync.Mutex
type RWMutex = sync.RWMutex
