//go:build !tinygo

package core

import "sync"

// InterruptState is a placeholder for interrupt state on regular Go
type InterruptState uintptr

// On regular Go the "interrupt" side is a goroutine, so critical sections
// are a mutex. Not reentrant.
var interruptMu sync.Mutex

// DisableInterrupts enters a critical section
func DisableInterrupts() InterruptState {
	interruptMu.Lock()
	return 0
}

// RestoreInterrupts leaves a critical section
func RestoreInterrupts(state InterruptState) {
	interruptMu.Unlock()
}
