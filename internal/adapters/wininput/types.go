package wininput

import "touchpadhold/internal/core/holddetect"

// DefaultTimerID identifies the lift-detection timer on the runtime window.
const DefaultTimerID uintptr = 1337

type RuntimeConfig struct {
	Hold holddetect.Config
	// TimerID is the SetTimer identifier; zero selects DefaultTimerID.
	TimerID uintptr
}

type DeviceInfo struct {
	Path      string
	Name      string
	IsVirtual bool
	IsPointer bool
}
