//go:build !windows

package wininput

import (
	"fmt"

	"touchpadhold/internal/core/holddetect"
)

type Runtime struct{}

func NewRuntime(cfg RuntimeConfig, logger holddetect.Logger) (*Runtime, error) {
	return nil, fmt.Errorf("windows input runtime is only available on Windows")
}

func (r *Runtime) Start() error {
	return fmt.Errorf("windows input runtime is only available on Windows")
}

func (r *Runtime) Stop() {}

func (r *Runtime) Done() <-chan struct{} {
	return nil
}

func ListInputDevices() ([]DeviceInfo, error) {
	return nil, fmt.Errorf("windows input runtime is only available on Windows")
}
