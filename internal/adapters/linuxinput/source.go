//go:build linux

package linuxinput

import (
	"fmt"
	"time"

	evdev "github.com/holoplot/go-evdev"

	"touchpadhold/internal/core/holddetect"
)

// Source reads touchpad samples from a device. ReadSamples blocks until stop
// is closed or the device fails.
type Source interface {
	Path() string
	ReadSamples(stop <-chan struct{}, out chan<- holddetect.Sample) error
	Close() error
}

// EvdevSource assembles samples from an evdev touchpad node.
type EvdevSource struct {
	dev    *evdev.InputDevice
	logger holddetect.Logger
}

func NewEvdevSource(dev *evdev.InputDevice, logger holddetect.Logger) (*EvdevSource, error) {
	if dev == nil {
		return nil, fmt.Errorf("input device is nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}
	if err := dev.NonBlock(); err != nil {
		return nil, fmt.Errorf("failed to set nonblocking mode for %s: %w", dev.Path(), err)
	}
	return &EvdevSource{dev: dev, logger: logger}, nil
}

func (s *EvdevSource) Path() string {
	return s.dev.Path()
}

func (s *EvdevSource) Close() error {
	return s.dev.Close()
}

func (s *EvdevSource) ReadSamples(stop <-chan struct{}, out chan<- holddetect.Sample) error {
	var frames FrameAssembler
	path := s.dev.Path()
	for {
		events, err := s.dev.ReadSlice(64)
		if err != nil {
			if stopped(stop) {
				return nil
			}
			if isDeviceClosedError(err) {
				return fmt.Errorf("%s: %w", path, err)
			}
			if isWouldBlockError(err) {
				if !sleepWithStop(stop, 5*time.Millisecond) {
					return nil
				}
				continue
			}
			s.logger.Warn("Read failed", "path", path, "err", err)
			if !sleepWithStop(stop, 100*time.Millisecond) {
				return nil
			}
			continue
		}

		for _, event := range events {
			sample, ok := frames.Feed(event)
			if !ok {
				continue
			}
			select {
			case out <- sample:
			case <-stop:
				return nil
			}
		}
	}
}

func stopped(stop <-chan struct{}) bool {
	select {
	case <-stop:
		return true
	default:
		return false
	}
}

func sleepWithStop(stop <-chan struct{}, duration time.Duration) bool {
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-stop:
		return false
	case <-timer.C:
		return true
	}
}
