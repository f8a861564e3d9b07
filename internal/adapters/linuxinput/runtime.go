//go:build linux

package linuxinput

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"touchpadhold/internal/core/holddetect"
)

type RuntimeConfig struct {
	Hold holddetect.Config
	// Clock drives the lift-detection timer; nil selects the system clock.
	Clock holddetect.Clock
}

// Runtime feeds one touchpad source into a hold-detection driver.
type Runtime struct {
	source   Source
	injector holddetect.Injector
	driver   *holddetect.Driver
	logger   holddetect.Logger

	samples chan holddetect.Sample

	started   atomic.Bool
	stopCh    chan struct{}
	stopOnce  sync.Once
	readersWG sync.WaitGroup
	done      chan struct{}
}

func NewRuntime(source Source, injector holddetect.Injector, cfg RuntimeConfig, logger holddetect.Logger) (*Runtime, error) {
	if source == nil {
		return nil, fmt.Errorf("touchpad source is nil")
	}
	if injector == nil {
		return nil, fmt.Errorf("injector is nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	driver, err := holddetect.NewDriver(cfg.Hold, injector, cfg.Clock, logger)
	if err != nil {
		return nil, err
	}

	return &Runtime{
		source:   source,
		injector: injector,
		driver:   driver,
		logger:   logger,
		samples:  make(chan holddetect.Sample, 64),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

func (r *Runtime) Start() error {
	if !r.started.CompareAndSwap(false, true) {
		return fmt.Errorf("linux runtime is already started")
	}

	go func() {
		defer close(r.done)
		if err := r.driver.Run(context.Background(), r.samples); err != nil {
			r.logger.Error("Hold detection stopped", "err", err)
		}
	}()

	r.readersWG.Add(1)
	go func() {
		defer r.readersWG.Done()
		if err := r.source.ReadSamples(r.stopCh, r.samples); err != nil {
			r.logger.Error("Touchpad source failed", "path", r.source.Path(), "err", err)
		}
	}()

	// The driver exits once the samples channel is closed.
	go func() {
		r.readersWG.Wait()
		close(r.samples)
	}()
	return nil
}

// Stop closes the source, waits for the driver to release any held button
// and closes the injector.
func (r *Runtime) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
		_ = r.source.Close()
		if r.started.Load() {
			<-r.done
		}
		if err := r.injector.Close(); err != nil {
			r.logger.Warn("Failed to close injector", "err", err)
		}
	})
}

// Done is closed when the driver has exited, either after Stop or because the
// source failed.
func (r *Runtime) Done() <-chan struct{} {
	return r.done
}
