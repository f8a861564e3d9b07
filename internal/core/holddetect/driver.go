package holddetect

import (
	"context"
	"fmt"
	"time"
)

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type Clock interface {
	Now() time.Time
	NewTicker(period time.Duration) Ticker
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) NewTicker(period time.Duration) Ticker {
	return &systemTicker{t: time.NewTicker(period)}
}

type systemTicker struct {
	t *time.Ticker
}

func (s *systemTicker) C() <-chan time.Time {
	return s.t.C
}

func (s *systemTicker) Stop() {
	s.t.Stop()
}

func SystemClock() Clock {
	return systemClock{}
}

// loopTimer is the Timer handed to a Machine run by a Driver. It is only
// touched from the driver goroutine, so Disarm is synchronous by construction.
type loopTimer struct {
	clock  Clock
	ticker Ticker
}

func (t *loopTimer) Arm(period time.Duration) error {
	if period <= 0 {
		return fmt.Errorf("timer period must be > 0, got %v", period)
	}
	t.Disarm()
	t.ticker = t.clock.NewTicker(period)
	return nil
}

func (t *loopTimer) Disarm() {
	if t.ticker == nil {
		return
	}
	t.ticker.Stop()
	t.ticker = nil
}

func (t *loopTimer) c() <-chan time.Time {
	if t.ticker == nil {
		return nil
	}
	return t.ticker.C()
}

// Driver serializes samples and timer ticks onto a single goroutine for
// backends whose input arrives on reader goroutines.
type Driver struct {
	machine *Machine
	timer   *loopTimer
	clock   Clock
	logger  Logger
}

func NewDriver(cfg Config, injector Injector, clock Clock, logger Logger) (*Driver, error) {
	if clock == nil {
		clock = SystemClock()
	}
	timer := &loopTimer{clock: clock}
	machine, err := NewMachine(cfg, injector, timer, logger)
	if err != nil {
		return nil, err
	}
	return &Driver{
		machine: machine,
		timer:   timer,
		clock:   clock,
		logger:  logger,
	}, nil
}

func (d *Driver) Machine() *Machine {
	return d.machine
}

// Run consumes samples until ctx is done or samples is closed. Sample.Time is
// used as the arrival instant when set, otherwise the clock is read. Any
// active press is released before Run returns.
func (d *Driver) Run(ctx context.Context, samples <-chan Sample) error {
	defer func() {
		if err := d.machine.Reset(); err != nil {
			d.logger.Warn("Release on shutdown failed", "err", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case sample, ok := <-samples:
			if !ok {
				return nil
			}
			now := sample.Time
			if now.IsZero() {
				now = d.clock.Now()
				sample.Time = now
			}
			if err := d.machine.OnSample(sample, now); err != nil {
				d.logger.Warn("Sample handling failed", "err", err)
			}
		case <-d.timer.c():
			if err := d.machine.OnTimerTick(d.clock.Now()); err != nil {
				d.logger.Warn("Timer tick handling failed", "err", err)
			}
		}
	}
}
