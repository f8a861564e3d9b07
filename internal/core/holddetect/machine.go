// Package holddetect turns a stream of touchpad position samples into
// synthetic press-and-hold button events.
//
// A Machine is fed from exactly one goroutine (or OS thread). Samples arrive
// through OnSample and lift detection runs from OnTimerTick; neither blocks.
package holddetect

import (
	"fmt"
	"time"
)

type State int

const (
	StateIdle State = iota
	StateMoving
	StateHeld
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateMoving:
		return "moving"
	case StateHeld:
		return "held"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type session struct {
	current  Sample
	previous Sample

	pressed bool
	moving  bool

	lastInputAt         time.Time
	lastContactStartAt  time.Time
	lastTimerSnapshotAt time.Time
}

func newSession() session {
	unset := Sample{X: unsetCoordinate, Y: unsetCoordinate}
	return session{current: unset, previous: unset}
}

type Machine struct {
	cfg      Config
	injector Injector
	timer    Timer
	logger   Logger

	s session
}

func NewMachine(cfg Config, injector Injector, timer Timer, logger Logger) (*Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if injector == nil {
		return nil, fmt.Errorf("injector is nil")
	}
	if timer == nil {
		return nil, fmt.Errorf("timer is nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	return &Machine{
		cfg:      cfg,
		injector: injector,
		timer:    timer,
		logger:   logger,
		s:        newSession(),
	}, nil
}

func (m *Machine) Config() Config {
	return m.cfg
}

// OnSample records a decoded position that arrived at now and promotes a
// stationary contact to a press once it has dwelled past HoldThreshold.
func (m *Machine) OnSample(sample Sample, now time.Time) error {
	s := &m.s

	changed := sample.X != s.current.X || sample.Y != s.current.Y
	s.previous = s.current
	s.current = sample

	newContact := now.Sub(s.lastInputAt) > m.cfg.GapThreshold
	s.lastInputAt = now

	if newContact {
		s.moving = false
		s.lastContactStartAt = now
		m.logger.Debug("New contact", "x", sample.X, "y", sample.Y)
	} else if changed {
		s.lastContactStartAt = now
		if !s.moving {
			m.logger.Debug("Contact moving", "x", sample.X, "y", sample.Y)
		}
		s.moving = true
		return nil
	}

	if s.pressed || s.moving || now.Sub(s.lastContactStartAt) <= m.cfg.HoldThreshold {
		return nil
	}
	return m.press(now)
}

// OnTimerTick releases the press when no sample arrived since the previous
// tick. Ticks while nothing is pressed are ignored.
func (m *Machine) OnTimerTick(now time.Time) error {
	s := &m.s
	if !s.pressed {
		return nil
	}

	if s.lastInputAt.Equal(s.lastTimerSnapshotAt) {
		m.logger.Debug("Input went quiet", "idle", now.Sub(s.lastInputAt))
		return m.release()
	}
	s.lastTimerSnapshotAt = s.lastInputAt
	return nil
}

// Reset releases any active press and discards the session.
func (m *Machine) Reset() error {
	var err error
	if m.s.pressed {
		err = m.release()
	}
	m.s = newSession()
	return err
}

func (m *Machine) State() State {
	switch {
	case m.s.pressed:
		return StateHeld
	case m.s.moving:
		return StateMoving
	default:
		return StateIdle
	}
}

func (m *Machine) Pressed() bool {
	return m.s.pressed
}

func (m *Machine) Moving() bool {
	return m.s.moving
}

// Current returns the latest and the preceding sample.
func (m *Machine) Current() (Sample, Sample) {
	return m.s.current, m.s.previous
}

func (m *Machine) press(now time.Time) error {
	s := &m.s
	if err := m.injector.WriteEvents(pressEvents(m.cfg.Button)...); err != nil {
		return fmt.Errorf("inject %s press: %w", FormatButtonName(m.cfg.Button), err)
	}
	s.pressed = true
	m.timer.Disarm()
	s.lastTimerSnapshotAt = now
	if err := m.timer.Arm(m.cfg.TickPeriod); err != nil {
		// Without a timer the release would never come.
		releaseErr := m.release()
		if releaseErr != nil {
			return fmt.Errorf("arm lift timer: %w (release: %v)", err, releaseErr)
		}
		return fmt.Errorf("arm lift timer: %w", err)
	}
	m.logger.Info("Hold detected, button pressed",
		"button", FormatButtonName(m.cfg.Button),
		"x", s.current.X,
		"y", s.current.Y,
		"dwell", now.Sub(s.lastContactStartAt),
	)
	return nil
}

func (m *Machine) release() error {
	s := &m.s
	s.pressed = false
	m.timer.Disarm()
	if err := m.injector.WriteEvents(releaseEvents(m.cfg.Button)...); err != nil {
		return fmt.Errorf("inject %s release: %w", FormatButtonName(m.cfg.Button), err)
	}
	m.logger.Info("Contact lifted, button released", "button", FormatButtonName(m.cfg.Button))
	return nil
}
