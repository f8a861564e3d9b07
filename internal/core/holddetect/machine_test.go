package holddetect

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type recordingInjector struct {
	mu     sync.Mutex
	events []Event
	closed bool
	err    error
}

func (r *recordingInjector) WriteEvents(events ...Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, events...)
	return nil
}

func (r *recordingInjector) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *recordingInjector) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// presses counts key-down and key-up events for the configured button.
func (r *recordingInjector) presses() (down, up int) {
	for _, event := range r.snapshot() {
		if event.Type != EventTypeKey {
			continue
		}
		switch event.Value {
		case 1:
			down++
		case 0:
			up++
		}
	}
	return down, up
}

type recordingTimer struct {
	armed   bool
	period  time.Duration
	arms    int
	disarms int
	err     error
}

func (r *recordingTimer) Arm(period time.Duration) error {
	if r.err != nil {
		return r.err
	}
	r.armed = true
	r.period = period
	r.arms++
	return nil
}

func (r *recordingTimer) Disarm() {
	r.armed = false
	r.disarms++
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

var epoch = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func at(ms int) time.Time {
	return epoch.Add(time.Duration(ms) * time.Millisecond)
}

type harness struct {
	t        *testing.T
	machine  *Machine
	injector *recordingInjector
	timer    *recordingTimer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	injector := &recordingInjector{}
	timer := &recordingTimer{}
	machine, err := NewMachine(DefaultConfig(), injector, timer, noopLogger{})
	if err != nil {
		t.Fatalf("NewMachine() error = %v", err)
	}
	return &harness{t: t, machine: machine, injector: injector, timer: timer}
}

func (h *harness) sample(ms, x, y int) {
	h.t.Helper()
	now := at(ms)
	if err := h.machine.OnSample(Sample{X: x, Y: y, Time: now}, now); err != nil {
		h.t.Fatalf("OnSample(t=%dms) error = %v", ms, err)
	}
}

func (h *harness) tick(ms int) {
	h.t.Helper()
	if err := h.machine.OnTimerTick(at(ms)); err != nil {
		h.t.Fatalf("OnTimerTick(t=%dms) error = %v", ms, err)
	}
}

func (h *harness) assertPresses(wantDown, wantUp int) {
	h.t.Helper()
	down, up := h.injector.presses()
	if down != wantDown || up != wantUp {
		h.t.Fatalf("presses = down %d up %d, want down %d up %d", down, up, wantDown, wantUp)
	}
}

func TestNewMachineStartsIdleWithUnsetCoordinates(t *testing.T) {
	h := newHarness(t)
	if got := h.machine.State(); got != StateIdle {
		t.Fatalf("State() = %v, want idle", got)
	}
	current, previous := h.machine.Current()
	if current.X != -1 || current.Y != -1 || previous.X != -1 || previous.Y != -1 {
		t.Fatalf("expected unset sentinel coordinates, got current=%+v previous=%+v", current, previous)
	}
}

func TestNewMachineRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HoldThreshold = 0
	if _, err := NewMachine(cfg, &recordingInjector{}, &recordingTimer{}, noopLogger{}); err == nil {
		t.Fatalf("expected error for zero hold threshold")
	}
	if _, err := NewMachine(DefaultConfig(), nil, &recordingTimer{}, noopLogger{}); err == nil {
		t.Fatalf("expected error for nil injector")
	}
}

func TestStationaryContactPressesOnceAfterHoldThreshold(t *testing.T) {
	h := newHarness(t)

	for ms := 0; ms <= 150; ms += 30 {
		h.sample(ms, 10, 10)
		h.assertPresses(0, 0)
	}

	h.sample(160, 10, 10)
	h.assertPresses(1, 0)
	if !h.machine.Pressed() || h.machine.State() != StateHeld {
		t.Fatalf("expected held state after dwell, got %v", h.machine.State())
	}
	if !h.timer.armed || h.timer.period != DefaultTickPeriod {
		t.Fatalf("expected timer armed with %v, got armed=%v period=%v", DefaultTickPeriod, h.timer.armed, h.timer.period)
	}

	for ms := 190; ms <= 400; ms += 30 {
		h.sample(ms, 10, 10)
	}
	h.assertPresses(1, 0)
	if h.timer.arms != 1 {
		t.Fatalf("timer armed %d times, want 1", h.timer.arms)
	}
}

func TestPressRequiresDwellStrictlyGreaterThanThreshold(t *testing.T) {
	h := newHarness(t)
	for _, ms := range []int{0, 50, 100, 150} {
		h.sample(ms, 5, 5)
	}
	h.assertPresses(0, 0)

	h.sample(151, 5, 5)
	h.assertPresses(1, 0)
}

func TestPressEmitsButtonDownThenSync(t *testing.T) {
	h := newHarness(t)
	for ms := 0; ms <= 180; ms += 30 {
		h.sample(ms, 1, 1)
	}

	events := h.injector.snapshot()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d: %#v", len(events), events)
	}
	if events[0] != (Event{Type: EventTypeKey, Code: LeftButtonCode, Value: 1}) {
		t.Fatalf("unexpected press event: %#v", events[0])
	}
	if events[1] != (Event{Type: EventTypeSyn, Code: SynReportCode, Value: 0}) {
		t.Fatalf("unexpected sync event: %#v", events[1])
	}
}

func TestMovementWithinContactNeverPresses(t *testing.T) {
	h := newHarness(t)
	h.sample(0, 10, 10)
	h.sample(40, 15, 10)

	if !h.machine.Moving() {
		t.Fatalf("expected moving after coordinate change")
	}
	h.assertPresses(0, 0)

	for ms := 70; ms <= 1000; ms += 30 {
		h.sample(ms, 15, 10)
	}
	h.assertPresses(0, 0)
	if h.machine.State() != StateMoving {
		t.Fatalf("State() = %v, want moving", h.machine.State())
	}
}

func TestMovementAfterAccumulatedDwellBlocksPress(t *testing.T) {
	h := newHarness(t)
	for ms := 0; ms <= 140; ms += 20 {
		h.sample(ms, 10, 10)
	}
	h.sample(160, 11, 10)

	if !h.machine.Moving() {
		t.Fatalf("expected moving after change")
	}
	h.assertPresses(0, 0)
}

func TestGapRestartsDwellWindowAfterMovement(t *testing.T) {
	h := newHarness(t)
	h.sample(0, 10, 10)
	h.sample(40, 15, 10)
	h.sample(70, 15, 10)

	// Finger lifted and landed elsewhere.
	h.sample(200, 80, 80)
	if h.machine.Moving() {
		t.Fatalf("expected moving reset on new contact")
	}
	h.assertPresses(0, 0)

	for ms := 230; ms <= 350; ms += 30 {
		h.sample(ms, 80, 80)
	}
	h.assertPresses(0, 0)

	h.sample(380, 80, 80)
	h.assertPresses(1, 0)
}

func TestNewContactTakesPriorityOverChange(t *testing.T) {
	h := newHarness(t)
	h.sample(0, 10, 10)
	h.sample(100, 99, 99)

	if h.machine.Moving() {
		t.Fatalf("a changed sample after a gap must start a contact, not a move")
	}
}

func TestTimerReleasesWhenInputStops(t *testing.T) {
	h := newHarness(t)
	for _, ms := range []int{0, 30, 60, 90, 120, 150, 160} {
		h.sample(ms, 10, 10)
	}
	h.assertPresses(1, 0)

	// Snapshot was taken at the press, no input since.
	h.tick(210)
	h.assertPresses(1, 1)
	if h.machine.Pressed() {
		t.Fatalf("expected released state")
	}
	if h.timer.armed {
		t.Fatalf("expected timer disarmed on release")
	}

	h.tick(260)
	h.assertPresses(1, 1)
}

func TestTimerKeepsPressWhileInputArrives(t *testing.T) {
	h := newHarness(t)
	for ms := 0; ms <= 180; ms += 30 {
		h.sample(ms, 10, 10)
	}
	h.assertPresses(1, 0)

	next := 210
	for tick := 230; tick <= 1000; tick += 50 {
		for ; next < tick; next += 20 {
			h.sample(next, 10, 10)
		}
		h.tick(tick)
		h.assertPresses(1, 0)
	}

	// Last sample at 970ms was observed by the 980ms tick.
	h.tick(1030)
	h.assertPresses(1, 1)
}

func TestTimerKeepsPressWhileHeldContactMoves(t *testing.T) {
	h := newHarness(t)
	for ms := 0; ms <= 180; ms += 30 {
		h.sample(ms, 10, 10)
	}
	h.sample(200, 20, 30)
	h.sample(220, 40, 50)

	h.tick(230)
	h.assertPresses(1, 0)
	if !h.machine.Pressed() {
		t.Fatalf("drag while held must keep the button down")
	}

	h.tick(280)
	h.assertPresses(1, 1)
}

func TestGapAfterReleaseStartsFreshContact(t *testing.T) {
	h := newHarness(t)
	for ms := 0; ms <= 180; ms += 30 {
		h.sample(ms, 10, 10)
	}
	h.tick(230)
	h.assertPresses(1, 1)

	h.sample(400, 10, 10)
	if h.machine.Moving() {
		t.Fatalf("expected fresh contact")
	}
	for ms := 430; ms <= 550; ms += 30 {
		h.sample(ms, 10, 10)
	}
	h.assertPresses(1, 1)
	h.sample(560, 10, 10)
	h.assertPresses(2, 1)
}

func TestTickWhileIdleIsIgnored(t *testing.T) {
	h := newHarness(t)
	h.tick(10)
	h.sample(20, 1, 1)
	h.tick(30)
	h.assertPresses(0, 0)
}

func TestPressInjectionFailureLeavesMachineUnpressed(t *testing.T) {
	h := newHarness(t)
	h.injector.err = errors.New("device gone")

	for ms := 0; ms <= 150; ms += 30 {
		h.sample(ms, 10, 10)
	}
	now := at(160)
	if err := h.machine.OnSample(Sample{X: 10, Y: 10, Time: now}, now); err == nil {
		t.Fatalf("expected injection error")
	}
	if h.machine.Pressed() || h.timer.armed {
		t.Fatalf("failed press must not arm the timer")
	}

	h.injector.err = nil
	h.sample(180, 10, 10)
	h.assertPresses(1, 0)
}

func TestTimerArmFailureReleasesPress(t *testing.T) {
	h := newHarness(t)
	h.timer.err = errors.New("no timers left")

	for ms := 0; ms <= 150; ms += 30 {
		h.sample(ms, 10, 10)
	}
	now := at(160)
	if err := h.machine.OnSample(Sample{X: 10, Y: 10, Time: now}, now); err == nil {
		t.Fatalf("expected arm error")
	}
	h.assertPresses(1, 1)
	if h.machine.Pressed() {
		t.Fatalf("expected press rolled back")
	}
}

func TestResetReleasesActivePress(t *testing.T) {
	h := newHarness(t)
	for ms := 0; ms <= 180; ms += 30 {
		h.sample(ms, 10, 10)
	}
	if err := h.machine.Reset(); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	h.assertPresses(1, 1)
	if h.machine.State() != StateIdle {
		t.Fatalf("State() = %v, want idle", h.machine.State())
	}
}

func TestCustomThresholds(t *testing.T) {
	cfg := Config{
		GapThreshold:  20 * time.Millisecond,
		HoldThreshold: 40 * time.Millisecond,
		TickPeriod:    10 * time.Millisecond,
		Button:        RightButtonCode,
	}
	injector := &recordingInjector{}
	timer := &recordingTimer{}
	machine, err := NewMachine(cfg, injector, timer, noopLogger{})
	if err != nil {
		t.Fatalf("NewMachine() error = %v", err)
	}

	for _, ms := range []int{0, 15, 30, 45} {
		now := at(ms)
		if err := machine.OnSample(Sample{X: 3, Y: 3, Time: now}, now); err != nil {
			t.Fatalf("OnSample() error = %v", err)
		}
	}

	events := injector.snapshot()
	if len(events) == 0 || events[0].Code != RightButtonCode {
		t.Fatalf("expected BTN_RIGHT press, got %#v", events)
	}
	if timer.period != 10*time.Millisecond {
		t.Fatalf("timer period = %v, want 10ms", timer.period)
	}
}
