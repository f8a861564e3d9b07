//go:build linux

package linuxinput

import (
	"testing"

	evdev "github.com/holoplot/go-evdev"
)

func abs(code evdev.EvCode, value int32) evdev.InputEvent {
	return evdev.InputEvent{Type: evdev.EV_ABS, Code: code, Value: value}
}

func key(code evdev.EvCode, value int32) evdev.InputEvent {
	return evdev.InputEvent{Type: evdev.EV_KEY, Code: code, Value: value}
}

func syn(code evdev.EvCode) evdev.InputEvent {
	return evdev.InputEvent{Type: evdev.EV_SYN, Code: code}
}

func TestFrameAssemblerEmitsOneSamplePerTouchingFrame(t *testing.T) {
	var frames FrameAssembler
	stream := []evdev.InputEvent{
		key(evdev.BTN_TOUCH, 1),
		abs(evdev.ABS_X, 100),
		abs(evdev.ABS_Y, 200),
		syn(evdev.SYN_REPORT),
		// Stationary frame: the kernel filters unchanged axes.
		{Type: evdev.EV_MSC, Code: 0x05, Value: 7000}, // MSC_TIMESTAMP
		syn(evdev.SYN_REPORT),
		abs(evdev.ABS_X, 105),
		syn(evdev.SYN_REPORT),
	}

	var got [][2]int
	for _, event := range stream {
		if sample, ok := frames.Feed(event); ok {
			got = append(got, [2]int{sample.X, sample.Y})
		}
	}

	want := [][2]int{{100, 200}, {100, 200}, {105, 200}}
	if len(got) != len(want) {
		t.Fatalf("got %d samples %v, want %v", len(got), got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}
	if !frames.Touching() {
		t.Fatalf("expected touching after BTN_TOUCH=1")
	}
}

func TestFrameAssemblerSilentWithoutTouch(t *testing.T) {
	var frames FrameAssembler
	stream := []evdev.InputEvent{
		abs(evdev.ABS_X, 10),
		abs(evdev.ABS_Y, 10),
		syn(evdev.SYN_REPORT),
		key(evdev.BTN_TOUCH, 1),
		syn(evdev.SYN_REPORT),
		key(evdev.BTN_TOUCH, 0),
		syn(evdev.SYN_REPORT),
	}

	count := 0
	for _, event := range stream {
		if _, ok := frames.Feed(event); ok {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected only the touching frame to emit, got %d samples", count)
	}
}

func TestFrameAssemblerWaitsForPosition(t *testing.T) {
	var frames FrameAssembler
	frames.Feed(key(evdev.BTN_TOUCH, 1))
	frames.Feed(abs(evdev.ABS_X, 10))
	if _, ok := frames.Feed(syn(evdev.SYN_REPORT)); ok {
		t.Fatalf("frame without ABS_Y must not emit")
	}
	frames.Feed(abs(evdev.ABS_Y, 20))
	if sample, ok := frames.Feed(syn(evdev.SYN_REPORT)); !ok || sample.X != 10 || sample.Y != 20 {
		t.Fatalf("Feed() = %+v,%v, want X=10 Y=20", sample, ok)
	}
}

func TestFrameAssemblerDiscardsDroppedFrame(t *testing.T) {
	var frames FrameAssembler
	frames.Feed(key(evdev.BTN_TOUCH, 1))
	frames.Feed(abs(evdev.ABS_X, 1))
	frames.Feed(abs(evdev.ABS_Y, 1))
	frames.Feed(syn(evdev.SYN_REPORT))

	frames.Feed(syn(evdev.SYN_DROPPED))
	frames.Feed(abs(evdev.ABS_X, 999))
	if _, ok := frames.Feed(syn(evdev.SYN_REPORT)); ok {
		t.Fatalf("frame after SYN_DROPPED must be discarded")
	}

	sample, ok := frames.Feed(syn(evdev.SYN_REPORT))
	if !ok || sample.X != 1 {
		t.Fatalf("Feed() = %+v,%v, want last good position X=1", sample, ok)
	}
}

func TestToInputEventKeepsButtonEvent(t *testing.T) {
	ev := toInputEvent(pressEvent())
	if ev.Type != evdev.EV_KEY || ev.Code != evdev.BTN_LEFT || ev.Value != 1 {
		t.Fatalf("toInputEvent() = %+v, want EV_KEY BTN_LEFT 1", ev)
	}
	caps := uinputCapabilities()
	if len(caps[evdev.EV_KEY]) != 3 {
		t.Fatalf("expected left, right and middle buttons, got %v", caps[evdev.EV_KEY])
	}
}
