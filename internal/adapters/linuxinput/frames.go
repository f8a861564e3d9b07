//go:build linux

package linuxinput

import (
	evdev "github.com/holoplot/go-evdev"

	"touchpadhold/internal/core/holddetect"
)

// FrameAssembler turns an evdev event stream into one sample per SYN_REPORT
// frame while a finger touches the pad. Positions come from the single-touch
// ABS_X/ABS_Y axes, which the kernel drives from the first contact.
type FrameAssembler struct {
	x, y     int
	haveX    bool
	haveY    bool
	touching bool
	// dropped discards events until the next SYN_REPORT after SYN_DROPPED.
	dropped bool
}

// Feed consumes one event and returns a sample when it completes a frame.
func (f *FrameAssembler) Feed(event evdev.InputEvent) (holddetect.Sample, bool) {
	switch event.Type {
	case evdev.EV_SYN:
		switch event.Code {
		case evdev.SYN_DROPPED:
			f.dropped = true
			return holddetect.Sample{}, false
		case evdev.SYN_REPORT:
			if f.dropped {
				f.dropped = false
				return holddetect.Sample{}, false
			}
			if !f.touching || !f.haveX || !f.haveY {
				return holddetect.Sample{}, false
			}
			return holddetect.Sample{X: f.x, Y: f.y}, true
		}
	case evdev.EV_ABS:
		if f.dropped {
			return holddetect.Sample{}, false
		}
		switch event.Code {
		case evdev.ABS_X:
			f.x, f.haveX = int(event.Value), true
		case evdev.ABS_Y:
			f.y, f.haveY = int(event.Value), true
		}
	case evdev.EV_KEY:
		if f.dropped {
			return holddetect.Sample{}, false
		}
		if event.Code == evdev.BTN_TOUCH {
			f.touching = event.Value != 0
		}
	}
	return holddetect.Sample{}, false
}

func (f *FrameAssembler) Touching() bool {
	return f.touching
}
