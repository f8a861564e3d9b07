//go:build linux

package linuxinput

import (
	evdev "github.com/holoplot/go-evdev"

	"touchpadhold/internal/core/holddetect"
)

const uinputDeviceName = "touchpad-hold"

// UinputInjector writes button events to a virtual pointer created through
// /dev/uinput.
type UinputInjector struct {
	dev *evdev.InputDevice
}

// NewUinputInjector creates the virtual device. The relative axes are
// declared so compositors classify it as a pointer; they are never written.
func NewUinputInjector(source *evdev.InputDevice) (*UinputInjector, error) {
	id := evdev.InputID{
		BusType: uint16(evdev.BUS_VIRTUAL),
		Vendor:  0x1,
		Product: 0x1,
		Version: 1,
	}
	if source != nil {
		if sourceID, err := source.InputID(); err == nil {
			id = sourceID
			id.BusType = uint16(evdev.BUS_VIRTUAL)
		}
	}

	dev, err := evdev.CreateDevice(uinputDeviceName, id, uinputCapabilities())
	if err != nil {
		return nil, err
	}
	return &UinputInjector{dev: dev}, nil
}

func uinputCapabilities() map[evdev.EvType][]evdev.EvCode {
	return map[evdev.EvType][]evdev.EvCode{
		evdev.EV_KEY: {evdev.BTN_LEFT, evdev.BTN_RIGHT, evdev.BTN_MIDDLE},
		evdev.EV_REL: {evdev.REL_X, evdev.REL_Y},
	}
}

func (u *UinputInjector) WriteEvents(events ...holddetect.Event) error {
	for _, event := range events {
		ev := toInputEvent(event)
		if err := u.dev.WriteOne(&ev); err != nil {
			return err
		}
	}
	return nil
}

func (u *UinputInjector) Close() error {
	if u.dev == nil {
		return nil
	}
	return u.dev.Close()
}

func toInputEvent(event holddetect.Event) evdev.InputEvent {
	return evdev.InputEvent{
		Type:  evdev.EvType(event.Type),
		Code:  evdev.EvCode(event.Code),
		Value: event.Value,
	}
}
