//go:build linux

package linuxinput

import (
	"fmt"
	"os"
	"sort"
	"strings"

	evdev "github.com/holoplot/go-evdev"
)

type DeviceInfo struct {
	Path       string
	Name       string
	IsVirtual  bool
	IsPointer  bool
	IsTouchpad bool
}

// ListInputDevices reports every readable evdev node. Touchpads are flagged.
func ListInputDevices() ([]DeviceInfo, error) {
	paths, err := evdev.ListDevicePaths()
	if err != nil {
		return nil, err
	}

	sort.Slice(paths, func(i, j int) bool {
		return paths[i].Path < paths[j].Path
	})

	devices := make([]DeviceInfo, 0, len(paths))
	for _, path := range paths {
		dev, err := openInputDevice(path.Path)
		if err != nil {
			continue
		}
		devices = append(devices, describeDevice(dev, path.Name))
		_ = dev.Close()
	}

	return devices, nil
}

// OpenTouchpad opens devicePath, or the first physical touchpad when it is
// empty.
func OpenTouchpad(devicePath string) (*evdev.InputDevice, error) {
	if devicePath != "" {
		dev, err := openInputDevice(devicePath)
		if err != nil {
			return nil, err
		}
		if !deviceIsTouchpad(dev) {
			_ = dev.Close()
			return nil, fmt.Errorf("%s does not report touchpad axes (ABS_X/ABS_Y with BTN_TOUCH and BTN_TOOL_FINGER)", devicePath)
		}
		return dev, nil
	}

	matches, err := findTouchpads()
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no touchpad found; use --list-devices and then pass --device")
	}

	for _, match := range matches {
		dev, err := openInputDevice(match.Path)
		if err != nil {
			continue
		}
		return dev, nil
	}
	return nil, fmt.Errorf("found %d touchpads, but failed to open any of them", len(matches))
}

func openInputDevice(path string) (*evdev.InputDevice, error) {
	return evdev.OpenWithFlags(path, os.O_RDONLY)
}

func describeDevice(dev *evdev.InputDevice, fallbackName string) DeviceInfo {
	name := fallbackName
	if actualName, err := dev.Name(); err == nil && actualName != "" {
		name = actualName
	}
	return DeviceInfo{
		Path:       dev.Path(),
		Name:       name,
		IsVirtual:  deviceIsVirtual(dev, name),
		IsPointer:  deviceIsPointer(dev),
		IsTouchpad: deviceIsTouchpad(dev),
	}
}

func deviceSupports(device *evdev.InputDevice, evType evdev.EvType, codes ...evdev.EvCode) bool {
	capable := make(map[evdev.EvCode]struct{})
	for _, c := range device.CapableEvents(evType) {
		capable[c] = struct{}{}
	}
	for _, code := range codes {
		if _, ok := capable[code]; !ok {
			return false
		}
	}
	return true
}

// deviceIsTouchpad matches indirect touch devices. Touchscreens report
// BTN_TOUCH too but not BTN_TOOL_FINGER.
func deviceIsTouchpad(device *evdev.InputDevice) bool {
	return deviceSupports(device, evdev.EV_ABS, evdev.ABS_X, evdev.ABS_Y) &&
		deviceSupports(device, evdev.EV_KEY, evdev.BTN_TOUCH, evdev.BTN_TOOL_FINGER)
}

func deviceIsVirtual(device *evdev.InputDevice, name string) bool {
	id, err := device.InputID()
	if err == nil && id.BusType == uint16(evdev.BUS_VIRTUAL) {
		return true
	}
	lower := strings.ToLower(name)
	for _, token := range []string{"virtual", "uinput", "ydotool", uinputDeviceName} {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}

func deviceIsPointer(device *evdev.InputDevice) bool {
	if deviceSupports(device, evdev.EV_REL, evdev.REL_X, evdev.REL_Y) {
		return true
	}
	return len(device.CapableEvents(evdev.EV_ABS)) > 0
}

func findTouchpads() ([]DeviceInfo, error) {
	paths, err := evdev.ListDevicePaths()
	if err != nil {
		return nil, err
	}

	matches := make([]DeviceInfo, 0)
	for _, path := range paths {
		dev, err := openInputDevice(path.Path)
		if err != nil {
			continue
		}
		info := describeDevice(dev, path.Name)
		_ = dev.Close()
		if info.IsTouchpad {
			matches = append(matches, info)
		}
	}

	pool := make([]DeviceInfo, 0, len(matches))
	for _, match := range matches {
		if !match.IsVirtual {
			pool = append(pool, match)
		}
	}
	if len(pool) == 0 {
		pool = matches
	}

	sort.Slice(pool, func(i, j int) bool {
		return pool[i].Path < pool[j].Path
	})
	return pool, nil
}
