//go:build linux

package linuxinput

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/sys/unix"

	"touchpadhold/internal/core/hidreport"
	"touchpadhold/internal/core/holddetect"
)

const (
	hidrawGlob = "/dev/hidraw*"
	// hidrawReportMax bounds a single read; hidraw returns one report per read.
	hidrawReportMax = 4096
	// Each source owns its decoder, so one handle suffices.
	hidrawHandle hidreport.Handle = 1
)

var errNotTouchpad = errors.New("report descriptor has no touchpad collection")

// HidrawSource reads raw HID input reports from a /dev/hidrawN node and
// decodes them against the node's report descriptor.
type HidrawSource struct {
	file    *os.File
	decoder *hidreport.Decoder
	handle  hidreport.Handle
	logger  holddetect.Logger
}

// OpenHidrawTouchpad opens devicePath, or the first hidraw node whose report
// descriptor declares a touchpad when it is empty.
func OpenHidrawTouchpad(devicePath string, logger holddetect.Logger) (*HidrawSource, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}
	if devicePath != "" {
		return openHidrawSource(devicePath, logger)
	}

	paths, err := filepath.Glob(hidrawGlob)
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	var lastErr error
	for _, path := range paths {
		src, err := openHidrawSource(path, logger)
		if err != nil {
			if !errors.Is(err, errNotTouchpad) {
				lastErr = err
			}
			continue
		}
		return src, nil
	}
	if lastErr != nil {
		return nil, fmt.Errorf("no readable hidraw touchpad found: %w", lastErr)
	}
	return nil, fmt.Errorf("no hidraw touchpad found; use --list-devices and then pass --device")
}

func openHidrawSource(path string, logger holddetect.Logger) (*HidrawSource, error) {
	file, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}

	raw, err := readReportDescriptor(file)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	decoder, err := newDescriptorDecoder(raw, hidrawHandle)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &HidrawSource{file: file, decoder: decoder, handle: hidrawHandle, logger: logger}, nil
}

// newDescriptorDecoder parses raw and serves it to a decoder under handle.
func newDescriptorDecoder(raw []byte, handle hidreport.Handle) (*hidreport.Decoder, error) {
	desc, err := hidreport.ParseDescriptor(raw)
	if err != nil {
		return nil, err
	}
	if !desc.IsTouchpad() {
		return nil, errNotTouchpad
	}
	src := hidreport.NewDescriptorSource()
	src.Register(handle, desc)
	return hidreport.NewDecoder(src, hidreport.WithCache())
}

// withFd runs fn on the raw descriptor without switching file to blocking
// mode, so Close still interrupts a pending Read.
func withFd(file *os.File, fn func(fd int) error) error {
	conn, err := file.SyscallConn()
	if err != nil {
		return err
	}
	var opErr error
	if err := conn.Control(func(fd uintptr) { opErr = fn(int(fd)) }); err != nil {
		return err
	}
	return opErr
}

func readReportDescriptor(file *os.File) ([]byte, error) {
	var desc unix.HIDRawReportDescriptor
	err := withFd(file, func(fd int) error {
		size, err := unix.IoctlGetInt(fd, unix.HIDIOCGRDESCSIZE)
		if err != nil {
			return fmt.Errorf("HIDIOCGRDESCSIZE: %w", err)
		}
		if size <= 0 || size > len(desc.Value) {
			return fmt.Errorf("report descriptor size %d out of range", size)
		}
		desc.Size = uint32(size)
		if err := unix.IoctlHIDGetDesc(fd, &desc); err != nil {
			return fmt.Errorf("HIDIOCGRDESC: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), desc.Value[:desc.Size]...), nil
}

func (s *HidrawSource) Path() string {
	return s.file.Name()
}

func (s *HidrawSource) Close() error {
	return s.file.Close()
}

func (s *HidrawSource) ReadSamples(stop <-chan struct{}, out chan<- holddetect.Sample) error {
	buf := make([]byte, hidrawReportMax)
	for {
		n, err := s.file.Read(buf)
		if err != nil {
			if stopped(stop) || errors.Is(err, os.ErrClosed) {
				return nil
			}
			if isWouldBlockError(err) {
				if !sleepWithStop(stop, 5*time.Millisecond) {
					return nil
				}
				continue
			}
			return fmt.Errorf("%s: %w", s.Path(), err)
		}

		coords, err := s.decoder.Decode(buf[:n], s.handle)
		if err != nil {
			s.logger.Debug("Dropped touchpad report", "path", s.Path(), "err", err)
			continue
		}
		select {
		case out <- holddetect.Sample{X: coords.X, Y: coords.Y}:
		case <-stop:
			return nil
		}
	}
}

// ListHidrawDevices reports every readable hidraw node and whether its
// report descriptor declares a touchpad.
func ListHidrawDevices() ([]DeviceInfo, error) {
	paths, err := filepath.Glob(hidrawGlob)
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	devices := make([]DeviceInfo, 0, len(paths))
	for _, path := range paths {
		info, err := describeHidraw(path)
		if err != nil {
			continue
		}
		devices = append(devices, info)
	}
	return devices, nil
}

func describeHidraw(path string) (DeviceInfo, error) {
	file, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return DeviceInfo{}, err
	}
	defer file.Close()

	info := DeviceInfo{Path: path, IsPointer: true}
	_ = withFd(file, func(fd int) error {
		if name, err := unix.IoctlHIDGetRawName(fd); err == nil {
			info.Name = name
		}
		if raw, err := unix.IoctlHIDGetRawInfo(fd); err == nil {
			info.IsVirtual = raw.Bustype == unix.BUS_VIRTUAL
			if info.Name == "" {
				info.Name = fmt.Sprintf("HID %04x:%04x", uint16(raw.Vendor), uint16(raw.Product))
			}
		}
		return nil
	})
	if raw, err := readReportDescriptor(file); err == nil {
		if desc, err := hidreport.ParseDescriptor(raw); err == nil {
			info.IsTouchpad = desc.IsTouchpad()
		}
	}
	return info, nil
}
