//go:build linux

package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	evdev "github.com/holoplot/go-evdev"

	"touchpadhold/internal/adapters/linuxinput"
	"touchpadhold/internal/adapters/x11input"
	"touchpadhold/internal/core/holddetect"
)

func parseBackendChoice(value string) (string, error) {
	backend := strings.ToLower(strings.TrimSpace(value))
	if backend == "" {
		backend = "auto"
	}
	switch backend {
	case "auto", "evdev", "hidraw":
		return backend, nil
	default:
		return "", fmt.Errorf("invalid --backend %q (linux supports auto|evdev|hidraw)", value)
	}
}

func resolveLinuxBackend(configured string) string {
	if configured == "hidraw" {
		return "hidraw"
	}
	return "evdev"
}

func listInputDevices(backend string) error {
	var (
		devices []linuxinput.DeviceInfo
		err     error
	)
	switch resolveLinuxBackend(backend) {
	case "hidraw":
		devices, err = linuxinput.ListHidrawDevices()
	default:
		devices, err = linuxinput.ListInputDevices()
	}
	if err != nil {
		return err
	}

	for _, dev := range devices {
		virtualTag := "physical"
		if dev.IsVirtual {
			virtualTag = "virtual"
		}
		kindTag := "other"
		if dev.IsTouchpad {
			kindTag = "touchpad"
		} else if dev.IsPointer {
			kindTag = "pointer"
		}
		fmt.Printf("%s: %s [%s, %s]\n", dev.Path, dev.Name, virtualTag, kindTag)
	}
	return nil
}

func permissionDeniedHint() string {
	return "Permission denied opening input backend. Reading the touchpad needs access to /dev/input (evdev) or /dev/hidraw* (hidraw); the uinput output needs /dev/uinput. On X11 use --output=x11 to avoid uinput."
}

func startHoldFromConfig(cfg config, logger *slog.Logger) (holdRuntime, error) {
	var (
		source linuxinput.Source
		device *evdev.InputDevice
	)
	switch resolveLinuxBackend(cfg.backend) {
	case "hidraw":
		src, err := linuxinput.OpenHidrawTouchpad(cfg.devicePath, logger)
		if err != nil {
			return nil, err
		}
		source = src
	default:
		dev, err := linuxinput.OpenTouchpad(cfg.devicePath)
		if err != nil {
			return nil, err
		}
		src, err := linuxinput.NewEvdevSource(dev, logger)
		if err != nil {
			_ = dev.Close()
			return nil, err
		}
		source, device = src, dev
	}

	name := ""
	if device != nil {
		name, _ = device.Name()
	}
	logger.Info("Using touchpad", "path", source.Path(), "name", name, "backend", resolveLinuxBackend(cfg.backend))

	output := resolveLinuxOutput(cfg.output)
	injector, err := newLinuxInjector(output, device)
	if err != nil {
		_ = source.Close()
		return nil, err
	}

	runtime, err := linuxinput.NewRuntime(source, injector, linuxinput.RuntimeConfig{Hold: cfg.hold}, logger)
	if err != nil {
		_ = source.Close()
		_ = injector.Close()
		return nil, err
	}
	if err := runtime.Start(); err != nil {
		runtime.Stop()
		return nil, err
	}

	logger.Info("Output", "name", output)
	logHoldConfig(logger, cfg.hold)
	logger.Info("Rest a finger on the touchpad to hold the button. Press Ctrl+C to stop")
	return runtime, nil
}

func newLinuxInjector(output string, source *evdev.InputDevice) (holddetect.Injector, error) {
	switch output {
	case "x11":
		injector, err := x11input.NewInjector()
		if err != nil {
			return nil, err
		}
		return injector, nil
	default:
		injector, err := linuxinput.NewUinputInjector(source)
		if err != nil {
			return nil, err
		}
		return injector, nil
	}
}

func resolveLinuxOutput(configured string) string {
	choice := strings.ToLower(strings.TrimSpace(configured))
	if choice == "" {
		choice = "auto"
	}
	if choice != "auto" {
		return choice
	}

	sessionType := strings.ToLower(strings.TrimSpace(os.Getenv("XDG_SESSION_TYPE")))
	switch sessionType {
	case "wayland":
		return "uinput"
	case "x11":
		return "x11"
	}

	if strings.TrimSpace(os.Getenv("WAYLAND_DISPLAY")) != "" {
		return "uinput"
	}
	if strings.TrimSpace(os.Getenv("DISPLAY")) != "" {
		return "x11"
	}
	return "uinput"
}
