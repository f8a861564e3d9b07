//go:build windows

package main

import (
	"fmt"
	"log/slog"
	"strings"

	"touchpadhold/internal/adapters/wininput"
)

func parseBackendChoice(value string) (string, error) {
	backend := strings.ToLower(strings.TrimSpace(value))
	if backend == "" {
		backend = "auto"
	}
	switch backend {
	case "auto", "windows":
		return backend, nil
	default:
		return "", fmt.Errorf("invalid --backend %q (windows supports auto|windows)", value)
	}
}

func listInputDevices(_ string) error {
	devices, err := wininput.ListInputDevices()
	if err != nil {
		return err
	}
	for _, dev := range devices {
		virtualTag := "physical"
		if dev.IsVirtual {
			virtualTag = "virtual"
		}
		fmt.Printf("%s: %s [%s, touchpad]\n", dev.Path, dev.Name, virtualTag)
	}
	return nil
}

func permissionDeniedHint() string {
	return "Permission denied registering for touchpad raw input or injecting mouse input. Elevated windows only accept SendInput from an elevated process."
}

func startHoldFromConfig(cfg config, logger *slog.Logger) (holdRuntime, error) {
	if cfg.devicePath != "" {
		logger.Warn("--device is ignored on Windows; raw input covers every touchpad")
	}
	if cfg.output != "auto" {
		logger.Warn("--output is ignored on Windows; buttons are sent with SendInput")
	}

	runtime, err := wininput.NewRuntime(wininput.RuntimeConfig{Hold: cfg.hold}, logger)
	if err != nil {
		return nil, err
	}

	if err := runtime.Start(); err != nil {
		runtime.Stop()
		return nil, err
	}

	logger.Info("Input mode", "mode", "windows-raw-input")
	logHoldConfig(logger, cfg.hold)
	logger.Info("Rest a finger on the touchpad to hold the button. Press Ctrl+C to stop")
	return runtime, nil
}
