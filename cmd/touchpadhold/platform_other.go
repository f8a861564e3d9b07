//go:build !linux && !windows

package main

import (
	"fmt"
	"log/slog"
	"strings"
)

func parseBackendChoice(value string) (string, error) {
	backend := strings.ToLower(strings.TrimSpace(value))
	if backend == "" || backend == "auto" {
		return "auto", nil
	}
	return "", fmt.Errorf("invalid --backend %q (unsupported platform)", value)
}

func listInputDevices(_ string) error {
	return fmt.Errorf("input device listing is not supported on this platform")
}

func permissionDeniedHint() string {
	return "Permission denied opening input backend."
}

func startHoldFromConfig(cfg config, logger *slog.Logger) (holdRuntime, error) {
	return nil, fmt.Errorf("touchpad hold detection is not supported on this platform")
}
