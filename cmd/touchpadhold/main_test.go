package main

import (
	"errors"
	"flag"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"touchpadhold/internal/core/holddetect"
)

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := parseConfig(nil, io.Discard)
	if err != nil {
		t.Fatalf("parseConfig() error = %v", err)
	}
	if cfg.hold != holddetect.DefaultConfig() {
		t.Fatalf("hold config = %+v, want defaults", cfg.hold)
	}
	if cfg.backend != "auto" || cfg.output != "auto" || cfg.logLevel != slog.LevelInfo {
		t.Fatalf("unexpected defaults: backend=%q output=%q level=%v", cfg.backend, cfg.output, cfg.logLevel)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	cfg, err := parseConfig([]string{
		"--gap", "80ms",
		"--hold", "300ms",
		"--tick", "20ms",
		"--button", "btn_right",
		"--output", "X11",
		"--log-level", "debug",
	}, io.Discard)
	if err != nil {
		t.Fatalf("parseConfig() error = %v", err)
	}

	want := holddetect.Config{
		GapThreshold:  80 * time.Millisecond,
		HoldThreshold: 300 * time.Millisecond,
		TickPeriod:    20 * time.Millisecond,
		Button:        holddetect.RightButtonCode,
	}
	if cfg.hold != want {
		t.Fatalf("hold config = %+v, want %+v", cfg.hold, want)
	}
	if cfg.output != "x11" || cfg.logLevel != slog.LevelDebug {
		t.Fatalf("output=%q level=%v", cfg.output, cfg.logLevel)
	}
}

func TestParseConfigRejectsInvalidInput(t *testing.T) {
	tests := map[string][]string{
		"zero hold":      {"--hold", "0s"},
		"negative tick":  {"--tick", "-5ms"},
		"unknown button": {"--button", "BTN_SIDE"},
		"bad output":     {"--output", "wayland"},
		"bad level":      {"--log-level", "loud"},
		"extra args":     {"now"},
		"bad duration":   {"--gap", "fast"},
	}
	for name, args := range tests {
		if _, err := parseConfig(args, io.Discard); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestParseConfigHelp(t *testing.T) {
	_, err := parseConfig([]string{"-h"}, io.Discard)
	if !errors.Is(err, flag.ErrHelp) {
		t.Fatalf("parseConfig(-h) error = %v, want flag.ErrHelp", err)
	}
}

func TestRunReportsUsageErrors(t *testing.T) {
	var stderr strings.Builder
	if code := run([]string{"--hold", "0s"}, &stderr); code != 2 {
		t.Fatalf("run() = %d, want 2", code)
	}
	if !strings.Contains(stderr.String(), "hold") {
		t.Fatalf("expected hold validation message, got %q", stderr.String())
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" INFO ":  slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for raw, want := range tests {
		got, err := parseLogLevel(raw)
		if err != nil || got != want {
			t.Fatalf("parseLogLevel(%q) = %v, %v, want %v", raw, got, err, want)
		}
	}
}
