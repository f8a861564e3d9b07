package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"touchpadhold/internal/core/holddetect"
)

type config struct {
	hold        holddetect.Config
	backend     string
	output      string
	devicePath  string
	listDevices bool
	logLevel    slog.Level
}

// holdRuntime is the running platform backend.
type holdRuntime interface {
	Stop()
	// Done is closed when the backend stops on its own.
	Done() <-chan struct{}
}

func newSlogLogger(level slog.Level, out io.Writer) *slog.Logger {
	if debugLogsEnabled() {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{
		Level: level,
	}))
}

func debugLogsEnabled() bool {
	return strings.TrimSpace(os.Getenv("DEBUG")) == "1"
}

func parseLogLevel(value string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warning", "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid --log-level %q (expected debug|info|warning|error)", value)
	}
}

func parseConfig(args []string, stderr io.Writer) (config, error) {
	cfg := config{hold: holddetect.DefaultConfig()}
	flags := flag.NewFlagSet("touchpadhold", flag.ContinueOnError)
	flags.SetOutput(stderr)

	var buttonRaw string
	var backendRaw string
	var outputRaw string
	var logLevelRaw string

	flags.DurationVar(&cfg.hold.GapThreshold, "gap", holddetect.DefaultGapThreshold, "Silence after which the next report starts a new contact.")
	flags.DurationVar(&cfg.hold.HoldThreshold, "hold", holddetect.DefaultHoldThreshold, "Stationary dwell before the button is pressed.")
	flags.DurationVar(&cfg.hold.TickPeriod, "tick", holddetect.DefaultTickPeriod, "Lift-detection timer period while the button is held.")
	flags.StringVar(&buttonRaw, "button", "BTN_LEFT", "Button to hold: BTN_LEFT, BTN_RIGHT or BTN_MIDDLE.")
	flags.StringVar(&backendRaw, "backend", "auto", "Touchpad source. Linux: auto|evdev|hidraw. Windows: auto|windows.")
	flags.StringVar(&outputRaw, "output", "auto", "Button output on Linux: auto|uinput|x11.")
	flags.StringVar(&cfg.devicePath, "device", "", "Touchpad device path, e.g. /dev/input/event5 or /dev/hidraw2. Auto-detected if omitted.")
	flags.BoolVar(&cfg.listDevices, "list-devices", false, "Print available input devices and exit.")
	flags.StringVar(&logLevelRaw, "log-level", "info", "Log verbosity (default: info). Allowed: debug, info, warning, error.")

	if err := flags.Parse(args); err != nil {
		return cfg, err
	}
	if flags.NArg() > 0 {
		return cfg, fmt.Errorf("unexpected arguments: %s", strings.Join(flags.Args(), " "))
	}

	button, err := holddetect.ParseButton(buttonRaw)
	if err != nil {
		return cfg, fmt.Errorf("invalid --button: %w", err)
	}
	cfg.hold.Button = button
	if err := cfg.hold.Validate(); err != nil {
		return cfg, err
	}

	parsedLevel, err := parseLogLevel(logLevelRaw)
	if err != nil {
		return cfg, err
	}
	backendChoice, err := parseBackendChoice(backendRaw)
	if err != nil {
		return cfg, err
	}
	outputChoice, err := parseOutputChoice(outputRaw)
	if err != nil {
		return cfg, err
	}

	cfg.backend = backendChoice
	cfg.output = outputChoice
	cfg.logLevel = parsedLevel
	return cfg, nil
}

func parseOutputChoice(value string) (string, error) {
	output := strings.ToLower(strings.TrimSpace(value))
	if output == "" {
		output = "auto"
	}
	switch output {
	case "auto", "uinput", "x11":
		return output, nil
	default:
		return "", fmt.Errorf("invalid --output %q (expected auto|uinput|x11)", value)
	}
}

func isPermissionError(err error) bool {
	return errors.Is(err, os.ErrPermission) || errors.Is(err, syscall.EPERM) || errors.Is(err, syscall.EACCES)
}

func logHoldConfig(logger *slog.Logger, cfg holddetect.Config) {
	logger.Info("Hold detection",
		"gap", cfg.GapThreshold.String(),
		"hold", cfg.HoldThreshold.String(),
		"tick", cfg.TickPeriod.String(),
		"button", holddetect.FormatButtonName(cfg.Button),
	)
}

func run(args []string, stderr io.Writer) int {
	cfg, err := parseConfig(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, err)
		return 2
	}

	if cfg.listDevices {
		if err := listInputDevices(cfg.backend); err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		return 0
	}

	logger := newSlogLogger(cfg.logLevel, stderr)
	runtime, err := startHoldFromConfig(cfg, logger)
	if err != nil {
		if isPermissionError(err) {
			fmt.Fprintln(stderr, permissionDeniedHint())
			return 1
		}
		fmt.Fprintln(stderr, err)
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	code := 0
	select {
	case <-ctx.Done():
	case <-runtime.Done():
		logger.Error("Touchpad backend stopped unexpectedly")
		code = 1
	}

	stopped := make(chan struct{})
	go func() {
		runtime.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		logger.Warn("Backend did not stop in time")
		code = 1
	}
	return code
}

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}
