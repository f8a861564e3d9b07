package holddetect

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	EventTypeSyn uint16 = 0x00
	EventTypeKey uint16 = 0x01

	SynReportCode    uint16 = 0
	LeftButtonCode   uint16 = 0x110
	RightButtonCode  uint16 = 0x111
	MiddleButtonCode uint16 = 0x112
)

const (
	DefaultGapThreshold  = 50 * time.Millisecond
	DefaultHoldThreshold = 150 * time.Millisecond
	DefaultTickPeriod    = 50 * time.Millisecond
)

// unsetCoordinate marks a session slot that has not seen a sample yet.
const unsetCoordinate = -1

type Event struct {
	Type  uint16
	Code  uint16
	Value int32
}

// Sample is one decoded touchpad position. Time is the arrival instant.
type Sample struct {
	X    int
	Y    int
	Time time.Time
}

type Config struct {
	// GapThreshold is the silence after which the next sample starts a new contact.
	GapThreshold time.Duration
	// HoldThreshold is the stationary dwell required before a press is synthesized.
	HoldThreshold time.Duration
	// TickPeriod is the interval of the lift-detection timer while pressed.
	TickPeriod time.Duration
	Button     uint16
}

func DefaultConfig() Config {
	return Config{
		GapThreshold:  DefaultGapThreshold,
		HoldThreshold: DefaultHoldThreshold,
		TickPeriod:    DefaultTickPeriod,
		Button:        LeftButtonCode,
	}
}

func (c Config) Validate() error {
	if c.GapThreshold <= 0 {
		return fmt.Errorf("gap threshold must be > 0, got %v", c.GapThreshold)
	}
	if c.HoldThreshold <= 0 {
		return fmt.Errorf("hold threshold must be > 0, got %v", c.HoldThreshold)
	}
	if c.TickPeriod <= 0 {
		return fmt.Errorf("tick period must be > 0, got %v", c.TickPeriod)
	}
	if _, ok := buttonNames[c.Button]; !ok {
		return fmt.Errorf("unsupported button code %d", c.Button)
	}
	return nil
}

type Injector interface {
	WriteEvents(events ...Event) error
	Close() error
}

// Timer is a repeating timer owned by the Machine. Arm replaces any pending
// schedule; Disarm must stop delivery before it returns.
type Timer interface {
	Arm(period time.Duration) error
	Disarm()
}

type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

var buttonNames = map[uint16]string{
	LeftButtonCode:   "BTN_LEFT",
	RightButtonCode:  "BTN_RIGHT",
	MiddleButtonCode: "BTN_MIDDLE",
}

var buttonAliases = map[string]uint16{
	"BTN_LEFT":   LeftButtonCode,
	"LEFT":       LeftButtonCode,
	"BTN_RIGHT":  RightButtonCode,
	"RIGHT":      RightButtonCode,
	"BTN_MIDDLE": MiddleButtonCode,
	"MIDDLE":     MiddleButtonCode,
}

func ParseButton(value string) (uint16, error) {
	raw := strings.ToUpper(strings.TrimSpace(value))
	if raw == "" {
		return 0, fmt.Errorf("button is empty")
	}
	if code, ok := buttonAliases[raw]; ok {
		return code, nil
	}

	parsed, err := strconv.ParseInt(raw, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("unknown button %q: use BTN_LEFT, BTN_RIGHT or BTN_MIDDLE", value)
	}
	if parsed < 0 || parsed > 0xFFFF {
		return 0, fmt.Errorf("button code out of range: %d", parsed)
	}
	if _, ok := buttonNames[uint16(parsed)]; !ok {
		return 0, fmt.Errorf("unsupported button code: %d", parsed)
	}
	return uint16(parsed), nil
}

func FormatButtonName(code uint16) string {
	if name, ok := buttonNames[code]; ok {
		return name
	}
	return strconv.Itoa(int(code))
}

func pressEvents(button uint16) []Event {
	return []Event{
		{Type: EventTypeKey, Code: button, Value: 1},
		{Type: EventTypeSyn, Code: SynReportCode, Value: 0},
	}
}

func releaseEvents(button uint16) []Event {
	return []Event{
		{Type: EventTypeKey, Code: button, Value: 0},
		{Type: EventTypeSyn, Code: SynReportCode, Value: 0},
	}
}
