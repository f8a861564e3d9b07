// Package hidreport extracts touchpad coordinates from raw HID input reports.
//
// A report is opaque until it is read through the value capabilities its
// device declares. Capabilities come either from the platform (Windows
// preparsed data) or from a parsed report descriptor (Linux hidraw).
package hidreport

const (
	UsagePageGenericDesktop uint16 = 0x01
	UsagePageButton         uint16 = 0x09
	UsagePageDigitizer      uint16 = 0x0D

	UsageX        uint16 = 0x30
	UsageY        uint16 = 0x31
	UsageTouchPad uint16 = 0x05
)

// Handle identifies a device to a CapabilitySource.
type Handle uintptr

// ValueCap describes one input value field of a device.
//
// BitOffset counts from the first data byte of the report, after the report
// ID prefix when ReportID is non-zero. For range capabilities each usage in
// [UsageMin, UsageMax] occupies BitSize bits in order.
type ValueCap struct {
	UsagePage      uint16
	Usage          uint16
	ReportID       uint8
	LinkCollection uint16

	BitOffset   int
	BitSize     int
	ReportCount int

	LogicalMin int32
	LogicalMax int32

	IsRange  bool
	UsageMin uint16
	UsageMax uint16
}

// Covers reports whether the capability carries usage on its page.
func (v ValueCap) Covers(page, usage uint16) bool {
	if v.UsagePage != page {
		return false
	}
	if v.IsRange {
		return usage >= v.UsageMin && usage <= v.UsageMax
	}
	return v.Usage == usage
}

// Coordinates is the decoded contact position in device logical units.
type Coordinates struct {
	X int
	Y int
}

type CapabilitySource interface {
	ValueCaps(device Handle) ([]ValueCap, error)
	UsageValue(device Handle, vc ValueCap, usage uint16, report []byte) (int, error)
}
