package hidreport

import (
	"errors"
	"fmt"
)

var (
	// ErrDeviceQuery indicates the device capabilities could not be read.
	ErrDeviceQuery = errors.New("device capability query failed")

	// ErrDecode indicates a value could not be extracted from a report.
	ErrDecode = errors.New("report decode failed")

	// ErrReportTooShort indicates a report ends before a declared field.
	ErrReportTooShort = errors.New("report too short")

	// ErrIncompatibleReport indicates a capability belongs to another report ID.
	ErrIncompatibleReport = errors.New("incompatible report id")

	// ErrNoCoordinates indicates the report carries no X/Y usage.
	ErrNoCoordinates = errors.New("report carries no X/Y usage")
)

// DecodeError is returned by Decoder.Decode. Kind is ErrDeviceQuery or
// ErrDecode; both it and the cause match with errors.Is.
type DecodeError struct {
	Device Handle
	Op     string
	Kind   error
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: device %#x: %s: %v", e.Kind, uintptr(e.Device), e.Op, e.Err)
}

func (e *DecodeError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}
