package hidreport

import (
	"errors"
	"fmt"
)

type Decoder struct {
	src   CapabilitySource
	cache map[Handle][]ValueCap
}

type Option func(*Decoder)

// WithCache keeps each device's capabilities after the first query. Call
// Forget when a device goes away.
func WithCache() Option {
	return func(d *Decoder) {
		d.cache = make(map[Handle][]ValueCap)
	}
}

func NewDecoder(src CapabilitySource, opts ...Option) (*Decoder, error) {
	if src == nil {
		return nil, fmt.Errorf("capability source is nil")
	}
	d := &Decoder{src: src}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

func (d *Decoder) Forget(device Handle) {
	if d.cache != nil {
		delete(d.cache, device)
	}
}

// Decode extracts the X (0x30) and Y (0x31) Generic Desktop usages from
// report. When a device declares several X or Y fields (one per finger
// collection) the first one present in the report wins.
func (d *Decoder) Decode(report []byte, device Handle) (Coordinates, error) {
	caps, err := d.valueCaps(device)
	if err != nil {
		return Coordinates{}, &DecodeError{Device: device, Op: "query value capabilities", Kind: ErrDeviceQuery, Err: err}
	}

	var (
		out        Coordinates
		haveX      bool
		haveY      bool
		lastErr    error
		incomplete bool
	)
	for _, vc := range caps {
		for _, target := range [...]struct {
			usage uint16
			dst   *int
			seen  *bool
		}{
			{UsageX, &out.X, &haveX},
			{UsageY, &out.Y, &haveY},
		} {
			if *target.seen || !vc.Covers(UsagePageGenericDesktop, target.usage) {
				continue
			}
			value, err := d.src.UsageValue(device, vc, target.usage, report)
			if err != nil {
				if errors.Is(err, ErrIncompatibleReport) {
					incomplete = true
					continue
				}
				lastErr = err
				continue
			}
			*target.dst = value
			*target.seen = true
		}
		if haveX && haveY {
			return out, nil
		}
	}

	if lastErr != nil {
		return Coordinates{}, &DecodeError{Device: device, Op: "extract usage value", Kind: ErrDecode, Err: lastErr}
	}
	if incomplete && !haveX && !haveY {
		return Coordinates{}, &DecodeError{Device: device, Op: "extract usage value", Kind: ErrDecode, Err: ErrIncompatibleReport}
	}
	return Coordinates{}, &DecodeError{Device: device, Op: "extract usage value", Kind: ErrDecode, Err: ErrNoCoordinates}
}

func (d *Decoder) valueCaps(device Handle) ([]ValueCap, error) {
	if d.cache != nil {
		if caps, ok := d.cache[device]; ok {
			return caps, nil
		}
	}
	caps, err := d.src.ValueCaps(device)
	if err != nil {
		return nil, err
	}
	if d.cache != nil {
		d.cache[device] = caps
	}
	return caps, nil
}

// DescriptorSource serves capabilities from parsed report descriptors.
type DescriptorSource struct {
	descriptors map[Handle]*Descriptor
}

func NewDescriptorSource() *DescriptorSource {
	return &DescriptorSource{descriptors: make(map[Handle]*Descriptor)}
}

func (s *DescriptorSource) Register(device Handle, desc *Descriptor) {
	s.descriptors[device] = desc
}

func (s *DescriptorSource) Forget(device Handle) {
	delete(s.descriptors, device)
}

func (s *DescriptorSource) ValueCaps(device Handle) ([]ValueCap, error) {
	desc, ok := s.descriptors[device]
	if !ok {
		return nil, fmt.Errorf("no report descriptor registered for device %#x", uintptr(device))
	}
	return desc.Inputs, nil
}

func (s *DescriptorSource) UsageValue(_ Handle, vc ValueCap, usage uint16, report []byte) (int, error) {
	return ExtractUsageValue(vc, usage, report)
}
