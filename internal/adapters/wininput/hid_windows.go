//go:build windows

package wininput

import (
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"

	"touchpadhold/internal/core/hidreport"
)

const (
	hidpInput = 0

	hidpStatusSuccess            = 0x00110000
	hidpStatusIncompatibleReport = 0xC0110010

	ridiPreparsedData = 0x20000005
	ridiDeviceName    = 0x20000007
	ridiDeviceInfo    = 0x2000000B
)

var (
	hid = windows.NewLazySystemDLL("hid.dll")

	procHidPGetCaps       = hid.NewProc("HidP_GetCaps")
	procHidPGetValueCaps  = hid.NewProc("HidP_GetValueCaps")
	procHidPGetUsageValue = hid.NewProc("HidP_GetUsageValue")

	procGetRawInputDeviceInfoW = user32.NewProc("GetRawInputDeviceInfoW")
	procGetRawInputDeviceList  = user32.NewProc("GetRawInputDeviceList")
)

type hidpCaps struct {
	Usage                     uint16
	UsagePage                 uint16
	InputReportByteLength     uint16
	OutputReportByteLength    uint16
	FeatureReportByteLength   uint16
	Reserved                  [17]uint16
	NumberLinkCollectionNodes uint16
	NumberInputButtonCaps     uint16
	NumberInputValueCaps      uint16
	NumberInputDataIndices    uint16
	NumberOutputButtonCaps    uint16
	NumberOutputValueCaps     uint16
	NumberOutputDataIndices   uint16
	NumberFeatureButtonCaps   uint16
	NumberFeatureValueCaps    uint16
	NumberFeatureDataIndices  uint16
}

type hidpValueCaps struct {
	UsagePage         uint16
	ReportID          uint8
	IsAlias           uint8
	BitField          uint16
	LinkCollection    uint16
	LinkUsage         uint16
	LinkUsagePage     uint16
	IsRange           uint8
	IsStringRange     uint8
	IsDesignatorRange uint8
	IsAbsolute        uint8
	HasNull           uint8
	Reserved          uint8
	BitSize           uint16
	ReportCount       uint16
	Reserved2         [5]uint16
	UnitsExp          uint32
	Units             uint32
	LogicalMin        int32
	LogicalMax        int32
	PhysicalMin       int32
	PhysicalMax       int32
	// Range.UsageMin/UsageMax, or NotRange.Usage in the first slot.
	UsageMin uint16
	UsageMax uint16
	_        [6]uint16
}

type rawInputDeviceList struct {
	Device windows.Handle
	Type   uint32
}

// rawDeviceInfo is RID_DEVICE_INFO with the HID member of its union.
type rawDeviceInfo struct {
	Size      uint32
	Type      uint32
	VendorID  uint32
	ProductID uint32
	Version   uint32
	UsagePage uint16
	Usage     uint16
	_         [8]byte
}

// capabilitySource reads value capabilities from a device's preparsed data
// and extracts values with HidP_GetUsageValue.
type capabilitySource struct {
	mu        sync.Mutex
	preparsed map[hidreport.Handle][]byte
}

func newCapabilitySource() *capabilitySource {
	return &capabilitySource{preparsed: make(map[hidreport.Handle][]byte)}
}

func (s *capabilitySource) ValueCaps(device hidreport.Handle) ([]hidreport.ValueCap, error) {
	data, err := preparsedData(windows.Handle(device))
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.preparsed[device] = data
	s.mu.Unlock()

	var caps hidpCaps
	status, _, _ := procHidPGetCaps.Call(uintptr(unsafe.Pointer(&data[0])), uintptr(unsafe.Pointer(&caps)))
	if uint32(status) != hidpStatusSuccess {
		return nil, fmt.Errorf("HidP_GetCaps: %w", windows.NTStatus(uint32(status)))
	}
	if caps.NumberInputValueCaps == 0 {
		return nil, nil
	}

	raw := make([]hidpValueCaps, caps.NumberInputValueCaps)
	count := caps.NumberInputValueCaps
	status, _, _ = procHidPGetValueCaps.Call(
		hidpInput,
		uintptr(unsafe.Pointer(&raw[0])),
		uintptr(unsafe.Pointer(&count)),
		uintptr(unsafe.Pointer(&data[0])),
	)
	if uint32(status) != hidpStatusSuccess {
		return nil, fmt.Errorf("HidP_GetValueCaps: %w", windows.NTStatus(uint32(status)))
	}

	out := make([]hidreport.ValueCap, 0, count)
	for _, vc := range raw[:count] {
		vcap := hidreport.ValueCap{
			UsagePage:      vc.UsagePage,
			ReportID:       vc.ReportID,
			LinkCollection: vc.LinkCollection,
			BitSize:        int(vc.BitSize),
			ReportCount:    int(vc.ReportCount),
			LogicalMin:     vc.LogicalMin,
			LogicalMax:     vc.LogicalMax,
			IsRange:        vc.IsRange != 0,
		}
		if vcap.IsRange {
			vcap.UsageMin, vcap.UsageMax = vc.UsageMin, vc.UsageMax
		} else {
			vcap.Usage = vc.UsageMin
		}
		out = append(out, vcap)
	}
	return out, nil
}

func (s *capabilitySource) UsageValue(device hidreport.Handle, vc hidreport.ValueCap, usage uint16, report []byte) (int, error) {
	if len(report) == 0 {
		return 0, hidreport.ErrReportTooShort
	}

	s.mu.Lock()
	data, ok := s.preparsed[device]
	s.mu.Unlock()
	if !ok {
		var err error
		if data, err = preparsedData(windows.Handle(device)); err != nil {
			return 0, err
		}
		s.mu.Lock()
		s.preparsed[device] = data
		s.mu.Unlock()
	}

	var value uint32
	status, _, _ := procHidPGetUsageValue.Call(
		hidpInput,
		uintptr(vc.UsagePage),
		uintptr(vc.LinkCollection),
		uintptr(usage),
		uintptr(unsafe.Pointer(&value)),
		uintptr(unsafe.Pointer(&data[0])),
		uintptr(unsafe.Pointer(&report[0])),
		uintptr(len(report)),
	)
	switch uint32(status) {
	case hidpStatusSuccess:
		return int(value), nil
	case hidpStatusIncompatibleReport:
		return 0, hidreport.ErrIncompatibleReport
	default:
		return 0, fmt.Errorf("HidP_GetUsageValue: %w", windows.NTStatus(uint32(status)))
	}
}

func preparsedData(device windows.Handle) ([]byte, error) {
	var size uint32
	ret, _, callErr := procGetRawInputDeviceInfoW.Call(uintptr(device), ridiPreparsedData, 0, uintptr(unsafe.Pointer(&size)))
	if int32(ret) != 0 {
		return nil, fmt.Errorf("GetRawInputDeviceInfoW size: %w", callErr)
	}
	if size == 0 {
		return nil, fmt.Errorf("device %#x has no preparsed data", uintptr(device))
	}

	// Preparsed data is an opaque structure read by hid.dll; keep it 8-byte aligned.
	words := make([]uint64, (size+7)/8)
	ret, _, callErr = procGetRawInputDeviceInfoW.Call(uintptr(device), ridiPreparsedData, uintptr(unsafe.Pointer(&words[0])), uintptr(unsafe.Pointer(&size)))
	if int32(ret) < 0 {
		return nil, fmt.Errorf("GetRawInputDeviceInfoW: %w", callErr)
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), size), nil
}

// ListInputDevices returns the HID devices that expose a Touch Pad top-level
// collection.
func ListInputDevices() ([]DeviceInfo, error) {
	var count uint32
	entrySize := unsafe.Sizeof(rawInputDeviceList{})
	ret, _, callErr := procGetRawInputDeviceList.Call(0, uintptr(unsafe.Pointer(&count)), entrySize)
	if int32(ret) == -1 {
		return nil, fmt.Errorf("GetRawInputDeviceList: %w", callErr)
	}
	if count == 0 {
		return nil, nil
	}

	list := make([]rawInputDeviceList, count)
	ret, _, callErr = procGetRawInputDeviceList.Call(uintptr(unsafe.Pointer(&list[0])), uintptr(unsafe.Pointer(&count)), entrySize)
	if int32(ret) == -1 {
		return nil, fmt.Errorf("GetRawInputDeviceList: %w", callErr)
	}

	var devices []DeviceInfo
	for _, entry := range list[:ret] {
		if entry.Type != rimTypeHID {
			continue
		}
		info := rawDeviceInfo{}
		info.Size = uint32(unsafe.Sizeof(info))
		size := info.Size
		r, _, _ := procGetRawInputDeviceInfoW.Call(uintptr(entry.Device), ridiDeviceInfo, uintptr(unsafe.Pointer(&info)), uintptr(unsafe.Pointer(&size)))
		if int32(r) <= 0 {
			continue
		}
		if info.UsagePage != hidreport.UsagePageDigitizer || info.Usage != hidreport.UsageTouchPad {
			continue
		}
		devices = append(devices, DeviceInfo{
			Path:      deviceName(entry.Device),
			Name:      fmt.Sprintf("HID touchpad %04x:%04x", info.VendorID, info.ProductID),
			IsPointer: true,
		})
	}
	return devices, nil
}

func deviceName(device windows.Handle) string {
	var chars uint32
	ret, _, _ := procGetRawInputDeviceInfoW.Call(uintptr(device), ridiDeviceName, 0, uintptr(unsafe.Pointer(&chars)))
	if int32(ret) != 0 || chars == 0 {
		return fmt.Sprintf("%#x", uintptr(device))
	}
	buf := make([]uint16, chars)
	ret, _, _ = procGetRawInputDeviceInfoW.Call(uintptr(device), ridiDeviceName, uintptr(unsafe.Pointer(&buf[0])), uintptr(unsafe.Pointer(&chars)))
	if int32(ret) <= 0 {
		return fmt.Sprintf("%#x", uintptr(device))
	}
	return windows.UTF16ToString(buf)
}
