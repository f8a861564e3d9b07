package wininput

import (
	"encoding/binary"
	"fmt"

	"touchpadhold/internal/core/holddetect"
)

// MOUSEINPUT dwFlags for the buttons a hold can press.
const (
	mouseeventfLeftDown   uint32 = 0x0002
	mouseeventfLeftUp     uint32 = 0x0004
	mouseeventfRightDown  uint32 = 0x0008
	mouseeventfRightUp    uint32 = 0x0010
	mouseeventfMiddleDown uint32 = 0x0020
	mouseeventfMiddleUp   uint32 = 0x0040
)

// rawHIDHeaderSize covers RAWHID.dwSizeHid and RAWHID.dwCount.
const rawHIDHeaderSize = 8

var buttonToFlags = map[uint16][2]uint32{
	holddetect.LeftButtonCode:   {mouseeventfLeftUp, mouseeventfLeftDown},
	holddetect.RightButtonCode:  {mouseeventfRightUp, mouseeventfRightDown},
	holddetect.MiddleButtonCode: {mouseeventfMiddleUp, mouseeventfMiddleDown},
}

// ButtonFlags maps a key event on a pointer button to SendInput flags.
func ButtonFlags(code uint16, value int32) (uint32, bool) {
	flags, ok := buttonToFlags[code]
	if !ok || (value != 0 && value != 1) {
		return 0, false
	}
	return flags[value], true
}

// splitRawHID splits a RAWHID payload into its dwCount reports of dwSizeHid
// bytes each. The returned slices alias payload.
func splitRawHID(payload []byte) ([][]byte, error) {
	if len(payload) < rawHIDHeaderSize {
		return nil, fmt.Errorf("truncated RAWHID header: %d bytes", len(payload))
	}
	sizeHID := int(binary.LittleEndian.Uint32(payload[0:4]))
	count := int(binary.LittleEndian.Uint32(payload[4:8]))
	data := payload[rawHIDHeaderSize:]
	if sizeHID == 0 || count == 0 || count > len(data)/sizeHID {
		return nil, fmt.Errorf("RAWHID declares %d reports of %d bytes, have %d bytes", count, sizeHID, len(data))
	}

	reports := make([][]byte, 0, count)
	for i := 0; i < count; i++ {
		reports = append(reports, data[i*sizeHID:(i+1)*sizeHID])
	}
	return reports, nil
}
