package x11input

import (
	"github.com/BurntSushi/xgb/xproto"

	"touchpadhold/internal/core/holddetect"
)

// buttonIndex maps a pointer button code to its core X11 button number.
func buttonIndex(code uint16) (byte, bool) {
	switch code {
	case holddetect.LeftButtonCode:
		return byte(xproto.ButtonIndex1), true
	case holddetect.MiddleButtonCode:
		return byte(xproto.ButtonIndex2), true
	case holddetect.RightButtonCode:
		return byte(xproto.ButtonIndex3), true
	default:
		return 0, false
	}
}

// fakeInputType maps a key event value to an XTEST event type.
func fakeInputType(value int32) (byte, bool) {
	switch value {
	case 1:
		return xproto.ButtonPress, true
	case 0:
		return xproto.ButtonRelease, true
	default:
		return 0, false
	}
}
