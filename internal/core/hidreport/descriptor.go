package hidreport

import (
	"errors"
	"fmt"
)

// Item types and tags of the short item encoding (HID 1.11, 6.2.2).
const (
	itemTypeMain   = 0
	itemTypeGlobal = 1
	itemTypeLocal  = 2

	mainInput         = 0x8
	mainOutput        = 0x9
	mainCollection    = 0xA
	mainFeature       = 0xB
	mainEndCollection = 0xC

	globalUsagePage   = 0x0
	globalLogicalMin  = 0x1
	globalLogicalMax  = 0x2
	globalReportSize  = 0x7
	globalReportID    = 0x8
	globalReportCount = 0x9
	globalPush        = 0xA
	globalPop         = 0xB

	localUsage    = 0x0
	localUsageMin = 0x1
	localUsageMax = 0x2

	longItemPrefix = 0xFE

	collectionApplication = 0x01

	inputFlagConstant = 1 << 0
	inputFlagVariable = 1 << 1
)

var ErrMalformedDescriptor = errors.New("malformed report descriptor")

// Usage is a usage page and ID pair.
type Usage struct {
	Page uint16
	ID   uint16
}

type Descriptor struct {
	// Applications lists the top-level application collections in order.
	Applications []Usage
	// Inputs holds one capability per variable input field wider than one bit.
	Inputs []ValueCap
}

// IsTouchpad reports whether the device declares a Digitizer Touch Pad
// application collection.
func (d *Descriptor) IsTouchpad() bool {
	for _, app := range d.Applications {
		if app.Page == UsagePageDigitizer && app.ID == UsageTouchPad {
			return true
		}
	}
	return false
}

type globalState struct {
	usagePage   uint16
	logicalMin  int32
	logicalMax  int32
	// logicalMaxU is the maximum read without sign extension.
	logicalMaxU uint32
	reportSize  int
	reportID    uint8
	reportCount int
}

type localState struct {
	usages   []Usage
	usageMin Usage
	usageMax Usage
	hasMin   bool
	hasMax   bool
}

func (l *localState) usageAt(i int) (Usage, bool) {
	if l.hasMin && l.hasMax {
		id := int(l.usageMin.ID) + i
		if id > int(l.usageMax.ID) {
			id = int(l.usageMax.ID)
		}
		return Usage{Page: l.usageMin.Page, ID: uint16(id)}, true
	}
	if len(l.usages) == 0 {
		return Usage{}, false
	}
	if i >= len(l.usages) {
		return l.usages[len(l.usages)-1], true
	}
	return l.usages[i], true
}

// ParseDescriptor walks a HID report descriptor and collects the input value
// fields. Long items are skipped.
func ParseDescriptor(raw []byte) (*Descriptor, error) {
	var (
		desc       Descriptor
		global     globalState
		stack      []globalState
		local      localState
		depth      int
		links      []uint16
		nextLink   uint16
		bitOffsets = make(map[uint8]int)
	)

	for pos := 0; pos < len(raw); {
		prefix := raw[pos]
		if prefix == longItemPrefix {
			if pos+1 >= len(raw) {
				return nil, fmt.Errorf("%w: truncated long item at %d", ErrMalformedDescriptor, pos)
			}
			pos += 3 + int(raw[pos+1])
			continue
		}

		size := int(prefix & 0x3)
		if size == 3 {
			size = 4
		}
		itemType := (prefix >> 2) & 0x3
		tag := prefix >> 4
		if pos+1+size > len(raw) {
			return nil, fmt.Errorf("%w: item %#x at %d overruns descriptor", ErrMalformedDescriptor, prefix, pos)
		}
		data := raw[pos+1 : pos+1+size]
		pos += 1 + size

		udata := itemUnsigned(data)
		switch itemType {
		case itemTypeMain:
			switch tag {
			case mainCollection:
				usage, _ := local.usageAt(0)
				if depth == 0 && udata == collectionApplication {
					desc.Applications = append(desc.Applications, usage)
				}
				nextLink++
				links = append(links, nextLink)
				depth++
			case mainEndCollection:
				if depth == 0 {
					return nil, fmt.Errorf("%w: unbalanced end collection at %d", ErrMalformedDescriptor, pos-1-size)
				}
				depth--
				links = links[:len(links)-1]
			case mainInput:
				var link uint16
				if len(links) > 0 {
					link = links[len(links)-1]
				}
				bitOffsets[global.reportID] = addInputFields(&desc, global, &local, udata, link, bitOffsets[global.reportID])
			case mainOutput, mainFeature:
				// Not part of input reports.
			}
			local = localState{}
		case itemTypeGlobal:
			switch tag {
			case globalUsagePage:
				global.usagePage = uint16(udata)
			case globalLogicalMin:
				global.logicalMin = itemSigned(data)
			case globalLogicalMax:
				global.logicalMax = itemSigned(data)
				global.logicalMaxU = udata
			case globalReportSize:
				global.reportSize = int(udata)
			case globalReportID:
				if udata == 0 || udata > 0xFF {
					return nil, fmt.Errorf("%w: invalid report id %d", ErrMalformedDescriptor, udata)
				}
				global.reportID = uint8(udata)
			case globalReportCount:
				global.reportCount = int(udata)
			case globalPush:
				stack = append(stack, global)
			case globalPop:
				if len(stack) == 0 {
					return nil, fmt.Errorf("%w: pop without push", ErrMalformedDescriptor)
				}
				global = stack[len(stack)-1]
				stack = stack[:len(stack)-1]
			}
		case itemTypeLocal:
			usage := Usage{Page: global.usagePage, ID: uint16(udata)}
			if size == 4 {
				usage = Usage{Page: uint16(udata >> 16), ID: uint16(udata)}
			}
			switch tag {
			case localUsage:
				local.usages = append(local.usages, usage)
			case localUsageMin:
				local.usageMin, local.hasMin = usage, true
			case localUsageMax:
				local.usageMax, local.hasMax = usage, true
			}
		}
	}

	if depth != 0 {
		return nil, fmt.Errorf("%w: %d unterminated collections", ErrMalformedDescriptor, depth)
	}
	return &desc, nil
}

func addInputFields(desc *Descriptor, global globalState, local *localState, flags uint32, link uint16, offset int) int {
	width := global.reportSize * global.reportCount
	if flags&inputFlagConstant != 0 || flags&inputFlagVariable == 0 || global.reportSize <= 1 {
		return offset + width
	}

	logicalMax := global.logicalMax
	if global.logicalMin >= 0 && logicalMax < 0 && global.logicalMaxU <= 1<<31-1 {
		logicalMax = int32(global.logicalMaxU)
	}

	for i := 0; i < global.reportCount; i++ {
		usage, ok := local.usageAt(i)
		if !ok || usage.Page == UsagePageButton {
			continue
		}
		desc.Inputs = append(desc.Inputs, ValueCap{
			UsagePage:      usage.Page,
			Usage:          usage.ID,
			ReportID:       global.reportID,
			LinkCollection: link,
			BitOffset:      offset + i*global.reportSize,
			BitSize:        global.reportSize,
			ReportCount:    1,
			LogicalMin:     global.logicalMin,
			LogicalMax:     logicalMax,
		})
	}
	return offset + width
}

func itemUnsigned(data []byte) uint32 {
	var v uint32
	for i, b := range data {
		v |= uint32(b) << (8 * i)
	}
	return v
}

func itemSigned(data []byte) int32 {
	switch len(data) {
	case 1:
		return int32(int8(data[0]))
	case 2:
		return int32(int16(itemUnsigned(data)))
	case 4:
		return int32(itemUnsigned(data))
	default:
		return 0
	}
}
