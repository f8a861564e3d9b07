package hidreport

import "fmt"

// ExtractUsageValue reads usage from report as described by vc. Values are
// little-endian bit fields; fields with a negative logical minimum are sign
// extended.
func ExtractUsageValue(vc ValueCap, usage uint16, report []byte) (int, error) {
	if vc.BitSize <= 0 || vc.BitSize > 32 {
		return 0, fmt.Errorf("unsupported field size %d bits", vc.BitSize)
	}
	if !vc.Covers(vc.UsagePage, usage) {
		return 0, fmt.Errorf("usage %#x not declared by capability", usage)
	}

	data := report
	if vc.ReportID != 0 {
		if len(report) == 0 {
			return 0, ErrReportTooShort
		}
		if report[0] != vc.ReportID {
			return 0, fmt.Errorf("%w: report %d, capability %d", ErrIncompatibleReport, report[0], vc.ReportID)
		}
		data = report[1:]
	}

	offset := vc.BitOffset
	if vc.IsRange {
		offset += int(usage-vc.UsageMin) * vc.BitSize
	}
	end := offset + vc.BitSize
	if offset < 0 || (end+7)/8 > len(data) {
		return 0, fmt.Errorf("%w: need %d bits, have %d", ErrReportTooShort, end, len(data)*8)
	}

	var raw uint32
	for bit := 0; bit < vc.BitSize; bit++ {
		pos := offset + bit
		if data[pos/8]&(1<<(pos%8)) != 0 {
			raw |= 1 << bit
		}
	}

	if vc.LogicalMin < 0 && vc.BitSize < 32 && raw&(1<<(vc.BitSize-1)) != 0 {
		return int(int32(raw | ^uint32(0)<<vc.BitSize)), nil
	}
	if vc.LogicalMin < 0 {
		return int(int32(raw)), nil
	}
	return int(raw), nil
}
