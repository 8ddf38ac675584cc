package nmea

import (
	"fmt"
	"strconv"
)

// Summarize renders a watched sentence as a short human-readable line.
// The second return value is false when the sentence cannot be parsed.
func Summarize(messageID, sentence string) (string, bool) {
	fields := Fields(sentence)
	if len(fields) == 0 {
		return "", false
	}
	switch messageID {
	case "GSA":
		return summarizeGSA(fields), true
	case "GSV":
		return summarizeGSV(fields), true
	case "GNS":
		return summarizeGNS(fields), true
	case "RMC":
		return summarizeRMC(fields), true
	case "GBS":
		return summarizeGBS(fields), true
	case "GST":
		return summarizeGST(fields), true
	default:
		return "", false
	}
}

func summarizeGSA(fields []string) string {
	mode := "unknown"
	switch field(fields, 1) {
	case "A":
		mode = "automatic"
	case "M":
		mode = "manual"
	}
	fix := "unknown"
	switch field(fields, 2) {
	case "1":
		fix = "no-fix"
	case "2":
		fix = "2D"
	case "3":
		fix = "3D"
	}
	used := 0
	for i := 3; i < 15 && i < len(fields); i++ {
		if fields[i] != "" {
			used++
		}
	}
	return fmt.Sprintf("mode=%s fix=%s sats_used=%d pdop=%s hdop=%s vdop=%s",
		mode, fix, used, nz(field(fields, 15)), nz(field(fields, 16)), nz(field(fields, 17)))
}

func summarizeGSV(fields []string) string {
	talker := "-"
	if len(field(fields, 0)) >= 2 {
		talker = field(fields, 0)[:2]
	}
	return fmt.Sprintf("msg=%s/%s sats_in_view=%s talker=%s",
		nz(field(fields, 2)), nz(field(fields, 1)), nz(field(fields, 3)), talker)
}

func summarizeGNS(fields []string) string {
	lat := formatCoord(parseCoord(field(fields, 2), field(fields, 3), 2))
	lon := formatCoord(parseCoord(field(fields, 4), field(fields, 5), 3))
	return fmt.Sprintf("time=%s mode=%s sats_used=%s hdop=%s lat=%s lon=%s alt_m=%s",
		nz(field(fields, 1)), nz(field(fields, 6)), nz(field(fields, 7)),
		nz(field(fields, 8)), lat, lon, nz(field(fields, 9)))
}

func summarizeRMC(fields []string) string {
	status := "unknown"
	switch field(fields, 2) {
	case "A":
		status = "valid"
	case "V":
		status = "warning"
	}
	speed := "-"
	if knots, err := strconv.ParseFloat(field(fields, 7), 64); err == nil {
		speed = fmt.Sprintf("%.2f kn/%.2f kmh", knots, knots*1.852)
	}
	lat := formatCoord(parseCoord(field(fields, 3), field(fields, 4), 2))
	lon := formatCoord(parseCoord(field(fields, 5), field(fields, 6), 3))
	return fmt.Sprintf("status=%s time=%s date=%s lat=%s lon=%s speed=%s course_deg=%s",
		status, nz(field(fields, 1)), nz(field(fields, 9)), lat, lon, speed, nz(field(fields, 8)))
}

func summarizeGBS(fields []string) string {
	return fmt.Sprintf("time=%s err_lat_m=%s err_lon_m=%s err_alt_m=%s failed_sat=%s prob=%s bias=%s stddev=%s",
		nz(field(fields, 1)), nz(field(fields, 2)), nz(field(fields, 3)), nz(field(fields, 4)),
		nz(field(fields, 5)), nz(field(fields, 6)), nz(field(fields, 7)), nz(field(fields, 8)))
}

func summarizeGST(fields []string) string {
	return fmt.Sprintf("time=%s rms_m=%s semi_major_m=%s semi_minor_m=%s orient_deg=%s sigma_lat_m=%s sigma_lon_m=%s sigma_alt_m=%s",
		nz(field(fields, 1)), nz(field(fields, 2)), nz(field(fields, 3)), nz(field(fields, 4)),
		nz(field(fields, 5)), nz(field(fields, 6)), nz(field(fields, 7)), nz(field(fields, 8)))
}

// parseCoord converts NMEA ddmm.mmmm / dddmm.mmmm plus hemisphere into
// signed decimal degrees.
func parseCoord(value, hemi string, degreeDigits int) (float64, bool) {
	if len(value) <= degreeDigits {
		return 0, false
	}
	degrees, err := strconv.ParseFloat(value[:degreeDigits], 64)
	if err != nil {
		return 0, false
	}
	minutes, err := strconv.ParseFloat(value[degreeDigits:], 64)
	if err != nil {
		return 0, false
	}
	decimal := degrees + minutes/60
	if hemi == "S" || hemi == "W" {
		decimal = -decimal
	}
	return decimal, true
}

func formatCoord(coord float64, ok bool) string {
	if !ok {
		return "-"
	}
	return strconv.FormatFloat(coord, 'f', 6, 64)
}

func field(fields []string, idx int) string {
	if idx >= len(fields) {
		return ""
	}
	return fields[idx]
}

func nz(raw string) string {
	if raw == "" {
		return "-"
	}
	return raw
}
