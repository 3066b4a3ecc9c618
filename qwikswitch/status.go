package qwikswitch

import (
	"math"
	"strconv"
	"strings"
)

// Max is the upper bound of the fixed point scale used for device values,
// giving sub-percent resolution over the hub's 0-100 range.
const Max = 255

// UnknownValue is held by a device before its first successful decode.
const UnknownValue = -5

// DecodeFailed is returned by DecodeLegacyStatus when no known encoding
// matched. Callers are expected to surface it, not treat it as off.
const DecodeFailed = -1

// DecodeLegacyStatus converts a raw hub status string to a 0-100 value.
//
// The hub has shipped at least three incompatible value encodings over its
// hardware generations and provides no version flag, so each rule below is
// tried in turn against the bare string. The first three rules are a
// faithful port of the decode in the vendor's qsmobile.js; the remainder
// cover the newer text based encodings.
func DecodeLegacyStatus(stat string) int {
	if strings.HasPrefix(stat, "30") || strings.HasPrefix(stat, "47") { // RX1 CT
		if len(stat) >= 5 {
			switch stat[4] {
			case '0':
				return 0
			case '8':
				return 100
			}
		}
	}

	switch stat {
	case "7e":
		return 0
	case "7f":
		return 100
	}

	if len(stat) == 6 { // old 3 byte format
		val, err := strconv.ParseUint(stat[4:], 16, 16)
		if err != nil {
			val = 0
		}

		switch stat[:2] {
		case "01": // old dim
			return int(math.Round((125 - float64(val)) / 125 * 100))
		case "02": // old rel
			if val == 127 {
				return 100
			}
			return 0
		case "28": // LED DIM
			if stat[2:4] == "01" && stat[4:] == "78" {
				return 0
			}
			return int(math.Round((120 - float64(val)) / 120 * 100))
		}
	}

	upper := strings.ToUpper(stat)

	if strings.Contains(upper, "ON") {
		return 100
	}

	if stat == "" || strings.Contains(upper, "OFF") {
		return 0
	}

	if strings.HasSuffix(stat, "%") { // new style dimmers
		if percent, ok := parsePercent(strings.TrimSuffix(stat, "%")); ok {
			return percent
		}
	}

	return DecodeFailed
}

func parsePercent(s string) (int, bool) {
	if s == "" {
		return 0, false
	}

	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}

	val, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}

	return val, true
}
