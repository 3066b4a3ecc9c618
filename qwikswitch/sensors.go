package qwikswitch

import (
	"math"
	"strconv"
)

// Sensor decoders below are speculative probes: each is applied to packets
// regardless of device type and reports ok == false when the payload's
// length or leading tag byte does not match, which is not an error.
//
// Payload layout, first byte identifies the sensor:
//   4e = imod        46 = door sensor    0f = pir    34 = temperature/humidity
// second byte is the firmware version in all of them.

// DecodeQwikcord extracts the current measurements from a qwikcord 'val'
// field, channel 1 being CTavg and channel 2 CTsum.
func DecodeQwikcord(val string, channel int) (int, bool) {
	if len(val) != 16 {
		return 0, false
	}

	switch channel {
	case 1:
		return parseHex(val[6:12])
	case 2:
		return parseHex(val[12:16])
	}

	return 0, false
}

// DecodeDoor reports whether a door sensor is open.
func DecodeDoor(data string, channel int) (bool, bool) {
	if len(data) != 6 || !hasTag(data, "46") || channel != 1 {
		return false, false
	}

	return data[5] == '0', true
}

// imod channel positions, a (nibble index, bit mask) per channel. The unit
// reports 4 channels, 6 may be possible on newer firmware.
var imodChannelMasks = [][2]int{{5, 1}, {5, 2}, {5, 4}, {4, 1}, {5, 1}, {5, 2}}

// DecodeIMod reports whether the given imod channel is closed.
func DecodeIMod(data string, channel int) (bool, bool) {
	if len(data) != 8 || !hasTag(data, "4e") {
		return false, false
	}

	if channel < 1 || channel > len(imodChannelMasks) {
		return false, false
	}

	position := imodChannelMasks[channel-1]

	nibble, ok := parseHex(data[position[0] : position[0]+1])
	if !ok {
		return false, false
	}

	return nibble&position[1] == 0, true
}

// DecodePIR reports whether a PIR is signalling movement. Bytes 2 and 3
// carry the number of seconds the PIR keeps requesting a reaction for.
func DecodePIR(data string, channel int) (bool, bool) {
	if len(data) != 8 || !hasTag(data, "0f") || channel != 1 {
		return false, false
	}

	seconds, ok := parseHex(data[4:8])
	if !ok {
		return false, false
	}

	return seconds > 0, true
}

// DecodeTemperature extracts degrees celsius from a combined temperature
// and humidity payload, bytes 4-5 carrying the raw temperature.
func DecodeTemperature(data string, channel int) (int, bool) {
	if len(data) != 12 || !hasTag(data, "34") || channel != 1 {
		return 0, false
	}

	raw, ok := parseHex(data[8:12])
	if !ok {
		return 0, false
	}

	return int(math.Round(-46.85 + (175.72 * (float64(raw) / 65536)))), true
}

// DecodeHumidity extracts relative humidity from a combined temperature and
// humidity payload, bytes 2-3 carrying the raw humidity.
func DecodeHumidity(data string, channel int) (int, bool) {
	if len(data) != 12 || !hasTag(data, "34") || channel != 1 {
		return 0, false
	}

	raw, ok := parseHex(data[4:8])
	if !ok {
		return 0, false
	}

	return int(math.Round(-6 + (125 * (float64(raw) / 65536)))), true
}

func hasTag(data string, tag string) bool {
	return len(data) >= 2 && data[:2] == tag
}

func parseHex(s string) (int, bool) {
	val, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, false
	}

	return int(val), true
}
