package qwikswitch

import (
	"fmt"
	"github.com/tidwall/gjson"
)

// Field names used within QSUSB JSON packets.
const (
	FieldID      = "id"
	FieldValue   = "val"
	FieldType    = "type"
	FieldName    = "name"
	FieldData    = "data"
	FieldCommand = "cmd"
	FieldRSSI    = "rssi"
)

// Button commands which may appear in the 'cmd' field of a &listen packet,
// TOGGLE for a normal button, SCENE EXE to execute a scene and LEVEL to
// switch all lights off.
var buttonCommands = []string{"TOGGLE", "SCENE EXE", "LEVEL"}

type packetError string

func (p packetError) Error() string {
	return string(p)
}

const ErrMalformedPacket = packetError("malformed packet")

// Packet is a single raw packet from the QSUSB hub, either an entry of the
// &device list or the body of a &listen reply. Any fields beyond the well
// known set are retained in Extra for the sensor probe decoders.
type Packet struct {
	ID      string
	Value   string
	Type    string
	Name    string
	Data    string
	Command string
	RSSI    string

	Extra map[string]string
}

func (p Packet) HasCommand() bool {
	return p.Command != ""
}

func (p Packet) IsButtonCommand() bool {
	for _, cmd := range buttonCommands {
		if p.Command == cmd {
			return true
		}
	}

	return false
}

// ParsePacket decodes a single JSON object into a Packet. The hub emits
// values of mixed JSON types, so every field is coerced to a string.
func ParsePacket(data []byte) (Packet, error) {
	if !gjson.ValidBytes(data) {
		return Packet{}, fmt.Errorf("%w: invalid json", ErrMalformedPacket)
	}

	result := gjson.ParseBytes(data)
	if !result.IsObject() {
		return Packet{}, fmt.Errorf("%w: expected object", ErrMalformedPacket)
	}

	return packetFromResult(result), nil
}

// ParsePacketList decodes the JSON array returned by the &device endpoint.
func ParsePacketList(data []byte) ([]Packet, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid json", ErrMalformedPacket)
	}

	result := gjson.ParseBytes(data)
	if !result.IsArray() {
		return nil, fmt.Errorf("%w: expected array", ErrMalformedPacket)
	}

	var packets []Packet

	for _, entry := range result.Array() {
		if !entry.IsObject() {
			return nil, fmt.Errorf("%w: expected array of objects", ErrMalformedPacket)
		}

		packets = append(packets, packetFromResult(entry))
	}

	return packets, nil
}

func packetFromResult(result gjson.Result) Packet {
	p := Packet{}

	result.ForEach(func(key, value gjson.Result) bool {
		switch key.String() {
		case FieldID:
			p.ID = value.String()
		case FieldValue:
			p.Value = value.String()
		case FieldType:
			p.Type = value.String()
		case FieldName:
			p.Name = value.String()
		case FieldData:
			p.Data = value.String()
		case FieldCommand:
			p.Command = value.String()
		case FieldRSSI:
			p.RSSI = value.String()
		default:
			if p.Extra == nil {
				p.Extra = map[string]string{}
			}
			p.Extra[key.String()] = value.String()
		}

		return true
	})

	return p
}
