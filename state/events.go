package state

import "github.com/shimmeringbee/qsusb/qwikswitch"

// Event is the closed set of notifications carried by the EventBus.
type Event interface {
	isEvent()
}

// DeviceValueChanged is published whenever the store applies a new value
// for a device, either through reconciliation or a confirmed set.
type DeviceValueChanged struct {
	ID    string
	Value int
}

func (DeviceValueChanged) isEvent() {}

// HubCommand is published for every command packet received on the hub's
// long poll, button presses included.
type HubCommand struct {
	Packet qwikswitch.Packet
}

func (HubCommand) isEvent() {}
