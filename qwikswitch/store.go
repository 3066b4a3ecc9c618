package qwikswitch

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/shimmeringbee/logwrap"
)

type DeviceType uint8

const (
	TypeUnknown DeviceType = iota
	TypeRelay
	TypeDimmer
	TypeHumidityTemperature
)

func (t DeviceType) String() string {
	switch t {
	case TypeRelay:
		return "relay"
	case TypeDimmer:
		return "dimmer"
	case TypeHumidityTemperature:
		return "humidityTemperature"
	}

	return "unknown"
}

// deviceTypeForTag decodes the hub's 'type' tag, any unmatched tag falls
// into TypeUnknown rather than failing.
func deviceTypeForTag(tag string) DeviceType {
	switch tag {
	case "rel":
		return TypeRelay
	case "dim":
		return TypeDimmer
	case "hum":
		return TypeHumidityTemperature
	}

	return TypeUnknown
}

// Device is the mirrored record of a single hub device. Type is assigned
// from the first packet that mentions the device and never changes, even
// if later packets omit the tag. Value is on the fixed point 0..Max scale,
// or UnknownValue before the first decode.
type Device struct {
	ID    string
	Type  DeviceType
	Name  string
	Value int

	Packet Packet
}

func (d Device) IsDimmer() bool {
	return d.Type == TypeDimmer
}

type storeError string

func (s storeError) Error() string {
	return string(s)
}

const ErrDeviceNotFound = storeError("device not found")

// ValueChanged is invoked with the device id and its new fixed point value.
// Implementations must not call back into the Store.
type ValueChanged func(id string, value int)

// SetRequester delivers an encoded hub scale value to the hub, invoking
// confirm only once the hub has acknowledged it.
type SetRequester func(id string, encoded int, confirm func())

// Store is the authoritative in-memory mirror of the hub's devices. Both
// the snapshot refresh and the listen event path reconcile through
// UpdateDevices, serialised by a single mutex so no caller ever observes a
// half applied record.
type Store struct {
	lock    sync.Mutex
	devices map[string]*Device

	dimAdjust      float64
	onValueChanged ValueChanged
	requestSet     SetRequester
	logger         logwrap.Logger
}

// NewStore constructs a Store. dimAdjust is the exponent of the dimmer
// response curve, compensating for the non-linear perceived brightness of
// the LED dimmers; values at or below zero fall back to the neutral 1.
func NewStore(dimAdjust float64, changed ValueChanged, set SetRequester, logger logwrap.Logger) *Store {
	if dimAdjust <= 0 {
		dimAdjust = 1
	}

	return &Store{
		devices:        map[string]*Device{},
		dimAdjust:      dimAdjust,
		onValueChanged: changed,
		requestSet:     set,
		logger:         logger,
	}
}

// UpdateDevices reconciles a batch of raw packets into the mirror, firing
// the value changed callback for each device whose decoded value moved by
// more than one fixed point unit. The threshold absorbs the rounding
// jitter of the 0-100 to 0-255 rescale, so an unchanged physical state
// never fires on a snapshot poll.
func (s *Store) UpdateDevices(packets []Packet) {
	s.lock.Lock()
	defer s.lock.Unlock()

	ctx := context.Background()

	for _, packet := range packets {
		if packet.ID == "" {
			s.logger.LogDebug(ctx, "Ignoring packet without a device id.", logwrap.Datum("packet", fmt.Sprintf("%+v", packet)))
			continue
		}

		device, found := s.devices[packet.ID]
		if !found {
			device = &Device{ID: packet.ID, Type: deviceTypeForTag(packet.Type), Value: UnknownValue}
			s.devices[packet.ID] = device
		}

		device.Packet = packet
		if packet.Name != "" {
			device.Name = packet.Name
		}

		decoded := DecodeLegacyStatus(packet.Value)
		if decoded == DecodeFailed {
			s.logger.LogDebug(ctx, "Status decode fell back to -1.", logwrap.Datum("id", packet.ID), logwrap.Datum("val", packet.Value))
		}

		if device.IsDimmer() {
			// Adjust exponentially to smooth the dimmer's hardware
			// response. A failed decode is clamped first, the curve is
			// undefined for negative bases with fractional exponents.
			if decoded < 0 {
				decoded = 0
			}
			decoded = int(math.Min(math.Round(math.Pow(float64(decoded), s.dimAdjust)), 100))
		}

		scaled := int(math.Round(float64(decoded) * Max / 100))

		if abs(device.Value-scaled) > 1 {
			s.logger.LogDebug(ctx, "Device value changed.", logwrap.Datum("id", packet.ID), logwrap.Datum("value", scaled))
			device.Value = scaled
			s.onValueChanged(device.ID, scaled)
		}
	}
}

// SetValue encodes a desired fixed point value for the hub and hands it to
// the set requester. The mirrored record is only updated once the hub
// confirms, via a closure that can resolve at most once, so the store
// never reports a value the hub has not acknowledged.
func (s *Store) SetValue(id string, desired int) error {
	s.lock.Lock()

	device, found := s.devices[id]
	if !found {
		s.lock.Unlock()
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}

	if desired < 0 {
		desired = 0
	}

	if desired == device.Value {
		s.lock.Unlock()
		return nil
	}

	target := desired
	if device.IsDimmer() {
		if float64(target) > Max*0.9 {
			target = Max
		}
	} else { // relay and anything else is binary
		if target > 0 {
			target = Max
		} else {
			target = 0
		}
	}

	dimAdjust := s.dimAdjust
	s.lock.Unlock()

	// Invert the dimmer response curve applied in UpdateDevices.
	encoded := int(math.Round(math.Pow(math.Round(float64(target)/Max*100), 1/dimAdjust)))

	once := &sync.Once{}
	s.requestSet(id, encoded, func() {
		once.Do(func() {
			s.confirmValue(id, target)
		})
	})

	return nil
}

func (s *Store) confirmValue(id string, value int) {
	s.lock.Lock()
	defer s.lock.Unlock()

	device, found := s.devices[id]
	if !found {
		return
	}

	s.logger.LogDebug(context.Background(), "Set confirmed by hub.", logwrap.Datum("id", id), logwrap.Datum("value", value))
	device.Value = value
	s.onValueChanged(id, value)
}

// Device returns a copy of the record for id.
func (s *Store) Device(id string) (Device, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if device, found := s.devices[id]; found {
		return *device, true
	}

	return Device{}, false
}

// Devices returns a copy of all known records.
func (s *Store) Devices() []Device {
	s.lock.Lock()
	defer s.lock.Unlock()

	result := make([]Device, 0, len(s.devices))
	for _, device := range s.devices {
		result = append(result, *device)
	}

	return result
}

func (s *Store) Len() int {
	s.lock.Lock()
	defer s.lock.Unlock()

	return len(s.devices)
}

func abs(i int) int {
	if i < 0 {
		return -i
	}

	return i
}
