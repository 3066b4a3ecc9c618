package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/qsusb/qwikswitch"
	"github.com/shimmeringbee/qsusb/state"
)

type Publisher func(ctx context.Context, topic string, payload []byte) error

type mqttError string

func (m mqttError) Error() string {
	return string(m)
}

const UnknownTopic = mqttError("unknown topic")
const UnknownDevice = mqttError("unknown device")

type DeviceStore interface {
	Devices() []qwikswitch.Device
	SetValue(string, int) error
}

type Interface struct {
	Publisher Publisher
	stop      chan struct{}
	stopOnce  sync.Once

	DeviceStore     DeviceStore
	EventSubscriber state.EventSubscriber
	Logger          logwrap.Logger

	PublishStateOnConnect bool
}

// IncomingMessage routes a message by topic, currently only
// devices/<id>/value/set carrying the desired fixed point value.
func (i *Interface) IncomingMessage(ctx context.Context, topic string, payload []byte) error {
	topicParts := strings.Split(topic, "/")

	if len(topicParts) == 4 && topicParts[0] == "devices" && topicParts[2] == "value" && topicParts[3] == "set" {
		return i.incomingSetValue(ctx, topicParts[1], payload)
	}

	return fmt.Errorf("%w: %s", UnknownTopic, topic)
}

func (i *Interface) incomingSetValue(ctx context.Context, id string, payload []byte) error {
	value, err := strconv.Atoi(strings.TrimSpace(string(payload)))
	if err != nil {
		return fmt.Errorf("failed to parse value payload: %w", err)
	}

	if err := i.DeviceStore.SetValue(id, value); err != nil {
		return fmt.Errorf("%w: %s", UnknownDevice, id)
	}

	return nil
}

func EmptyPublisher(ctx context.Context, topic string, payload []byte) error {
	return nil
}

func (i *Interface) Connected(ctx context.Context, publisher Publisher) error {
	i.Publisher = publisher

	if i.PublishStateOnConnect {
		i.Logger.LogInfo(ctx, "MQTT connected, publishing current state of all devices.")
		go i.publishAll()
	}

	return nil
}

func (i *Interface) Disconnected() {
	i.Publisher = EmptyPublisher
}

func (i *Interface) publishAll() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, device := range i.DeviceStore.Devices() {
		i.publishValue(ctx, device.ID, device.Value)
	}
}

func (i *Interface) publishValue(ctx context.Context, id string, value int) {
	payload, err := json.Marshal(struct {
		Value int
	}{Value: value})
	if err != nil {
		i.Logger.LogError(ctx, "Failed to marshal device value.", logwrap.Datum("device", id), logwrap.Err(err))
		return
	}

	topic := fmt.Sprintf("devices/%s/value", id)

	if err := i.Publisher(ctx, topic, payload); err != nil {
		i.Logger.LogError(ctx, "Failed to publish device value.", logwrap.Datum("device", id), logwrap.Err(err))
	}
}

func (i *Interface) Start() {
	i.stop = make(chan struct{})

	ch := make(chan state.Event, 100)
	i.EventSubscriber.Subscribe(ch)

	go i.eventLoop(ch)
}

func (i *Interface) eventLoop(ch chan state.Event) {
	defer i.EventSubscriber.Unsubscribe(ch)

	for {
		select {
		case event := <-ch:
			if changed, ok := event.(state.DeviceValueChanged); ok {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				i.publishValue(ctx, changed.ID, changed.Value)
				cancel()
			}
		case <-i.stop:
			return
		}
	}
}

// Stop halts the event loop, it is safe to invoke more than once.
func (i *Interface) Stop() {
	i.stopOnce.Do(func() {
		close(i.stop)
	})
}
