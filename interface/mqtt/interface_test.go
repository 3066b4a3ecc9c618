package mqtt

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/logwrap/impl/discard"
	"github.com/shimmeringbee/qsusb/qwikswitch"
	"github.com/shimmeringbee/qsusb/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockDeviceStore struct {
	mock.Mock
}

func (m *MockDeviceStore) Devices() []qwikswitch.Device {
	args := m.Called()
	return args.Get(0).([]qwikswitch.Device)
}

func (m *MockDeviceStore) SetValue(id string, value int) error {
	args := m.Called(id, value)
	return args.Error(0)
}

type publishRecorder struct {
	lock     sync.Mutex
	messages map[string]string
}

func (p *publishRecorder) publish(ctx context.Context, topic string, payload []byte) error {
	p.lock.Lock()
	defer p.lock.Unlock()

	if p.messages == nil {
		p.messages = map[string]string{}
	}
	p.messages[topic] = string(payload)
	return nil
}

func (p *publishRecorder) message(topic string) string {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.messages[topic]
}

func TestInterfaceIncomingMessage(t *testing.T) {
	t.Run("routes a set value message to the store", func(t *testing.T) {
		mds := &MockDeviceStore{}
		defer mds.AssertExpectations(t)

		mds.On("SetValue", "@0c2700", 255).Return(nil)

		i := Interface{DeviceStore: mds, Logger: logwrap.New(discard.Discard())}

		err := i.IncomingMessage(context.Background(), "devices/@0c2700/value/set", []byte("255"))
		assert.NoError(t, err)
	})

	t.Run("errors for an unknown device", func(t *testing.T) {
		mds := &MockDeviceStore{}
		defer mds.AssertExpectations(t)

		mds.On("SetValue", "@missing", 0).Return(qwikswitch.ErrDeviceNotFound)

		i := Interface{DeviceStore: mds, Logger: logwrap.New(discard.Discard())}

		err := i.IncomingMessage(context.Background(), "devices/@missing/value/set", []byte("0"))
		assert.ErrorIs(t, err, UnknownDevice)
	})

	t.Run("errors for an unparsable payload", func(t *testing.T) {
		i := Interface{Logger: logwrap.New(discard.Discard())}

		err := i.IncomingMessage(context.Background(), "devices/@0c2700/value/set", []byte("up"))
		assert.Error(t, err)
	})

	t.Run("errors for an unknown topic", func(t *testing.T) {
		i := Interface{Logger: logwrap.New(discard.Discard())}

		err := i.IncomingMessage(context.Background(), "devices/@0c2700/name", []byte("x"))
		assert.ErrorIs(t, err, UnknownTopic)
	})
}

func TestInterfaceConnected(t *testing.T) {
	t.Run("publishes all device values on connect when configured", func(t *testing.T) {
		mds := &MockDeviceStore{}
		defer mds.AssertExpectations(t)

		mds.On("Devices").Return([]qwikswitch.Device{
			{ID: "@0c2700", Type: qwikswitch.TypeRelay, Value: 255},
		})

		recorder := &publishRecorder{}

		i := Interface{DeviceStore: mds, Logger: logwrap.New(discard.Discard()), PublishStateOnConnect: true}

		assert.NoError(t, i.Connected(context.Background(), recorder.publish))

		assert.Eventually(t, func() bool {
			return recorder.message("devices/@0c2700/value") == `{"Value":255}`
		}, time.Second, 10*time.Millisecond)
	})
}

func TestInterfaceEventLoop(t *testing.T) {
	t.Run("publishes value change events from the bus", func(t *testing.T) {
		bus := state.NewEventBus()
		recorder := &publishRecorder{}

		i := Interface{
			Publisher:       recorder.publish,
			EventSubscriber: bus,
			Logger:          logwrap.New(discard.Discard()),
		}

		i.Start()
		defer i.Stop()

		assert.Eventually(t, func() bool {
			bus.Publish(state.DeviceValueChanged{ID: "@0c2701", Value: 99})
			return recorder.message("devices/@0c2701/value") == `{"Value":99}`
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("stop is safe to call twice", func(t *testing.T) {
		bus := state.NewEventBus()

		i := Interface{
			Publisher:       EmptyPublisher,
			EventSubscriber: bus,
			Logger:          logwrap.New(discard.Discard()),
		}

		i.Start()

		i.Stop()
		i.Stop()
	})
}
