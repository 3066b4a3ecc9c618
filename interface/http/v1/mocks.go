package v1

import (
	"context"

	"github.com/shimmeringbee/qsusb/qwikswitch"
	"github.com/stretchr/testify/mock"
)

var _ DeviceStore = (*MockDeviceStore)(nil)

type MockDeviceStore struct {
	mock.Mock
}

func (m *MockDeviceStore) Devices() []qwikswitch.Device {
	args := m.Called()
	return args.Get(0).([]qwikswitch.Device)
}

func (m *MockDeviceStore) Device(id string) (qwikswitch.Device, bool) {
	args := m.Called(id)
	return args.Get(0).(qwikswitch.Device), args.Bool(1)
}

func (m *MockDeviceStore) SetValue(id string, value int) error {
	args := m.Called(id, value)
	return args.Error(0)
}

var _ HubInfo = (*MockHubInfo)(nil)

type MockHubInfo struct {
	mock.Mock
}

func (m *MockHubInfo) Version(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}
