package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/shimmeringbee/qsusb/hub"
	"github.com/shimmeringbee/qsusb/qwikswitch"
)

type DeviceMapper interface {
	Devices() []qwikswitch.Device
	Device(string) (qwikswitch.Device, bool)
	SetValue(string, int) error
}

var _ DeviceMapper = (*HubMux)(nil)

// HubMux presents the devices of every configured hub as a single flat
// space to the interfaces. Device ids are unique per hub hardware, so a
// lookup is simply the first store that knows the id.
type HubMux struct {
	lock sync.RWMutex

	storeByName  map[string]*qwikswitch.Store
	clientByName map[string]*hub.Client
	hubNames     []string
}

func (m *HubMux) Add(name string, c *hub.Client, s *qwikswitch.Store) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.storeByName == nil {
		m.storeByName = map[string]*qwikswitch.Store{}
		m.clientByName = map[string]*hub.Client{}
	}

	m.storeByName[name] = s
	m.clientByName[name] = c

	m.hubNames = append(m.hubNames, name)
	sort.Strings(m.hubNames)
}

func (m *HubMux) Devices() []qwikswitch.Device {
	m.lock.RLock()
	defer m.lock.RUnlock()

	var result []qwikswitch.Device

	for _, name := range m.hubNames {
		result = append(result, m.storeByName[name].Devices()...)
	}

	return result
}

func (m *HubMux) Device(id string) (qwikswitch.Device, bool) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	for _, name := range m.hubNames {
		if device, found := m.storeByName[name].Device(id); found {
			return device, true
		}
	}

	return qwikswitch.Device{}, false
}

func (m *HubMux) SetValue(id string, value int) error {
	m.lock.RLock()
	defer m.lock.RUnlock()

	for _, name := range m.hubNames {
		if _, found := m.storeByName[name].Device(id); found {
			return m.storeByName[name].SetValue(id, value)
		}
	}

	return fmt.Errorf("%w: %s", qwikswitch.ErrDeviceNotFound, id)
}

// Version reports the QS Mobile version of every hub, one line per hub.
func (m *HubMux) Version(ctx context.Context) (string, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	var versions []string

	for _, name := range m.hubNames {
		version, err := m.clientByName[name].Version(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to fetch version of hub '%s': %w", name, err)
		}

		versions = append(versions, fmt.Sprintf("%s: %s", name, version))
	}

	return strings.Join(versions, "\n"), nil
}
