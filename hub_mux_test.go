package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/logwrap/impl/discard"
	"github.com/shimmeringbee/qsusb/hub"
	"github.com/shimmeringbee/qsusb/qwikswitch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type setRecorder struct {
	lock  sync.Mutex
	calls []string
}

func (s *setRecorder) request(id string, encoded int, confirm func()) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.calls = append(s.calls, fmt.Sprintf("%s=%d", id, encoded))
}

func newMuxStore(t *testing.T, recorder *setRecorder, packets ...qwikswitch.Packet) *qwikswitch.Store {
	t.Helper()

	store := qwikswitch.NewStore(1, func(string, int) {}, recorder.request, logwrap.New(discard.Discard()))
	store.UpdateDevices(packets)

	return store
}

func TestHubMux(t *testing.T) {
	t.Run("aggregates devices across hubs", func(t *testing.T) {
		m := &HubMux{}

		m.Add("one", nil, newMuxStore(t, &setRecorder{}, qwikswitch.Packet{ID: "@a", Type: "rel", Value: "ON"}))
		m.Add("two", nil, newMuxStore(t, &setRecorder{}, qwikswitch.Packet{ID: "@b", Type: "dim", Value: "50%"}))

		assert.Len(t, m.Devices(), 2)

		device, found := m.Device("@b")
		assert.True(t, found)
		assert.Equal(t, qwikswitch.TypeDimmer, device.Type)

		_, found = m.Device("@missing")
		assert.False(t, found)
	})

	t.Run("routes a set to the hub that owns the device", func(t *testing.T) {
		one := &setRecorder{}
		two := &setRecorder{}

		m := &HubMux{}
		m.Add("one", nil, newMuxStore(t, one, qwikswitch.Packet{ID: "@a", Type: "rel", Value: "ON"}))
		m.Add("two", nil, newMuxStore(t, two, qwikswitch.Packet{ID: "@b", Type: "rel", Value: "ON"}))

		require.NoError(t, m.SetValue("@b", 0))

		assert.Empty(t, one.calls)
		assert.Equal(t, []string{"@b=0"}, two.calls)
	})

	t.Run("errors when no hub knows the device", func(t *testing.T) {
		m := &HubMux{}
		m.Add("one", nil, newMuxStore(t, &setRecorder{}))

		assert.ErrorIs(t, m.SetValue("@missing", 0), qwikswitch.ErrDeviceNotFound)
	})

	t.Run("reports the version of every hub", func(t *testing.T) {
		newVersionServer := func(version string) *httptest.Server {
			return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, version)
			}))
		}

		serverOne := newVersionServer("v4.1")
		defer serverOne.Close()
		serverTwo := newVersionServer("v4.2")
		defer serverTwo.Close()

		l := logwrap.New(discard.Discard())

		m := &HubMux{}
		m.Add("two", hub.New(serverTwo.URL, nil, l), nil)
		m.Add("one", hub.New(serverOne.URL, nil, l), nil)

		version, err := m.Version(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "one: v4.1\ntwo: v4.2", version)
	})
}
