package v1

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/logwrap/impl/discard"
	"github.com/shimmeringbee/qsusb/qwikswitch"
	"github.com/shimmeringbee/qsusb/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebsocketController(t *testing.T) {
	t.Run("replays current values then streams change events", func(t *testing.T) {
		mds := &MockDeviceStore{}
		mds.On("Devices").Return([]qwikswitch.Device{
			{ID: "@0c2700", Type: qwikswitch.TypeRelay, Value: 255},
		})

		bus := state.NewEventBus()

		wc := websocketController{
			eventbus:    bus,
			deviceStore: mds,
			logger:      logwrap.New(discard.Discard()),
		}

		server := httptest.NewServer(http.HandlerFunc(wc.serveWebsocket))
		defer server.Close()

		wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.NoError(t, err)
		defer conn.Close()

		conn.SetReadDeadline(time.Now().Add(2 * time.Second))

		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		initial := websocketMessage{}
		require.NoError(t, json.Unmarshal(data, &initial))
		assert.Equal(t, websocketMessage{Type: "DeviceValueChanged", Identifier: "@0c2700", Value: 255}, initial)

		// The subscription is in place before the replay is written, so a
		// publish after the first read is guaranteed to be streamed.
		bus.Publish(state.DeviceValueChanged{ID: "@0c2700", Value: 0})

		conn.SetReadDeadline(time.Now().Add(2 * time.Second))

		_, data, err = conn.ReadMessage()
		require.NoError(t, err)

		received := websocketMessage{}
		require.NoError(t, json.Unmarshal(data, &received))
		assert.Equal(t, websocketMessage{Type: "DeviceValueChanged", Identifier: "@0c2700", Value: 0}, received)
	})
}
