package v1

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/qsusb/state"
)

var wsUpgrader = websocket.Upgrader{}

const WebsocketConnectionEventBufferSize = 16

type websocketMessage struct {
	Type       string
	Identifier string
	Value      int
}

type websocketController struct {
	eventbus    state.EventSubscriber
	deviceStore DeviceStore
	logger      logwrap.Logger
}

func (z *websocketController) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	c, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	defer c.Close()

	z.handleConnection(c)
}

func (z *websocketController) handleConnection(c *websocket.Conn) {
	eventsCh := make(chan state.Event, WebsocketConnectionEventBufferSize)
	shutdownCh := make(chan struct{})

	z.eventbus.Subscribe(eventsCh)
	defer z.eventbus.Unsubscribe(eventsCh)

	// Replay current values first so a client starts from a full picture.
	var initial []websocketMessage
	for _, device := range z.deviceStore.Devices() {
		initial = append(initial, websocketMessage{Type: "DeviceValueChanged", Identifier: device.ID, Value: device.Value})
	}

	go z.serviceOutgoing(c, initial, eventsCh, shutdownCh)
	defer close(shutdownCh)

	z.serviceIncoming(c)
}

func (z *websocketController) serviceOutgoing(c *websocket.Conn, initial []websocketMessage, ch chan state.Event, shutCh chan struct{}) {
	for _, m := range initial {
		if !z.writeMessage(c, m) {
			return
		}
	}

	for {
		select {
		case event := <-ch:
			changed, ok := event.(state.DeviceValueChanged)
			if !ok {
				continue
			}

			if !z.writeMessage(c, websocketMessage{Type: "DeviceValueChanged", Identifier: changed.ID, Value: changed.Value}) {
				return
			}
		case <-shutCh:
			return
		}
	}
}

func (z *websocketController) writeMessage(c *websocket.Conn, m websocketMessage) bool {
	data, err := json.Marshal(m)
	if err != nil {
		z.logger.LogError(context.Background(), "Failed to marshal message to websocket.", logwrap.Err(err))
		return false
	}

	if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
		z.logger.LogError(context.Background(), "Failed to send message to websocket.", logwrap.Err(err))
		return false
	}

	return true
}

func (z *websocketController) serviceIncoming(c *websocket.Conn) {
	for {
		_, _, err := c.ReadMessage()
		if err != nil {
			if _, ok := err.(*websocket.CloseError); ok {
				z.logger.LogDebug(context.Background(), "Websocket closed.", logwrap.Err(err))
			} else {
				z.logger.LogError(context.Background(), "Failed to read message from websocket.", logwrap.Err(err))
			}

			return
		}
	}
}
