package v1

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/qsusb/state"
)

func ConstructRouter(store DeviceStore, hub HubInfo, eventbus state.EventSubscriber, l logwrap.Logger) http.Handler {
	r := mux.NewRouter()

	dc := deviceController{
		deviceStore: store,
	}

	hc := hubController{
		hub: hub,
	}

	wc := websocketController{
		eventbus:    eventbus,
		deviceStore: store,
		logger:      l,
	}

	r.HandleFunc("/devices", dc.listDevices).Methods("GET")
	r.HandleFunc("/devices/{identifier}", dc.getDevice).Methods("GET")
	r.HandleFunc("/devices/{identifier}/value", dc.setDeviceValue).Methods("POST")

	r.HandleFunc("/hub", hc.getHub).Methods("GET")

	r.HandleFunc("/websocket", wc.serveWebsocket).Methods("GET")

	return r
}
