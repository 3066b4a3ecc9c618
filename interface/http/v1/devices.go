package v1

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shimmeringbee/qsusb/qwikswitch"
)

type DeviceStore interface {
	Devices() []qwikswitch.Device
	Device(string) (qwikswitch.Device, bool)
	SetValue(string, int) error
}

type HubInfo interface {
	Version(context.Context) (string, error)
}

type exportedDevice struct {
	Identifier string
	Name       string
	Type       string
	Value      int
}

func exportDevice(d qwikswitch.Device) exportedDevice {
	return exportedDevice{
		Identifier: d.ID,
		Name:       d.Name,
		Type:       d.Type.String(),
		Value:      d.Value,
	}
}

type deviceController struct {
	deviceStore DeviceStore
}

func (d *deviceController) listDevices(w http.ResponseWriter, r *http.Request) {
	apiDevices := make(map[string]exportedDevice)

	for _, device := range d.deviceStore.Devices() {
		apiDevices[device.ID] = exportDevice(device)
	}

	data, err := json.Marshal(apiDevices)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Add("content-type", "application/json")
	w.Write(data)
}

func (d *deviceController) getDevice(w http.ResponseWriter, r *http.Request) {
	params := mux.Vars(r)

	id, ok := params["identifier"]
	if !ok {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	device, found := d.deviceStore.Device(id)
	if !found {
		http.NotFound(w, r)
		return
	}

	data, err := json.Marshal(exportDevice(device))
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Add("content-type", "application/json")
	w.Write(data)
}

type setDeviceValueRequest struct {
	Value *int
}

func (d *deviceController) setDeviceValue(w http.ResponseWriter, r *http.Request) {
	params := mux.Vars(r)

	id, ok := params["identifier"]
	if !ok {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	request := setDeviceValueRequest{}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if err := json.Unmarshal(data, &request); err != nil || request.Value == nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := d.deviceStore.SetValue(id, *request.Value); err != nil {
		if errors.Is(err, qwikswitch.ErrDeviceNotFound) {
			http.NotFound(w, r)
		} else {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}

		return
	}

	// The value is only applied once the hub confirms, so all a success
	// means here is that the command was accepted.
	http.Error(w, http.StatusText(http.StatusAccepted), http.StatusAccepted)
}
