package v1

import (
	"encoding/json"
	"net/http"
)

type hubController struct {
	hub HubInfo
}

type exportedHub struct {
	Version string
}

func (h *hubController) getHub(w http.ResponseWriter, r *http.Request) {
	version, err := h.hub.Version(r.Context())
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}

	data, err := json.Marshal(exportedHub{Version: version})
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Add("content-type", "application/json")
	w.Write(data)
}
