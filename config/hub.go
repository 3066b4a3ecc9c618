package config

import (
	"encoding/json"
	"fmt"
	"github.com/tidwall/gjson"
)

type HubConfig struct {
	Name   string `json:"-"`
	Type   string
	Config any
}

func (g *HubConfig) UnmarshalJSON(data []byte) error {
	if result := gjson.GetBytes(data, "Type"); !result.Exists() {
		return fmt.Errorf("failed to find hub type information")
	} else {
		g.Type = result.String()
	}

	switch g.Type {
	case "qsusb":
		g.Config = &QSUSBConfig{}
	default:
		return fmt.Errorf("unknown hub configuration type: %s", g.Type)
	}

	if result := gjson.GetBytes(data, "Config"); result.Exists() {
		return json.Unmarshal([]byte(result.Raw), g.Config)
	} else {
		return fmt.Errorf("unable to find Config stanza: %s", g.Type)
	}
}

type QSUSBConfig struct {
	// URL of the hub, e.g. http://127.0.0.1:2020.
	URL string

	// DimAdjust is the exponent of the dimmer response curve, 1 leaves
	// values untouched.
	DimAdjust float64

	// PollTimeoutSeconds overrides how long a &listen poll is held open.
	PollTimeoutSeconds int

	// RefreshIntervalSeconds controls the periodic &device snapshot, 0
	// selects the default.
	RefreshIntervalSeconds int
}
