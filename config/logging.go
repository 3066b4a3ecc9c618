package config

import (
	"encoding/json"
	"fmt"
	"github.com/tidwall/gjson"
)

// LoggingConfig selects one log sink for the bridge, either "stdout" or
// "file". Every configured sink receives the full stream, subject to its
// own level and subsystem filters.
type LoggingConfig struct {
	Name   string `json:"-"`
	Type   string
	Config any
}

func (g *LoggingConfig) UnmarshalJSON(data []byte) error {
	if result := gjson.GetBytes(data, "Type"); !result.Exists() {
		return fmt.Errorf("failed to find logging type information")
	} else {
		g.Type = result.String()
	}

	switch g.Type {
	case "stdout":
		g.Config = &StdoutLogging{}
	case "file":
		g.Config = &FileLogging{}
	default:
		return fmt.Errorf("unknown logging configuration type: %s", g.Type)
	}

	if result := gjson.GetBytes(data, "Config"); result.Exists() {
		return json.Unmarshal([]byte(result.Raw), g.Config)
	} else {
		return fmt.Errorf("unable to find Config stanza: %s", g.Type)
	}
}

// BaseLogging holds the filters common to all sinks. Subsystems matches
// against the logwrap source (qsusb, http, mqtt); NegateSubsystems turns
// the list into an exclusion.
type BaseLogging struct {
	Level string

	NegateSubsystems bool
	Subsystems       []string
}

type StdoutLogging struct {
	BaseLogging
}

// FileLogging writes to a rotated file under the log directory. Size is
// megabytes per file, Count the number of rotated files kept.
type FileLogging struct {
	BaseLogging

	Filename string
	Size     int
	Count    int
	Compress bool
}
