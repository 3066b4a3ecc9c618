package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/logwrap/impl/nest"
	"github.com/shimmeringbee/qsusb/config"
	"github.com/shimmeringbee/qsusb/hub"
	"github.com/shimmeringbee/qsusb/qwikswitch"
	"github.com/shimmeringbee/qsusb/state"
)

const (
	// DefaultRefreshInterval is how often the full &device snapshot is
	// re-fetched when the configuration does not say otherwise.
	DefaultRefreshInterval = 2 * time.Minute

	// buttonRefreshDelay gives the hub a moment to act on a wall switch
	// command before the snapshot is re-fetched, the &device listing lags
	// the radio traffic slightly.
	buttonRefreshDelay = 2 * time.Second
)

type StartedHub struct {
	Name     string
	Client   *hub.Client
	Store    *qwikswitch.Store
	Shutdown func()
}

func startHubs(cfgs []config.HubConfig, mux *HubMux, bus *state.EventBus, l logwrap.Logger) ([]StartedHub, error) {
	var retHubs []StartedHub

	for _, cfg := range cfgs {
		wl := logwrap.New(nest.Wrap(l))
		wl.AddOptionsToLogger(logwrap.Datum("hub", cfg.Name))

		switch hubCfg := cfg.Config.(type) {
		case *config.QSUSBConfig:
			wl.AddOptionsToLogger(logwrap.Source("qsusb"))

			started, err := startQSUSBHub(cfg.Name, *hubCfg, bus, wl)
			if err != nil {
				return nil, fmt.Errorf("failed to start hub '%s': %w", cfg.Name, err)
			}

			mux.Add(cfg.Name, started.Client, started.Store)
			retHubs = append(retHubs, started)
		default:
			return nil, fmt.Errorf("unknown hub type loaded: %s", cfg.Type)
		}
	}

	return retHubs, nil
}

func startQSUSBHub(name string, cfg config.QSUSBConfig, bus *state.EventBus, l logwrap.Logger) (StartedHub, error) {
	if cfg.URL == "" {
		return StartedHub{}, fmt.Errorf("hub configuration is missing a URL")
	}

	// The store needs a set requester before the client exists, and the
	// client needs the store. The closure is only ever invoked once wiring
	// has completed.
	var client *hub.Client

	store := qwikswitch.NewStore(cfg.DimAdjust,
		func(id string, value int) {
			bus.Publish(state.DeviceValueChanged{ID: id, Value: value})
		},
		func(id string, encoded int, confirm func()) {
			client.SetValue(id, encoded, confirm)
		}, l)

	client = hub.New(cfg.URL, store, l)

	if cfg.PollTimeoutSeconds > 0 {
		client.PollTimeout = time.Duration(cfg.PollTimeoutSeconds) * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), hub.DefaultRequestTimeout)
	if err := client.RefreshDevices(ctx); err != nil {
		// The hub may simply not be up yet, the refresh loop will catch up.
		l.LogError(ctx, "Failed initial device snapshot from hub.", logwrap.Err(err))
	}
	cancel()

	refreshCh := make(chan struct{}, 1)

	client.Listen(func(packet qwikswitch.Packet) {
		bus.Publish(state.HubCommand{Packet: packet})

		if packet.IsButtonCommand() {
			select {
			case refreshCh <- struct{}{}:
			default:
			}
		}
	})

	interval := DefaultRefreshInterval
	if cfg.RefreshIntervalSeconds > 0 {
		interval = time.Duration(cfg.RefreshIntervalSeconds) * time.Second
	}

	stopCh := make(chan struct{})
	go refreshLoop(client, interval, refreshCh, stopCh, l)

	return StartedHub{
		Name:   name,
		Client: client,
		Store:  store,
		Shutdown: func() {
			close(stopCh)
			client.Stop()
		},
	}, nil
}

// refreshLoop re-fetches the &device snapshot periodically and after wall
// switch commands, so state changed outside the bridge is still noticed.
func refreshLoop(client *hub.Client, interval time.Duration, kickCh chan struct{}, stopCh chan struct{}, l logwrap.Logger) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-t.C:
		case <-kickCh:
			select {
			case <-time.After(buttonRefreshDelay):
			case <-stopCh:
				return
			}
		case <-stopCh:
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), hub.DefaultRequestTimeout)
		if err := client.RefreshDevices(ctx); err != nil {
			l.LogError(ctx, "Failed to refresh devices from hub.", logwrap.Err(err))
		}
		cancel()
	}
}

func loadHubConfigurations(dir string) ([]config.HubConfig, error) {
	if err := os.MkdirAll(dir, DefaultDirectoryPermissions); err != nil {
		return nil, fmt.Errorf("failed to ensure hub configuration directory exists: %w", err)
	}

	files, err := ioutil.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory listing for hub configurations: %w", err)
	}

	var retCfgs []config.HubConfig

	for _, file := range files {
		if !strings.HasSuffix(file.Name(), ".json") {
			continue
		}

		fullPath := filepath.Join(dir, file.Name())
		data, err := ioutil.ReadFile(fullPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read hub configuration file '%s': %w", fullPath, err)
		}

		cfg := config.HubConfig{
			Name: strings.TrimSuffix(file.Name(), filepath.Ext(file.Name())),
		}

		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse hub configuration file '%s': %w", fullPath, err)
		}

		retCfgs = append(retCfgs, cfg)
	}

	return retCfgs, nil
}
