package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/logwrap/impl/discard"
	"github.com/shimmeringbee/qsusb/config"
	"github.com/shimmeringbee/qsusb/qwikswitch"
	"github.com/shimmeringbee/qsusb/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_loadHubConfigurations(t *testing.T) {
	t.Run("loads multiple hub configurations from a directory", func(t *testing.T) {
		dir := t.TempDir()

		body := []byte(`{"Type":"qsusb","Config":{"URL":"http://127.0.0.1:2020"}}`)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "one.json"), body, 0600))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "two.json"), body, 0600))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("not config"), 0600))

		cfgs, err := loadHubConfigurations(dir)
		assert.NoError(t, err)

		assert.Len(t, cfgs, 2)
		assert.Equal(t, "one", cfgs[0].Name)
		assert.Equal(t, "two", cfgs[1].Name)
	})

	t.Run("errors on an unknown hub type", func(t *testing.T) {
		dir := t.TempDir()

		body := []byte(`{"Type":"carrierpigeon","Config":{}}`)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), body, 0600))

		_, err := loadHubConfigurations(dir)
		assert.Error(t, err)
	})
}

func Test_startQSUSBHub(t *testing.T) {
	t.Run("errors without a URL", func(t *testing.T) {
		_, err := startQSUSBHub("one", config.QSUSBConfig{}, state.NewEventBus(), logwrap.New(discard.Discard()))
		assert.Error(t, err)
	})

	t.Run("takes an initial device snapshot and starts listening", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/&device":
				w.Write([]byte(`[{"id":"@0c2700","type":"rel","val":"ON"}]`))
			default:
				// Hold the long poll open until the client gives up.
				time.Sleep(250 * time.Millisecond)
				w.Write([]byte(`[]`))
			}
		}))
		defer server.Close()

		started, err := startQSUSBHub("one", config.QSUSBConfig{URL: server.URL, PollTimeoutSeconds: 1}, state.NewEventBus(), logwrap.New(discard.Discard()))
		require.NoError(t, err)
		defer started.Shutdown()

		device, found := started.Store.Device("@0c2700")
		require.True(t, found)
		assert.Equal(t, qwikswitch.Max, device.Value)
	})
}
