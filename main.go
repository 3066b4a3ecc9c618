package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	lw "github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/logwrap/impl/golog"
	"github.com/shimmeringbee/qsusb/state"
)

func main() {
	ctx := context.Background()
	l := lw.New(golog.Wrap(log.New(os.Stderr, "", log.LstdFlags)))

	l.LogInfo(ctx, "Shimmering Bee: QSUSB Bridge - Copyright 2021 Shimmering Bee Contributors - Starting...")

	directories := enumerateDirectories(ctx, l)

	l.LogInfo(ctx, "Directory enumeration complete.", lw.Datum("directories", directories))

	l, err := configureLogging(filepath.Join(directories.Config, "logging"), directories.Log, l)
	if err != nil {
		l.LogFatal(ctx, "Failed to configure logging.", lw.Err(err))
	}

	hubCfgs, err := loadHubConfigurations(filepath.Join(directories.Config, "hubs"))
	if err != nil {
		l.LogFatal(ctx, "Failed to load hub configurations.", lw.Err(err))
	}

	interfaceCfgs, err := loadInterfaceConfigurations(filepath.Join(directories.Config, "interfaces"))
	if err != nil {
		l.LogFatal(ctx, "Failed to load interface configurations.", lw.Err(err))
	}

	bus := state.NewEventBus()
	hubMux := &HubMux{}

	l.LogInfo(ctx, "Starting interfaces.", lw.Datum("configCount", len(interfaceCfgs)))
	startedInterfaces, err := startInterfaces(interfaceCfgs, hubMux, bus, l)
	if err != nil {
		l.LogFatal(ctx, "Failed to start interfaces.", lw.Err(err))
	}

	l.LogInfo(ctx, "Starting hubs.", lw.Datum("configCount", len(hubCfgs)))
	startedHubs, err := startHubs(hubCfgs, hubMux, bus, l)
	if err != nil {
		l.LogFatal(ctx, "Failed to start hubs.", lw.Err(err))
	}

	l.LogInfo(ctx, "QSUSB bridge ready.")

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)

	s := <-signalCh
	l.LogInfo(ctx, "Signal received, shutting down.", lw.Datum("signal", s.String()))

	for _, intf := range startedInterfaces {
		l.LogInfo(ctx, "Shutting down interface.", lw.Datum("interface", intf.Name))

		if err := intf.Shutdown(); err != nil {
			l.LogError(ctx, "Failed to shutdown interface.", lw.Err(err), lw.Datum("interface", intf.Name))
		}
	}

	for _, h := range startedHubs {
		l.LogInfo(ctx, "Shutting down hub.", lw.Datum("hub", h.Name))
		h.Shutdown()
	}

	l.LogInfo(ctx, "Shut down complete.")
}
