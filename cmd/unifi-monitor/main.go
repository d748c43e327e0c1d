// UniFi Tools - UniFi Controller Monitoring and Management
// Copyright 2026 Mika (mika1337)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mika1337/unifi-tools

// Command unifi-monitor polls a UniFi controller and notifies about
// VPN tunnel changes and port speed changes.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/thejerf/suture/v4"

	"github.com/mika1337/unifi-tools/internal/config"
	"github.com/mika1337/unifi-tools/internal/logging"
	"github.com/mika1337/unifi-tools/internal/monitor"
	"github.com/mika1337/unifi-tools/internal/notify"
	"github.com/mika1337/unifi-tools/internal/opsserver"
	"github.com/mika1337/unifi-tools/internal/unifi"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to config file (default: search standard locations)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unifi-monitor: %v\n", err)
		return 1
	}

	logging.Init(cfg.Logging)
	log := logging.Component("main")

	controller := unifi.NewController(cfg.ControllerOptions())

	var notifier notify.Notifier
	if cfg.Notify.WebhookURL != "" {
		notifier = notify.NewWebhookNotifier(cfg.Notify.WebhookURL)
	} else {
		log.Info().Msg("No webhook configured, notifications go to the log")
		notifier = notify.NewLogNotifier()
	}

	monCfg, ignore := cfg.MonitorOptions()
	mon := monitor.New(controller, notifier, ignore, monCfg)

	root := suture.New("unifi-monitor", suture.Spec{
		EventHook: supervisorEventHook(),
	})
	root.Add(mon)

	if cfg.Ops.Enabled {
		root.Add(opsserver.New(cfg.Ops.Listen, mon))
		log.Info().Str("listen", cfg.Ops.Listen).Msg("Ops endpoint enabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	err = root.Serve(ctx)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		log.Info().Msg("Stopped")
		return 0
	case unifi.IsAuth(err):
		log.Error().Err(err).Msg("Controller rejected the configured credentials")
		return 1
	default:
		log.Error().Err(err).Msg("Supervisor exited with error")
		return 1
	}
}

// supervisorEventHook routes suture lifecycle events into the
// structured log.
func supervisorEventHook() suture.EventHook {
	log := logging.Component("supervisor")
	return func(event suture.Event) {
		switch event.Type() {
		case suture.EventTypeServiceTerminate, suture.EventTypeServicePanic:
			log.Error().Fields(event.Map()).Msg(event.String())
		case suture.EventTypeBackoff:
			log.Warn().Fields(event.Map()).Msg(event.String())
		default:
			log.Info().Fields(event.Map()).Msg(event.String())
		}
	}
}
