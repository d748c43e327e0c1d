// UniFi Tools - UniFi Controller Monitoring and Management
// Copyright 2026 Mika (mika1337)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mika1337/unifi-tools

// Command unifi-manager runs one-shot management actions against a
// UniFi controller: listing devices and clients, reconnecting
// stations, provisioning devices and toggling access points.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/mika1337/unifi-tools/internal/config"
	"github.com/mika1337/unifi-tools/internal/logging"
	"github.com/mika1337/unifi-tools/internal/unifi"
)

// macRe matches colon-, dash- or un-separated MAC addresses with a
// consistent separator. Go's RE2 engine has no backreferences, so each
// separator variant is spelled out as an alternation.
var macRe = regexp.MustCompile(`^(([0-9a-fA-F]{2}:){5}|([0-9a-fA-F]{2}-){5}|([0-9a-fA-F]{2}){5})[0-9a-fA-F]{2}$`)

const (
	// provisionSettleDelay is how long a device takes to enter the
	// provisioning state after the command is accepted.
	provisionSettleDelay = 2 * time.Second

	// provisionPollPeriod is the pause between provisioning checks.
	provisionPollPeriod = 5 * time.Second
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to config file (default: search standard locations)")
	listDevices := flag.Bool("list-devices", false, "list adopted devices")
	listClients := flag.Bool("list-clients", false, "list active clients")
	reconnect := flag.String("reconnect", "", "force reconnection of a client by MAC address")
	provision := flag.String("provision", "", "force provisioning of a device by MAC address or name")
	enableAP := flag.String("enable-ap", "", "enable an access point by device id")
	disableAP := flag.String("disable-ap", "", "disable an access point by device id")
	flag.Parse()

	actions := 0
	for _, set := range []bool{
		*listDevices, *listClients,
		*reconnect != "", *provision != "", *enableAP != "", *disableAP != "",
	} {
		if set {
			actions++
		}
	}
	if actions != 1 {
		fmt.Fprintln(os.Stderr, "unifi-manager: exactly one action is required")
		flag.Usage()
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unifi-manager: %v\n", err)
		return 1
	}

	logging.Init(cfg.Logging)
	log := logging.Component("manager")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	controller := unifi.NewController(cfg.ControllerOptions())
	if err := controller.Login(ctx); err != nil {
		log.Error().Err(err).Msg("Login failed")
		return 1
	}
	defer func() {
		logoutCtx, logoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer logoutCancel()
		controller.Logout(logoutCtx)
	}()

	switch {
	case *listDevices:
		err = printDevices(ctx, controller)
	case *listClients:
		err = printClients(ctx, controller)
	case *reconnect != "":
		err = reconnectClient(ctx, controller, *reconnect)
	case *provision != "":
		err = provisionDevice(ctx, controller, *provision)
	case *enableAP != "":
		err = controller.SetDeviceDisabled(ctx, *enableAP, false)
	case *disableAP != "":
		err = controller.SetDeviceDisabled(ctx, *disableAP, true)
	}

	if err != nil {
		log.Error().Err(err).Msg("Action failed")
		return 1
	}
	return 0
}

func printDevices(ctx context.Context, controller *unifi.Controller) error {
	devices, err := controller.ListDevices(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tIP\tMAC\tSTATE\tVERSION")
	for _, device := range devices {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			device.Name, device.IP, device.MAC, titleCase(device.State.String()), device.Version)
	}
	return w.Flush()
}

// titleCase upper-cases the first letter for table display.
func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func printClients(ctx context.Context, controller *unifi.Controller) error {
	clients, err := controller.ListClients(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tIP\tMAC")
	for _, client := range clients {
		fmt.Fprintf(w, "%s\t%s\t%s\n", client.Name, client.IP, client.MAC)
	}
	return w.Flush()
}

func reconnectClient(ctx context.Context, controller *unifi.Controller, mac string) error {
	if !macRe.MatchString(mac) {
		return fmt.Errorf("invalid MAC address: %s", mac)
	}
	return controller.ReconnectClient(ctx, mac)
}

// provisionDevice forces provisioning of a device given by MAC or
// name, then waits until the device leaves the provisioning state.
func provisionDevice(ctx context.Context, controller *unifi.Controller, target string) error {
	mac := target
	if !macRe.MatchString(target) {
		resolved, err := resolveDeviceMAC(ctx, controller, target)
		if err != nil {
			return err
		}
		mac = resolved
	}

	device, err := controller.GetDeviceStatus(ctx, mac)
	if err != nil {
		return err
	}
	if device.State != unifi.StateConnected {
		return fmt.Errorf("device %s is %s, provisioning requires a connected device", device.Name, device.State)
	}

	if err := controller.ForceProvision(ctx, mac); err != nil {
		return err
	}
	fmt.Printf("Provisioning %s\n", device.Name)

	// Give the device time to pick up the command before checking.
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(provisionSettleDelay):
	}

	device, err = controller.GetDeviceStatus(ctx, mac)
	if err != nil {
		return err
	}
	if device.State != unifi.StateProvisioning {
		return fmt.Errorf("device %s did not enter provisioning state (state: %s)", device.Name, device.State)
	}

	for device.State == unifi.StateProvisioning {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(provisionPollPeriod):
		}

		device, err = controller.GetDeviceStatus(ctx, mac)
		if err != nil {
			return err
		}
	}

	fmt.Printf("Device %s provisioned (state: %s)\n", device.Name, device.State)
	return nil
}

// resolveDeviceMAC finds a device's MAC address by its configured
// name.
func resolveDeviceMAC(ctx context.Context, controller *unifi.Controller, name string) (string, error) {
	devices, err := controller.ListDevices(ctx)
	if err != nil {
		return "", err
	}
	for _, device := range devices {
		if device.Name == name {
			return device.MAC, nil
		}
	}
	return "", fmt.Errorf("no device named %q", name)
}
