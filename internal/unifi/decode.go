// UniFi Tools - UniFi Controller Monitoring and Management
// Copyright 2026 Mika (mika1337)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mika1337/unifi-tools

package unifi

// Decoding of raw controller JSON into the typed model.
//
// The controller is known to emit undocumented values during firmware
// updates, so decoding is total: unrecognized enum values degrade to an
// explicit Other/unknown variant and are logged, they never fail a poll.
// Port speed is the one exception in strictness: an unknown numeric
// speed marks the port SpeedKnown=false so it cannot be silently
// misreported as a real speed.

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/mika1337/unifi-tools/internal/logging"
)

// deviceStates maps the controller's integer state codes to the enum.
var deviceStates = map[int]DeviceState{
	0: StateDisconnected,
	1: StateConnected,
	4: StateUpgrading,
	5: StateProvisioning,
	6: StateHeartbeatMissed,
}

// deviceTypes maps the controller's type strings to the enum.
var deviceTypes = map[string]DeviceType{
	"uap": TypeAccessPoint,
	"ugw": TypeGateway,
	"usw": TypeSwitch,
}

// portSpeeds maps the controller's numeric speed (Mbit) to the enum.
var portSpeeds = map[int]PortSpeed{
	10:   Speed10Mbit,
	100:  Speed100Mbit,
	1000: Speed1Gbit,
}

// Raw wire records. Optional fields are pointers so that "absent" is
// distinguishable from the zero value; each fallback is a named policy
// in the decode functions below.
type rawDevice struct {
	ID       string    `json:"_id"`
	Name     string    `json:"name"`
	MAC      string    `json:"mac"`
	IP       string    `json:"ip"`
	Version  *string   `json:"displayable_version"`
	State    int       `json:"state"`
	Type     string    `json:"type"`
	Disabled *bool     `json:"disabled"`
	Ports    []rawPort `json:"port_table"`
}

type rawPort struct {
	Name   string `json:"name"`
	Enable bool   `json:"enable"`
	Index  int    `json:"port_idx"`
	Up     *bool  `json:"up"`
	Speed  *int   `json:"speed"`
}

type rawClient struct {
	Name     *string `json:"name"`
	Hostname *string `json:"hostname"`
	IP       string  `json:"ip"`
	MAC      string  `json:"mac"`
}

type rawRoute struct {
	Prefix   string       `json:"pfx"`
	NextHops []rawNextHop `json:"nh"`
}

type rawNextHop struct {
	Interface string `json:"intf"`
}

// decodeDevice maps a raw device record to the typed model.
// Policies: version defaults to VersionUnavailable, disabled defaults
// to false, unknown state/type degrade to Other with a log entry.
func decodeDevice(raw *rawDevice) Device {
	device := Device{
		ID:       raw.ID,
		Name:     raw.Name,
		MAC:      raw.MAC,
		IP:       raw.IP,
		Version:  VersionUnavailable,
		Disabled: false,
	}

	if raw.Version != nil {
		device.Version = *raw.Version
	}
	if raw.Disabled != nil {
		device.Disabled = *raw.Disabled
	}

	state, ok := deviceStates[raw.State]
	if !ok {
		logger := decodeLog()
		logger.Error().
			Int("state", raw.State).
			Str("device", raw.Name).
			Msg("Unexpected device state")
		state = StateOther
	}
	device.State = state

	deviceType, ok := deviceTypes[raw.Type]
	if !ok {
		logger := decodeLog()
		logger.Warn().
			Str("type", raw.Type).
			Str("device", raw.Name).
			Str("mac", raw.MAC).
			Msg("Unknown device type")
		deviceType = TypeOther
	}
	device.Type = deviceType

	device.Ports = make([]Port, 0, len(raw.Ports))
	for i := range raw.Ports {
		device.Ports = append(device.Ports, decodePort(&raw.Ports[i]))
	}

	return device
}

// decodePort maps a raw port record. A port with up absent or false is
// Down; otherwise the numeric speed must be one of the known values or
// the port is marked SpeedKnown=false and the record logged.
func decodePort(raw *rawPort) Port {
	port := Port{
		Name:       raw.Name,
		Enabled:    raw.Enable,
		Index:      raw.Index,
		SpeedKnown: true,
	}

	switch {
	case raw.Up == nil || !*raw.Up:
		port.Speed = SpeedDown
	default:
		speed := -1
		if raw.Speed != nil {
			speed = *raw.Speed
		}
		mapped, ok := portSpeeds[speed]
		if !ok {
			logger := decodeLog()
			logger.Error().
				Str("port", raw.Name).
				Int("index", raw.Index).
				Int("speed", speed).
				Msg("Failed to compute port speed")
			port.Speed = SpeedUnknown
			port.SpeedKnown = false
			break
		}
		port.Speed = mapped
	}

	return port
}

// decodeClient maps a raw station record. Name policy: name, else
// hostname, else empty string — never absent.
func decodeClient(raw *rawClient) Client {
	client := Client{
		IP:  raw.IP,
		MAC: raw.MAC,
	}

	switch {
	case raw.Name != nil && *raw.Name != "":
		client.Name = *raw.Name
	case raw.Hostname != nil:
		client.Name = *raw.Hostname
	}

	return client
}

// vpnInterfacePrefix identifies routing entries that belong to VPN
// tunnels: their next-hop interface is an l2tp device.
const vpnInterfacePrefix = "l2tp"

// decodeVPNConnection maps a raw routing entry to a VPN connection, or
// returns false when the entry is not a VPN tunnel.
func decodeVPNConnection(raw *rawRoute) (VPNConnection, bool) {
	if len(raw.NextHops) == 0 {
		return VPNConnection{}, false
	}

	iface := raw.NextHops[0].Interface
	if !strings.HasPrefix(iface, vpnInterfacePrefix) {
		return VPNConnection{}, false
	}

	return VPNConnection{Interface: iface, Address: raw.Prefix}, true
}

// decodeLog builds the component logger at call time so tests that
// reconfigure the global logger observe decode logs.
func decodeLog() zerolog.Logger {
	return logging.Component("unifi")
}
