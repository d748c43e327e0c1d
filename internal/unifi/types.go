// UniFi Tools - UniFi Controller Monitoring and Management
// Copyright 2026 Mika (mika1337)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mika1337/unifi-tools

package unifi

// DeviceState is the unified device state across controller API versions.
// The controller reports it as an integer; only the enum is exposed.
//
// Known codes per the UniFi community documentation:
// https://community.ui.com/questions/Fetching-current-UAP-status/88a197f9-3530-4580-8f0b-eca43b41ba6b
type DeviceState int

const (
	StateOther DeviceState = iota
	StateDisconnected
	StateConnected
	StateUpgrading
	StateProvisioning
	StateHeartbeatMissed
)

func (s DeviceState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateUpgrading:
		return "upgrading"
	case StateProvisioning:
		return "provisioning"
	case StateHeartbeatMissed:
		return "heartbeat missed"
	default:
		return "other"
	}
}

// DeviceType classifies a managed device.
type DeviceType int

const (
	TypeOther DeviceType = iota
	TypeSwitch
	TypeAccessPoint
	TypeGateway
)

func (t DeviceType) String() string {
	switch t {
	case TypeSwitch:
		return "switch"
	case TypeAccessPoint:
		return "access point"
	case TypeGateway:
		return "gateway"
	default:
		return "other"
	}
}

// PortSpeed is the negotiated link speed of a switch port.
// SpeedUnknown is the zero value used when the controller reports a
// speed outside the known set; Port.SpeedKnown distinguishes it.
type PortSpeed int

const (
	SpeedUnknown PortSpeed = iota
	SpeedDown
	Speed10Mbit
	Speed100Mbit
	Speed1Gbit
)

func (s PortSpeed) String() string {
	switch s {
	case SpeedDown:
		return "down"
	case Speed10Mbit:
		return "10Mbit"
	case Speed100Mbit:
		return "100Mbit"
	case Speed1Gbit:
		return "1Gbit"
	default:
		return "unknown"
	}
}

// VersionUnavailable is reported when the controller omits the
// displayable firmware version for a device.
const VersionUnavailable = "<unavailable>"

// Device is one managed device as observed in a single poll.
// Instances are created fresh from controller JSON on every poll and
// never mutated afterwards.
type Device struct {
	ID       string
	Name     string
	MAC      string
	IP       string
	Version  string
	State    DeviceState
	Type     DeviceType
	Disabled bool
	Ports    []Port
}

// Port is one switch port within a Device. Index is unique within the
// owning device and is the join key across polls.
type Port struct {
	Name    string
	Enabled bool
	Index   int
	Speed   PortSpeed
	// SpeedKnown is false when the controller reported a speed value
	// the decoder cannot map. Such ports are excluded from speed
	// comparisons; the decode inconsistency has already been logged.
	SpeedKnown bool
}

// Client is a connected station (wired or wireless).
type Client struct {
	Name string
	IP   string
	MAC  string
}

// VPNConnection is an active VPN tunnel. Identity is structural: two
// connections are the same iff interface and address both match.
type VPNConnection struct {
	Interface string
	Address   string
}
