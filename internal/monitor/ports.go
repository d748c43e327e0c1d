// UniFi Tools - UniFi Controller Monitoring and Management
// Copyright 2026 Mika (mika1337)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mika1337/unifi-tools

package monitor

import (
	"github.com/rs/zerolog"

	"github.com/mika1337/unifi-tools/internal/logging"
	"github.com/mika1337/unifi-tools/internal/metrics"
	"github.com/mika1337/unifi-tools/internal/unifi"
)

// IgnorePolicy lists (device name, port index) pairs whose speed
// changes are known-benign and must never notify. The default table
// ships in the config package; operators extend it via the config
// file.
type IgnorePolicy map[string][]int

// Ignores reports whether the policy suppresses speed changes of the
// given port.
func (p IgnorePolicy) Ignores(device string, portIndex int) bool {
	for _, index := range p[device] {
		if index == portIndex {
			return true
		}
	}
	return false
}

// SpeedChange is one detected port speed transition.
type SpeedChange struct {
	PortIndex int
	PortName  string
	From      unifi.PortSpeed
	To        unifi.PortSpeed
}

// DeviceChanges groups one device's speed changes from one cycle, so
// the dispatcher can batch them into a single notification (a
// rebooting switch must not produce a notification storm).
type DeviceChanges struct {
	Device  string
	Changes []SpeedChange
}

// Inconsistency reports a port present now but missing from the
// previous record of the same device: a malformed controller record,
// not a real transition. Always reported, ignore policy does not
// apply.
type Inconsistency struct {
	Device    string
	PortIndex int
}

// PortDiff is the result of comparing two device snapshots.
type PortDiff struct {
	Inconsistencies []Inconsistency
	SpeedChanges    []DeviceChanges
}

// PortDetector compares consecutive device snapshots. Devices join by
// name across snapshots, ports join by index within a device. The
// detector exclusively owns its previous snapshot.
type PortDetector struct {
	previous []unifi.Device
	ignore   IgnorePolicy
	log      zerolog.Logger
}

// NewPortDetector creates a detector with an empty previous snapshot
// and the given ignore policy.
func NewPortDetector(ignore IgnorePolicy) *PortDetector {
	return &PortDetector{
		ignore: ignore,
		log:    logging.Component("monitor"),
	}
}

// Diff compares current against the stored snapshot, stores current,
// and returns the detected transitions. A device absent from the
// previous snapshot is skipped: a first sighting is not a change.
func (d *PortDetector) Diff(current []unifi.Device) PortDiff {
	// The snapshot is replaced unconditionally so a bad cycle can
	// never wedge future comparisons.
	previous := d.previous
	d.previous = current

	var diff PortDiff

	d.log.Debug().Int("devices", len(current)).Msg("Checking device ports")

	for i := range current {
		device := &current[i]

		previousDevice := findDevice(previous, device.Name)
		if previousDevice == nil {
			continue
		}

		var changes []SpeedChange

		for j := range device.Ports {
			port := &device.Ports[j]

			previousPort := findPort(previousDevice.Ports, port.Index)
			if previousPort == nil {
				d.log.Error().
					Str("device", device.Name).
					Int("port", port.Index).
					Msg("Error while monitoring port")
				diff.Inconsistencies = append(diff.Inconsistencies, Inconsistency{
					Device:    device.Name,
					PortIndex: port.Index,
				})
				continue
			}

			// Ports whose speed failed to decode were already logged
			// by the decoder; comparing them would report noise.
			if !port.SpeedKnown || !previousPort.SpeedKnown {
				continue
			}

			if port.Speed == previousPort.Speed {
				continue
			}

			if d.ignore.Ignores(device.Name, port.Index) {
				d.log.Debug().
					Str("device", device.Name).
					Int("port", port.Index).
					Str("name", port.Name).
					Str("from", previousPort.Speed.String()).
					Str("to", port.Speed.String()).
					Msg("Ignoring speed change")
				metrics.SuppressedChanges.Inc()
				continue
			}

			changes = append(changes, SpeedChange{
				PortIndex: port.Index,
				PortName:  port.Name,
				From:      previousPort.Speed,
				To:        port.Speed,
			})
		}

		if len(changes) > 0 {
			diff.SpeedChanges = append(diff.SpeedChanges, DeviceChanges{
				Device:  device.Name,
				Changes: changes,
			})
		}
	}

	return diff
}

// findDevice locates a device by name; names are unique within a
// snapshot.
func findDevice(devices []unifi.Device, name string) *unifi.Device {
	for i := range devices {
		if devices[i].Name == name {
			return &devices[i]
		}
	}
	return nil
}

// findPort locates a port by index; indices are unique within a
// device.
func findPort(ports []unifi.Port, index int) *unifi.Port {
	for i := range ports {
		if ports[i].Index == index {
			return &ports[i]
		}
	}
	return nil
}
