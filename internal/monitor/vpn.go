// UniFi Tools - UniFi Controller Monitoring and Management
// Copyright 2026 Mika (mika1337)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mika1337/unifi-tools

// Package monitor implements the change-detection engine: stateful
// comparators that diff consecutive controller snapshots, and the poll
// loop that drives them.
package monitor

import (
	"github.com/rs/zerolog"

	"github.com/mika1337/unifi-tools/internal/logging"
	"github.com/mika1337/unifi-tools/internal/unifi"
)

// VPNDetector compares consecutive VPN snapshots under set semantics:
// each snapshot is a set of (interface, address) pairs, duplicates
// collapse, order is irrelevant.
//
// The detector exclusively owns its previous snapshot; callers must
// not retain the slices they pass in.
type VPNDetector struct {
	previous map[unifi.VPNConnection]struct{}
	log      zerolog.Logger
}

// NewVPNDetector creates a detector with an empty previous snapshot,
// so the first diff reports every current tunnel as opened.
func NewVPNDetector() *VPNDetector {
	return &VPNDetector{
		previous: make(map[unifi.VPNConnection]struct{}),
		log:      logging.Component("monitor"),
	}
}

// Diff computes the symmetric difference between the stored snapshot
// and current, stores current, and returns the transitions: opened is
// current minus previous, closed is previous minus current.
func (d *VPNDetector) Diff(current []unifi.VPNConnection) (opened, closed []unifi.VPNConnection) {
	currentSet := make(map[unifi.VPNConnection]struct{}, len(current))
	for _, conn := range current {
		currentSet[conn] = struct{}{}
	}

	for conn := range currentSet {
		if _, ok := d.previous[conn]; !ok {
			opened = append(opened, conn)
		}
	}
	for conn := range d.previous {
		if _, ok := currentSet[conn]; !ok {
			closed = append(closed, conn)
		}
	}

	d.previous = currentSet

	d.log.Debug().
		Int("current", len(currentSet)).
		Int("opened", len(opened)).
		Int("closed", len(closed)).
		Msg("VPN snapshot compared")

	return opened, closed
}
