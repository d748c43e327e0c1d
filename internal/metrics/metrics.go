// UniFi Tools - UniFi Controller Monitoring and Management
// Copyright 2026 Mika (mika1337)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mika1337/unifi-tools

// Package metrics provides Prometheus instrumentation for the monitor
// daemon. Collectors are registered on the default registry and served
// by the ops endpoint at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PollCycles counts completed poll cycles.
	PollCycles = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "unifi_monitor_poll_cycles_total",
			Help: "Total number of completed poll cycles",
		},
	)

	// PollFailures counts failed poll cycles by error class.
	PollFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unifi_monitor_poll_failures_total",
			Help: "Total number of failed poll cycles",
		},
		[]string{"class"}, // "transport", "protocol", "other"
	)

	// EventsEmitted counts change events by type.
	EventsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unifi_monitor_events_total",
			Help: "Total number of detected change events",
		},
		[]string{"type"}, // "vpn_opened", "vpn_closed", "port_speed_change", "port_inconsistency"
	)

	// SuppressedChanges counts port speed changes dropped by the ignore policy.
	SuppressedChanges = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "unifi_monitor_suppressed_changes_total",
			Help: "Total number of port speed changes suppressed by the ignore policy",
		},
	)

	// NotificationsSent counts notifications accepted by the sink.
	NotificationsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "unifi_monitor_notifications_sent_total",
			Help: "Total number of notifications delivered to the sink",
		},
	)

	// NotificationsFailed counts notifications the sink rejected.
	NotificationsFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "unifi_monitor_notifications_failed_total",
			Help: "Total number of notifications the sink failed to deliver",
		},
	)

	// ConsecutiveErrors tracks the monitor loop's current failure streak.
	ConsecutiveErrors = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "unifi_monitor_consecutive_errors",
			Help: "Current number of consecutive poll failures",
		},
	)

	// LastPollTimestamp is the Unix time of the last successful poll.
	LastPollTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "unifi_monitor_last_poll_timestamp_seconds",
			Help: "Unix timestamp of the last successful poll cycle",
		},
	)
)
