// UniFi Tools - UniFi Controller Monitoring and Management
// Copyright 2026 Mika (mika1337)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mika1337/unifi-tools

package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"github.com/mika1337/unifi-tools/internal/logging"
	"github.com/mika1337/unifi-tools/internal/metrics"
	"github.com/mika1337/unifi-tools/internal/notify"
	"github.com/mika1337/unifi-tools/internal/unifi"
)

// ControllerAPI is the slice of the controller client the monitor
// loop uses. The concrete implementation is unifi.Controller.
type ControllerAPI interface {
	Login(ctx context.Context) error
	Logout(ctx context.Context)
	ListDevices(ctx context.Context) ([]unifi.Device, error)
	VPNConnections(ctx context.Context) ([]unifi.VPNConnection, error)
}

// State is the monitor loop's lifecycle state.
type State string

const (
	StateLoggedOut      State = "logged_out"
	StateAuthenticating State = "authenticating"
	StatePolling        State = "polling"
	StateBackoff        State = "backoff"
)

// DefaultBackoff is the fixed sleep after any failed cycle, for every
// failure class. No exponential growth, no retry cap; matches the
// long-observed production behavior of this monitor.
const DefaultBackoff = 120 * time.Second

// Config holds the monitor loop's timing parameters.
type Config struct {
	// Period is the pause between successful poll cycles.
	Period time.Duration

	// Backoff is the pause after a failed cycle before re-login.
	// Default: DefaultBackoff.
	Backoff time.Duration
}

// Status is a point-in-time view of the loop for the ops endpoint.
type Status struct {
	State             State     `json:"state"`
	ConsecutiveErrors int       `json:"consecutive_errors"`
	LastPoll          time.Time `json:"last_poll"`
	Devices           int       `json:"devices"`
	VPNConnections    int       `json:"vpn_connections"`
}

// Monitor owns one poll-diff-notify loop against one controller. It
// is strictly sequential: no two controller calls are ever in flight
// at once, and all state (session, snapshots, error counter) belongs
// to the single loop goroutine. The mutex only guards the Status view
// read by the ops endpoint.
type Monitor struct {
	api      ControllerAPI
	notifier notify.Notifier
	vpn      *VPNDetector
	ports    *PortDetector
	cfg      Config
	log      zerolog.Logger

	mu     sync.RWMutex
	status Status
}

// New creates a monitor loop. The detectors start with empty previous
// snapshots.
func New(api ControllerAPI, notifier notify.Notifier, ignore IgnorePolicy, cfg Config) *Monitor {
	if cfg.Backoff == 0 {
		cfg.Backoff = DefaultBackoff
	}

	return &Monitor{
		api:      api,
		notifier: notifier,
		vpn:      NewVPNDetector(),
		ports:    NewPortDetector(ignore),
		cfg:      cfg,
		log:      logging.Component("monitor"),
		status:   Status{State: StateLoggedOut},
	}
}

// Status returns the current loop state for the ops endpoint.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Serve runs the loop under a suture supervisor. Authentication
// failures are configuration errors: the supervisor must terminate
// instead of restarting into the same rejection.
func (m *Monitor) Serve(ctx context.Context) error {
	err := m.Run(ctx)
	if unifi.IsAuth(err) {
		return errors.Join(err, suture.ErrTerminateSupervisorTree)
	}
	return err
}

// Run executes the loop until ctx is cancelled: login, then repeated
// poll cycles, with fixed backoff and re-login after any failure.
// Only an AuthError is returned; everything else is retried forever.
func (m *Monitor) Run(ctx context.Context) error {
	m.log.Info().Msg("UniFi monitor starting")
	defer m.log.Info().Msg("UniFi monitor exiting")

	for {
		if ctx.Err() != nil {
			m.setState(StateLoggedOut)
			return nil
		}

		m.setState(StateAuthenticating)
		if err := m.api.Login(ctx); err != nil {
			if unifi.IsAuth(err) {
				m.log.Error().Err(err).Msg("Authentication rejected, not retrying")
				m.setState(StateLoggedOut)
				return err
			}
			if ctx.Err() != nil {
				m.setState(StateLoggedOut)
				return nil
			}
			if !m.backoffAfterFailure(ctx, err) {
				m.setState(StateLoggedOut)
				return nil
			}
			continue
		}

		m.setState(StatePolling)
		err := m.pollUntilError(ctx)

		if ctx.Err() != nil {
			m.logout()
			m.setState(StateLoggedOut)
			return nil
		}

		if !m.backoffAfterFailure(ctx, err) {
			m.logout()
			m.setState(StateLoggedOut)
			return nil
		}
		// Backoff elapsed; re-enter authentication.
	}
}

// pollUntilError runs cycles until one fails or ctx is cancelled.
func (m *Monitor) pollUntilError(ctx context.Context) error {
	for {
		if err := m.cycle(ctx); err != nil {
			return err
		}

		m.resetFailures()
		metrics.PollCycles.Inc()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.cfg.Period):
		}
	}
}

// cycle runs one poll: VPN diff first, then ports, strictly serial.
// A cycle with no underlying change sends nothing and only replaces
// the detectors' retained snapshots.
func (m *Monitor) cycle(ctx context.Context) error {
	connections, err := m.api.VPNConnections(ctx)
	if err != nil {
		return fmt.Errorf("vpn poll: %w", err)
	}
	opened, closed := m.vpn.Diff(connections)
	m.notifyVPN(ctx, opened, closed)

	devices, err := m.api.ListDevices(ctx)
	if err != nil {
		return fmt.Errorf("device poll: %w", err)
	}
	diff := m.ports.Diff(devices)
	m.notifyPorts(ctx, diff)

	m.recordPoll(len(devices), len(connections))
	return nil
}

func (m *Monitor) notifyVPN(ctx context.Context, opened, closed []unifi.VPNConnection) {
	for _, conn := range opened {
		m.log.Info().Str("if", conn.Interface).Str("addr", conn.Address).Msg("New VPN connection")
		metrics.EventsEmitted.WithLabelValues("vpn_opened").Inc()
		m.send(ctx, "New VPN connection", notify.IconInfo, []notify.Block{
			notify.Section{Text: fmt.Sprintf("if:%s - addr:%s", conn.Interface, conn.Address)},
		})
	}

	for _, conn := range closed {
		m.log.Info().Str("if", conn.Interface).Str("addr", conn.Address).Msg("Closed VPN connection")
		metrics.EventsEmitted.WithLabelValues("vpn_closed").Inc()
		m.send(ctx, "Closed VPN connection", notify.IconInfo, []notify.Block{
			notify.Section{Text: fmt.Sprintf("if:%s - addr:%s", conn.Interface, conn.Address)},
		})
	}
}

func (m *Monitor) notifyPorts(ctx context.Context, diff PortDiff) {
	for _, inc := range diff.Inconsistencies {
		metrics.EventsEmitted.WithLabelValues("port_inconsistency").Inc()
		message := fmt.Sprintf("Device %s: error while monitoring port #%d", inc.Device, inc.PortIndex)
		m.send(ctx, "UniFi monitor error", notify.IconError, []notify.Block{
			notify.Section{Text: message},
		})
	}

	for _, device := range diff.SpeedChanges {
		blocks := make([]notify.Block, 0, len(device.Changes))
		var lastMessage string

		for _, change := range device.Changes {
			metrics.EventsEmitted.WithLabelValues("port_speed_change").Inc()
			message := fmt.Sprintf("Device %s: port #%d (%s) speed changed: %s => %s",
				device.Device, change.PortIndex, change.PortName, change.From, change.To)
			m.log.Info().Msg(message)
			blocks = append(blocks, notify.Section{Text: message})
			lastMessage = message
		}

		title := lastMessage
		if len(blocks) > 1 {
			title = "Multiple port speed change"
		}
		m.send(ctx, title, notify.IconInfo, blocks)
	}
}

// send delivers one notification, fire-and-forget: failures are
// logged and counted, never propagated into the loop.
func (m *Monitor) send(ctx context.Context, title string, icon notify.Icon, blocks []notify.Block) {
	if err := m.notifier.Send(ctx, title, icon, blocks); err != nil {
		m.log.Warn().Err(err).Str("title", title).Msg("Notification delivery failed")
		metrics.NotificationsFailed.Inc()
		return
	}
	metrics.NotificationsSent.Inc()
}

// backoffAfterFailure records a failed cycle, notifies when the streak
// reaches two (a single transient blip is logged only), and sleeps the
// fixed backoff. Returns false when ctx was cancelled during the wait.
func (m *Monitor) backoffAfterFailure(ctx context.Context, err error) bool {
	m.mu.Lock()
	m.status.ConsecutiveErrors++
	count := m.status.ConsecutiveErrors
	m.mu.Unlock()

	metrics.ConsecutiveErrors.Set(float64(count))
	metrics.PollFailures.WithLabelValues(errorClass(err)).Inc()

	m.log.Error().Err(err).Int("consecutive_errors", count).Msg("Monitor cycle failed")

	if count > 1 {
		title := "UniFi monitor error"
		if unifi.IsTransport(err) {
			title = "UniFi monitor ConnectionError"
		}
		m.send(ctx, title, notify.IconError, []notify.Block{
			notify.Context{Text: err.Error()},
		})
	}

	m.setState(StateBackoff)

	select {
	case <-ctx.Done():
		return false
	case <-time.After(m.cfg.Backoff):
		return true
	}
}

func (m *Monitor) resetFailures() {
	m.mu.Lock()
	m.status.ConsecutiveErrors = 0
	m.mu.Unlock()
	metrics.ConsecutiveErrors.Set(0)
}

// logout runs a best-effort logout with its own deadline; the loop
// context is usually already cancelled at this point.
func (m *Monitor) logout() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	m.api.Logout(ctx)
}

func (m *Monitor) setState(state State) {
	m.mu.Lock()
	m.status.State = state
	m.mu.Unlock()
}

func (m *Monitor) recordPoll(devices, connections int) {
	now := time.Now()
	m.mu.Lock()
	m.status.LastPoll = now
	m.status.Devices = devices
	m.status.VPNConnections = connections
	m.mu.Unlock()
	metrics.LastPollTimestamp.Set(float64(now.Unix()))
}

// errorClass buckets an error for the failure metric.
func errorClass(err error) string {
	switch {
	case unifi.IsTransport(err):
		return "transport"
	case unifi.IsProtocol(err):
		return "protocol"
	default:
		return "other"
	}
}
