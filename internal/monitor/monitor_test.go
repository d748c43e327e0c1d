// UniFi Tools - UniFi Controller Monitoring and Management
// Copyright 2026 Mika (mika1337)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mika1337/unifi-tools

package monitor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mika1337/unifi-tools/internal/notify"
	"github.com/mika1337/unifi-tools/internal/unifi"
)

// fakeController scripts the controller API with function fields.
type fakeController struct {
	loginFn   func(ctx context.Context) error
	vpnFn     func(ctx context.Context) ([]unifi.VPNConnection, error)
	devicesFn func(ctx context.Context) ([]unifi.Device, error)

	logins  atomic.Int32
	logouts atomic.Int32
}

func (f *fakeController) Login(ctx context.Context) error {
	f.logins.Add(1)
	if f.loginFn != nil {
		return f.loginFn(ctx)
	}
	return nil
}

func (f *fakeController) Logout(context.Context) {
	f.logouts.Add(1)
}

func (f *fakeController) VPNConnections(ctx context.Context) ([]unifi.VPNConnection, error) {
	if f.vpnFn != nil {
		return f.vpnFn(ctx)
	}
	return nil, nil
}

func (f *fakeController) ListDevices(ctx context.Context) ([]unifi.Device, error) {
	if f.devicesFn != nil {
		return f.devicesFn(ctx)
	}
	return nil, nil
}

type sentNotification struct {
	Title  string
	Icon   notify.Icon
	Blocks []notify.Block
}

// recordingNotifier captures notifications for verification.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (r *recordingNotifier) Send(_ context.Context, title string, icon notify.Icon, blocks []notify.Block) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentNotification{Title: title, Icon: icon, Blocks: blocks})
	return nil
}

func (r *recordingNotifier) notifications() []sentNotification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sentNotification(nil), r.sent...)
}

func testConfig() Config {
	return Config{Period: time.Millisecond, Backoff: time.Millisecond}
}

func runUntil(t *testing.T, m *Monitor, stop <-chan struct{}) error {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	select {
	case <-stop:
	case <-time.After(5 * time.Second):
		t.Fatal("test condition never reached")
	}
	cancel()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
		return nil
	}
}

func TestRunAuthErrorIsFatal(t *testing.T) {
	t.Parallel()

	api := &fakeController{
		loginFn: func(context.Context) error {
			return &unifi.AuthError{Msg: "login failed with provided credentials"}
		},
	}
	m := New(api, &recordingNotifier{}, nil, testConfig())

	err := m.Run(context.Background())

	if !unifi.IsAuth(err) {
		t.Fatalf("Run = %v, want AuthError", err)
	}
	if got := api.logins.Load(); got != 1 {
		t.Errorf("login attempts = %d, want 1 (no retry on rejected credentials)", got)
	}
}

func TestRunSecondConsecutiveFailureNotifies(t *testing.T) {
	t.Parallel()

	stop := make(chan struct{})
	var failures atomic.Int32

	api := &fakeController{
		vpnFn: func(context.Context) ([]unifi.VPNConnection, error) {
			// Reaching the third cycle proves the second failure went
			// through its full backoff path, notification included.
			if failures.Add(1) == 3 {
				defer close(stop)
			}
			return nil, &unifi.TransportError{Op: "GET", Err: errors.New("connection refused")}
		},
	}
	sink := &recordingNotifier{}
	m := New(api, sink, nil, testConfig())

	if err := runUntil(t, m, stop); err != nil {
		t.Fatalf("Run = %v", err)
	}

	sent := sink.notifications()
	var connectionErrors int
	for _, n := range sent {
		if n.Title == "UniFi monitor ConnectionError" {
			connectionErrors++
		}
	}

	// First failure is logged only; the second triggers a notification.
	if connectionErrors < 1 {
		t.Fatalf("no connection-error notification after two consecutive failures: %+v", sent)
	}
	if first := sent[0]; first.Icon != notify.IconError {
		t.Errorf("severity = %v, want %v", first.Icon, notify.IconError)
	}
}

func TestRunCounterResetsOnSuccess(t *testing.T) {
	t.Parallel()

	stop := make(chan struct{})
	var calls atomic.Int32

	api := &fakeController{
		vpnFn: func(context.Context) ([]unifi.VPNConnection, error) {
			n := calls.Add(1)
			if n == 1 {
				return nil, &unifi.TransportError{Op: "GET", Err: errors.New("timeout")}
			}
			if n == 2 {
				defer close(stop)
			}
			return nil, nil
		},
	}
	sink := &recordingNotifier{}
	m := New(api, sink, nil, testConfig())

	if err := runUntil(t, m, stop); err != nil {
		t.Fatalf("Run = %v", err)
	}

	if got := m.Status().ConsecutiveErrors; got != 0 {
		t.Errorf("consecutive errors = %d, want 0 after success", got)
	}
	if sent := sink.notifications(); len(sent) != 0 {
		t.Errorf("single isolated failure must not notify: %+v", sent)
	}
}

func TestRunIdempotentCyclesEmitNothing(t *testing.T) {
	t.Parallel()

	stop := make(chan struct{})
	var cycles atomic.Int32

	connections := []unifi.VPNConnection{conn("l2tp0", "10.0.0.5")}
	devices := []unifi.Device{device("Switch-Bureau", port(1, unifi.Speed1Gbit))}

	api := &fakeController{
		vpnFn: func(context.Context) ([]unifi.VPNConnection, error) {
			return append([]unifi.VPNConnection(nil), connections...), nil
		},
		devicesFn: func(context.Context) ([]unifi.Device, error) {
			if cycles.Add(1) == 4 {
				defer close(stop)
			}
			return append([]unifi.Device(nil), devices...), nil
		},
	}
	sink := &recordingNotifier{}
	m := New(api, sink, nil, testConfig())

	if err := runUntil(t, m, stop); err != nil {
		t.Fatalf("Run = %v", err)
	}

	sent := sink.notifications()

	// The very first cycle reports the pre-existing tunnel as opened
	// (empty initial snapshot); steady-state cycles emit nothing.
	if len(sent) != 1 {
		t.Fatalf("notifications = %+v, want only the initial tunnel report", sent)
	}
	if sent[0].Title != "New VPN connection" {
		t.Errorf("title = %q", sent[0].Title)
	}
}

func TestRunCancellationInterruptsBackoff(t *testing.T) {
	t.Parallel()

	entered := make(chan struct{})
	var once sync.Once

	api := &fakeController{
		vpnFn: func(context.Context) ([]unifi.VPNConnection, error) {
			once.Do(func() { close(entered) })
			return nil, &unifi.TransportError{Op: "GET", Err: errors.New("unreachable")}
		},
	}
	m := New(api, &recordingNotifier{}, nil, Config{Period: time.Millisecond, Backoff: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	<-entered
	time.Sleep(10 * time.Millisecond) // let the loop reach its backoff wait
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v, want nil on cancellation", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("cancellation did not interrupt the 1h backoff")
	}

	if api.logouts.Load() == 0 {
		t.Error("expected best-effort logout on shutdown")
	}
}

func TestNotifyPortsBatchesAndTitles(t *testing.T) {
	t.Parallel()

	sink := &recordingNotifier{}
	m := New(&fakeController{}, sink, nil, testConfig())
	ctx := context.Background()

	// Single change: the message doubles as the title.
	m.notifyPorts(ctx, PortDiff{
		SpeedChanges: []DeviceChanges{{
			Device: "Switch-Bureau",
			Changes: []SpeedChange{
				{PortIndex: 2, PortName: "Port 2", From: unifi.Speed1Gbit, To: unifi.SpeedDown},
			},
		}},
	})

	sent := sink.notifications()
	if len(sent) != 1 {
		t.Fatalf("notifications = %d, want 1", len(sent))
	}
	want := "Device Switch-Bureau: port #2 (Port 2) speed changed: 1Gbit => down"
	if sent[0].Title != want {
		t.Errorf("title = %q, want %q", sent[0].Title, want)
	}

	// Multiple changes on one device: one batched notification.
	m.notifyPorts(ctx, PortDiff{
		SpeedChanges: []DeviceChanges{{
			Device: "Switch-Bureau",
			Changes: []SpeedChange{
				{PortIndex: 1, PortName: "Port 1", From: unifi.Speed1Gbit, To: unifi.SpeedDown},
				{PortIndex: 2, PortName: "Port 2", From: unifi.Speed1Gbit, To: unifi.SpeedDown},
			},
		}},
	})

	sent = sink.notifications()
	if len(sent) != 2 {
		t.Fatalf("notifications = %d, want 2", len(sent))
	}
	batched := sent[1]
	if batched.Title != "Multiple port speed change" {
		t.Errorf("title = %q", batched.Title)
	}
	if len(batched.Blocks) != 2 {
		t.Errorf("blocks = %d, want 2", len(batched.Blocks))
	}
}

func TestNotifyPortsInconsistencyUsesErrorSeverity(t *testing.T) {
	t.Parallel()

	sink := &recordingNotifier{}
	m := New(&fakeController{}, sink, nil, testConfig())

	m.notifyPorts(context.Background(), PortDiff{
		Inconsistencies: []Inconsistency{{Device: "Switch-Bureau", PortIndex: 4}},
	})

	sent := sink.notifications()
	if len(sent) != 1 {
		t.Fatalf("notifications = %d, want 1", len(sent))
	}
	if sent[0].Title != "UniFi monitor error" || sent[0].Icon != notify.IconError {
		t.Errorf("notification = %+v", sent[0])
	}
}
