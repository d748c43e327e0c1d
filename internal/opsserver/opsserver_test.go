// UniFi Tools - UniFi Controller Monitoring and Management
// Copyright 2026 Mika (mika1337)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mika1337/unifi-tools

package opsserver

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/mika1337/unifi-tools/internal/monitor"
)

type staticStatus struct {
	status monitor.Status
}

func (s staticStatus) Status() monitor.Status { return s.status }

func newTestServer(status monitor.Status) *httptest.Server {
	return httptest.NewServer(New("", staticStatus{status}).Routes())
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	ts := newTestServer(monitor.Status{
		State:    monitor.StatePolling,
		LastPoll: time.Now(),
	})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestHealthzBeforeFirstPoll(t *testing.T) {
	t.Parallel()

	ts := newTestServer(monitor.Status{State: monitor.StateAuthenticating})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 before the first completed poll", resp.StatusCode)
	}
}

func TestStatusEndpoint(t *testing.T) {
	t.Parallel()

	lastPoll := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	ts := newTestServer(monitor.Status{
		State:             monitor.StatePolling,
		ConsecutiveErrors: 0,
		LastPoll:          lastPoll,
		Devices:           4,
		VPNConnections:    1,
	})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("content type = %q", ct)
	}

	var got monitor.Status
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.State != monitor.StatePolling || got.Devices != 4 || got.VPNConnections != 1 {
		t.Errorf("status = %+v", got)
	}
	if !got.LastPoll.Equal(lastPoll) {
		t.Errorf("last poll = %s, want %s", got.LastPoll, lastPoll)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	ts := newTestServer(monitor.Status{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestUnknownRoute(t *testing.T) {
	t.Parallel()

	ts := newTestServer(monitor.Status{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/unknown")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}
