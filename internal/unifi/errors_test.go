// UniFi Tools - UniFi Controller Monitoring and Management
// Copyright 2026 Mika (mika1337)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mika1337/unifi-tools

package unifi

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorClassification(t *testing.T) {
	t.Parallel()

	authErr := &AuthError{Msg: "login failed"}
	protoErr := &ProtocolError{Status: 500, Msg: "login failed"}
	transportErr := &TransportError{Op: "GET https://ctrl:8443/logout", Err: errors.New("connection refused")}

	tests := []struct {
		name          string
		err           error
		wantAuth      bool
		wantProtocol  bool
		wantTransport bool
	}{
		{"auth", authErr, true, false, false},
		{"protocol", protoErr, false, true, false},
		{"transport", transportErr, false, false, true},
		{"wrapped auth", fmt.Errorf("monitor: %w", authErr), true, false, false},
		{"wrapped transport", fmt.Errorf("cycle: %w", transportErr), false, false, true},
		{"plain error", errors.New("boom"), false, false, false},
		{"nil", nil, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := IsAuth(tt.err); got != tt.wantAuth {
				t.Errorf("IsAuth = %v, want %v", got, tt.wantAuth)
			}
			if got := IsProtocol(tt.err); got != tt.wantProtocol {
				t.Errorf("IsProtocol = %v, want %v", got, tt.wantProtocol)
			}
			if got := IsTransport(tt.err); got != tt.wantTransport {
				t.Errorf("IsTransport = %v, want %v", got, tt.wantTransport)
			}
		})
	}
}

func TestTransportErrorUnwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection reset")
	err := &TransportError{Op: "POST", Err: cause}

	if !errors.Is(err, cause) {
		t.Error("TransportError should unwrap to its cause")
	}
}

func TestProtocolErrorMessage(t *testing.T) {
	t.Parallel()

	withStatus := &ProtocolError{Status: 503, Msg: "GET api/s/default/stat/device failed"}
	if got := withStatus.Error(); got != "GET api/s/default/stat/device failed (status 503)" {
		t.Errorf("Error() = %q", got)
	}

	withoutStatus := &ProtocolError{Msg: "envelope missing data array"}
	if got := withoutStatus.Error(); got != "envelope missing data array" {
		t.Errorf("Error() = %q", got)
	}
}
