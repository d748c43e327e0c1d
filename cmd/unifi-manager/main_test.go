// UniFi Tools - UniFi Controller Monitoring and Management
// Copyright 2026 Mika (mika1337)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mika1337/unifi-tools

package main

import "testing"

func TestMACRegexp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want bool
	}{
		{"aa:bb:cc:dd:ee:ff", true},
		{"AA:BB:CC:DD:EE:FF", true},
		{"aa-bb-cc-dd-ee-ff", true},
		{"aabbccddeeff", true},
		{"aa:bb-cc:dd:ee:ff", false}, // mixed separators
		{"aa:bb:cc:dd:ee", false},    // too short
		{"aa:bb:cc:dd:ee:ff:00", false},
		{"gg:bb:cc:dd:ee:ff", false},
		{"Switch-Bureau", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := macRe.MatchString(tt.in); got != tt.want {
			t.Errorf("macRe.MatchString(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
