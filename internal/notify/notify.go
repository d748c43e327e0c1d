// UniFi Tools - UniFi Controller Monitoring and Management
// Copyright 2026 Mika (mika1337)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mika1337/unifi-tools

// Package notify delivers monitor notifications to an external sink.
// Call sites treat delivery as fire-and-forget: errors are logged and
// counted, they never interrupt the monitor loop.
package notify

import "context"

// Icon is the severity marker shown with a notification.
type Icon string

const (
	IconInfo  Icon = ":information_source:"
	IconError Icon = ":x:"
)

// Block is one structured element of a notification body.
type Block interface {
	// payload renders the block as a Slack-compatible block object.
	payload() map[string]any
}

// Section is a primary text block.
type Section struct {
	Text string
}

func (s Section) payload() map[string]any {
	return map[string]any{
		"type": "section",
		"text": map[string]any{"type": "mrkdwn", "text": s.Text},
	}
}

// Context is a secondary, de-emphasized text block (error details,
// stack context).
type Context struct {
	Text string
}

func (c Context) payload() map[string]any {
	return map[string]any{
		"type": "context",
		"elements": []any{
			map[string]any{"type": "mrkdwn", "text": c.Text},
		},
	}
}

// Notifier accepts a titled notification with ordered message blocks.
type Notifier interface {
	Send(ctx context.Context, title string, icon Icon, blocks []Block) error
}
