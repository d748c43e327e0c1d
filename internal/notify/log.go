// UniFi Tools - UniFi Controller Monitoring and Management
// Copyright 2026 Mika (mika1337)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mika1337/unifi-tools

package notify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/mika1337/unifi-tools/internal/logging"
)

// LogNotifier writes notifications to the log. It is the default sink
// when no webhook URL is configured, keeping the monitor useful
// without any notification infrastructure.
type LogNotifier struct {
	log zerolog.Logger
}

// NewLogNotifier creates a log-backed notification sink.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{log: logging.Component("notify")}
}

// Send logs the notification; error severity maps to error level.
func (n *LogNotifier) Send(_ context.Context, title string, icon Icon, blocks []Block) error {
	event := n.log.Info()
	if icon == IconError {
		event = n.log.Error()
	}

	texts := make([]string, 0, len(blocks))
	for _, block := range blocks {
		switch b := block.(type) {
		case Section:
			texts = append(texts, b.Text)
		case Context:
			texts = append(texts, b.Text)
		}
	}

	event.Str("title", title).Strs("blocks", texts).Msg("Notification")
	return nil
}
