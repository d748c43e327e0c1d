// UniFi Tools - UniFi Controller Monitoring and Management
// Copyright 2026 Mika (mika1337)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mika1337/unifi-tools

package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/mika1337/unifi-tools/internal/logging"
)

// WebhookNotifier posts Slack-compatible webhook payloads.
//
// Delivery runs behind a circuit breaker: a dead webhook endpoint must
// not add its full timeout to every poll cycle, so after repeated
// failures the breaker fails fast until the endpoint recovers.
type WebhookNotifier struct {
	url        string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[struct{}]
	log        zerolog.Logger
}

const (
	webhookTimeout = 10 * time.Second

	// breakerFailureThreshold consecutive failures open the breaker;
	// after breakerRecovery it lets one probe request through.
	breakerFailureThreshold = 5
	breakerRecovery         = 60 * time.Second
)

// NewWebhookNotifier creates a notifier posting to the given URL.
func NewWebhookNotifier(url string) *WebhookNotifier {
	log := logging.Component("notify")

	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:    "notification-webhook",
		Timeout: breakerRecovery,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Webhook breaker state change")
		},
	})

	return &WebhookNotifier{
		url:        url,
		httpClient: &http.Client{Timeout: webhookTimeout},
		breaker:    breaker,
		log:        log,
	}
}

// Send posts the notification. Breaker-open errors are returned like
// any other delivery failure; callers log and continue.
func (n *WebhookNotifier) Send(ctx context.Context, title string, icon Icon, blocks []Block) error {
	payload, err := buildPayload(title, icon, blocks)
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	_, err = n.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, n.post(ctx, payload)
	})
	if err == nil {
		n.log.Debug().Str("title", title).Msg("Webhook notification delivered")
	}
	return err
}

func (n *WebhookNotifier) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}

// buildPayload renders the Slack-compatible message JSON. The icon is
// prepended to the title so severity survives sinks that only render
// the fallback text.
func buildPayload(title string, icon Icon, blocks []Block) ([]byte, error) {
	rendered := make([]any, 0, len(blocks)+1)
	rendered = append(rendered, Section{Text: fmt.Sprintf("%s *%s*", icon, title)}.payload())
	for _, block := range blocks {
		rendered = append(rendered, block.payload())
	}

	return json.Marshal(map[string]any{
		"text":   fmt.Sprintf("%s %s", icon, title),
		"blocks": rendered,
	})
}
