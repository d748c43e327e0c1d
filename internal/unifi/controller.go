// UniFi Tools - UniFi Controller Monitoring and Management
// Copyright 2026 Mika (mika1337)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mika1337/unifi-tools

// Package unifi implements an authenticated session client for the
// UniFi controller management API, plus the typed domain model it
// decodes controller JSON into.
package unifi

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/mika1337/unifi-tools/internal/logging"
)

// ControllerConfig holds the connection parameters for one controller.
type ControllerConfig struct {
	// Address is the controller host name or IP, without scheme or port.
	Address string

	// Port is the management API port. Default: 8443.
	Port int

	// Site is the controller site identifier used in API paths.
	Site string

	Username string
	Password string

	// VerifyTLS enables certificate verification. Controllers commonly
	// run with self-signed certificates, so the default is false; this
	// is a deliberate trust relaxation, not an oversight.
	VerifyTLS bool

	// Timeout bounds each HTTP request. Default: 30s.
	Timeout time.Duration
}

// Controller is an authenticated HTTP session against one controller.
// It is not safe for concurrent use; the monitor loop and the manager
// CLI are both strictly sequential.
type Controller struct {
	cfg        ControllerConfig
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        zerolog.Logger
}

// requestRate bounds outgoing API calls so that tight CLI loops and
// short poll periods cannot hammer the controller.
const (
	requestRate  = rate.Limit(5)
	requestBurst = 5
)

// NewController creates a session client. No network I/O happens until
// Login is called.
func NewController(cfg ControllerConfig) *Controller {
	if cfg.Port == 0 {
		cfg.Port = 8443
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	// cookiejar.New only fails on invalid options; nil options are valid.
	jar, _ := cookiejar.New(nil)

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: !cfg.VerifyTLS, //nolint:gosec // self-signed controller certs, see ControllerConfig.VerifyTLS
		},
	}

	return &Controller{
		cfg:     cfg,
		baseURL: fmt.Sprintf("https://%s:%d", cfg.Address, cfg.Port),
		httpClient: &http.Client{
			Jar:       jar,
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		limiter: rate.NewLimiter(requestRate, requestBurst),
		log:     logging.Component("unifi"),
	}
}

// Login authenticates the session. HTTP 400 means the controller
// rejected the credentials and returns an AuthError; callers must not
// retry those. Any other non-200 status is a ProtocolError.
func (c *Controller) Login(ctx context.Context) error {
	body := map[string]string{
		"username": c.cfg.Username,
		"password": c.cfg.Password,
	}

	resp, err := c.do(ctx, http.MethodPost, "api/login", body, false)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	drain(resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
		c.log.Debug().Msg("Login successful")
		return nil
	case http.StatusBadRequest:
		return &AuthError{Msg: "login failed with provided credentials"}
	default:
		return &ProtocolError{Status: resp.StatusCode, Msg: "login failed"}
	}
}

// Logout ends the session, best-effort: failures are logged, never
// returned, so that logout can run during shutdown without masking the
// real shutdown reason. Idle connections are released either way.
func (c *Controller) Logout(ctx context.Context) {
	resp, err := c.do(ctx, http.MethodGet, "logout", nil, true)
	if err != nil {
		c.log.Warn().Err(err).Msg("Logout failed")
	} else {
		drain(resp.Body)
		_ = resp.Body.Close()
	}

	c.httpClient.CloseIdleConnections()
}

// ListDevices returns all devices of the configured site.
func (c *Controller) ListDevices(ctx context.Context) ([]Device, error) {
	elements, err := c.getData(ctx, c.sitePath("stat/device"))
	if err != nil {
		return nil, err
	}

	devices := make([]Device, 0, len(elements))
	for _, element := range elements {
		var raw rawDevice
		if err := json.Unmarshal(element, &raw); err != nil {
			return nil, &ProtocolError{Msg: fmt.Sprintf("malformed device record: %v", err)}
		}
		devices = append(devices, decodeDevice(&raw))
	}

	return devices, nil
}

// GetDeviceStatus returns the current record of a single device
// addressed by MAC.
func (c *Controller) GetDeviceStatus(ctx context.Context, mac string) (*Device, error) {
	elements, err := c.getData(ctx, c.sitePath("stat/device/"+lowerMAC(mac)))
	if err != nil {
		return nil, err
	}
	if len(elements) == 0 {
		return nil, &ProtocolError{Msg: fmt.Sprintf("no device record for %s", mac)}
	}

	var raw rawDevice
	if err := json.Unmarshal(elements[0], &raw); err != nil {
		return nil, &ProtocolError{Msg: fmt.Sprintf("malformed device record: %v", err)}
	}

	device := decodeDevice(&raw)
	return &device, nil
}

// ListClients returns all connected stations of the configured site.
func (c *Controller) ListClients(ctx context.Context) ([]Client, error) {
	elements, err := c.getData(ctx, c.sitePath("stat/sta"))
	if err != nil {
		return nil, err
	}

	clients := make([]Client, 0, len(elements))
	for _, element := range elements {
		var raw rawClient
		if err := json.Unmarshal(element, &raw); err != nil {
			return nil, &ProtocolError{Msg: fmt.Sprintf("malformed client record: %v", err)}
		}
		clients = append(clients, decodeClient(&raw))
	}

	return clients, nil
}

// VPNConnections returns the active VPN tunnels, extracted from the
// routing table: entries whose next-hop interface is an l2tp device.
func (c *Controller) VPNConnections(ctx context.Context) ([]VPNConnection, error) {
	elements, err := c.getData(ctx, c.sitePath("stat/routing"))
	if err != nil {
		return nil, err
	}

	connections := make([]VPNConnection, 0)
	for _, element := range elements {
		var raw rawRoute
		if err := json.Unmarshal(element, &raw); err != nil {
			return nil, &ProtocolError{Msg: fmt.Sprintf("malformed routing record: %v", err)}
		}
		if conn, ok := decodeVPNConnection(&raw); ok {
			connections = append(connections, conn)
		}
	}

	return connections, nil
}

// ReconnectClient forces a station to reconnect (kick-sta).
func (c *Controller) ReconnectClient(ctx context.Context, mac string) error {
	body := map[string]string{"cmd": "kick-sta", "mac": lowerMAC(mac)}
	return c.command(ctx, http.MethodPost, c.sitePath("cmd/stamgr"), body)
}

// ForceProvision forces a device to re-provision.
func (c *Controller) ForceProvision(ctx context.Context, mac string) error {
	body := map[string]string{"cmd": "force-provision", "mac": lowerMAC(mac)}
	return c.command(ctx, http.MethodPost, c.sitePath("cmd/devmgr"), body)
}

// SetDeviceDisabled enables or disables a device (typically an access
// point) addressed by its controller id.
func (c *Controller) SetDeviceDisabled(ctx context.Context, id string, disabled bool) error {
	body := map[string]bool{"disabled": disabled}
	return c.command(ctx, http.MethodPut, c.sitePath("rest/device/"+id), body)
}

// command issues a mutating request and checks for plain 200.
func (c *Controller) command(ctx context.Context, method, path string, body any) error {
	resp, err := c.do(ctx, method, path, body, true)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	drain(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &ProtocolError{Status: resp.StatusCode, Msg: method + " " + path + " failed"}
	}

	return nil
}

// getData issues an authenticated GET and returns the elements of the
// envelope's data array. A missing data field is a ProtocolError.
func (c *Controller) getData(ctx context.Context, path string) ([]json.RawMessage, error) {
	resp, err := c.do(ctx, http.MethodGet, path, nil, true)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		drain(resp.Body)
		return nil, &ProtocolError{Status: resp.StatusCode, Msg: "GET " + path + " failed"}
	}

	var envelope struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, &ProtocolError{Msg: fmt.Sprintf("malformed envelope for %s: %v", path, err)}
	}
	if envelope.Data == nil {
		return nil, &ProtocolError{Msg: "envelope missing data array for " + path}
	}

	return envelope.Data, nil
}

// do sends one request. logArgs=false suppresses the body in debug
// logs (credentials). Network failures come back as TransportError.
func (c *Controller) do(ctx context.Context, method, path string, body any, logArgs bool) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	url := c.baseURL + "/" + path

	var reader io.Reader
	var encoded []byte
	if body != nil {
		var err error
		encoded, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	event := c.log.Debug().Str("method", method).Str("url", url)
	if logArgs && encoded != nil {
		event = event.RawJSON("body", encoded)
	}
	event.Msg("Sending request")

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: method + " " + url, Err: err}
	}

	c.log.Debug().Str("method", method).Str("url", url).Int("status", resp.StatusCode).Msg("Request completed")

	return resp, nil
}

// sitePath builds an api/s/{site}/… path.
func (c *Controller) sitePath(suffix string) string {
	return "api/s/" + c.cfg.Site + "/" + suffix
}

// drain consumes a response body so the connection can be reused.
func drain(body io.Reader) {
	_, _ = io.Copy(io.Discard, body)
}

// lowerMAC normalizes a MAC address; the controller expects lower case.
func lowerMAC(mac string) string {
	return strings.ToLower(mac)
}
