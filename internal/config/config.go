// UniFi Tools - UniFi Controller Monitoring and Management
// Copyright 2026 Mika (mika1337)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mika1337/unifi-tools

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"

	"github.com/mika1337/unifi-tools/internal/logging"
	"github.com/mika1337/unifi-tools/internal/monitor"
	"github.com/mika1337/unifi-tools/internal/unifi"
)

// Config holds all application configuration, shared by the monitor
// daemon and the manager CLI.
//
// Loading order (Koanf v2):
//  1. Defaults: built-in values for all optional settings
//  2. Config file: optional YAML file for persistent settings
//  3. Environment variables: override any setting
type Config struct {
	Controller ControllerConfig `koanf:"controller"`
	Monitor    MonitorConfig    `koanf:"monitor"`
	Notify     NotifyConfig     `koanf:"notify"`
	Ops        OpsConfig        `koanf:"ops"`
	Logging    logging.Config   `koanf:"logging"`
}

// ControllerConfig describes the controller endpoint and session
// credentials. Credentials may live inline or in a separate JSON file
// kept out of the main config.
type ControllerConfig struct {
	Address         string        `koanf:"address"`
	Port            int           `koanf:"port"`
	Site            string        `koanf:"site"`
	Username        string        `koanf:"username"`
	Password        string        `koanf:"password"`
	CredentialsFile string        `koanf:"credentials_file"`
	VerifyTLS       bool          `koanf:"verify_tls"`
	Timeout         time.Duration `koanf:"timeout"`
}

// MonitorConfig holds the poll loop timings and the ignore table for
// known-benign port speed changes.
type MonitorConfig struct {
	Period  time.Duration `koanf:"period"`
	Backoff time.Duration `koanf:"backoff"`

	// Ignore maps a device name to port indices whose speed changes
	// are suppressed.
	Ignore map[string][]int `koanf:"ignore"`
}

// NotifyConfig selects the notification sink. An empty webhook URL
// routes notifications to the log.
type NotifyConfig struct {
	WebhookURL string `koanf:"webhook_url"`
}

// OpsConfig holds the operational HTTP endpoint (health, metrics,
// status). Disabled by default: the monitor predates it and must keep
// running without an open port.
type OpsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Listen  string `koanf:"listen"`
}

// credentials is the on-disk shape of the credentials file.
type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// resolveCredentials loads username/password from the credentials file
// when one is configured. Inline values win over file values.
func (c *ControllerConfig) resolveCredentials() error {
	if c.CredentialsFile == "" {
		return nil
	}

	data, err := os.ReadFile(c.CredentialsFile)
	if err != nil {
		return fmt.Errorf("failed to read credentials file: %w", err)
	}

	var creds credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return fmt.Errorf("failed to parse credentials file %s: %w", c.CredentialsFile, err)
	}

	if c.Username == "" {
		c.Username = creds.Username
	}
	if c.Password == "" {
		c.Password = creds.Password
	}
	return nil
}

// ControllerOptions converts the section into the controller client's
// option struct.
func (c *Config) ControllerOptions() unifi.ControllerConfig {
	return unifi.ControllerConfig{
		Address:   c.Controller.Address,
		Port:      c.Controller.Port,
		Site:      c.Controller.Site,
		Username:  c.Controller.Username,
		Password:  c.Controller.Password,
		VerifyTLS: c.Controller.VerifyTLS,
		Timeout:   c.Controller.Timeout,
	}
}

// MonitorOptions converts the section into the monitor loop's config.
func (c *Config) MonitorOptions() (monitor.Config, monitor.IgnorePolicy) {
	return monitor.Config{
		Period:  c.Monitor.Period,
		Backoff: c.Monitor.Backoff,
	}, monitor.IgnorePolicy(c.Monitor.Ignore)
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if c.Controller.Address == "" {
		return fmt.Errorf("controller.address is required")
	}
	if c.Controller.Port < 1 || c.Controller.Port > 65535 {
		return fmt.Errorf("controller.port must be between 1 and 65535, got %d", c.Controller.Port)
	}
	if c.Controller.Site == "" {
		return fmt.Errorf("controller.site is required")
	}
	if c.Controller.Username == "" || c.Controller.Password == "" {
		return fmt.Errorf("controller credentials are required (inline or via controller.credentials_file)")
	}
	if c.Monitor.Period <= 0 {
		return fmt.Errorf("monitor.period must be positive, got %s", c.Monitor.Period)
	}
	if c.Monitor.Backoff <= 0 {
		return fmt.Errorf("monitor.backoff must be positive, got %s", c.Monitor.Backoff)
	}
	if c.Ops.Enabled && c.Ops.Listen == "" {
		return fmt.Errorf("ops.listen is required when the ops endpoint is enabled")
	}
	return c.validateLogging()
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "", "trace", "debug", "info", "warn", "warning", "error", "disabled":
	default:
		return fmt.Errorf("logging.level must be one of trace, debug, info, warn, error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}
